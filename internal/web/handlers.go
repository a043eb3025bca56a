package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abhisek/contentgen/internal/export"
	"github.com/abhisek/contentgen/internal/generate"
	"github.com/abhisek/contentgen/internal/render"
	"github.com/abhisek/contentgen/internal/templates"
)

const (
	noticeBusy = "A generation is already in progress. Please wait for it to finish."
	noticeFull = "The server is busy. Please try again in a moment."
)

type textView struct {
	HTML    template.HTML
	Elapsed float64
	Tokens  int
}

type imageView struct {
	Src string
	Alt string
}

type pageData struct {
	Templates []templates.Summary
	Grades    []string
	Form      form
	Loading   bool
	Notice    string
	Error     string
	Text      *textView
	Image     *imageView
}

type formInput struct {
	TemplateKey string `form:"template"`
	Topic       string `form:"topic"`
	Grade       string `form:"grade"`
	Count       string `form:"count"`
	Elements    string `form:"elements"`
}

func (in formInput) form() form {
	count, err := strconv.Atoi(strings.TrimSpace(in.Count))
	if err != nil || count <= 0 {
		count = generate.DefaultCount
	}
	return form{
		TemplateKey: in.TemplateKey,
		Topic:       in.Topic,
		Grade:       in.Grade,
		Count:       count,
		Elements:    in.Elements,
	}
}

// session resolves the browser's session, issuing a cookie for new ones.
// When no session can be created it answers 503 and returns false.
func (s *Server) session(c *gin.Context) (*session, bool) {
	id, _ := c.Cookie(SessionCookie)
	sess, created, err := s.sessions.get(id)
	if err != nil {
		s.log.Warn("rejecting new session", zap.Error(err), zap.Int("sessions", s.sessions.len()))
		c.Header("Retry-After", "5")
		c.String(http.StatusServiceUnavailable, noticeFull)
		c.Abort()
		return nil, false
	}
	if created {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, sess.id, int(s.sessions.ttl.Seconds()), "/", "", false, true)
	}
	return sess, true
}

func (s *Server) index(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.renderPage(c, http.StatusOK, sess, "")
}

func (s *Server) generateText(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var in formInput
	if err := c.ShouldBind(&in); err != nil {
		c.String(http.StatusBadRequest, "invalid form: %v", err)
		return
	}
	f := in.form()
	sess.setForm(f)

	_, err := sess.ctrl.GenerateText(c.Request.Context(), generate.Params{
		TemplateKey: f.TemplateKey,
		Topic:       f.Topic,
		Grade:       f.Grade,
		Count:       f.Count,
		Elements:    f.Elements,
	})
	s.afterAttempt(c, sess, err)
}

func (s *Server) generateImage(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var in formInput
	if err := c.ShouldBind(&in); err != nil {
		c.String(http.StatusBadRequest, "invalid form: %v", err)
		return
	}
	f := in.form()
	sess.setForm(f)

	_, err := sess.ctrl.GenerateImage(c.Request.Context(), f.Topic)
	s.afterAttempt(c, sess, err)
}

func (s *Server) afterAttempt(c *gin.Context, sess *session, err error) {
	if errors.Is(err, generate.ErrBusy) {
		s.renderPage(c, http.StatusConflict, sess, noticeBusy)
		return
	}
	if err != nil {
		_ = c.Error(err)
		s.renderPage(c, http.StatusInternalServerError, sess, "")
		return
	}
	s.renderPage(c, http.StatusOK, sess, "")
}

// export streams the text result as a download. Without one it goes back
// to the form.
func (s *Server) export(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	sink := export.SinkFunc(func(_ context.Context, data []byte, filename, mimeType string) error {
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, mimeType, data)
		return nil
	})

	name, err := sess.ctrl.Export(c.Request.Context(), sink)
	if err != nil {
		s.log.Error("export failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "export failed")
		return
	}
	if name == "" {
		c.Redirect(http.StatusSeeOther, "/")
	}
}

func (s *Server) image(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	img := sess.ctrl.State().Image
	switch {
	case img == nil:
		c.Status(http.StatusNotFound)
	case len(img.Data) > 0:
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, img.MIMEType, img.Data)
	case img.URL != "":
		c.Redirect(http.StatusFound, img.URL)
	default:
		c.Status(http.StatusNotFound)
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) renderPage(c *gin.Context, status int, sess *session, notice string) {
	st := sess.ctrl.State()
	data := pageData{
		Templates: s.templates.List(),
		Grades:    templates.Grades,
		Form:      sess.currentForm(),
		Loading:   st.Loading(),
		Notice:    notice,
		Error:     st.ErrorMessage(),
	}
	if data.Form.TemplateKey == "" && len(data.Templates) > 0 {
		data.Form.TemplateKey = data.Templates[0].Key
	}
	if st.Text != nil {
		data.Text = &textView{
			HTML:    render.Markdown(st.Text.Text),
			Elapsed: st.Text.Metrics.ElapsedSeconds,
			Tokens:  st.Text.Metrics.ApproxTokens,
		}
	}
	if st.Image != nil {
		src := "/image"
		if len(st.Image.Data) == 0 {
			src = st.Image.URL
		}
		data.Image = &imageView{Src: src, Alt: "Illustration about " + st.Image.Topic}
	}
	c.HTML(status, "index.html", data)
}
