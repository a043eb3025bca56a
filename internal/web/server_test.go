package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/abhisek/contentgen/internal/generate"
	"github.com/abhisek/contentgen/internal/llm"
	"github.com/abhisek/contentgen/internal/templates"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

type blockingProvider struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProvider) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &llm.Response{Text: "slow answer", Model: "blocking"}, nil
}

func (b *blockingProvider) GenerateImage(context.Context, llm.ImageRequest) (*llm.ImageResponse, error) {
	return nil, &llm.ErrProviderUnavailable{}
}

func (b *blockingProvider) ModelID() string { return "blocking" }

type client struct {
	t      *testing.T
	srv    *Server
	cookie *http.Cookie
}

func newClient(t *testing.T, text llm.Provider, image llm.ImageProvider) *client {
	t.Helper()
	srv := New(Options{
		NewController: func() *generate.Controller {
			clock := &stepClock{now: time.UnixMilli(1700000000000), step: 1234 * time.Millisecond}
			return generate.New(templates.Default(), text, image, generate.WithClock(clock.Now))
		},
	})
	return &client{t: t, srv: srv}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.srv.Handler().ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == SessionCookie {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func storyForm() url.Values {
	return url.Values{
		"template": {"story"},
		"topic":    {"Space"},
		"grade":    {"3rd"},
		"count":    {"5"},
	}
}

func TestIndexRendersForm(t *testing.T) {
	c := newClient(t, llm.NewMockProvider(), llm.NewMockProvider())

	rec := c.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.cookie, "session cookie not issued")
	assert.True(t, c.cookie.HttpOnly)

	body := rec.Body.String()
	assert.Contains(t, body, "Story Generator")
	assert.Contains(t, body, "Creative Writing Prompt")
	assert.Contains(t, body, `value="5th"`)
	assert.NotContains(t, body, "Export Content")
	assert.NotContains(t, body, "Generation Time")
}

func TestGenerateTextRendersResult(t *testing.T) {
	p := llm.NewMockProvider(llm.MockResponse{Text: "one **two** three four"})
	c := newClient(t, p, p)

	rec := c.post("/generate/text", storyForm())
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Generation Time: 1.23s | Token Count: 4")
	assert.Contains(t, body, "<strong>two</strong>")
	assert.Contains(t, body, `href="/export"`)
	assert.Contains(t, body, `value="Space"`)
	assert.Equal(t, 1, p.CallCount())
}

func TestGenerateTextValidation(t *testing.T) {
	p := llm.NewMockProvider(llm.MockResponse{Text: "unused"})
	c := newClient(t, p, p)

	rec := c.post("/generate/text", url.Values{"template": {"story"}, "grade": {"3rd"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), generate.MsgMissingFields)
	assert.Equal(t, 0, p.CallCount())
}

func TestGeneratedScriptIsNotRendered(t *testing.T) {
	p := llm.NewMockProvider(llm.MockResponse{Text: "hi <script>alert('x')</script>"})
	c := newClient(t, p, p)

	rec := c.post("/generate/text", storyForm())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "alert('x')")
}

func TestEndpointErrorBanner(t *testing.T) {
	p := llm.NewMockProvider(llm.MockResponse{Err: llm.ErrUnauthenticated})
	c := newClient(t, p, p)

	rec := c.post("/generate/text", storyForm())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication failed")
}

func TestExportWithoutResultRedirects(t *testing.T) {
	c := newClient(t, llm.NewMockProvider(), llm.NewMockProvider())

	rec := c.get("/export")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestExportDownloadsText(t *testing.T) {
	p := llm.NewMockProvider(llm.MockResponse{Text: "# Space\n\nStars."})
	c := newClient(t, p, p)
	c.post("/generate/text", storyForm())

	rec := c.get("/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Space\n\nStars.", rec.Body.String())
	assert.Equal(t, "text/plain;charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename="content-story-\d+\.txt"$`, rec.Header().Get("Content-Disposition"))
}

func TestImageFlow(t *testing.T) {
	p := llm.NewMockProvider()
	p.AddImageResponse(llm.MockImageResponse{Data: []byte("PNGDATA"), MIMEType: "image/png"})
	c := newClient(t, p, p)

	assert.Equal(t, http.StatusNotFound, c.get("/image").Code)

	rec := c.post("/generate/image", url.Values{"topic": {"Volcanoes"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `src="/image"`)

	rec = c.get("/image")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "PNGDATA", rec.Body.String())
}

func TestImageByURLRedirects(t *testing.T) {
	p := llm.NewMockProvider()
	p.AddImageResponse(llm.MockImageResponse{URL: "https://images.example/cat.png"})
	c := newClient(t, p, p)

	rec := c.post("/generate/image", url.Values{"topic": {"Cats"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `src="https://images.example/cat.png"`)

	rec = c.get("/image")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://images.example/cat.png", rec.Header().Get("Location"))
}

func TestImageMissingTopic(t *testing.T) {
	p := llm.NewMockProvider()
	c := newClient(t, p, p)

	rec := c.post("/generate/image", url.Values{"topic": {""}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), generate.MsgMissingTopic)
	assert.Equal(t, 0, p.ImageCallCount())
}

func TestBusySessionReturnsConflict(t *testing.T) {
	bp := &blockingProvider{entered: make(chan struct{}), release: make(chan struct{})}
	c := newClient(t, bp, bp)
	c.get("/")

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/generate/text", strings.NewReader(storyForm().Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(c.cookie)
		rec := httptest.NewRecorder()
		c.srv.Handler().ServeHTTP(rec, req)
		done <- rec.Code
	}()
	<-bp.entered

	rec := c.post("/generate/text", storyForm())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), noticeBusy)
	assert.Contains(t, rec.Body.String(), "disabled")

	close(bp.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestSessionCapReturnsUnavailable(t *testing.T) {
	bp := &blockingProvider{entered: make(chan struct{}), release: make(chan struct{})}
	srv := New(Options{
		NewController: func() *generate.Controller { return generate.New(templates.Default(), bp, bp) },
		MaxSessions:   1,
	})
	a := &client{t: t, srv: srv}
	a.get("/")

	done := make(chan int, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/generate/text", strings.NewReader(storyForm().Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(a.cookie)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		done <- rec.Code
	}()
	<-bp.entered

	b := &client{t: t, srv: srv}
	rec := b.get("/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), noticeFull)
	assert.Nil(t, b.cookie)
	assert.Equal(t, 1, srv.sessions.len())

	close(bp.release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestSessionsAreIsolated(t *testing.T) {
	p := llm.NewMockProvider(llm.MockResponse{Text: "first browser"})
	a := newClient(t, p, p)
	a.post("/generate/text", storyForm())

	b := &client{t: t, srv: a.srv}
	rec := b.get("/")
	assert.NotContains(t, rec.Body.String(), "first browser")
	assert.NotEqual(t, a.cookie.Value, b.cookie.Value)
}

func TestHealthzAndMetrics(t *testing.T) {
	c := newClient(t, llm.NewMockProvider(), llm.NewMockProvider())

	rec := c.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = c.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "contentgen_http_requests_total")
}

func TestRequestIDEchoed(t *testing.T) {
	c := newClient(t, llm.NewMockProvider(), llm.NewMockProvider())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := c.do(req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = c.get("/healthz")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestsAreTraced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	p := llm.NewMockProvider()
	srv := New(Options{
		NewController:  func() *generate.Controller { return generate.New(templates.Default(), p, p) },
		TracerProvider: tp,
	})
	c := &client{t: t, srv: srv}

	rec := c.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), rec.Header().Get(TraceIDHeader))

	c.get("/metrics")
	assert.Len(t, sr.Ended(), 1, "metrics scrapes should not be traced")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	c := newClient(t, llm.NewMockProvider(), llm.NewMockProvider())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.srv.ListenAndServe(ctx, HTTPConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
