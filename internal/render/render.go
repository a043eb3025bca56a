// Package render turns generated Markdown into HTML that is safe to embed
// in a page.
package render

import (
	"html/template"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// Markdown renders text and sanitizes the result. Model output is untrusted:
// raw HTML in it is skipped and anything left is filtered again.
func Markdown(text string) template.HTML {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	// parsers carry per-document state
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.SkipHTML | html.HrefTargetBlank,
	})
	out := markdown.ToHTML([]byte(normalizeNewlines(text)), p, r)

	return template.HTML(sanitizer().SanitizeBytes(out))
}

func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AddTargetBlankToFullyQualifiedLinks(true)
		p.RequireNoReferrerOnLinks(true)
		policy = p
	})
	return policy
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
