// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageTemplates are the templates rendered inside templates/base.html.
var pageTemplates = []string{"home", "page", "404"}

// Renderer turns page bodies into safe HTML and renders site templates.
type Renderer struct {
	markdown  goldmark.Markdown
	policy    *bluemonday.Policy
	strict    *bluemonday.Policy
	templates map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
		),
		policy:    bluemonday.UGCPolicy(),
		strict:    bluemonday.StrictPolicy(),
		templates: make(map[string]*template.Template, len(pageTemplates)),
	}
	for _, name := range pageTemplates {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Markdown converts a page body to sanitized HTML. Raw HTML in the body is
// allowed through goldmark and then filtered by the sanitizer.
func (r *Renderer) Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
}

// Excerpt returns up to maxLen characters of plain text from src, cut at a
// word boundary.
func (r *Renderer) Excerpt(src string, maxLen int) string {
	rendered, err := r.Markdown(src)
	if err != nil {
		return ""
	}
	plain := html.UnescapeString(r.strict.Sanitize(string(rendered)))
	text := strings.Join(strings.Fields(plain), " ")
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}

	truncated := string(runes[:maxLen])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > len(truncated)/2 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}

// Render executes the named page template into w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	t, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return t.ExecuteTemplate(w, "base", data)
}
