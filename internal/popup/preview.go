package popup

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ibeckermayer/tweetsaver/internal/note"
	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// samplePost is previewed when the request names no post.
var samplePost = types.PostRecord{
	URL:    "https://x.com/jack/status/20",
	Author: "jack",
}

var previewTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Note preview - {{.FileName}}</title>
  <style>
    body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; max-width: 640px; margin: 24px auto; color: #1f2937; }
    pre { background: #f3f4f6; padding: 10px; border-radius: 6px; font-size: 12px; }
    .file { color: #6b7280; font-size: 13px; }
  </style>
</head>
<body>
  <p class="file">references/{{.FileName}}.md</p>
  <pre>{{.FrontMatter}}</pre>
  {{.Body}}
</body>
</html>
`))

// previewPage is the data of previewTemplate.
type previewPage struct {
	FileName    string
	FrontMatter string
	Body        template.HTML
}

// Previewer renders notes the way they will be written, as HTML.
type Previewer struct {
	formatter *note.Formatter
	md        goldmark.Markdown
	policy    *bluemonday.Policy
}

// NewPreviewer creates a previewer for notes produced by formatter.
func NewPreviewer(formatter *note.Formatter) *Previewer {
	return &Previewer{
		formatter: formatter,
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:    bluemonday.UGCPolicy(),
	}
}

// Render formats rec as a note and converts it to sanitized HTML. The YAML
// front matter is returned verbatim. Post fields come from the page and are
// untrusted.
func (p *Previewer) Render(rec types.PostRecord) (fileName, frontMatter string, body template.HTML, err error) {
	fileName = note.FileName(rec)
	text, err := p.formatter.Format(rec, fileName)
	if err != nil {
		return "", "", "", err
	}

	frontMatter, markdown := splitFrontMatter(text)

	var buf bytes.Buffer
	if err := p.md.Convert([]byte(markdown), &buf); err != nil {
		return "", "", "", err
	}
	return fileName, frontMatter, template.HTML(p.policy.SanitizeBytes(buf.Bytes())), nil
}

// splitFrontMatter separates a leading "---" delimited block from the rest.
func splitFrontMatter(text string) (frontMatter, rest string) {
	if !strings.HasPrefix(text, "---\n") {
		return "", text
	}
	end := strings.Index(text[4:], "\n---\n")
	if end < 0 {
		return "", text
	}
	end += 4
	return text[:end+5], text[end+5:]
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.previewer == nil {
		http.NotFound(w, r)
		return
	}

	rec := samplePost
	q := r.URL.Query()
	if v := q.Get("url"); v != "" {
		rec.URL = v
		rec.Author = q.Get("author")
	}
	rec.Timestamp = time.Now().UTC().Format(time.RFC3339)

	fileName, frontMatter, body, err := s.previewer.Render(rec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := previewTemplate.Execute(w, previewPage{FileName: fileName, FrontMatter: frontMatter, Body: body}); err != nil {
		s.logger.Error("render preview", "err", err)
	}
}
