// Package note turns an extracted post into an Obsidian note: a file name
// and a markdown body with YAML front matter.
package note

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"
	"unicode/utf16"

	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// Tags is the fixed tag set written into every note.
var Tags = []string{"xeet", "saved-xeet", "new-music"}

// TimeLayout mirrors an en-US locale date string.
const TimeLayout = "1/2/2006, 3:04:05 PM"

// Formatter renders note bodies
type Formatter struct {
	template *template.Template
	loc      *time.Location
	now      func() time.Time
}

// NoteData is the template data structure
type NoteData struct {
	Title   string
	Tags    string
	Created string
	URL     string
	Author  string
}

// New creates a formatter that renders timestamps in loc (time.Local when nil)
func New(loc *time.Location) (*Formatter, error) {
	tmpl, err := template.New("note").Parse(noteTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}

	return &Formatter{
		template: tmpl,
		loc:      loc,
		now:      time.Now,
	}, nil
}

// FileName returns "{author}_{id}" where author has every character outside
// [A-Za-z0-9] replaced by '_' and id is the last path segment of the URL.
// Characters outside the BMP count twice, as UTF-16 surrogate pairs, so names
// match notes written by the browser extension.
func FileName(rec types.PostRecord) string {
	author := "unknown"
	if rec.Author != "" {
		author = sanitize(rec.Author)
	}
	return author + "_" + trailingSegment(rec.URL)
}

func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteString(strings.Repeat("_", max(utf16.RuneLen(r), 1)))
		}
	}
	return b.String()
}

func trailingSegment(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	return p[strings.LastIndex(p, "/")+1:]
}

// Format renders the note body for rec. The save time comes from the
// record's timestamp; an unparseable timestamp falls back to now.
func (f *Formatter) Format(rec types.PostRecord, fileName string) (string, error) {
	saved, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		saved = f.now()
	}

	data := NoteData{
		Title:   fileName,
		Tags:    strings.Join(Tags, ", "),
		Created: saved.In(f.loc).Format(TimeLayout),
		URL:     rec.URL,
		Author:  rec.AuthorOrDefault(),
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render note: %w", err)
	}
	return buf.String(), nil
}

const noteTemplate = `---
title: {{.Title}}
tags: [{{.Tags}}]
created: {{.Created}}
listened: false
---

# Tweet Saved

**URL:** {{.URL}}
**Author:** {{.Author}}
**Saved:** {{.Created}}

---

*Saved via Obsidian Tweet Saver*`
