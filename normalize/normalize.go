// Package normalize turns raw feed entries into plain text with a resolved
// publish timestamp.
package normalize

import (
	"strings"
	"time"

	"github.com/poiesic/culldron/core"
	"golang.org/x/net/html"
)

// Normalizer converts raw entries into core.NormalizedEntry values.
// It never fails: the body falls back to the title and the timestamp falls
// back to the current time.
type Normalizer struct {
	now func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the function used for the fallback timestamp.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize extracts title, url, publish timestamp and plain-text body.
//
// Body precedence: content, then summary, then title; the first field whose
// visible text is non-empty wins. Timestamp precedence: published, then
// updated, then the current time.
func (n *Normalizer) Normalize(entry core.Entry) core.NormalizedEntry {
	return core.NormalizedEntry{
		Title:     entry.Title,
		URL:       entry.Link,
		Published: n.timestamp(entry),
		Body:      Body(entry),
	}
}

func (n *Normalizer) timestamp(entry core.Entry) time.Time {
	switch {
	case entry.Published != nil && !entry.Published.IsZero():
		return core.NormalizeTimestamp(*entry.Published)
	case entry.Updated != nil && !entry.Updated.IsZero():
		return core.NormalizeTimestamp(*entry.Updated)
	default:
		return core.NormalizeTimestamp(n.now())
	}
}

// Body returns the plain-text body of entry.
func Body(entry core.Entry) string {
	for _, field := range []string{entry.Content, entry.Summary} {
		if strings.TrimSpace(field) == "" {
			continue
		}
		if text := StripHTML(field); text != "" {
			return text
		}
	}
	return CollapseWhitespace(entry.Title)
}

// elements whose text is never visible
var invisible = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// elements that break the text flow
var block = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figcaption": true, "figure": true, "footer": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// StripHTML returns the visible text of an HTML fragment with whitespace
// collapsed to single spaces. Block elements separate their text from the
// surrounding text, so "<p>a</p><p>b</p>" yields "a b".
func StripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return CollapseWhitespace(s)
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && invisible[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		isBlock := n.Type == html.ElementNode && block[n.Data]
		if isBlock {
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
		if isBlock {
			buf.WriteByte(' ')
		}
	}
	extractText(doc)

	return CollapseWhitespace(buf.String())
}

// CollapseWhitespace trims s and replaces every whitespace run with one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
