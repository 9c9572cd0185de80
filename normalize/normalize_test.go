package normalize

import (
	"testing"
	"time"

	"github.com/poiesic/culldron/core"
	"github.com/stretchr/testify/assert"
)

func ptr(t time.Time) *time.Time { return &t }

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello world", "hello world"},
		{"paragraphs are separated", "<p>First.</p><p>Second.</p>", "First. Second."},
		{"inline markup", "The <b>economy</b> is <i>slowing</i>.", "The economy is slowing."},
		{"entities decoded", "Fish &amp; chips &lt;3", "Fish & chips <3"},
		{"whitespace collapsed", "<div>\n\t a \n\n b  </div>", "a b"},
		{"script and style dropped", "<style>p{}</style><p>Text</p><script>alert(1)</script>", "Text"},
		{"line breaks separate words", "one<br>two", "one two"},
		{"only tags", "<img src=\"x.png\"><br/>", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.input))
		})
	}
}

func TestBodyPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		entry core.Entry
		want  string
	}{
		{
			name:  "content wins",
			entry: core.Entry{Title: "T", Content: "<p>Content body.</p>", Summary: "Summary body."},
			want:  "Content body.",
		},
		{
			name:  "summary when content empty",
			entry: core.Entry{Title: "T", Content: "   ", Summary: "<p>Summary body.</p>"},
			want:  "Summary body.",
		},
		{
			name:  "summary when content has no visible text",
			entry: core.Entry{Title: "T", Content: "<img src=\"a.png\">", Summary: "Summary body."},
			want:  "Summary body.",
		},
		{
			name:  "title as last resort",
			entry: core.Entry{Title: "  Just   a title "},
			want:  "Just a title",
		},
		{
			name:  "everything blank",
			entry: core.Entry{},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Body(tt.entry))
		})
	}
}

func TestNormalizeTimestampPrecedence(t *testing.T) {
	published := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	n := New(WithClock(func() time.Time { return now }))

	tests := []struct {
		name  string
		entry core.Entry
		want  time.Time
	}{
		{"published wins", core.Entry{Published: ptr(published), Updated: ptr(updated)}, published},
		{"updated when no published", core.Entry{Updated: ptr(updated)}, updated},
		{"zero published is ignored", core.Entry{Published: ptr(time.Time{}), Updated: ptr(updated)}, updated},
		{"now as fallback", core.Entry{}, now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.entry)
			assert.True(t, tt.want.Equal(got.Published), "got %v, want %v", got.Published, tt.want)
			assert.Equal(t, time.UTC, got.Published.Location())
		})
	}
}

func TestNormalize(t *testing.T) {
	published := time.Date(2025, 1, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	n := New()

	got := n.Normalize(core.Entry{
		Title:     "Rates",
		Link:      "https://example.com/rates",
		Content:   "<p>Rates are <em>rising</em>.</p>",
		Published: &published,
	})

	assert.Equal(t, "Rates", got.Title)
	assert.Equal(t, "https://example.com/rates", got.URL)
	assert.Equal(t, "Rates are rising.", got.Body)
	assert.Equal(t, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), got.Published)
}
