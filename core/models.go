// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"strings"
	"time"
)

// ID is a database-assigned identifier for themes and posts.
type ID uint64

// Theme is an emergent topic cluster. It carries no label and no stored
// embedding; its representatives are the posts assigned to it.
type Theme struct {
	Id        ID
	CreatedAt time.Time
}

// Post is a single ingested feed item, reduced to its thesis and linked to
// exactly one theme for its whole lifetime.
type Post struct {
	Id          ID
	ThemeId     ID
	Title       string
	URL         string
	PublishedAt time.Time
	IngestedAt  time.Time // Assigned by the store at insert
	Thesis      string
}

// Key returns the post's natural key.
func (p *Post) Key() NaturalKey {
	return NewNaturalKey(p.URL, p.PublishedAt, p.Title)
}

// NaturalKey is the (url, published, title) triple that identifies a post
// for deduplication, independent of its storage id.
type NaturalKey struct {
	URL       string
	Published time.Time
	Title     string
}

// NewNaturalKey builds a key with the timestamp normalized to UTC at
// microsecond precision, so keys compare equal after a database round trip.
func NewNaturalKey(url string, published time.Time, title string) NaturalKey {
	return NaturalKey{
		URL:       url,
		Published: NormalizeTimestamp(published),
		Title:     title,
	}
}

// String renders the key for log output.
func (k NaturalKey) String() string {
	return k.URL + " @ " + k.Published.Format(time.RFC3339) + " [" + k.Title + "]"
}

// NormalizeTimestamp converts ts to UTC and truncates it to microseconds.
func NormalizeTimestamp(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Microsecond)
}

// PostText is the stored text of a post that theme matching re-embeds.
type PostText struct {
	ThemeId ID
	Title   string
	Thesis  string
}

// MatchText returns the text embedded for theme matching.
func MatchText(title, thesis string) string {
	return title + ". " + thesis
}

// Entry is one raw item of a syndicated feed as yielded by a source reader.
// Content and Summary may contain HTML.
type Entry struct {
	Title     string
	Link      string
	Content   string
	Summary   string
	Published *time.Time
	Updated   *time.Time
}

// Feed is a parsed feed document.
type Feed struct {
	Title   string
	Entries []Entry
}

// NormalizedEntry is an entry reduced to plain text with a resolved timestamp.
type NormalizedEntry struct {
	Title     string
	URL       string
	Published time.Time
	Body      string
}

// Key returns the entry's natural key.
func (e *NormalizedEntry) Key() NaturalKey {
	return NewNaturalKey(e.URL, e.Published, e.Title)
}

// Candidate is an entry that survived deduplication and thesis extraction
// and is waiting for theme assignment.
type Candidate struct {
	Title     string
	URL       string
	Published time.Time
	Thesis    []string
	Content   string
	Vector    []float32
}

// ThesisText joins the thesis sentences into the stored thesis text.
func (c *Candidate) ThesisText() string {
	return strings.Join(c.Thesis, " ")
}

// PostSummary describes one post stored by an ingestion run.
type PostSummary struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Published time.Time `json:"published"`
	Thesis    []string  `json:"thesis"`
	Content   string    `json:"content"`
}

// IngestResult summarizes one ingestion run. Posts lists only posts that
// were actually stored.
type IngestResult struct {
	FeedTitle string        `json:"feed_title"`
	PostCount int           `json:"post_count"`
	Posts     []PostSummary `json:"posts"`
}

// ThemeSummary is a theme with the number of posts assigned to it.
type ThemeSummary struct {
	Id        ID  `json:"id"`
	PostCount int `json:"post_count"`
}

// TimelineEntry is one post in a theme's timeline.
type TimelineEntry struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	IngestedAt  time.Time `json:"ingested_at"`
	Thesis      string    `json:"thesis"`
}
