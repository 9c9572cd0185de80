package thesis

import (
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Segmenter splits plain text into sentences.
type Segmenter interface {
	Segment(text string) []string
}

// PunktSegmenter segments English text with a pre-trained Punkt model,
// which handles abbreviations, initials and ellipses.
type PunktSegmenter struct {
	mu        sync.Mutex
	tokenizer *sentences.DefaultSentenceTokenizer
}

var _ Segmenter = (*PunktSegmenter)(nil)

// NewPunktSegmenter loads the bundled English Punkt model.
func NewPunktSegmenter() (*PunktSegmenter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, err
	}
	return &PunktSegmenter{tokenizer: tokenizer}, nil
}

// Segment returns the trimmed, non-empty sentences of text in order.
func (p *PunktSegmenter) Segment(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	p.mu.Lock()
	tokens := p.tokenizer.Tokenize(text)
	p.mu.Unlock()

	out := make([]string, 0, len(tokens))
	for _, s := range tokens {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}
