// Package tokens provides token accounting for suite evidence using the
// cl100k_base encoding.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/unicc-ai/testbridge/internal/domain"
)

// Counter counts tokens with a lazily initialized, cached codec. Safe for
// concurrent use.
type Counter struct {
	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter creates a counter. The codec is loaded on first use so that
// constructing a counter never fails.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) getCodec() (tokenizer.Codec, error) {
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(tokenizer.Cl100kBase)
		if c.err != nil {
			c.err = fmt.Errorf("tokens: load cl100k_base codec: %w", c.err)
		}
	})
	return c.codec, c.err
}

// Count returns the token count of one text.
func (c *Counter) Count(text string) (int, error) {
	codec, err := c.getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("tokens: encode: %w", err)
	}
	return len(ids), nil
}

// CountEvidence totals prompt and output tokens across evidence entries.
// Returns nil when the codec is unavailable; token accounting is advisory
// and never fails a run.
func (c *Counter) CountEvidence(evidence []domain.Evidence) map[string]any {
	var promptTokens, outputTokens int
	for _, e := range evidence {
		p, err := c.Count(e.Prompt)
		if err != nil {
			return nil
		}
		o, err := c.Count(e.Output)
		if err != nil {
			return nil
		}
		promptTokens += p
		outputTokens += o
	}
	return map[string]any{
		"encoding":      "cl100k_base",
		"prompt_tokens": promptTokens,
		"output_tokens": outputTokens,
		"total_tokens":  promptTokens + outputTokens,
	}
}
