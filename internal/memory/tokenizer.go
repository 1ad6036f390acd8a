package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer measures text in model tokens.
type Tokenizer interface {
	Count(text string) int
	// Truncate returns the longest prefix of text that Count measures as at most max tokens.
	Truncate(text string, max int) string
}

const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// TiktokenTokenizer counts with a BPE encoding bundled into the binary,
// so no network fetch happens at startup.
type TiktokenTokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		// maybe a model name rather than an encoding
		enc, err = tiktoken.EncodingForModel(encoding)
		if err != nil {
			return nil, fmt.Errorf("tokenizer: unknown encoding %q: %w", encoding, err)
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.EncodeOrdinary(text))
}

func (t *TiktokenTokenizer) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	t.mu.Lock()
	ids := t.enc.EncodeOrdinary(text)
	if len(ids) <= max {
		t.mu.Unlock()
		return text
	}
	out := t.enc.Decode(ids[:max])
	t.mu.Unlock()

	// A cut inside a multi-byte rune can re-encode longer; shave until it fits.
	out = strings.ToValidUTF8(out, "")
	for out != "" && t.Count(out) > max {
		r := []rune(out)
		out = string(r[:len(r)-1])
	}
	return strings.TrimSpace(out)
}
