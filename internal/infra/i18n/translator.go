package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"gopkg.in/yaml.v3"

	"bedrock-chatbot/internal/domain"
)

//go:embed locales
var LocalesFS embed.FS

const DefaultLang = "en"

type Translator struct {
	translations map[string]string
}

func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", langCode+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return newTranslatorFromBytes(data)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

var (
	defaultOnce sync.Once
	defaultTr   *Translator
)

// Default returns the embedded English translator.
func Default() *Translator {
	defaultOnce.Do(func() {
		tr, err := NewTranslator(LocalesFS, DefaultLang)
		if err != nil {
			tr = &Translator{translations: map[string]string{}}
		}
		defaultTr = tr
	})
	return defaultTr
}

// T returns the text for key, or key itself when missing.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// ErrorKey picks the message key shown to users for a failed turn.
func ErrorKey(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return "error.invalid"
	case errors.Is(err, domain.ErrSessionBusy):
		return "error.busy"
	case errors.Is(err, domain.ErrNotFound):
		return "error.not_found"
	case errors.Is(err, domain.ErrMemorySummarization):
		return "error.summarization"
	case errors.Is(err, domain.ErrAuthentication):
		return "error.auth"
	case errors.Is(err, domain.ErrRequestTimeout):
		return "error.timeout"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "error.unavailable"
	default:
		return "error.internal"
	}
}
