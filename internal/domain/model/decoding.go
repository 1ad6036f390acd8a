package model

import (
	"fmt"

	"bedrock-chatbot/internal/domain"
)

// DecodingConfig holds the generation parameters sent with every model call.
// It is a value type: pass it by value and never mutate a shared copy.
type DecodingConfig struct {
	MaxTokens    int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature  float64 `yaml:"temperature" json:"temperature"`
	TopP         float64 `yaml:"top_p" json:"top_p"`
	StopSequence string  `yaml:"stop_sequence" json:"stop_sequence"`
}

// DefaultDecoding is the fixed configuration the chatbot ships with.
func DefaultDecoding() DecodingConfig {
	return DecodingConfig{
		MaxTokens:    300,
		Temperature:  0.1,
		TopP:         0.9,
		StopSequence: "\n\nHuman:",
	}
}

func (d DecodingConfig) Validate() error {
	if d.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", domain.ErrInvalidArgument, d.MaxTokens)
	}
	if d.Temperature < 0 || d.Temperature > 1 {
		return fmt.Errorf("%w: temperature must be in [0,1], got %v", domain.ErrInvalidArgument, d.Temperature)
	}
	if d.TopP < 0 || d.TopP > 1 {
		return fmt.Errorf("%w: top_p must be in [0,1], got %v", domain.ErrInvalidArgument, d.TopP)
	}
	return nil
}

// StopSequences returns the stop sequence in the list form most providers expect.
func (d DecodingConfig) StopSequences() []string {
	if d.StopSequence == "" {
		return nil
	}
	return []string{d.StopSequence}
}
