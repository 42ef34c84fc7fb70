package service

import (
	"context"
	"time"

	"github.com/raaihank/redactor/internal/options"
)

// Request is the body of POST /api/anonymize
type Request struct {
	Text    string      `json:"text"`
	Options options.Set `json:"options"`
}

// Replacement describes one substitution the service applied
type Replacement struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// Response is a successful anonymization result
type Response struct {
	AnonymizedText string        `json:"anonymized_text"`
	Replacements   []Replacement `json:"replacements,omitempty"`
}

// Anonymizer submits one request to the anonymization service
type Anonymizer interface {
	Anonymize(ctx context.Context, req Request) (*Response, error)
}

// Config contains the service endpoint configuration
type Config struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}
