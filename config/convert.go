package config

import (
	"fmt"
	"regexp"
)

// DefaultSourcePatterns match the citation annotations chat assistants leave in
// copied answers, e.g. 【4:0†source】 or 【12†report.pdf】, along with the
// spaces or tabs in front of them.
var DefaultSourcePatterns = []string{
	`[ \t]*【[^【】\n]*†[^【】\n]*】`,
	`[ \t]*【\s*(?i:source)[^【】\n]*】`,
}

// ConvertConfig defines how the markdown conversion behaves.
type ConvertConfig struct {
	// MaxTextLength is the largest accepted text, counted in UTF-16 code units
	MaxTextLength int `yaml:"max_text_length"`

	// MaxBodyBytes caps the raw request body read from the wire
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// ResetOnHeading restarts list numbering after every heading
	ResetOnHeading bool `yaml:"reset_on_heading"`

	// SourcePatterns are the regular expressions removed when removeSource is set
	SourcePatterns []string `yaml:"source_patterns"`
}

// DefaultConvertConfig returns the conversion defaults.
func DefaultConvertConfig() ConvertConfig {
	patterns := make([]string, len(DefaultSourcePatterns))
	copy(patterns, DefaultSourcePatterns)

	return ConvertConfig{
		MaxTextLength:  DefaultMaxTextLength,
		MaxBodyBytes:   1 << 20,
		ResetOnHeading: true,
		SourcePatterns: patterns,
	}
}

// Validate checks the conversion limits and that every pattern compiles.
func (c ConvertConfig) Validate() error {
	if c.MaxTextLength <= 0 {
		return fmt.Errorf("max text length must be positive: %d", c.MaxTextLength)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive: %d", c.MaxBodyBytes)
	}
	if _, err := compilePatterns(c.SourcePatterns); err != nil {
		return err
	}
	return nil
}

// CompiledSourcePatterns returns the compiled form of SourcePatterns.
func (c ConvertConfig) CompiledSourcePatterns() ([]*regexp.Regexp, error) {
	return compilePatterns(c.SourcePatterns)
}
