package processing

import (
	"fmt"
	"regexp"

	"github.com/teilomillet/mdconvert/config"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Transformer applies the conversion passes configured at construction time.
// It holds no per-call state, so one value can serve concurrent requests.
type Transformer struct {
	markdown       goldmark.Markdown
	sourcePatterns []*regexp.Regexp
	resetOnHeading bool
}

// NewTransformer builds a Transformer from the conversion settings.
// It fails if any source pattern does not compile.
func NewTransformer(cfg config.ConvertConfig) (Transformer, error) {
	patterns, err := cfg.CompiledSourcePatterns()
	if err != nil {
		return Transformer{}, fmt.Errorf("compile source patterns: %w", err)
	}

	return Transformer{
		markdown:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
		sourcePatterns: patterns,
		resetOnHeading: cfg.ResetOnHeading,
	}, nil
}

// Transform runs the requested passes over text. Source markers are removed
// first so that numbering is computed on the final layout.
func (t Transformer) Transform(text string, opts Options) Result {
	res := Result{Text: text}

	if opts.RemoveSource {
		res.Text, res.SourcesRemoved = t.stripSources(res.Text)
	}
	if opts.AutoNumber {
		res.Text, res.Numbered = t.renumber(res.Text)
	}

	return res
}

var defaultTransformer = mustTransformer(config.DefaultConvertConfig())

func mustTransformer(cfg config.ConvertConfig) Transformer {
	t, err := NewTransformer(cfg)
	if err != nil {
		panic(err)
	}
	return t
}

// Transform converts text with the default settings.
func Transform(text string, autoNumber, removeSource bool) string {
	return defaultTransformer.Transform(text, Options{
		AutoNumber:   autoNumber,
		RemoveSource: removeSource,
	}).Text
}
