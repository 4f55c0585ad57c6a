// Package processing implements the markdown transformation behind the
// conversion endpoint: ordered-list auto-numbering and removal of source
// citation markers.
package processing

// Options selects the passes applied by Transform.
type Options struct {
	// AutoNumber renumbers ordered list items sequentially from 1
	AutoNumber bool

	// RemoveSource strips citation markers such as 【4:0†source】
	RemoveSource bool
}

// Result is the outcome of a single Transform call.
type Result struct {
	// Text is the transformed markdown
	Text string

	// Numbered is the count of ordered list items that received a number
	Numbered int

	// SourcesRemoved is the count of citation markers deleted
	SourcesRemoved int
}
