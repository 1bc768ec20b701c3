package storage

import "fmt"

// TopKLimitError reports a top-k request exceeding a backend's limit.
// Limits fail loud rather than truncating silently.
type TopKLimitError struct {
	Requested int
	Limit     int
}

func (e *TopKLimitError) Error() string {
	return fmt.Sprintf("top-k %d exceeds backend limit %d", e.Requested, e.Limit)
}

// UnknownIndexError reports a request for a vector index the store does
// not carry.
type UnknownIndexError struct {
	Name string
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("unknown vector index %q", e.Name)
}

// MetadataLimitError reports a metadata filter exceeding a backend's tag
// limit.
type MetadataLimitError struct {
	Count int
	Limit int
}

func (e *MetadataLimitError) Error() string {
	return fmt.Sprintf("metadata filter with %d tags exceeds backend limit %d", e.Count, e.Limit)
}
