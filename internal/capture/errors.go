package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL marks a submission that is unparseable or not http/https.
	ErrInvalidURL = errors.New("invalid url")
	// ErrDuplicate marks a submission whose normalized URL is already recorded.
	ErrDuplicate = errors.New("duplicate capture")
	// ErrScrapeChainExhausted marks a capture whose every extraction strategy failed.
	ErrScrapeChainExhausted = errors.New("scrape chain exhausted")
	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("capture not found")
)

// DuplicateError carries the ID of the record that already owns the URL.
type DuplicateError struct {
	URL        string
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("url %s already captured as %s", e.URL, e.ExistingID)
}

// Unwrap lets errors.Is match ErrDuplicate.
func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}
