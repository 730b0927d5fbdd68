package domain

import "fmt"

// FetchKind classifies downloader failures.
type FetchKind string

const (
	// FetchNotFound: the remote archive does not exist (404 or another
	// non-retryable client error). Never retried.
	FetchNotFound FetchKind = "not_found"
	// FetchExhausted: transient failures outlasted the retry budget.
	FetchExhausted FetchKind = "exhausted"
	// FetchIOError: a local read/write or rename failed.
	FetchIOError FetchKind = "io_error"
)

// FetchError reports why a download could not produce a complete archive.
type FetchError struct {
	Kind FetchKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractKind classifies extraction failures.
type ExtractKind string

const (
	// ExtractCorrupt: the archive could not be decoded as a gzip tar
	// stream from start to end.
	ExtractCorrupt ExtractKind = "corrupt"
	// ExtractIOError: a write into the destination directory failed.
	ExtractIOError ExtractKind = "io_error"
)

// ExtractError reports why an archive could not be fully unpacked.
// Entries already written before the failure are left in place.
type ExtractError struct {
	Kind    ExtractKind
	Archive string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.Archive, e.Kind, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }
