package fetch

// ProgressSink receives transfer notifications. It is informational only:
// the fetcher never consults it for control decisions.
type ProgressSink interface {
	// Start announces a transfer. resumedFrom is the byte offset already
	// on disk; total is the remote size, or -1 when unknown.
	Start(url string, resumedFrom, total int64)
	// Advance reports n freshly transferred bytes.
	Advance(n int64)
	// Done marks the end of the transfer, successful or not.
	Done()
}

// NopSink discards all progress notifications.
type NopSink struct{}

func (NopSink) Start(string, int64, int64) {}
func (NopSink) Advance(int64)              {}
func (NopSink) Done()                      {}
