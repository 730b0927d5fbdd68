package main

import (
	"log/slog"
	"sync"
)

// logEveryBytes throttles transfer logging; yearly archives run to
// multiple gigabytes.
const logEveryBytes int64 = 100 << 20

// logProgress reports download progress through the process logger.
// It implements fetch.ProgressSink.
type logProgress struct {
	logger *slog.Logger

	mu          sync.Mutex
	url         string
	total       int64
	transferred int64
	lastLogged  int64
}

func newLogProgress(logger *slog.Logger) *logProgress {
	return &logProgress{logger: logger}
}

func (p *logProgress) Start(url string, resumedFrom, total int64) {
	p.mu.Lock()
	p.url, p.total, p.transferred, p.lastLogged = url, total, resumedFrom, resumedFrom
	p.mu.Unlock()

	if resumedFrom > 0 {
		p.logger.Info("resuming download", "url", url, "from_bytes", resumedFrom, "total_bytes", total)
		return
	}
	p.logger.Info("starting download", "url", url, "total_bytes", total)
}

func (p *logProgress) Advance(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.transferred += n
	if p.transferred-p.lastLogged < logEveryBytes {
		return
	}
	p.lastLogged = p.transferred
	p.logger.Info("downloading", "url", p.url, "bytes", p.transferred, "total_bytes", p.total)
}

func (p *logProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Info("transfer finished", "url", p.url, "bytes", p.transferred)
}
