package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
)

func TestPrintSummary(t *testing.T) {
	summary := domain.BatchSummary{Results: []domain.YearResult{
		{
			Year:           2010,
			Succeeded:      true,
			Stage:          domain.StageDone,
			Extracted:      1200,
			Classification: domain.ClassificationSummary{Moved: 900, Skipped: 300},
			Duration:       90 * time.Second,
		},
		{
			Year:  2011,
			Stage: domain.StageDownloading,
			Error: "fetch https://example.test/2011.tar.gz: retry budget exhausted",
		},
	}}

	var sb strings.Builder
	printSummary(&sb, summary)
	out := sb.String()

	assert.Contains(t, out, "YEAR")
	assert.Contains(t, out, "2010")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "retry budget exhausted")
}
