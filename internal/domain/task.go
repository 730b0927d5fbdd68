package domain

import (
	"fmt"
	"path/filepath"
	"time"
)

// ArchiveName returns the file name a yearly archive is published under.
func ArchiveName(year int) string {
	return fmt.Sprintf("%d.tar.gz", year)
}

// YearTask holds every path and URL needed to process one requested year.
// Immutable once constructed.
type YearTask struct {
	Year        int
	RemoteURL   string
	ArchivePath string // canonical location for a downloaded archive
	ExtractDir  string // flat scratch space for extracted entries
	RestDir     string // ExtractDir is renamed here after classification
	OutputRoot  string // per-state tree grows under here
}

// NewYearTask lays out one year's working subdirectory beneath root.
// Each year gets a distinct subtree so years never collide.
func NewYearTask(year int, baseURL, root string) YearTask {
	name := ArchiveName(year)
	yearDir := filepath.Join(root, fmt.Sprint(year))
	return YearTask{
		Year:        year,
		RemoteURL:   baseURL + name,
		ArchivePath: filepath.Join(yearDir, name),
		ExtractDir:  filepath.Join(yearDir, "stations-all"),
		RestDir:     filepath.Join(yearDir, "stations-rest"),
		OutputRoot:  filepath.Join(yearDir, "stations-us"),
	}
}

// TransferState describes how much of a download is already on disk.
// Derived from the filesystem each run; the partial file's size is the
// only persisted state.
type TransferState struct {
	ExpectedTotal int64 // -1 when the remote size is unknown
	BytesOnDisk   int64
	Complete      bool
}

// ClassificationSummary counts the outcome of routing one year's files.
type ClassificationSummary struct {
	Moved   int `json:"moved"`
	Skipped int `json:"skipped"`
}

// Stage names the pipeline step a year was in when it finished or failed.
type Stage string

const (
	StagePending        Stage = "pending"
	StageLocalCopyCheck Stage = "local_copy_check"
	StageDownloading    Stage = "downloading"
	StageExtracting     Stage = "extracting"
	StageClassifying    Stage = "classifying"
	StageDone           Stage = "done"
)

// YearResult records the outcome of one year's run for the batch summary
// and, when publishing is enabled, the events topic.
type YearResult struct {
	Year            int                   `json:"year"`
	Succeeded       bool                  `json:"succeeded"`
	Stage           Stage                 `json:"stage"`
	SkippedDownload bool                  `json:"skipped_download"`
	ArchivePath     string                `json:"archive_path,omitempty"`
	Extracted       int                   `json:"extracted"`
	Classification  ClassificationSummary `json:"classification"`
	Error           string                `json:"error,omitempty"`
	Duration        time.Duration         `json:"duration_ns"`
}

// BatchSummary aggregates the whole run. The batch always completes for
// every requested year; failures are recorded, never propagated.
type BatchSummary struct {
	Results []YearResult
}

// Failed returns the years that did not reach Done.
func (s BatchSummary) Failed() []int {
	var years []int
	for _, r := range s.Results {
		if !r.Succeeded {
			years = append(years, r.Year)
		}
	}
	return years
}
