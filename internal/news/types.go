// Package news defines core types shared across subsystems.
package news

import (
	"time"
)

// KST is the fixed +09:00 zone every publish timestamp is normalized to.
var KST = time.FixedZone("KST", 9*60*60)

// RunStatus classifies the outcome of one collection run.
type RunStatus string

// Run status values reported by the control surface and the summary publisher.
const (
	RunSuccess RunStatus = "success"
	RunWarning RunStatus = "warning"
	RunError   RunStatus = "error"
)

// RawItem is one entry of the search API's items array, untouched.
type RawItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// Article is one collected news item ready for persistence. PublishedAt is
// always in KST; the store splits it into pub_date and pub_time columns.
type Article struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Section     string    `json:"section"`
	Keyword     string    `json:"keyword"`
	PublishedAt time.Time `json:"published_at"`
}

// SectionResult reports one section's outcome within a run.
type SectionResult struct {
	Section  string `json:"section"`
	Inserted int    `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

// Summary is returned by a collection run and published when a topic is set.
// Error is set when the run itself failed before reaching its sections.
type Summary struct {
	RunID      string          `json:"run_id"`
	TargetDate time.Time       `json:"target_date"`
	Sections   []SectionResult `json:"sections"`
	Total      int             `json:"total"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Error      string          `json:"error,omitempty"`
}

// Status derives the run outcome: error if the run failed or any section
// failed to persist, warning if the run finished clean but produced nothing
// new.
func (s Summary) Status() RunStatus {
	if s.Error != "" {
		return RunError
	}
	for _, sec := range s.Sections {
		if sec.Error != "" {
			return RunError
		}
	}
	if s.Total == 0 {
		return RunWarning
	}
	return RunSuccess
}
