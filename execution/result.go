package execution

import (
	"time"

	"github.com/testwise/runcore/evidence"
)

// TestExecutionResult is the single outcome type callers receive from the
// coordinator. Every exit, including internal failures, is expressed here
// rather than as a returned error.
type TestExecutionResult struct {
	Success          bool            `json:"success"`
	Status           evidence.Status `json:"status"`
	Logs             string          `json:"logs"`
	VideoURL         string          `json:"video_url,omitempty"`
	ImageURLs        []string        `json:"image_urls,omitempty"`
	DatabaseFileURLs []string        `json:"database_file_urls,omitempty"`
	APIFileURLs      []string        `json:"api_file_urls,omitempty"`
	ExecutionTime    time.Duration   `json:"execution_time"`
}
