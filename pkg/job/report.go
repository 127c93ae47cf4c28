package job

import (
	"encoding/json"
	"io"
	"time"

	"github.com/platinummonkey/eventlens/pkg/aggregation"
	"github.com/platinummonkey/eventlens/pkg/events"
	"github.com/platinummonkey/eventlens/pkg/funnel"
)

// Report is the JSON output of one job run
type Report struct {
	RunID      string                    `json:"run_id"`
	Job        string                    `json:"job,omitempty"`
	StartedAt  time.Time                 `json:"started_at"`
	DurationMS int64                     `json:"duration_ms"`
	Records    int                       `json:"records"`
	Events     int                       `json:"events"`
	Errors     []*events.ValidationError `json:"errors"`
	Warnings   []*events.ValidationError `json:"warnings"`
	Duplicates int                       `json:"duplicates"`
	Metrics    []*aggregation.Result     `json:"metrics"`
	Funnels    []*funnel.Result          `json:"funnels"`
}

// Rejected returns the number of rejected records
func (r *Report) Rejected() int {
	return len(r.Errors)
}

// WriteJSON writes the report as indented JSON. Empty sections are rendered
// as empty arrays rather than null.
func (r *Report) WriteJSON(w io.Writer) error {
	out := *r
	if out.Errors == nil {
		out.Errors = []*events.ValidationError{}
	}
	if out.Warnings == nil {
		out.Warnings = []*events.ValidationError{}
	}
	if out.Metrics == nil {
		out.Metrics = []*aggregation.Result{}
	}
	if out.Funnels == nil {
		out.Funnels = []*funnel.Result{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}
