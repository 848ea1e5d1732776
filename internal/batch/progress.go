package batch

import (
	"slices"
	"time"
)

// Outcome is the result of processing one roster row.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// Stage is the pipeline step a record reached.
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageRender    Stage = "render"
	StageSend      Stage = "send"
)

// RecordStatus tracks a single row. Outcome is empty until the record
// has been processed.
type RecordStatus struct {
	Name     string  `json:"name,omitempty"`
	Email    string  `json:"email,omitempty"`
	Outcome  Outcome `json:"outcome,omitempty"`
	Stage    Stage   `json:"stage,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Artifact string  `json:"artifact,omitempty"`
	Index    int     `json:"index"`
	Row      int     `json:"row"`
}

// Progress is a point-in-time snapshot of a task.
type Progress struct {
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    time.Time      `json:"started_at,omitzero"`
	FinishedAt   time.Time      `json:"finished_at,omitzero"`
	TaskID       string         `json:"task_id"`
	State        State          `json:"state"`
	Cause        string         `json:"cause,omitempty"`
	InputFile    string         `json:"input_file,omitempty"`
	TemplateFile string         `json:"template_file,omitempty"`
	Records      []RecordStatus `json:"records"`
	Total        int            `json:"total"`
	Valid        int            `json:"valid"`
	Completed    int            `json:"completed"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	Skipped      int            `json:"skipped"`
}

// Percent returns how much of the roster has been accounted for, 0..100.
func (p Progress) Percent() int {
	if p.Total == 0 {
		if p.State.IsTerminal() {
			return 100
		}
		return 0
	}
	return (p.Completed + p.Skipped) * 100 / p.Total
}

func (p Progress) clone() Progress {
	p.Records = slices.Clone(p.Records)
	return p
}

// Summary is the final report of a batch.
type Summary struct {
	TaskID    string         `json:"task_id"`
	State     State          `json:"state"`
	Cause     string         `json:"cause,omitempty"`
	Records   []RecordStatus `json:"records"`
	Total     int            `json:"total"`
	Valid     int            `json:"valid"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
}

func summarize(p Progress) Summary {
	return Summary{
		TaskID:    p.TaskID,
		State:     p.State,
		Cause:     p.Cause,
		Records:   slices.Clone(p.Records),
		Total:     p.Total,
		Valid:     p.Valid,
		Succeeded: p.Succeeded,
		Failed:    p.Failed,
		Skipped:   p.Skipped,
	}
}
