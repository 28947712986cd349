package pipeline

import "time"

// Status is the outcome of a step.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Step is one line of the run summary.
type Step struct {
	Name     string
	Target   string
	Status   Status
	Detail   string
	Duration time.Duration
}

// Report collects the steps of one invocation in order.
type Report struct {
	Steps []Step
}

// Failed reports whether any step failed.
func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Reporter is notified as each step finishes.
type Reporter interface {
	StepFinished(Step)
}
