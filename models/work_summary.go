package models

import (
	"fmt"
	"strings"
	"time"
)

// WorkSummary records the outcome of one attempt to process a
// deposit or poll message.
type WorkSummary struct {
	// This is set to true when the worker starts on the message.
	Attempted bool

	// AttemptNumber is copied from NsqMessage.Attempts and starts
	// at one. This is uint16 to match that field.
	AttemptNumber uint16

	// This will be set to true if an error is fatal. In that
	// case, we should not requeue the message.
	ErrorIsFatal bool

	// Errors is a list of strings describing errors that occurred
	// during the attempt.
	Errors []string

	// Warnings are problems that did not stop the attempt,
	// such as a skipped file append or a rejected object.
	Warnings []string

	// StartedAt describes when the attempt started.
	StartedAt time.Time

	// FinishedAt describes when the attempt completed. The attempt
	// may have completed without succeeding. Check Succeeded().
	FinishedAt time.Time

	// Retry indicates whether a failed attempt should be requeued.
	// Transient errors, such as connection failures, leave this
	// true. Misconfiguration and other fatal errors set it false.
	Retry bool
}

func NewWorkSummary() *WorkSummary {
	return &WorkSummary{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
		Retry:    true,
	}
}

func (summary *WorkSummary) Start() {
	summary.Attempted = true
	summary.StartedAt = time.Now().UTC()
}

func (summary *WorkSummary) Started() bool {
	return !summary.StartedAt.IsZero()
}

func (summary *WorkSummary) Finish() {
	summary.FinishedAt = time.Now().UTC()
}

func (summary *WorkSummary) Finished() bool {
	return !summary.FinishedAt.IsZero()
}

func (summary *WorkSummary) RunTime() time.Duration {
	startTime := summary.StartedAt
	if startTime.IsZero() {
		return time.Duration(0)
	}
	endTime := summary.FinishedAt
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return endTime.Sub(startTime)
}

func (summary *WorkSummary) Succeeded() bool {
	return summary.Finished() && len(summary.Errors) == 0
}

func (summary *WorkSummary) AddError(format string, a ...interface{}) {
	summary.Errors = append(summary.Errors, fmt.Sprintf(format, a...))
}

func (summary *WorkSummary) AddWarning(format string, a ...interface{}) {
	summary.Warnings = append(summary.Warnings, fmt.Sprintf(format, a...))
}

func (summary *WorkSummary) ClearErrors() {
	summary.ErrorIsFatal = false
	summary.Errors = make([]string, 0)
	summary.Warnings = make([]string, 0)
}

func (summary *WorkSummary) HasErrors() bool {
	return len(summary.Errors) > 0
}

func (summary *WorkSummary) FirstError() string {
	firstError := ""
	if len(summary.Errors) > 0 {
		firstError = summary.Errors[0]
	}
	return firstError
}

func (summary *WorkSummary) AllErrorsAsString() string {
	if len(summary.Errors) > 0 {
		return strings.Join(summary.Errors, "\n")
	}
	return ""
}
