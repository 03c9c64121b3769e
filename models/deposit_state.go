package models

import (
	"github.com/nsqio/go-nsq"
)

// DepositState tracks one deposit or poll job while a worker
// processes it.
type DepositState struct {
	// NSQMessage is the NSQ message being processed. Not serialized
	// because it will change each time we try to process a request.
	NSQMessage *nsq.Message `json:"-"`
	// Request is the decoded message body.
	Request *DepositRequest
	// Stage is the last stage of the deposit state machine
	// this job entered. See constants.StageTypes.
	Stage string
	// Summary contains information about the outcome of the
	// attempt.
	Summary *WorkSummary
	// Record is the last deposit record this job saved.
	Record *DepositRecord
	// ServiceDisabled is true if this attempt disabled the service.
	ServiceDisabled bool
}

// NewDepositState creates a new DepositState object with an empty
// WorkSummary.
func NewDepositState(message *nsq.Message, request *DepositRequest) *DepositState {
	return &DepositState{
		NSQMessage: message,
		Request:    request,
		Summary:    NewWorkSummary(),
	}
}
