package models

import (
	"encoding/json"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/util"
	"time"
)

// DepositRecord is what we know about one publication's deposit:
// when we last talked to the server, the canonical SWORD state it
// reported, and the raw status document it returned. The three
// fields are always written together.
type DepositRecord struct {
	PublicationId  int64           `json:"publicationId"`
	SubmissionId   int64           `json:"submissionId"`
	ContextId      int64           `json:"contextId"`
	ServiceURL     string          `json:"serviceUrl"`
	DateDeposited  string          `json:"dateDeposited"`
	State          string          `json:"state"`
	StatusDocument json.RawMessage `json:"statusDocument,omitempty"`
}

// NewDepositRecord returns a record stamped with the current
// UTC time in constants.DepositDateFormat.
func NewDepositRecord(request *DepositRequest, state string, statusDocument []byte) *DepositRecord {
	raw := make(json.RawMessage, len(statusDocument))
	copy(raw, statusDocument)
	return &DepositRecord{
		PublicationId:  request.PublicationId,
		SubmissionId:   request.SubmissionId,
		ContextId:      request.ContextId,
		ServiceURL:     request.ServiceURL,
		DateDeposited:  time.Now().UTC().Format(constants.DepositDateFormat),
		State:          state,
		StatusDocument: raw,
	}
}

// HasStatusDocument returns true if a previous attempt stored a
// status document, which means the next deposit is a replace.
func (record *DepositRecord) HasStatusDocument() bool {
	return record != nil && len(record.StatusDocument) > 0
}

// IsInProgress returns true if the recorded state is not terminal.
func (record *DepositRecord) IsInProgress() bool {
	return record != nil && util.StringListContains(constants.InProgressStates, record.State)
}

// DepositRequest is the body of the NSQ messages on the deposit
// and progress topics.
type DepositRequest struct {
	PublicationId int64  `json:"publicationId"`
	SubmissionId  int64  `json:"submissionId"`
	ContextId     int64  `json:"contextId"`
	ServiceURL    string `json:"serviceUrl"`
}

// DepositCounts summarizes deposit records for one context.
type DepositCounts struct {
	Deposited    int `json:"deposited"`
	Rejected     int `json:"rejected"`
	Deleted      int `json:"deleted"`
	Unknown      int `json:"unknown"`
	NotDeposited int `json:"notDeposited"`
}

// Add counts one record. A nil record is a publication that
// has never been deposited.
func (counts *DepositCounts) Add(record *DepositRecord) {
	switch {
	case record == nil:
		counts.NotDeposited++
	case util.StringListContains(constants.SuccessStates, record.State):
		counts.Deposited++
	case record.State == constants.StateRejected:
		counts.Rejected++
	case record.State == constants.StateDeleted:
		counts.Deleted++
	default:
		counts.Unknown++
	}
}
