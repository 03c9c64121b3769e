package models

import (
	"time"
)

// Notification is an email the deposit workers want sent. It is
// published to the notify topic and delivered by the host's mail
// system.
type Notification struct {
	Id         string    `json:"id"`
	ContextId  int64     `json:"contextId"`
	Recipients []User    `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}
