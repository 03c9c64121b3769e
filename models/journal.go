package models

import (
	"github.com/APTrust/swordv3/constants"
)

// The types in this file are snapshots of host application records,
// fetched from the journal REST API when a deposit or poll runs.
// Localized fields have already been resolved to the context's
// primary locale by the time they reach us.

type Author struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

// FullName returns "Given Family", or whichever part is present.
func (author Author) FullName() string {
	if author.GivenName == "" {
		return author.FamilyName
	}
	if author.FamilyName == "" {
		return author.GivenName
	}
	return author.GivenName + " " + author.FamilyName
}

type Galley struct {
	Id       int64  `json:"id"`
	Label    string `json:"label"`
	Locale   string `json:"locale"`
	MimeType string `json:"mimetype"`
	FileName string `json:"name"`
	// FilePath is relative to the host's files directory,
	// or the object key when galleys live in S3.
	FilePath string `json:"path"`
}

type Publication struct {
	Id              int64    `json:"id"`
	SubmissionId    int64    `json:"submissionId"`
	Status          int      `json:"status"`
	Title           string   `json:"title"`
	Abstract        string   `json:"abstract"`
	Authors         []Author `json:"authors"`
	DatePublished   string   `json:"datePublished"`
	LastModified    string   `json:"lastModified"`
	DOI             string   `json:"doi"`
	Keywords        []string `json:"keywords"`
	Subjects        []string `json:"subjects"`
	Sponsor         string   `json:"sponsor"`
	Coverage        string   `json:"coverage"`
	Type            string   `json:"type"`
	Source          string   `json:"source"`
	Locale          string   `json:"locale"`
	CopyrightHolder string   `json:"copyrightHolder"`
	CopyrightYear   string   `json:"copyrightYear"`
	LicenseURL      string   `json:"licenseUrl"`
	URLPublished    string   `json:"urlPublished"`
	Galleys         []Galley `json:"galleys"`
}

// IsPublished returns true if the host considers this version
// of the publication published.
func (publication *Publication) IsPublished() bool {
	return publication.Status == constants.PublicationStatusPublished
}

type Submission struct {
	Id            int64  `json:"id"`
	ContextId     int64  `json:"contextId"`
	DateSubmitted string `json:"dateSubmitted"`
}

type User struct {
	Id    int64  `json:"id"`
	Name  string `json:"fullName"`
	Email string `json:"email"`
}

// JournalContext is the organizational context (journal) that
// owns services and publications.
type JournalContext struct {
	Id           int64  `json:"id"`
	Path         string `json:"urlPath"`
	Name         string `json:"name"`
	Publisher    string `json:"publisherInstitution"`
	SupportName  string `json:"supportName"`
	SupportEmail string `json:"supportEmail"`
	Managers     []User `json:"managers"`
}
