package workers

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/network"
	"github.com/APTrust/swordv3/platform"
	"github.com/APTrust/swordv3/swordv3"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// StaleEventError means a deposit or poll request no longer
// matches the host's data, usually because the publication was
// edited or unpublished after the request was queued. It is not
// a failure. The job is dropped.
type StaleEventError struct {
	Reason string
}

func (e *StaleEventError) Error() string {
	return "stale request: " + e.Reason
}

// IsStale returns true if err is a StaleEventError.
func IsStale(err error) bool {
	var stale *StaleEventError
	return errors.As(err, &stale)
}

func stale(format string, a ...interface{}) error {
	return &StaleEventError{Reason: fmt.Sprintf(format, a...)}
}

// Assembly is everything assembled for one deposit attempt.
type Assembly struct {
	Publication *models.Publication
	Submission  *models.Submission
	Context     *models.JournalContext
	Service     *models.Service
	Record      *models.DepositRecord
	Object      *swordv3.DepositObject
}

// DepositAssembler builds the DepositObject for a publication from
// the host's current snapshot of it.
type DepositAssembler struct {
	journal  JournalAPI
	registry ServiceRegistry
	records  RecordStore
	galleys  network.GalleyStore
	log      *logging.Logger
}

func NewDepositAssembler(collab *Collaborators) *DepositAssembler {
	return &DepositAssembler{
		journal:  collab.Journal,
		registry: collab.Registry,
		records:  collab.Records,
		galleys:  collab.Galleys,
		log:      collab.MessageLog,
	}
}

// Load fetches and cross-checks the publication, submission,
// context, service and prior deposit record for request. It
// returns a StaleEventError if the request no longer describes a
// published publication of this context, or if the service is
// unknown or disabled.
func (assembler *DepositAssembler) Load(request *models.DepositRequest) (*Assembly, error) {
	publication, err := assembler.journal.GetPublication(request.SubmissionId, request.PublicationId)
	if err != nil {
		return nil, errors.Wrapf(err, "loading publication %d", request.PublicationId)
	}
	if !publication.IsPublished() {
		return nil, stale("publication %d is not published", publication.Id)
	}
	if publication.SubmissionId != request.SubmissionId {
		return nil, stale("publication %d belongs to submission %d, not %d",
			publication.Id, publication.SubmissionId, request.SubmissionId)
	}
	submission, err := assembler.journal.GetSubmission(request.SubmissionId)
	if err != nil {
		return nil, errors.Wrapf(err, "loading submission %d", request.SubmissionId)
	}
	if publication.SubmissionId != submission.Id {
		return nil, stale("publication %d does not belong to submission %d",
			publication.Id, submission.Id)
	}
	if submission.ContextId != request.ContextId {
		return nil, stale("submission %d belongs to context %d, not %d",
			submission.Id, submission.ContextId, request.ContextId)
	}
	journalContext, err := assembler.journal.GetContext(request.ContextId)
	if err != nil {
		return nil, errors.Wrapf(err, "loading context %d", request.ContextId)
	}
	if journalContext.Id != submission.ContextId {
		return nil, stale("context %d does not own submission %d", journalContext.Id, submission.Id)
	}
	service, err := assembler.registry.GetByURL(request.ContextId, request.ServiceURL)
	if err != nil {
		return nil, errors.Wrapf(err, "loading service %s", request.ServiceURL)
	}
	if service == nil {
		return nil, stale("context %d has no service at %s", request.ContextId, request.ServiceURL)
	}
	if !service.Enabled {
		return nil, stale("service %s is disabled: %s", service.URL, service.StatusMessage)
	}
	record, err := assembler.records.GetRecord(publication.Id)
	if err != nil {
		return nil, errors.Wrapf(err, "loading deposit record for publication %d", publication.Id)
	}
	return &Assembly{
		Publication: publication,
		Submission:  submission,
		Context:     journalContext,
		Service:     service,
		Record:      record,
	}, nil
}

// Assemble loads everything for request and builds the deposit
// object, fetching each PDF galley to local disk. The caller must
// pass the assembly to Release when done.
func (assembler *DepositAssembler) Assemble(request *models.DepositRequest) (*Assembly, error) {
	assembly, err := assembler.Load(request)
	if err != nil {
		return nil, err
	}
	object := &swordv3.DepositObject{
		Metadata:  BuildMetadata(assembly.Publication, assembly.Submission, assembly.Context),
		FilePaths: make([]string, 0),
	}
	if assembly.Record.HasStatusDocument() {
		prior, err := swordv3.ParseStatusDocument(assembly.Record.StatusDocument)
		if err != nil {
			assembler.log.Warningf("Ignoring unreadable status document for publication %d: %v",
				assembly.Publication.Id, err)
		} else {
			object.PriorStatus = prior
		}
	}
	assembly.Object = object
	for _, galley := range assembly.Publication.Galleys {
		if galley.MimeType != "" && !isPDFType(galley.MimeType) {
			continue
		}
		localPath, err := assembler.galleys.Fetch(galley)
		if err != nil {
			assembler.Release(assembly)
			return nil, errors.Wrapf(err, "fetching galley %d", galley.Id)
		}
		if galley.MimeType == "" && !assembler.sniffPDF(galley, localPath) {
			assembler.galleys.Release(localPath)
			continue
		}
		object.FilePaths = append(object.FilePaths, localPath)
	}
	return assembly, nil
}

// Release gives back the files Assemble fetched.
func (assembler *DepositAssembler) Release(assembly *Assembly) {
	if assembly == nil || assembly.Object == nil {
		return
	}
	for _, localPath := range assembly.Object.FilePaths {
		if err := assembler.galleys.Release(localPath); err != nil {
			assembler.log.Warningf("Could not release %s: %v", localPath, err)
		}
	}
}

func isPDFType(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	return err == nil && mediaType == constants.MimeTypePDF
}

// sniffPDF checks the content of a galley the host did not give
// a MIME type. Builds without libmagic go by the file extension.
func (assembler *DepositAssembler) sniffPDF(galley models.Galley, localPath string) bool {
	mimeType, err := platform.GuessMimeType(localPath)
	if err != nil {
		assembler.log.Warningf("Cannot determine type of galley %d: %v", galley.Id, err)
		return false
	}
	if mimeType == "" {
		return strings.EqualFold(filepath.Ext(localPath), ".pdf")
	}
	return isPDFType(mimeType)
}

// BuildMetadata maps a publication to Dublin Core terms. The
// document's @id is the publication's landing page.
func BuildMetadata(publication *models.Publication, submission *models.Submission, journalContext *models.JournalContext) *swordv3.MetadataDocument {
	doc := swordv3.NewMetadataDocument(publication.URLPublished)
	creators := make([]string, 0, len(publication.Authors))
	for _, author := range publication.Authors {
		creators = append(creators, author.FullName())
	}
	subjects := append(append([]string{}, publication.Keywords...), publication.Subjects...)
	publisher := journalContext.Publisher
	if strings.TrimSpace(publisher) == "" {
		publisher = journalContext.Name
	}

	doc.Set("dc:title", publication.Title)
	doc.Set("dc:creator", strings.Join(creators, "; "))
	doc.Set("dc:description", htmlToText(publication.Abstract))
	doc.Set("dc:date", formatDate(publication.DatePublished, "2006-01-02"))
	doc.Set("dcterms:dateSubmitted", formatDate(submission.DateSubmitted, constants.DepositDateFormat))
	doc.Set("dcterms:modified", formatDate(publication.LastModified, constants.DepositDateFormat))
	doc.Set("dc:identifier", publication.DOI)
	doc.Set("dcterms:publisher", publisher)
	doc.Set("dc:subject", strings.Join(subjects, "; "))
	doc.Set("dc:contributor.sponsor", publication.Sponsor)
	doc.Set("dc:coverage", publication.Coverage)
	doc.Set("dc:type", publication.Type)
	doc.Set("dc:source", publication.Source)
	doc.Set("dc:language", publication.Locale)
	doc.Set("dc:rights", rightsStatement(publication))
	doc.Set("dcterms:license", publication.LicenseURL)
	return doc
}

func rightsStatement(publication *models.Publication) string {
	holder := strings.TrimSpace(publication.CopyrightHolder)
	year := strings.TrimSpace(publication.CopyrightYear)
	if holder != "" && year != "" {
		return fmt.Sprintf("Copyright (c) %s %s", year, holder)
	}
	return holder
}

var hostDateLayouts = []string{
	constants.DepositDateFormat,
	"2006-01-02",
	time.RFC3339,
}

// formatDate reformats a host date into layout. Dates we cannot
// parse are passed through unchanged.
func formatDate(value, layout string) string {
	value = strings.TrimSpace(value)
	for _, hostLayout := range hostDateLayouts {
		if t, err := time.Parse(hostLayout, value); err == nil {
			return t.Format(layout)
		}
	}
	return value
}

// htmlToText returns the text content of an HTML fragment, with
// block-level elements separated by newlines.
func htmlToText(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var text strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() != io.EOF {
				return strings.TrimSpace(fragment)
			}
			return strings.TrimSpace(text.String())
		case html.TextToken:
			text.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "p", "br", "div", "li":
				if text.Len() > 0 && !strings.HasSuffix(text.String(), "\n") {
					text.WriteString("\n")
				}
			}
		}
	}
}

func parseRecordStatus(record *models.DepositRecord) (*swordv3.StatusDocument, error) {
	return swordv3.ParseStatusDocument(record.StatusDocument)
}
