package network

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/op/go-logging"
	"github.com/satori/go.uuid"
	"html"
	"strings"
	"time"
)

// ContextLookup supplies the journal data a notification needs.
// JournalClient implements it.
type ContextLookup interface {
	GetContext(contextId int64) (*models.JournalContext, error)
	GetSiteAdmins() ([]models.User, error)
}

// Publisher puts a message on an NSQ topic. NSQClient implements it.
type Publisher interface {
	Enqueue(topic string, body interface{}) error
}

// Notifier tells a journal's staff that deposits to one of its
// services have stopped. Mail delivery belongs to the host
// application, which consumes the notify topic.
type Notifier struct {
	journal             ContextLookup
	publisher           Publisher
	settingsURLTemplate string
	log                 *logging.Logger
}

func NewNotifier(journal ContextLookup, publisher Publisher, settingsURLTemplate string, log *logging.Logger) *Notifier {
	return &Notifier{
		journal:             journal,
		publisher:           publisher,
		settingsURLTemplate: settingsURLTemplate,
		log:                 log,
	}
}

// Recipients returns the journal's managers. If it has none, it
// returns the support contact, and failing that, the site admins.
func (notifier *Notifier) Recipients(journalContext *models.JournalContext) ([]models.User, error) {
	managers := make([]models.User, 0, len(journalContext.Managers))
	for _, manager := range journalContext.Managers {
		if manager.Email != "" {
			managers = append(managers, manager)
		}
	}
	if len(managers) > 0 {
		return managers, nil
	}
	if journalContext.SupportEmail != "" {
		return []models.User{{Name: journalContext.SupportName, Email: journalContext.SupportEmail}}, nil
	}
	return notifier.journal.GetSiteAdmins()
}

// ServiceDisabled publishes a "deposits stopped" notification for
// service, with reason as the error shown to the reader. If nobody
// can be found to notify, it logs a critical message and returns
// nil for both values.
func (notifier *Notifier) ServiceDisabled(service *models.Service, reason string) (*models.Notification, error) {
	journalContext, err := notifier.journal.GetContext(service.ContextId)
	if err != nil {
		return nil, fmt.Errorf("Cannot load context %d for notification: %v", service.ContextId, err)
	}
	recipients, err := notifier.Recipients(journalContext)
	if err != nil {
		return nil, fmt.Errorf("Cannot find notification recipients: %v", err)
	}
	if len(recipients) == 0 {
		notifier.log.Critical("No one to notify that deposits to %s stopped for context %d: %s",
			service.URL, service.ContextId, reason)
		return nil, nil
	}
	notification := &models.Notification{
		Id:         uuid.NewV4().String(),
		ContextId:  service.ContextId,
		Recipients: recipients,
		Subject:    fmt.Sprintf("Deposits stopped: %s (%s)", service.Name, journalContext.Name),
		Body:       notifier.body(journalContext, service, reason),
		CreatedAt:  time.Now().UTC(),
	}
	if err := notifier.publisher.Enqueue(constants.TopicNotify, notification); err != nil {
		return nil, err
	}
	notifier.log.Infof("Queued notification %s to %d recipient(s) for context %d",
		notification.Id, len(recipients), service.ContextId)
	return notification, nil
}

func (notifier *Notifier) body(journalContext *models.JournalContext, service *models.Service, reason string) string {
	paragraphs := []string{
		fmt.Sprintf("A problem occurred while depositing publications from %s to %s (%s).",
			html.EscapeString(journalContext.Name), html.EscapeString(service.Name),
			html.EscapeString(service.URL)),
		fmt.Sprintf("<strong>%s</strong>", html.EscapeString(reason)),
	}
	settingsURL := ""
	if notifier.settingsURLTemplate != "" {
		settingsURL = fmt.Sprintf(notifier.settingsURLTemplate, journalContext.Path)
	}
	if settingsURL != "" {
		paragraphs = append(paragraphs, fmt.Sprintf("Deposits to this service have been stopped. "+
			`Correct the problem in the <a href="%s">deposit settings</a> to resume deposits.`,
			html.EscapeString(settingsURL)))
	} else {
		paragraphs = append(paragraphs, "Deposits to this service have been stopped. "+
			"Correct the problem in the deposit settings to resume deposits.")
	}
	paragraphs = append(paragraphs,
		fmt.Sprintf("You are receiving this email because you manage %s.",
			html.EscapeString(journalContext.Name)),
		"This is an automated message from the SWORDv3 deposit service.")
	return "<p>" + strings.Join(paragraphs, "</p><p>") + "</p>"
}
