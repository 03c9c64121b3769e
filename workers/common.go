package workers

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/context"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/network"
	"github.com/APTrust/swordv3/swordv3"
	"github.com/nsqio/go-nsq"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	stdlog "log"
	"time"
)

// Creates and returns an NSQ consumer for a worker process.
func CreateNsqConsumer(config *models.Config, workerConfig *models.WorkerConfig) (*nsq.Consumer, error) {
	nsqConfig := nsq.NewConfig()
	nsqConfig.Set("max_in_flight", workerConfig.MaxInFlight)
	nsqConfig.Set("heartbeat_interval", workerConfig.HeartbeatInterval)
	nsqConfig.Set("max_attempts", workerConfig.MaxAttempts)
	nsqConfig.Set("read_timeout", workerConfig.ReadTimeout)
	nsqConfig.Set("write_timeout", workerConfig.WriteTimeout)
	nsqConfig.Set("msg_timeout", workerConfig.MessageTimeout)
	return nsq.NewConsumer(workerConfig.NsqTopic, workerConfig.NsqChannel, nsqConfig)
}

// ServiceRegistry looks up and disables configured services.
// service.Registry implements it over bolt, and
// network.DepositClient implements it over swordv3_service's
// HTTP API.
type ServiceRegistry interface {
	GetByURL(contextId int64, url string) (*models.Service, error)
	ListEnabled(contextId int64) ([]*models.Service, error)
	Disable(contextId int64, url, reason string) (bool, error)
}

// RecordStore reads and writes publication deposit records.
type RecordStore interface {
	GetRecord(publicationId int64) (*models.DepositRecord, error)
	SaveRecord(record *models.DepositRecord) error
}

// JournalAPI supplies the publication, submission and context
// snapshots a deposit is assembled from.
type JournalAPI interface {
	GetPublication(submissionId, publicationId int64) (*models.Publication, error)
	GetSubmission(submissionId int64) (*models.Submission, error)
	GetContext(contextId int64) (*models.JournalContext, error)
}

// Notifier tells a journal's staff that a service was disabled.
type Notifier interface {
	ServiceDisabled(service *models.Service, reason string) (*models.Notification, error)
}

// Collaborators is everything a deposit or poll worker talks to.
// Worker processes build it from a context.Context. Tests build
// it directly, usually with a bolt-backed registry and record
// store in place of the HTTP client.
type Collaborators struct {
	Registry   ServiceRegistry
	Records    RecordStore
	Journal    JournalAPI
	Galleys    network.GalleyStore
	Notifier   Notifier
	Client     *swordv3.Swordv3Client
	MessageLog *logging.Logger
	JsonLog    *stdlog.Logger
	// Counters is optional. When set, each finished job
	// increments its succeeded or failed count.
	Counters *context.Context
}

// CollaboratorsFromContext wires a worker to the clients a worker
// process's context sets up.
func CollaboratorsFromContext(_context *context.Context) *Collaborators {
	return &Collaborators{
		Registry:   _context.DepositClient,
		Records:    _context.DepositClient,
		Journal:    _context.JournalClient,
		Galleys:    _context.GalleyStore,
		Notifier:   _context.Notifier,
		Client:     _context.Swordv3Client,
		MessageLog: _context.MessageLog,
		JsonLog:    _context.JsonLog,
		Counters:   _context,
	}
}

func (collab *Collaborators) countSucceeded() {
	if collab.Counters != nil {
		collab.Counters.IncrementSucceeded()
	}
}

func (collab *Collaborators) countFailed() {
	if collab.Counters != nil {
		collab.Counters.IncrementFailed()
	}
}

// swordWorker holds what the deposit and progress workers share:
// decoding messages, saving status documents, and finishing or
// requeueing messages when a job is done.
type swordWorker struct {
	collab       *Collaborators
	workerConfig *models.WorkerConfig
	policy       *FailurePolicy
}

// newState decodes a DepositRequest from message.
func (worker *swordWorker) newState(message *nsq.Message) (*models.DepositState, error) {
	request := &models.DepositRequest{}
	if err := json.Unmarshal(message.Body, request); err != nil {
		return nil, fmt.Errorf("Could not unmarshal deposit request from NSQ message body '%s': %v",
			string(message.Body), err)
	}
	if request.PublicationId <= 0 || request.ServiceURL == "" {
		return nil, fmt.Errorf("Deposit request '%s' is missing publicationId or serviceUrl",
			string(message.Body))
	}
	return models.NewDepositState(message, request), nil
}

func (worker *swordWorker) start(state *models.DepositState) {
	state.Summary.ClearErrors()
	state.Summary.Retry = true
	if state.NSQMessage != nil {
		state.Summary.AttemptNumber = state.NSQMessage.Attempts
	} else {
		state.Summary.AttemptNumber++
	}
	state.Summary.Start()
}

// saveStatus writes the deposit record for status. The state, the
// date and the raw document are always written together.
func (worker *swordWorker) saveStatus(state *models.DepositState, status *swordv3.StatusDocument) error {
	record := models.NewDepositRecord(state.Request, status.SwordStateId(), status.Raw())
	if err := worker.collab.Records.SaveRecord(record); err != nil {
		return errors.Wrapf(err, "saving deposit record for publication %d", record.PublicationId)
	}
	state.Record = record
	worker.collab.MessageLog.Debugf("Publication %d is %s at %s", record.PublicationId,
		record.State, status.ObjectId())
	return nil
}

// logJson writes the last saved deposit record to the JSON log.
func (worker *swordWorker) logJson(state *models.DepositState) {
	if worker.collab.JsonLog == nil || state.Record == nil {
		return
	}
	data, err := json.MarshalIndent(state.Record, "", "  ")
	if err != nil {
		worker.collab.MessageLog.Errorf("Could not marshal record for publication %d: %v",
			state.Request.PublicationId, err)
		return
	}
	timestamp := time.Now().UTC().Format(constants.DepositDateFormat)
	worker.collab.JsonLog.Printf("-------- BEGIN publication %d -------- %s",
		state.Request.PublicationId, timestamp)
	worker.collab.JsonLog.Println(string(data))
	worker.collab.JsonLog.Printf("-------- END publication %d -------- %s",
		state.Request.PublicationId, timestamp)
}

// finish logs the outcome of a job and finishes or requeues its
// NSQ message.
func (worker *swordWorker) finish(state *models.DepositState) {
	worker.logJson(state)
	summary := state.Summary
	request := state.Request
	message := state.NSQMessage
	for _, warning := range summary.Warnings {
		worker.collab.MessageLog.Warningf("Publication %d: %s", request.PublicationId, warning)
	}
	if !summary.HasErrors() {
		worker.collab.MessageLog.Infof("Publication %d: %s finished in %s",
			request.PublicationId, state.Stage, summary.RunTime())
		worker.collab.countSucceeded()
		if message != nil {
			message.Finish()
		}
		return
	}
	worker.collab.countFailed()
	worker.collab.MessageLog.Errorf("Publication %d: %s", request.PublicationId, summary.AllErrorsAsString())
	if summary.Retry && !summary.ErrorIsFatal {
		delay := time.Duration(summary.AttemptNumber) * time.Minute
		worker.collab.MessageLog.Infof("Requeueing publication %d in %s", request.PublicationId, delay)
		if message != nil {
			message.Requeue(delay)
		}
		return
	}
	if message != nil {
		message.Finish()
	}
}
