package workers

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/network"
	"github.com/APTrust/swordv3/stats"
	"github.com/op/go-logging"
)

// InProgressSource lists deposit records whose last state is
// accepted, inProgress or inWorkflow.
type InProgressSource interface {
	InProgress() ([]*models.DepositRecord, error)
}

// Swordv3InProgressQueue puts a poll request on the progress topic
// for every deposit the server has not finished with.
type Swordv3InProgressQueue struct {
	records   InProgressSource
	registry  ServiceRegistry
	publisher network.Publisher
	log       *logging.Logger
	Stats     *stats.PollQueueStats
}

func NewSwordv3InProgressQueue(records InProgressSource, registry ServiceRegistry, publisher network.Publisher, log *logging.Logger) *Swordv3InProgressQueue {
	return &Swordv3InProgressQueue{
		records:   records,
		registry:  registry,
		publisher: publisher,
		log:       log,
		Stats:     stats.NewPollQueueStats(),
	}
}

// Run queues a poll for each in-progress deposit. A deposit is
// polled through the service it was made to, if that service is
// still enabled, and otherwise through the first enabled service
// of its context. Deposits whose context has no enabled service
// are skipped.
func (queue *Swordv3InProgressQueue) Run() error {
	records, err := queue.records.InProgress()
	if err != nil {
		queue.recordError("Error getting in-progress deposits: %v", err)
		return err
	}
	queue.log.Infof("Found %d deposits in progress", len(records))
	for _, record := range records {
		serviceURL, err := queue.serviceURLFor(record)
		if err != nil {
			queue.recordError("Error looking up services for context %d: %v", record.ContextId, err)
			continue
		}
		if serviceURL == "" {
			queue.Stats.AddSkipped(record.PublicationId)
			queue.log.Warningf("Not polling publication %d: context %d has no enabled service",
				record.PublicationId, record.ContextId)
			continue
		}
		request := &models.DepositRequest{
			PublicationId: record.PublicationId,
			SubmissionId:  record.SubmissionId,
			ContextId:     record.ContextId,
			ServiceURL:    serviceURL,
		}
		if err := queue.publisher.Enqueue(constants.TopicProgress, request); err != nil {
			queue.recordError("Error sending publication %d to NSQ topic %s: %v",
				record.PublicationId, constants.TopicProgress, err)
			continue
		}
		queue.Stats.AddRequest(constants.TopicProgress, request)
		queue.log.Infof("Queued poll for publication %d (%s) at %s",
			record.PublicationId, record.State, serviceURL)
	}
	return nil
}

func (queue *Swordv3InProgressQueue) serviceURLFor(record *models.DepositRecord) (string, error) {
	if record.ServiceURL != "" {
		service, err := queue.registry.GetByURL(record.ContextId, record.ServiceURL)
		if err != nil {
			return "", err
		}
		if service != nil && service.Enabled {
			return service.URL, nil
		}
	}
	services, err := queue.registry.ListEnabled(record.ContextId)
	if err != nil {
		return "", err
	}
	if len(services) == 0 {
		return "", nil
	}
	return services[0].URL, nil
}

func (queue *Swordv3InProgressQueue) recordError(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	queue.Stats.AddError(msg)
	queue.log.Error("%s", msg)
}
