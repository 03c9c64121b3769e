package workers_test

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/service"
	"github.com/APTrust/swordv3/testdata"
	"github.com/APTrust/swordv3/util/logger"
	"github.com/APTrust/swordv3/util/storage"
	"github.com/APTrust/swordv3/workers"
	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakePublisher struct {
	topics   []string
	requests []*models.DepositRequest
	err      error
}

func (publisher *fakePublisher) Enqueue(topic string, body interface{}) error {
	if publisher.err != nil {
		return publisher.err
	}
	publisher.topics = append(publisher.topics, topic)
	publisher.requests = append(publisher.requests, body.(*models.DepositRequest))
	return nil
}

type queueFixture struct {
	dir       string
	db        *storage.BoltDB
	registry  *service.Registry
	store     *service.DepositStore
	publisher *fakePublisher
	queue     *workers.Swordv3InProgressQueue
}

func newQueueFixture(t *testing.T) *queueFixture {
	dir, err := ioutil.TempDir("", "in_progress_queue_test")
	require.Nil(t, err)
	db, err := storage.NewBoltDB(filepath.Join(dir, "swordv3.db"))
	require.Nil(t, err)
	key, err := (&models.Config{}).CredentialsKey()
	require.Nil(t, err)
	log := logger.DiscardLogger("in_progress_queue_test")
	f := &queueFixture{
		dir:       dir,
		db:        db,
		registry:  service.NewRegistry(db, key, log),
		store:     service.NewDepositStore(db),
		publisher: &fakePublisher{},
	}
	f.queue = workers.NewSwordv3InProgressQueue(f.store, f.registry, f.publisher, log)
	return f
}

func (f *queueFixture) cleanup() {
	f.db.Close()
	os.RemoveAll(f.dir)
}

func (f *queueFixture) saveRecord(t *testing.T, publicationId, contextId int64, serviceURL, state string) {
	record := &models.DepositRecord{
		PublicationId:  publicationId,
		SubmissionId:   publicationId + 1000,
		ContextId:      contextId,
		ServiceURL:     serviceURL,
		State:          state,
		StatusDocument: []byte(fmt.Sprintf(`{"@id":"https://repo.example.com/objects/%d"}`, publicationId)),
	}
	require.Nil(t, f.store.SaveRecord(record))
}

func TestInProgressQueueOnlyQueuesInProgress(t *testing.T) {
	f := newQueueFixture(t)
	defer f.cleanup()
	service := testdata.MakeService(7, "", constants.AuthAPIKey)
	require.Nil(t, f.registry.Save(service))

	f.saveRecord(t, 1, 7, service.URL, constants.StateAccepted)
	f.saveRecord(t, 2, 7, service.URL, constants.StateInProgress)
	f.saveRecord(t, 3, 7, service.URL, constants.StateInWorkflow)
	f.saveRecord(t, 4, 7, service.URL, constants.StateIngested)
	f.saveRecord(t, 5, 7, service.URL, constants.StateRejected)
	f.saveRecord(t, 6, 7, service.URL, constants.StateDeleted)

	require.Nil(t, f.queue.Run())
	assert.Equal(t, 3, len(f.publisher.requests))
	for _, topic := range f.publisher.topics {
		assert.Equal(t, constants.TopicProgress, topic)
	}
	for _, id := range []int64{1, 2, 3} {
		request, topic := f.queue.Stats.FindRequest(id)
		require.NotNil(t, request, "publication %d", id)
		assert.Equal(t, constants.TopicProgress, topic)
		assert.Equal(t, service.URL, request.ServiceURL)
		assert.Equal(t, id+1000, request.SubmissionId)
		assert.EqualValues(t, 7, request.ContextId)
	}
	for _, id := range []int64{4, 5, 6} {
		request, _ := f.queue.Stats.FindRequest(id)
		assert.Nil(t, request, "publication %d", id)
	}
	assert.False(t, f.queue.Stats.HasErrors())
}

func TestInProgressQueueSkipsContextsWithoutService(t *testing.T) {
	f := newQueueFixture(t)
	defer f.cleanup()
	service := testdata.MakeService(7, "", constants.AuthAPIKey)
	require.Nil(t, f.registry.Save(service))
	_, err := f.registry.Disable(7, service.URL, "test")
	require.Nil(t, err)

	f.saveRecord(t, 1, 7, service.URL, constants.StateAccepted)
	f.saveRecord(t, 2, 8, "https://nowhere.example.com/sword", constants.StateAccepted)

	require.Nil(t, f.queue.Run())
	assert.Empty(t, f.publisher.requests)
	assert.ElementsMatch(t, []int64{1, 2}, f.queue.Stats.Skipped)
}

func TestInProgressQueueFallsBackToEnabledService(t *testing.T) {
	f := newQueueFixture(t)
	defer f.cleanup()
	oldService := testdata.MakeService(7, "https://old.example.com/sword", constants.AuthAPIKey)
	newService := testdata.MakeService(7, "https://new.example.com/sword", constants.AuthAPIKey)
	require.Nil(t, f.registry.Save(oldService))
	require.Nil(t, f.registry.Save(newService))
	_, err := f.registry.Disable(7, oldService.URL, "test")
	require.Nil(t, err)

	f.saveRecord(t, 1, 7, oldService.URL, constants.StateInProgress)

	require.Nil(t, f.queue.Run())
	require.Equal(t, 1, len(f.publisher.requests))
	assert.Equal(t, newService.URL, f.publisher.requests[0].ServiceURL)
}

func TestInProgressQueuePublishError(t *testing.T) {
	f := newQueueFixture(t)
	defer f.cleanup()
	service := testdata.MakeService(7, "", constants.AuthAPIKey)
	require.Nil(t, f.registry.Save(service))
	f.saveRecord(t, 1, 7, service.URL, constants.StateAccepted)
	f.publisher.err = fmt.Errorf("nsqd is down")

	require.Nil(t, f.queue.Run())
	assert.True(t, f.queue.Stats.HasErrors())
	assert.Contains(t, f.queue.Stats.Errors[0], "nsqd is down")
	assert.Equal(t, 0, f.queue.Stats.QueuedCount())
}

func TestInProgressQueueLogsErrorsVerbatim(t *testing.T) {
	f := newQueueFixture(t)
	defer f.cleanup()
	service := testdata.MakeService(7, "", constants.AuthAPIKey)
	require.Nil(t, f.registry.Save(service))
	f.saveRecord(t, 1, 7, service.URL, constants.StateAccepted)
	f.publisher.err = fmt.Errorf("nsqd is 100%%sure down")

	log := logging.MustGetLogger("in_progress_queue_verbatim")
	memory := logging.NewMemoryBackend(8)
	log.SetBackend(logging.AddModuleLevel(memory))
	queue := workers.NewSwordv3InProgressQueue(f.store, f.registry, f.publisher, log)

	require.Nil(t, queue.Run())
	messages := make([]string, 0)
	for node := memory.Head(); node != nil; node = node.Next() {
		messages = append(messages, node.Record.Message())
	}
	found := false
	for _, message := range messages {
		if strings.Contains(message, "nsqd is 100%sure down") {
			found = true
		}
	}
	assert.True(t, found, "%v", messages)
}
