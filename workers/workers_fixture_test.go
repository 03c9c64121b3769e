package workers_test

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/network"
	"github.com/APTrust/swordv3/service"
	"github.com/APTrust/swordv3/swordv3"
	"github.com/APTrust/swordv3/testdata"
	"github.com/APTrust/swordv3/util/logger"
	"github.com/APTrust/swordv3/util/storage"
	"github.com/APTrust/swordv3/util/testutil"
	"github.com/APTrust/swordv3/workers"
	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeJournal struct {
	publications map[int64]*models.Publication
	submissions  map[int64]*models.Submission
	contexts     map[int64]*models.JournalContext
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{
		publications: make(map[int64]*models.Publication),
		submissions:  make(map[int64]*models.Submission),
		contexts:     make(map[int64]*models.JournalContext),
	}
}

func (journal *fakeJournal) GetPublication(submissionId, publicationId int64) (*models.Publication, error) {
	if publication, ok := journal.publications[publicationId]; ok {
		return publication, nil
	}
	return nil, fmt.Errorf("journal API returned 404 for publication %d", publicationId)
}

func (journal *fakeJournal) GetSubmission(submissionId int64) (*models.Submission, error) {
	if submission, ok := journal.submissions[submissionId]; ok {
		return submission, nil
	}
	return nil, fmt.Errorf("journal API returned 404 for submission %d", submissionId)
}

func (journal *fakeJournal) GetContext(contextId int64) (*models.JournalContext, error) {
	if journalContext, ok := journal.contexts[contextId]; ok {
		return journalContext, nil
	}
	return nil, fmt.Errorf("journal API returned 404 for context %d", contextId)
}

type recordingNotifier struct {
	mutex    sync.Mutex
	services []*models.Service
	reasons  []string
}

func (notifier *recordingNotifier) ServiceDisabled(service *models.Service, reason string) (*models.Notification, error) {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.services = append(notifier.services, service)
	notifier.reasons = append(notifier.reasons, reason)
	return &models.Notification{ContextId: service.ContextId, Subject: "Deposits stopped", Body: reason}, nil
}

func (notifier *recordingNotifier) count() int {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	return len(notifier.reasons)
}

// fixture is one journal context with one published publication
// and one service pointed at a SwordTestServer.
type fixture struct {
	t           *testing.T
	dir         string
	jsonLogPath string
	server      *testutil.SwordTestServer
	db          *storage.BoltDB
	registry    *service.Registry
	store       *service.DepositStore
	journal     *fakeJournal
	notifier    *recordingNotifier
	collab      *workers.Collaborators
	context     *models.JournalContext
	publication *models.Publication
	submission  *models.Submission
	service     *models.Service
	config      *models.WorkerConfig
}

func newFixture(t *testing.T, pdfCount int, authMode string) *fixture {
	dir, err := ioutil.TempDir("", "workers_test")
	require.Nil(t, err)
	db, err := storage.NewBoltDB(filepath.Join(dir, "swordv3.db"))
	require.Nil(t, err)
	key, err := (&models.Config{}).CredentialsKey()
	require.Nil(t, err)
	log := logger.DiscardLogger("workers_test")

	f := &fixture{
		t:           t,
		dir:         dir,
		jsonLogPath: filepath.Join(dir, "workers_test.json"),
		server:      testutil.NewSwordTestServer(),
		db:          db,
		registry:    service.NewRegistry(db, key, log),
		store:       service.NewDepositStore(db),
		journal:     newFakeJournal(),
		notifier:    &recordingNotifier{},
		config:      &models.WorkerConfig{Workers: 1, MaxAttempts: 3},
	}

	f.context = testdata.MakeJournalContext(1)
	f.publication = testdata.MakePublication(pdfCount)
	f.submission = testdata.MakeSubmission(f.publication, f.context.Id)
	f.journal.contexts[f.context.Id] = f.context
	f.journal.publications[f.publication.Id] = f.publication
	f.journal.submissions[f.submission.Id] = f.submission

	filesDir := filepath.Join(dir, "files")
	for _, galley := range f.publication.Galleys {
		absPath := filepath.Join(filesDir, galley.FilePath)
		require.Nil(t, os.MkdirAll(filepath.Dir(absPath), 0755))
		content := fmt.Sprintf("%%PDF-1.4\n%% galley %d\n%%%%EOF\n", galley.Id)
		require.Nil(t, ioutil.WriteFile(absPath, []byte(content), 0644))
	}

	f.service = testdata.MakeService(f.context.Id, f.server.ServiceURL(), authMode)
	require.Nil(t, f.registry.Save(f.service))

	client, err := swordv3.NewSwordv3Client(5*time.Second, constants.DefaultDigestAlgorithms, 0, log)
	require.Nil(t, err)
	jsonLog, err := os.OpenFile(f.jsonLogPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	require.Nil(t, err)

	f.collab = &workers.Collaborators{
		Registry:   f.registry,
		Records:    f.store,
		Journal:    f.journal,
		Galleys:    network.NewLocalGalleyStore(filesDir),
		Notifier:   f.notifier,
		Client:     client,
		MessageLog: log,
		JsonLog:    stdlog.New(jsonLog, "", 0),
	}
	return f
}

func (f *fixture) cleanup() {
	f.server.Close()
	f.db.Close()
	os.RemoveAll(f.dir)
}

func (f *fixture) request() *models.DepositRequest {
	return testdata.MakeDepositRequest(f.publication, f.context.Id, f.service.URL)
}

// message returns an NSQ message carrying request, on its
// attempts'th delivery.
func (f *fixture) message(attempts uint16) (*nsq.Message, *testutil.NSQTestDelegate) {
	body := fmt.Sprintf(`{"publicationId":%d,"submissionId":%d,"contextId":%d,"serviceUrl":"%s"}`,
		f.publication.Id, f.publication.SubmissionId, f.context.Id, f.service.URL)
	message := testutil.MakeNsqMessage(body)
	message.Attempts = attempts
	delegate := testutil.NewNSQTestDelegate()
	message.Delegate = delegate
	return message, delegate
}

func (f *fixture) state(attempts uint16) (*models.DepositState, *testutil.NSQTestDelegate) {
	message, delegate := f.message(attempts)
	return models.NewDepositState(message, f.request()), delegate
}

// savePriorDeposit stores a record as if an earlier attempt had
// created the server's object.
func (f *fixture) savePriorDeposit(fixtureName string) *models.DepositRecord {
	statusDoc := f.server.Rewrite(testdata.MustLoadJSON(fixtureName))
	status, err := swordv3.ParseStatusDocument(statusDoc)
	require.Nil(f.t, err)
	record := models.NewDepositRecord(f.request(), status.SwordStateId(), statusDoc)
	require.Nil(f.t, f.store.SaveRecord(record))
	return record
}

func (f *fixture) reloadService() *models.Service {
	service, err := f.registry.GetByURL(f.context.Id, f.service.URL)
	require.Nil(f.t, err)
	require.NotNil(f.t, service)
	return service
}

func (f *fixture) record() *models.DepositRecord {
	record, err := f.store.GetRecord(f.publication.Id)
	require.Nil(f.t, err)
	return record
}
