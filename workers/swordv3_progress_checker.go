package workers

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/nsqio/go-nsq"
)

// Swordv3ProgressChecker re-fetches the status of deposits the
// server has not finished with. It never sends metadata or files.
type Swordv3ProgressChecker struct {
	swordWorker
	PollChannel        chan *models.DepositState
	PostProcessChannel chan *models.DepositState
}

func NewSwordv3ProgressChecker(collab *Collaborators, workerConfig *models.WorkerConfig) *Swordv3ProgressChecker {
	checker := &Swordv3ProgressChecker{
		swordWorker: swordWorker{
			collab:       collab,
			workerConfig: workerConfig,
			policy:       NewPollFailurePolicy(collab, workerConfig.MaxAttempts),
		},
	}
	workerBufferSize := workerConfig.Workers * 10
	checker.PollChannel = make(chan *models.DepositState, workerBufferSize)
	checker.PostProcessChannel = make(chan *models.DepositState, workerBufferSize)
	for i := 0; i < workerConfig.Workers; i++ {
		go checker.poll()
		go checker.postProcess()
	}
	return checker
}

// This is the callback that NSQ workers use to handle messages from NSQ.
func (checker *Swordv3ProgressChecker) HandleMessage(message *nsq.Message) error {
	state, err := checker.newState(message)
	if err != nil {
		checker.collab.MessageLog.Error("%s", err.Error())
		return err
	}
	message.DisableAutoResponse()
	checker.PollChannel <- state
	return nil
}

func (checker *Swordv3ProgressChecker) poll() {
	for state := range checker.PollChannel {
		checker.Poll(state)
		checker.PostProcessChannel <- state
	}
}

func (checker *Swordv3ProgressChecker) postProcess() {
	for state := range checker.PostProcessChannel {
		checker.Finish(state)
	}
}

// Finish logs the outcome of a poll and finishes or requeues its
// message.
func (checker *Swordv3ProgressChecker) Finish(state *models.DepositState) {
	checker.finish(state)
}

// Poll fetches the current status of the publication's deposit
// object and saves it. Publications with no deposit record, or
// whose last state is terminal, are left alone.
func (checker *Swordv3ProgressChecker) Poll(state *models.DepositState) {
	checker.start(state)
	defer state.Summary.Finish()
	request := state.Request
	log := checker.collab.MessageLog

	state.Stage = constants.StageAssembling
	record, err := checker.collab.Records.GetRecord(request.PublicationId)
	if err != nil {
		checker.fail(state, nil, err)
		return
	}
	if !record.IsInProgress() || !record.HasStatusDocument() {
		state.Stage = constants.StageAborted
		state.Summary.AddWarning("Publication %d has no deposit in progress", request.PublicationId)
		return
	}
	service, err := checker.collab.Registry.GetByURL(request.ContextId, request.ServiceURL)
	if err != nil {
		checker.fail(state, nil, err)
		return
	}
	if service == nil || !service.Enabled {
		state.Stage = constants.StageAborted
		state.Summary.AddWarning("Service %s for context %d is missing or disabled",
			request.ServiceURL, request.ContextId)
		return
	}
	prior, err := parseRecordStatus(record)
	if err != nil || prior.ObjectId() == "" {
		state.Stage = constants.StageAborted
		state.Summary.AddWarning("Publication %d has no readable object URL", request.PublicationId)
		return
	}

	state.Stage = constants.StagePolling
	status, err := checker.collab.Client.FetchStatus(service, prior.ObjectId())
	if err != nil {
		checker.fail(state, service, err)
		return
	}
	if err := checker.saveStatus(state, status); err != nil {
		checker.fail(state, service, err)
		return
	}
	if err := status.Err(); err != nil {
		checker.fail(state, service, err)
		return
	}
	state.Stage = constants.StageDone
	if state.Record.State != record.State {
		log.Infof("Publication %d moved from %s to %s", request.PublicationId,
			record.State, state.Record.State)
	}
}

func (checker *Swordv3ProgressChecker) fail(state *models.DepositState, service *models.Service, err error) {
	stage := state.Stage
	state.Stage = constants.StageFailed
	checker.policy.Apply(state, service, fmt.Errorf("%s: %w", stage, err))
}
