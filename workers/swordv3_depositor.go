package workers

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/swordv3"
	"github.com/nsqio/go-nsq"
	"net/http"
	"strings"
)

// Swordv3Depositor deposits one publication into one SWORDv3
// service per message on the deposit topic.
type Swordv3Depositor struct {
	swordWorker
	assembler *DepositAssembler
	// DepositChannel is for the goroutines that talk to the
	// SWORDv3 server.
	DepositChannel chan *models.DepositState
	// PostProcessChannel is for the goroutines that log the
	// outcome and finish or requeue the NSQ message.
	PostProcessChannel chan *models.DepositState
}

// NewSwordv3Depositor returns a depositor with workerConfig.Workers
// goroutines running.
func NewSwordv3Depositor(collab *Collaborators, workerConfig *models.WorkerConfig) *Swordv3Depositor {
	depositor := &Swordv3Depositor{
		swordWorker: swordWorker{
			collab:       collab,
			workerConfig: workerConfig,
			policy:       NewDepositFailurePolicy(collab, workerConfig.MaxAttempts),
		},
		assembler: NewDepositAssembler(collab),
	}
	workerBufferSize := workerConfig.Workers * 10
	depositor.DepositChannel = make(chan *models.DepositState, workerBufferSize)
	depositor.PostProcessChannel = make(chan *models.DepositState, workerBufferSize)
	for i := 0; i < workerConfig.Workers; i++ {
		go depositor.deposit()
		go depositor.postProcess()
	}
	return depositor
}

// This is the callback that NSQ workers use to handle messages from NSQ.
func (depositor *Swordv3Depositor) HandleMessage(message *nsq.Message) error {
	state, err := depositor.newState(message)
	if err != nil {
		depositor.collab.MessageLog.Error("%s", err.Error())
		return err
	}
	message.DisableAutoResponse()
	depositor.collab.MessageLog.Infof("Deposit requested for publication %d (submission %d, context %d) to %s",
		state.Request.PublicationId, state.Request.SubmissionId, state.Request.ContextId,
		state.Request.ServiceURL)
	depositor.DepositChannel <- state
	return nil
}

func (depositor *Swordv3Depositor) deposit() {
	for state := range depositor.DepositChannel {
		depositor.Deposit(state)
		depositor.PostProcessChannel <- state
	}
}

func (depositor *Swordv3Depositor) postProcess() {
	for state := range depositor.PostProcessChannel {
		depositor.Finish(state)
	}
}

// Finish logs the outcome of a deposit and finishes or requeues
// its message.
func (depositor *Swordv3Depositor) Finish(state *models.DepositState) {
	depositor.finish(state)
}

// Deposit runs one deposit attempt to completion. The outcome is
// in state.Stage and state.Summary. Every status document the
// server returns is saved before the next request is sent.
func (depositor *Swordv3Depositor) Deposit(state *models.DepositState) {
	depositor.start(state)
	defer state.Summary.Finish()
	client := depositor.collab.Client
	log := depositor.collab.MessageLog
	request := state.Request

	state.Stage = constants.StageAssembling
	assembly, err := depositor.assembler.Assemble(request)
	if err != nil {
		if IsStale(err) {
			state.Stage = constants.StageAborted
			state.Summary.AddWarning("%v", err)
			return
		}
		depositor.fail(state, nil, err)
		return
	}
	defer depositor.assembler.Release(assembly)
	service := assembly.Service
	object := assembly.Object

	state.Stage = constants.StageDiscovering
	serviceDoc, err := client.Discover(service)
	if err == nil {
		err = serviceDoc.Check(service)
	}
	if err != nil {
		depositor.fail(state, service, err)
		return
	}

	state.Stage = constants.StageSubmitting
	var status *swordv3.StatusDocument
	if object.IsReplace() {
		log.Infof("Replacing %s for publication %d", object.ObjectURL(), request.PublicationId)
		status, err = client.Replace(service, object.ObjectURL(), object.Metadata, serviceDoc)
	} else {
		log.Infof("Creating object for publication %d at %s", request.PublicationId, service.URL)
		status, err = client.Create(service, object.Metadata, serviceDoc)
	}
	if err = depositor.afterRequest(state, status, err); err != nil {
		depositor.fail(state, service, err)
		return
	}
	objectURL := status.ObjectId()
	if objectURL == "" {
		depositor.fail(state, service, &swordv3.ProtocolError{
			Kind:    swordv3.GenericProtocolError,
			Method:  http.MethodPost,
			URL:     service.URL,
			Message: "status document has no @id",
		})
		return
	}

	if len(object.FilePaths) > 0 {
		state.Stage = constants.StageAppendingFiles
		for i, filePath := range object.FilePaths {
			if !status.CanAppendFiles() {
				state.Summary.AddWarning("Server does not allow file appends to %s. "+
					"Skipped %d of %d files.", objectURL, len(object.FilePaths)-i, len(object.FilePaths))
				break
			}
			log.Infof("Appending file %d of %d to %s for publication %d",
				i+1, len(object.FilePaths), objectURL, request.PublicationId)
			status, err = client.AppendFile(service, objectURL, filePath, serviceDoc)
			if err = depositor.afterRequest(state, status, err); err != nil {
				depositor.fail(state, service, err)
				return
			}
			if state.NSQMessage != nil {
				state.NSQMessage.Touch()
			}
		}
	}

	state.Stage = constants.StagePolling
	status, err = client.FetchStatus(service, objectURL)
	if err = depositor.afterRequest(state, status, err); err != nil {
		depositor.fail(state, service, err)
		return
	}

	state.Stage = constants.StageDone
	log.Infof("Deposit Complete. Publication %d is %s at %s. Links: %s",
		request.PublicationId, state.Record.State, objectURL, strings.Join(status.Links(), ", "))
}

// afterRequest saves the status document a request returned and
// reports a rejected or deleted object as an error.
func (depositor *Swordv3Depositor) afterRequest(state *models.DepositState, status *swordv3.StatusDocument, err error) error {
	if err != nil {
		return err
	}
	if err := depositor.saveStatus(state, status); err != nil {
		return err
	}
	return status.Err()
}

func (depositor *Swordv3Depositor) fail(state *models.DepositState, service *models.Service, err error) {
	stage := state.Stage
	state.Stage = constants.StageFailed
	depositor.policy.Apply(state, service, fmt.Errorf("%s: %w", stage, err))
}
