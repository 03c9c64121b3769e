package workers

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/swordv3"
	"github.com/op/go-logging"
	"strings"
)

// FailurePolicy decides what a failed deposit or poll does to its
// service and its NSQ message. The outcome is written into the
// job's WorkSummary:
//
//   - rejected or deleted objects are warnings. The job finishes.
//   - misconfiguration disables the service and notifies. The job
//     finishes.
//   - transient failures requeue the job. A deposit that is still
//     failing on its last attempt disables the service. A poll never
//     does.
//   - errors outside the protocol taxonomy requeue the job.
type FailurePolicy struct {
	registry    ServiceRegistry
	notifier    Notifier
	log         *logging.Logger
	maxAttempts uint16
	polling     bool
}

// NewDepositFailurePolicy returns the policy for swordv3_deposit.
func NewDepositFailurePolicy(collab *Collaborators, maxAttempts uint16) *FailurePolicy {
	return &FailurePolicy{
		registry:    collab.Registry,
		notifier:    collab.Notifier,
		log:         collab.MessageLog,
		maxAttempts: maxAttempts,
	}
}

// NewPollFailurePolicy returns the policy for swordv3_progress,
// which disables services only for authentication errors.
func NewPollFailurePolicy(collab *Collaborators, maxAttempts uint16) *FailurePolicy {
	policy := NewDepositFailurePolicy(collab, maxAttempts)
	policy.polling = true
	return policy
}

// Apply records err against state. service may be nil if the
// failure happened before the service was loaded.
func (policy *FailurePolicy) Apply(state *models.DepositState, service *models.Service, err error) {
	summary := state.Summary
	protocolError, inTaxonomy := swordv3.AsProtocolError(err)
	if !inTaxonomy {
		summary.AddError("%v", err)
		summary.Retry = true
		return
	}
	switch {
	case protocolError.Kind == swordv3.RejectedStatus || protocolError.Kind == swordv3.DeletedStatus:
		summary.AddWarning("%v", err)
		summary.Retry = false
		policy.log.Warningf("Publication %d: %v", state.Request.PublicationId, err)
	case protocolError.IsTransient():
		summary.AddError("%v", err)
		if policy.polling {
			summary.Retry = false
			policy.log.Warningf("Publication %d: poll failed, will try again on the next scan: %v",
				state.Request.PublicationId, err)
		} else if summary.AttemptNumber >= policy.maxAttempts {
			summary.Retry = false
			summary.ErrorIsFatal = true
			policy.disable(state, service, fmt.Sprintf("The deposit failed %d times. The last error was: %s",
				summary.AttemptNumber, DisableReason(err, service)))
		} else {
			summary.Retry = true
			policy.log.Noticef("Publication %d: attempt %d of %d failed, will retry: %v",
				state.Request.PublicationId, summary.AttemptNumber, policy.maxAttempts, err)
		}
	case policy.polling && !protocolError.IsAuthenticationError():
		summary.AddError("%v", err)
		summary.Retry = false
		summary.ErrorIsFatal = true
		policy.log.Errorf("Publication %d: poll failed: %v", state.Request.PublicationId, err)
	default:
		summary.AddError("%v", err)
		summary.Retry = false
		summary.ErrorIsFatal = true
		policy.disable(state, service, DisableReason(err, service))
	}
}

// disable turns the service off and, if this call is the one that
// turned it off, notifies the journal.
func (policy *FailurePolicy) disable(state *models.DepositState, service *models.Service, reason string) {
	request := state.Request
	changed, err := policy.registry.Disable(request.ContextId, request.ServiceURL, reason)
	if err != nil {
		state.Summary.AddError("Could not disable service %s: %v", request.ServiceURL, err)
		return
	}
	if !changed {
		policy.log.Infof("Service %s for context %d was already disabled", request.ServiceURL, request.ContextId)
		return
	}
	state.ServiceDisabled = true
	policy.log.Errorf("Disabled service %s for context %d: %s", request.ServiceURL, request.ContextId, reason)
	if service == nil {
		service = &models.Service{ContextId: request.ContextId, URL: request.ServiceURL, Name: request.ServiceURL}
	}
	if _, err := policy.notifier.ServiceDisabled(service, reason); err != nil {
		policy.log.Errorf("Could not send notification for service %s: %v", request.ServiceURL, err)
	}
}

// DisableReason is the message stored on a disabled service and
// shown to journal staff.
func DisableReason(err error, service *models.Service) string {
	protocolError, ok := swordv3.AsProtocolError(err)
	if !ok {
		return err.Error()
	}
	authMode := ""
	if service != nil {
		authMode = service.AuthMode
	}
	switch protocolError.Kind {
	case swordv3.AuthenticationRequired:
		return "The repository requires authentication. Check that a username and password " +
			"or an API key are configured for this service."
	case swordv3.AuthenticationFailed:
		if authMode == constants.AuthBasic {
			return "The repository did not accept the username and password."
		}
		return "The repository did not accept the API key."
	case swordv3.AuthenticationUnsupported:
		return fmt.Sprintf("The repository does not support %s authentication. "+
			"Supported authentication modes are: %s.", authMode,
			strings.Join([]string{constants.AuthBasic, constants.AuthAPIKey}, ", "))
	case swordv3.DepositsNotAccepted:
		return "The repository is not accepting deposits."
	case swordv3.DigestFormatNotFound:
		return fmt.Sprintf("The repository accepts none of the checksum formats we can compute. "+
			"It accepts %s. We compute %s.",
			strings.Join(protocolError.ServerFormats, ", "),
			strings.Join(protocolError.LocalFormats, ", "))
	case swordv3.PageNotFound:
		return fmt.Sprintf("The repository returned page not found for %s. Check the service URL.",
			protocolError.URL)
	case swordv3.ConnectFailure:
		return fmt.Sprintf("Could not connect to %s.", protocolError.URL)
	}
	return protocolError.Error()
}
