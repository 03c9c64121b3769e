package service

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/network"
	"github.com/APTrust/swordv3/swordv3"
	"github.com/julienschmidt/httprouter"
	"github.com/op/go-logging"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Queue is the part of the NSQ client the deposit service uses.
type Queue interface {
	Enqueue(topic string, body interface{}) error
	GetStats() (*network.NSQStats, error)
}

// PublicationLister lists the published publications of a context.
type PublicationLister interface {
	PublishedPublicationIds(contextId int64) ([]int64, error)
}

// ServiceChecker fetches service documents and knows which digest
// formats we can compute. *swordv3.Swordv3Client implements it.
type ServiceChecker interface {
	Discover(service *models.Service) (*swordv3.ServiceDocument, error)
	Digests() *swordv3.DigestNegotiator
}

// DepositService is the HTTP API of swordv3_service. It owns the
// bolt database, so the worker processes and the host application
// go through it for service configurations and deposit records.
// It listens on localhost only.
type DepositService struct {
	port     int
	registry *Registry
	store    *DepositStore
	queue    Queue
	journal  PublicationLister
	checker  ServiceChecker
	log      *logging.Logger
}

func NewDepositService(port int, registry *Registry, store *DepositStore, queue Queue,
	journal PublicationLister, checker ServiceChecker, log *logging.Logger) *DepositService {
	return &DepositService{
		port:     port,
		registry: registry,
		store:    store,
		queue:    queue,
		journal:  journal,
		checker:  checker,
		log:      log,
	}
}

// Serve listens on 127.0.0.1 at the service's port. It blocks
// until the server fails.
func (service *DepositService) Serve() error {
	addr := fmt.Sprintf("127.0.0.1:%d", service.port)
	service.log.Infof("swordv3_service listening on %s", addr)
	server := &http.Server{
		Addr:         addr,
		Handler:      service.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	return server.ListenAndServe()
}

// Handler returns the router with every route installed.
func (service *DepositService) Handler() http.Handler {
	var routes = []struct {
		method  string
		route   string
		handler httprouter.Handle
	}{
		{"GET", "/ping", service.pingHandler},

		// queueing
		{"POST", "/deposits", service.enqueueHandler(constants.TopicDeposit)},
		{"POST", "/polls", service.enqueueHandler(constants.TopicProgress)},

		// deposit records
		{"GET", "/deposits", service.listRecordsHandler},
		{"GET", "/deposits/:publicationId", service.getRecordHandler},
		{"PUT", "/deposits/:publicationId", service.saveRecordHandler},
		{"DELETE", "/deposits/:publicationId", service.deleteRecordHandler},

		// settings form and status page
		{"GET", "/services/:contextId", service.listServicesHandler},
		{"PUT", "/services/:contextId", service.saveServiceHandler},
		{"GET", "/summary/:contextId", service.summaryHandler},

		// full service records, credentials included, for workers
		{"GET", "/registry/:contextId", service.registryHandler},
		{"POST", "/registry/:contextId/disable", service.disableHandler},
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method, route.route, service.logWrapper(route.handler))
	}
	return r
}

func (service *DepositService) logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		service.log.Debugf("%s %s", r.Method, r.URL)
		handler(w, r, ps)
	}
}

func (service *DepositService) pingHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	service.writeData(w, http.StatusOK, "pong")
}

func (service *DepositService) enqueueHandler(topic string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		request := &models.DepositRequest{}
		if err := decodeBody(r.Body, request); err != nil {
			service.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if request.PublicationId <= 0 || request.SubmissionId <= 0 ||
			request.ContextId <= 0 || strings.TrimSpace(request.ServiceURL) == "" {
			service.writeError(w, http.StatusBadRequest,
				"publicationId, submissionId, contextId and serviceUrl are required")
			return
		}
		if err := service.queue.Enqueue(topic, request); err != nil {
			service.log.Errorf("Could not queue publication %d on %s: %v", request.PublicationId, topic, err)
			service.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		service.log.Infof("Queued publication %d on %s for %s", request.PublicationId, topic, request.ServiceURL)
		service.writeData(w, http.StatusAccepted, request)
	}
}

// listRecordsHandler returns in-progress records with
// ?inProgress=true, or all records of a context with ?contextId=N.
func (service *DepositService) listRecordsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var records []*models.DepositRecord
	var err error
	query := r.URL.Query()
	if query.Get("inProgress") == "true" {
		records, err = service.store.InProgress()
	} else if query.Get("contextId") != "" {
		contextId, parseErr := strconv.ParseInt(query.Get("contextId"), 10, 64)
		if parseErr != nil {
			service.writeError(w, http.StatusBadRequest, "contextId must be an integer")
			return
		}
		records, err = service.store.Find(func(record *models.DepositRecord) bool {
			return record.ContextId == contextId
		})
	} else {
		service.writeError(w, http.StatusBadRequest, "Specify inProgress=true or contextId")
		return
	}
	if err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	service.writeData(w, http.StatusOK, records)
}

func (service *DepositService) getRecordHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	publicationId, ok := service.idParam(w, ps, "publicationId")
	if !ok {
		return
	}
	record, err := service.store.GetRecord(publicationId)
	if err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	service.writeData(w, http.StatusOK, record)
}

func (service *DepositService) saveRecordHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	publicationId, ok := service.idParam(w, ps, "publicationId")
	if !ok {
		return
	}
	record := &models.DepositRecord{}
	if err := decodeBody(r.Body, record); err != nil {
		service.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if record.PublicationId != publicationId {
		service.writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"Record is for publication %d, not %d", record.PublicationId, publicationId))
		return
	}
	if err := service.store.SaveRecord(record); err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	service.writeData(w, http.StatusOK, record)
}

func (service *DepositService) deleteRecordHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	publicationId, ok := service.idParam(w, ps, "publicationId")
	if !ok {
		return
	}
	if err := service.store.DeleteRecord(publicationId); err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	service.log.Infof("Deleted deposit record for publication %d", publicationId)
	service.writeData(w, http.StatusOK, publicationId)
}

func (service *DepositService) listServicesHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	contextId, ok := service.idParam(w, ps, "contextId")
	if !ok {
		return
	}
	services, err := service.registry.List(contextId)
	if err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	service.writeData(w, http.StatusOK, redactAll(services))
}

// saveServiceHandler validates a service submitted from the
// settings form, fetches its service document to prove the
// configuration works, then saves and re-enables it. A blank
// credential keeps the stored one.
func (service *DepositService) saveServiceHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	contextId, ok := service.idParam(w, ps, "contextId")
	if !ok {
		return
	}
	submitted := &models.Service{}
	if err := decodeBody(r.Body, submitted); err != nil {
		service.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	submitted.ContextId = contextId
	submitted.URL = strings.TrimSpace(submitted.URL)
	if submitted.Credential == (models.Credential{}) {
		existing, err := service.registry.GetByURL(contextId, submitted.URL)
		if err != nil {
			service.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if existing != nil && existing.AuthMode == submitted.AuthMode {
			submitted.Credential = existing.Credential
		}
	}
	if fieldErrors := submitted.Validate(); len(fieldErrors) > 0 {
		service.writeFieldErrors(w, fieldErrors)
		return
	}
	if fieldErrors := service.checkService(submitted); len(fieldErrors) > 0 {
		service.writeFieldErrors(w, fieldErrors)
		return
	}
	if err := service.registry.Save(submitted); err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	service.log.Infof("Saved service %s for context %d", submitted.URL, contextId)
	service.writeData(w, http.StatusOK, submitted.Redacted())
}

// checkService talks to the server and maps anything that would
// stop a deposit onto the settings form field the user must fix.
func (service *DepositService) checkService(submitted *models.Service) map[string]string {
	fieldErrors := make(map[string]string)
	doc, err := service.checker.Discover(submitted)
	if err == nil {
		err = doc.Check(submitted)
	}
	if err == nil {
		_, err = service.checker.Digests().Negotiate(doc.DigestFormats())
	}
	if err == nil {
		return fieldErrors
	}
	protocolError, ok := swordv3.AsProtocolError(err)
	if !ok {
		fieldErrors["url"] = err.Error()
		return fieldErrors
	}
	switch protocolError.Kind {
	case swordv3.AuthenticationRequired, swordv3.AuthenticationFailed:
		fieldErrors["credential"] = "The repository did not accept these credentials."
	case swordv3.AuthenticationUnsupported:
		fieldErrors["authMode"] = fmt.Sprintf("The repository does not support %s authentication. "+
			"It supports %s.", submitted.AuthMode, strings.Join(doc.AuthModes(), ", "))
	case swordv3.DepositsNotAccepted:
		fieldErrors["acceptDeposits"] = "The repository is not accepting deposits."
	case swordv3.DigestFormatNotFound:
		fieldErrors["url"] = fmt.Sprintf("The repository accepts none of the checksum formats "+
			"we can compute. It accepts %s.", strings.Join(protocolError.ServerFormats, ", "))
	case swordv3.ConnectFailure:
		fieldErrors["url"] = fmt.Sprintf("Could not connect to %s.", submitted.URL)
	case swordv3.PageNotFound:
		fieldErrors["url"] = "There is no SWORDv3 service at this URL."
	default:
		fieldErrors["url"] = fmt.Sprintf("The repository returned an error: %s", protocolError.Error())
	}
	return fieldErrors
}

func (service *DepositService) summaryHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	contextId, ok := service.idParam(w, ps, "contextId")
	if !ok {
		return
	}
	publicationIds, err := service.journal.PublishedPublicationIds(contextId)
	if err != nil {
		service.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	counts, err := service.store.Counts(contextId, publicationIds)
	if err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	services, err := service.registry.List(contextId)
	if err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summary := &models.Summary{
		ContextId:  contextId,
		Counts:     counts,
		QueueDepth: make(map[string]int64),
		Services:   redactAll(services),
	}
	stats, err := service.queue.GetStats()
	if err != nil {
		service.log.Warningf("Can't get NSQ stats for summary: %v", err)
	} else {
		for _, topic := range []string{constants.TopicDeposit, constants.TopicProgress} {
			summary.QueueDepth[topic] = stats.Depth(topic)
		}
	}
	service.writeData(w, http.StatusOK, summary)
}

// registryHandler returns full service records. With ?url= it
// returns zero or one service. With ?enabled=true it returns only
// enabled services.
func (service *DepositService) registryHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	contextId, ok := service.idParam(w, ps, "contextId")
	if !ok {
		return
	}
	query := r.URL.Query()
	var services []*models.Service
	var err error
	if serviceURL := query.Get("url"); serviceURL != "" {
		var found *models.Service
		found, err = service.registry.GetByURL(contextId, serviceURL)
		services = make([]*models.Service, 0, 1)
		if found != nil {
			services = append(services, found)
		}
	} else if query.Get("enabled") == "true" {
		services, err = service.registry.ListEnabled(contextId)
	} else {
		services, err = service.registry.List(contextId)
	}
	if err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	service.writeData(w, http.StatusOK, services)
}

func (service *DepositService) disableHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	contextId, ok := service.idParam(w, ps, "contextId")
	if !ok {
		return
	}
	request := &models.DisableRequest{}
	if err := decodeBody(r.Body, request); err != nil {
		service.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	changed, err := service.registry.Disable(contextId, request.URL, request.Reason)
	if err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if changed {
		service.log.Warningf("Disabled service %s for context %d: %s", request.URL, contextId, request.Reason)
	}
	service.writeData(w, http.StatusOK, &models.DisableResult{Changed: changed})
}

func (service *DepositService) idParam(w http.ResponseWriter, ps httprouter.Params, name string) (int64, bool) {
	id, err := strconv.ParseInt(ps.ByName(name), 10, 64)
	if err != nil || id <= 0 {
		service.writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

func (service *DepositService) writeData(w http.ResponseWriter, status int, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		service.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	service.write(w, status, &models.ServiceResponse{Succeeded: true, Data: raw})
}

func (service *DepositService) writeError(w http.ResponseWriter, status int, message string) {
	service.write(w, status, &models.ServiceResponse{ErrorMessage: message})
}

func (service *DepositService) writeFieldErrors(w http.ResponseWriter, fieldErrors map[string]string) {
	service.write(w, http.StatusUnprocessableEntity, &models.ServiceResponse{
		ErrorMessage: "The service configuration is not valid.",
		FieldErrors:  fieldErrors,
	})
}

func (service *DepositService) write(w http.ResponseWriter, status int, response *models.ServiceResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		service.log.Errorf("Error writing response: %v", err)
	}
}

func decodeBody(body io.ReadCloser, v interface{}) error {
	defer body.Close()
	data, err := ioutil.ReadAll(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("Request body is not valid JSON: %v", err)
	}
	return nil
}

func redactAll(services []*models.Service) []*models.Service {
	redacted := make([]*models.Service, len(services))
	for i, s := range services {
		redacted[i] = s.Redacted()
	}
	return redacted
}
