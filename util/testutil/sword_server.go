package testutil

import (
	"github.com/APTrust/swordv3/testdata"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Fixture URLs that SwordTestServer rewrites to point at itself.
const (
	fixtureServiceURL = "https://repo.example.com/sword/service-document"
	fixtureObjectURL  = "https://repo.example.com/sword/objects/1001"
)

// RecordedRequest is one request received by SwordTestServer.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// SwordTestServer is a scriptable SWORDv3 server for unit tests.
// It serves a service document at /service and one deposit object
// at /objects/1001. Response bodies default to the fixtures in
// testdata/json_objects, with the fixture URLs rewritten to point
// at this server.
type SwordTestServer struct {
	*httptest.Server

	ServiceDocument []byte
	CreateStatus    []byte
	ReplaceStatus   []byte
	MetadataStatus  []byte
	// AppendStatus holds the responses to successive file
	// appends. The last one repeats.
	AppendStatus [][]byte
	FetchStatus  []byte
	// FailWith maps "METHOD /path" to an HTTP status the server
	// returns instead of the normal response.
	FailWith map[string]int
	// FailSequence maps "METHOD /path" to the statuses of
	// successive calls. Zero means respond normally. Calls past
	// the end of the list respond normally.
	FailSequence map[string][]int

	mutex     sync.Mutex
	requests  []RecordedRequest
	calls     map[string]int
	appendIdx int
}

// NewSwordTestServer starts a server. Call Close when done.
func NewSwordTestServer() *SwordTestServer {
	accepted := testdata.MustLoadJSON("status_accepted.json")
	server := &SwordTestServer{
		ServiceDocument: testdata.MustLoadJSON("service_document.json"),
		CreateStatus:    accepted,
		ReplaceStatus:   accepted,
		MetadataStatus:  accepted,
		AppendStatus:    [][]byte{accepted},
		FetchStatus:     accepted,
		FailWith:        make(map[string]int),
		FailSequence:    make(map[string][]int),
		requests:        make([]RecordedRequest, 0),
		calls:           make(map[string]int),
	}
	server.Server = httptest.NewServer(http.HandlerFunc(server.handle))
	return server
}

// ServiceURL is the URL to configure as the service's URL.
func (server *SwordTestServer) ServiceURL() string {
	return server.URL + "/service"
}

// ObjectURL is the URL of the deposit object this server hands out.
func (server *SwordTestServer) ObjectURL() string {
	return server.URL + "/objects/1001"
}

// Requests returns a copy of every request received so far.
func (server *SwordTestServer) Requests() []RecordedRequest {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	requests := make([]RecordedRequest, len(server.requests))
	copy(requests, server.requests)
	return requests
}

// RequestsFor returns the requests matching method and path.
func (server *SwordTestServer) RequestsFor(method, path string) []RecordedRequest {
	matches := make([]RecordedRequest, 0)
	for _, request := range server.Requests() {
		if request.Method == method && request.Path == path {
			matches = append(matches, request)
		}
	}
	return matches
}

// Rewrite replaces the fixture URLs in body with this server's URLs.
func (server *SwordTestServer) Rewrite(body []byte) []byte {
	str := strings.Replace(string(body), fixtureObjectURL, server.ObjectURL(), -1)
	str = strings.Replace(str, fixtureServiceURL, server.ServiceURL(), -1)
	return []byte(str)
}

func (server *SwordTestServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)
	r.Body.Close()
	server.mutex.Lock()
	server.requests = append(server.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	key := r.Method + " " + r.URL.Path
	failWith, shouldFail := server.FailWith[key]
	if sequence, ok := server.FailSequence[key]; ok && !shouldFail {
		if call := server.calls[key]; call < len(sequence) && sequence[call] != 0 {
			failWith, shouldFail = sequence[call], true
		}
	}
	server.calls[key]++
	if shouldFail {
		server.mutex.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failWith)
		w.Write([]byte(`{"@type":"Error","error":"scripted failure"}`))
		return
	}
	var response []byte
	status := http.StatusOK
	switch key {
	case "GET /service":
		response = server.ServiceDocument
	case "POST /service":
		response = server.CreateStatus
		status = http.StatusCreated
	case "PUT /objects/1001":
		response = server.ReplaceStatus
	case "POST /objects/1001":
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			response = server.MetadataStatus
		} else {
			idx := server.appendIdx
			if idx >= len(server.AppendStatus) {
				idx = len(server.AppendStatus) - 1
			}
			response = server.AppendStatus[idx]
			server.appendIdx++
		}
	case "GET /objects/1001":
		response = server.FetchStatus
	default:
		status = http.StatusNotFound
	}
	server.mutex.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if response != nil {
		w.Write(server.Rewrite(response))
	}
}
