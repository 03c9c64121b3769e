package swordv3

import (
	"io/ioutil"
	"net/http"
)

// maxErrorBody is how much of an error response we keep for logs.
const maxErrorBody = 1024

// Swordv3Response wraps one HTTP exchange with a SWORDv3 server.
type Swordv3Response struct {
	Request  *http.Request
	Response *http.Response
	Error    error

	hasBeenRead bool
	data        []byte
}

// Returns the raw body of the HTTP response as a byte slice.
// The return value may be nil.
func (resp *Swordv3Response) RawResponseData() ([]byte, error) {
	if !resp.hasBeenRead {
		resp.readResponse()
	}
	return resp.data, resp.Error
}

// Reads the body of an HTTP response object and closes the stream.
// The body MUST be closed, or the connection stays open and we
// eventually run out of file handles.
func (resp *Swordv3Response) readResponse() {
	if !resp.hasBeenRead && resp.Response != nil && resp.Response.Body != nil {
		resp.data, resp.Error = ioutil.ReadAll(resp.Response.Body)
		resp.Response.Body.Close()
		resp.hasBeenRead = true
	}
}

// StatusCode returns the HTTP status, or zero if there was no response.
func (resp *Swordv3Response) StatusCode() int {
	if resp.Response == nil {
		return 0
	}
	return resp.Response.StatusCode
}

func (resp *Swordv3Response) succeeded() bool {
	code := resp.StatusCode()
	return code >= 200 && code < 300
}

// protocolError classifies a failed exchange. It returns nil if
// the server answered with a 2xx status.
func (resp *Swordv3Response) protocolError() *ProtocolError {
	method, url := "", ""
	if resp.Request != nil {
		method = resp.Request.Method
		url = resp.Request.URL.String()
	}
	if resp.Response == nil {
		protocolError := newProtocolError(ConnectFailure, method, url, "no response from server")
		protocolError.err = resp.Error
		return protocolError
	}
	if resp.Error != nil {
		protocolError := newProtocolError(ConnectFailure, method, url, "error reading response body")
		protocolError.StatusCode = resp.StatusCode()
		protocolError.err = resp.Error
		return protocolError
	}
	if resp.succeeded() {
		return nil
	}
	protocolError := newProtocolError(KindForStatus(resp.StatusCode()), method, url, "")
	protocolError.StatusCode = resp.StatusCode()
	body := resp.data
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	protocolError.ResponseBody = body
	return protocolError
}
