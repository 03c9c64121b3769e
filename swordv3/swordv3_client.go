package swordv3

import (
	"bytes"
	"context"
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/op/go-logging"
	"golang.org/x/time/rate"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"sync"
	"time"
)

// Swordv3Client talks to SWORDv3 servers. One client serves every
// configured service; the service to talk to is passed to each
// call. The client never retries. Retry policy belongs to the
// workers.
type Swordv3Client struct {
	httpClient        *http.Client
	digests           *DigestNegotiator
	log               *logging.Logger
	timeout           time.Duration
	requestsPerSecond float64
	limiters          map[string]*rate.Limiter
	limiterMutex      sync.Mutex
}

// NewSwordv3Client returns a client whose requests time out after
// timeout. localDigests are the digest formats we compute.
// requestsPerSecond limits the rate of requests to any one host;
// zero means no limit.
func NewSwordv3Client(timeout time.Duration, localDigests []string, requestsPerSecond float64, log *logging.Logger) (*Swordv3Client, error) {
	cookieJar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("Can't create cookie jar for SWORDv3 client: %v", err)
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 8,
		DisableKeepAlives:   false,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		TLSHandshakeTimeout:   10 * time.Second,
	}
	httpClient := &http.Client{
		Jar:           cookieJar,
		Transport:     transport,
		CheckRedirect: RedirectHandler,
		Timeout:       timeout,
	}
	return &Swordv3Client{
		httpClient:        httpClient,
		digests:           NewDigestNegotiator(localDigests),
		log:               log,
		timeout:           timeout,
		requestsPerSecond: requestsPerSecond,
		limiters:          make(map[string]*rate.Limiter),
	}, nil
}

// Digests returns the client's digest negotiator.
func (client *Swordv3Client) Digests() *DigestNegotiator {
	return client.digests
}

// Discover fetches the service document from the service URL.
func (client *Swordv3Client) Discover(service *models.Service) (*ServiceDocument, error) {
	resp := client.send(service, http.MethodGet, service.URL, nil, nil, 0)
	data, protocolError := client.check(resp)
	if protocolError != nil {
		return nil, protocolError
	}
	doc, err := ParseServiceDocument(data)
	if err != nil {
		return nil, client.malformed(resp, err)
	}
	return doc, nil
}

// Create POSTs metadata to the service URL, creating a new object.
func (client *Swordv3Client) Create(service *models.Service, metadata *MetadataDocument, serviceDoc *ServiceDocument) (*StatusDocument, error) {
	return client.sendMetadata(service, http.MethodPost, service.URL, metadata, serviceDoc)
}

// Replace PUTs metadata to an existing object URL.
func (client *Swordv3Client) Replace(service *models.Service, objectURL string, metadata *MetadataDocument, serviceDoc *ServiceDocument) (*StatusDocument, error) {
	return client.sendMetadata(service, http.MethodPut, objectURL, metadata, serviceDoc)
}

// AppendMetadata POSTs metadata to an existing object URL, adding
// to the object's metadata instead of replacing it.
func (client *Swordv3Client) AppendMetadata(service *models.Service, objectURL string, metadata *MetadataDocument, serviceDoc *ServiceDocument) (*StatusDocument, error) {
	return client.sendMetadata(service, http.MethodPost, objectURL, metadata, serviceDoc)
}

// AppendFile POSTs the file at filePath to the object as a PDF
// attachment. The digest is computed before anything is sent.
func (client *Swordv3Client) AppendFile(service *models.Service, objectURL, filePath string, serviceDoc *ServiceDocument) (*StatusDocument, error) {
	digest, err := client.digests.DigestFile(filePath, serviceDoc.DigestFormats())
	if err != nil {
		return nil, client.annotate(err, http.MethodPost, objectURL)
	}
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		"Content-Type":        constants.MimeTypePDF,
		"Content-Disposition": "attachment; filename=" + constants.AttachmentFileName,
		"Digest":              digest,
	}
	resp := client.send(service, http.MethodPost, objectURL, file, headers, stat.Size())
	return client.statusDocument(resp)
}

// FetchStatus GETs the current status document of an object.
func (client *Swordv3Client) FetchStatus(service *models.Service, objectURL string) (*StatusDocument, error) {
	resp := client.send(service, http.MethodGet, objectURL, nil, nil, 0)
	return client.statusDocument(resp)
}

func (client *Swordv3Client) sendMetadata(service *models.Service, method, targetURL string, metadata *MetadataDocument, serviceDoc *ServiceDocument) (*StatusDocument, error) {
	body, err := metadata.MarshalJSON()
	if err != nil {
		return nil, err
	}
	digest, err := client.digests.DigestBytes(body, serviceDoc.DigestFormats())
	if err != nil {
		return nil, client.annotate(err, method, targetURL)
	}
	headers := map[string]string{
		"Content-Type": "application/json",
		"Digest":       digest,
	}
	resp := client.send(service, method, targetURL, bytes.NewReader(body), headers, int64(len(body)))
	return client.statusDocument(resp)
}

func (client *Swordv3Client) statusDocument(resp *Swordv3Response) (*StatusDocument, error) {
	data, protocolError := client.check(resp)
	if protocolError != nil {
		return nil, protocolError
	}
	doc, err := ParseStatusDocument(data)
	if err != nil {
		return nil, client.malformed(resp, err)
	}
	return doc, nil
}

// send issues one request. Request construction failures and
// transport failures are left in resp.Error with a nil Response.
func (client *Swordv3Client) send(service *models.Service, method, targetURL string, body io.Reader, headers map[string]string, contentLength int64) *Swordv3Response {
	resp := &Swordv3Response{}
	authMode, err := NewAuthMode(service)
	if err != nil {
		resp.Error = err
		return resp
	}
	request, err := http.NewRequest(method, targetURL, body)
	resp.Request = request
	if err != nil {
		resp.Error = err
		return resp
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Authorization", authMode.AuthorizationHeader())
	request.Header.Set("Connection", "Keep-Alive")
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if body != nil {
		request.ContentLength = contentLength
	}

	if err := client.wait(request.URL.Host); err != nil {
		resp.Error = err
		return resp
	}
	client.log.Debugf("%s %s", method, targetURL)
	resp.Response, resp.Error = client.httpClient.Do(request)
	if resp.Error != nil {
		resp.Response = nil
		return resp
	}
	resp.readResponse()
	client.log.Debugf("%s %s returned %d", method, targetURL, resp.StatusCode())
	return resp
}

// check returns the response body, or the classified error.
func (client *Swordv3Client) check(resp *Swordv3Response) ([]byte, *ProtocolError) {
	if protocolError, ok := resp.Error.(*ProtocolError); ok {
		return nil, protocolError
	}
	if resp.Request == nil && resp.Error != nil {
		// http.NewRequest rejected the URL. No retry will fix that.
		return nil, &ProtocolError{
			Kind:    GenericProtocolError,
			Message: "invalid request",
			err:     resp.Error,
		}
	}
	if protocolError := resp.protocolError(); protocolError != nil {
		return nil, protocolError
	}
	return resp.data, nil
}

// malformed reports a 2xx response whose body we could not parse.
func (client *Swordv3Client) malformed(resp *Swordv3Response, err error) *ProtocolError {
	protocolError := newProtocolError(GenericProtocolError, resp.Request.Method,
		resp.Request.URL.String(), "unparseable response")
	protocolError.StatusCode = resp.StatusCode()
	protocolError.err = err
	return protocolError
}

// annotate fills in the request a pre-flight ProtocolError was
// raised for.
func (client *Swordv3Client) annotate(err error, method, targetURL string) error {
	if protocolError, ok := err.(*ProtocolError); ok {
		protocolError.Method = method
		protocolError.URL = targetURL
	}
	return err
}

// wait blocks until the host's rate limiter allows another request.
func (client *Swordv3Client) wait(host string) error {
	if client.requestsPerSecond <= 0 {
		return nil
	}
	client.limiterMutex.Lock()
	limiter, ok := client.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(client.requestsPerSecond), 1)
		client.limiters[host] = limiter
	}
	client.limiterMutex.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), client.timeout)
	defer cancel()
	return limiter.Wait(ctx)
}

// RedirectHandler copies headers onto redirected requests, but
// sends Authorization only to the original host.
func RedirectHandler(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("too many redirects")
	}
	if len(via) == 0 {
		return nil
	}
	for attr, val := range via[0].Header {
		if _, ok := req.Header[attr]; !ok {
			if attr != "Authorization" || req.URL.Host == via[0].URL.Host {
				req.Header[attr] = val
			}
		}
	}
	return nil
}
