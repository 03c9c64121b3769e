package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/APTrust/swordv3/models"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"
)

// DepositClient connects to swordv3_service, which owns the bolt
// database of service configurations and deposit records. The
// worker processes use it for every registry and record operation,
// since only one process may hold the database open.
type DepositClient struct {
	serviceUrl string
	httpClient *http.Client
}

// NewDepositClient returns a new DepositClient. Param port is
// the port number on which the service is running. That info should be
// available in config.DepositServicePort.
func NewDepositClient(port int) *DepositClient {
	return NewDepositClientForURL(fmt.Sprintf("http://127.0.0.1:%d", port))
}

// NewDepositClientForURL returns a client for the service at baseURL.
func NewDepositClientForURL(baseURL string) *DepositClient {
	return &DepositClient{
		serviceUrl: baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the base URL of swordv3_service, which should
// always be running on localhost.
func (client *DepositClient) BaseURL() string {
	return client.serviceUrl
}

// Ping checks whether the service is running.
func (client *DepositClient) Ping(msTimeout int) error {
	pingUrl := fmt.Sprintf("%s/ping", client.serviceUrl)
	httpClient := http.Client{
		Timeout: time.Duration(msTimeout) * time.Millisecond,
	}
	resp, err := httpClient.Get(pingUrl)
	if err == nil {
		resp.Body.Close()
	}
	return err
}

// GetByURL returns the service with the given URL in contextId,
// credentials included, or nil if there is none.
func (client *DepositClient) GetByURL(contextId int64, serviceURL string) (*models.Service, error) {
	reqUrl := fmt.Sprintf("%s/registry/%d?url=%s", client.serviceUrl, contextId, url.QueryEscape(serviceURL))
	services := make([]*models.Service, 0)
	if err := client.doRequest(http.MethodGet, reqUrl, nil, &services); err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, nil
	}
	return services[0], nil
}

// ListEnabled returns the enabled services of contextId.
func (client *DepositClient) ListEnabled(contextId int64) ([]*models.Service, error) {
	reqUrl := fmt.Sprintf("%s/registry/%d?enabled=true", client.serviceUrl, contextId)
	services := make([]*models.Service, 0)
	err := client.doRequest(http.MethodGet, reqUrl, nil, &services)
	return services, err
}

// Disable disables one service. It returns true if the service was
// enabled before this call.
func (client *DepositClient) Disable(contextId int64, serviceURL, reason string) (bool, error) {
	reqUrl := fmt.Sprintf("%s/registry/%d/disable", client.serviceUrl, contextId)
	result := &models.DisableResult{}
	err := client.doRequest(http.MethodPost, reqUrl,
		&models.DisableRequest{URL: serviceURL, Reason: reason}, result)
	return result.Changed, err
}

// GetRecord returns the deposit record of publicationId, or nil
// if it has never been deposited.
func (client *DepositClient) GetRecord(publicationId int64) (*models.DepositRecord, error) {
	reqUrl := fmt.Sprintf("%s/deposits/%d", client.serviceUrl, publicationId)
	var record *models.DepositRecord
	err := client.doRequest(http.MethodGet, reqUrl, nil, &record)
	return record, err
}

// SaveRecord replaces the deposit record of record.PublicationId.
func (client *DepositClient) SaveRecord(record *models.DepositRecord) error {
	reqUrl := fmt.Sprintf("%s/deposits/%d", client.serviceUrl, record.PublicationId)
	return client.doRequest(http.MethodPut, reqUrl, record, nil)
}

// InProgress returns the deposit records in a non-terminal state.
func (client *DepositClient) InProgress() ([]*models.DepositRecord, error) {
	reqUrl := fmt.Sprintf("%s/deposits?inProgress=true", client.serviceUrl)
	records := make([]*models.DepositRecord, 0)
	err := client.doRequest(http.MethodGet, reqUrl, nil, &records)
	return records, err
}

// EnqueueDeposit asks the service to queue a deposit.
func (client *DepositClient) EnqueueDeposit(request *models.DepositRequest) error {
	return client.doRequest(http.MethodPost, client.serviceUrl+"/deposits", request, nil)
}

// EnqueuePoll asks the service to queue a status poll.
func (client *DepositClient) EnqueuePoll(request *models.DepositRequest) error {
	return client.doRequest(http.MethodPost, client.serviceUrl+"/polls", request, nil)
}

// doRequest sends body as JSON and decodes the response's Data
// into result, if result is not nil.
func (client *DepositClient) doRequest(method, reqUrl string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, reqUrl, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	serviceResponse := &models.ServiceResponse{}
	err = json.Unmarshal(data, serviceResponse)
	if err != nil {
		return fmt.Errorf("Bad response from swordv3_service (%d): %v", resp.StatusCode, err)
	}
	if serviceResponse.ErrorMessage != "" {
		return fmt.Errorf("%s", serviceResponse.ErrorMessage)
	}
	if !serviceResponse.Succeeded {
		return fmt.Errorf("swordv3_service returned %d for %s %s", resp.StatusCode, method, reqUrl)
	}
	if result != nil && len(serviceResponse.Data) > 0 {
		return json.Unmarshal(serviceResponse.Data, result)
	}
	return nil
}
