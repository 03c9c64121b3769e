package network

import (
	"encoding/json"
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/antonholmquist/jason"
	"github.com/jellydator/ttlcache/v3"
	"github.com/op/go-logging"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// siteAdminsKey is the cache key for the site administrator list.
const siteAdminsKey = "site_admins"

// JournalClient reads publication, submission and context snapshots
// from the host application's REST API. Contexts and the site admin
// list change rarely and are cached for Config.JournalCacheTTL.
// Publications and submissions are always fetched fresh, because the
// stale-event guard depends on their current state.
type JournalClient struct {
	hostUrl      string
	apiKey       string
	httpClient   *http.Client
	logger       *logging.Logger
	contextCache *ttlcache.Cache[int64, *models.JournalContext]
	adminCache   *ttlcache.Cache[string, []models.User]
}

// NewJournalClient creates a new journal API client. Param hostUrl
// should come from Config.JournalAPIURL and apiKey from
// Config.GetJournalAPIKey.
func NewJournalClient(hostUrl, apiKey string, timeout, cacheTTL time.Duration, logger *logging.Logger) (*JournalClient, error) {
	// see security warning on nil PublicSuffixList here:
	// http://gotour.golang.org/src/pkg/net/http/cookiejar/jar.go?s=1011:1492#L24
	cookieJar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("Can't create cookie jar for HTTP client: %v", err)
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 8,
		DisableKeepAlives:   false,
	}
	httpClient := &http.Client{Jar: cookieJar, Transport: transport, Timeout: timeout}
	return &JournalClient{
		hostUrl:    strings.TrimRight(hostUrl, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		contextCache: ttlcache.New[int64, *models.JournalContext](
			ttlcache.WithTTL[int64, *models.JournalContext](cacheTTL),
			ttlcache.WithDisableTouchOnHit[int64, *models.JournalContext](),
		),
		adminCache: ttlcache.New[string, []models.User](
			ttlcache.WithTTL[string, []models.User](cacheTTL),
			ttlcache.WithDisableTouchOnHit[string, []models.User](),
		),
	}, nil
}

// GetPublication returns one version of a submission's publication,
// including its galleys.
func (client *JournalClient) GetPublication(submissionId, publicationId int64) (*models.Publication, error) {
	publication := &models.Publication{}
	path := fmt.Sprintf("/submissions/%d/publications/%d", submissionId, publicationId)
	if err := client.getJson(path, publication); err != nil {
		return nil, err
	}
	return publication, nil
}

func (client *JournalClient) GetSubmission(submissionId int64) (*models.Submission, error) {
	submission := &models.Submission{}
	if err := client.getJson(fmt.Sprintf("/submissions/%d", submissionId), submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// GetContext returns the journal context, from cache if possible.
func (client *JournalClient) GetContext(contextId int64) (*models.JournalContext, error) {
	if item := client.contextCache.Get(contextId); item != nil {
		return item.Value(), nil
	}
	journalContext := &models.JournalContext{}
	if err := client.getJson(fmt.Sprintf("/contexts/%d", contextId), journalContext); err != nil {
		return nil, err
	}
	client.contextCache.Set(contextId, journalContext, ttlcache.DefaultTTL)
	return journalContext, nil
}

// GetSiteAdmins returns the users with the site admin role, the
// notification recipients of last resort.
func (client *JournalClient) GetSiteAdmins() ([]models.User, error) {
	if item := client.adminCache.Get(siteAdminsKey); item != nil {
		return item.Value(), nil
	}
	data, err := client.get("/users?roleIds=1")
	if err != nil {
		return nil, err
	}
	obj, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("Cannot parse user list: %v", err)
	}
	items, err := obj.GetObjectArray("items")
	if err != nil {
		return nil, fmt.Errorf("User list has no items: %v", err)
	}
	admins := make([]models.User, 0, len(items))
	for _, item := range items {
		id, _ := item.GetInt64("id")
		name, _ := item.GetString("fullName")
		email, _ := item.GetString("email")
		if email == "" {
			continue
		}
		admins = append(admins, models.User{Id: id, Name: name, Email: email})
	}
	client.adminCache.Set(siteAdminsKey, admins, ttlcache.DefaultTTL)
	return admins, nil
}

// PublishedPublicationIds returns the ids of the current published
// publications of contextId, for the summary counts.
func (client *JournalClient) PublishedPublicationIds(contextId int64) ([]int64, error) {
	path := fmt.Sprintf("/contexts/%d/publications?status=%d", contextId, constants.PublicationStatusPublished)
	data, err := client.get(path)
	if err != nil {
		return nil, err
	}
	obj, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("Cannot parse publication list: %v", err)
	}
	items, err := obj.GetObjectArray("items")
	if err != nil {
		return nil, fmt.Errorf("Publication list has no items: %v", err)
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if id, err := item.GetInt64("id"); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (client *JournalClient) getJson(path string, v interface{}) error {
	data, err := client.get(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("Cannot parse response from %s: %v", path, err)
	}
	return nil
}

func (client *JournalClient) get(path string) ([]byte, error) {
	url := client.hostUrl + path
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Authorization", "Bearer "+client.apiKey)
	client.logger.Debugf("GET %s", url)
	resp, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("Journal API request %s failed: %v", url, err)
	}
	// Always read and close the body, or the connection stays open.
	data, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Journal API returned %d for %s: %s", resp.StatusCode, url, data)
	}
	return data, nil
}
