package models

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/util"
	"strings"
	"time"
)

// Credential holds the secret half of a service configuration.
// Which fields are used depends on Service.AuthMode: Basic uses
// Username and Password, APIKey uses APIKey.
type Credential struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

// Service is a remote SWORDv3 deposit endpoint configured by one
// journal context. Services are disabled, never deleted, when a
// deposit fails in a way that indicates misconfiguration. Saving
// the configuration again re-enables it.
type Service struct {
	ContextId     int64      `json:"contextId"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	AuthMode      string     `json:"authMode"`
	Credential    Credential `json:"credential"`
	Enabled       bool       `json:"enabled"`
	StatusMessage string     `json:"statusMessage,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Key returns the registry key for this service.
func (service *Service) Key() string {
	return ServiceKey(service.ContextId, service.URL)
}

// ServiceKey builds the registry key for a context/URL pair.
// URLs are trimmed so that a trailing space in a settings form
// does not create a second entry.
func ServiceKey(contextId int64, url string) string {
	return fmt.Sprintf("%d|%s", contextId, strings.TrimSpace(url))
}

// Redacted returns a copy of the service with its credential
// removed, suitable for API responses and logs.
func (service *Service) Redacted() *Service {
	copy := *service
	copy.Credential = Credential{}
	return &copy
}

// Validate checks the fields a user supplies on the settings
// form. It returns a map of field name to error message, which
// is empty when the service is valid.
func (service *Service) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(service.Name) == "" {
		errors["name"] = "A name is required."
	}
	if !util.LooksLikeURL(service.URL) {
		errors["url"] = "The service URL must be an http or https URL."
	}
	switch service.AuthMode {
	case constants.AuthBasic:
		if service.Credential.Username == "" || service.Credential.Password == "" {
			errors["credential"] = "Basic authentication requires a username and password."
		}
	case constants.AuthAPIKey:
		if service.Credential.APIKey == "" {
			errors["credential"] = "API key authentication requires an API key."
		}
	default:
		errors["authMode"] = fmt.Sprintf("Authentication mode '%s' is not supported. "+
			"Use %s or %s.", service.AuthMode, constants.AuthBasic, constants.AuthAPIKey)
	}
	return errors
}
