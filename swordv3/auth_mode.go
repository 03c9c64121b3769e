package swordv3

import (
	"encoding/base64"
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
)

// AuthMode produces the Authorization header for one credential.
type AuthMode interface {
	// Name is the mode as it appears in a service document's
	// authentication list.
	Name() string
	AuthorizationHeader() string
}

type BasicAuth struct {
	Username string
	Password string
}

func (auth BasicAuth) Name() string {
	return constants.AuthBasic
}

func (auth BasicAuth) AuthorizationHeader() string {
	token := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
	return "Basic " + token
}

type APIKeyAuth struct {
	Key string
}

func (auth APIKeyAuth) Name() string {
	return constants.AuthAPIKey
}

func (auth APIKeyAuth) AuthorizationHeader() string {
	return "APIKey " + auth.Key
}

// NewAuthMode returns the AuthMode for a configured service. Modes
// a server may advertise but we cannot produce, such as OAuth,
// return an AuthenticationUnsupported error.
func NewAuthMode(service *models.Service) (AuthMode, error) {
	switch service.AuthMode {
	case constants.AuthBasic:
		return BasicAuth{
			Username: service.Credential.Username,
			Password: service.Credential.Password,
		}, nil
	case constants.AuthAPIKey:
		return APIKeyAuth{Key: service.Credential.APIKey}, nil
	}
	return nil, newProtocolError(AuthenticationUnsupported, "", service.URL,
		fmt.Sprintf("authentication mode '%s' is not implemented", service.AuthMode))
}
