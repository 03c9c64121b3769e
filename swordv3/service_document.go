package swordv3

import (
	"fmt"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/util"
	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"
	"net/http"
	"strings"
)

// ServiceDocument is a server's advertised capabilities, fetched
// from the service URL at the start of every deposit.
type ServiceDocument struct {
	object *jason.Object
	raw    []byte
}

// ParseServiceDocument decodes a service document. Missing fields
// are tolerated and read as empty.
func ParseServiceDocument(data []byte) (*ServiceDocument, error) {
	object, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "malformed service document")
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &ServiceDocument{object: object, raw: raw}, nil
}

// Raw returns the JSON the server sent.
func (doc *ServiceDocument) Raw() []byte {
	return doc.raw
}

func (doc *ServiceDocument) ServiceId() string {
	id, _ := doc.object.GetString("@id")
	return id
}

func (doc *ServiceDocument) AuthModes() []string {
	modes, err := doc.object.GetStringArray("authentication")
	if err != nil {
		return []string{}
	}
	return modes
}

func (doc *ServiceDocument) SupportsAuthMode(mode string) bool {
	return util.StringListContains(doc.AuthModes(), mode)
}

func (doc *ServiceDocument) AcceptDeposits() bool {
	accept, err := doc.object.GetBoolean("acceptDeposits")
	return err == nil && accept
}

func (doc *ServiceDocument) DigestFormats() []string {
	formats, err := doc.object.GetStringArray("digest")
	if err != nil {
		return []string{}
	}
	return formats
}

func (doc *ServiceDocument) SupportsDigestFormat(format string) bool {
	return util.StringListContains(doc.DigestFormats(), format)
}

// Check returns an AuthenticationUnsupported error if the server
// does not advertise the service's auth mode, or DepositsNotAccepted
// if it is not taking deposits. It returns nil if a deposit may
// proceed.
func (doc *ServiceDocument) Check(service *models.Service) error {
	if !doc.SupportsAuthMode(service.AuthMode) {
		return newProtocolError(AuthenticationUnsupported, http.MethodGet, service.URL,
			fmt.Sprintf("server supports [%s], service is configured for %s",
				strings.Join(doc.AuthModes(), ", "), service.AuthMode))
	}
	if !doc.AcceptDeposits() {
		return newProtocolError(DepositsNotAccepted, http.MethodGet, service.URL,
			"server is not accepting deposits")
	}
	return nil
}
