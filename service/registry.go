package service

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/util/storage"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
	"io"
	"strings"
	"time"
)

// storedService is the on-disk form of models.Service. The
// credential is sealed with the registry's key so that a copy
// of the database file does not leak repository passwords.
type storedService struct {
	ContextId        int64
	Name             string
	URL              string
	AuthMode         string
	SealedCredential []byte
	Enabled          bool
	StatusMessage    string
	UpdatedAt        time.Time
}

// Registry stores per-context SWORDv3 service configurations,
// keyed by context id and service URL.
type Registry struct {
	db  *storage.BoltDB
	key *[32]byte
	log *logging.Logger
}

// NewRegistry returns a registry over db. Credentials are encrypted
// with key, which comes from Config.CredentialsKey.
func NewRegistry(db *storage.BoltDB, key *[32]byte, log *logging.Logger) *Registry {
	return &Registry{
		db:  db,
		key: key,
		log: log,
	}
}

// GetByURL returns the service with the given URL in contextId,
// or nil if there is none.
func (registry *Registry) GetByURL(contextId int64, url string) (*models.Service, error) {
	stored := &storedService{}
	found, err := registry.db.Get(storage.ServicesBucket, models.ServiceKey(contextId, url), stored)
	if err != nil || !found {
		return nil, err
	}
	return registry.open(stored)
}

// Save stores the service. Saving a configuration always enables
// the service and clears its status message.
func (registry *Registry) Save(service *models.Service) error {
	service.URL = strings.TrimSpace(service.URL)
	service.Enabled = true
	service.StatusMessage = ""
	service.UpdatedAt = time.Now().UTC()
	stored, err := registry.seal(service)
	if err != nil {
		return err
	}
	err = registry.db.Save(storage.ServicesBucket, service.Key(), stored)
	if err == nil {
		registry.log.Infof("Saved service %s for context %d", service.URL, service.ContextId)
	}
	return err
}

// Disable marks one service disabled with reason as its status
// message. The read-modify-write happens in a single bolt
// transaction, so concurrent disables of different services in
// the same context cannot overwrite each other. It returns true
// if this call changed the service from enabled to disabled.
func (registry *Registry) Disable(contextId int64, url, reason string) (bool, error) {
	stored := &storedService{}
	changed := false
	err := registry.db.Update(storage.ServicesBucket, models.ServiceKey(contextId, url), stored,
		func(found bool) (bool, error) {
			if !found {
				return false, fmt.Errorf("No service %s in context %d", url, contextId)
			}
			if !stored.Enabled {
				return false, nil
			}
			changed = true
			stored.Enabled = false
			stored.StatusMessage = reason
			stored.UpdatedAt = time.Now().UTC()
			return true, nil
		})
	if err == nil && changed {
		registry.log.Errorf("Disabled service %s for context %d: %s", url, contextId, reason)
	}
	return changed, err
}

// List returns every service configured for contextId, ordered
// by URL.
func (registry *Registry) List(contextId int64) ([]*models.Service, error) {
	services := make([]*models.Service, 0)
	prefix := models.ServiceKey(contextId, "")
	err := registry.db.ForEachWithPrefix(storage.ServicesBucket, prefix, func(k, v []byte) error {
		stored := &storedService{}
		if err := storage.Decode(v, stored); err != nil {
			return err
		}
		service, err := registry.open(stored)
		if err != nil {
			return err
		}
		services = append(services, service)
		return nil
	})
	return services, err
}

// ListEnabled returns the enabled services of contextId.
func (registry *Registry) ListEnabled(contextId int64) ([]*models.Service, error) {
	all, err := registry.List(contextId)
	if err != nil {
		return nil, err
	}
	enabled := make([]*models.Service, 0, len(all))
	for _, service := range all {
		if service.Enabled {
			enabled = append(enabled, service)
		}
	}
	return enabled, nil
}

// FirstEnabled returns the first enabled service of contextId,
// or nil if the context has none.
func (registry *Registry) FirstEnabled(contextId int64) (*models.Service, error) {
	enabled, err := registry.ListEnabled(contextId)
	if err != nil || len(enabled) == 0 {
		return nil, err
	}
	return enabled[0], nil
}

func (registry *Registry) seal(service *models.Service) (*storedService, error) {
	plaintext, err := json.Marshal(service.Credential)
	if err != nil {
		return nil, err
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errors.Wrap(err, "generating credential nonce")
	}
	return &storedService{
		ContextId:        service.ContextId,
		Name:             service.Name,
		URL:              service.URL,
		AuthMode:         service.AuthMode,
		SealedCredential: secretbox.Seal(nonce[:], plaintext, &nonce, registry.key),
		Enabled:          service.Enabled,
		StatusMessage:    service.StatusMessage,
		UpdatedAt:        service.UpdatedAt,
	}, nil
}

func (registry *Registry) open(stored *storedService) (*models.Service, error) {
	service := &models.Service{
		ContextId:     stored.ContextId,
		Name:          stored.Name,
		URL:           stored.URL,
		AuthMode:      stored.AuthMode,
		Enabled:       stored.Enabled,
		StatusMessage: stored.StatusMessage,
		UpdatedAt:     stored.UpdatedAt,
	}
	if len(stored.SealedCredential) < 24 {
		return nil, fmt.Errorf("Credential for %s is missing or truncated", stored.URL)
	}
	var nonce [24]byte
	copy(nonce[:], stored.SealedCredential[:24])
	plaintext, ok := secretbox.Open(nil, stored.SealedCredential[24:], &nonce, registry.key)
	if !ok {
		return nil, fmt.Errorf("Cannot decrypt credential for %s. "+
			"Has SWORDV3_CREDENTIALS_KEY changed?", stored.URL)
	}
	if err := json.Unmarshal(plaintext, &service.Credential); err != nil {
		return nil, errors.Wrapf(err, "decoding credential for %s", stored.URL)
	}
	return service, nil
}
