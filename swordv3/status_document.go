package swordv3

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"
	"strings"
)

// StatusDocument is a snapshot of one deposit object on the
// server. Every create, replace, append and status call returns
// a new one.
type StatusDocument struct {
	object *jason.Object
	raw    []byte
}

// ParseStatusDocument decodes a status document.
func ParseStatusDocument(data []byte) (*StatusDocument, error) {
	object, err := jason.NewObjectFromBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "malformed status document")
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &StatusDocument{object: object, raw: raw}, nil
}

// Raw returns the JSON the server sent. This is what we persist.
func (doc *StatusDocument) Raw() []byte {
	return doc.raw
}

// ObjectId is the URL of the deposit object.
func (doc *StatusDocument) ObjectId() string {
	id, _ := doc.object.GetString("@id")
	return id
}

// StateURIs returns the declared state URIs in document order.
// Entries may be objects with an @id or bare strings.
func (doc *StatusDocument) StateURIs() []string {
	uris := make([]string, 0)
	values, err := doc.object.GetValueArray("state")
	if err != nil {
		return uris
	}
	for _, value := range values {
		if obj, err := value.Object(); err == nil {
			if id, err := obj.GetString("@id"); err == nil {
				uris = append(uris, id)
			}
		} else if str, err := value.String(); err == nil {
			uris = append(uris, str)
		}
	}
	return uris
}

// SwordStateId maps the declared states to one canonical state.
// The first declared URI that is in the canonical vocabulary wins.
// Returns constants.StateUnknown if none match.
func (doc *StatusDocument) SwordStateId() string {
	for _, uri := range doc.StateURIs() {
		if !strings.HasPrefix(uri, constants.StateURIPrefix) {
			continue
		}
		suffix := strings.TrimPrefix(uri, constants.StateURIPrefix)
		for _, state := range constants.SwordStates {
			if suffix == state {
				return state
			}
		}
	}
	return constants.StateUnknown
}

// CanAppendFiles returns actions.appendFiles.
func (doc *StatusDocument) CanAppendFiles() bool {
	appendFiles, err := doc.object.GetBoolean("actions", "appendFiles")
	return err == nil && appendFiles
}

// FileSetURL returns fileSet.@id, but only while appending files
// is allowed.
func (doc *StatusDocument) FileSetURL() string {
	if !doc.CanAppendFiles() {
		return ""
	}
	id, _ := doc.object.GetString("fileSet", "@id")
	return id
}

// Links returns the @id of every entry in links.
func (doc *StatusDocument) Links() []string {
	links := make([]string, 0)
	objects, err := doc.object.GetObjectArray("links")
	if err != nil {
		return links
	}
	for _, obj := range objects {
		if id, err := obj.GetString("@id"); err == nil {
			links = append(links, id)
		}
	}
	return links
}

// Err returns a RejectedStatus or DeletedStatus error if the server
// has rejected or deleted the object, and nil otherwise.
func (doc *StatusDocument) Err() error {
	switch doc.SwordStateId() {
	case constants.StateRejected:
		return newProtocolError(RejectedStatus, "", doc.ObjectId(),
			fmt.Sprintf("object is %s", constants.StateRejected))
	case constants.StateDeleted:
		return newProtocolError(DeletedStatus, "", doc.ObjectId(),
			fmt.Sprintf("object is %s", constants.StateDeleted))
	}
	return nil
}
