package swordv3

import (
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/pkg/errors"
	"io"
	"strings"
)

type MetadataField struct {
	Name  string
	Value string
}

// MetadataDocument is the descriptive record we send on create
// and replace. Fields keep the order in which they were set, and
// fields whose value is empty after trimming are never stored.
type MetadataDocument struct {
	Id      string
	Type    string
	Context string
	fields  []MetadataField
}

// NewMetadataDocument returns a document for the object whose
// landing page is id.
func NewMetadataDocument(id string) *MetadataDocument {
	return &MetadataDocument{
		Id:      id,
		Type:    constants.MetadataType,
		Context: constants.SwordContextURL,
		fields:  make([]MetadataField, 0),
	}
}

// Set stores the trimmed value under name. Setting an existing
// name replaces its value in place. An empty value removes the
// field.
func (doc *MetadataDocument) Set(name, value string) {
	value = strings.TrimSpace(value)
	for i, field := range doc.fields {
		if field.Name == name {
			if value == "" {
				doc.fields = append(doc.fields[:i], doc.fields[i+1:]...)
			} else {
				doc.fields[i].Value = value
			}
			return
		}
	}
	if value != "" {
		doc.fields = append(doc.fields, MetadataField{Name: name, Value: value})
	}
}

func (doc *MetadataDocument) Get(name string) (string, bool) {
	for _, field := range doc.fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return "", false
}

// Fields returns a copy of the fields in order.
func (doc *MetadataDocument) Fields() []MetadataField {
	fields := make([]MetadataField, len(doc.fields))
	copy(fields, doc.fields)
	return fields
}

func (doc *MetadataDocument) Len() int {
	return len(doc.fields)
}

// MarshalJSON writes @id, @type and @context followed by the
// fields in order.
func (doc *MetadataDocument) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	pairs := []MetadataField{
		{Name: "@id", Value: doc.Id},
		{Name: "@type", Value: doc.Type},
		{Name: "@context", Value: doc.Context},
	}
	pairs = append(pairs, doc.fields...)
	for i, pair := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(buf, pair.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(buf, pair.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeJSONString writes str as a JSON string without escaping
// HTML characters, which titles and abstracts often contain.
func writeJSONString(buf *bytes.Buffer, str string) error {
	encoded := &bytes.Buffer{}
	encoder := json.NewEncoder(encoded)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(str); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(encoded.Bytes(), "\n"))
	return nil
}

// ParseMetadataDocument reads a document written by MarshalJSON,
// keeping field order. Non-string field values are an error.
func ParseMetadataDocument(data []byte) (*MetadataDocument, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	token, err := decoder.Token()
	if err != nil {
		return nil, errors.Wrap(err, "malformed metadata document")
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("malformed metadata document: expected object")
	}
	doc := NewMetadataDocument("")
	doc.Type = ""
	doc.Context = ""
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, errors.Wrap(err, "malformed metadata document")
		}
		key, _ := keyToken.(string)
		var value string
		if err := decoder.Decode(&value); err != nil {
			return nil, errors.Wrapf(err, "metadata field %s", key)
		}
		switch key {
		case "@id":
			doc.Id = value
		case "@type":
			doc.Type = value
		case "@context":
			doc.Context = value
		default:
			doc.Set(key, value)
		}
	}
	if _, err := decoder.Token(); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "malformed metadata document")
	}
	return doc, nil
}
