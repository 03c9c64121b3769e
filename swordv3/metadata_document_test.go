package swordv3_test

import (
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/swordv3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestMetadataDocumentSet(t *testing.T) {
	doc := swordv3.NewMetadataDocument("https://journal.example.com/article/view/1")
	assert.Equal(t, constants.MetadataType, doc.Type)
	assert.Equal(t, constants.SwordContextURL, doc.Context)

	doc.Set("dc:title", "  A Title  ")
	doc.Set("dc:creator", "Ada Lovelace")
	doc.Set("dc:description", "   ")
	doc.Set("dc:date", "")
	assert.Equal(t, 2, doc.Len())
	title, ok := doc.Get("dc:title")
	assert.True(t, ok)
	assert.Equal(t, "A Title", title)
	_, ok = doc.Get("dc:description")
	assert.False(t, ok)

	// Replacing keeps position; blanking removes.
	doc.Set("dc:title", "New Title")
	doc.Set("dc:subject", "Math")
	doc.Set("dc:creator", " ")
	fields := doc.Fields()
	require.Equal(t, 2, len(fields))
	assert.Equal(t, swordv3.MetadataField{Name: "dc:title", Value: "New Title"}, fields[0])
	assert.Equal(t, swordv3.MetadataField{Name: "dc:subject", Value: "Math"}, fields[1])
}

func TestMetadataDocumentMarshalJSON(t *testing.T) {
	doc := swordv3.NewMetadataDocument("https://journal.example.com/article/view/1")
	doc.Set("dc:title", "Quotes \"and\" <tags>")
	doc.Set("dc:creator", "Ada Lovelace")
	data, err := doc.MarshalJSON()
	require.Nil(t, err)
	expected := `{"@id":"https://journal.example.com/article/view/1",` +
		`"@type":"Metadata",` +
		`"@context":"https://swordapp.github.io/swordv3/swordv3.jsonld",` +
		`"dc:title":"Quotes \"and\" <tags>",` +
		`"dc:creator":"Ada Lovelace"}`
	assert.Equal(t, expected, string(data))
}

func TestMetadataDocumentRoundTrip(t *testing.T) {
	doc := swordv3.NewMetadataDocument("https://journal.example.com/article/view/9")
	input := []swordv3.MetadataField{
		{Name: "dc:title", Value: "Round Trip"},
		{Name: "dc:creator", Value: "  Grace Hopper "},
		{Name: "dc:description", Value: "\t\n"},
		{Name: "dc:identifier", Value: "10.1234/abc"},
		{Name: "dc:language", Value: ""},
		{Name: "dcterms:license", Value: "https://creativecommons.org/licenses/by/4.0/"},
	}
	for _, field := range input {
		doc.Set(field.Name, field.Value)
	}
	data, err := doc.MarshalJSON()
	require.Nil(t, err)

	parsed, err := swordv3.ParseMetadataDocument(data)
	require.Nil(t, err)
	assert.Equal(t, doc.Id, parsed.Id)
	assert.Equal(t, doc.Type, parsed.Type)
	assert.Equal(t, doc.Context, parsed.Context)
	assert.Equal(t, []swordv3.MetadataField{
		{Name: "dc:title", Value: "Round Trip"},
		{Name: "dc:creator", Value: "Grace Hopper"},
		{Name: "dc:identifier", Value: "10.1234/abc"},
		{Name: "dcterms:license", Value: "https://creativecommons.org/licenses/by/4.0/"},
	}, parsed.Fields())
}

func TestParseMetadataDocumentErrors(t *testing.T) {
	_, err := swordv3.ParseMetadataDocument([]byte(`[1,2]`))
	assert.NotNil(t, err)
	_, err = swordv3.ParseMetadataDocument([]byte(`{"dc:title": 42}`))
	assert.NotNil(t, err)
	_, err = swordv3.ParseMetadataDocument([]byte(``))
	assert.NotNil(t, err)
}
