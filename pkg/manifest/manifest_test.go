package manifest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usCoreIndex = `{
  "index-version": 1,
  "files": [
    {
      "filename": "StructureDefinition-us-core-patient.json",
      "resourceType": "StructureDefinition",
      "id": "us-core-patient",
      "url": "http://hl7.org/fhir/us/core/StructureDefinition/us-core-patient",
      "version": "3.1.1",
      "kind": "resource",
      "type": "Patient"
    },
    {
      "filename": "ValueSet-birthsex.json",
      "resourceType": "ValueSet",
      "id": "birthsex",
      "url": "http://hl7.org/fhir/us/core/ValueSet/birthsex",
      "version": "3.1.1"
    },
    {
      "filename": "SearchParameter-us-core-race.json",
      "resourceType": "SearchParameter",
      "id": "us-core-race"
    }
  ]
}`

func TestParse(t *testing.T) {
	m, err := Parse("us-core/.index.json", []byte(usCoreIndex))
	require.NoError(t, err)

	assert.Equal(t, "us-core/.index.json", m.SourceKey)
	assert.Equal(t, 1, m.IndexVersion)
	require.Len(t, m.Entries, 3)
	assert.Equal(t, Entry{
		Filename:     "StructureDefinition-us-core-patient.json",
		ResourceType: "StructureDefinition",
		ID:           "us-core-patient",
		URL:          "http://hl7.org/fhir/us/core/StructureDefinition/us-core-patient",
		Version:      "3.1.1",
		Type:         "Patient",
		Kind:         "resource",
	}, m.Entries[0])
	assert.Equal(t, "ValueSet-birthsex.json", m.Entries[1].Filename)
	assert.Equal(t, "SearchParameter", m.Entries[2].ResourceType)
}

func TestParse_IgnoresUnknownFields(t *testing.T) {
	data := `{
	  "index-version": 1,
	  "generated-by": "publisher",
	  "files": [{"filename": "a.json", "resourceType": "CodeSystem", "experimental": true, "url": null}]
	}`
	m, err := Parse("ig/.index.json", []byte(data))
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "a.json", m.Entries[0].Filename)
	assert.Empty(t, m.Entries[0].URL)
}

func TestParse_PreservesUnexpectedVersion(t *testing.T) {
	m, err := Parse("ig/.index.json", []byte(`{"index-version": 7, "files": []}`))
	require.NoError(t, err)
	assert.Equal(t, 7, m.IndexVersion)
	assert.Empty(t, m.Entries)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		data string
	}{
		{"not json", "ig/.index.json", `{"files": [`},
		{"empty", "ig/.index.json", ``},
		{"root array", "ig/.index.json", `[]`},
		{"missing files", "ig/.index.json", `{"index-version": 1}`},
		{"files not array", "ig/.index.json", `{"files": {}}`},
		{"entry without filename", "ig/.index.json", `{"files": [{"resourceType": "ValueSet"}]}`},
		{"filename not string", "ig/.index.json", `{"files": [{"filename": 3, "resourceType": "ValueSet"}]}`},
		{"version not integer", "ig/.index.json", `{"index-version": "one", "files": []}`},
		{"wrong key", "ig/package.json", `{"files": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.key, []byte(tt.data))
			assert.Nil(t, m)
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "expected *ParseError, got %v", err)
			assert.Equal(t, tt.key, pe.Key)
		})
	}
}

func TestEntryKey(t *testing.T) {
	assert.Equal(t, "ig/profile.json", EntryKey("ig/.index.json", "profile.json"))
	assert.Equal(t, "profile.json", EntryKey(".index.json", "profile.json"))
	assert.Equal(t, "a/b/us-core.json", EntryKey("a/b/us-core.index.json", ".json"))
}

func TestIsManifestKey(t *testing.T) {
	assert.True(t, IsManifestKey("us-core/.index.json"))
	assert.False(t, IsManifestKey("us-core/.index.json.bak"))
	assert.False(t, IsManifestKey("us-core/ValueSet-a.json"))
}
