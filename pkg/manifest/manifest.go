// Package manifest decodes implementation-guide index files (.index.json).
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Suffix identifies manifest objects in a store snapshot.
const Suffix = ".index.json"

// CurrentIndexVersion is the index format this package was written against.
const CurrentIndexVersion = 1

// Entry is one declared file of an implementation guide.
type Entry struct {
	Filename     string `json:"filename"`
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
	URL          string `json:"url"`
	Version      string `json:"version"`
	Type         string `json:"type"`
	Kind         string `json:"kind"`
}

// Manifest is a parsed index file. Entries keep their declared order.
type Manifest struct {
	SourceKey    string
	IndexVersion int
	Entries      []Entry
}

type indexFile struct {
	IndexVersion int     `json:"index-version"`
	Files        []Entry `json:"files"`
}

// ParseError reports a malformed manifest.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid manifest %s: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsManifestKey reports whether key names a manifest object.
func IsManifestKey(key string) bool {
	return strings.HasSuffix(key, Suffix)
}

// EntryKey addresses a declared file relative to its manifest: the manifest
// suffix is replaced by the filename.
func EntryKey(manifestKey, filename string) string {
	return strings.TrimSuffix(manifestKey, Suffix) + filename
}

// Parse decodes a manifest. Unknown fields are ignored; structural problems
// fail the whole manifest.
func Parse(key string, data []byte) (*Manifest, error) {
	if !IsManifestKey(key) {
		return nil, &ParseError{Key: key, Err: fmt.Errorf("key does not end with %s", Suffix)}
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Key: key, Err: err}
	}
	schema, err := indexSchema()
	if err != nil {
		return nil, &ParseError{Key: key, Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &ParseError{Key: key, Err: err}
	}

	var idx indexFile
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&idx); err != nil {
		return nil, &ParseError{Key: key, Err: err}
	}

	if idx.IndexVersion != CurrentIndexVersion {
		slog.Default().With("component", "manifest").Warn("unexpected index version",
			"key", key,
			"index_version", idx.IndexVersion,
			"expected", CurrentIndexVersion,
		)
	}

	return &Manifest{
		SourceKey:    key,
		IndexVersion: idx.IndexVersion,
		Entries:      idx.Files,
	}, nil
}

const indexSchemaURL = "https://igcatalog.schemas.local/index.schema.json"

// Optional string fields may also be null.
const indexSchemaSource = `{
  "type": "object",
  "required": ["files"],
  "properties": {
    "index-version": {"type": ["integer", "null"]},
    "files": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["filename", "resourceType"],
        "properties": {
          "filename": {"type": "string", "minLength": 1},
          "resourceType": {"type": "string"},
          "id": {"type": ["string", "null"]},
          "url": {"type": ["string", "null"]},
          "version": {"type": ["string", "null"]},
          "type": {"type": ["string", "null"]},
          "kind": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func indexSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(indexSchemaURL, strings.NewReader(indexSchemaSource)); err != nil {
			schemaErr = fmt.Errorf("index schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(indexSchemaURL)
	})
	return compiledSchema, schemaErr
}
