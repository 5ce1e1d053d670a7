package fhir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Resource is a parsed definitional resource.
type Resource struct {
	Type        ResourceType
	ID          string
	Name        string
	Version     string
	Status      string
	FHIRVersion string

	typeName string
	url      string
	raw      json.RawMessage
}

// NewResource builds a Resource directly. It is used by built-in sources that
// do not come from JSON.
func NewResource(t ResourceType, url, id string) *Resource {
	return &Resource{Type: t, ID: id, typeName: t.String(), url: url}
}

// TypeName is the resourceType the content itself declares.
func (r *Resource) TypeName() string { return r.typeName }

// URL is the canonical url, possibly empty.
func (r *Resource) URL() string { return r.url }

// Raw returns the original JSON.
func (r *Resource) Raw() json.RawMessage { return r.raw }

// ParseError reports content that could not be decoded as the requested type.
type ParseError struct {
	Type ResourceType
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Type, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser is the resource parsing capability used by the catalog resolver.
type Parser interface {
	Parse(t ResourceType, v SchemaVersion, data []byte) (*Resource, error)
}

// JSONParser decodes resource JSON strictly: the document must be a single
// JSON object, and the fields it reads must have the right JSON types.
type JSONParser struct{}

type resourceFields struct {
	ResourceType *string `json:"resourceType"`
	ID           string  `json:"id"`
	URL          *string `json:"url"`
	Name         string  `json:"name"`
	Version      string  `json:"version"`
	Status       string  `json:"status"`
	FHIRVersion  string  `json:"fhirVersion"`
}

func (JSONParser) Parse(t ResourceType, v SchemaVersion, data []byte) (*Resource, error) {
	if !t.Valid() {
		return nil, &ParseError{Type: t, Err: fmt.Errorf("unsupported resource type")}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ParseError{Type: t, Err: fmt.Errorf("content is not a JSON object")}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var fields resourceFields
	if err := dec.Decode(&fields); err != nil {
		return nil, &ParseError{Type: t, Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Type: t, Err: fmt.Errorf("trailing data after JSON object")}
	}
	if fields.ResourceType == nil || *fields.ResourceType == "" {
		return nil, &ParseError{Type: t, Err: fmt.Errorf("missing resourceType")}
	}
	if !v.Accepts(fields.FHIRVersion) {
		return nil, &ParseError{Type: t, Err: fmt.Errorf("fhirVersion %s is not compatible with %s", fields.FHIRVersion, v)}
	}

	res := &Resource{
		Type:        t,
		ID:          fields.ID,
		Name:        fields.Name,
		Version:     fields.Version,
		Status:      fields.Status,
		FHIRVersion: fields.FHIRVersion,
		typeName:    *fields.ResourceType,
		raw:         append(json.RawMessage(nil), trimmed...),
	}
	if fields.URL != nil {
		res.url = *fields.URL
	}
	return res, nil
}
