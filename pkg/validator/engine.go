// Package validator validates candidate documents against an assembled
// resolution chain.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/igcatalog/pkg/chain"
	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityFatal       Severity = "fatal"
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
)

// Issue is one diagnostic produced by an Engine.
type Issue struct {
	Severity Severity
	Location string
	Message  string
}

// Result is the outcome of validating one document.
type Result struct {
	Issues []Issue
}

// Successful reports whether no issue is an error or fatal.
func (r *Result) Successful() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError || issue.Severity == SeverityFatal {
			return false
		}
	}
	return true
}

// InvalidInputError reports a candidate document that is not a JSON resource.
type InvalidInputError struct {
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
	}
	return "invalid input: " + e.Reason
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// Engine validates a document using definitions from a chain.
type Engine interface {
	Validate(ctx context.Context, c *chain.Chain, doc []byte) (*Result, error)
}

// StructuralEngine checks a document's resource type, declared profiles and
// coded values against the chain, and optionally validates it against a JSON
// schema.
type StructuralEngine struct {
	schema *jsonschema.Schema
}

// NewStructuralEngine creates an engine. schema may be nil.
func NewStructuralEngine(schema *jsonschema.Schema) *StructuralEngine {
	return &StructuralEngine{schema: schema}
}

const documentSchemaURL = "https://igcatalog.schemas.local/document.schema.json"

// CompileDocumentSchema compiles a JSON schema every candidate document must
// satisfy.
func CompileDocumentSchema(src []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(documentSchemaURL, bytes.NewReader(src)); err != nil {
		return nil, fmt.Errorf("document schema load failed: %w", err)
	}
	compiled, err := c.Compile(documentSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("document schema compile failed: %w", err)
	}
	return compiled, nil
}

// Decode parses doc into a JSON object carrying a resourceType.
func Decode(doc []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 {
		return nil, &InvalidInputError{Reason: "empty document"}
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &InvalidInputError{Reason: "malformed JSON", Err: err}
	}
	if dec.More() {
		return nil, &InvalidInputError{Reason: "trailing data after JSON value"}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &InvalidInputError{Reason: "document is not a JSON object"}
	}
	if rt, _ := obj["resourceType"].(string); rt == "" {
		return nil, &InvalidInputError{Reason: "missing resourceType"}
	}
	return obj, nil
}

func (e *StructuralEngine) Validate(ctx context.Context, c *chain.Chain, doc []byte) (*Result, error) {
	obj, err := Decode(doc)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("validator has no resolution chain")
	}

	rt := obj["resourceType"].(string)
	res := &Result{}

	if _, ok := c.Fetch(ctx, fhir.StructureDefinition, rt); !ok {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityError,
			Location: rt,
			Message:  fmt.Sprintf("Unknown resource type %q", rt),
		})
		return res, nil
	}

	res.Issues = append(res.Issues, e.checkProfiles(ctx, c, rt, obj)...)
	res.Issues = append(res.Issues, checkCodings(ctx, c, rt, obj)...)

	if e.schema != nil {
		if err := e.schema.Validate(obj); err != nil {
			res.Issues = append(res.Issues, schemaIssues(rt, err)...)
		}
	}
	return res, nil
}

func (e *StructuralEngine) checkProfiles(ctx context.Context, c *chain.Chain, rt string, obj map[string]any) []Issue {
	meta, _ := obj["meta"].(map[string]any)
	if meta == nil {
		return nil
	}
	profiles, ok := meta["profile"].([]any)
	if !ok {
		if _, present := meta["profile"]; present {
			return []Issue{{Severity: SeverityError, Location: rt + ".meta.profile", Message: "meta.profile must be an array of canonical urls"}}
		}
		return nil
	}

	var issues []Issue
	for i, p := range profiles {
		loc := fmt.Sprintf("%s.meta.profile[%d]", rt, i)
		url, ok := p.(string)
		if !ok || url == "" {
			issues = append(issues, Issue{Severity: SeverityError, Location: loc, Message: "profile must be a non-empty canonical url"})
			continue
		}
		url, _, _ = strings.Cut(url, "|")
		if _, found := c.Fetch(ctx, fhir.StructureDefinition, url); !found {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: loc,
				Message:  fmt.Sprintf("Profile reference '%s' has not been checked because it is unknown", url),
			})
		}
	}
	return issues
}

// checkCodings reports codings whose system the chain does not know. These
// are warnings: an unknown code system cannot be checked, which is not a
// failure of the document.
func checkCodings(ctx context.Context, c *chain.Chain, rt string, obj map[string]any) []Issue {
	var issues []Issue
	seen := make(map[string]bool)
	walk(rt, obj, func(path string, node map[string]any) {
		system, ok := node["system"].(string)
		if !ok || system == "" {
			return
		}
		if _, hasCode := node["code"]; !hasCode {
			return
		}
		if seen[system] {
			return
		}
		seen[system] = true
		if _, found := c.Fetch(ctx, fhir.CodeSystem, system); !found {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Location: path,
				Message:  fmt.Sprintf("CodeSystem is unknown and can't be validated: %s", system),
			})
		}
	})
	return issues
}

// walk visits every JSON object below v in key order.
func walk(path string, v any, visit func(path string, node map[string]any)) {
	switch node := v.(type) {
	case map[string]any:
		visit(path, node)
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(path+"."+k, node[k], visit)
		}
	case []any:
		for i, item := range node {
			walk(fmt.Sprintf("%s[%d]", path, i), item, visit)
		}
	}
}

func schemaIssues(rt string, err error) []Issue {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []Issue{{Severity: SeverityError, Location: rt, Message: err.Error()}}
	}
	var issues []Issue
	var collect func(*jsonschema.ValidationError)
	collect = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Location: rt + strings.ReplaceAll(v.InstanceLocation, "/", "."),
				Message:  v.Message,
			})
			return
		}
		for _, cause := range v.Causes {
			collect(cause)
		}
	}
	collect(ve)
	return issues
}
