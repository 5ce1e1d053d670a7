package catalog

import (
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
)

// MissingResourceError reports a manifest entry with no matching object.
type MissingResourceError struct {
	Manifest    string
	Filename    string
	ExpectedKey string
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("manifest %s declares %s but no object matches %s", e.Manifest, e.Filename, e.ExpectedKey)
}

// AmbiguousResourceError reports an entry whose expected key prefixes more
// than one object while matching none of them exactly.
type AmbiguousResourceError struct {
	Manifest    string
	ExpectedKey string
	Candidates  []string
}

func (e *AmbiguousResourceError) Error() string {
	return fmt.Sprintf("manifest %s: %s matches %d objects (%s)",
		e.Manifest, e.ExpectedKey, len(e.Candidates), strings.Join(e.Candidates, ", "))
}

// TypeMismatchError reports content whose resourceType differs from the
// type its manifest declared.
type TypeMismatchError struct {
	Key      string
	Declared fhir.ResourceType
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: declared as %s but content is %q", e.Key, e.Declared, e.Actual)
}

// MissingURLError reports a definitional resource without a canonical url.
type MissingURLError struct {
	Key  string
	Type fhir.ResourceType
}

func (e *MissingURLError) Error() string {
	return fmt.Sprintf("%s: %s has no canonical url", e.Key, e.Type)
}

// AliasCollisionError reports two distinct canonical urls claiming the same
// alias under the strict alias policy.
type AliasCollisionError struct {
	Type     fhir.ResourceType
	Alias    string
	Existing string
	Incoming string
}

func (e *AliasCollisionError) Error() string {
	return fmt.Sprintf("%s alias %q is claimed by both %s and %s", e.Type, e.Alias, e.Existing, e.Incoming)
}
