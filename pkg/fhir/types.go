// Package fhir holds the small slice of FHIR the catalog needs: the closed
// set of definitional resource types, the schema generations, and a parser
// that extracts type name and canonical url from resource JSON.
package fhir

import "fmt"

// ResourceType is the closed set of definitional resources the catalog
// accepts. The zero value is not a valid type.
type ResourceType int

const (
	StructureDefinition ResourceType = iota + 1
	CodeSystem
	ValueSet
)

// AllResourceTypes lists every ResourceType in registration order.
var AllResourceTypes = []ResourceType{StructureDefinition, CodeSystem, ValueSet}

// ParseResourceType maps a declared type name onto the closed set.
// The second result is false for any type outside the set.
func ParseResourceType(name string) (ResourceType, bool) {
	switch name {
	case "StructureDefinition":
		return StructureDefinition, true
	case "CodeSystem":
		return CodeSystem, true
	case "ValueSet":
		return ValueSet, true
	default:
		return 0, false
	}
}

func (t ResourceType) String() string {
	switch t {
	case StructureDefinition:
		return "StructureDefinition"
	case CodeSystem:
		return "CodeSystem"
	case ValueSet:
		return "ValueSet"
	default:
		return fmt.Sprintf("ResourceType(%d)", int(t))
	}
}

// Valid reports whether t is a member of the closed set.
func (t ResourceType) Valid() bool {
	return t >= StructureDefinition && t <= ValueSet
}

// SchemaVersion selects the FHIR schema generation used for parsing.
type SchemaVersion string

const (
	R4   SchemaVersion = "4.0.1"
	STU3 SchemaVersion = "3.0.1"
)

// ParseSchemaVersion accepts the release names and numeric versions used in
// FHIR_VERSION. Empty input selects R4.
func ParseSchemaVersion(v string) (SchemaVersion, error) {
	switch v {
	case "", "R4", "r4", "4.0.1", "4.0":
		return R4, nil
	case "STU3", "stu3", "R3", "r3", "3.0.1", "3.0", "3.0.2":
		return STU3, nil
	default:
		return "", fmt.Errorf("unsupported FHIR version: %q", v)
	}
}

// Accepts reports whether a resource-declared fhirVersion belongs to this
// generation. An empty declaration is always accepted.
func (v SchemaVersion) Accepts(declared string) bool {
	if declared == "" {
		return true
	}
	switch v {
	case R4:
		return len(declared) >= 2 && declared[:2] == "4."
	case STU3:
		return len(declared) >= 2 && declared[:2] == "3."
	default:
		return false
	}
}
