// Package chain assembles resource sources into a lookup chain for the
// validator: base definitions, common terminology, then the catalog.
package chain

import (
	"context"
	"strings"

	"github.com/Mindburn-Labs/igcatalog/pkg/catalog"
	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
)

// Source supplies definitional resources by type and key.
type Source interface {
	Name() string
	Fetch(ctx context.Context, kind fhir.ResourceType, key string) (*fhir.Resource, bool)
}

// CatalogSource adapts a resolved catalog to Source.
type CatalogSource struct {
	cat *catalog.Catalog
}

// NewCatalogSource wraps cat. A nil catalog finds nothing.
func NewCatalogSource(cat *catalog.Catalog) *CatalogSource {
	return &CatalogSource{cat: cat}
}

func (s *CatalogSource) Name() string { return "catalog" }

func (s *CatalogSource) Fetch(_ context.Context, kind fhir.ResourceType, key string) (*fhir.Resource, bool) {
	if s.cat == nil {
		return nil, false
	}
	return s.cat.Lookup(kind, key)
}

// StaticSource is a fixed, in-memory Source. Resources are indexed under
// the same aliases the catalog uses.
type StaticSource struct {
	name  string
	index map[fhir.ResourceType]map[string]*fhir.Resource
}

// NewStaticSource indexes resources. Later resources win on shared aliases.
func NewStaticSource(name string, resources ...*fhir.Resource) *StaticSource {
	s := &StaticSource{name: name, index: make(map[fhir.ResourceType]map[string]*fhir.Resource)}
	for _, res := range resources {
		part, ok := s.index[res.Type]
		if !ok {
			part = make(map[string]*fhir.Resource)
			s.index[res.Type] = part
		}
		for _, alias := range catalog.Aliases(res.URL()) {
			part[alias] = res
		}
	}
	return s
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Fetch(_ context.Context, kind fhir.ResourceType, key string) (*fhir.Resource, bool) {
	res, ok := s.index[kind][key]
	return res, ok
}

// Common code systems every validation run knows about.
const (
	BCP47URL   = "urn:ietf:bcp:47"
	MimeURL    = "urn:ietf:bcp:13"
	UCUMURL    = "http://unitsofmeasure.org"
	ISO4217URL = "urn:iso:std:iso:4217"
	ISO3166URL = "urn:iso:std:iso:3166"
)

// CommonTerminology returns a source holding minimal CodeSystem resources for
// languages, MIME types, units, currencies and countries.
func CommonTerminology() *StaticSource {
	return NewStaticSource("common-terminology",
		fhir.NewResource(fhir.CodeSystem, BCP47URL, "bcp47"),
		fhir.NewResource(fhir.CodeSystem, MimeURL, "mimetypes"),
		fhir.NewResource(fhir.CodeSystem, UCUMURL, "ucum"),
		fhir.NewResource(fhir.CodeSystem, ISO4217URL, "iso4217"),
		fhir.NewResource(fhir.CodeSystem, ISO3166URL, "iso3166"),
	)
}

const coreProfileBase = "http://hl7.org/fhir/StructureDefinition/"

// coreResourceTypes are the base resource types the structural validator
// accepts without an implementation guide.
var coreResourceTypes = []string{
	"AllergyIntolerance", "Binary", "Bundle", "CarePlan", "CareTeam",
	"CodeSystem", "Condition", "Coverage", "Device", "DiagnosticReport",
	"DocumentReference", "Encounter", "Goal", "Immunization", "Location",
	"Medication", "MedicationRequest", "MedicationStatement", "Observation",
	"Organization", "Patient", "Practitioner", "PractitionerRole", "Procedure",
	"Provenance", "Questionnaire", "QuestionnaireResponse", "ServiceRequest",
	"Specimen", "StructureDefinition", "ValueSet",
}

// BaseDefinitions returns the core StructureDefinitions for the given FHIR
// generation.
func BaseDefinitions(v fhir.SchemaVersion) *StaticSource {
	resources := make([]*fhir.Resource, 0, len(coreResourceTypes))
	for _, name := range coreResourceTypes {
		res := fhir.NewResource(fhir.StructureDefinition, coreProfileBase+name, name)
		res.Name = name
		res.FHIRVersion = string(v)
		resources = append(resources, res)
	}
	return NewStaticSource("base-"+strings.ToLower(versionLabel(v)), resources...)
}

func versionLabel(v fhir.SchemaVersion) string {
	if v == fhir.STU3 {
		return "STU3"
	}
	return "R4"
}
