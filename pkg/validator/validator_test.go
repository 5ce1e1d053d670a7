package validator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/igcatalog/pkg/catalog"
	"github.com/Mindburn-Labs/igcatalog/pkg/chain"
	"github.com/Mindburn-Labs/igcatalog/pkg/fhir"
	"github.com/Mindburn-Labs/igcatalog/pkg/manifest"
	"github.com/Mindburn-Labs/igcatalog/pkg/store"
)

const usCorePatient = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-patient"

func baseChain(cat *catalog.Catalog) *chain.Chain {
	return chain.Build(cat, chain.BaseDefinitions(fhir.R4), chain.CommonTerminology())
}

func usCoreCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	manifests := []*manifest.Manifest{{
		SourceKey: "us-core/.index.json",
		Entries:   []manifest.Entry{{Filename: "StructureDefinition-us-core-patient.json", ResourceType: "StructureDefinition"}},
	}}
	objects := []store.Object{{
		Key:     "us-core/StructureDefinition-us-core-patient.json",
		Content: []byte(`{"resourceType":"StructureDefinition","id":"us-core-patient","url":"` + usCorePatient + `","type":"Patient"}`),
	}}
	cat, err := catalog.NewResolver(catalog.Options{}).Resolve(context.Background(), manifests, objects)
	require.NoError(t, err)
	return cat
}

func newTestValidator(c *chain.Chain) *Validator {
	return New(NewStructuralEngine(nil), chain.NewHolder(c), nil)
}

func TestValidate_InvalidInput(t *testing.T) {
	v := newTestValidator(baseChain(nil))
	for _, doc := range []string{"", "   ", "[1,2,3]", "null", "123", "true", "{a:<>}}}", `{"id":"x"}`, `{"resourceType":"Patient"} {}`} {
		resp := v.Validate(context.Background(), []byte(doc))
		assert.Equal(t, InvalidJSONResponse(), resp, "input %q", doc)
	}
}

func TestValidate_InvalidJSONWireShape(t *testing.T) {
	resp := newTestValidator(baseChain(nil)).Validate(context.Background(), nil)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"isSuccessful":false,"errorMessages":[{"severity":"error","msg":"Invalid JSON"}]}`, string(data))
}

func TestValidate_SimplePatient(t *testing.T) {
	resp := newTestValidator(baseChain(nil)).Validate(context.Background(), []byte(`{"resourceType":"Patient"}`))
	assert.True(t, resp.Successful)
	assert.Empty(t, resp.Messages)
}

func TestValidate_UnknownResourceType(t *testing.T) {
	resp := newTestValidator(baseChain(nil)).Validate(context.Background(), []byte(`{"resourceType":"Spaceship"}`))
	assert.False(t, resp.Successful)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Spaceship", resp.Messages[0].Location)
}

func TestValidate_ProfileRequiresCatalog(t *testing.T) {
	doc := []byte(`{"resourceType":"Patient","meta":{"profile":["` + usCorePatient + `"]}}`)

	resp := newTestValidator(baseChain(nil)).Validate(context.Background(), doc)
	assert.False(t, resp.Successful, "unknown profile fails without the IG loaded")
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Patient.meta.profile[0]", resp.Messages[0].Location)

	resp = newTestValidator(baseChain(usCoreCatalog(t))).Validate(context.Background(), doc)
	assert.True(t, resp.Successful)
}

func TestValidate_VersionedProfile(t *testing.T) {
	doc := []byte(`{"resourceType":"Patient","meta":{"profile":["` + usCorePatient + `|3.1.1"]}}`)
	resp := newTestValidator(baseChain(usCoreCatalog(t))).Validate(context.Background(), doc)
	assert.True(t, resp.Successful)
}

func TestValidate_UnknownCodeSystemIsWarning(t *testing.T) {
	doc := []byte(`{"resourceType":"Patient","communication":[{"language":{"coding":[{"system":"urn:ietf:bcp:47","code":"en"}]}}],
		"maritalStatus":{"coding":[{"system":"http://example.org/cs","code":"M"}]}}`)

	resp := newTestValidator(baseChain(nil)).Validate(context.Background(), doc)
	assert.True(t, resp.Successful)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "warning", resp.Messages[0].Severity)
	assert.Equal(t, "Patient.maritalStatus.coding[0]", resp.Messages[0].Location)
}

func TestValidate_DocumentSchema(t *testing.T) {
	schema, err := CompileDocumentSchema([]byte(`{"type":"object","properties":{"gender":{"enum":["male","female","other","unknown"]}}}`))
	require.NoError(t, err)
	v := New(NewStructuralEngine(schema), chain.NewHolder(baseChain(nil)), nil)

	assert.True(t, v.Validate(context.Background(), []byte(`{"resourceType":"Patient","gender":"female"}`)).Successful)

	resp := v.Validate(context.Background(), []byte(`{"resourceType":"Patient","gender":"robot"}`))
	assert.False(t, resp.Successful)
	require.NotEmpty(t, resp.Messages)
	assert.Equal(t, "Patient.gender", resp.Messages[0].Location)
}

func TestCompileDocumentSchema_Invalid(t *testing.T) {
	_, err := CompileDocumentSchema([]byte(`{"type":`))
	require.Error(t, err)
}

type failingEngine struct{}

func (failingEngine) Validate(context.Context, *chain.Chain, []byte) (*Result, error) {
	return nil, errors.New("engine exploded")
}

func TestValidate_EngineFailure(t *testing.T) {
	resp := New(failingEngine{}, chain.NewHolder(nil), nil).Validate(context.Background(), []byte(`{"resourceType":"Patient"}`))
	assert.False(t, resp.Successful)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "fatal", resp.Messages[0].Severity)
}

func TestValidate_NoChain(t *testing.T) {
	resp := newTestValidator(nil).Validate(context.Background(), []byte(`{"resourceType":"Patient"}`))
	assert.False(t, resp.Successful)
}

func TestWarmup(t *testing.T) {
	c := baseChain(nil)
	v := newTestValidator(c)
	require.NoError(t, v.Warmup(context.Background()))
	assert.NotZero(t, c.Stats().Entries)

	require.Error(t, New(failingEngine{}, chain.NewHolder(nil), nil).Warmup(context.Background()))
}

func TestDecode(t *testing.T) {
	obj, err := Decode([]byte(` {"resourceType":"Observation","valueQuantity":{"value":1.50}} `))
	require.NoError(t, err)
	assert.Equal(t, "Observation", obj["resourceType"])

	_, err = Decode([]byte(`[]`))
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
}
