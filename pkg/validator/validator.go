package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mindburn-Labs/igcatalog/pkg/chain"
	"github.com/Mindburn-Labs/igcatalog/pkg/observability"
)

// InvalidJSONMessage is the single diagnostic returned for unusable input.
const InvalidJSONMessage = "Invalid JSON"

// Message is one diagnostic in a Response.
type Message struct {
	Severity string `json:"severity"`
	Msg      string `json:"msg"`
	Location string `json:"location,omitempty"`
}

// Response is the boundary result of a validation request.
type Response struct {
	Successful bool      `json:"isSuccessful"`
	Messages   []Message `json:"errorMessages"`
}

// InvalidJSONResponse is returned for empty or malformed documents.
func InvalidJSONResponse() Response {
	return Response{
		Successful: false,
		Messages:   []Message{{Severity: string(SeverityError), Msg: InvalidJSONMessage}},
	}
}

// Validator is the boundary between callers and an Engine. It never returns
// an error; every failure becomes a Response.
type Validator struct {
	engine Engine
	holder *chain.Holder
	obs    *observability.Provider
	logger *slog.Logger
}

// New creates a Validator reading its chain from holder. A nil provider
// disables telemetry.
func New(engine Engine, holder *chain.Holder, obs *observability.Provider) *Validator {
	if obs == nil {
		obs = observability.Disabled()
	}
	return &Validator{
		engine: engine,
		holder: holder,
		obs:    obs,
		logger: slog.Default().With("component", "validator"),
	}
}

// Validate validates doc against the current chain.
func (v *Validator) Validate(ctx context.Context, doc []byte) Response {
	ctx, finish := v.obs.TrackOperation(ctx, "validator.validate")

	result, err := v.engine.Validate(ctx, v.holder.Load(), doc)
	if err != nil {
		var invalid *InvalidInputError
		if errors.As(err, &invalid) {
			// Bad input is a validation outcome, not an operation failure.
			finish(nil)
			v.logger.DebugContext(ctx, "rejected candidate document", "reason", invalid.Reason)
			return InvalidJSONResponse()
		}
		finish(err)
		v.logger.ErrorContext(ctx, "validation engine failed", "error", err)
		return Response{
			Successful: false,
			Messages:   []Message{{Severity: string(SeverityFatal), Msg: err.Error()}},
		}
	}
	finish(nil)

	resp := Response{Successful: result.Successful(), Messages: make([]Message, 0, len(result.Issues))}
	for _, issue := range result.Issues {
		resp.Messages = append(resp.Messages, Message{
			Severity: string(issue.Severity),
			Msg:      issue.Message,
			Location: issue.Location,
		})
	}
	v.obs.RecordValidation(ctx, resp.Successful)
	observability.AddSpanEvent(ctx, "validation.result", observability.AttrValidationOK.Bool(resp.Successful))
	return resp
}

// Warmup validates a representative Patient so the first real request does
// not pay for cold lookups.
func (v *Validator) Warmup(ctx context.Context) error {
	resp := v.Validate(ctx, []byte(WarmupPatient))
	for _, m := range resp.Messages {
		if m.Severity == string(SeverityFatal) || m.Msg == InvalidJSONMessage {
			return fmt.Errorf("validator warm-up failed: %s", m.Msg)
		}
	}
	c := v.holder.Load()
	if c != nil {
		stats := c.Stats()
		v.logger.InfoContext(ctx, "validator warmed up",
			"successful", resp.Successful,
			"messages", len(resp.Messages),
			"cached_lookups", stats.Entries,
		)
	}
	return nil
}

// WarmupPatient is a synthetic Patient touching identifiers, codings,
// extensions and addresses.
const WarmupPatient = `{
  "resourceType": "Patient",
  "id": "a8bc0c9f-47b3-ee31-60c6-fb8ce8077ac7",
  "extension": [
    {"url": "http://hl7.org/fhir/StructureDefinition/patient-mothersMaidenName", "valueString": "Son314 Vandervort697"},
    {"url": "http://hl7.org/fhir/StructureDefinition/patient-birthPlace", "valueAddress": {"city": "New Bedford", "state": "Massachusetts", "country": "US"}}
  ],
  "identifier": [
    {"system": "https://github.com/synthetichealth/synthea", "value": "a8bc0c9f-47b3-ee31-60c6-fb8ce8077ac7"},
    {
      "type": {"coding": [{"system": "http://terminology.hl7.org/CodeSystem/v2-0203", "code": "MR", "display": "Medical Record Number"}], "text": "Medical Record Number"},
      "system": "http://hospital.smarthealthit.org",
      "value": "a8bc0c9f-47b3-ee31-60c6-fb8ce8077ac7"
    }
  ],
  "name": [{"use": "official", "family": "Beier427", "given": ["Minnie888"], "prefix": ["Mrs."]}],
  "telecom": [{"system": "phone", "value": "555-390-9260", "use": "home"}],
  "gender": "female",
  "birthDate": "1949-01-01",
  "address": [{"line": ["862 Sauer Station Suite 31"], "city": "Plymouth", "state": "Massachusetts", "country": "US"}],
  "maritalStatus": {"coding": [{"system": "http://terminology.hl7.org/CodeSystem/v3-MaritalStatus", "code": "M", "display": "M"}], "text": "M"},
  "communication": [{"language": {"coding": [{"system": "urn:ietf:bcp:47", "code": "en-US", "display": "English"}], "text": "English"}}]
}`
