package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/igcatalog/pkg/validator"
)

const exampleProfile = "http://example.org/fhir/StructureDefinition/example-patient"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setupEnv points the CLI at a file store and a one-guide corpus.
func setupEnv(t *testing.T) (dataDir, igDir string) {
	t.Helper()
	base := t.TempDir()
	dataDir = filepath.Join(base, "store")
	igDir = filepath.Join(base, "implementationGuides")

	writeFile(t, filepath.Join(igDir, "example", "package.json"),
		`{"name":"example.fhir.ig","version":"1.0.0","dependencies":{"hl7.fhir.r4.core":"4.0.1"}}`)
	writeFile(t, filepath.Join(igDir, "example", ".index.json"), `{"index-version":1,"files":[
  {"filename":"StructureDefinition-example-patient.json","resourceType":"StructureDefinition","id":"example-patient","url":"`+exampleProfile+`"}
]}`)
	writeFile(t, filepath.Join(igDir, "example", "StructureDefinition-example-patient.json"),
		`{"resourceType":"StructureDefinition","id":"example-patient","url":"`+exampleProfile+`","type":"Patient"}`)

	t.Setenv("IGCATALOG_CONFIG", "")
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("IG_STORAGE_TYPE", "fs")
	t.Setenv("IG_DATA_DIR", dataDir)
	t.Setenv("IG_DIR", igDir)
	return dataDir, igDir
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"igcatalog"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Help(t *testing.T) {
	code, out, _ := run("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "USAGE:")
	assert.Contains(t, out, "sync")
}

func TestRun_Version(t *testing.T) {
	code, out, _ := run("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, version)
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, errOut := run("bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Unknown command: bogus")
}

func TestRun_EmptyCommand(t *testing.T) {
	code, _, errOut := run("")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Unknown command: ")
}

func TestRun_BadMode(t *testing.T) {
	setupEnv(t)
	code, _, errOut := run("sync", "--mode", "sideways")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown reconcile mode")
}

func TestRun_ValidateUsage(t *testing.T) {
	code, _, errOut := run("validate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Usage: igcatalog validate")
}

func TestRun_SyncCatalogValidate(t *testing.T) {
	dataDir, _ := setupEnv(t)

	code, out, errOut := run("plan", "--mode", "populate")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "put    implementationGuides/example/.index.json")
	assert.Contains(t, out, "populate: 0 to delete, 3 to upload")

	code, out, errOut = run("sync", "--mode", "populate")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "SUCCESS populate")
	assert.FileExists(t, filepath.Join(dataDir, "implementationGuides", "example", ".index.json"))

	code, out, errOut = run("catalog", "--json")
	require.Equal(t, 0, code, errOut)
	var entries []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "StructureDefinition", entries[0]["resourceType"])
	assert.Equal(t, exampleProfile, entries[0]["url"])

	doc := filepath.Join(t.TempDir(), "patient.json")
	writeFile(t, doc, `{"resourceType":"Patient","meta":{"profile":["`+exampleProfile+`"]}}`)
	code, out, errOut = run("validate", doc)
	require.Equal(t, 0, code, errOut)
	var resp validator.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Successful)

	writeFile(t, doc, `{"resourceType":"Patient","meta":{"profile":["http://example.org/fhir/StructureDefinition/unknown"]}}`)
	code, out, _ = run("validate", doc)
	assert.Equal(t, 1, code)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Successful)
}

func TestRun_UpdateRemovesStaleKeys(t *testing.T) {
	dataDir, _ := setupEnv(t)
	writeFile(t, filepath.Join(dataDir, "implementationGuides", "retired", "old.json"), `{}`)

	code, out, errOut := run("sync", "--mode", "update", "--json")
	require.Equal(t, 0, code, errOut)
	var outcome struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, "SUCCESS", outcome.Status)
	assert.Equal(t, "update complete: 1 deleted, 3 uploaded", outcome.Message)
	assert.NoFileExists(t, filepath.Join(dataDir, "implementationGuides", "retired", "old.json"))
}

func TestRun_ProvisionWithoutBucket(t *testing.T) {
	setupEnv(t)
	event := filepath.Join(t.TempDir(), "event.json")
	writeFile(t, event, `{"RequestType":"Create","RequestId":"r-1","StackId":"s","LogicalResourceId":"l","ResourceProperties":{}}`)

	code, out, _ := run("provision", "--event", event)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "FAILED")
}
