package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	"backoffice/internal/services"
)

// testEnv points the command at the in-memory backend and a temp journal.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REMOTE_BACKEND", "memory")
	t.Setenv("RECALC_MODE", "inline")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "journal.db"))
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const createEdits = `productId: 3
edits:
  - fundId: 10
    month: 2024-02
    fieldType: Investment
    value: 1,000
    isNew: true
  - fundId: 10
    month: 2024-01
    fieldType: Current Value
    value: 950
    isNew: true
`

func TestApply(t *testing.T) {
	dir := testEnv(t)
	path := writeFile(t, dir, "edits.yaml", createEdits)

	out, err := run(t, "apply", "-f", path, "--json")
	require.NoError(t, err)

	var res core.SaveResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ProcessedActivities)
	assert.Equal(t, 1, res.ProcessedValuations)
	assert.NotEmpty(t, res.BatchID)

	out, err = run(t, "batches", "list", "--json")
	require.NoError(t, err)
	var batches []core.BatchRecord
	require.NoError(t, json.Unmarshal([]byte(out), &batches))
	require.Len(t, batches, 1)
	assert.Equal(t, res.BatchID, batches[0].ID)
	assert.Equal(t, int64(3), batches[0].ProductID)

	out, err = run(t, "batches", "show", res.BatchID)
	require.NoError(t, err)
	assert.Contains(t, out, res.BatchID)
	assert.Contains(t, out, "saved")
}

func TestApply_MissingProduct(t *testing.T) {
	dir := testEnv(t)
	path := writeFile(t, dir, "edits.yaml", strings.Replace(createEdits, "productId: 3\n", "", 1))

	_, err := run(t, "apply", "-f", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMissingProductID)

	out, err := run(t, "apply", "-f", path, "--product", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "saved")
}

func TestApply_PartialFailureWritesRetryFile(t *testing.T) {
	dir := testEnv(t)
	path := writeFile(t, dir, "edits.yaml", createEdits+`  - fundId: 10
    month: 2024-03
    fieldType: Investment
    value: 5
    originalRecordId: 999
`)
	retry := filepath.Join(dir, "retry.yaml")

	out, err := run(t, "apply", "-f", path, "--failed-out", retry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 edits failed")
	assert.Contains(t, out, "partial failure")

	data, err := os.ReadFile(retry)
	require.NoError(t, err)
	assert.Contains(t, string(data), "originalRecordId: 999")

	out, err = run(t, "batches", "failed", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"originalRecordId": 999`)
}

func TestApply_InvalidBatchFails(t *testing.T) {
	dir := testEnv(t)
	path := writeFile(t, dir, "edits.yaml", `productId: 3
edits:
  - fundId: 10
    month: February
    fieldType: Investment
    value: 1
    isNew: true
`)

	_, err := run(t, "apply", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save failed")
}

func TestPlan(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "edits.yaml", `edits:
  - fundId: 4
    month: 2024-05
    fieldType: Investmnt
    value: 1
    isNew: true
  - fundId: 4
    month: 2024-02
    fieldType: Current Value
    value: 2
    isNew: true
`)

	out, err := run(t, "plan", "-f", path, "--json")
	require.NoError(t, err)
	var plan services.SavePlan
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.True(t, plan.Valid)
	assert.Equal(t, []core.RecalcPlan{{FundID: 4, ActivityDate: "2024-02-01"}}, plan.Recalculations)

	out, err = run(t, "plan", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, `did you mean "Investment"?`)
	assert.Contains(t, out, "Recalculate IRR for fund 4 from 2024-02-01")
}

func TestPlan_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "edits.yaml", `edits:
  - fundId: 4
    month: 2024-05
    fieldType: Investment
    value: 1
    isNew: true
    toDelete: true
`)
	_, err := run(t, "plan", "-f", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid batch")
}

func TestExport(t *testing.T) {
	dir := testEnv(t)
	path := writeFile(t, dir, "edits.yaml", createEdits)
	_, err := run(t, "apply", "-f", path)
	require.NoError(t, err)

	out, err := run(t, "export", "--json")
	require.NoError(t, err)
	var got struct {
		ExportedNow int   `json:"exportedNow"`
		Pending     int64 `json:"pending"`
		Exported    int64 `json:"exported"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.ExportedNow)
	assert.Equal(t, int64(0), got.Pending)
	assert.Equal(t, int64(1), got.Exported)
}

func TestBatchesShow_NotFound(t *testing.T) {
	testEnv(t)
	_, err := run(t, "batches", "show", "missing")
	assert.Error(t, err)
}
