package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns captured stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, raw string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp), "raw output: %s", raw)
	return resp
}

func TestLifecycleThroughCLI(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chronicle.db")

	out, err := runCLI(t, "--db", db, "--format", "json",
		"create", "order/42", "order_status", `{"status":"ordered"}`, "--at", "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	out, err = runCLI(t, "--db", db, "--format", "json",
		"supersede", "order/42", `{"status":"paid"}`, "--at", "2026-01-02T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "ok", decodeResponse(t, out).Status)

	out, err = runCLI(t, "--db", db, "--format", "json", "current", "order/42")
	require.NoError(t, err)
	resp = decodeResponse(t, out)
	require.Equal(t, "ok", resp.Status)

	var view VersionView
	data, merr := json.Marshal(resp.Data)
	require.NoError(t, merr)
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, "order/42", view.SubjectID)
	assert.Equal(t, "order_status", view.Kind)
	assert.JSONEq(t, `{"status":"paid"}`, string(view.Payload))
	assert.Equal(t, "open", view.ValidTo)

	out, err = runCLI(t, "--db", db, "--format", "json", "asof", "order/42", "2026-01-01T12:00:00Z")
	require.NoError(t, err)
	resp = decodeResponse(t, out)
	require.Equal(t, "ok", resp.Status)
	data, merr = json.Marshal(resp.Data)
	require.NoError(t, merr)
	require.NoError(t, json.Unmarshal(data, &view))
	assert.JSONEq(t, `{"status":"ordered"}`, string(view.Payload))

	out, err = runCLI(t, "--db", db, "--format", "json", "history", "order/42")
	require.NoError(t, err)
	resp = decodeResponse(t, out)
	require.Equal(t, "ok", resp.Status)
	var views []VersionView
	data, merr = json.Marshal(resp.Data)
	require.NoError(t, merr)
	require.NoError(t, json.Unmarshal(data, &views))
	assert.Len(t, views, 2)

	_, err = runCLI(t, "--db", db, "retire", "order/42", "--at", "2026-01-03T00:00:00Z")
	require.NoError(t, err)

	out, err = runCLI(t, "--db", db, "--format", "json", "current", "order/42")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", decodeResponse(t, out).Status)

	out, err = runCLI(t, "--db", db, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "All invariants hold")
}

func TestCreateDuplicateExitsNonZero(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chronicle.db")

	_, err := runCLI(t, "--db", db, "create", "order/1", "order_status", `{"status":"ordered"}`)
	require.NoError(t, err)

	out, err := runCLI(t, "--db", db, "--format", "json", "create", "order/1", "order_status", `{"status":"ordered"}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DUPLICATE_SUBJECT", resp.Error.Code)
}

func TestSupersedeNonMonotonicExitsNonZero(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chronicle.db")

	_, err := runCLI(t, "--db", db, "create", "order/1", "order_status", `{"status":"ordered"}`, "--at", "2026-01-02T00:00:00Z")
	require.NoError(t, err)

	out, err := runCLI(t, "--db", db, "--format", "json",
		"supersede", "order/1", `{"status":"paid"}`, "--at", "2026-01-01T00:00:00Z")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "INVALID_TRANSITION", decodeResponse(t, out).Error.Code)
}

func TestBadTimestampExitsWithCommandError(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chronicle.db")

	_, err := runCLI(t, "--db", db, "create", "order/1", "order_status", `{}`, "--at", "yesterday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSchemaValidationThroughCLI(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chronicle.db")
	schemas := filepath.Join("..", "..", "examples", "schemas")

	_, err := runCLI(t, "--db", db, "--schemas", schemas,
		"create", "order/1", "order_status", `{"status":"ordered"}`)
	require.NoError(t, err)

	out, err := runCLI(t, "--db", db, "--schemas", schemas, "--format", "json",
		"supersede", "order/1", `{"status":"lost"}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "SCHEMA_VIOLATION", decodeResponse(t, out).Error.Code)
}

func TestHistoryUnknownSubjectIsEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "chronicle.db")

	out, err := runCLI(t, "--db", db, "--format", "json", "history", "order/404")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
}
