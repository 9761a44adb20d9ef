package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskcast/internal/audit"
	"riskcast/internal/audit/store/sqlstore"
	"riskcast/internal/orchestrator"
	"riskcast/pkg/testutil"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("RISKCAST_LEDGER_DRIVER", "sqlite")
	t.Setenv("RISKCAST_LEDGER_DSN", dsn)
	t.Setenv("RISKCAST_SEED", "11")
	t.Setenv("RISKCAST_LOG_LEVEL", "error")
	return dsn
}

func writeRequest(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func redSeaRequest() orchestrator.Request {
	return orchestrator.Request{
		Signal:        testutil.RedSeaSignal(),
		Reality:       testutil.RedSeaReality(),
		Context:       testutil.RedSeaCustomer(),
		ReferenceTime: testutil.ReferenceTime,
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDecideThenVerify(t *testing.T) {
	dsn := setupEnv(t)

	out, err := run(t, "decide", "--input", writeRequest(t, redSeaRequest()))
	require.NoError(t, err)

	var res orchestrator.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, audit.OutcomeGenerated, res.Outcome)
	require.NotNil(t, res.Decision)
	assert.Equal(t, "HIGH", string(res.Decision.Q3Severity.Severity))

	out, err = run(t, "verify", "--snapshot", res.SnapshotID)
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)
	assert.Contains(t, out, "snapshot "+res.SnapshotID+" verified")

	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, dsn)
	require.NoError(t, err)
	_, err = s.DB().Exec(`UPDATE audit_records SET payload = '{}' WHERE sequence_number = 1`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out, err = run(t, "verify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record_tampered at sequence 1")
	assert.Contains(t, out, `"valid": false`)
}

func TestDecideBatchReportsFailures(t *testing.T) {
	setupEnv(t)
	invalid := redSeaRequest()
	invalid.Signal.SignalID = ""

	out, err := run(t, "decide", "--input", writeRequest(t, []orchestrator.Request{redSeaRequest(), invalid}))
	require.EqualError(t, err, "1 of 2 attempts failed")

	var items []batchItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.Equal(t, audit.OutcomeGenerated, items[0].Result.Outcome)
	assert.Empty(t, items[0].Error)
	assert.Nil(t, items[1].Result)
	assert.Contains(t, items[1].Error, "signal.signal_id")
}

func TestMigrate(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "ledger schema up to date (sqlite)")

	t.Setenv("RISKCAST_LEDGER_DRIVER", "memory")
	_, err = run(t, "migrate")
	assert.Error(t, err)
}

func TestInvalidConfigFailsFast(t *testing.T) {
	setupEnv(t)
	t.Setenv("RISKCAST_LEDGER_DRIVER", "oracle")
	_, err := run(t, "verify")
	assert.ErrorContains(t, err, "RISKCAST_LEDGER_DRIVER")
}
