package main

import (
	"bytes"
	"context"
	"crowd-route-service/internal/api/dto"
	"crowd-route-service/internal/crowd"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedTopology = "../../data/topology.json"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate", "--topology", seedTopology)
	require.NoError(t, err)
	assert.Equal(t, "ok locations=11 connections=10\n", out)

	bad := writeFile(t, "bad.json", `{"locations":[{"id":"a","class":"nowhere"}],"connections":[]}`)
	_, err = run(t, "validate", "--topology", bad)
	assert.Error(t, err)
}

func TestPlan(t *testing.T) {
	out, err := run(t, "plan", "--topology", seedTopology,
		"--from", "transport_hub_central", "--to", "mahakal_temple",
		"--at", "2026-04-10T06:00:00Z", "--policies", "optimal,fastest")
	require.NoError(t, err)

	var res dto.PlanResponse
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Routes, 2)
	for _, r := range res.Routes {
		assert.Equal(t, []string{"transport_hub_central", "ram_ghat_main", "mahakal_temple"}, r.Path)
	}

	_, err = run(t, "plan", "--topology", seedTopology, "--from", "a", "--to", "mahakal_temple", "--policy", "scenic")
	assert.Error(t, err)
}

func TestAlertsAndSnapshot(t *testing.T) {
	readings := writeFile(t, "readings.json", `[
		{"location_id":"ram_ghat_main","count":7800,"flow_rate":120},
		{"location_id":"mahakal_temple","count":1200}
	]`)

	out, err := run(t, "alerts", "--topology", seedTopology, "--readings", readings, "--at", "2026-04-10T06:00:00Z")
	require.NoError(t, err)

	var alerts []dto.AlertResponse
	require.NoError(t, json.Unmarshal([]byte(out), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "ram_ghat_main", alerts[0].LocationID)
	assert.Equal(t, "critical", alerts[0].Severity)

	out, err = run(t, "snapshot", "--topology", seedTopology, "--readings", readings, "--summary")
	require.NoError(t, err)

	var sum crowd.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 11, sum.Locations)
	assert.Equal(t, 9, sum.StaleEntries)
}
