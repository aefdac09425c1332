package commands

import (
	"path/filepath"
	"testing"

	"github.com/goliatone/go-confdiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPlan_Overridden(t *testing.T) {
	out, err := execute(t, "plan", "-r", "vlan", "--state", "overridden",
		"--current", vlanCurrent, "--desired", vlanDesired)
	require.NoError(t, err)

	plan, err := confdiff.PlanFromJSON([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, confdiff.StateOverridden, plan.State)
	assert.True(t, plan.Merge.Equal(confdiff.MustFromAny([]any{
		map[string]any{"vlan_id": 10, "name": "guests"},
		map[string]any{"vlan_id": 20, "name": "voice"},
	})), "unexpected merge %s", plan.Merge)
	assert.True(t, plan.Removal.Equal(confdiff.MustFromAny([]any{
		map[string]any{"vlan_id": 1, "name": "default", "n_keys": 1},
	})), "unexpected removal %s", plan.Removal)
	assert.False(t, plan.RemoveAll)
}

func TestPlan_DeletedEverythingAsYAML(t *testing.T) {
	out, err := execute(t, "plan", "-r", "vlan", "--state", "deleted",
		"--current", vlanCurrent, "--desired", "testdata/empty.json", "-o", "yaml")
	require.NoError(t, err)

	var doc struct {
		State     string           `yaml:"state"`
		Removal   []map[string]any `yaml:"removal"`
		RemoveAll bool             `yaml:"remove_all"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "deleted", doc.State)
	assert.True(t, doc.RemoveAll)
	assert.Len(t, doc.Removal, 2)
}

func TestPlan_PathsWithGuard(t *testing.T) {
	out, err := execute(t, "plan", "-r", "vlan", "--state", "overridden",
		"--current", vlanCurrent, "--desired", vlanDesired, "-o", "paths",
		"--guard", "keep_default=vlan_id == 1")
	require.NoError(t, err)

	assert.Contains(t, out, "+ [vlan_id=20].name = \"voice\"")
	assert.NotContains(t, out, "- [vlan_id=1]")
}

func TestPlan_ExitCodeAndMetrics(t *testing.T) {
	metricsFile := filepath.Join(t.TempDir(), "plan.prom")

	_, err := execute(t, "--metrics-file", metricsFile, "plan", "-r", "vlan",
		"--current", vlanCurrent, "--desired", vlanDesired, "--exit-code", "--actor", "ops")
	require.ErrorIs(t, err, ErrChanges)

	assert.FileExists(t, metricsFile)
}

func TestPlan_Errors(t *testing.T) {
	_, err := execute(t, "plan", "-r", "vlan", "--state", "purged", "--current", vlanCurrent, "--desired", vlanDesired)
	require.ErrorIs(t, err, confdiff.ErrUnknownState)

	_, err = execute(t, "plan", "-r", "vlan", "--device", "rack/leaf", "--current", vlanCurrent, "--desired", vlanDesired)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ref")
}
