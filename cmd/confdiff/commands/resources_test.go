package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResources_Table(t *testing.T) {
	out, err := execute(t, "resources")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "name:3,vlan_id:1")
	assert.Contains(t, out, "address:3,id:2|4,network:3")
}

func TestResources_JSON(t *testing.T) {
	out, err := execute(t, "resources", "-o", "json")
	require.NoError(t, err)

	var views []resourceView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 8)
	assert.Equal(t, "l2_interface", views[0].Name)
	assert.Equal(t, "sequence", views[0].Shape)
}

func TestResources_UnknownFormat(t *testing.T) {
	_, err := execute(t, "resources", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
