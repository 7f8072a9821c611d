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
	"gopkg.in/yaml.v3"

	"swipestats/internal/testsupport"
)

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, testsupport.SampleExportJSON(), 0o600))
	return path
}

func TestComputeCommand(t *testing.T) {
	path := writeSample(t)

	tests := []struct {
		name    string
		args    []string
		entries int
	}{
		{"all-time meta by default", []string{path}, 0},
		{"monthly metas", []string{"-period", "month", path}, 3},
		{"yearly metas", []string{"-period", "year", path}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := &ComputeCommand{out: &out}
			require.NoError(t, cmd.Execute(context.Background(), nil, tt.args))

			if tt.entries == 0 {
				var meta map[string]interface{}
				require.NoError(t, json.Unmarshal(out.Bytes(), &meta))
				assert.Equal(t, "all", meta["period"])
				assert.Equal(t, float64(13), meta["app_opens_total"])
				return
			}

			var metas []map[string]interface{}
			require.NoError(t, json.Unmarshal(out.Bytes(), &metas))
			assert.Len(t, metas, tt.entries)
		})
	}
}

func TestComputeCommandYAML(t *testing.T) {
	var out bytes.Buffer
	cmd := &ComputeCommand{out: &out}
	require.NoError(t, cmd.Execute(context.Background(), nil, []string{"-format", "yaml", writeSample(t)}))

	var meta map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &meta))
	assert.Equal(t, "all", meta["period"])
	assert.EqualValues(t, 13, meta["app_opens_total"])
	assert.EqualValues(t, 3, meta["number_of_conversations"])
}

func TestComputeCommandErrors(t *testing.T) {
	cmd := &ComputeCommand{out: &bytes.Buffer{}}

	assert.Error(t, cmd.Execute(context.Background(), nil, nil))
	assert.Error(t, cmd.Execute(context.Background(), nil, []string{"-period", "week", writeSample(t)}))
	assert.Error(t, cmd.Execute(context.Background(), nil, []string{"-format", "xml", writeSample(t)}))
	assert.Error(t, cmd.Execute(context.Background(), nil, []string{filepath.Join(t.TempDir(), "missing.json")}))
}

func TestDatabaseCommandsRequireApp(t *testing.T) {
	for _, cmd := range []Command{&ImportCommand{}, &RecomputeCommand{}, &PruneCommand{}, &MigrateCommand{}, &SeedCommand{}, &StatusCommand{}} {
		t.Run(cmd.Name(), func(t *testing.T) {
			assert.Error(t, cmd.Execute(context.Background(), nil, []string{writeSample(t)}))
		})
	}
}

func TestFindCommand(t *testing.T) {
	assert.NotNil(t, findCommand("compute"))
	assert.Nil(t, findCommand("create-admin-user"))

	_, standalone := findCommand("compute").(standaloneCommand)
	assert.True(t, standalone)
	_, standalone = findCommand("import").(standaloneCommand)
	assert.False(t, standalone)
}
