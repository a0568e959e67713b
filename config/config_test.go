// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
db:
  uri: mongodb://localhost:27017
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(2), cfg.Global.NetworkPrefix)
	assert.Equal(t, "otv", cfg.Db.Name)
	assert.Equal(t, DefaultMonitorCron, cfg.Cron.Monitor)
	assert.Equal(t, DefaultEraPointsCron, cfg.Cron.EraPoints)
	assert.Equal(t, DefaultValidityCron, cfg.Cron.Validity)
	assert.Equal(t, uint64(DefaultTimeDelayBlocks), cfg.Proxy.TimeDelayBlocks)
	assert.Equal(t, 10.0, cfg.Constraints.Commission)
	assert.Equal(t, 7*24*time.Hour, cfg.Constraints.MinConnectionTime)
	assert.Equal(t, 100.0, cfg.Constraints.InclusionWeight)
	assert.Equal(t, 0.15, cfg.Constraints.RandomnessWeight)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
global:
  networkPrefix: 0
cron:
  monitor: "*/5 * * * *"
  validity: "1 * * * *"
proxy:
  timeDelayBlocks: 300
constraints:
  commission: 3
candidates:
  - name: alpha
    stash: FAKE_STASH
    kusamaStash: FAKE_KSM
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(0), cfg.Global.NetworkPrefix)
	assert.Equal(t, "*/5 * * * *", cfg.Cron.Monitor)
	assert.Equal(t, "1 * * * *", cfg.Cron.Validity)
	assert.Equal(t, DefaultScoreCron, cfg.Cron.Score, "untouched jobs keep their defaults")
	assert.Equal(t, uint64(300), cfg.Proxy.TimeDelayBlocks)
	assert.Equal(t, 3.0, cfg.Constraints.Commission)
	require.Len(t, cfg.Candidates, 1)
	assert.Equal(t, "alpha", cfg.Candidates[0].Name)
	assert.Equal(t, "FAKE_KSM", cfg.Candidates[0].KusamaStash)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
