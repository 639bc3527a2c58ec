package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
discord_token: from-file
ticket_log_channel_id: "900"
owner_ids: ["1", "2"]
automod:
  strike_threshold: 5
  rules:
    - id: custom
      pattern: "\\bbadword\\b"
`), 0o600))

	t.Chdir(dir)
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("OWNER_IDS", "7, 8,")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DiscordToken)
	assert.Equal(t, []string{"7", "8"}, cfg.OwnerIDs)
	assert.Equal(t, 5, cfg.AutoMod.StrikeThreshold)
	assert.Equal(t, 30, cfg.AutoMod.AutoMuteMinutes)
	assert.Equal(t, "900", cfg.ModLogChannelID, "mod log falls back to ticket log")
	assert.True(t, cfg.IsOwner("8"))
	assert.False(t, cfg.IsOwner("1"))
	require.Len(t, cfg.AutoMod.Rules, 1)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISCORD_TOKEN", "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "DISCORD_TOKEN")

	cfg, err := Read(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.AutoMod.Enabled)
}

func TestValidateRejectsBadRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoMod.Rules = []RuleConfig{{ID: "broken", Pattern: "("}}
	assert.Error(t, cfg.Validate())

	cfg.AutoMod.Rules = []RuleConfig{{ID: "empty"}}
	assert.Error(t, cfg.Validate())

	cfg.AutoMod.Rules = []RuleConfig{{ID: "hosts", Hosts: []string{"discord.gg"}}}
	assert.NoError(t, cfg.Validate())
}

func TestBuildLoggerUnknownLevel(t *testing.T) {
	logger, err := BuildLogger("verbose")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(0))
	assert.False(t, logger.Core().Enabled(-1))
}
