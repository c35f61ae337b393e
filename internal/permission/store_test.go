package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingFile(t *testing.T) {
	s := NewStore(t.TempDir())
	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Allow)
	assert.Empty(t, cfg.Deny)
}

func TestStoreAppendAllowSortsAndDedupes(t *testing.T) {
	s := NewStore(t.TempDir())

	for _, entry := range []string{"bash(npm install:*)", "read_file", "bash(npm install:*)", "bash(ls -la)"} {
		_, err := s.AppendAllow(entry)
		require.NoError(t, err)
	}

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"bash(ls -la)", "bash(npm install:*)", "read_file"}, cfg.Allow)
}

func TestStoreRoundTripPreservesDenyAndAsk(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, SettingsDir, SettingsFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(settings), 0o755))
	require.NoError(t, os.WriteFile(settings, []byte(
		`{"permissions":{"allow":["read_file"],"deny":["bash(curl:*)"],"ask":["write_file"]}}`,
	), 0o644))

	s := NewStore(dir)
	cfg, err := s.AppendAllow("bash(ls)")
	require.NoError(t, err)

	assert.Equal(t, []string{"bash(ls)", "read_file"}, cfg.Allow)
	assert.Equal(t, []string{"bash(curl:*)"}, cfg.Deny)
	assert.Equal(t, []string{"write_file"}, cfg.Ask)
}

func TestStoreRejectsMalformedSettings(t *testing.T) {
	dir := t.TempDir()
	settings := filepath.Join(dir, SettingsDir, SettingsFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(settings), 0o755))
	require.NoError(t, os.WriteFile(settings, []byte("{not json"), 0o644))

	_, err := NewStore(dir).Load()
	assert.Error(t, err)
}
