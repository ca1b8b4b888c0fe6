package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
	require.Equal(t, time.Minute, cfg.Statistics.Window())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  listen: ":9090"
  mode: deploy
model:
  location: /srv/model.yaml
statistics:
  window_s: 30
logging:
  file_name: sentiment.log
  backup_count: 2
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, ":9090", cfg.Server.Listen)
	require.Equal(t, ModeDeploy, cfg.Server.Mode)
	require.Equal(t, "/srv/model.yaml", cfg.Model.Location)
	require.Equal(t, 30*time.Second, cfg.Statistics.Window())
	require.Equal(t, "sentiment.log", cfg.Logging.FileName)
	require.Equal(t, 2, cfg.Logging.BackupCount)
	require.Equal(t, 10, cfg.Logging.MaxFileSizeMB)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [::"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SENTIMENT_MODEL_LOCATION", "/tmp/m.yaml")
	t.Setenv("SENTIMENT_WINDOW_S", "120")
	t.Setenv("SENTIMENT_DB_PATH", "")
	t.Setenv("SENTIMENT_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "/tmp/m.yaml", cfg.Model.Location)
	require.Equal(t, 120, cfg.Statistics.WindowS)
	require.Empty(t, cfg.Storage.Path)
	require.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadWindowEnv(t *testing.T) {
	t.Setenv("SENTIMENT_WINDOW_S", "soon")
	_, err := Load("")
	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Mode = "staging"
	cfg.Model.Location = ""
	cfg.Statistics.WindowS = 0

	err := cfg.Validate()
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 3)
	require.True(t, errors.Is(err, ErrInvalidMode))
	require.True(t, errors.Is(err, ErrMissingModel))
	require.True(t, errors.Is(err, ErrInvalidWindow))
}

func TestValidateNormalisesSoftSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Mode = " test "
	cfg.Server.ShutdownTimeoutS = 0
	cfg.Tracing.SampleRatio = 3

	require.NoError(t, cfg.Validate())
	require.Equal(t, ModeTest, cfg.Server.Mode)
	require.Equal(t, 5, cfg.Server.ShutdownTimeoutS)
	require.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}
