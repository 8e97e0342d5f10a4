package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "fundscore", cfg.App.Name)
	assert.Equal(t, "test", cfg.App.Environment)
	assert.Equal(t, 250, cfg.Scoring.MinDailyPoints)
	assert.Equal(t, 36, cfg.Scoring.LookbackMonths)
	assert.Equal(t, 30, cfg.Scoring.MinOverlapMonths)
	assert.Equal(t, 3, cfg.Scoring.MinPeers)
	assert.InDelta(t, 0.06, cfg.Scoring.RiskFreeRate, 1e-12)
	assert.Equal(t, 60*time.Second, cfg.Database.StatementTimeout)
	assert.Equal(t, "postgres", cfg.Source.Kind)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  spec: "0 3 * * 1-5"
  categories: ["Large Cap", "Mid Cap"]
scoring:
  workers: 4
`)
	t.Setenv("FUNDSCORE_SCORING_MIN_PEERS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * 1-5", cfg.Scheduler.Spec)
	assert.Equal(t, []string{"Large Cap", "Mid Cap"}, cfg.Scheduler.Categories)
	assert.Equal(t, 4, cfg.Scoring.Workers)
	assert.Equal(t, 5, cfg.Scoring.MinPeers)
	assert.Equal(t, 4, cfg.ResolveWorkers(0))
	assert.Equal(t, 2, cfg.ResolveWorkers(2))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad cron":       "scheduler:\n  spec: \"not a cron\"\n",
		"overlap":        "scoring:\n  min_overlap_months: 48\n",
		"http no url":    "source:\n  kind: http\n",
		"unknown source": "source:\n  kind: ftp\n",
		"telegram token": "alerting:\n  telegram:\n    enabled: true\n    chat_id: \"1\"\n",
		"zero export":    "export:\n  max_rows: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, time.UTC, cfg.Location())
	cfg.Scheduler.Timezone = "Asia/Kolkata"
	assert.Equal(t, "Asia/Kolkata", cfg.Location().String())
}
