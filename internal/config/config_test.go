package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"DDB_TABLE":          "interactions",
		"SERVER_PHONE":       "whatsapp:+14155238886",
		"TWILIO_ACCOUNT_SID": "AC123",
		"PARAM_PREFIX":       "/mentor/",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(mapEnv(baseEnv()))
	require.NoError(t, err)
	require.Equal(t, "interactions", cfg.Table)
	require.Equal(t, "/mentor", cfg.ParamPrefix)
	require.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	require.Equal(t, DefaultMaxPollAttempts, cfg.MaxPollAttempts)
	require.Equal(t, time.Second, cfg.PollInterval)
	require.Equal(t, 3, cfg.MaxInteractions)
	require.Equal(t, "gpt-4", cfg.OpenAIModel)
	require.Equal(t, int64(1000), cfg.OpenAIMaxTokens)
	require.True(t, cfg.EnsureTable)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFrom_Overrides(t *testing.T) {
	env := baseEnv()
	env["CHUNK_SZ"] = "500"
	env["POLL_INTERVAL"] = "250ms"
	env["MAX_INTERACTIONS"] = "0"
	env["ENSURE_TABLE"] = "false"
	env["LOG_LEVEL"] = "debug"
	env["OPENAI_API_KEY"] = "sk-test"
	env["TWILIO_AUTH_TOKEN"] = "tok"
	env["PARAM_PREFIX"] = ""

	cfg, err := LoadFrom(mapEnv(env))
	require.NoError(t, err)
	require.Equal(t, 500, cfg.ChunkSize)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 0, cfg.MaxInteractions)
	require.False(t, cfg.EnsureTable)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.Equal(t, "sk-test", cfg.OpenAIAPIKey)
}

func TestLoadFrom_BareSecondsInterval(t *testing.T) {
	env := baseEnv()
	env["POLL_INTERVAL"] = "1.5"
	cfg, err := LoadFrom(mapEnv(env))
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, cfg.PollInterval)
}

func TestLoadFrom_ReportsAllProblems(t *testing.T) {
	env := map[string]string{
		"CHUNK_SZ":     "big",
		"ENSURE_TABLE": "maybe",
	}
	_, err := LoadFrom(mapEnv(env))
	require.Error(t, err)
	for _, want := range []string{"DDB_TABLE", "SERVER_PHONE", "TWILIO_ACCOUNT_SID", "CHUNK_SZ", "ENSURE_TABLE", "OPENAI_API_KEY", "TWILIO_AUTH_TOKEN"} {
		require.Contains(t, err.Error(), want)
	}
}

func TestLoadFrom_RejectsNonPositiveChunk(t *testing.T) {
	env := baseEnv()
	env["CHUNK_SZ"] = "0"
	_, err := LoadFrom(mapEnv(env))
	require.ErrorContains(t, err, "CHUNK_SZ must be positive")
}

func TestLoadTable(t *testing.T) {
	region, table, err := LoadTable(mapEnv(map[string]string{"AWS_REGION": "eu-west-1", "DDB_TABLE": "t"}))
	require.NoError(t, err)
	require.Equal(t, "eu-west-1", region)
	require.Equal(t, "t", table)

	_, _, err = LoadTable(mapEnv(nil))
	require.Error(t, err)
}
