package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/infra/annotator"
	pkgconfig "feed-digest/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalEnv is the smallest environment that loads.
func minimalEnv() map[string]string {
	return map[string]string{
		"FEED_SOURCES":   "go-blog=https://go.dev/blog/feed.atom",
		"EMAIL_FROM":     "Digest <digest@example.com>",
		"EMAIL_TO":       "reader@example.com",
		"RESEND_API_KEY": "re_test",
	}
}

func load(t *testing.T, values map[string]string) (*Config, error) {
	t.Helper()
	return LoadFrom(pkgconfig.NewEnvFrom(values))
}

/* ───────── defaults ───────── */

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := load(t, minimalEnv())
	require.NoError(t, err)

	assert.Equal(t, []entity.Source{{Name: "go-blog", URL: "https://go.dev/blog/feed.atom"}}, cfg.Sources)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 4*time.Minute, cfg.CycleTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Poll.FreshnessWindow)
	assert.Equal(t, 30*time.Second, cfg.Poll.SourceTimeout)
	assert.Equal(t, 5, cfg.Poll.EnrichParallelism)
	assert.Equal(t, 1500, cfg.Poll.ContentThreshold)

	assert.True(t, cfg.Email.Enabled)
	assert.Equal(t, []string{"reader@example.com"}, cfg.Email.To)
	assert.Equal(t, DefaultEmailSubjectPrefix, cfg.Email.SubjectPrefix)
	assert.False(t, cfg.Slack.Enabled)
	assert.False(t, cfg.Discord.Enabled)

	assert.Equal(t, annotator.ProviderNone, cfg.Annotator.Provider)
	assert.True(t, cfg.ContentFetch.Enabled)
	assert.True(t, cfg.ContentFetch.DenyPrivateIPs)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, 9091, cfg.HealthPort)
}

func TestLoadFrom_Overrides(t *testing.T) {
	env := minimalEnv()
	env["POLL_INTERVAL_MINUTES"] = "10"
	env["FRESHNESS_WINDOW_MINUTES"] = "30"
	env["CYCLE_TIMEOUT"] = "8m"
	env["ENRICH_PARALLELISM"] = "12"
	env["EMAIL_TO"] = "a@example.com, b@example.com"
	env["LOG_LEVEL"] = "debug"
	env["LOG_FORMAT"] = "text"
	env["CONTENT_FETCH_ENABLED"] = "false"
	env["TRACING_ENABLED"] = "true"
	env["TRACING_SAMPLE_RATIO"] = "0.1"
	env["OTEL_EXPORTER_OTLP_ENDPOINT"] = "http://collector:4318"

	cfg, err := load(t, env)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Poll.FreshnessWindow)
	assert.Equal(t, 8*time.Minute, cfg.CycleTimeout)
	assert.Equal(t, 12, cfg.Poll.EnrichParallelism)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Email.To)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.ContentFetch.Enabled)
	assert.Zero(t, cfg.Poll.ContentThreshold, "disabled content fetch never triggers")
	assert.True(t, cfg.Tracing.Enabled)
	assert.InDelta(t, 0.1, cfg.Tracing.SampleRatio, 1e-9)
	assert.Equal(t, "http://collector:4318", cfg.Tracing.Endpoint)
}

func TestLoadFrom_SourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: lobsters\n    url: https://lobste.rs/rss\n"), 0o600))

	env := minimalEnv()
	env["FEED_SOURCES_FILE"] = path

	cfg, err := load(t, env)
	require.NoError(t, err)
	assert.Equal(t, []string{"go-blog", "lobsters"}, []string{cfg.Sources[0].Name, cfg.Sources[1].Name})

	delete(env, "FEED_SOURCES")
	cfg, err = load(t, env)
	require.NoError(t, err)
	assert.Len(t, cfg.Sources, 1)
}

/* ───────── annotator selection ───────── */

func TestLoadFrom_AnnotatorSelection(t *testing.T) {
	tests := []struct {
		name     string
		extra    map[string]string
		provider string
		apiKey   string
	}{
		{"no credential", nil, annotator.ProviderNone, ""},
		{"claude by credential", map[string]string{"ANTHROPIC_API_KEY": "sk-ant"}, annotator.ProviderClaude, "sk-ant"},
		{"openai by credential", map[string]string{"OPENAI_API_KEY": "sk-oa"}, annotator.ProviderOpenAI, "sk-oa"},
		{"claude preferred when both", map[string]string{"ANTHROPIC_API_KEY": "sk-ant", "OPENAI_API_KEY": "sk-oa"}, annotator.ProviderClaude, "sk-ant"},
		{"explicit openai", map[string]string{"ANNOTATOR_TYPE": "openai", "ANTHROPIC_API_KEY": "sk-ant", "OPENAI_API_KEY": "sk-oa"}, annotator.ProviderOpenAI, "sk-oa"},
		{"explicit none", map[string]string{"ANNOTATOR_TYPE": "none", "ANTHROPIC_API_KEY": "sk-ant"}, annotator.ProviderNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := minimalEnv()
			for k, v := range tt.extra {
				env[k] = v
			}
			cfg, err := load(t, env)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, cfg.Annotator.Provider)
			assert.Equal(t, tt.apiKey, cfg.Annotator.APIKey)
		})
	}
}

func TestLoadFrom_AnnotatorOverrides(t *testing.T) {
	env := minimalEnv()
	env["ANTHROPIC_API_KEY"] = "sk-ant"
	env["ANNOTATION_MODEL"] = "claude-haiku-4-5"
	env["ANNOTATION_PROMPT"] = "Only surface posts about Go."
	env["ANNOTATION_MAX_TOKENS"] = "256"

	cfg, err := load(t, env)
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", cfg.Annotator.Model)
	assert.Equal(t, "Only surface posts about Go.", cfg.Annotator.Prompt)
	assert.Equal(t, 256, cfg.Annotator.MaxTokens)
}

/* ───────── fail-closed validation ───────── */

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]string)
		wantKey string
	}{
		{"no sources", func(e map[string]string) { delete(e, "FEED_SOURCES") }, "FEED_SOURCES"},
		{"bad source url", func(e map[string]string) { e["FEED_SOURCES"] = "x=ftp://x.example/feed" }, "FEED_SOURCES"},
		{"duplicate source", func(e map[string]string) {
			e["FEED_SOURCES"] = "a=https://a.example/feed,a=https://b.example/feed"
		}, "FEED_SOURCES"},
		{"missing sources file", func(e map[string]string) { e["FEED_SOURCES_FILE"] = "/nonexistent/sources.yaml" }, "FEED_SOURCES_FILE"},
		{"zero interval", func(e map[string]string) { e["POLL_INTERVAL_MINUTES"] = "0" }, "POLL_INTERVAL_MINUTES"},
		{"non numeric window", func(e map[string]string) { e["FRESHNESS_WINDOW_MINUTES"] = "soon" }, "FRESHNESS_WINDOW_MINUTES"},
		{"zero window", func(e map[string]string) { e["FRESHNESS_WINDOW_MINUTES"] = "0" }, "FRESHNESS_WINDOW_MINUTES"},
		{"short cycle timeout", func(e map[string]string) { e["CYCLE_TIMEOUT"] = "1s" }, "CYCLE_TIMEOUT"},
		{"long source timeout", func(e map[string]string) { e["SOURCE_FETCH_TIMEOUT"] = "10m" }, "SOURCE_FETCH_TIMEOUT"},
		{"parallelism too high", func(e map[string]string) { e["ENRICH_PARALLELISM"] = "51" }, "ENRICH_PARALLELISM"},
		{"bad log level", func(e map[string]string) { e["LOG_LEVEL"] = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(e map[string]string) { e["LOG_FORMAT"] = "xml" }, "LOG_FORMAT"},
		{"missing from", func(e map[string]string) { delete(e, "EMAIL_FROM") }, "EMAIL_FROM"},
		{"malformed to", func(e map[string]string) { e["EMAIL_TO"] = "ok@example.com,not-an-email" }, "EMAIL_TO"},
		{"missing to", func(e map[string]string) { delete(e, "EMAIL_TO") }, "EMAIL_TO"},
		{"missing resend key", func(e map[string]string) { delete(e, "RESEND_API_KEY") }, "RESEND_API_KEY"},
		{"unknown annotator", func(e map[string]string) { e["ANNOTATOR_TYPE"] = "gemini" }, "ANNOTATOR_TYPE"},
		{"claude without key", func(e map[string]string) { e["ANNOTATOR_TYPE"] = "claude" }, "ANNOTATOR_TYPE"},
		{"max tokens out of range", func(e map[string]string) {
			e["ANTHROPIC_API_KEY"] = "sk-ant"
			e["ANNOTATION_MAX_TOKENS"] = "10"
		}, "ANNOTATOR_TYPE"},
		{"content fetch parallelism", func(e map[string]string) { e["CONTENT_FETCH_PARALLELISM"] = "0" }, "CONTENT_FETCH"},
		{"bad boolean", func(e map[string]string) { e["CONTENT_FETCH_ENABLED"] = "yes please" }, "CONTENT_FETCH_ENABLED"},
		{"slack without url", func(e map[string]string) { e["SLACK_ENABLED"] = "true" }, "SLACK_WEBHOOK_URL"},
		{"slack wrong host", func(e map[string]string) {
			e["SLACK_ENABLED"] = "true"
			e["SLACK_WEBHOOK_URL"] = "https://evil.example/services/T/B/X"
		}, "SLACK_WEBHOOK_URL"},
		{"discord http", func(e map[string]string) {
			e["DISCORD_ENABLED"] = "true"
			e["DISCORD_WEBHOOK_URL"] = "http://discord.com/api/webhooks/1/abc"
		}, "DISCORD_WEBHOOK_URL"},
		{"privileged metrics port", func(e map[string]string) { e["METRICS_PORT"] = "80" }, "METRICS_PORT"},
		{"port clash", func(e map[string]string) { e["WORKER_HEALTH_PORT"] = "9090" }, "WORKER_HEALTH_PORT"},
		{"sample ratio", func(e map[string]string) { e["TRACING_SAMPLE_RATIO"] = "1.5" }, "TRACING_SAMPLE_RATIO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := minimalEnv()
			tt.mutate(env)

			cfg, err := load(t, env)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, pkgconfig.InvalidFields(err), tt.wantKey)
		})
	}
}

func TestLoadFrom_ReportsEveryProblem(t *testing.T) {
	_, err := load(t, map[string]string{
		"POLL_INTERVAL_MINUTES": "0",
		"LOG_FORMAT":            "xml",
	})
	require.Error(t, err)

	fields := pkgconfig.InvalidFields(err)
	for _, key := range []string{"FEED_SOURCES", "POLL_INTERVAL_MINUTES", "LOG_FORMAT", "EMAIL_FROM", "EMAIL_TO", "RESEND_API_KEY"} {
		assert.Contains(t, fields, key)
	}
}

func TestLoadFrom_ErrorsDoNotLeakSecrets(t *testing.T) {
	env := minimalEnv()
	env["SLACK_ENABLED"] = "true"
	env["SLACK_WEBHOOK_URL"] = "http://hooks.slack.com/services/T000/B000/supersecret"
	env["ANNOTATOR_TYPE"] = "claude"
	env["ANTHROPIC_API_KEY"] = "sk-ant-secret"
	env["ANNOTATION_MAX_TOKENS"] = "1"

	_, err := load(t, env)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "supersecret")
	assert.NotContains(t, err.Error(), "sk-ant-secret")
}
