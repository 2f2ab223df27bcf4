// Package config loads the worker configuration from the environment.
//
// Loading is fail-closed: every key is parsed and validated, all problems
// are joined into one error, and the worker refuses to start if any exist.
// Use pkgconfig.InvalidFields on the returned error to list the bad keys.
package config

import (
	"errors"
	"fmt"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/infra/annotator"
	"feed-digest/internal/infra/fetcher"
	"feed-digest/internal/infra/notifier"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/observability/tracing"
	validate "feed-digest/internal/pkg/config"
	"feed-digest/internal/usecase/dedup"
	"feed-digest/internal/usecase/poll"
	pkgconfig "feed-digest/pkg/config"
)

// Defaults applied when a key is unset.
const (
	DefaultPollIntervalMinutes    = 5
	DefaultFreshnessWindowMinutes = 15
	DefaultCycleTimeout           = 4 * time.Minute
	DefaultSourceFetchTimeout     = 30 * time.Second
	DefaultEnrichParallelism      = 5
	DefaultEmailSubjectPrefix     = "[feed-digest]"
	DefaultEmailTimeout           = 30 * time.Second
	DefaultWebhookTimeout         = 30 * time.Second
	DefaultMetricsPort            = 9090
	DefaultHealthPort             = 9091
	DefaultTracingSampleRatio     = 1.0
	DefaultServiceName            = "feed-digest"
)

const (
	slackWebhookHost          = "hooks.slack.com"
	slackWebhookPathPrefix    = "/services/"
	discordWebhookHost        = "discord.com"
	discordWebhookPathPrefix  = "/api/webhooks/"
	annotatorTypeAuto         = ""
	maxPollIntervalMinutes    = 24 * 60
	maxFreshnessWindowMinutes = 7 * 24 * 60
)

// Config is the complete worker configuration.
type Config struct {
	Sources []entity.Source

	// PollInterval is the period between cycle starts.
	PollInterval time.Duration
	CycleTimeout time.Duration

	Poll         poll.Config
	ContentFetch fetcher.ContentFetchConfig
	Annotator    annotator.Config

	Email   notifier.EmailConfig
	Slack   notifier.SlackConfig
	Discord notifier.DiscordConfig

	Log     logging.Options
	Tracing tracing.Config

	MetricsPort int
	HealthPort  int
}

// Load reads the process environment.
func Load() (*Config, error) {
	return LoadFrom(pkgconfig.NewEnv())
}

// LoadFrom reads configuration through env. On error the returned Config
// is nil and the error lists every invalid key.
func LoadFrom(env *pkgconfig.Env) (*Config, error) {
	cfg := &Config{}

	loadSources(env, cfg)
	loadSchedule(env, cfg)
	loadLogging(env, cfg)
	loadEmail(env, cfg)
	loadWebhooks(env, cfg)
	loadAnnotator(env, cfg)
	loadContentFetch(env, cfg)
	loadServers(env, cfg)

	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// check records err against key when it is non-nil.
func check(env *pkgconfig.Env, key, value string, err error) {
	if err != nil {
		env.Fail(key, value, err)
	}
}

func loadSources(env *pkgconfig.Env, cfg *Config) {
	fromList, err := ParseSourceList(env.StringList("FEED_SOURCES"))
	check(env, "FEED_SOURCES", "", err)

	var fromFile []entity.Source
	if path := env.String("FEED_SOURCES_FILE", ""); path != "" {
		fromFile, err = LoadSourcesFile(path)
		check(env, "FEED_SOURCES_FILE", path, err)
	}

	sources, err := mergeSources(fromList, fromFile)
	check(env, "FEED_SOURCES", "", err)
	if len(sources) == 0 && err == nil {
		env.Fail("FEED_SOURCES", "", errors.New("at least one source is required (FEED_SOURCES or FEED_SOURCES_FILE)"))
	}
	cfg.Sources = sources
}

func loadSchedule(env *pkgconfig.Env, cfg *Config) {
	interval := env.Int("POLL_INTERVAL_MINUTES", DefaultPollIntervalMinutes)
	check(env, "POLL_INTERVAL_MINUTES", fmt.Sprint(interval),
		validate.ValidateIntRange(interval, 1, maxPollIntervalMinutes))
	cfg.PollInterval = time.Duration(interval) * time.Minute

	window := env.Int("FRESHNESS_WINDOW_MINUTES", DefaultFreshnessWindowMinutes)
	check(env, "FRESHNESS_WINDOW_MINUTES", fmt.Sprint(window),
		validate.ValidateIntRange(window, 1, maxFreshnessWindowMinutes))

	cfg.CycleTimeout = env.Duration("CYCLE_TIMEOUT", DefaultCycleTimeout)
	check(env, "CYCLE_TIMEOUT", cfg.CycleTimeout.String(),
		validate.ValidateDuration(cfg.CycleTimeout, 10*time.Second, time.Hour))

	sourceTimeout := env.Duration("SOURCE_FETCH_TIMEOUT", DefaultSourceFetchTimeout)
	check(env, "SOURCE_FETCH_TIMEOUT", sourceTimeout.String(),
		validate.ValidateDuration(sourceTimeout, time.Second, 5*time.Minute))

	parallelism := env.Int("ENRICH_PARALLELISM", DefaultEnrichParallelism)
	check(env, "ENRICH_PARALLELISM", fmt.Sprint(parallelism),
		validate.ValidateIntRange(parallelism, 1, 50))

	cfg.Poll = poll.Config{
		FreshnessWindow:   dedup.WindowFromMinutes(window),
		SourceTimeout:     sourceTimeout,
		EnrichParallelism: parallelism,
	}
}

func loadLogging(env *pkgconfig.Env, cfg *Config) {
	level := env.String("LOG_LEVEL", "info")
	if _, err := logging.ParseLevel(level); err != nil {
		env.Fail("LOG_LEVEL", level, err)
	}
	format := env.String("LOG_FORMAT", logging.FormatJSON)
	check(env, "LOG_FORMAT", format, validate.ValidateOneOf(format, logging.FormatJSON, logging.FormatText))
	cfg.Log = logging.Options{Level: level, Format: format}

	cfg.Tracing = tracing.Config{
		Enabled:     env.Bool("TRACING_ENABLED", false),
		ServiceName: env.String("OTEL_SERVICE_NAME", DefaultServiceName),
		Endpoint:    env.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SampleRatio: env.Float("TRACING_SAMPLE_RATIO", DefaultTracingSampleRatio),
	}
	if r := cfg.Tracing.SampleRatio; r < 0 || r > 1 {
		env.Fail("TRACING_SAMPLE_RATIO", fmt.Sprint(r), errors.New("must be between 0 and 1"))
	}
	if cfg.Tracing.Endpoint != "" {
		check(env, "OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint, entity.ValidateURL(cfg.Tracing.Endpoint))
	}
}

func loadEmail(env *pkgconfig.Env, cfg *Config) {
	from := env.Required("EMAIL_FROM")
	if from != "" {
		check(env, "EMAIL_FROM", from, entity.ValidateEmail(from))
	}

	to := env.StringList("EMAIL_TO")
	if len(to) == 0 {
		env.Fail("EMAIL_TO", "", errors.New("is required"))
	}
	for _, addr := range to {
		check(env, "EMAIL_TO", addr, entity.ValidateEmail(addr))
	}

	// The key itself is never echoed into errors.
	apiKey := env.Required("RESEND_API_KEY")

	cfg.Email = notifier.EmailConfig{
		Enabled:       true,
		APIKey:        apiKey,
		From:          from,
		To:            to,
		SubjectPrefix: env.String("EMAIL_SUBJECT_PREFIX", DefaultEmailSubjectPrefix),
		Timeout:       env.Duration("EMAIL_TIMEOUT", DefaultEmailTimeout),
	}
	check(env, "EMAIL_TIMEOUT", cfg.Email.Timeout.String(),
		validate.ValidateDuration(cfg.Email.Timeout, time.Second, 5*time.Minute))
}

func loadWebhooks(env *pkgconfig.Env, cfg *Config) {
	cfg.Slack = notifier.SlackConfig{
		Enabled: env.Bool("SLACK_ENABLED", false),
		Timeout: DefaultWebhookTimeout,
	}
	if cfg.Slack.Enabled {
		cfg.Slack.WebhookURL = env.String("SLACK_WEBHOOK_URL", "")
		check(env, "SLACK_WEBHOOK_URL", "",
			validate.ValidateWebhookURL(cfg.Slack.WebhookURL, slackWebhookHost, slackWebhookPathPrefix))
	}

	cfg.Discord = notifier.DiscordConfig{
		Enabled: env.Bool("DISCORD_ENABLED", false),
		Timeout: DefaultWebhookTimeout,
	}
	if cfg.Discord.Enabled {
		cfg.Discord.WebhookURL = env.String("DISCORD_WEBHOOK_URL", "")
		check(env, "DISCORD_WEBHOOK_URL", "",
			validate.ValidateWebhookURL(cfg.Discord.WebhookURL, discordWebhookHost, discordWebhookPathPrefix))
	}
}

// loadAnnotator resolves ANNOTATOR_TYPE. When it is empty the provider is
// picked by whichever credential is present, Claude first.
func loadAnnotator(env *pkgconfig.Env, cfg *Config) {
	claudeKey := env.String("ANTHROPIC_API_KEY", "")
	openAIKey := env.String("OPENAI_API_KEY", "")

	provider := env.String("ANNOTATOR_TYPE", annotatorTypeAuto)
	if provider == annotatorTypeAuto {
		switch {
		case claudeKey != "":
			provider = annotator.ProviderClaude
		case openAIKey != "":
			provider = annotator.ProviderOpenAI
		default:
			provider = annotator.ProviderNone
		}
	}
	if err := validate.ValidateOneOf(provider, annotator.ProviderClaude, annotator.ProviderOpenAI, annotator.ProviderNone); err != nil {
		env.Fail("ANNOTATOR_TYPE", provider, err)
		cfg.Annotator = annotator.DefaultConfig(annotator.ProviderNone)
		return
	}

	ac := annotator.DefaultConfig(provider)
	switch provider {
	case annotator.ProviderClaude:
		ac.APIKey = claudeKey
		ac.BaseURL = env.String("ANTHROPIC_BASE_URL", "")
	case annotator.ProviderOpenAI:
		ac.APIKey = openAIKey
		ac.BaseURL = env.String("OPENAI_BASE_URL", "")
	}
	ac.Model = env.String("ANNOTATION_MODEL", ac.Model)
	ac.Prompt = env.String("ANNOTATION_PROMPT", ac.Prompt)
	ac.MaxTokens = env.Int("ANNOTATION_MAX_TOKENS", ac.MaxTokens)
	ac.MaxInputChars = env.Int("ANNOTATION_MAX_INPUT_CHARS", ac.MaxInputChars)
	ac.Timeout = env.Duration("ANNOTATION_TIMEOUT", ac.Timeout)

	check(env, "ANNOTATOR_TYPE", provider, ac.Validate())
	cfg.Annotator = ac
}

func loadContentFetch(env *pkgconfig.Env, cfg *Config) {
	def := fetcher.DefaultConfig()
	cf := fetcher.ContentFetchConfig{
		Enabled:        env.Bool("CONTENT_FETCH_ENABLED", def.Enabled),
		Threshold:      env.Int("CONTENT_FETCH_THRESHOLD", def.Threshold),
		Timeout:        env.Duration("CONTENT_FETCH_TIMEOUT", def.Timeout),
		Parallelism:    env.Int("CONTENT_FETCH_PARALLELISM", def.Parallelism),
		MaxBodySize:    env.Int64("CONTENT_FETCH_MAX_BODY_SIZE", def.MaxBodySize),
		MaxRedirects:   env.Int("CONTENT_FETCH_MAX_REDIRECTS", def.MaxRedirects),
		DenyPrivateIPs: env.Bool("CONTENT_FETCH_DENY_PRIVATE_IPS", def.DenyPrivateIPs),
		UserAgent:      env.String("CONTENT_FETCH_USER_AGENT", def.UserAgent),
	}
	check(env, "CONTENT_FETCH", "", cf.Validate())
	cfg.ContentFetch = cf

	if cf.Enabled {
		cfg.Poll.ContentThreshold = cf.Threshold
	}
}

func loadServers(env *pkgconfig.Env, cfg *Config) {
	cfg.MetricsPort = env.Int("METRICS_PORT", DefaultMetricsPort)
	check(env, "METRICS_PORT", fmt.Sprint(cfg.MetricsPort), validate.ValidatePort(cfg.MetricsPort))

	cfg.HealthPort = env.Int("WORKER_HEALTH_PORT", DefaultHealthPort)
	check(env, "WORKER_HEALTH_PORT", fmt.Sprint(cfg.HealthPort), validate.ValidatePort(cfg.HealthPort))

	if cfg.MetricsPort == cfg.HealthPort {
		env.Fail("WORKER_HEALTH_PORT", fmt.Sprint(cfg.HealthPort), errors.New("must differ from METRICS_PORT"))
	}
}
