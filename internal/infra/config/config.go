package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Поддерживаемые реализации суммаризатора.
const (
	SummarizerOpenAI = "openai"
	SummarizerSimple = "simple"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv   string `envconfig:"APP_ENV" default:"prod"`
	LogLevel string `envconfig:"LOG_LEVEL"`
	TZ       string `envconfig:"TZ" default:"UTC"`

	Slack struct {
		Token       string  `envconfig:"SLACK_BOT_TOKEN"`
		GlobalRPS   float64 `envconfig:"SLACK_GLOBAL_RPS" default:"2"`
		MaxAttempts int     `envconfig:"SLACK_MAX_ATTEMPTS" default:"5"`
		PageSize    int     `envconfig:"SLACK_PAGE_SIZE" default:"200"`
	} `envconfig:""`

	Digest struct {
		Channel     string        `envconfig:"SUMMARY_CHANNEL"`
		Title       string        `envconfig:"SUMMARY_TITLE" default:"Customer Channel Summary"`
		Ignore      []string      `envconfig:"IGNORE_CHANNELS"`
		Concurrency int           `envconfig:"DIGEST_CONCURRENCY" default:"4"`
		RunTimeout  time.Duration `envconfig:"RUN_TIMEOUT" default:"10m"`
		PostTimeout time.Duration `envconfig:"POST_TIMEOUT" default:"30s"`
		Cron        string        `envconfig:"DIGEST_CRON" default:"0 9 * * *"`
	} `envconfig:""`

	Summary struct {
		Provider    string        `envconfig:"SUMMARIZER" default:"openai"`
		MaxBullets  int           `envconfig:"SUMMARY_MAX_BULLETS" default:"3"`
		MaxAttempts int           `envconfig:"SUMMARY_MAX_ATTEMPTS" default:"3"`
		Backoff     time.Duration `envconfig:"SUMMARY_BACKOFF" default:"2s"`
		CacheTTL    time.Duration `envconfig:"SUMMARY_CACHE_TTL" default:"24h"`
	} `envconfig:""`

	OpenAI struct {
		APIKey          string        `envconfig:"OPENAI_API_KEY"`
		BaseURL         string        `envconfig:"OPENAI_BASE_URL"`
		Model           string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout         time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
		BreakerFailures int           `envconfig:"OPENAI_BREAKER_FAILURES" default:"5"`
	} `envconfig:""`

	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	PGDSN     string `envconfig:"PG_DSN"`
}

// Load загружает .env (если есть) и конфиг из окружения.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: .env не найден, используем только окружение")
	}
	cfg, err := FromEnv()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// FromEnv читает конфиг из текущего окружения без .env.
func FromEnv() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	cfg.Digest.Ignore = compact(cfg.Digest.Ignore)
	cfg.Summary.Provider = strings.ToLower(strings.TrimSpace(cfg.Summary.Provider))
	return cfg, nil
}

// Validate проверяет обязательные переменные и сообщает обо всех пропусках сразу.
func (c AppConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Slack.Token) == "" {
		missing = append(missing, "SLACK_BOT_TOKEN (Slack bot token)")
	}
	if strings.TrimSpace(c.Digest.Channel) == "" {
		missing = append(missing, "SUMMARY_CHANNEL (Summary channel)")
	}
	switch c.Summary.Provider {
	case SummarizerOpenAI:
		if strings.TrimSpace(c.OpenAI.APIKey) == "" {
			missing = append(missing, "OPENAI_API_KEY (OpenAI API key)")
		}
	case SummarizerSimple:
	default:
		return fmt.Errorf("config: неизвестный SUMMARIZER %q", c.Summary.Provider)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: не заданы переменные окружения: %s", strings.Join(missing, ", "))
	}
	if c.Digest.Concurrency <= 0 {
		return errors.New("config: DIGEST_CONCURRENCY должен быть больше нуля")
	}
	if c.Summary.MaxAttempts <= 0 || c.Slack.MaxAttempts <= 0 {
		return errors.New("config: число попыток должно быть больше нуля")
	}
	if _, err := cron.ParseStandard(c.Digest.Cron); err != nil {
		return fmt.Errorf("config: некорректный DIGEST_CRON: %w", err)
	}
	return nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
