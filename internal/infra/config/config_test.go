package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SUMMARY_CHANNEL", "#product-digest")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.Digest.Title != "Customer Channel Summary" {
		t.Fatalf("неожиданный заголовок по умолчанию: %q", cfg.Digest.Title)
	}
	if cfg.OpenAI.Model != "gpt-4.1-mini" {
		t.Fatalf("неожиданная модель: %q", cfg.OpenAI.Model)
	}
	if cfg.Digest.RunTimeout != 10*time.Minute {
		t.Fatalf("неожиданный RUN_TIMEOUT: %v", cfg.Digest.RunTimeout)
	}
	if cfg.Summary.Provider != SummarizerOpenAI {
		t.Fatalf("ожидали openai по умолчанию, получили %q", cfg.Summary.Provider)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("не ожидали ошибку валидации: %v", err)
	}
}

func TestFromEnvIgnoreList(t *testing.T) {
	setRequired(t)
	t.Setenv("IGNORE_CHANNELS", "C1, C2,,C3 ")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := []string{"C1", "C2", "C3"}
	if strings.Join(cfg.Digest.Ignore, ",") != strings.Join(want, ",") {
		t.Fatalf("ожидали %v, получили %v", want, cfg.Digest.Ignore)
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SUMMARY_CHANNEL", "")
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatalf("ожидали ошибку валидации")
	}
	for _, name := range []string{"SLACK_BOT_TOKEN", "SUMMARY_CHANNEL", "OPENAI_API_KEY"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("ожидали упоминание %s в %q", name, err.Error())
		}
	}
}

func TestValidateSimpleSummarizerNeedsNoKey(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SUMMARY_CHANNEL", "C0DIGEST")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SUMMARIZER", "Simple")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("не ожидали ошибку валидации: %v", err)
	}
}

func TestValidateRejectsBadCron(t *testing.T) {
	setRequired(t)
	t.Setenv("DIGEST_CRON", "every day")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ожидали ошибку для некорректного cron")
	}
}

func TestLogLevelHasNoDefault(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("LOG_LEVEL", "")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.LogLevel != "" {
		t.Fatalf("LOG_LEVEL без значения должен оставаться пустым, получили %q", cfg.LogLevel)
	}
}
