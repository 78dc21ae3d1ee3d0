package summarizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"slack-digest-bot/internal/domain"
	openai "slack-digest-bot/internal/infra/openai"
)

const (
	defaultModel        = "gpt-4.1-mini"
	defaultMaxBullets   = 3
	defaultMaxAttempts  = 3
	messageRuneLimit    = 1000
	transcriptRuneLimit = 48000
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options параметры суммаризатора.
type Options struct {
	Model string
	// Timeout ограничивает одну попытку.
	Timeout     time.Duration
	MaxAttempts int
	// Backoff начальная пауза между попытками, дальше растёт экспоненциально.
	Backoff    time.Duration
	MaxBullets int
	Cache      domain.SummaryCache
	CacheTTL   time.Duration
}

// OpenAI реализует domain.Summarizer через Chat Completions.
type OpenAI struct {
	client chatClient
	opts   Options
	log    zerolog.Logger
}

var _ domain.Summarizer = (*OpenAI)(nil)

// NewOpenAI создаёт провайдер суммаризации.
func NewOpenAI(client chatClient, logger zerolog.Logger, opts Options) *OpenAI {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.MaxBullets <= 0 {
		opts.MaxBullets = defaultMaxBullets
	}
	return &OpenAI{client: client, opts: opts, log: logger.With().Str("component", "summarizer").Logger()}
}

const systemPrompt = `You review Slack conversations for a product development team and extract actionable product signal: product feedback, feature requests, user pain points and suggestions for improvement. Keep to the facts in the conversation and never invent details.`

const userPromptTemplate = `Channel: #%s
Conversation (oldest first, thread replies are indented under their root):
%s

Summarize the actionable product signal in 1-%d bullet points, one sentence each.
Begin each bullet with a category in asterisks, for example "*Feature Request*:", "*User Pain Point*:", "*UX Improvement*:" or "*Product Win*:".
Ignore small talk, scheduling, greetings and anything unrelated to the product.
Respond with JSON only: {"bullets": ["..."]}. Use an empty list when nothing relevant was discussed.`

// Summarize возвращает пункты по каналу. Временные ошибки повторяются с экспоненциальной паузой.
func (s *OpenAI) Summarize(ctx context.Context, channel domain.ChannelRef, transcript domain.Transcript) ([]string, error) {
	if transcript.Empty() {
		return nil, nil
	}
	body, dropped := renderTranscript(transcript)
	if dropped > 0 {
		s.log.Warn().
			Str("channel_id", channel.ID).
			Int("dropped", dropped).
			Int("messages", len(transcript.Messages)).
			Msg("summarizer: transcript truncated, newest messages dropped")
	}
	key := cacheKey(s.opts.Model, channel.ID, body)
	if bullets, ok := s.cached(ctx, key); ok {
		return bullets, nil
	}

	var (
		bullets  []string
		attempts int
	)
	op := func() error {
		attempts++
		got, err := s.complete(ctx, channel, body)
		if err != nil {
			return classify(ctx, err)
		}
		bullets = got
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.Backoff
	bo.MaxInterval = 20 * s.opts.Backoff
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.opts.MaxAttempts-1)), ctx)
	notify := func(err error, wait time.Duration) {
		s.log.Warn().Err(err).
			Str("channel_id", channel.ID).
			Int("attempt", attempts).
			Dur("wait", wait).
			Msg("summarizer: retrying completion")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("%w: %s: попыток %d: %w", domain.ErrSummarization, channel.Name, attempts, err)
	}

	s.store(ctx, key, bullets)
	return bullets, nil
}

func (s *OpenAI) complete(ctx context.Context, channel domain.ChannelRef, body string) ([]string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       s.opts.Model,
		Temperature: 0.2,
		MaxTokens:   400,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: fmt.Sprintf(userPromptTemplate, channel.Name, body, s.opts.MaxBullets)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}
	resp, err := s.client.CreateChatCompletion(attemptCtx, req)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: пустой ответ модели", domain.ErrParse)
	}
	return parseBullets(resp.Choices[0].Message.Content, s.opts.MaxBullets)
}

// classify решает, стоит ли повторять попытку.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return backoff.Permanent(err)
	}
	if errors.Is(err, domain.ErrParse) || !openai.IsTransient(err) {
		return backoff.Permanent(err)
	}
	return err
}

func (s *OpenAI) cached(ctx context.Context, key string) ([]string, bool) {
	if s.opts.Cache == nil {
		return nil, false
	}
	bullets, ok, err := s.opts.Cache.GetSummary(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("summarizer: cache read failed")
		return nil, false
	}
	return bullets, ok
}

func (s *OpenAI) store(ctx context.Context, key string, bullets []string) {
	if s.opts.Cache == nil {
		return
	}
	if err := s.opts.Cache.SetSummary(ctx, key, bullets, s.opts.CacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("summarizer: cache write failed")
	}
}

// renderTranscript превращает транскрипт в текст для модели.
// Второе значение число сообщений, не вошедших в лимит.
func renderTranscript(tr domain.Transcript) (string, int) {
	var b strings.Builder
	total := 0
	for i, msg := range tr.Messages {
		line := clipRunes(strings.ReplaceAll(msg.Text, "\n", " "), messageRuneLimit)
		prefix := ""
		if msg.IsReply() {
			prefix = "    "
		}
		entry := fmt.Sprintf("%s[%s] %s: %s\n", prefix, msg.Timestamp.UTC().Format("2006-01-02 15:04"), author(msg), line)
		total += len([]rune(entry))
		if total > transcriptRuneLimit {
			return strings.TrimRight(b.String(), "\n"), len(tr.Messages) - i
		}
		b.WriteString(entry)
	}
	return strings.TrimRight(b.String(), "\n"), 0
}

func author(msg domain.Message) string {
	if msg.AuthorID == "" {
		return "unknown"
	}
	return msg.AuthorID
}

func cacheKey(model, channelID, body string) string {
	sum := sha256.Sum256([]byte(model + "\n" + channelID + "\n" + body))
	return "summary:" + hex.EncodeToString(sum[:])
}

func filterValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
