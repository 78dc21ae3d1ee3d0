package slack

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"slack-digest-bot/internal/domain"
	"slack-digest-bot/internal/infra/metrics"
)

const (
	defaultMaxAttempts = 5
	defaultPageSize    = 200
	defaultRetryAfter  = time.Second
	maxBlocksPerPost   = 50
)

// API часть slack.Client, которой пользуется шлюз.
type API interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationsForUserContext(ctx context.Context, params *slack.GetConversationsForUserParameters) ([]slack.Channel, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Options параметры шлюза.
type Options struct {
	// GlobalRPS общий темп запросов ко всему API. 0 — без ограничения.
	GlobalRPS   float64
	MaxAttempts int
	PageSize    int
}

// Gateway реализует domain.MessagingGateway поверх Slack Web API.
type Gateway struct {
	api         API
	log         zerolog.Logger
	limiter     *rate.Limiter
	clock       *rateClock
	maxAttempts int
	pageSize    int

	mu        sync.Mutex
	botUserID string
	auth      singleflight.Group
}

var _ domain.MessagingGateway = (*Gateway)(nil)

// NewClient создаёт slack.Client с логами через zerolog.
func NewClient(token string, logger zerolog.Logger, apiURL string) *slack.Client {
	opts := []slack.Option{slack.OptionLog(&logAdapter{logger: logger.With().Str("component", "slack-api").Logger()})}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return slack.New(token, opts...)
}

// NewGateway создаёт шлюз.
func NewGateway(api API, logger zerolog.Logger, opts Options) *Gateway {
	limit := rate.Inf
	if opts.GlobalRPS > 0 {
		limit = rate.Limit(opts.GlobalRPS)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &Gateway{
		api:         api,
		log:         logger.With().Str("component", "slack").Logger(),
		limiter:     rate.NewLimiter(limit, 1),
		clock:       newRateClock(),
		maxAttempts: opts.MaxAttempts,
		pageSize:    opts.PageSize,
	}
}

// ListChannels возвращает публичные и приватные каналы, где бот состоит, без архивных.
func (g *Gateway) ListChannels(ctx context.Context) ([]domain.ChannelRef, error) {
	var out []domain.ChannelRef
	cursor := ""
	for {
		var (
			page []slack.Channel
			next string
		)
		err := g.call(ctx, "users.conversations", func(ctx context.Context) error {
			var err error
			page, next, err = g.api.GetConversationsForUserContext(ctx, &slack.GetConversationsForUserParameters{
				Types:           []string{"public_channel", "private_channel"},
				Limit:           g.pageSize,
				Cursor:          cursor,
				ExcludeArchived: true,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrDiscovery, err)
		}
		for _, ch := range page {
			if ch.IsArchived {
				continue
			}
			out = append(out, toChannelRef(ch))
		}
		if next == "" {
			break
		}
		g.log.Debug().Str("cursor", next).Int("count", len(out)).Msg("slack: next channels page")
		cursor = next
	}
	return out, nil
}

// ListMessages обходит историю канала постранично. Каждый range начинает с первой страницы.
func (g *Gateway) ListMessages(ctx context.Context, channel domain.ChannelRef, window domain.TimeWindow) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		botID, err := g.botID(ctx)
		if err != nil {
			yield(domain.Message{}, err)
			return
		}
		cursor := ""
		for {
			var resp *slack.GetConversationHistoryResponse
			err := g.call(ctx, "conversations.history", func(ctx context.Context) error {
				var err error
				resp, err = g.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
					ChannelID: channel.ID,
					Cursor:    cursor,
					Oldest:    FormatTimestamp(window.Start),
					Latest:    FormatTimestamp(window.End),
					Inclusive: true,
					Limit:     g.pageSize,
				})
				return err
			})
			if err != nil {
				yield(domain.Message{}, err)
				return
			}
			for _, raw := range resp.Messages {
				msg, err := toMessage(raw, botID)
				if err != nil {
					yield(domain.Message{}, err)
					return
				}
				// latest включён ради границы, окно полуоткрытое
				if !window.Contains(msg.Timestamp) {
					continue
				}
				if !yield(msg, nil) {
					return
				}
			}
			cursor = resp.ResponseMetaData.NextCursor
			if cursor == "" {
				return
			}
		}
	}
}

// ListThreadReplies возвращает ответы треда по возрастанию ts, без корня.
func (g *Gateway) ListThreadReplies(ctx context.Context, channel domain.ChannelRef, rootID string) ([]domain.Message, error) {
	botID, err := g.botID(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Message
	cursor := ""
	for {
		var (
			page []slack.Message
			next string
		)
		err := g.call(ctx, "conversations.replies", func(ctx context.Context) error {
			var err error
			page, _, next, err = g.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
				ChannelID: channel.ID,
				Timestamp: rootID,
				Cursor:    cursor,
				Limit:     g.pageSize,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, raw := range page {
			if raw.Timestamp == rootID {
				continue
			}
			msg, err := toMessage(raw, botID)
			if err != nil {
				return nil, err
			}
			msg.ThreadRootID = rootID
			out = append(out, msg)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return out, nil
}

// PostMessage публикует текст секциями mrkdwn. Неоднозначные ошибки не повторяются,
// повтор выполняется только по явному ответу rate limited.
func (g *Gateway) PostMessage(ctx context.Context, channel, text string) error {
	parts := SplitText(text, SectionLimit)
	if len(parts) == 0 {
		return errors.New("slack: пустое сообщение")
	}
	fallback := firstLine(parts[0])
	for start := 0; start < len(parts); start += maxBlocksPerPost {
		end := min(start+maxBlocksPerPost, len(parts))
		blocks := make([]slack.Block, 0, end-start)
		for _, part := range parts[start:end] {
			blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, part, false, false), nil, nil))
		}
		err := g.call(ctx, "chat.postMessage", func(ctx context.Context) error {
			_, _, err := g.api.PostMessageContext(ctx, channel,
				slack.MsgOptionText(fallback, false),
				slack.MsgOptionBlocks(blocks...),
			)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// call выполняет запрос с общим темпом и повтором по rate limited.
func (g *Gateway) call(ctx context.Context, op string, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if err := g.clock.wait(ctx); err != nil {
			return err
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		start := time.Now()
		err := fn(ctx)
		metrics.ObserveNetworkRequest("slack", op, "slack_api", start, err)
		if err == nil {
			return nil
		}
		var rl *slack.RateLimitedError
		if !errors.As(err, &rl) {
			return fmt.Errorf("slack %s: %w", op, err)
		}
		metrics.IncSlackRateLimited(op)
		delay := rl.RetryAfter
		if delay <= 0 {
			delay = defaultRetryAfter
		}
		if attempt >= g.maxAttempts {
			return &domain.RateLimitError{Op: op, Attempts: attempt, RetryAfter: delay}
		}
		g.log.Warn().Str("op", op).Int("attempt", attempt).Dur("retry_after", delay).Msg("slack: rate limited")
		g.clock.extend(delay)
	}
}

// botID кэширует user id бота. Параллельные вызовы делят один auth.test,
// но каждый ждёт его не дольше своего ctx.
func (g *Gateway) botID(ctx context.Context) (string, error) {
	g.mu.Lock()
	id := g.botUserID
	g.mu.Unlock()
	if id != "" {
		return id, nil
	}
	authCtx := context.WithoutCancel(ctx)
	res := g.auth.DoChan("auth.test", func() (any, error) {
		var resp *slack.AuthTestResponse
		err := g.call(authCtx, "auth.test", func(ctx context.Context) error {
			var err error
			resp, err = g.api.AuthTestContext(ctx)
			return err
		})
		if err != nil {
			return "", err
		}
		g.mu.Lock()
		g.botUserID = resp.UserID
		g.mu.Unlock()
		return resp.UserID, nil
	})
	select {
	case r := <-res:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func toChannelRef(ch slack.Channel) domain.ChannelRef {
	kind := domain.ChannelPublic
	if ch.IsPrivate {
		kind = domain.ChannelPrivate
	}
	return domain.ChannelRef{
		ID:          ch.ID,
		Name:        ch.Name,
		Kind:        kind,
		MemberCount: ch.NumMembers,
	}
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}
