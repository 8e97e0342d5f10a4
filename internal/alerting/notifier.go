package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fundscore/internal/domain"
)

// Status 表示评分批次结果。
type Status string

const (
	StatusCompleted Status = domain.RunStatusCompleted
	StatusFailed    Status = domain.RunStatusFailed
)

// Leader is one of the top-ranked funds reported in a notification.
type Leader struct {
	Rank  int
	Name  string
	Score decimal.Decimal
}

// Notification 封装评分批次的告警上下文。
type Notification struct {
	Status  Status
	Summary domain.RunSummary
	Leaders []Leader
	Err     error
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// NoopNotifier discards notifications.
type NoopNotifier struct{}

// Notify implements Notifier.
func (NoopNotifier) Notify(context.Context, Notification) error { return nil }

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    RenderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("category", note.Summary.Category).
		Str("run_id", note.Summary.RunID).
		Str("status", string(note.Status)).
		Msg("告警已发送 (Telegram)")
	return nil
}

// RenderMessage formats a notification as plain text.
func RenderMessage(note Notification) string {
	s := note.Summary
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[Fund Scoring %s]\n", strings.ToUpper(string(note.Status))))
	builder.WriteString(fmt.Sprintf("Category: %s\n", s.Category))
	if !s.AsOf.IsZero() {
		builder.WriteString(fmt.Sprintf("As of: %s\n", s.AsOf.Format("2006-01-02")))
	}
	if s.RunID != "" {
		builder.WriteString(fmt.Sprintf("Run: %s\n", s.RunID))
	}
	builder.WriteString(fmt.Sprintf("Universe: %d (eligible %d, excluded %d, ranked %d)\n",
		s.UniverseSize, s.EligibleCount, s.ExcludedCount, s.RankedCount))
	if len(s.Suppressed) > 0 {
		builder.WriteString(fmt.Sprintf("Suppressed metrics: %s\n", strings.Join(s.Suppressed, ",")))
	}
	if s.Duration > 0 {
		builder.WriteString(fmt.Sprintf("Duration: %s\n", s.Duration.Round(time.Millisecond)))
	}
	for _, l := range note.Leaders {
		builder.WriteString(fmt.Sprintf("#%d %s %s\n", l.Rank, l.Name, l.Score.StringFixed(2)))
	}
	if note.Err != nil {
		builder.WriteString(fmt.Sprintf("Error: %s\n", note.Err))
	}
	return builder.String()
}

// LeadersFrom picks the first n ranked records.
func LeadersFrom(records []domain.CompositeScoreRecord, n int) []Leader {
	out := make([]Leader, 0, n)
	for _, r := range records {
		if len(out) >= n {
			break
		}
		if r.Rank == nil || r.QuantScore == nil {
			continue
		}
		name := r.FundName
		if name == "" {
			name = r.FundID
		}
		out = append(out, Leader{Rank: *r.Rank, Name: name, Score: decimal.NewFromFloat(*r.QuantScore)})
	}
	return out
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = NoopNotifier{}
)
