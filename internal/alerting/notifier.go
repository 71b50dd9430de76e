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
)

// DiscrepancyAlert is one reconciliation finding worth paging about.
type DiscrepancyAlert struct {
	Type     string
	Severity string
	VesselID string
	Date     string
	Volume   decimal.Decimal
	Message  string
}

// OverflowAlert is one imminent-overflow forecast.
type OverflowAlert struct {
	VesselID     string
	VesselName   string
	HoursToFull  decimal.Decimal
	Urgency      string
	OverflowTime time.Time
}

// Notification carries the alertable findings of a single audit run.
type Notification struct {
	RunID         string
	Bucket        time.Time
	Discrepancies []DiscrepancyAlert
	Overflows     []OverflowAlert
}

// Empty reports whether there is anything to send.
func (n Notification) Empty() bool {
	return len(n.Discrepancies) == 0 && len(n.Overflows) == 0
}

// Notifier delivers audit notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
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

// Notify sends the rendered notification via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	if note.Empty() {
		return nil
	}

	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
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
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("run_id", note.RunID).
		Int("discrepancies", len(note.Discrepancies)).
		Int("overflows", len(note.Overflows)).
		Msg("alert delivered via telegram")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Drain Audit Alert]\n")
	builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunID))
	builder.WriteString(fmt.Sprintf("Bucket: %s UTC\n", note.Bucket.UTC().Format(time.RFC3339)))

	if len(note.Discrepancies) > 0 {
		builder.WriteString(fmt.Sprintf("Discrepancies (%d):\n", len(note.Discrepancies)))
		for _, d := range note.Discrepancies {
			builder.WriteString(fmt.Sprintf("- [%s/%s] vessel %s on %s, volume %s: %s\n",
				d.Type, d.Severity, d.VesselID, d.Date, d.Volume.StringFixed(1), d.Message))
		}
	}

	if len(note.Overflows) > 0 {
		builder.WriteString(fmt.Sprintf("Overflow forecasts (%d):\n", len(note.Overflows)))
		for _, o := range note.Overflows {
			name := o.VesselName
			if name == "" {
				name = o.VesselID
			}
			builder.WriteString(fmt.Sprintf("- [%s] %s full in %sh (at %s UTC)\n",
				o.Urgency, name, o.HoursToFull.StringFixed(1), o.OverflowTime.UTC().Format(time.RFC3339)))
		}
	}

	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
