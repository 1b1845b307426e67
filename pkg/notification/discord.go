package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vignesh-goutham/orion/pkg/signals"
)

// DiscordNotificationService handles sending notifications to Discord
type DiscordNotificationService struct {
	webhookURL string
	enabled    bool
}

// DiscordWebhookPayload represents the payload sent to Discord webhook
type DiscordWebhookPayload struct {
	Content string `json:"content"`
}

// NewDiscordNotificationService creates a new Discord notification service
func NewDiscordNotificationService(webhookURL string) *DiscordNotificationService {
	return &DiscordNotificationService{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
	}
}

// sendNotification sends a notification to Discord
func (d *DiscordNotificationService) sendNotification(message string) error {
	if !d.enabled {
		log.Debug().Msg("discord notifications disabled (no webhook URL)")
		return nil
	}

	payload := DiscordWebhookPayload{
		Content: message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Discord payload: %w", err)
	}

	resp, err := http.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send Discord notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("Discord webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// NotifySignalCreated announces a freshly generated signal.
func (d *DiscordNotificationService) NotifySignalCreated(s *signals.Signal) error {
	message := fmt.Sprintf("🆕 **New Signal: %s**\n"+
		"Strategy: %s\n"+
		"Status: %s\n"+
		"Entry: $%s\n"+
		"Stop Loss: $%s\n"+
		"Take Profit: $%s\n"+
		"Risk/Reward: %s\n"+
		"Score: %.1f",
		s.Ticker, s.Strategy, s.Status,
		s.Entry.StringFixed(2), s.StopLoss.StringFixed(2), s.TakeProfit.StringFixed(2),
		s.RiskReward.StringFixed(2), s.Score)

	return d.sendNotification(message)
}

// NotifyTransition announces a lifecycle status change on an open signal.
func (d *DiscordNotificationService) NotifyTransition(s *signals.Signal, t *signals.Transition) error {
	var message string
	switch t.To {
	case signals.StatusActive:
		message = fmt.Sprintf("🎯 **Entry Filled: %s**\n"+
			"Signal is now active at $%s\n"+
			"Stop Loss: $%s\n"+
			"Take Profit: $%s",
			t.Ticker, t.Price.StringFixed(2),
			s.StopLoss.StringFixed(2), s.TakeProfit.StringFixed(2))
	case signals.StatusCompleted:
		message = fmt.Sprintf("🤑 Target Hit 🤑\n"+
			"**%s** completed at $%s\n"+
			"Entry: $%s\n"+
			"Strategy: %s\n@everyone",
			t.Ticker, t.Price.StringFixed(2), s.Entry.StringFixed(2), s.Strategy)
	case signals.StatusInvalid:
		message = fmt.Sprintf("💸 Stopped Out 💸\n"+
			"**%s** invalidated at $%s\n"+
			"Entry: $%s\n"+
			"Strategy: %s",
			t.Ticker, t.Price.StringFixed(2), s.Entry.StringFixed(2), s.Strategy)
	case signals.StatusExpired:
		message = fmt.Sprintf("⌛ **Signal Expired: %s**\n"+
			"Last price: $%s\n"+
			"Strategy: %s",
			t.Ticker, t.Price.StringFixed(2), s.Strategy)
	default:
		message = fmt.Sprintf("🔁 **%s**: %s -> %s at $%s",
			t.Ticker, t.From, t.To, t.Price.StringFixed(2))
	}

	return d.sendNotification(message)
}

// NotifyScanComplete summarizes a finished scan cycle.
func (d *DiscordNotificationService) NotifyScanComplete(processed int, newSignals int, transitions int, errors int) error {
	message := fmt.Sprintf("✅ **Scan Complete**\n"+
		"Tickers Processed: %d\n"+
		"New Signals: %d\n"+
		"Transitions: %d\n"+
		"Errors: %d",
		processed, newSignals, transitions, errors)

	return d.sendNotification(message)
}

// NotifyMacroBias announces a market regime change.
func (d *DiscordNotificationService) NotifyMacroBias(from, to string, benchmark string) error {
	message := fmt.Sprintf("🌐 **Macro Bias Changed**\n"+
		"%s -> %s\n"+
		"Benchmark: %s",
		from, to, benchmark)

	return d.sendNotification(message)
}

// NotifyError sends a notification for errors
func (d *DiscordNotificationService) NotifyError(errorType string, message string, details string) error {
	errorMessage := fmt.Sprintf("⚠️ **Error Alert**\n"+
		"**%s**\n"+
		"%s\n"+
		"Details: %s",
		errorType, message, details)

	return d.sendNotification(errorMessage)
}

// NotifyWorkerStart sends a notification when the scan worker starts a run.
func (d *DiscordNotificationService) NotifyWorkerStart(phase string) error {
	message := fmt.Sprintf("🚀 **Orion Worker Started**\nPhase: %s", phase)
	return d.sendNotification(message)
}

// NotifyMarketClosed sends a notification when the market is closed
func (d *DiscordNotificationService) NotifyMarketClosed() error {
	message := "🏛️ Market Closed\nScan worker detected that the market is currently closed"
	return d.sendNotification(message)
}

// timestamp is used on digest messages so repeated content is not deduped by clients.
func timestamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05 UTC")
}

// NotifyDigest sends a free-form digest message with a timestamp footer.
func (d *DiscordNotificationService) NotifyDigest(body string) error {
	return d.sendNotification(fmt.Sprintf("%s\n_%s_", body, timestamp()))
}
