// Package slack sends ward notifications to Slack via incoming
// webhooks: day-close summaries with their carry-forward deferrals.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/wardwatch/internal/day"
)

const (
	maxIntentLines = 20
	httpTimeout    = 10 * time.Second
)

// Notifier posts to a Slack webhook. If webhookURL is empty every send
// is a no-op, so callers never need to branch on configuration.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// DayClosed posts a day-close summary to the configured webhook.
func (n *Notifier) DayClosed(ctx context.Context, summary *day.CloseSummary) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(summary))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "day-close notification sent",
		"station", summary.StationID,
		"business_date", summary.BusinessDate,
		"carried_forward", len(summary.Intents),
	)
	return nil
}

func buildMessage(s *day.CloseSummary) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(s),
			{"type": "divider"},
			fieldsBlock(s),
			intentsBlock(s),
		},
	}
}

func headerBlock(s *day.CloseSummary) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf(":lock: Day closed: %s %s", s.StationID, s.BusinessDate),
		},
	}
}

func fieldsBlock(s *day.CloseSummary) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Cases:* %d", s.Cases),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Carried forward:* %d", len(s.Intents)),
		},
	}
	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func intentsBlock(s *day.CloseSummary) map[string]any {
	if len(s.Intents) == 0 {
		return map[string]any{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": "_No deferrals carried into the next day._",
			},
		}
	}

	var b strings.Builder
	for i, intent := range s.Intents {
		if i == maxIntentLines {
			fmt.Fprintf(&b, "… and %d more\n", len(s.Intents)-maxIntentLines)
			break
		}
		fmt.Fprintf(&b, "• case `%s` scope `%s` (%s, by %s)\n",
			intent.CaseID, intent.Scope, intent.ReasonCode, intent.Actor)
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": b.String(),
		},
	}
}
