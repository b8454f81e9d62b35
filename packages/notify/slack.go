package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SlackNotifier posts run summaries to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	iconEmoji  string
	client     *http.Client
}

type SlackOption func(*SlackNotifier)

// WithSlackChannel overrides the webhook's default channel.
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "pagespec",
		iconEmoji:  ":test_tube:",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func (s *SlackNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	r := buildReport(summary)

	color, emoji := "good", ":white_check_mark:"
	switch {
	case r.Failed:
		color, emoji = "danger", ":x:"
	case summary.IsRecovery:
		emoji = ":tada:"
	}

	var fields []slackField
	for _, st := range append(r.Stats, r.Context...) {
		fields = append(fields, slackField{Title: st.Label, Value: st.Value, Short: true})
	}

	var text strings.Builder
	if len(r.Failures) > 0 {
		text.WriteString("*Failed scenarios:*\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&text, "• %s\n", f.Heading)
			for _, e := range f.Errors {
				fmt.Fprintf(&text, "  - %s\n", e)
			}
		}
	}

	msg := slackMessage{
		Channel:   s.channel,
		Username:  s.username,
		IconEmoji: s.iconEmoji,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  emoji + " " + r.Title,
			Text:   text.String(),
			Fields: fields,
			Footer: "pagespec",
			TS:     time.Now().Unix(),
		}},
	}

	if err := postJSON(ctx, s.client, s.webhookURL, msg, http.StatusOK); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}
