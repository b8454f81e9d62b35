package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// TeamsNotifier posts run summaries as an Adaptive Card to a Microsoft Teams
// workflow webhook.
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewTeamsNotifier(webhookURL string) *TeamsNotifier {
	return &TeamsNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type      string      `json:"type"`
	Size      string      `json:"size,omitempty"`
	Weight    string      `json:"weight,omitempty"`
	Text      string      `json:"text,omitempty"`
	Color     string      `json:"color,omitempty"`
	Wrap      bool        `json:"wrap,omitempty"`
	Facts     []teamsFact `json:"facts,omitempty"`
	Spacing   string      `json:"spacing,omitempty"`
	Separator bool        `json:"separator,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

func textBlock(text string) teamsBlock {
	return teamsBlock{Type: "TextBlock", Text: text, Wrap: true}
}

func (t *TeamsNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	r := buildReport(summary)

	color, emoji := "good", "✓"
	switch {
	case r.Failed:
		color, emoji = "attention", "✗"
	case summary.IsRecovery:
		emoji = "🎉"
	}

	var facts []teamsFact
	for _, st := range append(r.Stats, r.Context...) {
		facts = append(facts, teamsFact{Title: st.Label, Value: st.Value})
	}

	body := []teamsBlock{
		{Type: "TextBlock", Size: "Large", Weight: "Bolder", Text: emoji + " " + r.Title, Color: color},
		{Type: "FactSet", Facts: facts, Separator: true, Spacing: "Medium"},
	}

	if len(r.Failures) > 0 {
		heading := textBlock("**Failed Scenarios:**")
		heading.Separator, heading.Spacing = true, "Medium"
		body = append(body, heading)
		for _, f := range r.Failures {
			body = append(body, textBlock("- "+f.Heading))
			for _, e := range f.Errors {
				body = append(body, textBlock("  - "+e))
			}
		}
	}

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.2",
				Body:    body,
			},
		}},
	}

	if err := postJSON(ctx, t.client, t.webhookURL, msg, http.StatusOK, http.StatusAccepted); err != nil {
		return fmt.Errorf("teams: %w", err)
	}
	return nil
}
