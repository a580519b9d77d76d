package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SlackSink posts messages to a Slack incoming webhook. The address is the
// channel or user to post to ("#ops", "@kim"); an empty address uses the
// webhook's default channel.
type SlackSink struct {
	webhookURL string
	username   string
	httpClient *http.Client
}

// NewSlackSink creates a SlackSink.
func NewSlackSink(webhookURL, username string, httpClient *http.Client) *SlackSink {
	return &SlackSink{webhookURL: webhookURL, username: username, httpClient: httpClient}
}

var _ Sink = (*SlackSink)(nil)

type slackPayload struct {
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text"`
}

func (s *SlackSink) Send(ctx context.Context, address, subject, body string) error {
	jsonBody, err := json.Marshal(slackPayload{
		Channel:  address,
		Username: s.username,
		Text:     fmt.Sprintf("*%s*\n%s", subject, body),
	})
	if err != nil {
		return fmt.Errorf("marshaling slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("posting to slack: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
