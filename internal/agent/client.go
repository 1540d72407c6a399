package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrPaymentRequired is returned by Heartbeat when the control server answers
// 402 for the agent's profile.
var ErrPaymentRequired = fmt.Errorf("payment required")

// Client talks to the control server's bot-facing endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
}

func NewClient(baseURL string, log *logrus.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

type HeartbeatRequest struct {
	BotID            string `json:"botId"`
	AccountDisplayID string `json:"accountDisplayId"`
	Status           string `json:"status"`
	Version          string `json:"version"`
	ProfilesTotal    int    `json:"profilesTotal"`
}

type Commands struct {
	MailingEnabled bool   `json:"mailingEnabled"`
	BotEnabled     bool   `json:"botEnabled"`
	Proxy          string `json:"proxy"`
}

type HeartbeatResponse struct {
	Success  bool     `json:"success"`
	Status   string   `json:"status"`
	DaysLeft int      `json:"daysLeft"`
	CanTrial bool     `json:"canTrial"`
	Commands Commands `json:"commands"`
}

// Heartbeat reports liveness and polls for the current command set.
func (c *Client) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	var resp HeartbeatResponse
	status, err := c.post(ctx, "/api/bots/heartbeat", req, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusPaymentRequired {
		return nil, ErrPaymentRequired
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("heartbeat: unexpected status %d", status)
	}
	return &resp, nil
}

type MessageSentRequest struct {
	ProfileID    string     `json:"profileId"`
	ManID        string     `json:"manId"`
	Text         string     `json:"text"`
	Kind         string     `json:"kind"`
	TemplateText *string    `json:"templateText,omitempty"`
	UsedAI       bool       `json:"usedAi"`
	IsReply      bool       `json:"isReply"`
	Error        *SendError `json:"error,omitempty"`
}

type SendError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReportMessage records a sent (or failed) message on the server.
func (c *Client) ReportMessage(ctx context.Context, req *MessageSentRequest) error {
	status, err := c.post(ctx, "/api/message_sent", req, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("message_sent: unexpected status %d", status)
	}
	return nil
}

// Ping records an activity ping used for work-time estimation.
func (c *Client) Ping(ctx context.Context, profileID string) error {
	status, err := c.post(ctx, "/api/activity/activity_ping", map[string]string{"profileId": profileID}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("activity_ping: unexpected status %d", status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Warn("request failed")
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
