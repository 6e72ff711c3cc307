package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/callrescue/callrescue/internal/config"
)

// Sender delivers one outbound SMS. A non-empty provider message id means
// the gateway accepted the message; an empty id is treated as a delivery
// failure even when err is nil.
type Sender interface {
	Send(ctx context.Context, to, body string) (messageID string, err error)
}

// GatewaySender is the REST client for the SMS gateway.
type GatewaySender struct {
	baseURL    string
	apiToken   string
	fromNumber string
	client     *http.Client
}

type gatewaySendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type gatewaySendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func NewGatewaySender() *GatewaySender {
	if config.App.SMSGateway.URL == "" {
		log.Println("Warning: SMS_GATEWAY_URL not set, outbound SMS will fail")
	}
	return &GatewaySender{
		baseURL:    config.App.SMSGateway.URL,
		apiToken:   config.App.SMSGateway.APIToken,
		fromNumber: config.App.SMSGateway.FromNumber,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send posts the message to the gateway and returns the provider message id.
func (s *GatewaySender) Send(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(gatewaySendRequest{
		From: s.fromNumber,
		To:   to,
		Body: body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/messages", bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach SMS gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("SMS gateway error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var sendResp gatewaySendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return "", fmt.Errorf("could not parse gateway response: %w", err)
	}
	if sendResp.MessageID == "" {
		return "", fmt.Errorf("gateway accepted request but returned no message id: %s", sendResp.Error)
	}

	return sendResp.MessageID, nil
}
