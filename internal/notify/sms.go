package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSSender delivers one SMS to an MSISDN. Two provider implementations
// exist; the configured one is wired at startup.
type SMSSender interface {
	SendSMS(ctx context.Context, msisdn, message string) error
}

// SMSPortalClient sends through the SMSPortal bulk-message API using
// Basic-Auth client credentials.
type SMSPortalClient struct {
	url      string
	clientID string
	secret   string
	client   *http.Client
}

func NewSMSPortalClient(url, clientID, secret string) *SMSPortalClient {
	return &SMSPortalClient{
		url:      url,
		clientID: clientID,
		secret:   secret,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SMSPortalClient) SendSMS(ctx context.Context, msisdn, message string) error {
	payload := map[string]interface{}{
		"messages": []map[string]string{
			{"content": message, "destination": msisdn},
		},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %v", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("SMSPortal request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SMSPortal error %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// BulkSMSClient sends through the BulkSMS REST API using a bearer token.
type BulkSMSClient struct {
	url    string
	token  string
	client *http.Client
}

func NewBulkSMSClient(url, token string) *BulkSMSClient {
	return &BulkSMSClient{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *BulkSMSClient) SendSMS(ctx context.Context, msisdn, message string) error {
	payload := map[string]string{
		"to":   msisdn,
		"body": message,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("BulkSMS request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("BulkSMS error %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
