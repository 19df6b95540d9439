package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Attachment is a file attached to an outgoing email (PDF invoices).
type Attachment struct {
	Name     string
	MimeType string
	Content  []byte
}

// EmailClient sends HTML email through the ZeptoMail HTTP API.
type EmailClient struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

func NewEmailClient(apiURL, apiKey, from string) *EmailClient {
	return &EmailClient{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type emailRecipient struct {
	Email emailAddress `json:"email_address"`
}

type emailAttachment struct {
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name"`
}

type emailRequest struct {
	From        emailAddress      `json:"from"`
	To          []emailRecipient  `json:"to"`
	Subject     string            `json:"subject"`
	HTMLBody    string            `json:"htmlbody"`
	Attachments []emailAttachment `json:"attachments,omitempty"`
}

// Send posts one HTML email. Success is HTTP 200/201/202 from the provider.
func (c *EmailClient) Send(ctx context.Context, to, toName, subject, htmlBody string, attachments ...Attachment) error {
	if c.apiURL == "" || c.apiKey == "" {
		return fmt.Errorf("email client not configured")
	}
	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}

	payload := emailRequest{
		From:     emailAddress{Address: c.from},
		To:       []emailRecipient{{Email: emailAddress{Address: to, Name: toName}}},
		Subject:  subject,
		HTMLBody: htmlBody,
	}
	for _, a := range attachments {
		payload.Attachments = append(payload.Attachments, emailAttachment{
			Content:  base64.StdEncoding.EncodeToString(a.Content),
			MimeType: a.MimeType,
			Name:     a.Name,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create email request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("email API error: %s", resp.Status)
	}

	log.Printf("Email sent to %s: %s", to, subject)
	return nil
}
