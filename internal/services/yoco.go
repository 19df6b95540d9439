package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
	"github.com/tshiamom/clanfund-gobackend/internal/notify"
)

// YocoService talks to the Yoco hosted checkout API and settles payments
// from its webhook callbacks. Amounts go over the wire in cents, which is
// how they are stored, so no conversion happens here.
type YocoService struct {
	store     PaymentStore
	dispatch  notify.Dispatcher
	secretKey string
	baseURL   string
	siteURL   string
	client    *http.Client
}

func NewYocoService(store PaymentStore, dispatch notify.Dispatcher, secretKey, baseURL, siteURL string) *YocoService {
	return &YocoService{
		store:     store,
		dispatch:  dispatch,
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		siteURL:   strings.TrimRight(siteURL, "/"),
		client:    &http.Client{Timeout: 8 * time.Second},
	}
}

type yocoCheckoutRequest struct {
	SuccessURL string            `json:"successUrl"`
	CancelURL  string            `json:"cancelUrl"`
	FailureURL string            `json:"failureUrl"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Metadata   map[string]string `json:"metadata"`
	LineItems  []yocoLineItem    `json:"lineItems"`
}

type yocoLineItem struct {
	DisplayName    string             `json:"displayName"`
	Quantity       int                `json:"quantity"`
	PricingDetails yocoPricingDetails `json:"pricingDetails"`
}

type yocoPricingDetails struct {
	Price int64 `json:"price"`
}

type yocoCheckoutResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirectUrl"`
	Status      string `json:"status"`
}

// CreateCheckout opens a hosted checkout for an existing payment record and
// returns the redirect URL. The checkout id is only persisted after Yoco
// accepts the request; a gateway failure leaves the payment and its
// contribution untouched.
func (s *YocoService) CreateCheckout(ctx context.Context, paymentID string, displayName string) (string, error) {
	if s.secretKey == "" {
		return "", fmt.Errorf("%w: payment gateway is not configured", models.ErrGateway)
	}

	pid, err := primitive.ObjectIDFromHex(paymentID)
	if err != nil {
		return "", fmt.Errorf("%w: invalid payment id %q", models.ErrValidation, paymentID)
	}
	p, err := s.store.PaymentByID(ctx, pid)
	if err != nil {
		return "", err
	}
	if p.MemberContributionID.IsZero() {
		return "", fmt.Errorf("%w: payment %s is not linked to a contribution", models.ErrValidation, paymentID)
	}
	mc, err := s.store.ContributionByID(ctx, p.MemberContributionID)
	if err != nil {
		return "", err
	}

	reqBody := yocoCheckoutRequest{
		SuccessURL: s.siteURL + "/payments/success",
		CancelURL:  s.siteURL + "/payments/cancelled",
		FailureURL: s.siteURL + "/payments/failed",
		Amount:     p.AmountCents,
		Currency:   "ZAR",
		Metadata:   map[string]string{"checkoutId": mc.Reference},
		LineItems: []yocoLineItem{
			{
				DisplayName:    displayName,
				Quantity:       1,
				PricingDetails: yocoPricingDetails{Price: p.AmountCents},
			},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/checkouts", bytes.NewBuffer(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Idempotency-Key", IdempotencyKey(mc.ID.Hex(), p.AmountCents))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: checkout request failed: %v", models.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("Yoco checkout failed with status %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("%w: checkout rejected with status %d", models.ErrGateway, resp.StatusCode)
	}

	var checkout yocoCheckoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return "", fmt.Errorf("%w: failed to decode checkout response: %v", models.ErrGateway, err)
	}
	if checkout.RedirectURL == "" {
		return "", fmt.Errorf("%w: checkout response has no redirect URL", models.ErrGateway)
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.SetPaymentCheckout(ctx, p.ID, checkout.ID); err != nil {
			return err
		}
		return s.store.SetContributionStatus(ctx, mc.ID, models.StatusPending)
	})
	if err != nil {
		return "", err
	}

	log.Printf("Yoco checkout %s created for payment %s (%s)", checkout.ID, p.ID.Hex(), mc.Reference)
	return checkout.RedirectURL, nil
}

// WebhookPayload is the subset of the Yoco event envelope the settlement
// path cares about. The signature may arrive in the body or in the
// webhook-signature header.
type WebhookPayload struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
	Payload   struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Metadata struct {
			CheckoutID string `json:"checkoutId"`
		} `json:"metadata"`
	} `json:"payload"`
}

// HandleCallback settles a payment from a verified gateway event. An
// invalid signature mutates nothing. Successful charges approve the payment
// and mark the contribution PAID; a cancelled checkout rejects the payment
// and cancels the contribution; a failed charge rejects the payment and
// returns the contribution to NOT_PAID so it can be retried.
func (s *YocoService) HandleCallback(ctx context.Context, body []byte, signature string) error {
	var event WebhookPayload
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: malformed webhook payload", models.ErrValidation)
	}

	// The signature travels in the event body; older events carry it in the
	// webhook-signature header instead.
	sig := event.Signature
	if sig == "" {
		sig = signature
	}
	if !s.VerifySignature(event.Payload.ID, event.Payload.Status, sig) {
		log.Printf("Rejected webhook for transaction %s: signature mismatch", event.Payload.ID)
		return fmt.Errorf("%w: webhook signature mismatch", models.ErrSignature)
	}

	// metadata.checkoutId echoes the merchant reference we sent at checkout;
	// fall back to the gateway's own identifiers.
	gatewayID := event.Payload.Metadata.CheckoutID
	if gatewayID == "" {
		gatewayID = event.Payload.ID
	}
	p, err := s.store.PaymentByGatewayID(ctx, gatewayID)
	if err != nil {
		return err
	}
	if p.Approval == models.ApprovalApproved {
		log.Printf("Webhook for payment %s ignored, already approved", p.ID.Hex())
		return nil
	}

	status := strings.ToLower(event.Payload.Status)
	switch {
	case status == "succeeded" || event.Type == "payment.succeeded":
		return s.settle(ctx, p, event.Payload.ID, models.ApprovalApproved, models.StatusPaid, "")
	case status == "cancelled" || event.Type == "checkout.cancelled":
		return s.settle(ctx, p, event.Payload.ID, models.ApprovalRejected, models.StatusCancelled, "checkout cancelled")
	case status == "failed" || event.Type == "payment.failed":
		return s.settle(ctx, p, event.Payload.ID, models.ApprovalRejected, models.StatusNotPaid, "charge failed")
	default:
		log.Printf("Unhandled webhook status %q for payment %s", event.Payload.Status, p.ID.Hex())
		return nil
	}
}

func (s *YocoService) settle(ctx context.Context, p *models.Payment, transactionID string, approval models.ApprovalStatus, contribution models.ContributionStatus, reason string) error {
	applied := false
	err := s.store.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.store.MarkPaymentApproval(ctx, p.ID,
			[]models.ApprovalStatus{models.ApprovalPending, models.ApprovalNotPaid},
			approval, p.MemberID, reason, transactionID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true
		if !p.MemberContributionID.IsZero() {
			return s.store.SetContributionStatus(ctx, p.MemberContributionID, contribution)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	log.Printf("Payment %s settled from gateway: %s, contribution -> %s", p.ID.Hex(), approval, contribution)
	if approval == models.ApprovalApproved && !p.MemberContributionID.IsZero() {
		s.dispatch.Enqueue(notify.JobPaymentConfirmed, p.MemberContributionID.Hex(), "")
	}
	return nil
}

// SecretBytes derives the HMAC key from a Yoco webhook secret. Secrets are
// shaped like whsec_<base64>; the second underscore-delimited segment is the
// base64-encoded key.
func SecretBytes(secret string) ([]byte, error) {
	parts := strings.Split(secret, "_")
	if len(parts) < 2 || parts[1] == "" {
		return nil, fmt.Errorf("webhook secret has no key part")
	}
	key, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode webhook secret: %w", err)
	}
	return key, nil
}

// ExpectedSignature computes the hex HMAC-SHA256 over the transaction id
// concatenated with the status.
func ExpectedSignature(secret, transactionID, status string) (string, error) {
	key, err := SecretBytes(secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(transactionID + status))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature reports whether a webhook signature matches what the
// configured secret would produce for this transaction and status.
func (s *YocoService) VerifySignature(transactionID, status, signature string) bool {
	expected, err := ExpectedSignature(s.secretKey, transactionID, status)
	if err != nil {
		log.Printf("Cannot verify webhook signature: %v", err)
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

// IdempotencyKey builds a stable key for a checkout attempt so retried
// requests do not open duplicate checkouts for the same amount.
func IdempotencyKey(contributionID string, amountCents int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", contributionID, amountCents)))
	return hex.EncodeToString(sum[:])
}
