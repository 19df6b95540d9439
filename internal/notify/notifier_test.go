package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
)

func testBundle() *Bundle {
	due := time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC)
	return &Bundle{
		Contribution: models.MemberContribution{
			ID:             primitive.NewObjectID(),
			AmountDueCents: 35000,
			Reference:      "#CLN-9F00AB",
			DueDate:        due,
			Status:         models.StatusNotPaid,
		},
		Member: models.Member{
			FullName: "Lerato Khumalo",
			Email:    "lerato@example.com",
			Phone:    "+27821234567",
		},
		Type: models.ContributionType{Name: "Heritage Day Event"},
	}
}

func TestMessageBuilders(t *testing.T) {
	b := testBundle()
	site := "https://clan.example"

	t.Run("obligation SMS carries amount, due date and payment link", func(t *testing.T) {
		msg := obligationCreatedSMS(b, site)
		for _, want := range []string{"Heritage Day Event", "R350.00", "30 Sep 2026", paymentURL(site, b)} {
			if !strings.Contains(msg, want) {
				t.Errorf("SMS missing %q: %s", want, msg)
			}
		}
	})

	t.Run("obligation email carries the reference", func(t *testing.T) {
		body := obligationCreatedHTML(b, site)
		if !strings.Contains(body, "#CLN-9F00AB") {
			t.Errorf("email missing reference: %s", body)
		}
		if !strings.Contains(body, "R350.00") {
			t.Errorf("email missing amount: %s", body)
		}
	})

	t.Run("payment details email mentions approval", func(t *testing.T) {
		body := paymentDetailsHTML(b)
		if !strings.Contains(body, "awaiting approval") {
			t.Errorf("details email missing approval note: %s", body)
		}
	})

	t.Run("confirmation email names the recorder when present", func(t *testing.T) {
		body := paymentConfirmedHTML(b, "Naledi Dlamini")
		if !strings.Contains(body, "Naledi Dlamini") {
			t.Errorf("confirmation missing recorder: %s", body)
		}
		if strings.Contains(paymentConfirmedHTML(b, ""), "Recorded by") {
			t.Error("confirmation mentions a recorder when none was given")
		}
	})

	t.Run("reminder subject tracks the sweep kind", func(t *testing.T) {
		cases := map[string]string{
			"upcoming":  "Upcoming Payment Due",
			"due_today": "Payment Due Today",
			"overdue":   "Payment Overdue",
		}
		for kind, want := range cases {
			if got := reminderSubject(kind); got != want {
				t.Errorf("reminderSubject(%q) = %q, want %q", kind, got, want)
			}
		}
	})

	t.Run("member names are HTML escaped", func(t *testing.T) {
		hostile := testBundle()
		hostile.Member.FullName = `<script>alert("x")</script>`
		if strings.Contains(obligationCreatedHTML(hostile, site), "<script>") {
			t.Error("member name not escaped")
		}
	})
}

func TestQueue(t *testing.T) {
	t.Run("Given a registered handler When a job is queued Then it runs with its args", func(t *testing.T) {
		// Given
		q := NewQueue(8)
		var mu sync.Mutex
		var gotArgs []string
		done := make(chan struct{})
		q.Register(JobPaymentReminder, func(ctx context.Context, args ...string) error {
			mu.Lock()
			gotArgs = append([]string(nil), args...)
			mu.Unlock()
			close(done)
			return nil
		})
		q.Start(1)
		defer q.Stop()

		// When
		q.Enqueue(JobPaymentReminder, "abc123", "overdue")

		// Then
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler never ran")
		}
		mu.Lock()
		defer mu.Unlock()
		if len(gotArgs) != 2 || gotArgs[0] != "abc123" || gotArgs[1] != "overdue" {
			t.Errorf("unexpected args: %v", gotArgs)
		}
	})

	t.Run("Given a full buffer When a job is queued Then Enqueue does not block", func(t *testing.T) {
		q := NewQueue(1)
		// No workers running, so the second job must be dropped.
		q.Enqueue(JobPaymentReminder, "first")

		finished := make(chan struct{})
		go func() {
			q.Enqueue(JobPaymentReminder, "second")
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("Enqueue blocked on a full buffer")
		}
	})
}

func TestRenderInvoice(t *testing.T) {
	b := testBundle()
	pdf, err := RenderInvoice(b)
	if err != nil {
		t.Fatalf("RenderInvoice failed: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("empty invoice")
	}
	if !strings.HasPrefix(string(pdf[:4]), "%PDF") {
		t.Errorf("invoice is not a PDF, starts with %q", pdf[:4])
	}
}
