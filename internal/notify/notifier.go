package notify

import (
	"context"
	"fmt"
	"html"
	"log"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
)

// Bundle is everything a notification needs about one member contribution,
// loaded fresh by ID when the job runs.
type Bundle struct {
	Contribution models.MemberContribution
	Member       models.Member
	Type         models.ContributionType
	Payment      *models.Payment
}

// ContributionReader loads a notification bundle by contribution ID. The
// services package implements this against MongoDB.
type ContributionReader interface {
	ContributionBundle(ctx context.Context, contributionID string) (*Bundle, error)
}

// Notifier executes notification jobs: email plus SMS per job kind. All
// failures are logged by the queue; none reach the financial path.
type Notifier struct {
	reader  ContributionReader
	email   *EmailClient
	sms     SMSSender
	siteURL string
}

func NewNotifier(reader ContributionReader, email *EmailClient, sms SMSSender, siteURL string) *Notifier {
	return &Notifier{reader: reader, email: email, sms: sms, siteURL: siteURL}
}

// RegisterAll binds the notifier's job kinds onto a queue.
func (n *Notifier) RegisterAll(q *Queue) {
	q.Register(JobObligationCreated, n.ObligationCreated)
	q.Register(JobPaymentDetails, n.PaymentDetails)
	q.Register(JobPaymentConfirmed, n.PaymentConfirmed)
	q.Register(JobPaymentReminder, n.PaymentReminder)
}

// ObligationCreated emails and texts a member that a new contribution was
// raised against them. args: [contributionID]
func (n *Notifier) ObligationCreated(ctx context.Context, args ...string) error {
	b, err := n.bundle(ctx, args)
	if err != nil {
		return err
	}
	if b.Member.Email != "" {
		subject := fmt.Sprintf("New Contribution: %s", b.Type.Name)
		if err := n.email.Send(ctx, b.Member.Email, b.Member.FullName, subject, obligationCreatedHTML(b, n.siteURL)); err != nil {
			log.Printf("notify: contribution email to %s failed: %v", b.Member.Email, err)
		}
	}
	if b.Member.Phone != "" && n.sms != nil {
		if err := n.sms.SendSMS(ctx, b.Member.Phone, obligationCreatedSMS(b, n.siteURL)); err != nil {
			log.Printf("notify: contribution SMS to %s failed: %v", b.Member.Phone, err)
		}
	}
	return nil
}

// PaymentDetails emails banking details after a cash/bank checkout.
// args: [contributionID]
func (n *Notifier) PaymentDetails(ctx context.Context, args ...string) error {
	b, err := n.bundle(ctx, args)
	if err != nil {
		return err
	}
	if b.Member.Email == "" {
		log.Printf("notify: contribution %s member has no email, skipping payment details", b.Contribution.ID.Hex())
		return nil
	}
	subject := fmt.Sprintf("Payment Details: %s", b.Type.Name)
	return n.email.Send(ctx, b.Member.Email, b.Member.FullName, subject, paymentDetailsHTML(b))
}

// PaymentConfirmed emails a confirmation with a PDF invoice attached.
// args: [contributionID, recordedByName]
func (n *Notifier) PaymentConfirmed(ctx context.Context, args ...string) error {
	b, err := n.bundle(ctx, args)
	if err != nil {
		return err
	}
	recordedBy := ""
	if len(args) > 1 {
		recordedBy = args[1]
	}
	if b.Member.Email == "" {
		log.Printf("notify: contribution %s member has no email, skipping confirmation", b.Contribution.ID.Hex())
		return nil
	}

	var attachments []Attachment
	pdf, err := RenderInvoice(b)
	if err != nil {
		log.Printf("notify: invoice render failed for %s: %v", b.Contribution.ID.Hex(), err)
	} else {
		attachments = append(attachments, Attachment{
			Name:     fmt.Sprintf("invoice_%s.pdf", b.Contribution.ID.Hex()),
			MimeType: "application/pdf",
			Content:  pdf,
		})
	}

	subject := fmt.Sprintf("Payment Confirmed: %s", b.Type.Name)
	return n.email.Send(ctx, b.Member.Email, b.Member.FullName, subject, paymentConfirmedHTML(b, recordedBy), attachments...)
}

// PaymentReminder nags about an unpaid contribution.
// args: [contributionID, reminderKind] where kind is upcoming|due_today|overdue
func (n *Notifier) PaymentReminder(ctx context.Context, args ...string) error {
	b, err := n.bundle(ctx, args)
	if err != nil {
		return err
	}
	kind := "due_today"
	if len(args) > 1 {
		kind = args[1]
	}
	if b.Member.Phone != "" && n.sms != nil {
		if err := n.sms.SendSMS(ctx, b.Member.Phone, reminderSMS(b, n.siteURL)); err != nil {
			log.Printf("notify: reminder SMS to %s failed: %v", b.Member.Phone, err)
		}
	}
	if b.Member.Email != "" {
		subject := fmt.Sprintf("%s: %s", reminderSubject(kind), b.Type.Name)
		if err := n.email.Send(ctx, b.Member.Email, b.Member.FullName, subject, reminderHTML(b, kind)); err != nil {
			log.Printf("notify: reminder email to %s failed: %v", b.Member.Email, err)
		}
	}
	return nil
}

func (n *Notifier) bundle(ctx context.Context, args []string) (*Bundle, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing contribution id argument")
	}
	return n.reader.ContributionBundle(ctx, args[0])
}

func reminderSubject(kind string) string {
	switch kind {
	case "upcoming":
		return "Upcoming Payment Due"
	case "overdue":
		return "Payment Overdue"
	default:
		return "Payment Due Today"
	}
}

func paymentURL(siteURL string, b *Bundle) string {
	return fmt.Sprintf("%s/contribution/%s/pay", siteURL, b.Contribution.ID.Hex())
}

func obligationCreatedSMS(b *Bundle, siteURL string) string {
	return fmt.Sprintf("New contribution - %s | Amount: %s | Due: %s | Pay: %s",
		b.Type.Name,
		models.FormatRands(b.Contribution.AmountDueCents),
		b.Contribution.DueDate.Format("02 Jan 2006"),
		paymentURL(siteURL, b))
}

func reminderSMS(b *Bundle, siteURL string) string {
	return fmt.Sprintf("Reminder: %s | Amount: %s | Due: %s | Pay: %s",
		b.Type.Name,
		models.FormatRands(b.Contribution.AmountDueCents),
		b.Contribution.DueDate.Format("02 Jan 2006"),
		paymentURL(siteURL, b))
}

func obligationCreatedHTML(b *Bundle, siteURL string) string {
	return fmt.Sprintf(
		`<p>Dear %s,</p>
<p>A new contribution has been created: <strong>%s</strong>.</p>
<p>Amount due: <strong>%s</strong><br>Due date: %s<br>Reference: %s</p>
<p><a href="%s">Pay now</a></p>`,
		html.EscapeString(b.Member.FullName),
		html.EscapeString(b.Type.Name),
		models.FormatRands(b.Contribution.AmountDueCents),
		b.Contribution.DueDate.Format("02 January 2006"),
		b.Contribution.Reference,
		paymentURL(siteURL, b))
}

func paymentDetailsHTML(b *Bundle) string {
	return fmt.Sprintf(
		`<p>Dear %s,</p>
<p>Your payment for <strong>%s</strong> has been recorded and is awaiting approval.</p>
<p>Amount: <strong>%s</strong><br>Reference: %s</p>
<p>Please use the reference above when making your deposit and upload proof of payment once done.</p>`,
		html.EscapeString(b.Member.FullName),
		html.EscapeString(b.Type.Name),
		models.FormatRands(b.Contribution.AmountDueCents),
		b.Contribution.Reference)
}

func paymentConfirmedHTML(b *Bundle, recordedBy string) string {
	by := ""
	if recordedBy != "" {
		by = fmt.Sprintf("<br>Recorded by: %s", html.EscapeString(recordedBy))
	}
	return fmt.Sprintf(
		`<p>Dear %s,</p>
<p>Your payment for <strong>%s</strong> has been confirmed.</p>
<p>Amount: <strong>%s</strong><br>Reference: %s<br>Status: %s%s</p>
<p>Your invoice is attached.</p>`,
		html.EscapeString(b.Member.FullName),
		html.EscapeString(b.Type.Name),
		models.FormatRands(b.Contribution.AmountDueCents),
		b.Contribution.Reference,
		b.Contribution.Status,
		by)
}

func reminderHTML(b *Bundle, kind string) string {
	return fmt.Sprintf(
		`<p>Dear %s,</p>
<p>%s: <strong>%s</strong>.</p>
<p>Amount due: <strong>%s</strong><br>Due date: %s<br>Reference: %s</p>`,
		html.EscapeString(b.Member.FullName),
		reminderSubject(kind),
		html.EscapeString(b.Type.Name),
		models.FormatRands(b.Contribution.AmountDueCents),
		b.Contribution.DueDate.Format("02 January 2006"),
		b.Contribution.Reference)
}
