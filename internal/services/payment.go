package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
	"github.com/tshiamom/clanfund-gobackend/internal/notify"
)

// PaymentStore is the storage seam the payment state machine runs against.
// *Store implements it; tests substitute a mock.
type PaymentStore interface {
	ContributionByID(ctx context.Context, id primitive.ObjectID) (*models.MemberContribution, error)
	TypeByID(ctx context.Context, id primitive.ObjectID) (*models.ContributionType, error)
	SetContributionStatus(ctx context.Context, id primitive.ObjectID, status models.ContributionStatus) error
	InsertPayment(ctx context.Context, p *models.Payment) error
	PaymentByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error)
	ActivePaymentFor(ctx context.Context, contributionID primitive.ObjectID) (*models.Payment, error)
	PaymentByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error)
	MarkPaymentApproval(ctx context.Context, id primitive.ObjectID, expect []models.ApprovalStatus, to models.ApprovalStatus, verifiedBy primitive.ObjectID, reason string, transactionID string) (bool, error)
	SetPaymentCheckout(ctx context.Context, id primitive.ObjectID, checkoutID string) error
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PaymentService owns every status transition on payments and their
// contributions. Handlers and the gateway adapter never flip statuses
// themselves; paired payment and contribution writes happen in one
// transaction here.
type PaymentService struct {
	store    PaymentStore
	dispatch notify.Dispatcher
}

func NewPaymentService(store PaymentStore, dispatch notify.Dispatcher) *PaymentService {
	return &PaymentService{store: store, dispatch: dispatch}
}

// CheckoutInput is a member-initiated payment attempt against a contribution.
type CheckoutInput struct {
	ContributionID primitive.ObjectID
	MemberID       primitive.ObjectID
	ActorID        primitive.ObjectID
	Method         models.PaymentMethod
	AmountCents    int64
}

// Checkout creates the payment record for a contribution and moves the
// contribution to AWAITING_APPROVAL. The claimed amount must match the
// outstanding amount exactly. Cash and bank payments queue a banking
// details email; mobile payments continue to the gateway afterwards.
func (s *PaymentService) Checkout(ctx context.Context, in CheckoutInput) (*models.Payment, error) {
	if !in.Method.Valid() {
		return nil, fmt.Errorf("%w: invalid payment method %q", models.ErrValidation, in.Method)
	}

	mc, err := s.store.ContributionByID(ctx, in.ContributionID)
	if err != nil {
		return nil, err
	}
	if !mc.Status.Payable() {
		return nil, fmt.Errorf("%w: contribution %s is %s and cannot accept payments", models.ErrConflict, mc.Reference, mc.Status)
	}

	ct, err := s.store.TypeByID(ctx, mc.ContributionTypeID)
	if err != nil {
		return nil, err
	}
	if !ct.IsActive {
		return nil, fmt.Errorf("%w: contribution %s is no longer active", models.ErrValidation, ct.Name)
	}

	if in.AmountCents != mc.AmountDueCents {
		return nil, fmt.Errorf("%w: payment amount must equal the outstanding balance of %s", models.ErrValidation, models.FormatRands(mc.AmountDueCents))
	}

	// One live payment attempt per contribution.
	existing, err := s.store.ActivePaymentFor(ctx, mc.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: a payment record already exists for contribution %s", models.ErrConflict, mc.Reference)
	}

	now := time.Now()
	p := &models.Payment{
		ID:                   primitive.NewObjectID(),
		MemberID:             in.MemberID,
		MemberContributionID: mc.ID,
		Method:               in.Method,
		AmountCents:          in.AmountCents,
		Reference:            mc.Reference,
		Approval:             models.ApprovalPending,
		RecordedBy:           in.ActorID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.InsertPayment(ctx, p); err != nil {
			return err
		}
		return s.store.SetContributionStatus(ctx, mc.ID, models.StatusAwaitingApproval)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Payment %s created for contribution %s: %s via %s",
		p.ID.Hex(), mc.Reference, models.FormatRands(p.AmountCents), in.Method)

	if in.Method == models.MethodCash || in.Method == models.MethodBank {
		s.dispatch.Enqueue(notify.JobPaymentDetails, mc.ID.Hex())
	}
	return p, nil
}

// LogPaymentInput is a treasurer recording a payment that arrived out of
// band. Proof of payment and a transaction reference are mandatory.
type LogPaymentInput struct {
	ContributionID primitive.ObjectID
	TreasurerID    primitive.ObjectID
	TreasurerName  string
	Method         models.PaymentMethod
	AmountCents    int64
	Reference      string
	Receipt        string
	ProofURL       string
}

// LogPayment records a treasurer-logged payment pending approval, moves the
// contribution to PENDING and queues a confirmation email with the invoice.
func (s *PaymentService) LogPayment(ctx context.Context, in LogPaymentInput) (*models.Payment, error) {
	if !in.Method.Valid() {
		return nil, fmt.Errorf("%w: invalid payment method %q", models.ErrValidation, in.Method)
	}
	if in.ProofURL == "" {
		return nil, fmt.Errorf("%w: proof of payment is required when logging a payment", models.ErrValidation)
	}
	if in.Reference == "" {
		return nil, fmt.Errorf("%w: a transaction reference is required", models.ErrValidation)
	}

	mc, err := s.store.ContributionByID(ctx, in.ContributionID)
	if err != nil {
		return nil, err
	}
	if !mc.Status.Payable() {
		return nil, fmt.Errorf("%w: contribution %s is %s and cannot accept payments", models.ErrConflict, mc.Reference, mc.Status)
	}
	if in.AmountCents != mc.AmountDueCents {
		return nil, fmt.Errorf("%w: payment amount must equal the outstanding balance of %s", models.ErrValidation, models.FormatRands(mc.AmountDueCents))
	}

	now := time.Now()
	p := &models.Payment{
		ID:                   primitive.NewObjectID(),
		MemberID:             mc.MemberID,
		MemberContributionID: mc.ID,
		Method:               in.Method,
		AmountCents:          in.AmountCents,
		Reference:            in.Reference,
		Receipt:              in.Receipt,
		ProofURL:             in.ProofURL,
		Approval:             models.ApprovalPending,
		RecordedBy:           in.TreasurerID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.InsertPayment(ctx, p); err != nil {
			return err
		}
		return s.store.SetContributionStatus(ctx, mc.ID, models.StatusPending)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Payment %s logged by %s for contribution %s", p.ID.Hex(), in.TreasurerID.Hex(), mc.Reference)
	s.dispatch.Enqueue(notify.JobPaymentConfirmed, mc.ID.Hex(), in.TreasurerName)
	return p, nil
}

// Approve marks a payment APPROVED and settles its contribution: PAID when
// the approved amount covers the amount due, PARTIALLY_PAID otherwise.
// Approving an already approved payment is a no-op, as is losing the race
// to a concurrent approval.
func (s *PaymentService) Approve(ctx context.Context, paymentID, actorID primitive.ObjectID) (*models.Payment, error) {
	p, err := s.store.PaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Approval == models.ApprovalApproved {
		return p, nil
	}
	if p.Approval == models.ApprovalRejected {
		return nil, fmt.Errorf("%w: payment %s was rejected and cannot be approved", models.ErrConflict, p.ID.Hex())
	}

	var newStatus models.ContributionStatus
	var mc *models.MemberContribution
	if !p.MemberContributionID.IsZero() {
		mc, err = s.store.ContributionByID(ctx, p.MemberContributionID)
		if err != nil {
			return nil, err
		}
		newStatus = models.SettlementStatus(p.AmountCents, mc.AmountDueCents)
	}

	applied := false
	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.store.MarkPaymentApproval(ctx, p.ID,
			[]models.ApprovalStatus{models.ApprovalPending, models.ApprovalNotPaid},
			models.ApprovalApproved, actorID, "", "")
		if err != nil {
			return err
		}
		if !ok {
			// A concurrent approval already applied; change nothing.
			return nil
		}
		applied = true
		if mc != nil {
			return s.store.SetContributionStatus(ctx, mc.ID, newStatus)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		log.Printf("Payment %s approved by %s, contribution -> %s", p.ID.Hex(), actorID.Hex(), newStatus)
		if mc != nil {
			s.dispatch.Enqueue(notify.JobPaymentConfirmed, mc.ID.Hex(), "")
		}
	}
	return s.store.PaymentByID(ctx, paymentID)
}

// Reject marks a payment REJECTED with a reason and returns the
// contribution to NOT_PAID so the member can pay again.
func (s *PaymentService) Reject(ctx context.Context, paymentID, actorID primitive.ObjectID, reason string) (*models.Payment, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: a rejection reason is required", models.ErrValidation)
	}

	p, err := s.store.PaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Approval == models.ApprovalRejected {
		return p, nil
	}
	if p.Approval == models.ApprovalApproved {
		return nil, fmt.Errorf("%w: payment %s is already approved", models.ErrConflict, p.ID.Hex())
	}

	err = s.store.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.store.MarkPaymentApproval(ctx, p.ID,
			[]models.ApprovalStatus{models.ApprovalPending, models.ApprovalNotPaid},
			models.ApprovalRejected, actorID, reason, "")
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if !p.MemberContributionID.IsZero() {
			return s.store.SetContributionStatus(ctx, p.MemberContributionID, models.StatusNotPaid)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Payment %s rejected by %s: %s", p.ID.Hex(), actorID.Hex(), reason)
	return s.store.PaymentByID(ctx, paymentID)
}
