package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
	"github.com/tshiamom/clanfund-gobackend/internal/notify"
)

func seedContribution(store *mockStore, amountDueCents int64, status models.ContributionStatus) (*models.MemberContribution, *models.ContributionType) {
	ct := &models.ContributionType{
		ID:          primitive.NewObjectID(),
		Name:        "Burial Fund",
		AmountCents: amountDueCents,
		IsActive:    true,
	}
	store.Types[ct.ID] = ct

	mc := &models.MemberContribution{
		ID:                 primitive.NewObjectID(),
		MemberID:           primitive.NewObjectID(),
		ContributionTypeID: ct.ID,
		AmountDueCents:     amountDueCents,
		Reference:          "#CLN-AB12CD",
		DueDate:            time.Now().AddDate(0, 0, 7),
		Status:             status,
	}
	store.Contributions[mc.ID] = mc
	return mc, ct
}

func TestPaymentService_Checkout(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an exact cash payment When checked out Then payment is pending and contribution awaits approval", func(t *testing.T) {
		// Given
		store := newMockStore()
		dispatch := &mockDispatcher{}
		mc, _ := seedContribution(store, 50000, models.StatusNotPaid)
		svc := NewPaymentService(store, dispatch)

		// When
		p, err := svc.Checkout(ctx, CheckoutInput{
			ContributionID: mc.ID,
			MemberID:       mc.MemberID,
			ActorID:        mc.MemberID,
			Method:         models.MethodCash,
			AmountCents:    50000,
		})

		// Then
		if err != nil {
			t.Fatalf("Checkout failed: %v", err)
		}
		if p.Approval != models.ApprovalPending {
			t.Errorf("expected PENDING approval, got %s", p.Approval)
		}
		if store.Contributions[mc.ID].Status != models.StatusAwaitingApproval {
			t.Errorf("expected AWAITING_APPROVAL, got %s", store.Contributions[mc.ID].Status)
		}
		if dispatch.count(notify.JobPaymentDetails) != 1 {
			t.Errorf("expected one payment-details job")
		}
	})

	t.Run("Given a wrong amount When checked out Then it is rejected and nothing changes", func(t *testing.T) {
		// Given
		store := newMockStore()
		mc, _ := seedContribution(store, 50000, models.StatusNotPaid)
		svc := NewPaymentService(store, &mockDispatcher{})

		// When
		_, err := svc.Checkout(ctx, CheckoutInput{
			ContributionID: mc.ID,
			MemberID:       mc.MemberID,
			ActorID:        mc.MemberID,
			Method:         models.MethodCash,
			AmountCents:    49999,
		})

		// Then
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if store.Contributions[mc.ID].Status != models.StatusNotPaid {
			t.Errorf("contribution status changed on a rejected amount")
		}
		if len(store.Payments) != 0 {
			t.Errorf("payment record created for a rejected amount")
		}
	})

	t.Run("Given a paid contribution When checked out Then it conflicts", func(t *testing.T) {
		store := newMockStore()
		mc, _ := seedContribution(store, 50000, models.StatusPaid)
		svc := NewPaymentService(store, &mockDispatcher{})

		_, err := svc.Checkout(ctx, CheckoutInput{
			ContributionID: mc.ID,
			MemberID:       mc.MemberID,
			ActorID:        mc.MemberID,
			Method:         models.MethodCash,
			AmountCents:    50000,
		})
		if !errors.Is(err, models.ErrConflict) {
			t.Fatalf("expected conflict error, got %v", err)
		}
	})

	t.Run("Given an inactive contribution type When checked out Then it is rejected", func(t *testing.T) {
		store := newMockStore()
		mc, ct := seedContribution(store, 50000, models.StatusNotPaid)
		store.Types[ct.ID].IsActive = false
		svc := NewPaymentService(store, &mockDispatcher{})

		_, err := svc.Checkout(ctx, CheckoutInput{
			ContributionID: mc.ID,
			MemberID:       mc.MemberID,
			ActorID:        mc.MemberID,
			Method:         models.MethodBank,
			AmountCents:    50000,
		})
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("Given an existing active payment When checked out again Then it conflicts", func(t *testing.T) {
		// Given
		store := newMockStore()
		dispatch := &mockDispatcher{}
		mc, _ := seedContribution(store, 50000, models.StatusNotPaid)
		svc := NewPaymentService(store, dispatch)
		if _, err := svc.Checkout(ctx, CheckoutInput{
			ContributionID: mc.ID,
			MemberID:       mc.MemberID,
			ActorID:        mc.MemberID,
			Method:         models.MethodBank,
			AmountCents:    50000,
		}); err != nil {
			t.Fatalf("first checkout failed: %v", err)
		}

		// When
		_, err := svc.Checkout(ctx, CheckoutInput{
			ContributionID: mc.ID,
			MemberID:       mc.MemberID,
			ActorID:        mc.MemberID,
			Method:         models.MethodCash,
			AmountCents:    50000,
		})

		// Then
		if !errors.Is(err, models.ErrConflict) {
			t.Fatalf("expected conflict error, got %v", err)
		}
		if len(store.Payments) != 1 {
			t.Errorf("expected one payment record, got %d", len(store.Payments))
		}
	})
}

func TestPaymentService_LogPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Given proof and reference When logged Then contribution is pending and confirmation queued", func(t *testing.T) {
		// Given
		store := newMockStore()
		dispatch := &mockDispatcher{}
		mc, _ := seedContribution(store, 30000, models.StatusNotPaid)
		svc := NewPaymentService(store, dispatch)

		// When
		p, err := svc.LogPayment(ctx, LogPaymentInput{
			ContributionID: mc.ID,
			TreasurerID:    primitive.NewObjectID(),
			TreasurerName:  "Naledi Dlamini",
			Method:         models.MethodBank,
			AmountCents:    30000,
			Reference:      "FNB-20260830-01",
			ProofURL:       "https://res.cloudinary.com/clan/proof.pdf",
		})

		// Then
		if err != nil {
			t.Fatalf("LogPayment failed: %v", err)
		}
		if p.Approval != models.ApprovalPending {
			t.Errorf("expected PENDING approval, got %s", p.Approval)
		}
		if store.Contributions[mc.ID].Status != models.StatusPending {
			t.Errorf("expected PENDING contribution, got %s", store.Contributions[mc.ID].Status)
		}
		if dispatch.count(notify.JobPaymentConfirmed) != 1 {
			t.Errorf("expected one confirmation job")
		}
	})

	t.Run("Given no proof When logged Then it is rejected", func(t *testing.T) {
		store := newMockStore()
		mc, _ := seedContribution(store, 30000, models.StatusNotPaid)
		svc := NewPaymentService(store, &mockDispatcher{})

		_, err := svc.LogPayment(ctx, LogPaymentInput{
			ContributionID: mc.ID,
			TreasurerID:    primitive.NewObjectID(),
			Method:         models.MethodBank,
			AmountCents:    30000,
			Reference:      "FNB-20260830-01",
		})
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestPaymentService_Approve(t *testing.T) {
	ctx := context.Background()

	seedPayment := func(store *mockStore, mc *models.MemberContribution, amount int64, approval models.ApprovalStatus) *models.Payment {
		p := &models.Payment{
			ID:                   primitive.NewObjectID(),
			MemberID:             mc.MemberID,
			MemberContributionID: mc.ID,
			Method:               models.MethodBank,
			AmountCents:          amount,
			Approval:             approval,
		}
		store.Payments[p.ID] = p
		return p
	}

	t.Run("Given a full pending payment When approved Then contribution is PAID", func(t *testing.T) {
		// Given
		store := newMockStore()
		dispatch := &mockDispatcher{}
		mc, _ := seedContribution(store, 50000, models.StatusAwaitingApproval)
		p := seedPayment(store, mc, 50000, models.ApprovalPending)
		svc := NewPaymentService(store, dispatch)
		treasurer := primitive.NewObjectID()

		// When
		approved, err := svc.Approve(ctx, p.ID, treasurer)

		// Then
		if err != nil {
			t.Fatalf("Approve failed: %v", err)
		}
		if approved.Approval != models.ApprovalApproved {
			t.Errorf("expected APPROVED, got %s", approved.Approval)
		}
		if approved.VerifiedBy != treasurer {
			t.Errorf("expected verified_by to record the approving actor")
		}
		if store.Contributions[mc.ID].Status != models.StatusPaid {
			t.Errorf("expected PAID, got %s", store.Contributions[mc.ID].Status)
		}
		if dispatch.count(notify.JobPaymentConfirmed) != 1 {
			t.Errorf("expected one confirmation job")
		}
	})

	t.Run("Given a short payment When approved Then contribution is PARTIALLY_PAID", func(t *testing.T) {
		store := newMockStore()
		mc, _ := seedContribution(store, 50000, models.StatusAwaitingApproval)
		p := seedPayment(store, mc, 20000, models.ApprovalPending)
		svc := NewPaymentService(store, &mockDispatcher{})

		if _, err := svc.Approve(ctx, p.ID, primitive.NewObjectID()); err != nil {
			t.Fatalf("Approve failed: %v", err)
		}
		if store.Contributions[mc.ID].Status != models.StatusPartiallyPaid {
			t.Errorf("expected PARTIALLY_PAID, got %s", store.Contributions[mc.ID].Status)
		}
	})

	t.Run("Given an approved payment When approved again Then it is a no-op", func(t *testing.T) {
		// Given
		store := newMockStore()
		dispatch := &mockDispatcher{}
		mc, _ := seedContribution(store, 50000, models.StatusPaid)
		p := seedPayment(store, mc, 50000, models.ApprovalApproved)
		svc := NewPaymentService(store, dispatch)

		// When
		again, err := svc.Approve(ctx, p.ID, primitive.NewObjectID())

		// Then
		if err != nil {
			t.Fatalf("repeat Approve failed: %v", err)
		}
		if again.Approval != models.ApprovalApproved {
			t.Errorf("expected APPROVED, got %s", again.Approval)
		}
		if len(store.StatusChanges) != 0 {
			t.Errorf("repeat approval mutated the contribution")
		}
		if len(dispatch.Jobs) != 0 {
			t.Errorf("repeat approval queued %d jobs", len(dispatch.Jobs))
		}
	})

	t.Run("Given a rejected payment When approved Then it conflicts", func(t *testing.T) {
		store := newMockStore()
		mc, _ := seedContribution(store, 50000, models.StatusNotPaid)
		p := seedPayment(store, mc, 50000, models.ApprovalRejected)
		svc := NewPaymentService(store, &mockDispatcher{})

		if _, err := svc.Approve(ctx, p.ID, primitive.NewObjectID()); !errors.Is(err, models.ErrConflict) {
			t.Fatalf("expected conflict error, got %v", err)
		}
	})
}

func TestPaymentService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a pending payment When rejected Then contribution returns to NOT_PAID", func(t *testing.T) {
		// Given
		store := newMockStore()
		mc, _ := seedContribution(store, 50000, models.StatusAwaitingApproval)
		p := &models.Payment{
			ID:                   primitive.NewObjectID(),
			MemberID:             mc.MemberID,
			MemberContributionID: mc.ID,
			AmountCents:          50000,
			Approval:             models.ApprovalPending,
		}
		store.Payments[p.ID] = p
		svc := NewPaymentService(store, &mockDispatcher{})

		// When
		rejected, err := svc.Reject(ctx, p.ID, primitive.NewObjectID(), "proof unreadable")

		// Then
		if err != nil {
			t.Fatalf("Reject failed: %v", err)
		}
		if rejected.Approval != models.ApprovalRejected {
			t.Errorf("expected REJECTED, got %s", rejected.Approval)
		}
		if rejected.RejectionReason != "proof unreadable" {
			t.Errorf("expected reason recorded, got %q", rejected.RejectionReason)
		}
		if store.Contributions[mc.ID].Status != models.StatusNotPaid {
			t.Errorf("expected NOT_PAID, got %s", store.Contributions[mc.ID].Status)
		}
	})

	t.Run("Given no reason When rejected Then it is a validation error", func(t *testing.T) {
		store := newMockStore()
		svc := NewPaymentService(store, &mockDispatcher{})

		if _, err := svc.Reject(ctx, primitive.NewObjectID(), primitive.NewObjectID(), ""); !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}
