package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category buckets contribution types for reporting.
type Category string

const (
	CategoryEvent      Category = "event"
	CategoryBurial     Category = "burial"
	CategorySavings    Category = "savings"
	CategoryInvestment Category = "investment"
	CategoryBusiness   Category = "business"
	CategoryHoliday    Category = "holiday"
	CategoryGrocery    Category = "grocery"
	CategoryEmergency  Category = "emergency"
	CategoryEducation  Category = "education"
	CategoryOther      Category = "other"
)

// ContributionType is the template a contribution fans out from: who pays,
// how much and how often. Amount and scope are frozen once member
// contributions exist for it.
type ContributionType struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Category    Category           `bson:"category" json:"category"`
	AmountCents int64              `bson:"amount_cents" json:"amount_cents"`
	Recurrence  Recurrence         `bson:"recurrence" json:"recurrence"`
	Scope       Scope              `bson:"scope" json:"scope"`
	FamilyID    primitive.ObjectID `bson:"family_id,omitempty" json:"family_id,omitempty"`
	DueDate     *time.Time         `bson:"due_date,omitempty" json:"due_date,omitempty"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
	CreatedBy   primitive.ObjectID `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// Validate enforces the scope/family pairing: a family must be linked when
// scope is family-specific and must be absent otherwise.
func (ct *ContributionType) Validate() error {
	if ct.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if ct.AmountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if ct.Scope == ScopeFamily && ct.FamilyID.IsZero() {
		return fmt.Errorf("%w: a family must be selected when scope is 'family'", ErrValidation)
	}
	if ct.Scope != ScopeFamily && !ct.FamilyID.IsZero() {
		return fmt.Errorf("%w: family may only be set for 'family' scope", ErrValidation)
	}
	return nil
}

// MemberContribution is one member's duty to pay toward a contribution type
// by a due date. Created by the fan-out engine; amount_due is copied from the
// type at creation and never tracks later edits.
type MemberContribution struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MemberID           primitive.ObjectID `bson:"member_id" json:"member_id"`
	ContributionTypeID primitive.ObjectID `bson:"contribution_type_id" json:"contribution_type_id"`
	AmountDueCents     int64              `bson:"amount_due_cents" json:"amount_due_cents"`
	Reference          string             `bson:"reference" json:"reference"`
	DueDate            time.Time          `bson:"due_date" json:"due_date"`
	Status             ContributionStatus `bson:"status" json:"status"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

func (mc *MemberContribution) Overdue(now time.Time) bool {
	return mc.Status != StatusPaid && !mc.DueDate.IsZero() && mc.DueDate.Before(now)
}

// Payment is one attempt at settling a member contribution. Records are
// never deleted; a rejected record stays for audit and a new one replaces it.
type Payment struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MemberID             primitive.ObjectID `bson:"member_id" json:"member_id"`
	MemberContributionID primitive.ObjectID `bson:"member_contribution_id,omitempty" json:"member_contribution_id,omitempty"`
	Method               PaymentMethod      `bson:"method" json:"method"`
	AmountCents          int64              `bson:"amount_cents" json:"amount_cents"`
	Reference            string             `bson:"reference,omitempty" json:"reference,omitempty"`
	Receipt              string             `bson:"receipt,omitempty" json:"receipt,omitempty"`
	ProofURL             string             `bson:"proof_url,omitempty" json:"proof_url,omitempty"`
	Approval             ApprovalStatus     `bson:"is_approved" json:"is_approved"`
	RecordedBy           primitive.ObjectID `bson:"recorded_by,omitempty" json:"recorded_by,omitempty"`
	VerifiedBy           primitive.ObjectID `bson:"verified_by,omitempty" json:"verified_by,omitempty"`
	VerifiedAt           *time.Time         `bson:"verified_at,omitempty" json:"verified_at,omitempty"`
	RejectionReason      string             `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	CheckoutID           string             `bson:"checkout_id,omitempty" json:"checkout_id,omitempty"`
	TransactionID        string             `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	CreatedAt            time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updated_at"`
}

// NotificationLog records an SMS provider delivery report.
type NotificationLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MessageID string             `bson:"message_id" json:"message_id"`
	Status    string             `bson:"status" json:"status"`
	Recipient string             `bson:"recipient" json:"recipient"`
	Provider  string             `bson:"provider" json:"provider"`
	Raw       string             `bson:"raw_response,omitempty" json:"raw_response,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// FormatRands renders a cent amount as "R123.45" for notifications.
func FormatRands(cents int64) string {
	return fmt.Sprintf("R%d.%02d", cents/100, cents%100)
}
