package services

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
	"github.com/tshiamom/clanfund-gobackend/internal/notify"
)

// ErrUnknownScope marks a contribution type whose scope value the directory
// does not recognise. Fan-out treats it as a soft no-op, not a failure.
var ErrUnknownScope = errors.New("unknown contribution scope")

// fanoutBatchSize bounds memory on bulk inserts for large member sets.
const fanoutBatchSize = 1000

// fanoutNotifyCap bounds how many notification jobs one fan-out queues.
const fanoutNotifyCap = 100

// MemberDirectory supplies candidate members for a scope. Candidates are
// active and approved; the engine applies the dependent exclusion itself.
type MemberDirectory interface {
	EligibleMembers(ctx context.Context, scope models.Scope, familyID primitive.ObjectID) ([]models.Member, error)
}

// ObligationWriter is the slice of storage the fan-out engine needs.
type ObligationWriter interface {
	ReferenceChecker
	ContributionsExistForType(ctx context.Context, typeID primitive.ObjectID) (bool, error)
	InsertContributions(ctx context.Context, contributions []models.MemberContribution, batchSize int) error
}

// FanoutEngine materialises one MemberContribution per eligible member when a
// contribution type is created.
type FanoutEngine struct {
	members  MemberDirectory
	store    ObligationWriter
	dispatch notify.Dispatcher
	now      func() time.Time
}

func NewFanoutEngine(members MemberDirectory, store ObligationWriter, dispatch notify.Dispatcher) *FanoutEngine {
	return &FanoutEngine{members: members, store: store, dispatch: dispatch, now: time.Now}
}

// FanOut creates contributions for every eligible member of the type's scope
// and queues creation notices. The insert is all-or-nothing; notification
// queueing is best effort and can never fail the fan-out. Returns how many
// contributions were created.
func (e *FanoutEngine) FanOut(ctx context.Context, ct *models.ContributionType) (int, error) {
	candidates, err := e.members.EligibleMembers(ctx, ct.Scope, ct.FamilyID)
	if err != nil {
		if errors.Is(err, ErrUnknownScope) {
			log.Printf("Unknown scope for contribution type %s: %s, skipping fan-out", ct.ID.Hex(), ct.Scope)
			return 0, nil
		}
		return 0, err
	}

	// Dependents (children, grandchildren) are never billed.
	members := candidates[:0:0]
	for _, m := range candidates {
		if !m.Classification.Dependent() {
			members = append(members, m)
		}
	}

	if len(members) == 0 {
		log.Printf("No eligible members for contribution type %s (scope: %s)", ct.ID.Hex(), ct.Scope)
		return 0, nil
	}

	// Guard against the fan-out firing twice for the same type.
	exists, err := e.store.ContributionsExistForType(ctx, ct.ID)
	if err != nil {
		return 0, err
	}
	if exists {
		log.Printf("Contributions already exist for contribution type %s, skipping fan-out", ct.ID.Hex())
		return 0, nil
	}

	dueDate := ResolveDueDate(ct, e.now())

	now := e.now()
	contributions := make([]models.MemberContribution, 0, len(members))
	for _, m := range members {
		ref, err := GenerateReference(ctx, e.store)
		if err != nil {
			return 0, err
		}
		contributions = append(contributions, models.MemberContribution{
			ID:                 primitive.NewObjectID(),
			MemberID:           m.ID,
			ContributionTypeID: ct.ID,
			AmountDueCents:     ct.AmountCents,
			Reference:          ref,
			DueDate:            dueDate,
			Status:             models.StatusNotPaid,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}

	if err := e.store.InsertContributions(ctx, contributions, fanoutBatchSize); err != nil {
		// A concurrent fan-out for the same type slipped past the existence
		// check; the unique index rejected the duplicates, so treat this run
		// like the guard above.
		if errors.Is(err, models.ErrConflict) {
			log.Printf("Contributions already exist for contribution type %s, skipping fan-out", ct.ID.Hex())
			return 0, nil
		}
		return 0, err
	}
	log.Printf("Created %d member contributions for contribution type %s (%s, scope: %s)",
		len(contributions), ct.ID.Hex(), ct.Name, ct.Scope)

	// Queue creation notices, capped to avoid flooding the queue. Failures
	// here never unwind the inserts.
	queued := 0
	for _, mc := range contributions {
		if queued >= fanoutNotifyCap {
			break
		}
		e.dispatch.Enqueue(notify.JobObligationCreated, mc.ID.Hex())
		queued++
	}
	log.Printf("Queued %d notification jobs for contribution type %s", queued, ct.ID.Hex())

	return len(contributions), nil
}
