package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
	"github.com/tshiamom/clanfund-gobackend/internal/notify"
)

// ContributionStore is the storage seam for contribution types and the
// contributions fanned out from them. *Store implements it.
type ContributionStore interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	InsertType(ctx context.Context, ct *models.ContributionType) error
	TypeBySlug(ctx context.Context, slug string) (*models.ContributionType, error)
	ListTypes(ctx context.Context, activeOnly bool) ([]models.ContributionType, error)
	UpdateTypeFields(ctx context.Context, id primitive.ObjectID, set bson.M) error
	TotalCollectedCents(ctx context.Context, typeID primitive.ObjectID) (int64, error)
	ContributionsExistForType(ctx context.Context, typeID primitive.ObjectID) (bool, error)
	ListContributions(ctx context.Context, memberID primitive.ObjectID, statuses []models.ContributionStatus) ([]models.MemberContribution, error)
	ContributionByID(ctx context.Context, id primitive.ObjectID) (*models.MemberContribution, error)
	ContributionsDueOn(ctx context.Context, day time.Time) ([]models.MemberContribution, error)
}

// ContributionService manages contribution types and the member
// contributions fanned out from them.
type ContributionService struct {
	store    ContributionStore
	fanout   *FanoutEngine
	dispatch notify.Dispatcher
}

func NewContributionService(store ContributionStore, fanout *FanoutEngine, dispatch notify.Dispatcher) *ContributionService {
	return &ContributionService{store: store, fanout: fanout, dispatch: dispatch}
}

// CreateType validates and saves a contribution type, then fans it out to
// every eligible member. A fan-out failure is a correctness violation and is
// returned to the caller after logging; a soft no-op (unknown scope, no
// members) is not.
func (s *ContributionService) CreateType(ctx context.Context, ct *models.ContributionType, createdBy primitive.ObjectID) (*models.ContributionType, int, error) {
	if ct.Category == "" {
		ct.Category = models.CategoryOther
	}
	if ct.Recurrence == "" {
		ct.Recurrence = models.RecurrenceOnceOff
	}
	if ct.Scope == "" {
		ct.Scope = models.ScopeClan
	}
	if err := ct.Validate(); err != nil {
		return nil, 0, err
	}

	slug, err := s.uniqueSlug(ctx, ct.Name)
	if err != nil {
		return nil, 0, err
	}

	now := time.Now()
	ct.ID = primitive.NewObjectID()
	ct.Slug = slug
	ct.IsActive = true
	ct.CreatedBy = createdBy
	ct.CreatedAt = now
	ct.UpdatedAt = now

	if err := s.store.InsertType(ctx, ct); err != nil {
		return nil, 0, err
	}

	created, err := s.fanout.FanOut(ctx, ct)
	if err != nil {
		log.Printf("Fan-out failed for contribution type %s: %v", ct.ID.Hex(), err)
		return nil, 0, fmt.Errorf("fan-out failed for contribution type %s: %w", ct.ID.Hex(), err)
	}
	return ct, created, nil
}

// uniqueSlug appends a counter until the slug is free.
func (s *ContributionService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	slug := base
	for counter := 1; ; counter++ {
		exists, err := s.store.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

func (s *ContributionService) ListTypes(ctx context.Context, activeOnly bool) ([]models.ContributionType, error) {
	return s.store.ListTypes(ctx, activeOnly)
}

func (s *ContributionService) TypeBySlug(ctx context.Context, slug string) (*models.ContributionType, error) {
	return s.store.TypeBySlug(ctx, slug)
}

// TotalCollectedCents is the aggregate read contract for the presentation
// layer: approved payment totals per contribution type, computed on demand.
func (s *ContributionService) TotalCollectedCents(ctx context.Context, typeID primitive.ObjectID) (int64, error) {
	return s.store.TotalCollectedCents(ctx, typeID)
}

// UpdateType applies edits to a contribution type. Amount, scope and family
// are frozen once member contributions exist for the type.
func (s *ContributionService) UpdateType(ctx context.Context, slug string, name, description *string, amountCents *int64, scope *models.Scope, isActive *bool) (*models.ContributionType, error) {
	ct, err := s.store.TypeBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	hasObligations, err := s.store.ContributionsExistForType(ctx, ct.ID)
	if err != nil {
		return nil, err
	}

	set := bson.M{}
	if amountCents != nil && *amountCents != ct.AmountCents {
		if hasObligations {
			return nil, fmt.Errorf("%w: amount is immutable once member contributions exist", models.ErrConflict)
		}
		if *amountCents <= 0 {
			return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
		}
		set["amount_cents"] = *amountCents
	}
	if scope != nil && *scope != ct.Scope {
		if hasObligations {
			return nil, fmt.Errorf("%w: scope is immutable once member contributions exist", models.ErrConflict)
		}
		set["scope"] = *scope
	}
	if name != nil && *name != "" {
		set["name"] = *name
	}
	if description != nil {
		set["description"] = *description
	}
	if isActive != nil {
		set["is_active"] = *isActive
	}
	if len(set) == 0 {
		return ct, nil
	}

	if err := s.store.UpdateTypeFields(ctx, ct.ID, set); err != nil {
		return nil, err
	}
	return s.store.TypeBySlug(ctx, slug)
}

func (s *ContributionService) ListContributions(ctx context.Context, memberID primitive.ObjectID, statuses []models.ContributionStatus) ([]models.MemberContribution, error) {
	return s.store.ListContributions(ctx, memberID, statuses)
}

func (s *ContributionService) ContributionByID(ctx context.Context, id primitive.ObjectID) (*models.MemberContribution, error) {
	return s.store.ContributionByID(ctx, id)
}

// RunReminders queues reminder jobs for contributions due in ten days, due
// today and ten days overdue. Returns how many jobs were queued.
func (s *ContributionService) RunReminders(ctx context.Context, now time.Time) (int, error) {
	sweeps := []struct {
		offset int
		kind   string
	}{
		{10, "upcoming"},
		{0, "due_today"},
		{-10, "overdue"},
	}

	queued := 0
	for _, sweep := range sweeps {
		due, err := s.store.ContributionsDueOn(ctx, now.AddDate(0, 0, sweep.offset))
		if err != nil {
			return queued, err
		}
		for _, mc := range due {
			s.dispatch.Enqueue(notify.JobPaymentReminder, mc.ID.Hex(), sweep.kind)
			queued++
		}
	}
	log.Printf("Queued %d payment reminder jobs", queued)
	return queued, nil
}
