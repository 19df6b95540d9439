package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
	"github.com/tshiamom/clanfund-gobackend/internal/notify"
)

// Common test errors
var (
	ErrMockStorage = errors.New("mock storage error")
)

// mockStore implements MemberDirectory, ObligationWriter and PaymentStore
// in memory for testing.
type mockStore struct {
	mu sync.Mutex

	Members    []models.Member
	MembersErr error

	References      map[string]bool
	ExistingForType map[primitive.ObjectID]bool
	Inserted        []models.MemberContribution
	InsertErr       error

	Contributions map[primitive.ObjectID]*models.MemberContribution
	Types         map[primitive.ObjectID]*models.ContributionType
	Payments      map[primitive.ObjectID]*models.Payment

	StatusChanges []models.ContributionStatus
	CheckoutIDs   map[primitive.ObjectID]string
}

func newMockStore() *mockStore {
	return &mockStore{
		References:      make(map[string]bool),
		ExistingForType: make(map[primitive.ObjectID]bool),
		Contributions:   make(map[primitive.ObjectID]*models.MemberContribution),
		Types:           make(map[primitive.ObjectID]*models.ContributionType),
		Payments:        make(map[primitive.ObjectID]*models.Payment),
		CheckoutIDs:     make(map[primitive.ObjectID]string),
	}
}

func (m *mockStore) EligibleMembers(ctx context.Context, scope models.Scope, familyID primitive.ObjectID) ([]models.Member, error) {
	if m.MembersErr != nil {
		return nil, m.MembersErr
	}
	switch scope {
	case models.ScopeClan, models.ScopeFamily, models.ScopeFamilyLeaders, models.ScopeExecutives:
		return m.Members, nil
	default:
		return nil, ErrUnknownScope
	}
}

func (m *mockStore) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.References[reference], nil
}

func (m *mockStore) ContributionsExistForType(ctx context.Context, typeID primitive.ObjectID) (bool, error) {
	return m.ExistingForType[typeID], nil
}

func (m *mockStore) InsertContributions(ctx context.Context, contributions []models.MemberContribution, batchSize int) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inserted = append(m.Inserted, contributions...)
	for i := range contributions {
		mc := contributions[i]
		m.Contributions[mc.ID] = &mc
	}
	return nil
}

func (m *mockStore) ContributionByID(ctx context.Context, id primitive.ObjectID) (*models.MemberContribution, error) {
	mc, ok := m.Contributions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copy := *mc
	return &copy, nil
}

func (m *mockStore) TypeByID(ctx context.Context, id primitive.ObjectID) (*models.ContributionType, error) {
	ct, ok := m.Types[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copy := *ct
	return &copy, nil
}

func (m *mockStore) SetContributionStatus(ctx context.Context, id primitive.ObjectID, status models.ContributionStatus) error {
	mc, ok := m.Contributions[id]
	if !ok {
		return models.ErrNotFound
	}
	mc.Status = status
	m.StatusChanges = append(m.StatusChanges, status)
	return nil
}

func (m *mockStore) InsertPayment(ctx context.Context, p *models.Payment) error {
	copy := *p
	m.Payments[p.ID] = &copy
	return nil
}

func (m *mockStore) PaymentByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	p, ok := m.Payments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *mockStore) ActivePaymentFor(ctx context.Context, contributionID primitive.ObjectID) (*models.Payment, error) {
	for _, p := range m.Payments {
		if p.MemberContributionID == contributionID && p.Approval.Active() {
			copy := *p
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *mockStore) PaymentByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	for _, p := range m.Payments {
		if p.CheckoutID == gatewayID || p.TransactionID == gatewayID || p.Reference == gatewayID {
			copy := *p
			return &copy, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *mockStore) MarkPaymentApproval(ctx context.Context, id primitive.ObjectID, expect []models.ApprovalStatus, to models.ApprovalStatus, verifiedBy primitive.ObjectID, reason string, transactionID string) (bool, error) {
	p, ok := m.Payments[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, e := range expect {
		if p.Approval == e {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	p.Approval = to
	if !verifiedBy.IsZero() {
		now := time.Now()
		p.VerifiedBy = verifiedBy
		p.VerifiedAt = &now
	}
	if reason != "" {
		p.RejectionReason = reason
	}
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	return true, nil
}

func (m *mockStore) SetPaymentCheckout(ctx context.Context, id primitive.ObjectID, checkoutID string) error {
	p, ok := m.Payments[id]
	if !ok {
		return models.ErrNotFound
	}
	p.CheckoutID = checkoutID
	p.Approval = models.ApprovalPending
	m.CheckoutIDs[id] = checkoutID
	return nil
}

func (m *mockStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	for _, ct := range m.Types {
		if ct.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) InsertType(ctx context.Context, ct *models.ContributionType) error {
	copy := *ct
	m.Types[ct.ID] = &copy
	return nil
}

func (m *mockStore) TypeBySlug(ctx context.Context, slug string) (*models.ContributionType, error) {
	for _, ct := range m.Types {
		if ct.Slug == slug {
			copy := *ct
			return &copy, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *mockStore) ListTypes(ctx context.Context, activeOnly bool) ([]models.ContributionType, error) {
	var out []models.ContributionType
	for _, ct := range m.Types {
		if activeOnly && !ct.IsActive {
			continue
		}
		out = append(out, *ct)
	}
	return out, nil
}

func (m *mockStore) UpdateTypeFields(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	ct, ok := m.Types[id]
	if !ok {
		return models.ErrNotFound
	}
	if v, ok := set["name"].(string); ok {
		ct.Name = v
	}
	if v, ok := set["description"].(string); ok {
		ct.Description = v
	}
	if v, ok := set["amount_cents"].(int64); ok {
		ct.AmountCents = v
	}
	if v, ok := set["scope"].(models.Scope); ok {
		ct.Scope = v
	}
	if v, ok := set["is_active"].(bool); ok {
		ct.IsActive = v
	}
	return nil
}

func (m *mockStore) TotalCollectedCents(ctx context.Context, typeID primitive.ObjectID) (int64, error) {
	var total int64
	for _, p := range m.Payments {
		if p.Approval != models.ApprovalApproved {
			continue
		}
		mc, ok := m.Contributions[p.MemberContributionID]
		if ok && mc.ContributionTypeID == typeID {
			total += p.AmountCents
		}
	}
	return total, nil
}

func (m *mockStore) ListContributions(ctx context.Context, memberID primitive.ObjectID, statuses []models.ContributionStatus) ([]models.MemberContribution, error) {
	var out []models.MemberContribution
	for _, mc := range m.Contributions {
		if !memberID.IsZero() && mc.MemberID != memberID {
			continue
		}
		out = append(out, *mc)
	}
	return out, nil
}

func (m *mockStore) ContributionsDueOn(ctx context.Context, day time.Time) ([]models.MemberContribution, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var out []models.MemberContribution
	for _, mc := range m.Contributions {
		if mc.Status != models.StatusNotPaid {
			continue
		}
		if !mc.DueDate.Before(start) && mc.DueDate.Before(end) {
			out = append(out, *mc)
		}
	}
	return out, nil
}

// mockDispatcher records enqueued jobs.
type mockDispatcher struct {
	mu   sync.Mutex
	Jobs []mockJob
}

type mockJob struct {
	Kind notify.JobKind
	Args []string
}

func (d *mockDispatcher) Enqueue(kind notify.JobKind, args ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Jobs = append(d.Jobs, mockJob{Kind: kind, Args: args})
}

func (d *mockDispatcher) count(kind notify.JobKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, j := range d.Jobs {
		if j.Kind == kind {
			n++
		}
	}
	return n
}
