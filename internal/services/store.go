package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
	"github.com/tshiamom/clanfund-gobackend/internal/notify"
)

// Store is the MongoDB implementation of every storage seam the services
// use. All mutation of member contributions and payments funnels through it.
type Store struct {
	db *mongo.Database
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func (s *Store) members() *mongo.Collection       { return s.db.Collection("members") }
func (s *Store) types() *mongo.Collection         { return s.db.Collection("contribution_types") }
func (s *Store) contributions() *mongo.Collection { return s.db.Collection("member_contributions") }
func (s *Store) payments() *mongo.Collection      { return s.db.Collection("payments") }

// WithTransaction runs fn inside one MongoDB session transaction so paired
// payment/contribution writes are never observed half-applied.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %v", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// ---- member directory ----

// EligibleMembers returns active, approved members matching the scope. The
// fan-out engine filters dependents on top of this.
func (s *Store) EligibleMembers(ctx context.Context, scope models.Scope, familyID primitive.ObjectID) ([]models.Member, error) {
	filter := bson.M{"is_active": true, "is_approved": true}

	switch scope {
	case models.ScopeClan:
		// no extra filter
	case models.ScopeFamily:
		filter["family_id"] = familyID
	case models.ScopeFamilyLeaders:
		filter["is_family_leader"] = true
	case models.ScopeExecutives:
		filter["is_family_leader"] = true
		filter["role"] = bson.M{"$in": models.ExecutiveRoles}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}

	cur, err := s.members().Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members: %v", err)
	}
	defer cur.Close(ctx)

	var members []models.Member
	if err := cur.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("failed to decode members: %v", err)
	}
	return members, nil
}

func (s *Store) MemberByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error) {
	var m models.Member
	if err := s.members().FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: member %s", models.ErrNotFound, id.Hex())
		}
		return nil, fmt.Errorf("failed to fetch member: %v", err)
	}
	return &m, nil
}

func (s *Store) MemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	var m models.Member
	if err := s.members().FindOne(ctx, bson.M{"email": email}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: member %s", models.ErrNotFound, email)
		}
		return nil, fmt.Errorf("failed to fetch member: %v", err)
	}
	return &m, nil
}

// ---- contribution types ----

func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	count, err := s.types().CountDocuments(ctx, bson.M{"slug": slug})
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %v", err)
	}
	return count > 0, nil
}

func (s *Store) InsertType(ctx context.Context, ct *models.ContributionType) error {
	_, err := s.types().InsertOne(ctx, ct)
	if err != nil {
		return fmt.Errorf("failed to save contribution type: %v", err)
	}
	return nil
}

func (s *Store) TypeByID(ctx context.Context, id primitive.ObjectID) (*models.ContributionType, error) {
	var ct models.ContributionType
	if err := s.types().FindOne(ctx, bson.M{"_id": id}).Decode(&ct); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: contribution type %s", models.ErrNotFound, id.Hex())
		}
		return nil, fmt.Errorf("failed to fetch contribution type: %v", err)
	}
	return &ct, nil
}

func (s *Store) TypeBySlug(ctx context.Context, slug string) (*models.ContributionType, error) {
	var ct models.ContributionType
	if err := s.types().FindOne(ctx, bson.M{"slug": slug}).Decode(&ct); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: contribution type %s", models.ErrNotFound, slug)
		}
		return nil, fmt.Errorf("failed to fetch contribution type: %v", err)
	}
	return &ct, nil
}

func (s *Store) ListTypes(ctx context.Context, activeOnly bool) ([]models.ContributionType, error) {
	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}
	cur, err := s.types().Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contribution types: %v", err)
	}
	defer cur.Close(ctx)

	var out []models.ContributionType
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode contribution types: %v", err)
	}
	return out, nil
}

func (s *Store) UpdateTypeFields(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now()
	res, err := s.types().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update contribution type: %v", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: contribution type %s", models.ErrNotFound, id.Hex())
	}
	return nil
}

// TotalCollectedCents sums approved payment amounts for a contribution type.
// This is the read contract the presentation layer uses for aggregates.
func (s *Store) TotalCollectedCents(ctx context.Context, typeID primitive.ObjectID) (int64, error) {
	ids, err := s.contributions().Distinct(ctx, "_id", bson.M{"contribution_type_id": typeID})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve contributions: %v", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"member_contribution_id": bson.M{"$in": ids},
			"is_approved":            models.ApprovalApproved,
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$amount_cents"},
		}}},
	}
	cur, err := s.payments().Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate payments: %v", err)
	}
	defer cur.Close(ctx)

	var result []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &result); err != nil {
		return 0, fmt.Errorf("failed to decode aggregate: %v", err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Total, nil
}

// ---- member contributions ----

func (s *Store) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	count, err := s.contributions().CountDocuments(ctx, bson.M{"reference": reference})
	if err != nil {
		return false, fmt.Errorf("failed to check reference: %v", err)
	}
	return count > 0, nil
}

func (s *Store) ContributionsExistForType(ctx context.Context, typeID primitive.ObjectID) (bool, error) {
	count, err := s.contributions().CountDocuments(ctx, bson.M{"contribution_type_id": typeID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check existing contributions: %v", err)
	}
	return count > 0, nil
}

// InsertContributions bulk-creates contributions in bounded batches inside
// one transaction: either the full set lands or none of it does.
func (s *Store) InsertContributions(ctx context.Context, contributions []models.MemberContribution, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		for start := 0; start < len(contributions); start += batchSize {
			end := start + batchSize
			if end > len(contributions) {
				end = len(contributions)
			}
			docs := make([]interface{}, 0, end-start)
			for _, mc := range contributions[start:end] {
				docs = append(docs, mc)
			}
			if _, err := s.contributions().InsertMany(ctx, docs); err != nil {
				// The unique indexes catch a concurrent duplicate fan-out.
				if mongo.IsDuplicateKeyError(err) {
					return fmt.Errorf("%w: contributions already exist", models.ErrConflict)
				}
				return fmt.Errorf("failed to insert contributions: %v", err)
			}
		}
		return nil
	})
}

func (s *Store) ContributionByID(ctx context.Context, id primitive.ObjectID) (*models.MemberContribution, error) {
	var mc models.MemberContribution
	if err := s.contributions().FindOne(ctx, bson.M{"_id": id}).Decode(&mc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: contribution %s", models.ErrNotFound, id.Hex())
		}
		return nil, fmt.Errorf("failed to fetch contribution: %v", err)
	}
	return &mc, nil
}

func (s *Store) SetContributionStatus(ctx context.Context, id primitive.ObjectID, status models.ContributionStatus) error {
	res, err := s.contributions().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("failed to update contribution status: %v", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: contribution %s", models.ErrNotFound, id.Hex())
	}
	return nil
}

func (s *Store) ListContributions(ctx context.Context, memberID primitive.ObjectID, statuses []models.ContributionStatus) ([]models.MemberContribution, error) {
	filter := bson.M{}
	if !memberID.IsZero() {
		filter["member_id"] = memberID
	}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	cur, err := s.contributions().Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contributions: %v", err)
	}
	defer cur.Close(ctx)

	var out []models.MemberContribution
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode contributions: %v", err)
	}
	return out, nil
}

// ContributionsDueOn finds unpaid contributions due on a given calendar day,
// used by the reminder sweep.
func (s *Store) ContributionsDueOn(ctx context.Context, day time.Time) ([]models.MemberContribution, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	cur, err := s.contributions().Find(ctx, bson.M{
		"status":   models.StatusNotPaid,
		"due_date": bson.M{"$gte": start, "$lt": end},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due contributions: %v", err)
	}
	defer cur.Close(ctx)

	var out []models.MemberContribution
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode due contributions: %v", err)
	}
	return out, nil
}

// ---- payments ----

func (s *Store) InsertPayment(ctx context.Context, p *models.Payment) error {
	_, err := s.payments().InsertOne(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to save payment: %v", err)
	}
	return nil
}

func (s *Store) PaymentByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	var p models.Payment
	if err := s.payments().FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: payment %s", models.ErrNotFound, id.Hex())
		}
		return nil, fmt.Errorf("failed to fetch payment: %v", err)
	}
	return &p, nil
}

// ActivePaymentFor returns the live (pending / not-paid) payment attempt for
// a contribution, if any. Rejected and approved records do not count.
func (s *Store) ActivePaymentFor(ctx context.Context, contributionID primitive.ObjectID) (*models.Payment, error) {
	var p models.Payment
	err := s.payments().FindOne(ctx, bson.M{
		"member_contribution_id": contributionID,
		"is_approved":            bson.M{"$in": []models.ApprovalStatus{models.ApprovalPending, models.ApprovalNotPaid}},
	}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch active payment: %v", err)
	}
	return &p, nil
}

// PaymentByGatewayID locates a payment from a webhook identifier: the
// gateway-assigned checkout or transaction id, or the merchant reference the
// checkout metadata echoes back.
func (s *Store) PaymentByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	var p models.Payment
	err := s.payments().FindOne(ctx, bson.M{"$or": bson.A{
		bson.M{"checkout_id": gatewayID},
		bson.M{"transaction_id": gatewayID},
		bson.M{"reference": gatewayID},
	}}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: payment for gateway id %s", models.ErrNotFound, gatewayID)
		}
		return nil, fmt.Errorf("failed to fetch payment: %v", err)
	}
	return &p, nil
}

// MarkPaymentApproval flips a payment's approval status only when its
// current status is one of expect. Returns false when nothing matched, which
// is how a concurrent or repeated approval shows up as a no-op.
func (s *Store) MarkPaymentApproval(ctx context.Context, id primitive.ObjectID, expect []models.ApprovalStatus, to models.ApprovalStatus, verifiedBy primitive.ObjectID, reason string, transactionID string) (bool, error) {
	now := time.Now()
	set := bson.M{
		"is_approved": to,
		"updated_at":  now,
	}
	if !verifiedBy.IsZero() {
		set["verified_by"] = verifiedBy
		set["verified_at"] = now
	}
	if reason != "" {
		set["rejection_reason"] = reason
	}
	if transactionID != "" {
		set["transaction_id"] = transactionID
	}
	res, err := s.payments().UpdateOne(ctx, bson.M{
		"_id":         id,
		"is_approved": bson.M{"$in": expect},
	}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("failed to update payment approval: %v", err)
	}
	return res.ModifiedCount > 0, nil
}

func (s *Store) SetPaymentCheckout(ctx context.Context, id primitive.ObjectID, checkoutID string) error {
	res, err := s.payments().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"checkout_id": checkoutID,
		"is_approved": models.ApprovalPending,
		"updated_at":  time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("failed to set checkout id: %v", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: payment %s", models.ErrNotFound, id.Hex())
	}
	return nil
}

// ListPayments returns payments filtered by approval status and creation
// date range, newest first.
func (s *Store) ListPayments(ctx context.Context, memberID primitive.ObjectID, approval models.ApprovalStatus, start, end *time.Time) ([]models.Payment, error) {
	filter := bson.M{}
	if !memberID.IsZero() {
		filter["member_id"] = memberID
	}
	if approval != "" {
		filter["is_approved"] = approval
	}
	if start != nil && end != nil {
		filter["created_at"] = bson.M{"$gte": *start, "$lte": *end}
	}
	cur, err := s.payments().Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payments: %v", err)
	}
	defer cur.Close(ctx)

	var out []models.Payment
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %v", err)
	}
	return out, nil
}

// ---- notification logs ----

func (s *Store) InsertNotificationLog(ctx context.Context, nl *models.NotificationLog) error {
	nl.CreatedAt = time.Now()
	_, err := s.db.Collection("notification_logs").InsertOne(ctx, nl)
	if err != nil {
		return fmt.Errorf("failed to save notification log: %v", err)
	}
	return nil
}

// ---- notification bundle ----

// ContributionBundle loads everything a notification job needs, fresh from
// storage, keyed by contribution ID.
func (s *Store) ContributionBundle(ctx context.Context, contributionID string) (*notify.Bundle, error) {
	id, err := primitive.ObjectIDFromHex(contributionID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid contribution id %s", models.ErrValidation, contributionID)
	}

	mc, err := s.ContributionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	member, err := s.MemberByID(ctx, mc.MemberID)
	if err != nil {
		return nil, err
	}
	ct, err := s.TypeByID(ctx, mc.ContributionTypeID)
	if err != nil {
		return nil, err
	}

	b := &notify.Bundle{Contribution: *mc, Member: *member, Type: *ct}
	if p, err := s.LatestPaymentFor(ctx, mc.ID); err == nil && p != nil {
		b.Payment = p
	}
	return b, nil
}

// LatestPaymentFor returns the most recent payment record for a
// contribution regardless of approval status.
func (s *Store) LatestPaymentFor(ctx context.Context, contributionID primitive.ObjectID) (*models.Payment, error) {
	var p models.Payment
	err := s.payments().FindOne(ctx,
		bson.M{"member_contribution_id": contributionID},
		options.FindOne().SetSort(bson.M{"created_at": -1}),
	).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch payment: %v", err)
	}
	return &p, nil
}
