package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
)

// MemberService is the thin auth boundary over the member directory. The
// directory itself is maintained elsewhere; this service only authenticates
// members and resolves them for request handling.
type MemberService struct {
	store     *Store
	jwtSecret string
}

func NewMemberService(store *Store, jwtSecret string) *MemberService {
	return &MemberService{store: store, jwtSecret: jwtSecret}
}

// Login verifies a member's credentials and returns the member with a
// signed bearer token. Inactive or unapproved members cannot log in.
func (s *MemberService) Login(ctx context.Context, email, password string) (*models.Member, string, error) {
	m, err := s.store.MemberByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid email or password", models.ErrForbidden)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.HPassword), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("%w: invalid email or password", models.ErrForbidden)
	}
	if !m.IsActive || !m.IsApproved {
		return nil, "", fmt.Errorf("%w: member account is not active", models.ErrForbidden)
	}

	token, err := s.tokenFor(m)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign token: %v", err)
	}
	return m, token, nil
}

func (s *MemberService) tokenFor(m *models.Member) (string, error) {
	claims := jwt.MapClaims{
		"member_id": m.ID.Hex(),
		"role":      string(m.Role),
		"exp":       time.Now().Add(72 * time.Hour).Unix(),
		"iat":       time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// MemberByID resolves a member from a token subject.
func (s *MemberService) MemberByID(ctx context.Context, id string) (*models.Member, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid member id %s", models.ErrValidation, id)
	}
	return s.store.MemberByID(ctx, oid)
}
