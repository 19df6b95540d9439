package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tshiamom/clanfund-gobackend/internal/models"
)

// Claims is the authenticated identity extracted from a bearer token.
type Claims struct {
	MemberID primitive.ObjectID
	Role     models.Role
}

// Auth verifies bearer tokens on protected routes.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// Authenticate parses and validates the Authorization header.
func (a *Auth) Authenticate(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("%w: authorization header required", models.ErrForbidden)
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", models.ErrForbidden)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token claims", models.ErrForbidden)
	}
	memberHex, _ := claims["member_id"].(string)
	memberID, err := primitive.ObjectIDFromHex(memberHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid member_id in token", models.ErrForbidden)
	}
	role, _ := claims["role"].(string)

	return &Claims{MemberID: memberID, Role: models.Role(role)}, nil
}

// Staff reports whether the caller holds an executive council role.
func (c *Claims) Staff() bool {
	for _, r := range models.ExecutiveRoles {
		if c.Role == r {
			return true
		}
	}
	return false
}
