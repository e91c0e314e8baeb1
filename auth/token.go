// Package auth is the identity gate: it turns a bearer token into the
// identity of a known directory user.
package auth

import (
	"bizlink/contract"
	"bizlink/domain"
	"bizlink/errors"
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "bizlink"

// Claims defines the data stored inside the JWT.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type Gate struct {
	secret    []byte
	directory contract.IUserDirectory
	now       func() time.Time
}

func NewGate(secret string, directory contract.IUserDirectory, now func() time.Time) *Gate {
	return &Gate{secret: []byte(secret), directory: directory, now: now}
}

// IssueToken creates a signed HS256 token for userID valid for ttl.
// Tokens are normally issued by the account service; this exists for
// seeding and tests.
func (g *Gate) IssueToken(userID string, role domain.Role, ttl time.Duration) (string, error) {
	now := g.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Authenticate validates the token and resolves its user in the directory.
// The directory role wins over the role carried by the token.
func (g *Gate) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, errors.ErrMissingToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return domain.Identity{}, errors.ErrInvalidToken
	}

	user, err := g.directory.GetUser(ctx, claims.UserID)
	if errors.Is(err, errors.ErrUserNotFound) {
		return domain.Identity{}, errors.ErrUnknownIdentity
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: user.ID, Role: user.Role, Name: user.FullName()}, nil
}
