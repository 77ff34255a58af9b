// Package grant signs and verifies viewing grants handed to the browser after
// a successful purchase.
package grant

import (
	"errors"
	"fmt"
	"time"

	"docview-paywall/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid viewing grant token")

type Claims struct {
	DocumentID    string `json:"doc"`
	PackageID     string `json:"pkg"`
	TransactionID string `json:"trx"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewSigner(secret, issuer string) *Signer {
	return &Signer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

func (s *Signer) Sign(g model.ViewingGrant) (string, error) {
	claims := Claims{
		DocumentID:    g.DocumentID,
		PackageID:     g.PackageID,
		TransactionID: g.TransactionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        g.ID,
			Issuer:    s.issuer,
			Subject:   g.VisitorID,
			IssuedAt:  jwt.NewNumericDate(g.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(g.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return token, nil
}

// Parse verifies signature, issuer and expiry.
func (s *Signer) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &claims, nil
}
