package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/skala-commerce/storefront/lib/myerrors"
)

const tokenValidity = 24 * time.Hour

//go:generate mockgen -source=tokenizer.go -package session -destination tokenizer_mock.go Tokenizer
type Tokenizer interface {
	Issue(shopperUID string, isAdmin bool, now time.Time) (string, error)
	Verify(tokenString string) (Session, error)
}

type jwtTokenizer struct {
	secret []byte
}

func NewTokenizer(secret string) Tokenizer {
	return &jwtTokenizer{
		secret: []byte(secret),
	}
}

type claims struct {
	IsAdmin bool `json:"admin"`
	jwt.RegisteredClaims
}

func (t *jwtTokenizer) Issue(shopperUID string, isAdmin bool, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   shopperUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenValidity)),
		},
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", myerrors.NewInternalError(fmt.Errorf("error signing token: %s", err))
	}

	return signed, nil
}

func (t *jwtTokenizer) Verify(tokenString string) (Session, error) {
	parsedClaims := claims{}
	_, err := jwt.ParseWithClaims(tokenString, &parsedClaims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return Session{}, myerrors.NewUnauthorizedError(fmt.Errorf("invalid token: %s", err))
	}

	return Session{
		ShopperUID: parsedClaims.Subject,
		IsAdmin:    parsedClaims.IsAdmin,
	}, nil
}
