package session

import (
	"context"
	"time"
)

// Account is the stored shopper identity. The hashed password never leaves this package.
type Account struct {
	UID            string
	FullName       string
	Email          string
	PhoneNumber    string
	HashedPassword string `json:"-"`
	IsAdmin        bool
	CreatedAt      time.Time
}

// Session is the authenticated caller as derived from a verified bearer token
type Session struct {
	ShopperUID string
	IsAdmin    bool
}

type ctxSessionKey struct{}

func WithSession(c context.Context, session Session) context.Context {
	return context.WithValue(c, ctxSessionKey{}, session)
}

func FromContext(c context.Context) (Session, bool) {
	session, ok := c.Value(ctxSessionKey{}).(Session)
	return session, ok
}
