package session

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/skala-commerce/storefront/lib/myerrors"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
)

type service struct {
	accountStore mystore.Store[Account]
	tokenizer    Tokenizer
	nower        mytime.Nower
	uuider       myuuid.UUIDer
	logger       mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(accountStore mystore.Store[Account], tokenizer Tokenizer, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		accountStore: accountStore,
		tokenizer:    tokenizer,
		nower:        nower,
		uuider:       uuider,
		logger:       logger,
	}
}

func (s *service) register(c context.Context, req RegisterRequest) (Account, error) {
	accountUID := s.uuider.Create()
	now := s.nower.Now()

	s.logger.Log(c, accountUID, mylog.SeverityInfo, "Registering account for %s", req.Email)

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, myerrors.NewInternalError(fmt.Errorf("error hashing password: %s", err))
	}

	account := Account{
		UID:            accountUID,
		FullName:       req.FullName,
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		HashedPassword: string(hashed),
		CreatedAt:      now,
	}

	err = s.accountStore.RunInTransaction(c, func(c context.Context) error {
		existing, err := s.accountStore.Query(c, []mystore.Filter{
			{Field: "Email", Compare: "=", Value: req.Email},
		}, "")
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if len(existing) > 0 {
			return myerrors.NewConflictError(fmt.Errorf("account with email %s already exists", req.Email))
		}

		err = s.accountStore.Put(c, accountUID, account)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return Account{}, err
	}

	return account, nil
}

func (s *service) login(c context.Context, email string, password string) (string, Account, error) {
	s.logger.Log(c, "", mylog.SeverityInfo, "Login attempt for %s", email)

	accounts, err := s.accountStore.Query(c, []mystore.Filter{
		{Field: "Email", Compare: "=", Value: email},
	}, "")
	if err != nil {
		return "", Account{}, myerrors.NewInternalError(err)
	}
	if len(accounts) == 0 {
		return "", Account{}, myerrors.NewUnauthorizedError(fmt.Errorf("unknown email or password"))
	}
	account := accounts[0]

	err = bcrypt.CompareHashAndPassword([]byte(account.HashedPassword), []byte(password))
	if err != nil {
		return "", Account{}, myerrors.NewUnauthorizedError(fmt.Errorf("unknown email or password"))
	}

	token, err := s.tokenizer.Issue(account.UID, account.IsAdmin, s.nower.Now())
	if err != nil {
		return "", Account{}, err
	}

	return token, account, nil
}
