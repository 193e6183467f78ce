package cart

import (
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/lib/mypublisher"
	"github.com/skala-commerce/storefront/lib/mypubsub"
	"github.com/skala-commerce/storefront/lib/mystore"
	"github.com/skala-commerce/storefront/lib/mytime"
	"github.com/skala-commerce/storefront/lib/myuuid"
)

type service struct {
	cartStore  mystore.Store[Cart]
	subscriber mypubsub.PubSub
	publisher  mypublisher.Publisher
	nower      mytime.Nower
	uuider     myuuid.UUIDer
	logger     mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(store mystore.Store[Cart], nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger, subscriber mypubsub.PubSub, pub mypublisher.Publisher) *service {
	return &service{
		cartStore:  store,
		subscriber: subscriber,
		publisher:  pub,
		nower:      nower,
		uuider:     uuider,
		logger:     logger,
	}
}
