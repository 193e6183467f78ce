package tracking

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/skala-commerce/storefront/lib/mycache"
	"github.com/skala-commerce/storefront/lib/mylog"
	"github.com/skala-commerce/storefront/services/courier"
)

const (
	pollInterval = 60 * time.Second

	// cache entries outlive one missed poll but not much more
	cacheTTL = 2 * pollInterval
)

// Reconciler keeps the cached courier status of the order being watched fresh.
// At most one poll loop runs at a time: watching a new order stops the loop of
// the previous one.
type Reconciler struct {
	gateway  courier.Gateway
	cache    mycache.Cache
	logger   mylog.Logger
	interval time.Duration

	mutex    sync.Mutex
	orderUID string
	cancel   context.CancelFunc
}

func NewReconciler(gateway courier.Gateway, cache mycache.Cache, logger mylog.Logger) *Reconciler {
	return &Reconciler{
		gateway:  gateway,
		cache:    cache,
		logger:   logger,
		interval: pollInterval,
	}
}

// Start begins polling the courier for the given consignment. Restarting for
// the same order is a no-op; a different order replaces the running poller.
func (r *Reconciler) Start(c context.Context, orderUID string, consignmentID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.cancel != nil {
		if r.orderUID == orderUID {
			return
		}
		r.cancel()
	}

	pollCtx, cancel := context.WithCancel(c)
	r.orderUID = orderUID
	r.cancel = cancel

	go r.loop(pollCtx, orderUID, consignmentID)
}

// Stop halts polling; pending timers are cancelled immediately
func (r *Reconciler) Stop() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
		r.orderUID = ""
	}
}

func (r *Reconciler) loop(c context.Context, orderUID string, consignmentID string) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.pollOnce(c, orderUID, consignmentID)

		select {
		case <-c.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) pollOnce(c context.Context, orderUID string, consignmentID string) {
	status, err := r.gateway.GetTrackingStatus(c, consignmentID)
	if err != nil {
		r.logger.Log(c, orderUID, mylog.SeverityWarn, "Error polling courier for order %s: %s", orderUID, err)
		return
	}

	// The poller may have been stopped while the fetch was in flight
	if c.Err() != nil {
		return
	}

	statusBytes, err := json.Marshal(status)
	if err != nil {
		r.logger.Log(c, orderUID, mylog.SeverityError, "Error marshalling status of order %s: %s", orderUID, err)
		return
	}

	// Last-write-wins: the cached status is replaced wholesale
	err = r.cache.Set(c, cacheKey(orderUID), statusBytes, cacheTTL)
	if err != nil {
		r.logger.Log(c, orderUID, mylog.SeverityWarn, "Error caching status of order %s: %s", orderUID, err)
	}
}

func cacheKey(orderUID string) string {
	return "tracking_" + orderUID
}
