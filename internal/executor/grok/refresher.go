package grok

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	refreshInterval      = 10 * time.Minute
	staleThreshold       = 60 * time.Minute
	interTokenSleep      = 1 * time.Second
	refresherStartDelay  = 5 * time.Second
)

// Refresher periodically polls rate limits for every account whose last
// refresh is stale, per §4.6's background refresher.
type Refresher struct {
	store  *Store
	client *Client
}

// NewRefresher constructs a Refresher.
func NewRefresher(store *Store, client *Client) *Refresher {
	return &Refresher{store: store, client: client}
}

// Run blocks until ctx is cancelled, polling on refreshInterval after an
// initial refresherStartDelay.
func (r *Refresher) Run(ctx context.Context) {
	select {
	case <-time.After(refresherStartDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	snap, err := r.store.Load()
	if err != nil {
		log.Errorf("grok: refresher load store: %v", err)
		return
	}

	now := nowMillis()
	stale := func(e TokenEntry) bool {
		return e.eligible() && now-e.LastRefreshTime >= staleThreshold.Milliseconds()
	}

	for sso, e := range snap.Normal {
		if !stale(e) {
			continue
		}
		r.refreshOne(ctx, "normal", sso)
		select {
		case <-time.After(interTokenSleep):
		case <-ctx.Done():
			return
		}
	}
	for sso, e := range snap.Super {
		if !stale(e) {
			continue
		}
		r.refreshOne(ctx, "super", sso)
		select {
		case <-time.After(interTokenSleep):
		case <-ctx.Done():
			return
		}
	}
}

// refreshOne polls both the normal (grok-3) and heavy (grok-4-heavy) rate
// limits for sso and writes the observed quotas back, per §4.6: normal
// quota comes from remainingTokens, heavy quota from remainingQueries.
func (r *Refresher) refreshOne(ctx context.Context, tier, sso string) {
	cookie := cookieHeader(sso)

	normalResult, errNormal := r.client.PollRateLimit(ctx, cookie, "grok-3")
	heavyResult, errHeavy := r.client.PollRateLimit(ctx, cookie, "grok-4-heavy")

	err := r.store.UpdateEntry(tier, sso, func(e *TokenEntry) {
		e.LastRefreshTime = nowMillis()
		if errNormal == nil {
			e.RemainingQueries = normalResult.RemainingTokens
		}
		if errHeavy == nil {
			e.HeavyRemainingQueries = heavyResult.RemainingQueries
		}
		if errNormal != nil && errHeavy != nil {
			e.FailedCount++
			e.LastFailureTime = nowMillis()
			e.LastFailureReason = errNormal.Error()
			if e.FailedCount >= 3 {
				e.Status = statusExpired
			}
		} else {
			e.FailedCount = 0
		}
	})
	if err != nil {
		log.Errorf("grok: refresher update %s token: %v", tier, err)
	}
}
