package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Renewal failure reasons. RenewFunc implementations classify their errors
// into one of these so callers can tell a dead refresh token from a flaky
// network.
var (
	// ErrRefreshInvalid means the refresh token was rejected. Terminal:
	// the session cannot be saved and the user must sign in again.
	ErrRefreshInvalid = errors.New("session: refresh token invalid")

	// ErrRefreshNetwork means the renewal request never reached the server.
	ErrRefreshNetwork = errors.New("session: refresh endpoint unreachable")

	// ErrRefreshServer means the server failed while renewing.
	ErrRefreshServer = errors.New("session: refresh server error")

	// ErrNoRefreshToken means renewal was requested with no session present.
	ErrNoRefreshToken = errors.New("session: no refresh token")

	// ErrSessionSuperseded means the session changed (logout or re-login)
	// while a renewal was in flight; its result was discarded.
	ErrSessionSuperseded = errors.New("session: session changed during renewal")
)

// RenewFunc exchanges a refresh token for a fresh session. Implementations
// must classify failures with the sentinel errors above and must not touch
// the Store — the Refresher owns the write.
type RenewFunc func(ctx context.Context, refreshToken string) (*Session, error)

// renewalFraction is how far into the access token's lifetime the background
// renewal fires. Just under the full lifetime so a renewed token is always
// in place before the old one expires.
const renewalFraction = 0.93

// minRenewalWait keeps a nearly-expired or clock-skewed token from spinning
// the timer loop.
const minRenewalWait = 30 * time.Second

// Refresher keeps the stored session fresh. RenewNow serves on-demand
// renewal (the transport's auth-failure recovery) and Run drives the
// periodic background renewal; both funnel through a single-flight group so
// concurrent triggers share one network exchange and observe one outcome.
type Refresher struct {
	store    *Store
	manager  *Manager
	renew    RenewFunc
	fallback time.Duration
	logger   *slog.Logger

	group singleflight.Group

	// now is swapped out by tests.
	now func() time.Time
}

// NewRefresher builds a Refresher. fallback is the renewal interval used
// when the access token's expiry cannot be read from its JWT claims.
func NewRefresher(store *Store, manager *Manager, renew RenewFunc, fallback time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Refresher{
		store:    store,
		manager:  manager,
		renew:    renew,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// RenewNow performs one renewal attempt using the currently stored refresh
// token and returns the new session. Concurrent callers coalesce onto a
// single in-flight attempt. On success the new session is written to the
// Store before returning; on failure the Store is left untouched.
//
// If the stored session is replaced or cleared while the renewal is in
// flight (logout is a hard cancellation boundary), the result is discarded
// and ErrSessionSuperseded is returned instead of writing a stale session.
func (r *Refresher) RenewNow(ctx context.Context) (*Session, error) {
	result, err, shared := r.group.Do("renew", func() (any, error) {
		return r.renewOnce(ctx)
	})
	if err != nil {
		return nil, err
	}

	if shared {
		r.logger.Debug("renewal shared with concurrent caller")
	}

	sess, ok := result.(*Session)
	if !ok {
		return nil, fmt.Errorf("session: unexpected renewal result type %T", result)
	}

	return sess, nil
}

func (r *Refresher) renewOnce(ctx context.Context) (*Session, error) {
	// Read the refresh token inside the flight so a caller that queued
	// behind login/logout acts on current state.
	current, err := r.store.Get()
	if err != nil {
		return nil, err
	}

	if current == nil {
		return nil, ErrNoRefreshToken
	}

	usedToken := current.RefreshToken

	r.logger.Debug("renewing access token")

	renewed, err := r.renew(ctx, usedToken)
	if err != nil {
		r.logger.Warn("token renewal failed", "error", err)
		return nil, err
	}

	if !renewed.Valid() {
		return nil, fmt.Errorf("%w: renewal returned incomplete session", ErrRefreshServer)
	}

	// The renewal suspended on the network; re-read before writing. If the
	// stored refresh token no longer matches the one we used, a logout or
	// re-login won the race and this result must not be written back.
	latest, err := r.store.Get()
	if err != nil {
		return nil, err
	}

	if latest == nil || latest.RefreshToken != usedToken {
		r.logger.Info("discarding renewal result, session changed mid-flight")
		return nil, ErrSessionSuperseded
	}

	if err := r.store.Set(renewed); err != nil {
		return nil, err
	}

	r.logger.Info("access token renewed", "user_id", renewed.Profile.ID)

	return renewed, nil
}

// Run renews the session on a timer until ctx is canceled. The wait before
// each attempt is derived from the stored access token's real expiry
// (renewalFraction of the remaining lifetime); the configured fallback
// interval applies when the token carries no readable expiry. A renewal
// failure other than a lost race forces logout, after which the loop idles
// at the fallback interval waiting for a new login.
func (r *Refresher) Run(ctx context.Context) {
	timer := time.NewTimer(r.nextWait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		r.tick(ctx)
		timer.Reset(r.nextWait())
	}
}

// tick performs one scheduled renewal pass. Split from Run so tests can
// drive it without a real timer.
func (r *Refresher) tick(ctx context.Context) {
	current, err := r.store.Get()
	if err != nil || current == nil {
		return
	}

	if _, err := r.RenewNow(ctx); err != nil {
		if errors.Is(err, ErrSessionSuperseded) || errors.Is(err, ErrNoRefreshToken) {
			return
		}

		if ctx.Err() != nil {
			return
		}

		r.logger.Warn("background renewal failed, forcing logout", "error", err)

		if logoutErr := r.manager.Logout(); logoutErr != nil {
			r.logger.Error("forced logout failed", "error", logoutErr)
		}
	}
}

// nextWait computes the delay before the next renewal attempt.
func (r *Refresher) nextWait() time.Duration {
	sess, err := r.store.Get()
	if err != nil || sess == nil {
		return r.fallback
	}

	expiry, ok := sess.AccessExpiry()
	if !ok {
		return r.fallback
	}

	remaining := expiry.Sub(r.now())
	wait := time.Duration(float64(remaining) * renewalFraction)

	if wait < minRenewalWait {
		return minRenewalWait
	}

	return wait
}
