package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/obs"
	"github.com/aussiebroadwan/portalid/internal/identity/store"
)

// DefaultReviewSLA is the age after which a pending request counts as stale.
const DefaultReviewSLA = 72 * time.Hour

// HousekeepingService periodically purges long-expired tokens and reports
// the stale accreditation backlog. Token purging is opt-in: consumed and
// expired tokens are kept for audit unless TokenRetention is positive.
//
// Issued tokens are also the issuance history the RateLimiter counts, so a
// token is never purged while it may still fall inside ThrottleWindow.
type HousekeepingService struct {
	Store          store.Store
	Logger         *slog.Logger
	Clock          Clock
	Metrics        *obs.Metrics
	Interval       time.Duration
	TokenRetention time.Duration
	ThrottleWindow time.Duration
	ReviewSLA      time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:          st,
		Logger:         logger,
		Clock:          SystemClock{},
		Interval:       interval,
		ThrottleWindow: max(DefaultResetWindow, DefaultResendWindow),
		ReviewSLA:      DefaultReviewSLA,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop() to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started",
		"interval", s.Interval, "token_retention", s.TokenRetention)
}

// Stop blocks until any in-progress pass has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single pass. Each step is independent; a failure in
// one does not stop the others.
func (s *HousekeepingService) RunOnce(ctx context.Context) {
	now := s.Clock.Now()

	if s.TokenRetention > 0 {
		// expires_at >= issued_at, so this cutoff also clears the window.
		keep := max(s.TokenRetention, s.ThrottleWindow)
		n, err := s.Store.Tokens().DeleteTokensExpiredBefore(ctx, now.Add(-keep))
		if err != nil {
			s.Logger.Error("failed to purge expired tokens", "error", err)
		} else {
			s.Metrics.TokensPurged(n)
			s.Logger.Debug("purged expired tokens", "count", n)
		}
	}

	sla := s.ReviewSLA
	if sla <= 0 {
		sla = DefaultReviewSLA
	}
	stale, err := s.Store.Accreditations().CountPendingCreatedBefore(ctx, now.Add(-sla))
	if err != nil {
		s.Logger.Error("failed to count stale accreditation requests", "error", err)
		return
	}
	s.Metrics.SetStalePending(stale)
	if stale > 0 {
		s.Logger.Warn("accreditation requests awaiting review past SLA", "count", stale, "sla", sla)
	}
}
