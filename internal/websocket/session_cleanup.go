package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/domain/repositories"
)

const (
	defaultCleanupInterval = 30 * time.Minute
	initialCleanupDelay    = time.Minute
	cleanupTimeout         = 5 * time.Minute
)

// SessionCleanupService expires idle interpreter sessions in the background
type SessionCleanupService struct {
	sessionRepo repositories.SessionRepository
	interval    time.Duration
	delay       time.Duration
	logger      *zap.Logger
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewSessionCleanupService creates a cleanup service running every interval.
// A non-positive interval uses the 30 minute default.
func NewSessionCleanupService(sessionRepo repositories.SessionRepository, interval time.Duration, logger *zap.Logger) *SessionCleanupService {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	delay := initialCleanupDelay
	if interval < delay {
		delay = interval
	}
	return &SessionCleanupService{
		sessionRepo: sessionRepo,
		interval:    interval,
		delay:       delay,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *SessionCleanupService) Start() {
	s.wg.Add(1)
	go s.cleanupLoop()
	s.logger.Info("Session cleanup service started", zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service and waits for a running pass
func (s *SessionCleanupService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.logger.Info("Session cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *SessionCleanupService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	initialTimer := time.NewTimer(s.delay)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.RunCleanup()
		case <-ticker.C:
			s.RunCleanup()
		}
	}
}

// RunCleanup performs one pass and returns how many sessions were expired.
func (s *SessionCleanupService) RunCleanup() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	expired, err := s.sessionRepo.ExpireSessions(ctx)
	if err != nil {
		s.logger.Error("Failed to expire sessions", zap.Error(err))
		return 0, err
	}

	if expired > 0 {
		s.logger.Info("Session cleanup completed", zap.Int("expired", expired))
	} else {
		s.logger.Debug("Session cleanup completed, nothing to expire")
	}
	return expired, nil
}
