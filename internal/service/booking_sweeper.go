package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type bookingCompleter interface {
	CompleteBefore(ctx context.Context, date string, at time.Time) (int64, error)
}

type refreshTokenPurger interface {
	DeleteExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// BookingSweeper runs periodic housekeeping: confirmed lessons whose date has
// passed become completed and expired refresh tokens are purged.
type BookingSweeper struct {
	bookings bookingCompleter
	tokens   refreshTokenPurger
	catalog  *SlotCatalog
	metrics  *MetricsService
	logger   *zap.Logger
	cron     *cron.Cron
	timeout  time.Duration
}

// NewBookingSweeper registers the sweep on schedule (standard cron spec or
// descriptor such as "@every 15m"). tokens may be nil.
func NewBookingSweeper(schedule string, bookings bookingCompleter, tokens refreshTokenPurger, catalog *SlotCatalog, metrics *MetricsService, logger *zap.Logger) (*BookingSweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BookingSweeper{
		bookings: bookings,
		tokens:   tokens,
		catalog:  catalog,
		metrics:  metrics,
		logger:   logger.With(zap.String("component", "booking_sweeper")),
		timeout:  time.Minute,
	}
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})))
	if _, err := s.cron.AddFunc(schedule, func() { s.Run(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Start schedules the sweep.
func (s *BookingSweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper scheduled")
}

// Stop halts scheduling and waits for a running sweep.
func (s *BookingSweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Run performs one sweep.
func (s *BookingSweeper) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now().UTC()
	completed, err := s.bookings.CompleteBefore(ctx, s.catalog.Today(), now)
	if err != nil {
		s.logger.Error("complete past bookings failed", zap.Error(err))
	} else if completed > 0 {
		s.metrics.BookingsSwept(completed)
		s.logger.Info("past bookings completed", zap.Int64("count", completed))
	}

	if s.tokens == nil {
		return
	}
	purged, err := s.tokens.DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		s.logger.Warn("purge refresh tokens failed", zap.Error(err))
		return
	}
	if purged > 0 {
		s.logger.Debug("expired refresh tokens purged", zap.Int64("count", purged))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
