package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubCompleter struct {
	dates []string
	count int64
	err   error
}

func (s *stubCompleter) CompleteBefore(ctx context.Context, date string, at time.Time) (int64, error) {
	s.dates = append(s.dates, date)
	return s.count, s.err
}

type stubPurger struct{ calls int }

func (s *stubPurger) DeleteExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	s.calls++
	return 2, nil
}

func TestBookingSweeperRun(t *testing.T) {
	completer := &stubCompleter{count: 3}
	purger := &stubPurger{}
	catalog := newTestCatalog(t, testNow)
	sweeper, err := NewBookingSweeper("@every 1h", completer, purger, catalog, NewMetricsService(), nil)
	require.NoError(t, err)

	sweeper.Run(context.Background())
	assert.Equal(t, []string{"2024-05-10"}, completer.dates)
	assert.Equal(t, 1, purger.calls)
}

func TestBookingSweeperLogsFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	completer := &stubCompleter{err: errors.New("db down")}
	sweeper, err := NewBookingSweeper("@every 1h", completer, nil, newTestCatalog(t, testNow), nil, zap.New(core))
	require.NoError(t, err)

	sweeper.Run(context.Background())
	assert.Equal(t, 1, logs.FilterMessage("complete past bookings failed").Len())
}

func TestBookingSweeperRejectsBadSchedule(t *testing.T) {
	_, err := NewBookingSweeper("every now and then", &stubCompleter{}, nil, newTestCatalog(t, testNow), nil, nil)
	assert.Error(t, err)
}

func TestBookingSweeperStartStop(t *testing.T) {
	sweeper, err := NewBookingSweeper("@every 1h", &stubCompleter{}, nil, newTestCatalog(t, testNow), nil, nil)
	require.NoError(t, err)
	sweeper.Start()
	sweeper.Stop()
}
