package watcher

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	api "github.com/oshokin/pingbot/internal/api/grpc/pings"
	"github.com/oshokin/pingbot/internal/logger"
)

// fakeQuerier answers with fixed data and counts calls.
type fakeQuerier struct {
	mu      sync.Mutex
	polls   int
	records []api.Record
	next    time.Time
	err     error
}

// ListPings implements querier.
func (f *fakeQuerier) ListPings(context.Context) ([]api.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++

	return f.records, f.err
}

// GetAlarm implements querier.
func (f *fakeQuerier) GetAlarm(context.Context) (time.Time, error) {
	return f.next, nil
}

// Polls returns the number of ListPings calls.
func (f *fakeQuerier) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.polls
}

// TestPoll_LogsEveryPing writes one entry per record.
func TestPoll_LogsEveryPing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := logger.ToContext(context.Background(), logger.NewWithWriter(&buf, zapcore.InfoLevel))

	q := &fakeQuerier{records: []api.Record{
		{UID: "A_B_C", Title: "Alert", City: "Harbor", Lat: "1", Lon: "2", Expiry: time.Now().Add(time.Minute).UnixMilli()},
		{UID: "D_E_F", Title: "Other", City: "Taipei", Lat: "3", Lon: "4", Expiry: time.Now().UnixMilli()},
	}}

	require.NoError(t, poll(ctx, q))

	out := buf.String()
	require.Contains(t, out, "A_B_C")
	require.Contains(t, out, "D_E_F")
	require.Contains(t, out, "disarmed")
}

// TestPoll_PropagatesErrors returns the query failure.
func TestPoll_PropagatesErrors(t *testing.T) {
	t.Parallel()

	errDown := errors.New("server down")

	require.ErrorIs(t, poll(context.Background(), &fakeQuerier{err: errDown}), errDown)
}

// TestLoop_PollsOnEveryTick polls at the interval until canceled.
func TestLoop_PollsOnEveryTick(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		q := &fakeQuerier{err: errors.New("flaky")}

		done := make(chan error, 1)

		go func() {
			done <- loop(ctx, q, DefaultPollInterval)
		}()

		time.Sleep(3*DefaultPollInterval + time.Second)
		synctest.Wait()
		require.Equal(t, 3, q.Polls())

		cancel()
		require.NoError(t, <-done)
	})
}

// TestLoadSettings_MissingFileWithAddress falls back to defaults.
func TestLoadSettings_MissingFileWithAddress(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := loadSettings(&Options{ConfigPath: missing, ServerAddress: "localhost:9090"})
	require.NoError(t, err)
	require.Positive(t, cfg.Timeout)

	_, err = loadSettings(&Options{ConfigPath: missing})
	require.Error(t, err)
}
