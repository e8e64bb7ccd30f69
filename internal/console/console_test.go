package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedula/availability/internal/domain"
	"schedula/availability/internal/grid"
	"schedula/availability/internal/logging"
)

// memoryBackend keeps confirmed availability in a map.
type memoryBackend struct {
	mu      sync.Mutex
	rows    map[domain.SlotKey]bool
	batches int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{rows: map[domain.SlotKey]bool{}}
}

func (m *memoryBackend) FetchRange(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AvailabilityRecord
	for k, v := range m.rows {
		if k.Date.Before(rangeStart) || k.Date.After(rangeEnd) {
			continue
		}
		out = append(out, domain.AvailabilityRecord{Date: k.Date, SlotStart: k.Start, IsOpen: v})
	}
	return out, nil
}

func (m *memoryBackend) CommitBatch(ctx context.Context, batchID uuid.UUID, changes []domain.PendingChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	for _, c := range changes {
		m.rows[c.Key()] = c.IsOpen
	}
	return nil
}

func (m *memoryBackend) CommitOne(ctx context.Context, change domain.PendingChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[change.Key()] = change.IsOpen
	return nil
}

func newTestConsole(t *testing.T, backend grid.Backend) (*Console, *bytes.Buffer) {
	t.Helper()
	ed, err := grid.NewEditor(grid.Operator{ID: "ops", Role: grid.RoleAdmin}, backend,
		grid.WithLogger(logging.Discard()),
		grid.WithClock(func() time.Time { return time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	var out bytes.Buffer
	return New(ed, &out, time.Second, logging.Discard()), &out
}

func TestConsole_EditAndSave(t *testing.T) {
	backend := newMemoryBackend()
	c, out := newTestConsole(t, backend)

	script := strings.Join([]string{
		"month 2024-05",
		"select 2024-05-02",
		"toggle 09:00",
		"toggle 10:00",
		"pending",
		"save",
		"quit",
	}, "\n")
	require.NoError(t, c.Run(context.Background(), strings.NewReader(script)))

	text := out.String()
	assert.Contains(t, text, "2024-05-02_09:00 -> open")
	assert.Contains(t, text, "[success] 2 changes saved")
	assert.Contains(t, text, "2024-05-02 Thu  2/9  partial")
	assert.Equal(t, 1, backend.batches)
	assert.True(t, backend.rows[domain.NewSlotKey(domain.NewDate(2024, 5, 2), domain.NewSlotStart(10, 0))])
}

func TestConsole_WholeDayAndDiscard(t *testing.T) {
	backend := newMemoryBackend()
	c, out := newTestConsole(t, backend)
	ctx := context.Background()

	for _, line := range []string{"month 2024-05", "select 2024-05-03", "open"} {
		_, err := c.Exec(ctx, line)
		require.NoError(t, err, line)
	}
	assert.Contains(t, out.String(), "9/9 open")

	_, err := c.Exec(ctx, "discard")
	require.NoError(t, err)
	assert.Equal(t, 0, backend.batches)

	out.Reset()
	_, err = c.Exec(ctx, "day")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "0/9 open")
}

func TestConsole_CommitNow(t *testing.T) {
	backend := newMemoryBackend()
	c, out := newTestConsole(t, backend)
	ctx := context.Background()

	_, err := c.Exec(ctx, "select 2024-05-06")
	require.NoError(t, err)
	_, err = c.Exec(ctx, "now 11:00")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "11:00 is now open")
	assert.True(t, backend.rows[domain.NewSlotKey(domain.NewDate(2024, 5, 6), domain.NewSlotStart(11, 0))])
}

func TestConsole_Errors(t *testing.T) {
	c, _ := newTestConsole(t, newMemoryBackend())
	ctx := context.Background()

	cases := []string{
		"bogus",
		"month May",
		"toggle 09:00",
		"select 2024-05-01 extra",
	}
	for _, line := range cases {
		_, err := c.Exec(ctx, line)
		assert.Error(t, err, line)
	}

	quit, err := c.Exec(ctx, "quit")
	require.NoError(t, err)
	assert.True(t, quit)
}
