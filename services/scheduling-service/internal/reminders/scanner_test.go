package reminders

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/storage"
)

var now = time.Date(2026, 1, 26, 8, 0, 0, 0, time.UTC)

type collector struct{ events []model.Event }

func (c *collector) Notify(_ context.Context, evt model.Event) { c.events = append(c.events, evt) }

func seed(t *testing.T) *storage.MemoryStore {
	t.Helper()
	s := storage.NewMemoryStore()
	ctx := context.Background()
	add := func(id string, start time.Time, status model.Status) {
		require.NoError(t, s.InsertAppointment(ctx, model.Appointment{ID: id, ProviderID: "vet-" + id, StartTime: start, Status: status, Version: 1}))
	}
	add("soon", now.Add(30*time.Minute), model.StatusConfirmed)
	add("tomorrow", now.Add(20*time.Hour), model.StatusScheduled)
	add("later", now.Add(48*time.Hour), model.StatusScheduled)
	add("cancelled", now.Add(2*time.Hour), model.StatusCancelled)
	add("past", now.Add(-time.Hour), model.StatusScheduled)
	return s
}

func TestScanSendsTightestOffsetOnce(t *testing.T) {
	out := &collector{}
	s := NewScanner(seed(t), nil, out, Config{Offsets: []time.Duration{24 * time.Hour, time.Hour}}, nil, nil)
	s.now = func() time.Time { return now }

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	reasons := map[string]string{}
	for _, e := range out.events {
		assert.Equal(t, model.EventReminder, e.Kind)
		reasons[e.Appointment.ID] = e.Reason
	}
	assert.Equal(t, map[string]string{"soon": "1h0m0s", "tomorrow": "24h0m0s"}, reasons)

	n, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "second scan is de-duplicated")

	// 19.5h later the "tomorrow" appointment enters the 1h offset.
	s.now = func() time.Time { return now.Add(19*time.Hour + 30*time.Minute) }
	n, err = s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "tomorrow", out.events[len(out.events)-1].Appointment.ID)
}

func TestRedisDeduperSharedAcrossScanners(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := seed(t)
	first, second := &collector{}, &collector{}
	a := NewScanner(store, NewRedisDeduper(rdb), first, Config{}, nil, nil)
	b := NewScanner(store, NewRedisDeduper(rdb), second, Config{}, nil, nil)
	a.now = func() time.Time { return now }
	b.now = a.now

	_, err := a.Scan(context.Background())
	require.NoError(t, err)
	_, err = b.Scan(context.Background())
	require.NoError(t, err)

	assert.Len(t, first.events, 2)
	assert.Empty(t, second.events)
	assert.True(t, mr.Exists("clinicflow:reminder:soon:1h0m0s"))
}

func TestMemoryDeduperExpires(t *testing.T) {
	d := NewMemoryDeduper()
	clock := now
	d.now = func() time.Time { return clock }

	ok, _ := d.Claim(context.Background(), "k", time.Minute)
	assert.True(t, ok)
	ok, _ = d.Claim(context.Background(), "k", time.Minute)
	assert.False(t, ok)

	clock = clock.Add(2 * time.Minute)
	ok, _ = d.Claim(context.Background(), "k", time.Minute)
	assert.True(t, ok)
}

func TestScanRemindsAgainAfterReschedule(t *testing.T) {
	store := seed(t)
	out := &collector{}
	s := NewScanner(store, nil, out, Config{Offsets: []time.Duration{24 * time.Hour, time.Hour}}, nil, nil)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := s.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, out.events, 2)

	appt, err := store.GetAppointment(ctx, "tomorrow")
	require.NoError(t, err)
	appt.StartTime = now.Add(22 * time.Hour)
	appt.Version = 2
	require.NoError(t, store.UpdateAppointment(ctx, appt, 1))

	n, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	last := out.events[len(out.events)-1]
	assert.Equal(t, "tomorrow", last.Appointment.ID)
	assert.Equal(t, now.Add(22*time.Hour), last.Appointment.StartTime)
}
