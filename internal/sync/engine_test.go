package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/transport"
	"github.com/marcus/fueltrack/internal/transport/remote"
)

type online bool

func (o online) Online() bool { return bool(o) }

// fakeRemote is both the dialer and the transport.
type fakeRemote struct {
	mu           stdsync.Mutex
	dials        int
	lastCfg      transport.Config
	pushed       [][]transport.Record
	pushErr      error
	collectionID string
	rows         []transport.Record
	pullErr      error

	// when set, Push signals entered and waits on release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRemote) Dial(_ context.Context, cfg transport.Config) (transport.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	f.lastCfg = cfg
	return f, nil
}

func (f *fakeRemote) Push(_ context.Context, records []transport.Record) (transport.PushResult, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, records)
	return transport.PushResult{CollectionID: f.collectionID}, f.pushErr
}

func (f *fakeRemote) Pull(context.Context) ([]transport.Record, error) {
	return f.rows, f.pullErr
}

func (f *fakeRemote) pushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

func stepClock(start time.Time) func() time.Time {
	var mu stdsync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}

func newStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.Initialize(t.TempDir(), db.WithClock(stepClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func useWebhook(t *testing.T, store *db.DB) {
	t.Helper()
	require.NoError(t, store.SetSetting(db.SettingWebhookURL, "https://script.example.com/exec"))
}

func seed(t *testing.T, store *db.DB) (*models.Site, *models.Equipment) {
	t.Helper()
	site := &models.Site{Name: "North Quarry"}
	require.NoError(t, store.CreateSite(site))
	eq := &models.Equipment{Name: "Truck 12", Category: "Truck", Measurement: models.MeasureDistance}
	require.NoError(t, store.CreateEquipment(eq))
	return site, eq
}

func addEvent(t *testing.T, store *db.DB, site *models.Site, eq *models.Equipment, date string, reading, liters float64) *models.FuelEvent {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	ev := &models.FuelEvent{
		SiteID:         site.ID,
		EquipmentID:    eq.ID,
		EventDate:      d,
		CurrentReading: reading,
		Liters:         liters,
		FuelType:       "Diesel S10",
		PricePerLiter:  6,
		OperatorName:   "Ana",
	}
	require.NoError(t, store.CreateFuelEvent(ev, "ana@example.com"))
	return ev
}

func syncStatus(t *testing.T, store *db.DB, id string) models.SyncStatus {
	t.Helper()
	ev, err := store.GetFuelEvent(id)
	require.NoError(t, err)
	return ev.SyncStatus
}

func TestSyncNow_OfflineLeavesQueueUntouched(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	site, eq := seed(t, store)
	addEvent(t, store, site, eq, "2024-03-02", 1000, 50)

	remote := &fakeRemote{}
	engine := New(store, remote, online(false), Options{})

	res, err := engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "offline", res.SkipReason)
	assert.Zero(t, remote.dials)

	pending, err := store.ListPendingOutbox()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestSyncNow_UnconfiguredSkips(t *testing.T) {
	store := newStore(t)
	site, eq := seed(t, store)
	addEvent(t, store, site, eq, "2024-03-02", 1000, 50)

	remote := &fakeRemote{}
	engine := New(store, remote, online(true), Options{})

	res, err := engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unconfigured", res.SkipReason)
	assert.Zero(t, remote.dials)
}

func TestSyncNow_EmptyQueueIsNotRecorded(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)

	engine := New(store, &fakeRemote{}, online(true), Options{})
	res, err := engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "empty", res.SkipReason)

	passes, err := store.RecentDrains(10)
	require.NoError(t, err)
	assert.Empty(t, passes)
}

func TestSyncNow_PushesBatchAndMarksSynced(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	site, eq := seed(t, store)
	first := addEvent(t, store, site, eq, "2024-03-02", 1000, 50)
	second := addEvent(t, store, site, eq, "2024-03-03", 1400, 40)

	remote := &fakeRemote{}
	engine := New(store, remote, online(true), Options{})

	res, err := engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pushed)
	assert.Equal(t, 1, res.Dropped, "equipment entry is dequeued without a push")
	assert.Equal(t, transport.KindWebhook, remote.lastCfg.Kind)

	require.Len(t, remote.pushed, 1)
	batch := remote.pushed[0]
	require.Len(t, batch, 2)
	assert.Equal(t, first.ID, batch[0].ID)
	assert.Equal(t, "North Quarry", batch[0].SiteName)
	assert.Equal(t, "Truck 12", batch[1].EquipmentName)
	assert.InDelta(t, 10.0, batch[1].AverageConsumption, 1e-9)

	assert.Equal(t, models.SyncSynced, syncStatus(t, store, first.ID))
	assert.Equal(t, models.SyncSynced, syncStatus(t, store, second.ID))

	pending, err := store.ListPendingOutbox()
	require.NoError(t, err)
	assert.Empty(t, pending)

	passes, err := store.RecentDrains(10)
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, string(TriggerManual), passes[0].Trigger)
	assert.Equal(t, 2, passes[0].Pushed)
	assert.Empty(t, passes[0].Error)
}

func TestSyncNow_DeleteIsDroppedWithoutPush(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	site, eq := seed(t, store)
	ev := addEvent(t, store, site, eq, "2024-03-02", 1000, 50)

	remote := &fakeRemote{}
	engine := New(store, remote, online(true), Options{})
	_, err := engine.SyncNow(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, remote.pushCount())

	require.NoError(t, store.DeleteFuelEvent(ev.ID))

	res, err := engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Zero(t, res.Pushed)
	assert.Equal(t, 1, remote.pushCount(), "no network call for deletes")

	pending, err := store.ListPendingOutbox()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSyncNow_FailureEscalatesAtCeiling(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	site, eq := seed(t, store)
	ev := addEvent(t, store, site, eq, "2024-03-02", 1000, 50)

	pushErr := errors.New("connection reset")
	remote := &fakeRemote{pushErr: pushErr}
	engine := New(store, remote, online(true), Options{})

	for i := 1; i < DefaultMaxRetries; i++ {
		res, err := engine.SyncNow(context.Background())
		require.ErrorIs(t, err, pushErr)
		assert.Equal(t, 1, res.Failed)
		assert.Zero(t, res.Escalated)

		pending, err := store.ListPendingOutbox()
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, i, pending[0].RetryCount)
		require.NotNil(t, pending[0].LastAttempt)
		assert.Equal(t, models.SyncPending, syncStatus(t, store, ev.ID))
	}

	res, err := engine.SyncNow(context.Background())
	require.ErrorIs(t, err, pushErr)
	assert.Equal(t, 1, res.Escalated)

	pending, err := store.ListPendingOutbox()
	require.NoError(t, err)
	assert.Empty(t, pending)

	errored, err := store.ListErroredOutbox()
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, DefaultMaxRetries, errored[0].RetryCount)
	assert.Equal(t, models.SyncError, syncStatus(t, store, ev.ID))

	// Nothing left to push; the errored entry stays parked.
	res, err = engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "empty", res.SkipReason)
	assert.Equal(t, DefaultMaxRetries, remote.pushCount())

	passes, err := store.RecentDrains(10)
	require.NoError(t, err)
	require.Len(t, passes, DefaultMaxRetries)
	assert.Contains(t, passes[0].Error, "connection reset")
}

func TestSyncNow_CallerDeadlineDoesNotChargeRetries(t *testing.T) {
	store := newStore(t)
	site, eq := seed(t, store)
	ev := addEvent(t, store, site, eq, "2024-03-02", 1000, 50)

	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		time.Sleep(150 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	require.NoError(t, store.SetSetting(db.SettingWebhookURL, srv.URL))

	engine := New(store, &remote.Dialer{Timeout: time.Second}, online(true), Options{})

	for i := 0; i < DefaultMaxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		res, err := engine.SyncNow(ctx)
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, res.Failed)
		assert.Zero(t, res.Escalated)
	}
	assert.Equal(t, int32(DefaultMaxRetries), posts.Load())

	errored, err := store.ListErroredOutbox()
	require.NoError(t, err)
	assert.Empty(t, errored)

	pending, err := store.ListPendingOutbox()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ev.ID, pending[0].EntityID)
	assert.Zero(t, pending[0].RetryCount)
	assert.Nil(t, pending[0].LastAttempt)
	assert.Equal(t, models.SyncPending, syncStatus(t, store, ev.ID))

	// Given enough time the same remote takes the batch.
	res, err := engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, models.SyncSynced, syncStatus(t, store, ev.ID))
}

func TestSyncNow_PersistsCreatedSpreadsheetEvenOnFailure(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.SetSetting(db.SettingOAuthToken, `{"access_token":"ya29.test"}`))
	site, eq := seed(t, store)
	addEvent(t, store, site, eq, "2024-03-02", 1000, 50)

	remote := &fakeRemote{collectionID: "sheet-123", pushErr: errors.New("append failed")}
	engine := New(store, remote, online(true), Options{})

	res, err := engine.SyncNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, "sheet-123", res.CollectionID)
	assert.Equal(t, transport.KindAPIToken, remote.lastCfg.Kind)
	assert.Empty(t, remote.lastCfg.CollectionID)

	id, err := store.SpreadsheetID()
	require.NoError(t, err)
	assert.Equal(t, "sheet-123", id)

	remote.pushErr = nil
	remote.collectionID = ""
	_, err = engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sheet-123", remote.lastCfg.CollectionID)
}

func TestSyncNow_MalformedPayloadEscalatedImmediately(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)

	entry := &models.OutboxEntry{
		EntityType: models.EntityFuelEvent,
		EntityID:   "missing",
		Action:     models.ActionCreate,
		Payload:    "{not json",
	}
	require.NoError(t, store.EnqueueOutbox(entry))

	remote := &fakeRemote{}
	engine := New(store, remote, online(true), Options{})
	res, err := engine.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)
	assert.Zero(t, remote.pushCount())

	errored, err := store.ListErroredOutbox()
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, entry.ID, errored[0].ID)
}

func TestSyncNow_MissingReferencesUsePlaceholder(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	site, eq := seed(t, store)
	addEvent(t, store, site, eq, "2024-03-02", 1000, 50)
	require.NoError(t, store.DeleteSite(site.ID))

	remote := &fakeRemote{}
	engine := New(store, remote, online(true), Options{})
	_, err := engine.SyncNow(context.Background())
	require.NoError(t, err)

	require.Len(t, remote.pushed, 1)
	assert.Equal(t, models.Placeholder, remote.pushed[0][0].SiteName)
	assert.Equal(t, "Truck 12", remote.pushed[0][0].EquipmentName)
}

func TestSyncNow_RejectsConcurrentPass(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	site, eq := seed(t, store)
	addEvent(t, store, site, eq, "2024-03-02", 1000, 50)

	remote := &fakeRemote{entered: make(chan struct{}), release: make(chan struct{})}
	engine := New(store, remote, online(true), Options{})

	done := make(chan error, 1)
	go func() {
		_, err := engine.SyncNow(context.Background())
		done <- err
	}()

	<-remote.entered
	assert.True(t, engine.Syncing())

	_, err := engine.SyncNow(context.Background())
	assert.ErrorIs(t, err, ErrDrainInProgress)

	close(remote.release)
	require.NoError(t, <-done)
	assert.False(t, engine.Syncing())
	assert.Equal(t, 1, remote.pushCount())
}

func TestEngine_BackgroundLoopDrainsOnNotify(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)

	remote := &fakeRemote{}
	engine := New(store, remote, online(true), Options{Interval: 20 * time.Millisecond})
	store.SetEnqueueHook(engine.Notify)

	engine.Start(context.Background())
	defer engine.Stop()

	site, eq := seed(t, store)
	ev := addEvent(t, store, site, eq, "2024-03-02", 1000, 50)

	require.Eventually(t, func() bool {
		got, err := store.GetFuelEvent(ev.ID)
		return err == nil && got.SyncStatus == models.SyncSynced
	}, 5*time.Second, 10*time.Millisecond)

	engine.Stop()
	assert.False(t, engine.Syncing())
}

func TestEngine_StopIsIdempotent(t *testing.T) {
	engine := New(newStore(t), &fakeRemote{}, online(true), Options{})
	engine.Stop()
	engine.Start(context.Background())
	engine.Start(context.Background())
	engine.Stop()
	engine.Stop()
}
