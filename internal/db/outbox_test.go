package db

import (
	"sync/atomic"
	"testing"

	"github.com/marcus/fueltrack/internal/models"
)

func TestEnqueueOutbox_FIFO(t *testing.T) {
	database := newTestDB(t)

	for _, id := range []string{"a", "b", "c"} {
		e := &models.OutboxEntry{EntityType: models.EntityFuelEvent, EntityID: id, Action: models.ActionCreate, Payload: "{}"}
		if err := database.EnqueueOutbox(e); err != nil {
			t.Fatalf("EnqueueOutbox: %v", err)
		}
		if e.ID == 0 {
			t.Error("EnqueueOutbox should assign an id")
		}
	}

	pending, err := database.ListPendingOutbox()
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(pending))
	}
	for i, want := range []string{"a", "b", "c"} {
		if pending[i].EntityID != want {
			t.Errorf("position %d = %s, want %s", i, pending[i].EntityID, want)
		}
	}

	if err := database.DequeueOutbox(pending[1].ID); err != nil {
		t.Fatalf("DequeueOutbox: %v", err)
	}
	pending, _ = database.ListPendingOutbox()
	if len(pending) != 2 || pending[0].EntityID != "a" || pending[1].EntityID != "c" {
		t.Errorf("unexpected queue after dequeue: %+v", pending)
	}
}

func TestEnqueueHook_FiresAfterCommit(t *testing.T) {
	database := newTestDB(t)

	var calls atomic.Int32
	database.SetEnqueueHook(func() { calls.Add(1) })

	site, eq := seedRefs(t, database)
	addEvent(t, database, site, eq, "2024-03-01", 100, 10)

	// Equipment create + fuel event create; sites do not enqueue
	if got := calls.Load(); got != 2 {
		t.Errorf("hook calls = %d, want 2", got)
	}

	if err := database.UpdateEquipment(&models.Equipment{ID: "missing"}); err == nil {
		t.Fatal("expected not found")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("failed mutation should not fire the hook, calls = %d", got)
	}
}

func TestCompleteFuelBatch_MarksSynced(t *testing.T) {
	database := newTestDB(t)
	site, eq := seedRefs(t, database)
	ev := addEvent(t, database, site, eq, "2024-03-01", 100, 10)

	batch := fuelEntries(t, database)
	if err := database.CompleteFuelBatch(batch); err != nil {
		t.Fatalf("CompleteFuelBatch: %v", err)
	}

	got, _ := database.GetFuelEvent(ev.ID)
	if got.SyncStatus != models.SyncSynced {
		t.Errorf("sync status = %s, want SYNCED", got.SyncStatus)
	}
	if remaining := fuelEntries(t, database); len(remaining) != 0 {
		t.Errorf("batch entries should be dequeued, %d remain", len(remaining))
	}
}

func TestCompleteFuelBatch_EditDuringPushStaysPending(t *testing.T) {
	database := newTestDB(t)
	site, eq := seedRefs(t, database)
	ev := addEvent(t, database, site, eq, "2024-03-01", 100, 10)

	// Snapshot taken, then the event is edited before the push completes
	batch := fuelEntries(t, database)
	ev.Notes = "edited while offline"
	if err := database.UpdateFuelEvent(ev, "ana@example.com"); err != nil {
		t.Fatalf("UpdateFuelEvent: %v", err)
	}

	if err := database.CompleteFuelBatch(batch); err != nil {
		t.Fatalf("CompleteFuelBatch: %v", err)
	}

	got, _ := database.GetFuelEvent(ev.ID)
	if got.SyncStatus != models.SyncPending {
		t.Errorf("sync status = %s, want PENDING while the UPDATE is queued", got.SyncStatus)
	}
	remaining := fuelEntries(t, database)
	if len(remaining) != 1 || remaining[0].Action != models.ActionUpdate {
		t.Errorf("the later UPDATE should stay queued, got %+v", remaining)
	}
}

func TestFailFuelBatch_EscalatesAtCeiling(t *testing.T) {
	database := newTestDB(t)
	site, eq := seedRefs(t, database)
	ev := addEvent(t, database, site, eq, "2024-03-01", 100, 10)

	const ceiling = 5
	for attempt := 1; attempt <= ceiling; attempt++ {
		batch := fuelEntries(t, database)
		if len(batch) != 1 {
			t.Fatalf("attempt %d: expected 1 pending entry, got %d", attempt, len(batch))
		}
		escalated, err := database.FailFuelBatch(batch, ceiling)
		if err != nil {
			t.Fatalf("FailFuelBatch: %v", err)
		}
		if attempt < ceiling && escalated != 0 {
			t.Fatalf("attempt %d escalated early", attempt)
		}
		if attempt == ceiling && escalated != 1 {
			t.Fatalf("attempt %d should escalate, got %d", attempt, escalated)
		}
	}

	if pending := fuelEntries(t, database); len(pending) != 0 {
		t.Errorf("escalated entry should leave the pending queue")
	}
	errored, err := database.ListErroredOutbox()
	if err != nil {
		t.Fatalf("ListErroredOutbox: %v", err)
	}
	if len(errored) != 1 || errored[0].RetryCount != ceiling || errored[0].LastAttempt == nil {
		t.Fatalf("unexpected errored entries: %+v", errored)
	}
	got, _ := database.GetFuelEvent(ev.ID)
	if got.SyncStatus != models.SyncError {
		t.Errorf("sync status = %s, want ERROR", got.SyncStatus)
	}

	// Manual intervention puts it back in play
	n, err := database.RequeueErrored()
	if err != nil {
		t.Fatalf("RequeueErrored: %v", err)
	}
	if n != 1 {
		t.Errorf("requeued %d, want 1", n)
	}
	got, _ = database.GetFuelEvent(ev.ID)
	if got.SyncStatus != models.SyncPending {
		t.Errorf("requeued event status = %s, want PENDING", got.SyncStatus)
	}
	batch := fuelEntries(t, database)
	if len(batch) != 1 || batch[0].RetryCount != 0 {
		t.Errorf("requeued entry should restart at 0 retries: %+v", batch)
	}
}

func TestEscalateAndPurge(t *testing.T) {
	database := newTestDB(t)
	site, eq := seedRefs(t, database)
	ev := addEvent(t, database, site, eq, "2024-03-01", 100, 10)

	if err := database.EscalateOutbox(fuelEntries(t, database)); err != nil {
		t.Fatalf("EscalateOutbox: %v", err)
	}
	counts, err := database.CountOutbox()
	if err != nil {
		t.Fatalf("CountOutbox: %v", err)
	}
	if counts[models.OutboxError] != 1 {
		t.Errorf("error count = %d, want 1", counts[models.OutboxError])
	}

	n, err := database.PurgeErrored()
	if err != nil || n != 1 {
		t.Fatalf("PurgeErrored = %d, %v", n, err)
	}
	got, _ := database.GetFuelEvent(ev.ID)
	if got.SyncStatus != models.SyncError {
		t.Errorf("purge should leave the event in ERROR, got %s", got.SyncStatus)
	}
}

func fuelEntries(t *testing.T, database *DB) []models.OutboxEntry {
	t.Helper()
	pending, err := database.ListPendingOutbox()
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	var out []models.OutboxEntry
	for _, e := range pending {
		if e.EntityType == models.EntityFuelEvent {
			out = append(out, e)
		}
	}
	return out
}
