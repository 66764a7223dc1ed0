package db

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marcus/fueltrack/internal/models"
)

// stepClock returns a strictly increasing time on every call so that
// created_at ordering is deterministic within a test.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Initialize(t.TempDir(), WithClock(stepClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))))
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func day(s string) time.Time {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedRefs(t *testing.T, database *DB) (*models.Site, *models.Equipment) {
	t.Helper()
	site := &models.Site{Name: "North Quarry"}
	if err := database.CreateSite(site); err != nil {
		t.Fatalf("CreateSite: %v", err)
	}
	eq := &models.Equipment{Name: "Truck 12", Category: "Truck", Measurement: models.MeasureDistance}
	if err := database.CreateEquipment(eq); err != nil {
		t.Fatalf("CreateEquipment: %v", err)
	}
	return site, eq
}

func addEvent(t *testing.T, database *DB, site *models.Site, eq *models.Equipment, date string, reading, liters float64) *models.FuelEvent {
	t.Helper()
	ev := &models.FuelEvent{
		SiteID:         site.ID,
		EquipmentID:    eq.ID,
		EventDate:      day(date),
		CurrentReading: reading,
		Liters:         liters,
		FuelType:       "Diesel S10",
		PricePerLiter:  6,
		OperatorName:   "Ana",
	}
	if err := database.CreateFuelEvent(ev, "ana@example.com"); err != nil {
		t.Fatalf("CreateFuelEvent: %v", err)
	}
	return ev
}

func TestInitialize(t *testing.T) {
	dir := t.TempDir()
	database, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(filepath.Join(dir, dbFileName)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	v, err := database.GetSchemaVersion()
	if err != nil {
		t.Fatalf("GetSchemaVersion: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %d, want %d", v, SchemaVersion)
	}
}

func TestOpen_RequiresInitialize(t *testing.T) {
	_, err := Open(t.TempDir())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestOpen_ReopensExistingStore(t *testing.T) {
	dir := t.TempDir()
	database, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := database.CreateSite(&models.Site{Name: "Depot"}); err != nil {
		t.Fatalf("CreateSite: %v", err)
	}
	database.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reopened.Close()

	sites, err := reopened.ListSites()
	if err != nil {
		t.Fatalf("ListSites: %v", err)
	}
	if len(sites) != 1 || sites[0].Name != "Depot" {
		t.Errorf("unexpected sites after reopen: %+v", sites)
	}
}

func TestSiteLifecycle(t *testing.T) {
	database := newTestDB(t)

	site := &models.Site{Name: "Bridge 3", Location: "km 42"}
	if err := database.CreateSite(site); err != nil {
		t.Fatalf("CreateSite: %v", err)
	}
	if site.Status != models.StatusActive {
		t.Errorf("default status = %s, want ACTIVE", site.Status)
	}

	site.Status = models.StatusInactive
	if err := database.UpdateSite(site); err != nil {
		t.Fatalf("UpdateSite: %v", err)
	}
	got, err := database.GetSite(site.ID)
	if err != nil {
		t.Fatalf("GetSite: %v", err)
	}
	if got.Status != models.StatusInactive || got.Location != "km 42" {
		t.Errorf("unexpected site: %+v", got)
	}

	if err := database.DeleteSite(site.ID); err != nil {
		t.Fatalf("DeleteSite: %v", err)
	}
	if _, err := database.GetSite(site.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Sites are not replicated
	pending, _ := database.ListPendingOutbox()
	if len(pending) != 0 {
		t.Errorf("site mutations should not enqueue, got %d entries", len(pending))
	}
}

func TestEquipmentMutationsEnqueue(t *testing.T) {
	database := newTestDB(t)

	eq := &models.Equipment{Name: "Loader", Category: "Loader", Measurement: models.MeasureHours}
	if err := database.CreateEquipment(eq); err != nil {
		t.Fatalf("CreateEquipment: %v", err)
	}
	eq.Name = "Loader 2"
	if err := database.UpdateEquipment(eq); err != nil {
		t.Fatalf("UpdateEquipment: %v", err)
	}
	if err := database.DeleteEquipment(eq.ID); err != nil {
		t.Fatalf("DeleteEquipment: %v", err)
	}

	pending, err := database.ListPendingOutbox()
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	want := []models.ActionType{models.ActionCreate, models.ActionUpdate, models.ActionDelete}
	if len(pending) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(pending))
	}
	for i, e := range pending {
		if e.EntityType != models.EntityEquipment || e.EntityID != eq.ID || e.Action != want[i] {
			t.Errorf("entry %d = %+v", i, e)
		}
		if e.RetryCount != 0 || e.Status != models.OutboxPending {
			t.Errorf("entry %d should start PENDING with zero retries: %+v", i, e)
		}
	}
}

func TestEquipmentAttributesRoundTrip(t *testing.T) {
	database := newTestDB(t)
	site, _ := seedRefs(t, database)

	eq := &models.Equipment{
		SiteID:          site.ID,
		Name:            "Excavator 3",
		Plate:           "QRY-4821",
		Make:            "Volvo",
		Model:           "EC220",
		Year:            2019,
		Category:        "Excavator",
		Measurement:     models.MeasureHours,
		DefaultFuelType: "Diesel S10",
	}
	if err := database.CreateEquipment(eq); err != nil {
		t.Fatalf("CreateEquipment: %v", err)
	}
	got, err := database.GetEquipment(eq.ID)
	if err != nil {
		t.Fatalf("GetEquipment: %v", err)
	}
	if got.SiteID != site.ID || got.Plate != "QRY-4821" || got.Make != "Volvo" || got.Model != "EC220" ||
		got.Year != 2019 || got.DefaultFuelType != "Diesel S10" {
		t.Errorf("attributes not stored: %+v", got)
	}
	if !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("new equipment updated_at = %v, want created_at %v", got.UpdatedAt, got.CreatedAt)
	}

	got.Plate = "QRY-4822"
	got.SiteID = ""
	if err := database.UpdateEquipment(got); err != nil {
		t.Fatalf("UpdateEquipment: %v", err)
	}
	updated, err := database.GetEquipment(eq.ID)
	if err != nil {
		t.Fatalf("GetEquipment: %v", err)
	}
	if updated.Plate != "QRY-4822" || updated.SiteID != "" {
		t.Errorf("update not stored: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("updated_at %v should advance past created_at %v", updated.UpdatedAt, updated.CreatedAt)
	}

	pending, err := database.ListPendingOutbox()
	if err != nil {
		t.Fatalf("ListPendingOutbox: %v", err)
	}
	var payload models.Equipment
	for _, e := range pending {
		if e.EntityID == eq.ID && e.Action == models.ActionCreate {
			if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
				t.Fatalf("payload: %v", err)
			}
		}
	}
	if payload.SiteID != site.ID || payload.Plate != "QRY-4821" || payload.Year != 2019 || payload.DefaultFuelType != "Diesel S10" {
		t.Errorf("create payload missing attributes: %+v", payload)
	}
}

func TestMigrationAddsEquipmentAttributes(t *testing.T) {
	database := newTestDB(t)

	// Rebuild the equipment table as a version 3 store had it.
	_, err := database.conn.Exec(`
DROP TABLE equipment;
CREATE TABLE equipment (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT DEFAULT '',
    measurement TEXT NOT NULL DEFAULT 'DISTANCE',
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    created_at TEXT NOT NULL
);
INSERT INTO equipment (id, name, category, measurement, status, created_at)
VALUES ('eq-old', 'Old Truck', 'Truck', 'DISTANCE', 'ACTIVE', '2023-05-01T08:00:00Z');
DELETE FROM schema_info;
INSERT INTO schema_info (key, value) VALUES ('version', '3');`)
	if err != nil {
		t.Fatalf("downgrade: %v", err)
	}

	n, err := database.RunMigrations()
	if err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if n != 1 {
		t.Errorf("migrations run = %d, want 1", n)
	}
	eq, err := database.GetEquipment("eq-old")
	if err != nil {
		t.Fatalf("GetEquipment: %v", err)
	}
	if eq.Name != "Old Truck" || eq.SiteID != "" || eq.Year != 0 || eq.DefaultFuelType != "" {
		t.Errorf("migrated row = %+v", eq)
	}
	if eq.UpdatedAt.IsZero() || !eq.UpdatedAt.Equal(eq.CreatedAt) {
		t.Errorf("updated_at should be backfilled from created_at: %+v", eq)
	}
}

func TestFailedMutationLeavesNoOutboxEntry(t *testing.T) {
	database := newTestDB(t)

	err := database.UpdateEquipment(&models.Equipment{ID: "missing", Name: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	pending, _ := database.ListPendingOutbox()
	if len(pending) != 0 {
		t.Errorf("rolled back mutation left %d outbox entries", len(pending))
	}
}

func TestCreateFuelEvent_DerivesFromPreviousReading(t *testing.T) {
	database := newTestDB(t)
	site, eq := seedRefs(t, database)

	first := addEvent(t, database, site, eq, "2024-03-01", 1000, 50)
	if first.PreviousReading != nil {
		t.Errorf("first event should have no previous reading, got %v", *first.PreviousReading)
	}
	if first.TotalCost != 300 {
		t.Errorf("TotalCost = %v, want 300", first.TotalCost)
	}
	if first.AverageConsumption != 0 {
		t.Errorf("first event consumption should be undefined, got %v", first.AverageConsumption)
	}

	second := addEvent(t, database, site, eq, "2024-03-05", 1500, 50)
	if second.PreviousReading == nil || *second.PreviousReading != 1000 {
		t.Fatalf("previous reading = %v, want 1000", second.PreviousReading)
	}
	if second.AverageConsumption != 10 {
		t.Errorf("AverageConsumption = %v, want 10", second.AverageConsumption)
	}

	// Back-dated entry picks the latest event strictly before its date
	backdated := addEvent(t, database, site, eq, "2024-03-03", 1200, 20)
	if backdated.PreviousReading == nil || *backdated.PreviousReading != 1000 {
		t.Errorf("back-dated previous reading = %v, want 1000", backdated.PreviousReading)
	}

	stored, err := database.GetFuelEvent(second.ID)
	if err != nil {
		t.Fatalf("GetFuelEvent: %v", err)
	}
	if stored.SyncStatus != models.SyncPending {
		t.Errorf("new event should be PENDING, got %s", stored.SyncStatus)
	}
	if stored.LastUpdatedBy != "ana@example.com" {
		t.Errorf("LastUpdatedBy = %q", stored.LastUpdatedBy)
	}
	if !stored.EventDate.Equal(day("2024-03-05")) {
		t.Errorf("EventDate = %v", stored.EventDate)
	}
}

func TestCreateFuelEvent_SameDayUsesCreationOrder(t *testing.T) {
	database := newTestDB(t)
	site, eq := seedRefs(t, database)

	addEvent(t, database, site, eq, "2024-03-01", 100, 10)
	second := addEvent(t, database, site, eq, "2024-03-01", 180, 10)
	if second.PreviousReading == nil || *second.PreviousReading != 100 {
		t.Errorf("same-day previous reading = %v, want 100", second.PreviousReading)
	}
}

func TestUpdateFuelEvent_ReturnsToPending(t *testing.T) {
	database := newTestDB(t)
	site, eq := seedRefs(t, database)
	ev := addEvent(t, database, site, eq, "2024-03-01", 1000, 50)

	if _, err := database.Conn().Exec(`UPDATE fuel_events SET sync_status = 'SYNCED' WHERE id = ?`, ev.ID); err != nil {
		t.Fatalf("force synced: %v", err)
	}

	ev.Liters = 40
	if err := database.UpdateFuelEvent(ev, "bruno@example.com"); err != nil {
		t.Fatalf("UpdateFuelEvent: %v", err)
	}
	got, _ := database.GetFuelEvent(ev.ID)
	if got.SyncStatus != models.SyncPending {
		t.Errorf("sync status = %s, want PENDING", got.SyncStatus)
	}
	if got.TotalCost != 240 {
		t.Errorf("TotalCost = %v, want 240", got.TotalCost)
	}
	if got.LastUpdatedBy != "bruno@example.com" {
		t.Errorf("LastUpdatedBy = %q", got.LastUpdatedBy)
	}

	pending, _ := database.ListPendingOutbox()
	var updates int
	for _, e := range pending {
		if e.EntityID == ev.ID && e.Action == models.ActionUpdate {
			updates++
		}
	}
	if updates != 1 {
		t.Errorf("expected one UPDATE entry, got %d", updates)
	}
}

func TestDeleteEquipment_KeepsFuelEvents(t *testing.T) {
	database := newTestDB(t)
	site, eq := seedRefs(t, database)
	ev := addEvent(t, database, site, eq, "2024-03-01", 1000, 50)

	if err := database.DeleteEquipment(eq.ID); err != nil {
		t.Fatalf("DeleteEquipment: %v", err)
	}
	if err := database.DeleteSite(site.ID); err != nil {
		t.Fatalf("DeleteSite: %v", err)
	}
	if _, err := database.GetFuelEvent(ev.ID); err != nil {
		t.Errorf("orphaned event should remain: %v", err)
	}
}

func TestListFuelEvents_Filters(t *testing.T) {
	database := newTestDB(t)
	site, eq := seedRefs(t, database)
	other := &models.Site{Name: "South Yard"}
	if err := database.CreateSite(other); err != nil {
		t.Fatalf("CreateSite: %v", err)
	}

	addEvent(t, database, site, eq, "2024-03-01", 100, 10)
	addEvent(t, database, other, eq, "2024-03-02", 200, 10)

	all, err := database.ListFuelEvents(FuelEventFilter{})
	if err != nil {
		t.Fatalf("ListFuelEvents: %v", err)
	}
	if len(all) != 2 || all[0].SiteID != other.ID {
		t.Errorf("expected newest first across all sites, got %+v", all)
	}

	scoped, _ := database.ListFuelEvents(FuelEventFilter{SiteIDs: []string{site.ID}})
	if len(scoped) != 1 || scoped[0].SiteID != site.ID {
		t.Errorf("site filter returned %+v", scoped)
	}

	none, _ := database.ListFuelEvents(FuelEventFilter{SiteIDs: []string{}})
	if len(none) != 0 {
		t.Errorf("empty site set should match nothing, got %d", len(none))
	}
}

func TestCreateFuelEvent_Validation(t *testing.T) {
	database := newTestDB(t)
	err := database.CreateFuelEvent(&models.FuelEvent{EquipmentID: "x", EventDate: day("2024-01-01")}, "")
	if err == nil {
		t.Fatal("expected error for missing site")
	}
	pending, _ := database.ListPendingOutbox()
	if len(pending) != 0 {
		t.Errorf("invalid event should not enqueue")
	}
}
