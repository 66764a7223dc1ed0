package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/transport"
)

func remoteRow(id, siteID, equipmentID, date string, liters float64) transport.Record {
	return transport.Record{
		ID:             id,
		Date:           date,
		SiteID:         siteID,
		SiteName:       "remote site",
		EquipmentID:    equipmentID,
		EquipmentName:  "remote equipment",
		CurrentReading: 2000,
		Liters:         liters,
		FuelType:       "Diesel S10",
		PricePerLiter:  6,
		TotalCost:      liters * 6,
		OperatorName:   "Bia",
	}
}

func TestImportRemote_LocalWinsAndIsIdempotent(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	site, eq := seed(t, store)
	local := addEvent(t, store, site, eq, "2024-03-02", 1000, 50)

	remote := &fakeRemote{rows: []transport.Record{
		remoteRow(local.ID, site.ID, eq.ID, "2024-03-02", 999),
		remoteRow("remote-1", site.ID, eq.ID, "2024-03-04", 30),
		remoteRow("remote-2", "other-site", eq.ID, "05/03/2024", 20),
		remoteRow("remote-bad", site.ID, eq.ID, "someday", 10),
	}}
	engine := New(store, remote, online(true), Options{})

	res, err := engine.ImportRemote(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Fetched)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Imported)

	got, err := store.GetFuelEvent(local.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, got.Liters, 1e-9, "local row must not be overwritten")
	assert.Equal(t, models.SyncPending, got.SyncStatus)

	imported, err := store.GetFuelEvent("remote-1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, imported.SyncStatus)
	assert.Equal(t, "2024-03-04", imported.EventDate.Format("2006-01-02"))

	again, err := engine.ImportRemote(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, again.Imported)

	// Imports never enqueue anything.
	pending, err := store.ListPendingOutbox()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestImportRemote_OperatorSeesPermittedSitesOnly(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	site, eq := seed(t, store)

	remote := &fakeRemote{rows: []transport.Record{
		remoteRow("a-1", site.ID, eq.ID, "2024-03-04", 30),
		remoteRow("b-1", "site-b", eq.ID, "2024-03-04", 30),
	}}
	engine := New(store, remote, online(true), Options{})

	operator := &models.Account{Role: models.RoleOperator, PermittedSites: []string{site.ID}}
	res, err := engine.ImportRemote(context.Background(), operator)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.Visible)
	assert.Equal(t, 1, res.Imported)

	_, err = store.GetFuelEvent("b-1")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestImportRemote_Unconfigured(t *testing.T) {
	store := newStore(t)
	engine := New(store, &fakeRemote{}, online(true), Options{})

	_, err := engine.ImportRemote(context.Background(), nil)
	assert.ErrorIs(t, err, transport.ErrNotConfigured)
}

func TestImportRemote_PullError(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	engine := New(store, &fakeRemote{pullErr: transport.ErrRemoteFailure}, online(true), Options{})

	_, err := engine.ImportRemote(context.Background(), nil)
	assert.ErrorIs(t, err, transport.ErrRemoteFailure)
}

func TestExport_PushesVisibleEventsWithoutTouchingOutbox(t *testing.T) {
	store := newStore(t)
	useWebhook(t, store)
	site, eq := seed(t, store)
	other := &models.Site{Name: "Bridge 3"}
	require.NoError(t, store.CreateSite(other))

	first := addEvent(t, store, site, eq, "2024-03-02", 1000, 50)
	addEvent(t, store, site, eq, "2024-03-03", 1400, 40)
	addEvent(t, store, other, eq, "2024-03-04", 1800, 40)

	remote := &fakeRemote{}
	engine := New(store, remote, online(true), Options{})

	n, err := engine.Export(context.Background(), &models.Account{Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, remote.pushed, 1)
	assert.Equal(t, first.ID, remote.pushed[0][0].ID, "oldest event first")

	operator := &models.Account{Role: models.RoleOperator, PermittedSites: []string{other.ID}}
	n, err = engine.Export(context.Background(), operator)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.ListPendingOutbox()
	require.NoError(t, err)
	assert.Len(t, pending, 4)
	assert.Equal(t, models.SyncPending, syncStatus(t, store, first.ID))
}
