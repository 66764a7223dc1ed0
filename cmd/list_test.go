package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
)

func recordEvent(t *testing.T, database *db.DB, site *models.Site, eq *models.Equipment, date string, reading, liters float64) *models.FuelEvent {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	ev := &models.FuelEvent{
		SiteID:         site.ID,
		EquipmentID:    eq.ID,
		EventDate:      d,
		CurrentReading: reading,
		Liters:         liters,
		FuelType:       defaultFuelType,
		PricePerLiter:  6,
		OperatorName:   "Ana",
	}
	require.NoError(t, database.CreateFuelEvent(ev, "admin@example.com"))
	return ev
}

func eventIDs(events []models.FuelEvent) []string {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}

func TestListEventsScopeAndFilters(t *testing.T) {
	database := newTestDB(t)
	north, south, truck := seedRegistry(t, database)

	a := recordEvent(t, database, north, truck, "2024-03-01", 1000, 50)
	b := recordEvent(t, database, north, truck, "2024-03-05", 1400, 40)
	c := recordEvent(t, database, south, truck, "2024-03-10", 1800, 45)

	all, err := listEvents(database, adminAccount(), listOptions{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, eventIDs(all), "newest first")

	scoped, err := listEvents(database, operatorAccount(north.ID), listOptions{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, eventIDs(scoped))

	_, err = listEvents(database, operatorAccount(north.ID), listOptions{Site: south.Name}, testNow)
	assert.Error(t, err, "operator cannot list a site outside their permissions")

	bySite, err := listEvents(database, adminAccount(), listOptions{Site: south.Name}, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, eventIDs(bySite))

	ranged, err := listEvents(database, adminAccount(), listOptions{Since: "2024-03-02", Until: "2024-03-09"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, eventIDs(ranged))

	limited, err := listEvents(database, adminAccount(), listOptions{Since: "2024-03-01", Limit: 2}, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, b.ID}, eventIDs(limited))
}

func TestListEventsStatusFilter(t *testing.T) {
	database := newTestDB(t)
	north, _, truck := seedRegistry(t, database)
	recordEvent(t, database, north, truck, "2024-03-01", 1000, 50)

	pending, err := listEvents(database, adminAccount(), listOptions{Status: "pending"}, testNow)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	synced, err := listEvents(database, adminAccount(), listOptions{Status: "SYNCED"}, testNow)
	require.NoError(t, err)
	assert.Empty(t, synced)

	_, err = listEvents(database, adminAccount(), listOptions{Status: "done"}, testNow)
	assert.Error(t, err)
}

func TestListEventsOperatorWithoutSites(t *testing.T) {
	database := newTestDB(t)
	north, _, truck := seedRegistry(t, database)
	recordEvent(t, database, north, truck, "2024-03-01", 1000, 50)

	events, err := listEvents(database, operatorAccount(), listOptions{}, testNow)
	require.NoError(t, err)
	assert.Empty(t, events)
}
