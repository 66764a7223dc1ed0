package models

import (
	"slices"
	"time"
)

// Placeholder is shown where a referenced site or equipment cannot be resolved.
const Placeholder = "N/A"

// SyncStatus represents the remote delivery state of a fuel event
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncError   SyncStatus = "ERROR"
)

// OutboxStatus represents the state of an outbox entry. Delivered entries
// are removed from the queue, so there is no "done" state.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxError   OutboxStatus = "ERROR"
)

// EntityType names the kind of record an outbox entry refers to
type EntityType string

const (
	EntityEquipment EntityType = "EQUIPMENT"
	EntityFuelEvent EntityType = "FUELEVENT"
)

// ActionType represents the mutation captured by an outbox entry
type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionUpdate ActionType = "UPDATE"
	ActionDelete ActionType = "DELETE"
)

// Role represents an account's authorization level
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOperator Role = "OPERATOR"
)

// MeasurementKind tells how an equipment's meter advances
type MeasurementKind string

const (
	MeasureDistance MeasurementKind = "DISTANCE" // odometer, km
	MeasureHours    MeasurementKind = "HOURS"    // hour meter
)

// ActiveStatus marks sites and equipment that accept new records
type ActiveStatus string

const (
	StatusActive   ActiveStatus = "ACTIVE"
	StatusInactive ActiveStatus = "INACTIVE"
)

// IsValidRole checks if a role string is known
func IsValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleOperator
}

// IsValidMeasurement checks if a measurement kind is known
func IsValidMeasurement(m MeasurementKind) bool {
	return m == MeasureDistance || m == MeasureHours
}

// IsValidActiveStatus checks if an active status is known
func IsValidActiveStatus(s ActiveStatus) bool {
	return s == StatusActive || s == StatusInactive
}

// Site is a physical work location
type Site struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Location  string       `json:"location,omitempty"`
	Status    ActiveStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// Equipment is a vehicle or machine that consumes fuel. An empty SiteID
// means the equipment is not tied to one site.
type Equipment struct {
	ID              string          `json:"id"`
	SiteID          string          `json:"site_id,omitempty"`
	Name            string          `json:"name"`
	Plate           string          `json:"plate,omitempty"`
	Make            string          `json:"make,omitempty"`
	Model           string          `json:"model,omitempty"`
	Year            int             `json:"year,omitempty"`
	Category        string          `json:"category"`
	Measurement     MeasurementKind `json:"measurement"`
	DefaultFuelType string          `json:"default_fuel_type,omitempty"`
	Status          ActiveStatus    `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FuelEvent is a single refueling of one equipment at one site
type FuelEvent struct {
	ID                 string     `json:"id"`
	SiteID             string     `json:"site_id"`
	EquipmentID        string     `json:"equipment_id"`
	EventDate          time.Time  `json:"event_date"`
	PreviousReading    *float64   `json:"previous_reading,omitempty"`
	CurrentReading     float64    `json:"current_reading"`
	Liters             float64    `json:"liters"`
	FuelType           string     `json:"fuel_type"`
	PricePerLiter      float64    `json:"price_per_liter"`
	TotalCost          float64    `json:"total_cost"`
	AverageConsumption float64    `json:"average_consumption"`
	CostPerUnit        float64    `json:"cost_per_unit"`
	OperatorName       string     `json:"operator_name"`
	InvoiceNumber      string     `json:"invoice_number,omitempty"`
	RequisitionNumber  string     `json:"requisition_number,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	SyncStatus         SyncStatus `json:"sync_status"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastUpdatedBy      string     `json:"last_updated_by,omitempty"`
}

// Distance returns the meter advance since the previous reading, or 0
// when there is no predecessor.
func (f *FuelEvent) Distance() float64 {
	if f.PreviousReading == nil {
		return 0
	}
	return f.CurrentReading - *f.PreviousReading
}

// Account is a locally stored user
type Account struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Credential     string    `json:"-"`
	Role           Role      `json:"role"`
	PermittedSites []string  `json:"permitted_sites"`
	CreatedAt      time.Time `json:"created_at"`
}

// CanAccessSite reports whether the account may see records for a site.
// Admins without an explicit site list see everything.
func (a *Account) CanAccessSite(siteID string) bool {
	if a.Role == RoleAdmin && len(a.PermittedSites) == 0 {
		return true
	}
	return slices.Contains(a.PermittedSites, siteID)
}

// IsAdmin reports whether the account has the ADMIN role
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// OutboxEntry is a durable record of one local mutation awaiting delivery
type OutboxEntry struct {
	ID          int64        `json:"id"`
	EntityType  EntityType   `json:"entity_type"`
	EntityID    string       `json:"entity_id"`
	Action      ActionType   `json:"action"`
	Payload     string       `json:"payload"`
	CreatedAt   time.Time    `json:"created_at"`
	RetryCount  int          `json:"retry_count"`
	LastAttempt *time.Time   `json:"last_attempt,omitempty"`
	Status      OutboxStatus `json:"status"`
}

// DrainPass summarizes one executed sync pass
type DrainPass struct {
	ID        int64         `json:"id"`
	Trigger   string        `json:"trigger"`
	Pushed    int           `json:"pushed"`
	Dropped   int           `json:"dropped"`
	Failed    int           `json:"failed"`
	Escalated int           `json:"escalated"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
