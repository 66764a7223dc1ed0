package db

// SchemaVersion is the current database schema version
const SchemaVersion = 4

const schema = `
-- Sites table
CREATE TABLE IF NOT EXISTS sites (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    location TEXT DEFAULT '',
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    created_at TEXT NOT NULL
);

-- Equipment table
CREATE TABLE IF NOT EXISTS equipment (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT DEFAULT '',
    measurement TEXT NOT NULL DEFAULT 'DISTANCE',
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    created_at TEXT NOT NULL
);

-- Fuel events reference sites and equipment by id only; deleting either
-- leaves the events in place.
CREATE TABLE IF NOT EXISTS fuel_events (
    id TEXT PRIMARY KEY,
    site_id TEXT NOT NULL,
    equipment_id TEXT NOT NULL,
    event_date TEXT NOT NULL,
    previous_reading REAL,
    current_reading REAL NOT NULL DEFAULT 0,
    liters REAL NOT NULL DEFAULT 0,
    fuel_type TEXT DEFAULT '',
    price_per_liter REAL NOT NULL DEFAULT 0,
    total_cost REAL NOT NULL DEFAULT 0,
    average_consumption REAL NOT NULL DEFAULT 0,
    cost_per_unit REAL NOT NULL DEFAULT 0,
    operator_name TEXT DEFAULT '',
    invoice_number TEXT DEFAULT '',
    requisition_number TEXT DEFAULT '',
    notes TEXT DEFAULT '',
    sync_status TEXT NOT NULL DEFAULT 'PENDING',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    last_updated_by TEXT DEFAULT ''
);

-- Accounts table
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    credential TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'OPERATOR',
    permitted_sites TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL
);

-- Outbox of local mutations awaiting delivery
CREATE TABLE IF NOT EXISTS outbox (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    action TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_attempt TEXT,
    status TEXT NOT NULL DEFAULT 'PENDING'
);

-- Remote configuration and cached credentials
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Schema info
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fuel_events_equipment ON fuel_events(equipment_id, event_date, created_at);
CREATE INDEX IF NOT EXISTS idx_fuel_events_site ON fuel_events(site_id);
CREATE INDEX IF NOT EXISTS idx_fuel_events_sync ON fuel_events(sync_status);
CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, id);
`

// Migration defines a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all database migrations in order
var Migrations = []Migration{
	// Version 1 is the initial schema - no migration needed
	{
		Version:     2,
		Description: "Add sync_history table for drain pass tracking",
		SQL: `
CREATE TABLE IF NOT EXISTS sync_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trigger_kind TEXT NOT NULL,
    pushed INTEGER NOT NULL DEFAULT 0,
    dropped INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    escalated INTEGER NOT NULL DEFAULT 0,
    error TEXT DEFAULT '',
    started_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0
);
`,
	},
	{
		Version:     3,
		Description: "Index outbox by entity for sync status checks",
		SQL:         `CREATE INDEX IF NOT EXISTS idx_outbox_entity ON outbox(entity_id, status);`,
	},
	{
		Version:     4,
		Description: "Add site, identification and default fuel columns to equipment",
		SQL: `
ALTER TABLE equipment ADD COLUMN site_id TEXT DEFAULT '';
ALTER TABLE equipment ADD COLUMN plate TEXT DEFAULT '';
ALTER TABLE equipment ADD COLUMN make TEXT DEFAULT '';
ALTER TABLE equipment ADD COLUMN model TEXT DEFAULT '';
ALTER TABLE equipment ADD COLUMN year INTEGER NOT NULL DEFAULT 0;
ALTER TABLE equipment ADD COLUMN default_fuel_type TEXT DEFAULT '';
ALTER TABLE equipment ADD COLUMN updated_at TEXT NOT NULL DEFAULT '';
UPDATE equipment SET updated_at = created_at WHERE updated_at = '';
CREATE INDEX IF NOT EXISTS idx_equipment_site ON equipment(site_id);
`,
	},
}
