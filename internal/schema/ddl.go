package schema

// Layout DDL for each data-transforming step. Tables whose shape changes are
// dropped and recreated; the store writes every row of the new snapshot back
// with its original local id.

var identityBackfillDDL = []string{
	`DROP TABLE members`,
	`CREATE TABLE members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		member_key TEXT,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		plan_category TEXT NOT NULL,
		price REAL NOT NULL DEFAULT 0,
		is_promo INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		start_at TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX idx_members_member_key ON members(member_key)`,
	`CREATE INDEX idx_members_name ON members(name)`,
	`CREATE INDEX idx_members_phone ON members(phone)`,
	`DROP TABLE attendances`,
	`CREATE TABLE attendances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		legacy_ref INTEGER NOT NULL DEFAULT 0,
		member_key TEXT,
		checked_in_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX idx_attendances_checked_in_at ON attendances(checked_in_at)`,
	`CREATE INDEX idx_attendances_member_key ON attendances(member_key)`,
}

var staffAttributionDDL = []string{
	`ALTER TABLE members ADD COLUMN registered_by TEXT`,
	`ALTER TABLE members ADD COLUMN registered_by_name TEXT`,
	`CREATE TABLE staff (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		staff_key TEXT,
		name TEXT NOT NULL,
		username TEXT NOT NULL,
		credential TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE UNIQUE INDEX idx_staff_staff_key ON staff(staff_key)`,
	`CREATE UNIQUE INDEX idx_staff_username ON staff(username)`,
}

var normalizePlansDDL = []string{
	`DROP TABLE members`,
	`CREATE TABLE members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		member_key TEXT,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		deleted INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE UNIQUE INDEX idx_members_member_key ON members(member_key)`,
	`CREATE INDEX idx_members_name ON members(name)`,
	`CREATE INDEX idx_members_phone ON members(phone)`,
	`CREATE TABLE member_plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sync_key TEXT,
		member_key TEXT NOT NULL,
		plan_category TEXT NOT NULL,
		plan_days INTEGER NOT NULL DEFAULT 0,
		catalog_id TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		is_promo INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		start_at TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 1,
		registered_by TEXT NOT NULL DEFAULT '',
		registered_by_name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX idx_member_plans_sync_key ON member_plans(sync_key)`,
	`CREATE INDEX idx_member_plans_member_key ON member_plans(member_key)`,
	`DROP TABLE attendances`,
	`CREATE TABLE attendances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		legacy_ref INTEGER NOT NULL DEFAULT 0,
		member_key TEXT,
		plan_key TEXT,
		checked_in_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		dirty INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX idx_attendances_checked_in_at ON attendances(checked_in_at)`,
	`CREATE INDEX idx_attendances_member_key_checked_in_at ON attendances(member_key, checked_in_at)`,
}
