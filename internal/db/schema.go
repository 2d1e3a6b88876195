package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// Prices are stored as canonical decimal strings and summed in Go; SQLite
// would otherwise coerce them to floating point.
const schema = `
CREATE TABLE IF NOT EXISTS members (
    id         INTEGER PRIMARY KEY,
    barcode    TEXT NOT NULL UNIQUE,
    nick       TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id         INTEGER PRIMARY KEY,
    barcode    TEXT NOT NULL,
    price      TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    UNIQUE (barcode, price)
);

CREATE INDEX IF NOT EXISTS idx_items_barcode ON items(barcode, created_at, id);

CREATE TABLE IF NOT EXISTS transactions (
    id                INTEGER PRIMARY KEY,
    item_id           INTEGER NOT NULL REFERENCES items(id),
    member_id         INTEGER NOT NULL REFERENCES members(id),
    count             INTEGER NOT NULL,
    transaction_price TEXT NOT NULL,
    archived          INTEGER NOT NULL DEFAULT 0 CHECK (archived IN (0, 1)),
    created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_member ON transactions(member_id, archived);
CREATE INDEX IF NOT EXISTS idx_transactions_item ON transactions(item_id, archived);

CREATE TABLE IF NOT EXISTS item_pictures (
    barcode    TEXT PRIMARY KEY,
    image      BLOB NOT NULL,
    image_mime TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'bartender' CHECK (role IN ('admin', 'treasurer', 'bartender')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
