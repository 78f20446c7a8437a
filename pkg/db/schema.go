// Package db provides the SQLite ledger backend and the export history that
// tracks which transactions have been written to Beancount.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Accounts. Balances are exact decimal strings; the CHECK is the
-- non-negative balance constraint.
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_num TEXT NOT NULL UNIQUE,
    balance TEXT NOT NULL CHECK (CAST(balance AS REAL) >= 0),
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Transaction records
CREATE TABLE IF NOT EXISTS transactions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,               -- UUID
    status TEXT NOT NULL CHECK (status IN ('PENDING', 'SUCCESS', 'FAILED')),
    error_reason TEXT NOT NULL DEFAULT '',
    transaction_date TEXT NOT NULL         -- fixed-width RFC 3339, UTC
);

CREATE INDEX IF NOT EXISTS idx_transactions_status
    ON transactions(status);

CREATE INDEX IF NOT EXISTS idx_transactions_date
    ON transactions(transaction_date);

-- Entries keep their position so they are applied and reported in order.
CREATE TABLE IF NOT EXISTS txn_entries (
    txn_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    account_num TEXT NOT NULL,
    amount TEXT NOT NULL,
    PRIMARY KEY (txn_id, position)
);

-- Export history table
-- Tracks which ledger transactions have been exported to Beancount
CREATE TABLE IF NOT EXISTS export_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    txn_id TEXT NOT NULL UNIQUE,           -- ledger transaction id
    transaction_date TEXT NOT NULL,        -- YYYY-MM-DD
    amount TEXT NOT NULL,                  -- gross amount moved
    beancount_file TEXT NOT NULL,          -- Path to Beancount file
    exported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_export_history_date
    ON export_history(transaction_date);

-- Export metadata table
CREATE TABLE IF NOT EXISTS export_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InitializeSchema creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
