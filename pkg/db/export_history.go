package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Metadata keys.
const (
	MetaLastExportTo = "last_export_to"
)

// ExportRecord represents an export history record.
type ExportRecord struct {
	ID              int64
	TxnID           string
	TransactionDate string
	Amount          string
	BeancountFile   string
	ExportedAt      time.Time
}

// ExportHistory manages export history operations.
type ExportHistory struct {
	conn *Connection
}

// NewExportHistory creates a new ExportHistory instance.
func NewExportHistory(conn *Connection) *ExportHistory {
	return &ExportHistory{conn: conn}
}

// RecordExport records an export. Re-exporting the same transaction updates
// the existing row.
func (h *ExportHistory) RecordExport(record ExportRecord) error {
	query := `
		INSERT INTO export_history (txn_id, transaction_date, amount, beancount_file)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(txn_id) DO UPDATE SET
			transaction_date = excluded.transaction_date,
			amount = excluded.amount,
			beancount_file = excluded.beancount_file,
			exported_at = CURRENT_TIMESTAMP
	`

	_, err := h.conn.Exec(query,
		record.TxnID,
		record.TransactionDate,
		record.Amount,
		record.BeancountFile,
	)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}

	return nil
}

// GetExportRecord retrieves an export record by transaction id. It returns
// nil when the transaction has not been exported.
func (h *ExportHistory) GetExportRecord(txnID string) (*ExportRecord, error) {
	query := `
		SELECT id, txn_id, transaction_date, amount, beancount_file, exported_at
		FROM export_history
		WHERE txn_id = ?
	`

	var record ExportRecord
	err := h.conn.QueryRow(query, txnID).Scan(
		&record.ID,
		&record.TxnID,
		&record.TransactionDate,
		&record.Amount,
		&record.BeancountFile,
		&record.ExportedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export record: %w", err)
	}

	return &record, nil
}

// GetExportedIDs returns the set of exported transaction ids, for bulk
// filtering.
func (h *ExportHistory) GetExportedIDs() (map[string]bool, error) {
	rows, err := h.conn.Query(`SELECT txn_id FROM export_history`)
	if err != nil {
		return nil, fmt.Errorf("failed to get exported IDs: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transaction ID: %w", err)
		}
		ids[id] = true
	}

	return ids, rows.Err()
}

// DeleteExportRecord deletes an export record so the transaction is exported
// again on the next run.
func (h *ExportHistory) DeleteExportRecord(txnID string) (bool, error) {
	result, err := h.conn.Exec(`DELETE FROM export_history WHERE txn_id = ?`, txnID)
	if err != nil {
		return false, fmt.Errorf("failed to delete export record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// Stats represents export statistics.
type Stats struct {
	TotalExported int
	FirstDate     sql.NullString
	LastDate      sql.NullString
	LastExport    sql.NullString
}

// GetStats retrieves export statistics.
func (h *ExportHistory) GetStats() (*Stats, error) {
	var stats Stats

	err := h.conn.QueryRow(`
		SELECT COUNT(*), MIN(transaction_date), MAX(transaction_date), MAX(exported_at)
		FROM export_history
	`).Scan(&stats.TotalExported, &stats.FirstDate, &stats.LastDate, &stats.LastExport)
	if err != nil {
		return nil, fmt.Errorf("failed to get export stats: %w", err)
	}

	return &stats, nil
}

// GetMetadata retrieves a metadata value. A missing key yields "".
func (h *ExportHistory) GetMetadata(key string) (string, error) {
	var value string
	err := h.conn.QueryRow(`SELECT value FROM export_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// SetMetadata sets a metadata value.
func (h *ExportHistory) SetMetadata(key, value string) error {
	query := `
		INSERT INTO export_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := h.conn.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}
