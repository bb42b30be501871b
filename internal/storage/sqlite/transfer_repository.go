package sqlite

import (
	"database/sql"
	"time"

	"github.com/chunkwire/chunkwire/internal/storage"
)

type TransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(dbConn *sql.DB) *TransferRepository {
	return &TransferRepository{db: dbConn}
}

func (r *TransferRepository) GetTransfers() ([]storage.TransferRecord, error) {
	rows, err := r.db.Query(`SELECT transfer_id, file_path, transferred_at, status, locked_by FROM transfers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []storage.TransferRecord

	for rows.Next() {
		var record storage.TransferRecord

		var transferredAt, lockedBy sql.NullString

		if err := rows.Scan(&record.TransferID, &record.FilePath, &transferredAt, &record.Status, &lockedBy); err != nil {
			return nil, err
		}

		if transferredAt.Valid {
			record.TransferredAt = transferredAt.String
		}

		if lockedBy.Valid {
			record.LockedBy = lockedBy.String
		}

		transfers = append(transfers, record)
	}

	return transfers, rows.Err()
}

// ClaimTransfer atomically sets status to 'transferring' and locked_by
// to this instance if the transfer is new, pending or failed.
func (r *TransferRepository) ClaimTransfer(transferID, filePath string) (bool, error) {
	var status string

	err := r.db.QueryRow(`SELECT status FROM transfers WHERE transfer_id = ?`, transferID).Scan(&status)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}

	if status == "completed" {
		return false, storage.ErrTransferred
	}

	res, err := r.db.Exec(`
		INSERT INTO transfers (transfer_id, file_path, transferred_at, status, locked_by)
		VALUES (?, ?, ?, 'transferring', ?)
		ON CONFLICT(transfer_id) DO UPDATE SET
			status = 'transferring',
			locked_by = excluded.locked_by
		WHERE transfers.status IN ('pending', 'failed') AND (transfers.locked_by IS NULL OR transfers.locked_by = '')
	`, transferID, filePath, time.Now().Format(time.RFC3339), storage.GenerateInstanceID())
	if err != nil {
		return false, err
	}

	affected, _ := res.RowsAffected()

	return affected > 0, nil
}

// UpdateTransferStatus sets the status for a transfer and releases the
// instance lock.
func (r *TransferRepository) UpdateTransferStatus(transferID, status string) error {
	_, err := r.db.Exec(`UPDATE transfers SET status = ?, locked_by = NULL WHERE transfer_id = ?`, status, transferID)

	return err
}
