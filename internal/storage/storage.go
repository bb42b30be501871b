// Package storage tracks per-file transfer state so that completed
// transfers are not repeated and multiple agent instances do not claim
// the same file.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strconv"
)

// ErrTransferred signals that the file was already transferred to
// completion.
var ErrTransferred = errors.New("transfer already completed")

// TransferRecord is one tracked file transfer.
type TransferRecord struct {
	TransferID    string
	FilePath      string
	TransferredAt string
	Status        string
	LockedBy      string
}

type TransferReadRepository interface {
	GetTransfers() ([]TransferRecord, error)
}

type TransferWriteRepository interface {
	// ClaimTransfer atomically claims a transfer for this instance.
	// Returns false when another instance holds it and ErrTransferred
	// when it already completed.
	ClaimTransfer(transferID, filePath string) (bool, error)
	UpdateTransferStatus(transferID, status string) error
}

type TransferRepository interface {
	TransferReadRepository
	TransferWriteRepository
}

// GenerateInstanceID returns a unique string for this process
// (hostname+pid+random).
func GenerateInstanceID() string {
	host, _ := os.Hostname()
	pid := os.Getpid()
	rnd := make([]byte, 4)
	_, _ = rand.Read(rnd)

	return host + "-" + strconv.Itoa(pid) + "-" + hex.EncodeToString(rnd)
}
