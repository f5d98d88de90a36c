package reader

import "errors"

var (
	// ErrDatabaseMissing is returned if no leveldb or pebble store exists at the
	// requested location. A read-only reader never creates one.
	ErrDatabaseMissing = errors.New("database not found")

	// ErrDatabaseCorrupt is returned if the store exists but its metadata is
	// damaged. The store is left untouched, no recovery is attempted.
	ErrDatabaseCorrupt = errors.New("database corrupted")

	// ErrDatabaseOpen covers every other open failure, most commonly another
	// process holding the store lock.
	ErrDatabaseOpen = errors.New("database open failed")

	// ErrBlockNotFound is returned if the block is not in the store.
	ErrBlockNotFound = errors.New("block not found")

	// ErrReceiptsNotFound is returned if the block exists but its receipts do not.
	ErrReceiptsNotFound = errors.New("receipts not found")

	// ErrBlockHashMismatch is returned if the stored header does not hash to the
	// key it was stored under.
	ErrBlockHashMismatch = errors.New("block hash mismatch")

	// ErrUnknownNetwork is returned for a network name without a bundled chain
	// configuration.
	ErrUnknownNetwork = errors.New("unknown network")
)
