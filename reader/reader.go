// Package reader reads the hydrated receipts of a block straight out of a
// go-ethereum chain database, without a running node.
package reader

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/params"

	"github.com/morph-l2/chaindb-reader/receipts"
)

var (
	readTimer = metrics.NewRegisteredTimer("rdb/receipts/read", nil)

	openFailureCounter    = metrics.NewRegisteredCounter("rdb/receipts/failure/open", nil)
	missingFailureCounter = metrics.NewRegisteredCounter("rdb/receipts/failure/missing", nil)
	hydrateFailureCounter = metrics.NewRegisteredCounter("rdb/receipts/failure/hydrate", nil)
)

// Reader reads receipts from chain databases. Every call opens the database
// read-only and closes it again before returning, so a Reader is safe for
// concurrent use as long as the storage engine allows concurrent readers.
type Reader struct {
	cfg   Config
	chain *params.ChainConfig
}

// New creates a reader with the chain configuration selected by cfg.
func New(cfg Config) (*Reader, error) {
	chain, err := cfg.ChainConfig()
	if err != nil {
		return nil, err
	}
	return NewWithChain(cfg, chain), nil
}

// NewWithChain creates a reader deriving transaction signers from chain.
func NewWithChain(cfg Config, chain *params.ChainConfig) *Reader {
	return &Reader{cfg: cfg, chain: chain}
}

// ChainConfig returns the chain configuration the reader was created with.
func (r *Reader) ChainConfig() *params.ChainConfig {
	return r.chain
}

// ReadReceipts returns the hydrated receipts of the block with the given hash,
// in transaction order. Either every transaction of the block is hydrated or
// an error is returned.
//
// The hash is not checked against the canonical chain: a block that was
// reorganised out is still served as long as it is stored.
func (r *Reader) ReadReceipts(hash common.Hash, path string) ([]*receipts.Receipt, error) {
	defer func(start time.Time) { readTimer.UpdateSince(start) }(time.Now())

	hydrated, err := r.readReceipts(hash, path)
	if err != nil {
		switch {
		case errors.Is(err, ErrBlockNotFound), errors.Is(err, ErrReceiptsNotFound):
			missingFailureCounter.Inc(1)
		case errors.Is(err, receipts.ErrSenderRecovery), errors.Is(err, receipts.ErrReceiptCountMismatch):
			hydrateFailureCounter.Inc(1)
		default:
			openFailureCounter.Inc(1)
		}
		log.Warn("Failed to read block receipts", "hash", hash, "db", path, "err", err)
		return nil, err
	}
	log.Debug("Read block receipts", "hash", hash, "receipts", len(hydrated))
	return hydrated, nil
}

func (r *Reader) readReceipts(hash common.Hash, path string) ([]*receipts.Receipt, error) {
	db, err := openDatabase(path, &r.cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	number := rawdb.ReadHeaderNumber(db, hash)
	if number == nil {
		return nil, fmt.Errorf("%w: %x", ErrBlockNotFound, hash)
	}
	block := rawdb.ReadBlock(db, hash, *number)
	if block == nil {
		return nil, fmt.Errorf("%w: %x", ErrBlockNotFound, hash)
	}
	if have := block.Hash(); have != hash {
		return nil, fmt.Errorf("%w: stored under %x, header hashes to %x", ErrBlockHashMismatch, hash, have)
	}
	raw := rawdb.ReadRawReceipts(db, hash, *number)
	if raw == nil {
		return nil, fmt.Errorf("%w: block %d %x", ErrReceiptsNotFound, *number, hash)
	}
	return receipts.HydrateBlock(r.chain, block, raw)
}

// ReadReceiptsJSON is ReadReceipts with the result encoded as a JSON array.
func (r *Reader) ReadReceiptsJSON(hash common.Hash, path string) ([]byte, error) {
	hydrated, err := r.ReadReceipts(hash, path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(hydrated)
}
