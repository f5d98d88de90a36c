package reader

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// dbLeveldb is the engine name rawdb.PreexistingDatabase reports for LevelDB
// stores.
const dbLeveldb = "leveldb"

// openDatabase opens the chain store at path read-only. The store is never
// created, and a damaged LevelDB store is reported instead of repaired.
func openDatabase(path string, cfg *Config) (ethdb.Database, error) {
	kind := rawdb.PreexistingDatabase(path)
	if kind == "" {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseMissing, path)
	}
	if kind == dbLeveldb {
		if err := probeLevelDB(path); err != nil {
			return nil, err
		}
	}
	ancient := cfg.ancientDir(path)
	db, err := rawdb.Open(rawdb.OpenOptions{
		Type:              kind,
		Directory:         path,
		AncientsDirectory: ancient,
		Namespace:         "rdb/db/",
		Cache:             cfg.DatabaseCache,
		Handles:           cfg.DatabaseHandles,
		ReadOnly:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseOpen, err)
	}
	log.Debug("Opened chain database", "path", path, "type", kind, "ancient", ancient)
	return db, nil
}

// probeLevelDB opens and closes the store with goleveldb directly. The ethdb
// wrapper runs a repair pass when it meets a corrupted store, which a
// read-only reader must not do.
func probeLevelDB(path string) error {
	db, err := leveldb.OpenFile(path, &opt.Options{
		ReadOnly:       true,
		ErrorIfMissing: true,
	})
	if err != nil {
		if lerrors.IsCorrupted(err) {
			return fmt.Errorf("%w: %v", ErrDatabaseCorrupt, err)
		}
		return fmt.Errorf("%w: %v", ErrDatabaseOpen, err)
	}
	return db.Close()
}
