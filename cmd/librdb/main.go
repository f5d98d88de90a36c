// librdb is built with -buildmode=c-shared and lets foreign code read the
// hydrated receipts of a block from a chain database:
//
//	ReceiptsResult rdb_read_receipts(uint8_t *block_hash, size_t block_hash_len, char *db_path);
//	void rdb_free_string(char *string);
//
// When error is false, data points to data_len bytes holding a JSON array of
// receipts and must be released with rdb_free_string exactly once. When error
// is true, data is NULL and must not be released.
//
// The reader is configured from the environment on first use: RDB_CONFIG names
// a TOML config file and RDB_NETWORK overrides its network.
package main

/*
#include <stdbool.h>
#include <stddef.h>
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	char *data;
	size_t data_len;
	bool error;
} ReceiptsResult;
*/
import "C" //nolint:typecheck

import (
	"os"
	"sync"
	"unsafe"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/morph-l2/chaindb-reader/boundary"
	"github.com/morph-l2/chaindb-reader/internal/debug"
	"github.com/morph-l2/chaindb-reader/reader"
)

// cAllocator hands out C heap memory, which C callers may keep past the call.
type cAllocator struct{}

func (cAllocator) Alloc(size int) unsafe.Pointer {
	return C.malloc(C.size_t(size))
}

func (cAllocator) Free(p unsafe.Pointer) {
	C.free(p)
}

var (
	adapter     *boundary.Adapter
	adapterOnce sync.Once
)

func loadAdapter() *boundary.Adapter {
	adapterOnce.Do(func() {
		cfg := reader.Defaults
		if file := os.Getenv("RDB_CONFIG"); file != "" {
			if err := reader.LoadConfig(file, &cfg); err != nil {
				adapter = failingAdapter(err)
				return
			}
		}
		if network := os.Getenv("RDB_NETWORK"); network != "" {
			cfg.Network = network
		}
		if err := debug.Setup(cfg.Log); err != nil {
			adapter = failingAdapter(err)
			return
		}
		r, err := reader.New(cfg)
		if err != nil {
			adapter = failingAdapter(err)
			return
		}
		log.Info("Initialised receipt reader", "chainid", r.ChainConfig().ChainID)
		adapter = boundary.NewAdapter(cAllocator{}, r)
	})
	return adapter
}

// failingAdapter fails every read with the configuration error err.
func failingAdapter(err error) *boundary.Adapter {
	log.Error("Invalid receipt reader configuration", "err", err)
	return boundary.NewAdapter(cAllocator{}, boundary.FetcherFunc(func(common.Hash, string) ([]byte, error) {
		return nil, err
	}))
}

//export rdb_read_receipts
func rdb_read_receipts(blockHash *C.uint8_t, blockHashLen C.size_t, dbPath *C.char) C.ReceiptsResult {
	env := loadAdapter().ReadReceipts(unsafe.Pointer(blockHash), uintptr(blockHashLen), unsafe.Pointer(dbPath))

	var res C.ReceiptsResult
	res.data = (*C.char)(env.Data)
	res.data_len = C.size_t(env.Len)
	res.error = C.bool(env.Failed)
	return res
}

//export rdb_free_string
func rdb_free_string(s *C.char) {
	loadAdapter().Release(unsafe.Pointer(s))
}

func main() {}
