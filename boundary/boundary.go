// Package boundary exposes receipt reads to foreign callers that pass raw
// pointers in and receive raw pointers back.
//
// Every argument is validated before a Go value is built from it, every error
// is folded into a failed Envelope, and payload memory stays owned by this side
// until the caller asks for it to be released.
package boundary

import (
	"errors"
	"fmt"
	"unicode/utf8"
	"unsafe"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// MaxPathLen bounds the scan for the terminator of a database path.
const MaxPathLen = 4096

var (
	errNilHash        = errors.New("block hash pointer is null")
	errHashLength     = errors.New("block hash length is not 32 bytes")
	errNilPath        = errors.New("db path pointer is null")
	errEmptyPath      = errors.New("db path is empty")
	errPathTooLong    = errors.New("db path is not terminated")
	errPathNotUTF8    = errors.New("db path is not valid UTF-8")
	errEmptyPayload   = errors.New("empty payload")
	errAllocateFailed = errors.New("payload allocation failed")
)

// Fetcher produces the serialized receipts of a block.
type Fetcher interface {
	ReadReceiptsJSON(hash common.Hash, path string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(hash common.Hash, path string) ([]byte, error)

func (f FetcherFunc) ReadReceiptsJSON(hash common.Hash, path string) ([]byte, error) {
	return f(hash, path)
}

// HashFromRaw copies the block hash out of a caller supplied buffer.
func HashFromRaw(ptr unsafe.Pointer, n uintptr) (common.Hash, error) {
	if ptr == nil {
		return common.Hash{}, errNilHash
	}
	if n != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %d", errHashLength, n)
	}
	return common.BytesToHash(unsafe.Slice((*byte)(ptr), n)), nil
}

// PathFromRaw copies a NUL terminated UTF-8 path out of caller memory. At most
// MaxPathLen bytes are scanned for the terminator.
func PathFromRaw(ptr unsafe.Pointer) (string, error) {
	if ptr == nil {
		return "", errNilPath
	}
	for n := 0; n < MaxPathLen; n++ {
		if *(*byte)(unsafe.Add(ptr, n)) != 0 {
			continue
		}
		if n == 0 {
			return "", errEmptyPath
		}
		b := unsafe.Slice((*byte)(ptr), n)
		if !utf8.Valid(b) {
			return "", errPathNotUTF8
		}
		return string(b), nil
	}
	return "", errPathTooLong
}

// Adapter serves receipt reads to a foreign caller.
type Adapter struct {
	alloc   Allocator
	fetcher Fetcher
}

// NewAdapter creates an adapter copying payloads into memory from alloc.
func NewAdapter(alloc Allocator, fetcher Fetcher) *Adapter {
	return &Adapter{alloc: alloc, fetcher: fetcher}
}

// ReadReceipts reads the receipts of the block whose 32 byte hash starts at
// hashPtr from the database at the NUL terminated path pathPtr. It never
// panics; every failure yields a failed envelope.
func (a *Adapter) ReadReceipts(hashPtr unsafe.Pointer, hashLen uintptr, pathPtr unsafe.Pointer) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Receipt read panicked", "err", r)
			env = Failure()
		}
	}()
	hash, err := HashFromRaw(hashPtr, hashLen)
	if err != nil {
		log.Warn("Rejected receipt read", "err", err)
		return Failure()
	}
	path, err := PathFromRaw(pathPtr)
	if err != nil {
		log.Warn("Rejected receipt read", "hash", hash, "err", err)
		return Failure()
	}
	payload, err := a.fetcher.ReadReceiptsJSON(hash, path)
	if err != nil {
		log.Debug("Receipt read failed", "hash", hash, "db", path, "err", err)
		return Failure()
	}
	env, err = a.wrap(payload)
	if err != nil {
		log.Error("Failed to hand out receipts", "hash", hash, "size", len(payload), "err", err)
		return Failure()
	}
	return env
}

// wrap copies payload into allocator memory, transferring its ownership to the
// returned envelope.
func (a *Adapter) wrap(payload []byte) (Envelope, error) {
	if len(payload) == 0 {
		return Failure(), errEmptyPayload
	}
	p := a.alloc.Alloc(len(payload))
	if p == nil {
		return Failure(), errAllocateFailed
	}
	copy(unsafe.Slice((*byte)(p), len(payload)), payload)
	return Envelope{Data: p, Len: uintptr(len(payload))}, nil
}

// Release frees the payload of an envelope returned by ReadReceipts. A nil
// pointer is ignored.
//
// p must be the Data of a successful envelope from this adapter, released at
// most once and not used afterwards. Violations are not detected and are
// undefined behaviour.
func (a *Adapter) Release(p unsafe.Pointer) {
	if p == nil {
		return
	}
	a.alloc.Free(p)
}
