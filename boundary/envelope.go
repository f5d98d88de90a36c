package boundary

import (
	"sync"
	"unsafe"
)

// Envelope is the result handed across the foreign call boundary. A failed
// envelope always has a nil Data and a zero Len; callers check Failed first.
//
// The payload of a successful envelope is owned by the Allocator that produced
// it until the caller hands it back through Release, exactly once.
type Envelope struct {
	Data   unsafe.Pointer
	Len    uintptr
	Failed bool
}

// Failure returns the failed envelope.
func Failure() Envelope {
	return Envelope{Failed: true}
}

// Bytes returns a view of the payload. It is only valid until the payload is
// released.
func (e Envelope) Bytes() []byte {
	if e.Failed || e.Data == nil {
		return nil
	}
	return unsafe.Slice((*byte)(e.Data), e.Len)
}

// Allocator provides the memory payloads are copied into. Memory returned by
// Alloc must not be reclaimed by anything but Free.
type Allocator interface {
	Alloc(size int) unsafe.Pointer
	Free(p unsafe.Pointer)
}

// HeapAllocator allocates payloads on the Go heap and keeps them reachable
// until freed. Its memory must not be handed to C code, which may not retain
// Go pointers; cgo callers allocate with malloc instead.
type HeapAllocator struct {
	mu   sync.Mutex
	live map[unsafe.Pointer][]byte
}

// NewHeapAllocator creates an empty heap allocator.
func NewHeapAllocator() *HeapAllocator {
	return &HeapAllocator{live: make(map[unsafe.Pointer][]byte)}
}

func (a *HeapAllocator) Alloc(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}
	buf := make([]byte, size)
	p := unsafe.Pointer(&buf[0])

	a.mu.Lock()
	a.live[p] = buf
	a.mu.Unlock()
	return p
}

func (a *HeapAllocator) Free(p unsafe.Pointer) {
	a.mu.Lock()
	delete(a.live, p)
	a.mu.Unlock()
}

// Live returns the number of allocations not yet freed.
func (a *HeapAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}
