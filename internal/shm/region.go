package shm

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// RegionSize is sizeof(Layout) rounded up to a multiple of the OS page
// size, the quantity the handshake's memory-reply message carries.
var RegionSize = pageAlign(int(unsafe.Sizeof(Layout{})))

func pageAlign(n int) int {
	pageSize := unix.Getpagesize()
	return ((n + pageSize - 1) / pageSize) * pageSize
}

// Region is a page-aligned mapping of the shared layout, backed by an mmap
// of either an anonymous/file-backed segment (the owning helper) or a
// capability handed over by the handshake protocol (the non-owning
// plugin). The helper allocates and owns the region (spec.md §9); the
// plugin only maps it and never frees it.
type Region struct {
	bytes []byte
}

// NewOwned mmaps a fresh, zeroed anonymous region of RegionSize bytes and
// returns it wrapping an fd suitable for handing to the handshake server —
// the fd is MAP_SHARED so any process that mmaps the same fd observes the
// same physical pages. Helper-side only.
func NewOwned(fd int) (*Region, error) {
	if err := unix.Ftruncate(fd, int64(RegionSize)); err != nil {
		return nil, fmt.Errorf("shm: ftruncate region: %w", err)
	}
	return mapFD(fd)
}

// Open maps an already-sized fd received from the handshake server.
// Plugin-side only.
func Open(fd int) (*Region, error) {
	return mapFD(fd)
}

func mapFD(fd int) (*Region, error) {
	b, err := unix.Mmap(fd, 0, RegionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap region: %w", err)
	}
	return &Region{bytes: b}, nil
}

// Layout returns a pointer to the Layout struct living at the start of the
// mapped region. Valid only for the lifetime of the Region; placing
// sync/atomic fields directly inside mmap'd memory is safe in Go only
// because this memory is never managed by the garbage collector and the
// mapping's address never moves once established — see layout.go.
func (r *Region) Layout() *Layout {
	return (*Layout)(unsafe.Pointer(&r.bytes[0]))
}

// Close unmaps the region. The helper additionally owns the backing fd and
// file (handshake.Server.Stop handles that); Close here only undoes the
// virtual memory mapping in this process.
func (r *Region) Close() error {
	if r.bytes == nil {
		return nil
	}
	err := unix.Munmap(r.bytes)
	r.bytes = nil
	return err
}
