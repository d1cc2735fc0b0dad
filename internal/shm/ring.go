package shm

import "sync/atomic"

// Ring is a byte-granular single-producer/single-consumer FIFO living
// inline inside Layout, so the whole shared region is one contiguous
// allocation (spec.md §3). head advances only in the producer process;
// tail advances only in the consumer process. Exactly one byte of capacity
// is reserved to disambiguate full from empty, matching the original
// SPSCRingBuffer::availableWrite() = capacity - 1 - availableRead().
//
// head and tail are placed on their own cache lines (64 bytes) to avoid
// false sharing between the producer and consumer threads/processes,
// following the pattern in drgolem's SPSCRingBuffer: separate atomics each
// padded out to a full cache line.
type Ring struct {
	head atomic.Uint32
	_    [60]byte
	tail atomic.Uint32
	_    [60]byte

	capacity uint32
	_        [60]byte

	data [RingCapacity]byte
}

func (r *Ring) init(capacity uint32) {
	r.capacity = capacity
	r.head.Store(0)
	r.tail.Store(0)
	for i := range r.data {
		r.data[i] = 0
	}
}

// AvailableRead returns the number of bytes the consumer may read.
func (r *Ring) AvailableRead() int {
	h := r.head.Load()
	t := r.tail.Load()
	avail := int32(h) - int32(t)
	if avail < 0 {
		avail += int32(r.capacity)
	}
	return int(avail)
}

// AvailableWrite returns the number of bytes the producer may write.
func (r *Ring) AvailableWrite() int {
	return int(r.capacity) - 1 - r.AvailableRead()
}

// Write copies src into the ring. It is all-or-nothing: if len(src) exceeds
// AvailableWrite(), it returns false and the ring is left completely
// unchanged (no partial writes, head untouched). Producer-only.
func (r *Ring) Write(src []byte) bool {
	n := len(src)
	if n == 0 {
		return true
	}
	if n > r.AvailableWrite() {
		return false
	}

	h := r.head.Load()
	cap := r.capacity
	firstChunk := cap - h
	if uint32(n) <= firstChunk {
		copy(r.data[h:h+uint32(n)], src)
	} else {
		copy(r.data[h:cap], src[:firstChunk])
		copy(r.data[0:uint32(n)-firstChunk], src[firstChunk:])
	}

	newHead := (h + uint32(n)) % cap
	r.head.Store(newHead)
	return true
}

// Read copies into dst from the ring. It is all-or-nothing: if len(dst)
// exceeds AvailableRead(), it returns false and the ring is left completely
// unchanged (no partial reads, tail untouched). Consumer-only.
func (r *Ring) Read(dst []byte) bool {
	n := len(dst)
	if n == 0 {
		return true
	}
	if n > r.AvailableRead() {
		return false
	}

	t := r.tail.Load()
	cap := r.capacity
	firstChunk := cap - t
	if uint32(n) <= firstChunk {
		copy(dst, r.data[t:t+uint32(n)])
	} else {
		copy(dst, r.data[t:cap])
		copy(dst[firstChunk:], r.data[0:uint32(n)-firstChunk])
	}

	newTail := (t + uint32(n)) % cap
	r.tail.Store(newTail)
	return true
}

// Clear resets tail to the current head, discarding all buffered data.
// Consumer-only.
func (r *Ring) Clear() {
	r.tail.Store(r.head.Load())
}

// Capacity returns the ring's total byte capacity (including the one
// reserved disambiguation byte).
func (r *Ring) Capacity() int {
	return int(r.capacity)
}
