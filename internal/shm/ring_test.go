package shm

import (
	"bytes"
	"math/rand"
	"sync"
	"testing"
)

func newTestRing() *Ring {
	r := &Ring{}
	r.init(RingCapacity)
	return r
}

// TestRingCapacity covers property 2: after init, AvailableWrite() ==
// capacity - 1.
func TestRingCapacity(t *testing.T) {
	r := newTestRing()
	if got := r.AvailableWrite(); got != RingCapacity-1 {
		t.Fatalf("AvailableWrite() = %d, want %d", got, RingCapacity-1)
	}
	if got := r.AvailableRead(); got != 0 {
		t.Fatalf("AvailableRead() = %d, want 0", got)
	}
}

// TestRingRoundTrip covers property 1: for well-sized writes and reads,
// the consumer observes exactly the producer's byte stream, including
// wraparound.
func TestRingRoundTrip(t *testing.T) {
	r := newTestRing()
	rng := rand.New(rand.NewSource(1))

	var written, read bytes.Buffer
	buf := make([]byte, 0, 4096)

	for i := 0; i < 5000; i++ {
		n := 1 + rng.Intn(512)
		buf = buf[:0]
		for j := 0; j < n; j++ {
			buf = append(buf, byte(rng.Intn(256)))
		}

		if r.AvailableWrite() >= n {
			if !r.Write(buf) {
				t.Fatalf("Write unexpectedly failed with %d bytes available", r.AvailableWrite())
			}
			written.Write(buf)
		}

		if r.AvailableRead() > 0 {
			rn := 1 + rng.Intn(r.AvailableRead())
			dst := make([]byte, rn)
			if !r.Read(dst) {
				t.Fatalf("Read unexpectedly failed with %d bytes available", r.AvailableRead())
			}
			read.Write(dst)
		}
	}

	// Drain anything left so the two streams compare equal.
	for r.AvailableRead() > 0 {
		dst := make([]byte, r.AvailableRead())
		if !r.Read(dst) {
			t.Fatalf("final drain Read failed")
		}
		read.Write(dst)
	}

	if !bytes.Equal(written.Bytes(), read.Bytes()) {
		t.Fatalf("round-trip mismatch: wrote %d bytes, read %d bytes", written.Len(), read.Len())
	}
}

// TestRingAtomicFailure covers property 3 and S6: a write/read that cannot
// be satisfied returns false and leaves head/tail/data untouched.
func TestRingAtomicFailure(t *testing.T) {
	r := newTestRing()

	oversized := make([]byte, r.Capacity())
	if r.Write(oversized) {
		t.Fatalf("Write(capacity bytes) on empty ring should fail")
	}
	if r.head.Load() != 0 || r.tail.Load() != 0 {
		t.Fatalf("failed Write must not move head/tail")
	}

	payload := []byte("hello")
	if !r.Write(payload) {
		t.Fatalf("Write(5 bytes) should succeed")
	}
	headAfterWrite := r.head.Load()

	// Attempt to read more than is available.
	dst := make([]byte, 100)
	if r.Read(dst) {
		t.Fatalf("Read(100 bytes) with only 5 available should fail")
	}
	if r.tail.Load() != 0 {
		t.Fatalf("failed Read must not move tail")
	}
	if r.head.Load() != headAfterWrite {
		t.Fatalf("failed Read must not move head")
	}
}

// TestRingClearIsConsumerOnly exercises Clear() resetting tail to head.
func TestRingClearIsConsumerOnly(t *testing.T) {
	r := newTestRing()
	r.Write([]byte("abcdef"))
	if r.AvailableRead() == 0 {
		t.Fatalf("expected buffered data before Clear")
	}
	r.Clear()
	if r.AvailableRead() != 0 {
		t.Fatalf("expected empty ring after Clear, got AvailableRead()=%d", r.AvailableRead())
	}
}

// TestRingConcurrentProducerConsumer exercises property 4 (no tearing)
// under a real producer goroutine and consumer goroutine racing against
// each other. Run with -race.
func TestRingConcurrentProducerConsumer(t *testing.T) {
	r := newTestRing()
	const totalFrames = 20000
	const frameSize = BytesPerFrame

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		frame := make([]byte, frameSize)
		for i := 0; i < totalFrames; i++ {
			for b := range frame {
				frame[b] = byte((i + b) % 256)
			}
			for !r.Write(frame) {
				// overrun would drop the block in production; here we spin
				// because the test wants every frame delivered.
			}
		}
	}()

	go func() {
		defer wg.Done()
		frame := make([]byte, frameSize)
		for i := 0; i < totalFrames; i++ {
			for !r.Read(frame) {
			}
			for b := range frame {
				want := byte((i + b) % 256)
				if frame[b] != want {
					t.Errorf("frame %d byte %d = %d, want %d (torn read)", i, b, frame[b], want)
					return
				}
			}
		}
	}()

	wg.Wait()
}
