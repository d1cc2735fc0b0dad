package handshake

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pushflx4/aggregate/internal/shm"
)

// acceptTimeout mirrors MachServer::runMessageLoop's 500ms
// MACH_RCV_TIMEOUT receive loop — long enough to be cheap, short enough
// that Stop() is noticed promptly.
const acceptTimeout = 500 * time.Millisecond

// sendTimeout mirrors the 1s MACH_SEND_TIMEOUT on the memory reply.
const sendTimeout = 1 * time.Second

// ErrAlreadyRunning mirrors bootstrap_check_in failing because another
// instance already owns the service name.
var ErrAlreadyRunning = errors.New("handshake: service already registered (another helper instance running?)")

// Server is the helper-side half of the handoff: it owns the
// shared-memory region and answers each plugin connection with the
// region's file descriptor.
type Server struct {
	path     string
	listener *net.UnixListener
	region   *shm.Region
	fd       int
	stopping atomic.Bool
	serving  atomic.Bool
	done     chan struct{}
}

func NewServer(serviceName string) *Server {
	return &Server{path: SocketPath(serviceName)}
}

// Start allocates the shared-memory region (the allocateSharedMemory
// analogue) and binds the listening socket (the registerService
// analogue), returning the mapped layout for the helper engine to drive.
func (s *Server) Start() (*shm.Layout, error) {
	// A live listener on the path means another instance owns the name; a
	// stale socket file that refuses connections is removed below.
	if conn, err := net.DialTimeout("unix", s.path, acceptTimeout); err == nil {
		conn.Close()
		return nil, ErrAlreadyRunning
	}

	fd, err := anonymousFile()
	if err != nil {
		return nil, fmt.Errorf("handshake: allocate shared memory: %w", err)
	}

	region, err := shm.NewOwned(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("handshake: map shared memory: %w", err)
	}
	region.Layout().Init()

	os.Remove(s.path)
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.path, Net: "unix"})
	if err != nil {
		region.Close()
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %v", ErrAlreadyRunning, err)
	}

	s.listener = ln
	s.region = region
	s.fd = fd
	s.done = make(chan struct{})
	return region.Layout(), nil
}

// Serve runs the accept loop until Stop is called. Each connection is
// handled on its own goroutine so a slow or hung plugin client never
// blocks acceptance of a later one (e.g. after a plugin restart).
func (s *Server) Serve() {
	s.serving.Store(true)
	defer close(s.done)
	for !s.stopping.Load() {
		s.listener.SetDeadline(time.Now().Add(acceptTimeout))
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if s.stopping.Load() {
				return
			}
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn *net.UnixConn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(acceptTimeout))
	req := make([]byte, 4)
	if _, err := conn.Read(req); err != nil {
		return
	}
	if binary.BigEndian.Uint32(req) != MsgRequestMemory {
		return
	}

	header := make([]byte, replyHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], MsgMemoryReply)
	binary.BigEndian.PutUint64(header[4:12], uint64(shm.RegionSize))

	conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	rights := unix.UnixRights(s.fd)
	conn.WriteMsgUnix(header, rights, nil)
}

// Stop tears down the listener and shared-memory region, mirroring
// MachServer::stop's deregister-then-deallocate order.
func (s *Server) Stop() {
	if s.stopping.Swap(true) {
		return
	}
	if s.listener != nil {
		s.listener.Close()
	}
	// Wait for the accept loop only if Serve was started; a Serve that
	// starts after this point sees stopping and returns at once.
	if s.done != nil && s.serving.Load() {
		<-s.done
	}
	if s.region != nil {
		s.region.Close()
	}
	if s.fd != 0 {
		unix.Close(s.fd)
	}
	os.Remove(s.path)
}

// anonymousFile creates the backing store for the shared-memory region:
// a file that is unlinked from the filesystem immediately after opening,
// so only the open descriptor (and whatever descriptor it is duplicated
// to via SCM_RIGHTS) keeps its pages alive — the POSIX equivalent of
// mach_vm_allocate's anonymous memory object.
func anonymousFile() (int, error) {
	path := fmt.Sprintf("/tmp/.%s-%d.shm", ServiceName, os.Getpid())
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	if err != nil {
		return 0, err
	}
	unix.Unlink(path)
	return fd, nil
}
