package handshake

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/pushflx4/aggregate/internal/shm"
)

// dialTimeout mirrors the Mach client's 2s MACH_SEND_TIMEOUT on the
// request message.
const dialTimeout = 2 * time.Second

// replyTimeout mirrors the Mach client's 5s MACH_RCV_TIMEOUT on the
// memory reply.
const replyTimeout = 5 * time.Second

// ErrCapabilityUnavailable mirrors bootstrap_look_up failing when the
// helper process is not running: the plugin should treat this as "no
// helper yet", not a fatal error.
var ErrCapabilityUnavailable = errors.New("handshake: helper service unavailable")

// Client is the plugin-side half of the handoff.
type Client struct {
	path string
}

func NewClient(serviceName string) *Client {
	return &Client{path: SocketPath(serviceName)}
}

// Connect mirrors MachClient::connect: dial the helper's socket, request
// the shared-memory region, and map the returned descriptor into this
// process. Every failure to reach the helper or to receive its reply is
// wrapped in ErrCapabilityUnavailable so callers can retry with errors.Is
// rather than parsing messages; a failure to map the received descriptor
// is returned without that sentinel.
func (c *Client) Connect() (*shm.Region, error) {
	conn, err := net.DialTimeout("unix", c.path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	defer conn.Close()
	uc := conn.(*net.UnixConn)

	uc.SetWriteDeadline(time.Now().Add(dialTimeout))
	req := make([]byte, 4)
	binary.BigEndian.PutUint32(req, MsgRequestMemory)
	if _, err := uc.Write(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}

	uc.SetReadDeadline(time.Now().Add(replyTimeout))
	header := make([]byte, replyHeaderSize)
	oob := make([]byte, unix.CmsgSpace(4))
	n, oobn, _, _, err := uc.ReadMsgUnix(header, oob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	if n < replyHeaderSize || binary.BigEndian.Uint32(header[0:4]) != MsgMemoryReply {
		return nil, fmt.Errorf("%w: unexpected reply", ErrCapabilityUnavailable)
	}

	fd, err := extractFD(oob[:oobn])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	defer unix.Close(fd)

	region, err := shm.Open(fd)
	if err != nil {
		return nil, fmt.Errorf("handshake: map shared memory: %w", err)
	}
	return region, nil
}

func extractFD(oob []byte) (int, error) {
	scms, err := unix.ParseSocketControlMessage(oob)
	if err != nil || len(scms) == 0 {
		return 0, errors.New("no memory descriptor in reply")
	}
	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil || len(fds) == 0 {
		return 0, errors.New("no memory descriptor in reply")
	}
	return fds[0], nil
}
