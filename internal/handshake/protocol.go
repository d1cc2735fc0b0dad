// Package handshake is the capability handoff between the helper daemon
// and the plugin: the helper owns the shared-memory region and exposes it
// over a well-known Unix-domain socket, the plugin connects once at
// startup and receives the region's file descriptor via SCM_RIGHTS.
//
// This is the POSIX translation of the original Mach-port handoff
// (bootstrap_check_in/bootstrap_look_up, mach_make_memory_entry_64,
// mach_msg with a port descriptor): a named Mach service becomes a
// filesystem socket path, a memory entry port becomes a passed file
// descriptor, and mach_msg's MACH_RCV_TIMEOUT/MACH_SEND_TIMEOUT loops
// become socket read/write deadlines.
package handshake

import "path/filepath"

// ServiceName is the well-known handoff identifier both processes agree on
// — the Unix-socket analogue of kMachServiceName.
const ServiceName = "com.pushflx4.aggregate.helper"

// Message IDs, unchanged in value from the original protocol's
// MachMsgID enum so the numbering carries no new meaning of its own.
const (
	MsgRequestMemory uint32 = 100 // plugin -> helper: "give me the shared memory"
	MsgMemoryReply   uint32 = 101 // helper -> plugin: reply with the region fd
)

// replyHeaderSize is MsgMemoryReply's fixed wire size: a 4-byte message ID
// followed by an 8-byte region size, matching ReplyMsg's memorySize field.
const replyHeaderSize = 12

// SocketPath resolves a service name to the filesystem path both the
// helper and plugin processes dial, standing in for bootstrap lookup by
// name.
func SocketPath(serviceName string) string {
	return filepath.Join("/tmp", serviceName+".sock")
}
