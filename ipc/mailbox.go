// Package ipc implements the one-slot inbox mailbox carried inside
// every process control block. It is the core's only IPC primitive:
// non-blocking, lossy by design (a second Send before the first is
// Received overwrites it, unless WithNoOverwrite is set), and
// addressed purely by pid.
package ipc

import (
	"errors"

	"github.com/kacchios/kernel/proc"
)

var (
	// ErrInvalidRecipient is returned by Send when dest_pid does not
	// name a live process.
	ErrInvalidRecipient = errors.New("ipc: invalid destination pid")
	// ErrPayloadTooLarge is returned by Send when len(payload) exceeds
	// proc.MsgMax.
	ErrPayloadTooLarge = errors.New("ipc: payload exceeds MsgMax")
	// ErrNoCurrentProcess is returned by Receive when there is no
	// current process to receive into.
	ErrNoCurrentProcess = errors.New("ipc: no current process")
	// ErrNoMessage is returned by Receive when the inbox has nothing
	// pending.
	ErrNoMessage = errors.New("ipc: no pending message")
	// ErrSenderMismatch is returned by Receive when the pending
	// message's sender does not match the expected one.
	ErrSenderMismatch = errors.New("ipc: sender mismatch")
	// ErrBufferTooSmall is returned by Receive when the caller's
	// buffer is smaller than the pending message.
	ErrBufferTooSmall = errors.New("ipc: destination buffer too small")
	// ErrPendingMessage is returned by Send, only under
	// WithNoOverwrite, when the destination inbox already holds an
	// unread message.
	ErrPendingMessage = errors.New("ipc: destination inbox already has an unread message")
)

// Mailboxes is the narrow slice of proc.Table that the mailbox needs:
// slot lookup and the identity of the current process. *proc.Table
// satisfies it without any adapter, but tests can fake it.
type Mailboxes interface {
	FindSlot(pid int32) (int32, bool)
	Slot(idx int32) *proc.PCB
	CurrentPid() int32
}

// Mailbox implements Send/Receive over a Mailboxes-backed process
// table.
type Mailbox struct {
	table       Mailboxes
	noOverwrite bool
}

// Option configures a Mailbox at construction.
type Option func(*Mailbox)

// WithNoOverwrite makes Send fail with ErrPendingMessage instead of
// silently overwriting an unread message. This answers the open
// question in spec.md §9 without changing the spec-mandated default
// (overwrite), which remains the behavior absent this option.
func WithNoOverwrite() Option {
	return func(m *Mailbox) { m.noOverwrite = true }
}

// New constructs a Mailbox over table.
func New(table Mailboxes, opts ...Option) *Mailbox {
	m := &Mailbox{table: table}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send delivers payload to destPid's inbox, stamped with the sending
// process's pid. It returns (0, nil) on success or (-1, err) on
// failure — the numeric result mirrors the spec's `send` contract
// directly; err carries the reason. Fails if destPid is not a valid
// pid or len(payload) > proc.MsgMax. Unless the mailbox was built
// with WithNoOverwrite, an existing unread message is overwritten.
func (m *Mailbox) Send(destPid int32, payload []byte) (int, error) {
	if err := m.send(destPid, payload); err != nil {
		return -1, err
	}
	return 0, nil
}

func (m *Mailbox) send(destPid int32, payload []byte) error {
	if len(payload) > proc.MsgMax {
		return ErrPayloadTooLarge
	}
	slot, ok := m.table.FindSlot(destPid)
	if !ok {
		return ErrInvalidRecipient
	}
	senderPid := m.table.CurrentPid()

	pcb := m.table.Slot(slot)
	if m.noOverwrite && pcb.Inbox.HasMsg {
		return ErrPendingMessage
	}

	pcb.Inbox.SenderPid = senderPid
	pcb.Inbox.Length = len(payload)
	copy(pcb.Inbox.Bytes[:], payload)
	pcb.Inbox.HasMsg = true
	return nil
}

// Receive reads from the current process's inbox, requiring the
// pending message's sender to equal expectedSenderPid. It returns
// (bytesCopied, nil) on success or (-1, err) on failure. Fails if no
// message is pending, the sender doesn't match, or the pending
// message is larger than buf — in every failure case the inbox is
// left untouched (a pending message stays pending).
func (m *Mailbox) Receive(expectedSenderPid int32, buf []byte) (int, error) {
	n, err := m.receive(expectedSenderPid, buf)
	if err != nil {
		return -1, err
	}
	return n, nil
}

func (m *Mailbox) receive(expectedSenderPid int32, buf []byte) (int, error) {
	currPid := m.table.CurrentPid()
	slot, ok := m.table.FindSlot(currPid)
	if !ok {
		return 0, ErrNoCurrentProcess
	}

	pcb := m.table.Slot(slot)
	if !pcb.Inbox.HasMsg {
		return 0, ErrNoMessage
	}
	if pcb.Inbox.SenderPid != expectedSenderPid {
		return 0, ErrSenderMismatch
	}
	if pcb.Inbox.Length > len(buf) {
		return 0, ErrBufferTooSmall
	}

	n := pcb.Inbox.Length
	copy(buf, pcb.Inbox.Bytes[:n])
	pcb.Inbox.HasMsg = false
	return n, nil
}
