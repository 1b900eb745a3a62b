// Package kernel composes the memory, proc, sched, and ipc packages
// behind a single value: the kernel core described by spec.md, wired
// up the way the teacher wires its Ring around a file descriptor and
// a pair of mmap'd queues.
package kernel

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/kacchios/kernel/ipc"
	"github.com/kacchios/kernel/memory"
	"github.com/kacchios/kernel/proc"
	"github.com/kacchios/kernel/sched"
)

// options collects the functional-Option settings applied at New.
type options struct {
	log         zerolog.Logger
	policy      sched.Policy
	noOverwrite bool
}

// Option configures a Kernel at construction.
type Option func(*options)

// WithLogger attaches a logger that is passed to the scheduler for its
// diagnostic output. The default is zerolog's no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithPolicy overrides the default PriorityRR scheduling policy.
func WithPolicy(p sched.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithStrictMailbox rejects a Send into an inbox that already holds an
// unread message instead of overwriting it (see ipc.WithNoOverwrite).
func WithStrictMailbox() Option {
	return func(o *options) { o.noOverwrite = true }
}

// Kernel is the single point of entry for every kernel-core operation:
// process lifecycle, scheduling, and IPC, each guarded by one mutex so
// that a Kernel value is safe to drive from multiple goroutines even
// though the underlying model is a single-CPU cooperative system.
type Kernel struct {
	mu sync.Mutex

	cfg     Config
	console Console
	log     zerolog.Logger

	heap    *memory.Heap
	scratch *memory.Stack
	table   *proc.Table
	sched   *sched.Scheduler
	mbox    *ipc.Mailbox
}

// New builds a Kernel from cfg, wiring console for diagnostic I/O and
// ctxsw for the architectural context switch performed on dispatch.
// console may be nil, in which case a NopConsole is used; ctxsw may be
// nil for tests that never exercise a real dispatch.
func New(cfg Config, console Console, ctxsw sched.ContextSwitcher, opts ...Option) (*Kernel, error) {
	o := options{log: zerolog.Nop(), policy: sched.PriorityRR}
	for _, opt := range opts {
		opt(&o)
	}
	if console == nil {
		console = NopConsole{}
	}
	if err := console.Init(); err != nil {
		return nil, err
	}

	heap := memory.NewHeap(cfg.SHeap)
	scratch := memory.NewStack(cfg.SStack)
	table := proc.NewTable(cfg.NProc, heap, cfg.StackPerProc, cfg.DefaultQuantum)

	var mboxOpts []ipc.Option
	if o.noOverwrite {
		mboxOpts = append(mboxOpts, ipc.WithNoOverwrite())
	}

	k := &Kernel{
		cfg:     cfg,
		console: console,
		log:     o.log,
		heap:    heap,
		scratch: scratch,
		table:   table,
		mbox:    ipc.New(table, mboxOpts...),
		sched: sched.New(table, ctxsw,
			sched.WithPolicy(o.policy),
			sched.WithLogger(o.log),
			sched.WithAging(cfg.AgingThreshold, cfg.AgingBoost, cfg.PrioCap),
		),
	}
	return k, nil
}

// Console returns the Kernel's console collaborator, for callers that
// want to write to it directly (e.g. the demo harness printing a
// banner before any process exists).
func (k *Kernel) Console() Console {
	return k.console
}

// Create allocates a new process with the given priority. Returns
// (pid, nil) on success or (-1, err) on failure — mirrors
// proc.Table.Create's numeric contract.
func (k *Kernel) Create(priority int) (int32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.table.Create(priority)
}

// Terminate frees pid's slot and returns its stack to the heap.
func (k *Kernel) Terminate(pid int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.table.Terminate(pid)
}

// SetCurrent promotes pid to CURR, demoting whichever process was
// previously current back to READY.
func (k *Kernel) SetCurrent(pid int32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.table.SetCurrent(pid)
}

// CurrentPid returns the pid of the currently running process, or
// proc.NoPid if none.
func (k *Kernel) CurrentPid() int32 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.table.CurrentPid()
}

// Resched dispatches the next ready process under the scheduler's
// active policy.
func (k *Kernel) Resched() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sched.Resched()
}

// Yield charges the current process one tick (RemainingTime down by
// one, floored at zero; CPUTime up by one), applies aging, and
// reschedules.
func (k *Kernel) Yield() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sched.Yield()
}

// UserProcessExit terminates the current process and reschedules.
func (k *Kernel) UserProcessExit() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sched.UserProcessExit()
}

// Send delivers payload to destPid's inbox from the current process.
func (k *Kernel) Send(destPid int32, payload []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.mbox.Send(destPid, payload)
}

// Receive reads the current process's pending inbox message, which
// must be from expectedSenderPid.
func (k *Kernel) Receive(expectedSenderPid int32, buf []byte) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.mbox.Receive(expectedSenderPid, buf)
}

// ScratchAlloc hands out n bytes from the kernel's bump-allocated
// scratch arena, used for short-lived allocations that the caller
// frees in LIFO order (e.g. a syscall's temporary argument buffer).
// It is backed by memory.Stack, distinct from the per-process heap
// that Create draws stacks from.
func (k *Kernel) ScratchAlloc(n uint32) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.scratch.Alloc(n)
}

// ScratchFree returns n bytes to the scratch arena. Saturates at zero
// if n exceeds what is currently allocated.
func (k *Kernel) ScratchFree(n uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.scratch.Free(n)
}

// GetState, GetPriority, and IsValidPid expose read-only process
// lookups for diagnostics and tests.
func (k *Kernel) GetState(pid int32) (proc.State, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.table.GetState(pid)
}

func (k *Kernel) GetPriority(pid int32) (int, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.table.GetPriority(pid)
}

func (k *Kernel) IsValidPid(pid int32) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.table.IsValidPid(pid)
}

// Snapshot returns a point-in-time view of every live process, for
// diagnostics (e.g. the demo harness's "ps" output).
func (k *Kernel) Snapshot() []proc.Info {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.table.Snapshot()
}

// SetQuantum and GetQuantum adjust a process's scheduling quantum.
func (k *Kernel) SetQuantum(pid int32, quantum int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sched.SetQuantum(pid, quantum)
}

func (k *Kernel) GetQuantum(pid int32) (int, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sched.GetQuantum(pid)
}
