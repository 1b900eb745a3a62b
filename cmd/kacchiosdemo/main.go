// Command kacchiosdemo drives a Kernel through the bring-up sequence
// the original kernel.c runs before handing off to its interactive
// shell: spawn a handful of processes at different priorities, let the
// scheduler dispatch and age them, exchange one IPC message, and print
// a final process snapshot. The interactive shell loop itself is out
// of scope here.
//
// Run with: go run ./cmd/kacchiosdemo
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/kacchios/kernel/kernel"
)

// bufConsole is an in-memory Console: there is no real UART to attach
// to in a demo binary, so writes accumulate in a buffer that main
// flushes to stdout at the end of the run.
type bufConsole struct {
	buf []byte
}

func (c *bufConsole) Init() error   { return nil }
func (c *bufConsole) Putc(b byte)   { c.buf = append(c.buf, b) }
func (c *bufConsole) Puts(s string) { c.buf = append(c.buf, s...) }
func (c *bufConsole) Getc() byte    { return 0 }

// noopCtxsw stands in for the architectural context switch: this demo
// never actually jumps into process code, it only exercises the
// bookkeeping around dispatch.
type noopCtxsw struct{}

func (noopCtxsw) Switch(oldSP, newSP *uint32) {}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	console := &bufConsole{}

	k, err := kernel.New(kernel.DefaultConfig(), console, noopCtxsw{}, kernel.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("kernel init failed")
	}

	console.Puts("kacchiOS kernel core bring-up\n")

	shell, err := k.Create(5)
	if err != nil {
		log.Fatal().Err(err).Msg("create shell")
	}
	worker, err := k.Create(2)
	if err != nil {
		log.Fatal().Err(err).Msg("create worker")
	}
	logger, err := k.Create(1)
	if err != nil {
		log.Fatal().Err(err).Msg("create logger")
	}

	console.Puts(fmt.Sprintf("spawned shell=%d worker=%d logger=%d\n", shell, worker, logger))

	k.Resched()
	console.Puts(fmt.Sprintf("dispatched pid=%d (highest priority)\n", k.CurrentPid()))

	k.SetCurrent(worker)
	if n, err := k.Send(logger, []byte("worker finished a unit of work")); err != nil || n != 0 {
		log.Error().Err(err).Msg("send failed")
	}

	k.SetCurrent(logger)
	buf := make([]byte, 128)
	if n, err := k.Receive(worker, buf); err != nil {
		log.Error().Err(err).Msg("receive failed")
	} else {
		console.Puts(fmt.Sprintf("logger received: %q\n", buf[:n]))
	}

	for i := 0; i < 60; i++ {
		k.Yield()
	}
	console.Puts(fmt.Sprintf("after aging, current pid=%d\n", k.CurrentPid()))

	console.Puts("process table:\n")
	for _, info := range k.Snapshot() {
		console.Puts(fmt.Sprintf("  pid=%d state=%v priority=%d\n", info.Pid, info.State, info.Priority))
	}

	k.UserProcessExit()
	k.UserProcessExit()
	k.UserProcessExit()
	console.Puts(fmt.Sprintf("after exits, current pid=%d\n", k.CurrentPid()))

	os.Stdout.Write(console.buf)
}
