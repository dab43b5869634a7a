package chat

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// Interrupter routes SIGINT either to the in-flight prediction or, when
// nothing is generating, to an idle action.
type Interrupter struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	hit    bool
	onIdle func()
}

// NewInterrupter returns an Interrupter that calls onIdle for interrupts
// arriving while no prediction runs. A nil onIdle exits with status 130.
func NewInterrupter(onIdle func()) *Interrupter {
	if onIdle == nil {
		onIdle = exitOnInterrupt
	}
	return &Interrupter{onIdle: onIdle}
}

func exitOnInterrupt() {
	signal.Reset(os.Interrupt)
	os.Exit(130)
}

// Begin marks a prediction as running. The returned context is cancelled by
// the next interrupt; end must be called when the prediction returns.
func (i *Interrupter) Begin(ctx context.Context) (context.Context, func()) {
	pctx, cancel := context.WithCancel(ctx)
	i.mu.Lock()
	i.cancel = cancel
	i.hit = false
	i.mu.Unlock()

	return pctx, func() {
		i.mu.Lock()
		i.cancel = nil
		i.mu.Unlock()
		cancel()
	}
}

// Interrupted reports whether the most recent prediction was stopped by an
// interrupt.
func (i *Interrupter) Interrupted() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.hit
}

// Interrupt handles one interrupt signal.
func (i *Interrupter) Interrupt() {
	i.mu.Lock()
	cancel := i.cancel
	if cancel != nil {
		i.hit = true
	}
	i.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}
	i.onIdle()
}

// Watch delivers os.Interrupt to the Interrupter until ctx is done.
func (i *Interrupter) Watch(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				i.Interrupt()
			}
		}
	}()
}
