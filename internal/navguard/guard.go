// Package navguard asks for confirmation before leaving a view whose edit
// session has unsaved changes.
package navguard

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
)

type Reason string

const (
	ReasonBack      Reason = "back"
	ReasonQuit      Reason = "quit"
	ReasonNavigate  Reason = "navigate"
	ReasonInterrupt Reason = "interrupt"
)

// Dirtier is the part of an edit session the guard watches.
type Dirtier interface {
	IsDirty() bool
}

// ConfirmFunc asks the operator whether to discard unsaved changes.
type ConfirmFunc func(ctx context.Context, reason Reason) (bool, error)

// Message is the text shown when a leave needs confirmation.
const Message = "You have unsaved changes. Leave and discard them?"

type Guard struct {
	confirm ConfirmFunc
	log     zerolog.Logger

	mu      sync.Mutex
	session Dirtier
	gen     int
}

func New(confirm ConfirmFunc, log zerolog.Logger) *Guard {
	return &Guard{confirm: confirm, log: log}
}

// Attach starts guarding s and returns a detach func bound to this
// attachment. A later Attach replaces s; the stale detach is then a no-op.
func (g *Guard) Attach(s Dirtier) (detach func()) {
	g.mu.Lock()
	g.session = s
	g.gen++
	gen := g.gen
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		if g.gen == gen {
			g.session = nil
		}
		g.mu.Unlock()
	}
}

func (g *Guard) Detach() {
	g.mu.Lock()
	g.session = nil
	g.gen++
	g.mu.Unlock()
}

func (g *Guard) Attached() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session != nil
}

// Active reports whether a leave would currently ask for confirmation.
func (g *Guard) Active() bool {
	g.mu.Lock()
	s := g.session
	g.mu.Unlock()
	return s != nil && s.IsDirty()
}

// Leave returns true when navigation may proceed. It is inert while
// detached or clean; otherwise the confirm func decides.
func (g *Guard) Leave(ctx context.Context, reason Reason) (bool, error) {
	if !g.Active() {
		return true, nil
	}
	if g.confirm == nil {
		return false, nil
	}
	ok, err := g.confirm(ctx, reason)
	if err != nil {
		return false, err
	}
	g.log.Debug().Str("reason", string(reason)).Bool("leave", ok).Msg("guarded leave")
	return ok, nil
}

// WatchSignals turns SIGINT and SIGTERM into guarded leaves. onLeave runs
// when a leave is allowed; a refused leave keeps the process running.
// The returned stop func releases the signal handler.
func (g *Guard) WatchSignals(ctx context.Context, onLeave func()) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.watch(ctx, sigs, onLeave)
	}()
	return func() {
		signal.Stop(sigs)
		cancel()
		<-done
	}
}

func (g *Guard) watch(ctx context.Context, sigs <-chan os.Signal, onLeave func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			ok, err := g.Leave(ctx, ReasonInterrupt)
			if err != nil {
				g.log.Warn().Err(err).Msg("confirm leave")
				continue
			}
			if ok {
				onLeave()
				return
			}
		}
	}
}
