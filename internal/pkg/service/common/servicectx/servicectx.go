// Package servicectx provides a unique ID for a service process and support for the graceful shutdown.
package servicectx

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"testing"

	"github.com/partdex/partdex/internal/pkg/idgenerator"
	"github.com/partdex/partdex/internal/pkg/log"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

type Process struct {
	logger   log.Logger
	wg       *sync.WaitGroup
	errCh    chan error
	uniqueID string

	lock        *sync.Mutex
	terminating bool
	onShutdown  []OnShutdownFn
}

type Option func(c *config)

type OnShutdownFn func(ctx context.Context)

type config struct {
	uniqueID string
}

// WithUniqueID sets unique ID of the service process.
// By default, it is generated from the hostname and PID.
func WithUniqueID(v string) Option {
	return func(c *config) {
		c.uniqueID = v
	}
}

func New(ctx context.Context, logger log.Logger, opts ...Option) (*Process, error) {
	// Apply options
	c := config{}
	for _, o := range opts {
		o(&c)
	}

	// Generate uniqueID if not set
	if c.uniqueID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, err
		}
		c.uniqueID = fmt.Sprintf(`%s-%05d`, hostname, os.Getpid())
	}

	proc := &Process{
		logger:   logger,
		wg:       &sync.WaitGroup{},
		errCh:    make(chan error, 1),
		uniqueID: c.uniqueID,
		lock:     &sync.Mutex{},
	}

	// Setup interrupt handler, so SIGINT and SIGTERM signals cause a graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			proc.Shutdown(ctx, errors.Errorf("%s", sig))
		case <-ctx.Done():
		}
	}()

	logger.Infof(ctx, `process unique id "%s"`, proc.UniqueID())
	return proc, nil
}

func NewForTest(t *testing.T) *Process {
	t.Helper()

	ctx := context.Background()
	proc, err := New(ctx, log.NewNopLogger(), WithUniqueID("test_"+t.Name()+"_"+idgenerator.Random(5)))
	if err != nil {
		t.Fatal(err)
		return nil
	}

	t.Cleanup(func() {
		proc.Shutdown(ctx, errors.New("test cleanup"))
		proc.WaitForShutdown()
	})

	return proc
}

func (p *Process) UniqueID() string {
	return p.uniqueID
}

// OnShutdown registers a callback invoked during the shutdown.
// Callbacks are invoked in the LIFO order, the last registered component stops first.
func (p *Process) OnShutdown(fn OnShutdownFn) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.terminating {
		panic(errors.New("cannot register OnShutdown callback, shutdown is in progress"))
	}
	p.onShutdown = append(p.onShutdown, fn)
}

// Shutdown triggers a graceful shutdown with the given reason.
// The first reason wins, other calls are no-ops.
func (p *Process) Shutdown(ctx context.Context, reason error) {
	p.lock.Lock()
	if p.terminating {
		p.lock.Unlock()
		return
	}
	p.terminating = true
	callbacks := make([]OnShutdownFn, len(p.onShutdown))
	copy(callbacks, p.onShutdown)
	p.lock.Unlock()

	p.logger.Infof(ctx, "exiting (%s)", reason)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for i := len(callbacks) - 1; i >= 0; i-- {
			callbacks[i](ctx)
		}
		p.errCh <- reason
	}()
}

// WaitForShutdown blocks until the shutdown is finished.
// It returns the shutdown reason.
func (p *Process) WaitForShutdown() error {
	err := <-p.errCh
	p.wg.Wait()
	return err
}
