package store

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
)

// grant is handed to a waiter: either an idle connection or permission to
// open a new one in a slot freed by Discard or a failed factory call.
type grant[C io.Closer] struct {
	conn   C
	create bool
}

// Pool bounds the number of open connections to size. Connections are created
// lazily; once size are open, Acquire queues in FIFO order until one is
// released or ctx is done.
type Pool[C io.Closer] struct {
	factory func(context.Context) (C, error)
	size    int

	mu      sync.Mutex
	open    int
	idle    []C
	waiters []chan grant[C]
	closed  bool
}

type PoolStats struct {
	Open    int
	Idle    int
	Waiting int
}

func NewPool[C io.Closer](size int, factory func(context.Context) (C, error)) *Pool[C] {
	if size < 1 {
		size = 1
	}
	return &Pool[C]{factory: factory, size: size}
}

func (p *Pool[C]) Size() int { return p.size }

func (p *Pool[C]) Acquire(ctx context.Context) (C, error) {
	var zero C
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return zero, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return conn, nil
	}
	if p.open < p.size {
		p.open++
		p.mu.Unlock()
		return p.create(ctx)
	}
	ch := make(chan grant[C], 1)
	p.waiters = append(p.waiters, ch)
	p.mu.Unlock()

	select {
	case g, ok := <-ch:
		if !ok {
			return zero, ErrPoolClosed
		}
		if g.create {
			return p.create(ctx)
		}
		return g.conn, nil
	case <-ctx.Done():
		p.mu.Lock()
		if i := slices.Index(p.waiters, ch); i >= 0 {
			p.waiters = slices.Delete(p.waiters, i, i+1)
			p.mu.Unlock()
			return zero, ctx.Err()
		}
		p.mu.Unlock()
		// Lost the race: a grant is already on its way, pass it on.
		if g, ok := <-ch; ok {
			if g.create {
				p.freeSlot()
			} else {
				p.Release(g.conn)
			}
		}
		return zero, ctx.Err()
	}
}

func (p *Pool[C]) create(ctx context.Context) (C, error) {
	conn, err := p.factory(ctx)
	if err != nil {
		p.freeSlot()
		var zero C
		return zero, err
	}
	return conn, nil
}

// freeSlot gives up one open slot, handing it to the next waiter if any.
func (p *Pool[C]) freeSlot() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.waiters) > 0 && !p.closed {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		ch <- grant[C]{create: true}
		return
	}
	p.open--
}

// Release returns conn to the pool. When the idle set is already full the
// connection is closed instead.
func (p *Pool[C]) Release(conn C) {
	p.mu.Lock()
	if p.closed {
		p.open--
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	if len(p.waiters) > 0 {
		ch := p.waiters[0]
		p.waiters = p.waiters[1:]
		ch <- grant[C]{conn: conn}
		p.mu.Unlock()
		return
	}
	if len(p.idle) < p.size {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
		return
	}
	p.open--
	p.mu.Unlock()
	_ = conn.Close()
}

// Discard closes a broken connection and frees its slot.
func (p *Pool[C]) Discard(conn C) {
	_ = conn.Close()
	p.freeSlot()
}

func (p *Pool[C]) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Open: p.open, Idle: len(p.idle), Waiting: len(p.waiters)}
}

// Close closes idle connections and fails pending and future acquires.
// Connections still checked out are closed when released.
func (p *Pool[C]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.open -= len(idle)
	for _, ch := range p.waiters {
		close(ch)
	}
	p.waiters = nil
	p.mu.Unlock()

	var errs []error
	for _, conn := range idle {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}
