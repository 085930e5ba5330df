// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package dualstack presents an IPv6 and an IPv4 listener as one net.Listener.
//
// Each inner listener is drained by its own goroutine into an unbuffered
// channel. Accept prefers the primary listener when both have a connection
// ready. Temporary accept errors such as EMFILE are retried with backoff
// inside the drain goroutine. Any other accept error is fatal: it is returned
// from that Accept and from every later call, and it never reports itself as
// temporary so server loops stop instead of retrying.
package dualstack

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Backoff bounds for temporary accept errors.
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Bind names the addresses Listen binds.
type Bind struct {
	IPv6 string
	IPv4 string
	Port int
}

// Wildcard binds all interfaces on both families.
func Wildcard(port int) Bind {
	return Bind{IPv6: "::", IPv4: "0.0.0.0", Port: port}
}

type acceptResult struct {
	conn net.Conn
	err  error
}

// FatalError is returned by Accept once an inner listener has failed.
type FatalError struct {
	Addr net.Addr
	Err  error
}

func (e *FatalError) Error() string {
	return "dualstack: listener " + e.Addr.String() + " failed: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }

// Temporary always reports false so callers such as grpc.Server.Serve stop.
func (e *FatalError) Temporary() bool { return false }

// Timeout always reports false.
func (e *FatalError) Timeout() bool { return false }

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the logger that records temporary accept errors.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Listener merges two listeners. It is safe for concurrent use.
type Listener struct {
	primary   net.Listener
	secondary net.Listener

	primaryCh   chan acceptResult
	secondaryCh chan acceptResult

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	failed   chan struct{}
	failOnce sync.Once
	fatal    error

	logger *slog.Logger
	wg     sync.WaitGroup
}

var _ net.Listener = (*Listener)(nil)

// New starts draining primary and secondary. The Listener owns both and
// closes them on Close.
func New(primary, secondary net.Listener, opts ...Option) *Listener {
	l := &Listener{
		primary:     primary,
		secondary:   secondary,
		primaryCh:   make(chan acceptResult),
		secondaryCh: make(chan acceptResult),
		done:        make(chan struct{}),
		failed:      make(chan struct{}),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.wg.Add(2)
	go l.drain(primary, l.primaryCh)
	go l.drain(secondary, l.secondaryCh)
	return l
}

// Listen binds tcp6 first and then tcp4 on the same port. With Port 0 the
// IPv4 listener reuses the port the kernel picked for IPv6.
func Listen(ctx context.Context, b Bind, opts ...Option) (*Listener, error) {
	var lc net.ListenConfig

	v6, err := lc.Listen(ctx, "tcp6", net.JoinHostPort(b.IPv6, strconv.Itoa(b.Port)))
	if err != nil {
		return nil, oops.Code("DUALSTACK_BIND_FAILED").
			With("family", "tcp6").
			With("address", b.IPv6).
			With("port", b.Port).
			Wrap(err)
	}

	port := b.Port
	if tcp, ok := v6.Addr().(*net.TCPAddr); ok {
		port = tcp.Port
	}

	v4, err := lc.Listen(ctx, "tcp4", net.JoinHostPort(b.IPv4, strconv.Itoa(port)))
	if err != nil {
		_ = v6.Close() //nolint:errcheck // bind error takes precedence
		return nil, oops.Code("DUALSTACK_BIND_FAILED").
			With("family", "tcp4").
			With("address", b.IPv4).
			With("port", port).
			Wrap(err)
	}

	return New(v6, v4, opts...), nil
}

// drain feeds accepted connections to out until a fatal accept error or
// Close. A connection accepted after Close is closed here since no caller
// will ever receive it.
func (l *Listener) drain(ln net.Listener, out chan<- acceptResult) {
	defer l.wg.Done()
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil && isTemporary(err) {
			backoff = nextBackoff(backoff)
			l.logger.Warn("temporary accept error, retrying",
				"addr", ln.Addr().String(), "backoff", backoff, "error", err)
			select {
			case <-time.After(backoff):
				continue
			case <-l.done:
				return
			}
		}
		backoff = 0
		if err != nil {
			err = &FatalError{Addr: ln.Addr(), Err: err}
		}
		select {
		case out <- acceptResult{conn: conn, err: err}:
		case <-l.done:
			if conn != nil {
				_ = conn.Close() //nolint:errcheck // nobody owns it
			}
			return
		}
		if err != nil {
			return
		}
	}
}

func isTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(2*d, maxAcceptBackoff)
}

// Accept returns the next connection from either family.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case <-l.done:
		return nil, net.ErrClosed
	case <-l.failed:
		return nil, l.fatal
	default:
	}

	select {
	case r := <-l.primaryCh:
		return l.deliver(r)
	default:
	}
	select {
	case r := <-l.secondaryCh:
		return l.deliver(r)
	default:
	}

	select {
	case r := <-l.primaryCh:
		return l.deliver(r)
	case r := <-l.secondaryCh:
		return l.deliver(r)
	case <-l.failed:
		return nil, l.fatal
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *Listener) deliver(r acceptResult) (net.Conn, error) {
	if r.err == nil {
		return r.conn, nil
	}
	select {
	case <-l.done:
		return nil, net.ErrClosed
	default:
	}
	l.failOnce.Do(func() {
		l.fatal = r.err
		close(l.failed)
	})
	return nil, l.fatal
}

// Close closes both inner listeners and waits for the drain goroutines to
// exit. Subsequent calls return the first result.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.closeErr = errors.Join(l.primary.Close(), l.secondary.Close())
		l.wg.Wait()
	})
	return l.closeErr
}

// Addr returns the primary listener's address.
func (l *Listener) Addr() net.Addr {
	return l.primary.Addr()
}

// Addrs returns the primary and secondary addresses.
func (l *Listener) Addrs() []net.Addr {
	return []net.Addr{l.primary.Addr(), l.secondary.Addr()}
}
