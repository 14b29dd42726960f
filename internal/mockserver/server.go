package mockserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"elmtorture/internal/suite"
	"elmtorture/pkg/logging"
)

// FixtureExitCode is the process exit code used when a suite's network
// fixture is violated.
const FixtureExitCode = 0x28

const shutdownTimeout = 5 * time.Second

// Protocol is the scheme a mock server speaks.
type Protocol int

const (
	HTTP Protocol = iota
	HTTPS
)

// Scheme is the URL scheme prefix handed to the running program.
func (p Protocol) Scheme() string {
	if p == HTTPS {
		return "https://"
	}
	return "http://"
}

func (p Protocol) String() string {
	if p == HTTPS {
		return "HTTPS"
	}
	return "HTTP"
}

// FatalFunc is called when a request does not match the script. It is not
// expected to return.
type FatalFunc func(msg string)

func defaultFatal(msg string) {
	logging.Error("MockServer", errors.New(msg), "Network fixture violated, aborting")
	os.Exit(FixtureExitCode)
}

// Option configures a Pool.
type Option func(*Pool)

// WithFatal replaces the handler for script violations.
func WithFatal(fn FatalFunc) Option {
	return func(p *Pool) {
		p.fatal = fn
	}
}

// Pool hosts every mock server of the process. Sessions started from a pool
// share its lifetime: closing the pool stops all of them.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	fatal  FatalFunc

	tlsOnce   sync.Once
	tlsConfig *tls.Config
	tlsErr    error
}

// NewPool creates an empty pool.
func NewPool(opts ...Option) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		ctx:    ctx,
		cancel: cancel,
		fatal:  defaultFatal,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close stops every running session and waits for them to finish.
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}

type bound struct {
	addr string
	err  error
}

// Start binds a server on addr (use port 0 for an ephemeral port) that
// replays script, and returns once the bound address is known. The returned
// session must be closed.
func (p *Pool) Start(proto Protocol, addr string, script []suite.NetworkItem) (*Session, error) {
	if err := p.ctx.Err(); err != nil {
		return nil, fmt.Errorf("server pool is closed: %w", err)
	}

	var tlsConfig *tls.Config
	if proto == HTTPS {
		var err error
		if tlsConfig, err = p.serverTLS(); err != nil {
			return nil, err
		}
	}

	s := &Session{
		ID:       uuid.New(),
		protocol: proto,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	h := newScriptHandler(s.ID, script, p.fatal)
	s.script = h

	ready := make(chan bound, 1)
	p.wg.Add(1)
	go p.serve(s, addr, h, tlsConfig, ready)

	b := <-ready
	if b.err != nil {
		return nil, fmt.Errorf("starting %s server on %s: %w", proto, addr, b.err)
	}
	s.addr = b.addr
	logging.Info("MockServer", "Starting %s server %s at %s", proto, s.ID, s.addr)
	return s, nil
}

func (p *Pool) serve(s *Session, addr string, h http.Handler, tlsConfig *tls.Config, ready chan<- bound) {
	defer p.wg.Done()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		ready <- bound{err: err}
		close(s.done)
		return
	}

	srv := &http.Server{ReadHeaderTimeout: 10 * time.Second}
	if tlsConfig != nil {
		srv.Handler = h
		srv.TLSConfig = tlsConfig.Clone()
		if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
			_ = ln.Close()
			ready <- bound{err: err}
			close(s.done)
			return
		}
		ln = tls.NewListener(ln, srv.TLSConfig)
	} else {
		srv.Handler = h2c.NewHandler(h, &http2.Server{})
	}

	ready <- bound{addr: ln.Addr().String()}

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(ln)
	}()

	select {
	case <-s.stop:
	case <-p.ctx.Done():
	case err := <-served:
		logging.Error("MockServer", err, "Server %s stopped unexpectedly", s.ID)
		close(s.done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("MockServer", "Graceful shutdown of server %s failed, closing: %v", s.ID, err)
		_ = srv.Close()
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Warn("MockServer", "Server %s: %v", s.ID, err)
	}
	logging.Debug("MockServer", "Server %s at %s stopped", s.ID, s.addr)
	close(s.done)
}

func (p *Pool) serverTLS() (*tls.Config, error) {
	p.tlsOnce.Do(func() {
		var cert tls.Certificate
		cert, p.tlsErr = selfSignedCertificate()
		if p.tlsErr == nil {
			p.tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}
	})
	return p.tlsConfig, p.tlsErr
}

// Session is one running mock server.
type Session struct {
	ID       uuid.UUID
	addr     string
	protocol Protocol
	script   *scriptHandler

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Addr is the bound host:port.
func (s *Session) Addr() string {
	return s.addr
}

// Protocol is the scheme the server speaks.
func (s *Session) Protocol() Protocol {
	return s.protocol
}

// Info describes the server to the running program.
func (s *Session) Info() *suite.ServerInfo {
	return &suite.ServerInfo{URL: s.addr, Protocol: s.protocol.Scheme()}
}

// Served reports how many scripted requests have been answered so far.
func (s *Session) Served() int {
	return s.script.served()
}

// Close stops the server and blocks until it has released its port.
// Calling Close more than once is safe.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}
