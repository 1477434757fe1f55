// Package cputest provides a loopback emulator server for testing clients
// of the cpuprotocol package.
//
// The server speaks the server side of the wire protocol and runs a tiny
// 68000 subset: enough instructions to make every kind of server event
// appear on the wire. Every bus access of a tick goes through the client,
// exactly like with the real emulator.
//
// Supported instructions:
//
//	$4E71        NOP
//	$4E70        RESET            raises EVENT_RESET
//	$4E72 xxxx   STOP #xxxx       loads SR and stops the CPU
//	$7nxx        MOVEQ #xx,Dn
//	$3080        MOVE.W D0,(A0)   address error if A0 is odd
//	$3210        MOVE.W (A0),D1   address error if A0 is odd
//	$1080        MOVE.B D0,(A0)
//
// Anything else is reported as an illegal instruction (vector 4) and skipped.
package cputest

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/inseo-oh/con68/cpuprotocol"
)

// CPU is the register state of the fake CPU.
type CPU struct {
	D   [8]uint32
	A   [7]uint32
	SSP uint32
	USP uint32
	PC  uint32
	SR  uint16

	Stopped   bool
	TraceExec bool
	TraceExc  bool
}

type config struct {
	chunkSize  int
	replyDelay map[cpuprotocol.Opcode]time.Duration
	failOps    map[cpuprotocol.Opcode]bool
}

// Option configures a Server.
type Option func(*config)

// WithChunkSize makes the server write every message in pieces of n bytes,
// so that the client sees frames split across reads.
func WithChunkSize(n int) Option {
	return func(c *config) { c.chunkSize = n }
}

// WithReplyDelay makes the server sleep for d before replying to op.
func WithReplyDelay(op cpuprotocol.Opcode, d time.Duration) Option {
	return func(c *config) { c.replyDelay[op] = d }
}

// WithFailure makes the server answer op with FAIL.
func WithFailure(op cpuprotocol.Opcode) Option {
	return func(c *config) { c.failOps[op] = true }
}

// Server is a loopback emulator server. It accepts any number of
// connections, each with its own CPU.
type Server struct {
	// Addr is the host:port the server listens on.
	Addr string

	listener net.Listener
	cfg      config
	t        testing.TB

	mu    sync.Mutex
	conns []*serverConn
	last  CPU
	bye   bool

	wg sync.WaitGroup
}

// NewServer starts a server on a random loopback port. It is stopped
// automatically when the test finishes.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create fake emulator listener: %v", err)
	}

	s := &Server{
		Addr:     listener.Addr().String(),
		listener: listener,
		t:        t,
		cfg: config{
			replyDelay: map[cpuprotocol.Opcode]time.Duration{},
			failOps:    map[cpuprotocol.Opcode]bool{},
		},
	}
	for _, opt := range opts {
		opt(&s.cfg)
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		sc := &serverConn{
			srv:  s,
			conn: conn,
			r:    bufio.NewReader(conn),
		}
		s.mu.Lock()
		s.conns = append(s.conns, sc)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := sc.serve(); err != nil {
				s.t.Logf("fake emulator: closing connection: %v", err)
			}
			conn.Close()
		}()
	}
}

// Close stops the server and closes every connection.
func (s *Server) Close() {
	s.listener.Close()

	s.mu.Lock()
	for _, sc := range s.conns {
		sc.conn.Close()
	}
	s.conns = nil
	s.mu.Unlock()

	s.wg.Wait()
}

// CPU returns the register state of the most recently served command.
func (s *Server) CPU() CPU {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// GotBye reports whether a client ended its session with BYE.
func (s *Server) GotBye() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bye
}

// Inject writes raw bytes to every open connection, bypassing the
// protocol. Used to feed malformed or unsolicited frames to a client.
func (s *Server) Inject(p []byte) error {
	s.mu.Lock()
	conns := append([]*serverConn(nil), s.conns...)
	s.mu.Unlock()

	for _, sc := range conns {
		if err := sc.out(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) record(cpu CPU) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = cpu
}
