package cpuprotocol

import (
	"context"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DisconnectHandler is a callback function called when the connection is lost.
type DisconnectHandler func(err error)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for protocol anomalies and connection
// statistics.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithCommandTimeout sets how long a command may wait for its reply.
// Zero disables the timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client is a TCP client for a remote emulator server.
//
// Commands are written by the calling goroutine; replies and server events
// are decoded by a single reader goroutine per connection, which also runs
// the bus and trace handlers and writes their replies.
//
// Thread Safety:
// The client uses a mutex to protect its state and is safe for concurrent
// use from multiple goroutines.
type Client struct {
	mu sync.Mutex

	conn        net.Conn
	addr        string
	isConnected bool

	// sendMu keeps the order of the reply queue equal to the order of
	// commands on the wire, and serializes event replies with commands.
	sendMu sync.Mutex

	corr *correlator
	disp *dispatcher

	timeout           time.Duration
	logger            *log.Logger
	disconnectHandler DisconnectHandler

	readerDone chan struct{}

	sentBytes atomic.Uint64
	recvBytes atomic.Uint64
	connStart time.Time
}

// NewClient creates a new emulator client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout: CommandTimeout,
		logger:  log.New(os.Stderr, "[CPUClient] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.disp = &dispatcher{send: c.sendReply, logger: c.logger}
	return c
}

// SetBusHandler sets the handler for address, bus read/write and reset events.
func (c *Client) SetBusHandler(h BusHandler) {
	c.disp.setBusHandler(h)
}

// SetTraceHandler sets the handler for execution and exception trace events.
func (c *Client) SetTraceHandler(h TraceHandler) {
	c.disp.setTraceHandler(h)
}

// SetDisconnectHandler sets the callback for unexpected disconnection.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectHandler = handler
}

// IsConnected returns true if the client is currently connected.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Addr returns the address of the connected server.
// Returns empty string if not connected.
func (c *Client) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// Connect connects to an emulator server at addr (host:port).
func (c *Client) Connect(addr string) error {
	return c.ConnectWithContext(context.Background(), addr)
}

// ConnectWithContext connects to an emulator server with a context for cancellation.
func (c *Client) ConnectWithContext(ctx context.Context, addr string) error {
	c.mu.Lock()
	if c.isConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(connectCtx, "tcp", addr)
	if err != nil {
		return NewConnectionError("failed to connect", err)
	}

	corr := newCorrelator(c.timeout, c.logger)
	dec := newDecoder(StandardOpcodes(), corr, c.disp, c.logger)
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.addr = addr
	c.isConnected = true
	c.corr = corr
	c.readerDone = done
	c.connStart = time.Now()
	c.sentBytes.Store(0)
	c.recvBytes.Store(0)
	c.mu.Unlock()

	c.logger.Printf("Connected to %s", addr)
	go c.readerLoop(conn, dec, done)
	return nil
}

// Disconnect closes the connection. Commands still waiting for a reply fail
// with ErrConnectionClosed.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.isConnected {
		c.mu.Unlock()
		return
	}
	c.isConnected = false
	conn := c.conn
	corr := c.corr
	done := c.readerDone
	c.mu.Unlock()

	// Closing the connection unblocks the reader goroutine.
	conn.Close()
	<-done
	corr.abortAll(ErrConnectionClosed)
	c.logStats()

	c.mu.Lock()
	c.conn = nil
	c.addr = ""
	c.readerDone = nil
	c.mu.Unlock()
}

// Bye tells the server the session is over and closes the connection.
func (c *Client) Bye() {
	c.mu.Lock()
	conn := c.conn
	connected := c.isConnected
	c.mu.Unlock()
	if !connected {
		return
	}

	c.sendMu.Lock()
	if err := c.write(conn, NewByeCommand().Encode()); err != nil {
		c.logger.Printf("Failed to send BYE: %v", err)
	}
	c.sendMu.Unlock()
	c.Disconnect()
}

// Submit sends cmd and returns its pending call. The command is written
// before Submit returns; replies are matched to calls in send order.
func (c *Client) Submit(cmd Command) *Call {
	c.mu.Lock()
	if !c.isConnected {
		c.mu.Unlock()
		return failedCall(cmd, &CommandError{Kind: ErrKindAborted, Command: cmd, Cause: ErrNotConnected})
	}
	conn := c.conn
	corr := c.corr
	c.mu.Unlock()

	c.sendMu.Lock()
	call := corr.push(cmd)
	err := c.write(conn, cmd.Encode())
	c.sendMu.Unlock()

	if err != nil {
		corr.remove(call)
		call.settle(nil, &CommandError{Kind: ErrKindAborted, Command: cmd, Cause: err})
	}
	return call
}

// Pending returns the number of commands waiting for a reply, counting
// timed-out commands whose reply has not arrived yet.
func (c *Client) Pending() int {
	c.mu.Lock()
	corr := c.corr
	c.mu.Unlock()
	if corr == nil {
		return 0
	}
	return corr.pending()
}

// write must be called with sendMu held.
func (c *Client) write(conn net.Conn, p []byte) error {
	n, err := conn.Write(p)
	c.sentBytes.Add(uint64(n))
	if err != nil {
		return NewConnectionError("failed to send", err)
	}
	return nil
}

// sendReply writes an event reply. Called from the reader goroutine.
func (c *Client) sendReply(p []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.write(conn, p)
}

// readerLoop reads from the connection and feeds the decoder until the
// connection fails or the stream desynchronizes.
func (c *Client) readerLoop(conn net.Conn, dec *Decoder, done chan struct{}) {
	defer close(done)

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.recvBytes.Add(uint64(n))
			if ferr := dec.Feed(buf[:n]); ferr != nil {
				c.logger.Printf("Closing connection: %v", ferr)
				c.handleDisconnect(ferr)
				return
			}
		}
		if err != nil {
			c.handleDisconnect(err)
			return
		}
	}
}

// handleDisconnect handles an unexpected disconnection.
func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	if !c.isConnected {
		c.mu.Unlock()
		return
	}
	c.isConnected = false
	conn := c.conn
	corr := c.corr
	handler := c.disconnectHandler
	c.conn = nil
	c.addr = ""
	c.mu.Unlock()

	conn.Close()
	corr.abortAll(NewConnectionError("disconnected", err))
	c.logStats()

	if handler != nil {
		handler(err)
	}
}

// Stats reports the traffic of the current or last connection.
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	Elapsed       time.Duration
}

// SendRate returns bytes sent per second.
func (s Stats) SendRate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.BytesSent) / s.Elapsed.Seconds()
}

// RecvRate returns bytes received per second.
func (s Stats) RecvRate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.BytesReceived) / s.Elapsed.Seconds()
}

// Stats returns the traffic counters of the current or last connection.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	start := c.connStart
	c.mu.Unlock()
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}
	return Stats{
		BytesSent:     c.sentBytes.Load(),
		BytesReceived: c.recvBytes.Load(),
		Elapsed:       elapsed,
	}
}

func (c *Client) logStats() {
	s := c.Stats()
	c.logger.Printf("Disconnected - Sent %d bytes/sec, Recv %d bytes/sec",
		int64(s.SendRate()), int64(s.RecvRate()))
}
