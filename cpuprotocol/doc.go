// Package cpuprotocol implements the client side of the binary stream
// protocol used to drive a remote, cycle-stepped 68000 emulator.
//
// The client pushes register state into the remote CPU, steps it one tick at
// a time and reads the final state back. While a tick is being executed the
// server calls back into the client over the same connection: it asserts an
// address, reads or writes the 16-bit data bus, signals RESET, and reports
// executed instructions and exceptions. The client must answer every one of
// these events before the remote CPU can continue.
//
// # Wire Format
//
// Every message starts with a single opcode byte. There is no length prefix;
// the opcode alone determines the layout of the fields that follow. All
// multi-byte integers are big-endian.
//
//	Command (client -> server):  <opcode> [reg:1] [value:2|4]
//	Reply   (server -> client):  ACK [payload] | FAIL
//	Event   (server -> client):  <0x8X opcode> <fields>
//	Event reply (client -> server): ACK [payload] | FAIL
//
// The server answers commands strictly in the order they were sent, so the
// payload layout of an ACK is taken from the oldest outstanding command.
//
// # Basic Usage
//
//	ram := cpuprotocol.NewMemory(cpuprotocol.DefaultRAMSize)
//	client := cpuprotocol.NewClient()
//	client.SetBusHandler(ram)
//
//	if err := client.Connect(cpuprotocol.DefaultAddr()); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Bye()
//
//	ctx := context.Background()
//	if err := client.WriteDreg(ctx, 0, 0x12345678); err != nil {
//	    log.Fatal(err)
//	}
//	v, err := client.ReadDreg(ctx, 0)
//
// # Pipelining
//
// Submit sends a command immediately and returns a *Call that settles when
// the reply arrives, the server answers FAIL, or the command timeout fires.
// Several calls may be in flight at once; they settle in send order.
//
//	calls := []*cpuprotocol.Call{
//	    client.Submit(cpuprotocol.NewWriteDregCommand(0, 1)),
//	    client.Submit(cpuprotocol.NewWriteDregCommand(1, 2)),
//	}
//	for _, c := range calls {
//	    if _, err := c.Wait(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Thread Safety
//
// Client methods are safe for concurrent use. Decoding and event dispatch run
// on a single reader goroutine per connection, so BusHandler and TraceHandler
// implementations are never called concurrently with each other.
package cpuprotocol
