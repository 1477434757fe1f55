package cpuprotocol

import "context"

// Synchronous wrappers around Submit. Each sends one command and waits for
// its reply, the command timeout, or ctx.

func (c *Client) exec(ctx context.Context, cmd Command) (Fields, error) {
	return c.Submit(cmd).Wait(ctx)
}

func (c *Client) execNoReply(ctx context.Context, cmd Command) error {
	_, err := c.exec(ctx, cmd)
	return err
}

// WriteDreg sets data register Dn.
func (c *Client) WriteDreg(ctx context.Context, reg uint8, v uint32) error {
	return c.execNoReply(ctx, NewWriteDregCommand(reg, v))
}

// ReadDreg reads data register Dn.
func (c *Client) ReadDreg(ctx context.Context, reg uint8) (uint32, error) {
	f, err := c.exec(ctx, NewReadDregCommand(reg))
	return f.Long(0), err
}

// WriteAreg sets address register An.
func (c *Client) WriteAreg(ctx context.Context, reg uint8, v uint32) error {
	return c.execNoReply(ctx, NewWriteAregCommand(reg, v))
}

// ReadAreg reads address register An.
func (c *Client) ReadAreg(ctx context.Context, reg uint8) (uint32, error) {
	f, err := c.exec(ctx, NewReadAregCommand(reg))
	return f.Long(0), err
}

// WriteSSP sets the supervisor stack pointer.
func (c *Client) WriteSSP(ctx context.Context, v uint32) error {
	return c.execNoReply(ctx, NewWriteSSPCommand(v))
}

// ReadSSP reads the supervisor stack pointer.
func (c *Client) ReadSSP(ctx context.Context) (uint32, error) {
	f, err := c.exec(ctx, NewReadSSPCommand())
	return f.Long(0), err
}

// WriteUSP sets the user stack pointer.
func (c *Client) WriteUSP(ctx context.Context, v uint32) error {
	return c.execNoReply(ctx, NewWriteUSPCommand(v))
}

// ReadUSP reads the user stack pointer.
func (c *Client) ReadUSP(ctx context.Context) (uint32, error) {
	f, err := c.exec(ctx, NewReadUSPCommand())
	return f.Long(0), err
}

// WritePC sets the program counter.
func (c *Client) WritePC(ctx context.Context, v uint32) error {
	return c.execNoReply(ctx, NewWritePCCommand(v))
}

// ReadPC reads the program counter.
func (c *Client) ReadPC(ctx context.Context) (uint32, error) {
	f, err := c.exec(ctx, NewReadPCCommand())
	return f.Long(0), err
}

// WriteSR sets the status register.
func (c *Client) WriteSR(ctx context.Context, v uint16) error {
	return c.execNoReply(ctx, NewWriteSRCommand(v))
}

// ReadSR reads the status register.
func (c *Client) ReadSR(ctx context.Context) (uint16, error) {
	f, err := c.exec(ctx, NewReadSRCommand())
	return f.Word(0), err
}

// Tick runs the CPU for one tick. Bus and trace events raised during the
// tick are answered by the handlers before Tick returns.
func (c *Client) Tick(ctx context.Context) error {
	return c.execNoReply(ctx, NewTickCommand())
}

// IsStopped reports whether the CPU is in the stopped state.
func (c *Client) IsStopped(ctx context.Context) (bool, error) {
	f, err := c.exec(ctx, NewIsStoppedCommand())
	if err != nil {
		return false, err
	}
	return f.Byte(0) == 1, nil
}

// Unstop takes the CPU out of the stopped state.
func (c *Client) Unstop(ctx context.Context) error {
	return c.execNoReply(ctx, NewUnstopCommand())
}

// SetTraceExec enables or disables execution trace events.
func (c *Client) SetTraceExec(ctx context.Context, on bool) error {
	return c.execNoReply(ctx, NewTraceExecCommand(on))
}

// SetTraceExc enables or disables exception trace events.
func (c *Client) SetTraceExc(ctx context.Context, on bool) error {
	return c.execNoReply(ctx, NewTraceExcCommand(on))
}
