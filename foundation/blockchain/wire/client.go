package wire

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends envelopes to other nodes. Every call opens a new connection
// that carries a single message.
type Client struct {
	DialTimeout    time.Duration
	IOTimeout      time.Duration
	MaxMessageSize int
}

// DefaultClient is used when no client has been configured.
var DefaultClient = Client{
	DialTimeout:    3 * time.Second,
	IOTimeout:      10 * time.Second,
	MaxMessageSize: DefaultMaxMessageSize,
}

// Send delivers a fire and forget message to the specified address.
func (c Client) Send(ctx context.Context, addr string, typ string, payload any) error {
	conn, err := c.open(ctx, addr, typ, payload)
	if err != nil {
		return err
	}
	defer conn.Close()

	return nil
}

// Request delivers a message and decodes the framed reply into reply.
func (c Client) Request(ctx context.Context, addr string, typ string, payload any, reply any) error {
	conn, err := c.open(ctx, addr, typ, payload)
	if err != nil {
		return err
	}
	defer conn.Close()

	data, err := ReadFrame(conn, c.MaxMessageSize)
	if err != nil {
		return fmt.Errorf("%s reply from %s: %w", typ, addr, err)
	}

	if err := json.Unmarshal(data, reply); err != nil {
		return fmt.Errorf("decode %s reply from %s: %w", typ, addr, err)
	}

	return nil
}

// open dials the address and writes the envelope. The connection is left
// open for a reply.
func (c Client) open(ctx context.Context, addr string, typ string, payload any) (net.Conn, error) {
	data, err := Encode(typ, payload)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: c.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	deadline := time.Now().Add(c.ioTimeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if err := WriteFrame(conn, data, c.MaxMessageSize); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send %s to %s: %w", typ, addr, err)
	}

	return conn, nil
}

func (c Client) ioTimeout() time.Duration {
	if c.IOTimeout <= 0 {
		return DefaultClient.IOTimeout
	}
	return c.IOTimeout
}
