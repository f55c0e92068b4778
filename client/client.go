// Package client is a convenience client for the key-value server. Every
// call opens its own connection, sends one request and reads one response.
package client

import (
	"context"
	"net"
	"time"

	"github.com/IvanBrykalov/kvcache/internal/singleflight"
	"github.com/IvanBrykalov/kvcache/kverr"
	"github.com/IvanBrykalov/kvcache/wire"
)

// Client timeout defaults.
const (
	DefaultDialTimeout = 5 * time.Second
	DefaultIOTimeout   = 10 * time.Second
)

// Options configures a Client. Zero values are replaced in New():
//   - Format 0        => wire.FormatXML
//   - DialTimeout <= 0 => DefaultDialTimeout
//   - IOTimeout <= 0   => DefaultIOTimeout (used when ctx has no deadline)
type Options struct {
	Format      wire.Format
	DialTimeout time.Duration
	IOTimeout   time.Duration

	// CoalesceGets lets concurrent Gets of one key share a single round trip.
	// A Get that joins a round trip already in flight gets that round trip's
	// answer, which may predate a Put this client completed after the round
	// trip started. Leave it off when a Get must observe the caller's own
	// earlier writes.
	CoalesceGets bool
}

// Client talks to one server address. It is safe for concurrent use.
type Client struct {
	addr   string
	opt    Options
	dialer net.Dialer
	gets   singleflight.Group[string, string]
}

// New creates a Client for addr ("host:port").
func New(addr string, opt Options) *Client {
	if opt.Format == 0 {
		opt.Format = wire.FormatXML
	}
	if opt.DialTimeout <= 0 {
		opt.DialTimeout = DefaultDialTimeout
	}
	if opt.IOTimeout <= 0 {
		opt.IOTimeout = DefaultIOTimeout
	}
	return &Client{addr: addr, opt: opt, dialer: net.Dialer{Timeout: opt.DialTimeout}}
}

// Put stores key → value.
func (c *Client) Put(ctx context.Context, key, value string) error {
	resp, err := c.Do(ctx, wire.NewPutRequest(key, value))
	if err != nil {
		return err
	}
	return ack(resp)
}

// Get fetches the value of key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if !c.opt.CoalesceGets {
		return c.get(ctx, key)
	}
	v, _, err := c.gets.Do(ctx, key, func() (string, error) { return c.get(ctx, key) })
	return v, err
}

func (c *Client) get(ctx context.Context, key string) (string, error) {
	resp, err := c.Do(ctx, wire.NewGetRequest(key))
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	v, ok := resp.Value()
	if !ok {
		return "", kverr.E(kverr.FormatError, "client.get")
	}
	return v, nil
}

// Del removes key.
func (c *Client) Del(ctx context.Context, key string) error {
	resp, err := c.Do(ctx, wire.NewDelRequest(key))
	if err != nil {
		return err
	}
	return ack(resp)
}

// Do performs one raw exchange on a fresh connection.
func (c *Client) Do(ctx context.Context, req wire.Message) (wire.Message, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return wire.Message{}, kverr.Wrap(kverr.TransportError, "client.dial", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.opt.IOTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return wire.Message{}, kverr.Wrap(kverr.TransportError, "client.deadline", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := wire.WriteMessage(conn, req, c.opt.Format); err != nil {
		if kverr.KindOf(err) == kverr.EncodingError {
			return wire.Message{}, err
		}
		return wire.Message{}, kverr.Wrap(kverr.TransportError, "client.write", err)
	}
	resp, _, err := wire.ReadMessage(conn)
	if err != nil {
		if kverr.KindOf(err) == kverr.Unknown {
			// io.EOF: the server hung up without answering.
			return wire.Message{}, kverr.Wrap(kverr.TransportError, "client.read", err)
		}
		return wire.Message{}, err
	}
	if resp.Type() != wire.Response {
		return wire.Message{}, kverr.E(kverr.FormatError, "client.read")
	}
	return resp, nil
}

// ack accepts only the success acknowledgement.
func ack(resp wire.Message) error {
	text, ok := resp.Text()
	if !ok {
		return kverr.E(kverr.FormatError, "client.ack")
	}
	return kverr.FromText(text)
}
