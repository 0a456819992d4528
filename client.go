package netring

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/ehrlich-b/go-netring/internal/wire"
)

// Conn is the minimal stream interface Client drives: a net.Conn and the
// TLS-wrapped variant both satisfy it, so pc_create's TLS branch in the
// original is just a different constructor rather than a different code
// path through send/receive.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ClientSettings mirrors spec §6's client settings.
type ClientSettings struct {
	Host   string
	Port   uint16
	Domain string // SNI name, TLS dial only
}

// Client is the blocking framing peer: pc_input_request / pc_output_request
// / pc_request / pc_clean from §4.5, generalized over any Conn.
type Client struct {
	conn Conn
}

// Dial opens a plain TCP connection to (host, port).
func Dial(settings ClientSettings) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, &Error{Op: "DIAL", Slot: -1, Code: ErrCodeSocketSetup, Msg: err.Error(), Inner: err}
	}
	return &Client{conn: conn}, nil
}

// TLSDial opens a TCP connection and wraps it in a TLS 1.3 session with
// peer verification against the default trust store, using settings.Domain
// as the SNI name.
func TLSDial(settings ClientSettings) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: settings.Domain,
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,
	})
	if err != nil {
		return nil, &Error{Op: "TLS_DIAL", Slot: -1, Code: ErrCodeSocketSetup, Msg: err.Error(), Inner: err}
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an already-connected Conn, for callers who dialed or
// constructed their own transport (loopback tests, non-blocking fds).
func NewClient(conn Conn) *Client {
	return &Client{conn: conn}
}

// SetTimeout installs receive and send deadlines with microsecond
// granularity, per §4.5's pc_set_timeout.
func (c *Client) SetTimeout(d time.Duration) error {
	now := time.Now()
	if err := c.conn.SetReadDeadline(now.Add(d)); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(now.Add(d))
}

// writeAll loops a write until size bytes are sent or an error occurs,
// mirroring pc_write's retry-on-partial-write loop.
func writeAll(conn Conn, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := conn.Write(buf[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

// readFull loops a read until size bytes are received, returning an error
// on a short read that hits EOF or an underlying error.
func readFull(conn Conn, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := conn.Read(buf[read:])
		if n == 0 && err == nil {
			return fmt.Errorf("netring: short read, connection closed")
		}
		read += n
		if err != nil {
			return err
		}
	}
	return nil
}

// SendRequest serializes header then streams the payload, looping on any
// partial write. This is pc_input_request.
func (c *Client) SendRequest(payload []byte, comprAlg wire.CompressionAlgorithm) error {
	hdr := make([]byte, wire.HeaderSize)
	wire.Marshal(wire.MessageHeaders{Size: uint64(len(payload)), ComprAlg: comprAlg}, hdr)
	if err := writeAll(c.conn, hdr); err != nil {
		return &Error{Op: "SEND_REQUEST", Slot: -1, Code: ErrCodeIO, Msg: err.Error(), Inner: err}
	}
	if err := writeAll(c.conn, payload); err != nil {
		return &Error{Op: "SEND_REQUEST", Slot: -1, Code: ErrCodeIO, Msg: err.Error(), Inner: err}
	}
	return nil
}

// ReceiveResponse reads exactly 9 header bytes, allocates a payload buffer
// of the advertised size, and reads exactly that many bytes. This is
// pc_output_request.
func (c *Client) ReceiveResponse() (wire.MessageHeaders, []byte, error) {
	hdr := make([]byte, wire.HeaderSize)
	if err := readFull(c.conn, hdr); err != nil {
		return wire.MessageHeaders{}, nil, &Error{Op: "RECEIVE_RESPONSE", Slot: -1, Code: ErrCodeIO, Msg: err.Error(), Inner: err}
	}
	h := wire.Unmarshal(hdr)
	payload := make([]byte, h.Size)
	if h.Size > 0 {
		if err := readFull(c.conn, payload); err != nil {
			return wire.MessageHeaders{}, nil, &Error{Op: "RECEIVE_RESPONSE", Slot: -1, Code: ErrCodeIO, Msg: err.Error(), Inner: err}
		}
	}
	return h, payload, nil
}

// Message pairs a payload with the compression tag it should be framed
// with, for use with Roundtrip.
type Message struct {
	Payload  []byte
	ComprAlg wire.CompressionAlgorithm
}

// Roundtrip sends N framed requests, then receives N framed responses in
// order. The first error stops further progress. This is pc_request.
func (c *Client) Roundtrip(requests []Message) ([][]byte, error) {
	for _, req := range requests {
		if err := c.SendRequest(req.Payload, req.ComprAlg); err != nil {
			return nil, err
		}
	}
	responses := make([][]byte, 0, len(requests))
	for range requests {
		_, payload, err := c.ReceiveResponse()
		if err != nil {
			return responses, err
		}
		responses = append(responses, payload)
	}
	return responses, nil
}

// Close is pc_clean: it releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
