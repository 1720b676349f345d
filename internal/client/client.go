// Package client implements the client side of the transfer engine: the
// session that originates requests, drives the chunked upload/download
// loops and owns retry, reconnect and resume logic.
package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"filehub/internal/config"
	"filehub/internal/protocol"
)

var (
	// ErrConnection indicates the server could not be reached within the
	// configured attempt ceiling.
	ErrConnection = errors.New("could not connect to server")
	// ErrTimeout indicates the server did not answer within the operation
	// deadline.
	ErrTimeout = errors.New("server not responding")
	// ErrCorrupted indicates a completed download whose content hash did not
	// match the server-declared hash.
	ErrCorrupted = errors.New("file corruption detected")
	// ErrUnexpectedReply indicates a response frame that does not fit the
	// request that was sent.
	ErrUnexpectedReply = errors.New("unexpected reply from server")
)

// Client is one session against a file server. All network I/O is blocking
// with deadlines; transfers run strictly one chunk at a time.
type Client struct {
	cfg      config.ClientConfig
	reporter Reporter
	log      logrus.FieldLogger

	conn  net.Conn
	codec *protocol.Codec
}

// New creates a client session. A nil reporter discards progress updates.
func New(cfg config.ClientConfig, reporter Reporter, log logrus.FieldLogger) *Client {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Client{
		cfg:      cfg,
		reporter: reporter,
		log:      log.WithField("component", "client"),
	}
}

// Connect dials the server with a bounded timeout, retrying with exponential
// backoff up to the configured attempt ceiling before surfacing
// ErrConnection.
func (c *Client) Connect() error {
	backoff := c.cfg.RetryBackoff
	attempts := c.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(backoff)
			backoff *= 2
		}

		conn, err := net.DialTimeout("tcp", c.cfg.ServerAddr, c.cfg.ConnectTimeout)
		if err == nil {
			c.setConn(conn)
			c.log.WithField("addr", c.cfg.ServerAddr).Info("Connected to server")
			return nil
		}
		lastErr = err
		c.log.WithError(err).WithFields(logrus.Fields{
			"attempt":  attempt,
			"attempts": attempts,
		}).Warn("Connection attempt failed")
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrConnection, attempts, lastErr)
}

// Close closes the connection if one is open.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.codec = nil
	return err
}

func (c *Client) setConn(conn net.Conn) {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.codec = protocol.NewCodec(conn)
}

func (c *Client) reconnect() error {
	c.Close()
	return c.Connect()
}

// sendRequest sends one request frame and block-reads the response. On a
// timeout or reset it performs exactly one reconnect-and-resend cycle before
// surfacing the error; it never loops. An error response from the server is
// returned as *protocol.RemoteError.
func (c *Client) sendRequest(msg *protocol.Message) (*protocol.Message, error) {
	if c.conn == nil {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	resp, err := c.exchange(msg)
	if err == nil {
		return checkResponse(resp)
	}
	if errors.Is(err, protocol.ErrProtocol) {
		// The server answered; resending on the same garbled stream cannot
		// help.
		return nil, err
	}

	c.log.WithError(err).Warn("Communication error, reconnecting")
	if rerr := c.reconnect(); rerr != nil {
		return nil, rerr
	}
	resp, err = c.exchange(msg)
	if err != nil {
		return nil, classify(err)
	}
	return checkResponse(resp)
}

// exchange performs one framed write and one framed read under the operation
// deadline.
func (c *Client) exchange(msg *protocol.Message) (*protocol.Message, error) {
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.OpTimeout))
	if err := c.codec.WriteMessage(msg); err != nil {
		return nil, err
	}
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.OpTimeout))
	return c.codec.ReadMessage()
}

// checkResponse lifts server-side error frames into RemoteError values.
func checkResponse(resp *protocol.Message) (*protocol.Message, error) {
	if resp.Status == protocol.StatusError {
		return nil, &protocol.RemoteError{Kind: resp.Kind, Detail: resp.Detail}
	}
	return resp, nil
}

// classify maps transport failures onto the client error taxonomy.
func classify(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
