package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"
)

// Conn is one duplex gateway connection. ReadFrame returns the next text
// payload, already inflated when the server sent it compressed. A close frame
// from the server surfaces as *CloseError; any other loss as ErrClosed.
// Close may be called concurrently with ReadFrame and WriteFrame.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close(code int) error
}

// Dialer opens gateway connections.
type Dialer interface {
	Dial(ctx context.Context, gatewayURL string) (Conn, error)
}

// WebsocketDialer dials the gateway with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial connects to gatewayURL with the protocol version and JSON encoding
// query parameters set.
func (d WebsocketDialer) Dial(ctx context.Context, gatewayURL string) (Conn, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("v", strconv.Itoa(APIVersion))
	q.Set("encoding", "json")
	u.RawQuery = q.Encode()

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
		}
		return nil, fmt.Errorf("%w: %v", ErrClosed, err)
	}
	if mt == websocket.BinaryMessage {
		return inflate(data)
	}
	return data, nil
}

func (c *wsConn) WriteFrame(data []byte) error {
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

func (c *wsConn) Close(code int) error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// inflate decompresses one zlib-compressed payload.
func inflate(data []byte) ([]byte, error) {
	z, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ProtocolError{Reason: "open zlib frame", Err: err}
	}
	defer z.Close()

	out, err := io.ReadAll(z)
	if err != nil {
		return nil, &ProtocolError{Reason: "inflate frame", Err: err}
	}
	return out, nil
}
