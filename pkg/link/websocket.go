// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/Thermoquad/hlinkctl/pkg/updater"
)

// Dial timeouts
const (
	HandshakeTimeout = 10 * time.Second
	DialTimeout      = 15 * time.Second
)

// WebSocket carries one frame per binary message through a bridge
type WebSocket struct {
	vendorOnly
	conn   *websocket.Conn
	url    string
	closed bool
}

var _ updater.Backend = (*WebSocket)(nil)

// DialWebSocket connects to a bridge with optional HTTP Basic auth
func DialWebSocket(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (*WebSocket, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, errors.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "WebSocket connection failed (HTTP %d)", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "WebSocket connection failed")
	}

	return &WebSocket{conn: conn, url: wsURL}, nil
}

// URL returns the bridge URL
func (w *WebSocket) URL() string { return w.url }

// BulkTransfer sends buf as one binary message for the OUT endpoint, or
// receives the next binary message into buf for the IN endpoint. Messages
// longer than buf are cut to its length.
func (w *WebSocket) BulkTransfer(ctx context.Context, endpoint uint8, buf []byte, timeout time.Duration) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if endpoint&0x80 == 0 {
		if err := w.conn.SetWriteDeadline(deadline); err != nil {
			return 0, err
		}
		if err := w.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			w.closed = true
			return 0, err
		}
		return len(buf), nil
	}

	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// gorilla/websocket connections are unusable after a read error
			w.closed = true
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		return copy(buf, data), nil
	}
}

// Close sends a close frame and closes the connection
func (w *WebSocket) Close() error {
	if w.closed {
		return w.conn.Close()
	}
	w.closed = true
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}
