package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// ErrMalformed marks a frame that arrived intact but could not be decoded.
// The connection stays usable.
var ErrMalformed = errors.New("malformed message")

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadRequest reads one text frame and returns its action together with the
// raw payload for a second, action-specific decode.
func ReadRequest(conn *websocket.Conn) (Action, []byte, error) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}

	var env RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", raw, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env.Action, raw, nil
}
