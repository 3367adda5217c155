package transport

import "encoding/json"

// Envelope types.
const (
	TypeHello = "hello"
	TypeEmit  = "emit"
	TypeReply = "reply"
	TypePush  = "push"
)

// Envelope is a single websocket frame. The client sends "emit"
// envelopes; the server answers with "reply" envelopes carrying the
// same ID and sends unsolicited "push" envelopes. The first frame of a
// connection is the server's "hello".
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Hello is the payload of the server's greeting.
type Hello struct {
	Version string `json:"version"`
}

// RemoteError is a failure reported by the server in a reply.
type RemoteError struct {
	Event   string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
