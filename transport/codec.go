package transport

import (
	"encoding/json"
	"fmt"

	"github.com/yllada/voicelink/message"
)

// envelope is the JSON frame carried in every websocket text message.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// encode wraps msg in an envelope.
func encode(msg message.Message) (envelope, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to encode %s: %w", msg.Type(), err)
	}
	return envelope{Type: msg.Type(), Payload: payload}, nil
}

// decode unwraps a server frame. Unknown types return a nil message.
func decode(env envelope) (message.Message, error) {
	var msg message.Message
	switch env.Type {
	case message.TypeServerSync:
		var m message.ServerSync
		if err := unmarshal(env, &m); err != nil {
			return nil, err
		}
		msg = m
	case message.TypeReject:
		var m message.Reject
		if err := unmarshal(env, &m); err != nil {
			return nil, err
		}
		msg = m
	case message.TypeChannelState:
		var m message.ChannelState
		if err := unmarshal(env, &m); err != nil {
			return nil, err
		}
		msg = m
	case message.TypeChannelRemove:
		var m message.ChannelRemove
		if err := unmarshal(env, &m); err != nil {
			return nil, err
		}
		msg = m
	case message.TypeUserState:
		var m message.UserState
		if err := unmarshal(env, &m); err != nil {
			return nil, err
		}
		msg = m
	}
	return msg, nil
}

func unmarshal(env envelope, v interface{}) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", env.Type, err)
	}
	return nil
}
