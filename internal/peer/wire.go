package peer

import (
	"encoding/json"
	"fmt"

	"github.com/park285/Cheese-Xiangqi/internal/xiangqi"
)

// MessageType is the numeric frame tag shared by peers and the relay.
type MessageType int

const (
	TypeHello MessageType = iota
	TypeMatchSuccess
	TypeGameStart
	TypeMove
	TypeGameEnd
	TypeError
)

func (t MessageType) String() string {
	switch t {
	case TypeHello:
		return "hello"
	case TypeMatchSuccess:
		return "match_success"
	case TypeGameStart:
		return "game_start"
	case TypeMove:
		return "move"
	case TypeGameEnd:
		return "game_end"
	case TypeError:
		return "error"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Message is one websocket frame: {"type": n, "data": {...}}.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type GameStart struct {
	Color xiangqi.Side `json:"color"`
}

// MovePayload carries coordinates in the sender's orientation.
type MovePayload struct {
	From xiangqi.Position `json:"from"`
	To   xiangqi.Position `json:"to"`
}

func (p MovePayload) Move() xiangqi.Move { return xiangqi.Move{From: p.From, To: p.To} }

// Mirror converts between the two players' orientations.
func (p MovePayload) Mirror() MovePayload {
	return MovePayload{From: p.From.Mirror(), To: p.To.Mirror()}
}

type GameEnd struct {
	Winner xiangqi.Side `json:"winner"`
	Reason string       `json:"reason,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in TypeError frames.
const (
	CodeNotMatched     = "not_matched"
	CodeIllegalMove    = "illegal_move"
	CodeRemoteRejected = "remote_rejected"
	CodeBadFrame       = "bad_frame"
	CodeGameOver       = "game_over"
	CodeInvalidResult  = "invalid_result"
)

// NewMessage builds a frame; data may be nil.
func NewMessage(t MessageType, data any) (Message, error) {
	msg := Message{Type: t}
	if data == nil {
		return msg, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s: %w", t, err)
	}
	msg.Data = raw
	return msg, nil
}

// Decode unmarshals the frame payload into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s frame without data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}
