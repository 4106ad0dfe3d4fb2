package browser

import (
	"encoding/json"
	"fmt"

	"entrypass/internal/destination"
)

// MessageType names a message on the browser-to-host stream.
type MessageType string

const (
	TypeReady              MessageType = "READY"
	TypeTokenExtracted     MessageType = "TOKEN_EXTRACTED"
	TypeNotReady           MessageType = "NOT_READY"
	TypePolling            MessageType = "POLLING"
	TypeTimeout            MessageType = "TIMEOUT"
	TypeFieldResult        MessageType = "FIELD_RESULT"
	TypeSubmissionComplete MessageType = "SUBMISSION_COMPLETE"
	TypeSubmissionFailed   MessageType = "SUBMISSION_FAILED"
)

// Message is one of the variants below. The set is closed: only types in
// this package implement it.
type Message interface {
	Type() MessageType
	isMessage()
}

// Ready reports the detection script is running.
type Ready struct{}

// TokenExtracted carries the challenge-clearance token.
type TokenExtracted struct {
	Token string `json:"token"`
}

// NotReady reports the challenge has not been solved yet.
type NotReady struct {
	Reason string `json:"reason,omitempty"`
}

// Polling reports the script's own poll progress.
type Polling struct {
	Count int `json:"count"`
	Max   int `json:"max"`
}

// Timeout reports the script gave up.
type Timeout struct{}

// FieldResult reports one form-fill attempt.
type FieldResult struct {
	Field     string                   `json:"field"`
	Filled    bool                     `json:"filled"`
	Heuristic destination.SelectorKind `json:"heuristic,omitempty"`
}

// SubmissionComplete carries the portal's confirmation after a form fill.
type SubmissionComplete struct {
	ArrCardNo string `json:"arrCardNo"`
	QRURI     string `json:"qrUri"`
	PDFPath   string `json:"pdfPath"`
}

// SubmissionFailed reports the portal rejected the filled form.
type SubmissionFailed struct {
	Reason string `json:"reason"`
}

func (Ready) Type() MessageType              { return TypeReady }
func (TokenExtracted) Type() MessageType     { return TypeTokenExtracted }
func (NotReady) Type() MessageType           { return TypeNotReady }
func (Polling) Type() MessageType            { return TypePolling }
func (Timeout) Type() MessageType            { return TypeTimeout }
func (FieldResult) Type() MessageType        { return TypeFieldResult }
func (SubmissionComplete) Type() MessageType { return TypeSubmissionComplete }
func (SubmissionFailed) Type() MessageType   { return TypeSubmissionFailed }

func (Ready) isMessage()              {}
func (TokenExtracted) isMessage()     {}
func (NotReady) isMessage()           {}
func (Polling) isMessage()            {}
func (Timeout) isMessage()            {}
func (FieldResult) isMessage()        {}
func (SubmissionComplete) isMessage() {}
func (SubmissionFailed) isMessage()   {}

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses a {type, payload} envelope. Unknown types are an error, not
// a silently ignored message.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode message envelope: %w", err)
	}

	var msg Message
	switch env.Type {
	case TypeReady:
		return Ready{}, nil
	case TypeTimeout:
		return Timeout{}, nil
	case TypeTokenExtracted:
		msg = &TokenExtracted{}
	case TypeNotReady:
		msg = &NotReady{}
	case TypePolling:
		msg = &Polling{}
	case TypeFieldResult:
		msg = &FieldResult{}
	case TypeSubmissionComplete:
		msg = &SubmissionComplete{}
	case TypeSubmissionFailed:
		msg = &SubmissionFailed{}
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return deref(msg), nil
}

func deref(m Message) Message {
	switch v := m.(type) {
	case *TokenExtracted:
		return *v
	case *NotReady:
		return *v
	case *Polling:
		return *v
	case *FieldResult:
		return *v
	case *SubmissionComplete:
		return *v
	case *SubmissionFailed:
		return *v
	}
	return m
}

// Encode writes m as a {type, payload} envelope.
func Encode(m Message) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	env := envelope{Type: m.Type()}
	if string(payload) != "{}" {
		env.Payload = payload
	}
	return json.Marshal(env)
}
