// Package reply builds the JSON envelope returned by JSON-style endpoints:
// {"error": false|true|"code", "message": string|null, "data": ...}.
package reply

import (
	"encoding/json"
	"net/http"
)

// Envelope is the structured reply. Error is either a bool or a string code;
// use the constructors to keep it that way.
type Envelope struct {
	Error   any     `json:"error"`
	Message *string `json:"message"`
	Data    any     `json:"data"`
}

// OK is a successful reply. An empty message encodes as null.
func OK(message string, data any) Envelope {
	return Envelope{Error: false, Message: optional(message), Data: data}
}

// Fail is an error reply flagged with true.
func Fail(message string, data any) Envelope {
	return Envelope{Error: true, Message: optional(message), Data: data}
}

// FailCode is an error reply flagged with a string code (for example "local"
// for errors the client should show inline). An empty code degrades to true.
func FailCode(code, message string, data any) Envelope {
	if code == "" {
		return Fail(message, data)
	}
	return Envelope{Error: code, Message: optional(message), Data: data}
}

// Failed reports whether the envelope signals an error.
func (e Envelope) Failed() bool {
	switch v := e.Error.(type) {
	case bool:
		return v
	case string:
		return v != ""
	default:
		return false
	}
}

// Text returns the message or "".
func (e Envelope) Text() string {
	if e.Message == nil {
		return ""
	}
	return *e.Message
}

// Write encodes env with the given status.
func Write(w http.ResponseWriter, status int, env Envelope) error {
	if _, ok := env.Error.(string); !ok {
		env.Error = env.Failed()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(env)
}

func optional(message string) *string {
	if message == "" {
		return nil
	}
	return &message
}
