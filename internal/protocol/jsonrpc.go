package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const Version = "2.0"

const (
	CodeParseError     = 400
	CodeMethodNotFound = 404
	CodeInvalidState   = 409
	CodeInvalidParams  = 422
	CodeRateLimited    = 429
	CodeInternal       = 500
)

var ErrParse = errors.New("parse error")

// Request is a decoded JSON-RPC envelope. A nil ID marks a notification.
type Request struct {
	Version string
	Method  string
	Params  json.RawMessage
	ID      *ID
}

func (r Request) IsNotification() bool {
	return r.ID == nil
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
	ID      *ID             `json:"id"`
}

type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// ID is a request identifier: a JSON number or a JSON string.
type ID struct {
	raw      string
	isString bool
}

func NumberID(n int64) *ID {
	return &ID{raw: fmt.Sprintf("%d", n)}
}

func StringID(s string) *ID {
	return &ID{raw: s, isString: true}
}

func (id *ID) IsString() bool {
	return id != nil && id.isString
}

func (id *ID) String() string {
	if id == nil {
		return "null"
	}
	if id.isString {
		return fmt.Sprintf("%q", id.raw)
	}
	return id.raw
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.isString {
		return json.Marshal(id.raw)
	}
	if id.raw == "" {
		return []byte("null"), nil
	}
	return []byte(id.raw), nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("empty id")
	}
	switch c := b[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID{raw: s, isString: true}
		return nil
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*id = ID{raw: n.String()}
		return nil
	default:
		return fmt.Errorf("id must be a number or a string, got %s", b)
	}
}

type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad request: %s: %v", e.Reason, e.Err)
	}
	return "bad request: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) RPCCode() int { return CodeParseError }

func (e *ParseError) RPCData() any { return map[string]any{"reason": e.Reason} }

type envelope struct {
	JSONRPC *string         `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Parse decodes one message body into a Request. The version tag must be
// present but its value is not checked.
func Parse(body []byte) (Request, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Request{}, &ParseError{Reason: "message is not a JSON object"}
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Request{}, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if env.JSONRPC == nil {
		return Request{}, &ParseError{Reason: "missing jsonrpc version"}
	}
	if env.Method == nil || *env.Method == "" {
		return Request{}, &ParseError{Reason: "missing method"}
	}
	req := Request{
		Version: *env.JSONRPC,
		Method:  *env.Method,
	}
	if len(env.Params) > 0 && !bytes.Equal(env.Params, []byte("null")) {
		req.Params = env.Params
	}
	if len(env.ID) > 0 {
		var id ID
		if err := id.UnmarshalJSON(env.ID); err != nil {
			return Request{}, &ParseError{Reason: "invalid id", Err: err}
		}
		req.ID = &id
	}
	return req, nil
}
