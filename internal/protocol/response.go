package protocol

import (
	"encoding/json"
	"errors"
)

// Coded is implemented by errors that map onto a specific response code.
type Coded interface {
	error
	RPCCode() int
}

type dataCarrier interface {
	RPCData() any
}

var emptyResult = json.RawMessage(`{}`)

func Success(id *ID, result any) Response {
	raw := emptyResult
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return Failure(id, err)
		}
		raw = b
	}
	return Response{JSONRPC: Version, ID: id, Result: raw}
}

func Failure(id *ID, err error) Response {
	return Response{JSONRPC: Version, ID: id, Error: Classify(err)}
}

func ErrorResponse(id *ID, code int, msg string, data any) Response {
	return Response{JSONRPC: Version, ID: id, Error: newErrorObject(code, msg, data)}
}

// Classify converts err into the error object sent on the wire. Errors that
// do not carry a code are reported as internal errors with their message.
func Classify(err error) *ErrorObject {
	if err == nil {
		return newErrorObject(CodeInternal, "unknown error", nil)
	}
	var obj *ErrorObject
	if errors.As(err, &obj) {
		return obj
	}
	code := CodeInternal
	var coded Coded
	if errors.As(err, &coded) {
		code = coded.RPCCode()
	}
	var data any
	var dc dataCarrier
	if errors.As(err, &dc) {
		data = dc.RPCData()
	}
	return newErrorObject(code, err.Error(), data)
}

func newErrorObject(code int, msg string, data any) *ErrorObject {
	obj := &ErrorObject{Code: code, Message: msg}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			obj.Data = raw
		}
	}
	return obj
}

func Encode(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func DecodeResponse(body []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
