// Package command turns parsed requests into typed debugger commands.
package command

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/samiralibabic/stepd/internal/protocol"
)

// ErrParamsNotFound is matched by every ValidationError.
var ErrParamsNotFound = errors.New("No params found")

// Command is one of Initialize, Pause, Continue, Next, Disconnect or Unknown.
type Command interface {
	Method() string
	command()
}

type Initialize struct {
	Path string
}

type Pause struct{}

type Continue struct {
	Until string
}

type Next struct{}

type Disconnect struct{}

// Unknown carries a method name this engine does not implement.
type Unknown struct {
	Name string
}

func (Initialize) Method() string { return protocol.MethodInitialize }
func (Pause) Method() string      { return protocol.MethodPause }
func (Continue) Method() string   { return protocol.MethodContinue }
func (Next) Method() string       { return protocol.MethodNext }
func (Disconnect) Method() string { return protocol.MethodDisconnect }
func (u Unknown) Method() string  { return u.Name }

func (Initialize) command() {}
func (Pause) command()      {}
func (Continue) command()   {}
func (Next) command()       {}
func (Disconnect) command() {}
func (Unknown) command()    {}

// ValidationError reports a required parameter that is absent or has the
// wrong type.
type ValidationError struct {
	Method string
	Param  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: expected string param %q", ErrParamsNotFound, e.Method, e.Param)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrParamsNotFound
}

func (e *ValidationError) RPCCode() int {
	return protocol.CodeInvalidParams
}

func (e *ValidationError) RPCData() any {
	return map[string]string{"method": e.Method, "param": e.Param}
}

// Translate maps a request onto a Command. Methods it does not know become
// Unknown and never fail here.
func Translate(req protocol.Request) (Command, error) {
	switch req.Method {
	case protocol.MethodInitialize:
		path, err := stringParam(req, "path")
		if err != nil {
			return nil, err
		}
		return Initialize{Path: path}, nil
	case protocol.MethodPause:
		return Pause{}, nil
	case protocol.MethodContinue:
		until, err := stringParam(req, "until")
		if err != nil {
			return nil, err
		}
		return Continue{Until: until}, nil
	case protocol.MethodNext:
		return Next{}, nil
	case protocol.MethodDisconnect:
		return Disconnect{}, nil
	default:
		return Unknown{Name: req.Method}, nil
	}
}

func stringParam(req protocol.Request, name string) (string, error) {
	verr := &ValidationError{Method: req.Method, Param: name}
	if len(req.Params) == 0 || !gjson.ValidBytes(req.Params) {
		return "", verr
	}
	params := gjson.ParseBytes(req.Params)
	if !params.IsObject() {
		return "", verr
	}
	v := params.Get(name)
	if v.Type != gjson.String {
		return "", verr
	}
	return v.String(), nil
}
