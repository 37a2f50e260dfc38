package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conflictErr struct{}

func (conflictErr) Error() string { return "conflict" }
func (conflictErr) RPCCode() int  { return CodeInvalidState }
func (conflictErr) RPCData() any  { return map[string]string{"state": "uninitialized"} }

func TestSuccessResponse(t *testing.T) {
	t.Parallel()

	resp := Success(NumberID(3), ExecutionResult{Status: "running", InstructionPointer: "0x1000"})
	assert.Nil(t, resp.Error)
	raw, err := Encode(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":{"status":"running","instructionPointer":"0x1000"},"id":3}`, string(raw))
}

func TestSuccessWithNilResultIsEmptyObject(t *testing.T) {
	t.Parallel()

	raw, err := Encode(Success(StringID("a"), nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":{},"id":"a"}`, string(raw))
}

func TestFailureClassifiesCodedErrors(t *testing.T) {
	t.Parallel()

	resp := Failure(NumberID(1), fmt.Errorf("dispatch: %w", conflictErr{}))
	require.NotNil(t, resp.Error)
	assert.Nil(t, resp.Result)
	assert.Equal(t, CodeInvalidState, resp.Error.Code)
	assert.JSONEq(t, `{"state":"uninitialized"}`, string(resp.Error.Data))

	resp = Failure(NumberID(1), errors.New("boom"))
	assert.Equal(t, CodeInternal, resp.Error.Code)
	assert.Equal(t, "boom", resp.Error.Message)
}

func TestParseFailureCarriesNullID(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{{`))
	require.Error(t, err)
	raw, encErr := Encode(Failure(nil, err))
	require.NoError(t, encErr)

	decoded, decErr := DecodeResponse(raw)
	require.NoError(t, decErr)
	assert.Nil(t, decoded.ID)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, CodeParseError, decoded.Error.Code)
	assert.Contains(t, string(raw), `"id":null`)
}

func TestResponseRoundTrip(t *testing.T) {
	t.Parallel()

	responses := []Response{
		Success(NumberID(9), DisconnectResult{Disconnected: true}),
		Success(StringID("req-1"), InitializeResult{Status: "initialized", Version: "0.1.0"}),
		ErrorResponse(NumberID(2), CodeMethodNotFound, "Method not found", map[string]string{"method": "threads"}),
		ErrorResponse(nil, CodeParseError, "bad request", nil),
	}
	for _, want := range responses {
		raw, err := Encode(want)
		require.NoError(t, err)
		got, err := DecodeResponse(raw)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Error, got.Error)
		if want.Result != nil {
			assert.JSONEq(t, string(want.Result), string(got.Result))
		} else {
			assert.Nil(t, got.Result)
		}
	}
}
