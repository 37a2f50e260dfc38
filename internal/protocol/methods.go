package protocol

const (
	MethodInitialize = "initialize"
	MethodPause      = "pause"
	MethodContinue   = "continue"
	MethodNext       = "next"
	MethodDisconnect = "disconnect"
)

type InitializeParams struct {
	Path string `json:"path"`
}

type InitializeResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type ContinueParams struct {
	Until string `json:"until"`
}

type SourceLocation struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function,omitempty"`
}

// ExecutionResult answers pause, continue and next.
type ExecutionResult struct {
	Status             string          `json:"status"`
	InstructionPointer string          `json:"instructionPointer"`
	Source             *SourceLocation `json:"source,omitempty"`
	Message            string          `json:"message,omitempty"`
}

type DisconnectResult struct {
	Disconnected bool `json:"disconnected"`
}
