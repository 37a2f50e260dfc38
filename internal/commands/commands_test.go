package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samiralibabic/stepd/internal/protocol"
	"github.com/samiralibabic/stepd/internal/version"
)

func execute(t *testing.T, in string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root, err := NewRootCmd(IO{In: strings.NewReader(in), Out: &out, Err: &errOut})
	require.NoError(t, err)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "stepd "+version.Version+"\n", out)
}

func TestServeStdioSession(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	prog := filepath.Join(dir, "main.lua")
	require.NoError(t, os.WriteFile(prog, []byte("local x = 1\nlocal y = x + 1\n"), 0o644))
	logFile := filepath.Join(dir, "stepd.log")

	in := strings.Join([]string{
		fmt.Sprintf(`{"jsonrpc":"2.0","method":"initialize","params":{"path":%q},"id":1}`, dir),
		`{"jsonrpc":"2.0","method":"next","id":2}`,
		`{"jsonrpc":"2.0","method":"disconnect","id":3}`,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stepd.toml"), []byte("[program]\nentry = \"main.lua\"\n"), 0o644))

	out, _, err := execute(t, in, "serve", "--stdio", "--log-file", logFile, "-v", "debug")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	next, err := protocol.DecodeResponse([]byte(lines[1]))
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"status":"step","instructionPointer":"0x1","source":{"file":%q,"line":2,"function":"main chunk"}}`, prog), string(next.Result))

	logged, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logged), "Program initialized")
}

func TestServeRejectsBadFraming(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "", "serve", "--framing", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown framing")
}

func TestServeRejectsConflictingStdioFlags(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, "", "serve", "--stdio", "--no-stdio")
	require.Error(t, err)
}
