package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) (string, error) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "till")
	assert.Contains(t, out, "serve")
	assert.Contains(t, out, "status")
	assert.Contains(t, out, "sync")
	assert.Contains(t, out, "queue")
	assert.Contains(t, out, "checkout")
}

func TestRootCommand_InvalidFormatRejected(t *testing.T) {
	_, err := execute("status", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_ValidFormats(t *testing.T) {
	for _, format := range ValidFormats {
		t.Run(format, func(t *testing.T) {
			_, err := execute("--format", format, "--help")
			assert.NoError(t, err)
		})
	}
}

func TestQueueCommand_RejectsExtraArgs(t *testing.T) {
	_, err := execute("queue", "unexpected")
	require.Error(t, err)
}

func TestCheckoutCommand_RequiresCartFile(t *testing.T) {
	_, err := execute("checkout")
	require.Error(t, err)
}
