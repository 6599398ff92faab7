package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// Check that the sandbox creates files and cleans up after itself.
func TestSandbox(t *testing.T) {
	sb := NewSandbox()

	filePath, err := sb.Write("dir/leases.txt", "content")
	require.NoError(t, err)
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	require.Equal(t, "content", string(data))

	dirPath, err := sb.JoinDir("another/dir")
	require.NoError(t, err)
	require.DirExists(t, dirPath)

	sb.Close()
	require.NoDirExists(t, sb.BasePath)
}
