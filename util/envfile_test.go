package netlabutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Check that valid entries, comments and blank lines are handled.
func TestLoadEnvironmentEntries(t *testing.T) {
	content := `
# A comment.
NETLAB_SERVER_HOST=127.0.0.1
NETLAB_SERVER_PORT=8085
EMPTY=
`
	data, err := loadEnvironmentEntries(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, data, 3)
	require.Equal(t, "127.0.0.1", data["NETLAB_SERVER_HOST"])
	require.Equal(t, "8085", data["NETLAB_SERVER_PORT"])
	require.Empty(t, data["EMPTY"])
}

// Check that a line without the key-value separator is rejected.
func TestLoadEnvironmentEntriesInvalidLine(t *testing.T) {
	_, err := loadEnvironmentEntries(strings.NewReader("NETLAB_SERVER_HOST"))
	require.Error(t, err)
	require.ErrorContains(t, err, "invalid line 1")
}

// Check that a missing file is reported.
func TestLoadEnvironmentFileMissing(t *testing.T) {
	_, err := LoadEnvironmentFile("/tmp/non-existing-netlab-env-file")
	require.Error(t, err)
}
