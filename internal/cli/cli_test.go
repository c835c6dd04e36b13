package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func withTempStorage(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("TASKTRACE_QUEUE_ROOT", filepath.Join(root, "queue"))
	t.Setenv("TASKTRACE_DEP_ROOT", filepath.Join(root, "dep"))
	t.Setenv("TASKTRACE_LOG_ROOT", filepath.Join(root, "log"))
}

func TestAddListDelete(t *testing.T) {
	withTempStorage(t)

	addCmd := newAddCmd()
	var addOut bytes.Buffer
	addCmd.SetOut(&addOut)
	addCmd.SetArgs([]string{"echo hello"})
	require.NoError(t, addCmd.Execute())
	id := firstLine(addOut.String())
	require.NotEmpty(t, id)

	var listOut bytes.Buffer
	listCmd := newListCmd()
	listCmd.SetOut(&listOut)
	listCmd.SetArgs([]string{"--detail"})
	require.NoError(t, listCmd.Execute())
	require.Contains(t, listOut.String(), "echo hello")

	deleteCmd := newDeleteCmd()
	deleteCmd.SetArgs([]string{id})
	require.NoError(t, deleteCmd.Execute())

	var listAfter bytes.Buffer
	listCmd2 := newListCmd()
	listCmd2.SetOut(&listAfter)
	listCmd2.SetArgs([]string{})
	require.NoError(t, listCmd2.Execute())
	require.NotContains(t, listAfter.String(), id)
}

func TestAdd_RejectsEmptyCommand(t *testing.T) {
	withTempStorage(t)

	addCmd := newAddCmd()
	addCmd.SetArgs([]string{""})
	require.Error(t, addCmd.Execute())
}

func TestDelete_NotFound(t *testing.T) {
	withTempStorage(t)

	deleteCmd := newDeleteCmd()
	deleteCmd.SetArgs([]string{"2026-01-01-00-00-00-000000"})
	require.Error(t, deleteCmd.Execute())
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
