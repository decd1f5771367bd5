package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/testutil"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "marksync", cmd.Use)
	assert.Contains(t, cmd.Long, "canonical")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"reconcile"},
		{"batch", "list"},
		{"batch", "show"},
		{"commit"},
		{"reject"},
		{"revert"},
		{"bookmarks", "list"},
		{"bookmarks", "show"},
		{"bookmarks", "history"},
		{"stats"},
		{"serve"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "db", "delete-policy"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue)
	}
}

func TestCommitCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	commitCmd, _, err := cmd.Find([]string{"commit"})
	require.NoError(t, err)

	changeFlag := commitCmd.Flags().Lookup("change")
	require.NotNil(t, changeFlag)
	assert.Equal(t, "[]", changeFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cli := newTestCLI(t)
	_, err := cli.run("--format", "yaml", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// testCLI runs commands against one temporary store.
type testCLI struct {
	t      *testing.T
	db     string
	export string
	ids    *testutil.SequentialIDs
	clock  *testutil.StepClock
}

const exportHTML = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><H3>Work</H3>
    <DL><p>
        <DT><A HREF="https://a.com">A</A>
        <DT><A HREF="https://b.com">B</A>
    </DL><p>
    <DT><A HREF="https://c.com">C</A>
</DL><p>
`

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{
		"MARKSYNC_DATABASE", "DATABASE_NAME", "LOG_LEVEL", "MARKSYNC_LOG_LEVEL",
		"CHROME_PROFILE_PATH", "MARKSYNC_CHROME_PROFILE_PATH", "MARKSYNC_DELETE_POLICY",
	} {
		t.Setenv(key, "")
	}

	export := filepath.Join(dir, "bookmarks.html")
	require.NoError(t, os.WriteFile(export, []byte(exportHTML), 0o644))
	return &testCLI{
		t:      t,
		db:     filepath.Join(dir, "test.db"),
		export: export,
		ids:    testutil.NewSequentialIDs("id"),
		clock:  testutil.NewStepClock(testutil.Epoch, time.Second),
	}
}

func (c *testCLI) run(args ...string) (string, error) {
	c.t.Helper()
	opts := &RootOptions{
		engineOpts: []engine.EngineOption{
			engine.WithIDGenerator(c.ids),
			engine.WithClock(c.clock),
		},
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--db", c.db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// runJSON runs a command with --format json and decodes the data payload.
func (c *testCLI) runJSON(v any, args ...string) error {
	c.t.Helper()
	out, err := c.run(append([]string{"--format", "json"}, args...)...)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(c.t, json.Unmarshal([]byte(out), &resp), out)
	if err != nil {
		assert.Equal(c.t, "error", resp.Status)
		return err
	}
	assert.Equal(c.t, "success", resp.Status)
	if v != nil {
		require.NoError(c.t, json.Unmarshal(resp.Data, v))
	}
	return nil
}
