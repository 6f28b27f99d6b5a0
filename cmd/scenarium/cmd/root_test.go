package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanulsoft/scenarium/internal/store"
)

const dawnPatrolXML = `<Summary>
  <Property>
    <Name>Dawn Patrol</Name>
    <Author>Mercury</Author>
    <Description>A border skirmish at first light.</Description>
    <Level min="1" max="3"/>
  </Property>
</Summary>`

// testEnv isolates the CLI from the real user environment: home, user
// config, data dir, and roots all point into temp directories.
func testEnv(t *testing.T) (root string) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("SCENARIUM_DATA_DIR", filepath.Join(home, "data"))

	root = t.TempDir()
	t.Setenv("SCENARIUM_ROOTS", root)
	return root
}

func addPackage(t *testing.T, root, name, descriptor string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.xml"), []byte(descriptor), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenario.dat"), []byte("payload"), 0o644))
	return dir
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCmd()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	testEnv(t)

	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "scenarium dev")
}

func TestScanThenSearch(t *testing.T) {
	root := testEnv(t)
	addPackage(t, root, "dawn-patrol", dawnPatrolXML)

	out, err := runCommand(t, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "added 1")

	out, err = runCommand(t, "search", "dawn")
	require.NoError(t, err)
	assert.Contains(t, out, "Dawn Patrol")
	assert.Contains(t, out, "by Mercury")
}

func TestSearchWhileScanHoldsWriteLock(t *testing.T) {
	root := testEnv(t)
	addPackage(t, root, "dawn-patrol", dawnPatrolXML)

	_, err := runCommand(t, "scan")
	require.NoError(t, err)

	// Hold the write lock the way a long-running 'scan --watch' would.
	writer, err := store.Open(context.Background(), store.Options{
		DataDir: os.Getenv("SCENARIUM_DATA_DIR"),
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, writer.Close()) }()

	out, err := runCommand(t, "search", "dawn")
	require.NoError(t, err)
	assert.Contains(t, out, "Dawn Patrol")

	out, err = runCommand(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "scenarios:  1")
}

func TestScanWithoutRootsFails(t *testing.T) {
	testEnv(t)
	t.Setenv("SCENARIUM_ROOTS", "")
	// An empty env var falls through to the (rootless) defaults.

	out, err := runCommand(t, "scan")
	require.Error(t, err)
	assert.Contains(t, out, "no roots configured")
}

func TestSearchJSONFormat(t *testing.T) {
	root := testEnv(t)
	addPackage(t, root, "dawn-patrol", dawnPatrolXML)

	_, err := runCommand(t, "scan")
	require.NoError(t, err)

	out, err := runCommand(t, "search", "dawn", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Total   int `json:"total"`
		Results []struct {
			Title    string `json:"title"`
			LevelMin int    `json:"level_min"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "Dawn Patrol", resp.Results[0].Title)
	assert.Equal(t, 1, resp.Results[0].LevelMin)
}

func TestAnnotateAndShow(t *testing.T) {
	root := testEnv(t)
	dir := addPackage(t, root, "dawn-patrol", dawnPatrolXML)

	_, err := runCommand(t, "scan")
	require.NoError(t, err)

	out, err := runCommand(t, "annotate", dir, "--favorite", "--rating", "5", "--tag", "one-shot")
	require.NoError(t, err)
	assert.Contains(t, out, "updated Dawn Patrol")

	out, err = runCommand(t, "show", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "★★★★★")
	assert.Contains(t, out, "one-shot")
}

func TestAnnotateUnknownPathFails(t *testing.T) {
	testEnv(t)

	_, err := runCommand(t, "annotate", "/nowhere/special", "--favorite")
	require.Error(t, err)
}

func TestAnnotateWithoutFlagsFails(t *testing.T) {
	root := testEnv(t)
	dir := addPackage(t, root, "dawn-patrol", dawnPatrolXML)

	_, err := runCommand(t, "scan")
	require.NoError(t, err)

	_, err = runCommand(t, "annotate", dir)
	require.Error(t, err)
}

func TestAnnotationSurvivesMove(t *testing.T) {
	root := testEnv(t)
	dir := addPackage(t, root, "dawn-patrol", dawnPatrolXML)

	_, err := runCommand(t, "scan")
	require.NoError(t, err)
	_, err = runCommand(t, "annotate", dir, "--rating", "4")
	require.NoError(t, err)

	moved := filepath.Join(root, "archive")
	require.NoError(t, os.MkdirAll(moved, 0o755))
	movedDir := filepath.Join(moved, "dawn-patrol")
	require.NoError(t, os.Rename(dir, movedDir))

	_, err = runCommand(t, "scan")
	require.NoError(t, err)

	out, err := runCommand(t, "show", movedDir)
	require.NoError(t, err)
	assert.Contains(t, out, "★★★★☆")
}

func TestStatusCommand(t *testing.T) {
	root := testEnv(t)
	addPackage(t, root, "dawn-patrol", dawnPatrolXML)

	_, err := runCommand(t, "scan")
	require.NoError(t, err)

	out, err := runCommand(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "scenarios:  1")
	assert.Contains(t, out, root)
}

func TestConfigInitAndShow(t *testing.T) {
	root := testEnv(t)

	work := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(work))
	t.Cleanup(func() { _ = os.Chdir(prev) })

	out, err := runCommand(t, "config", "init", root)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote .scenarium.yaml")

	// A second init must refuse to clobber.
	_, err = runCommand(t, "config", "init")
	require.Error(t, err)

	out, err = runCommand(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "roots:")
	assert.Contains(t, out, root)
}

func TestConfigPath(t *testing.T) {
	testEnv(t)

	out, err := runCommand(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, ".scenarium.yaml")
}
