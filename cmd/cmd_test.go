package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testwise/runcore/evidence"
	"github.com/testwise/runcore/lib"
)

func newTestRoot(t *testing.T) (*rootCommand, *bytes.Buffer) {
	t.Helper()
	root := newRootCommand()
	root.fs = afero.NewMemMapFs()

	var out bytes.Buffer
	root.cmd.SetOut(&out)
	root.cmd.SetErr(&out)
	return root, &out
}

func writeActionsFile(t *testing.T, fs afero.Fs, path string, payload evidence.ActionsResponse) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, raw, 0o644))
}

func TestCompileCommandWritesScript(t *testing.T) {
	root, out := newTestRoot(t)
	writeActionsFile(t, root.fs, "/actions.json", evidence.ActionsResponse{
		Actions: []lib.Action{
			{
				Type:  lib.ActionNavigate,
				Datas: []lib.ActionData{{Value: &lib.ValueData{Value: "https://example.com/login"}}},
			},
			{
				Type:     lib.ActionClick,
				Elements: []lib.Element{{Data: map[string]any{lib.AttrID: "submit"}}},
			},
		},
	})

	root.cmd.SetArgs([]string{"compile", "/actions.json", "-o", "/out.js"})
	require.NoError(t, root.cmd.Execute())
	assert.Empty(t, out.String())

	script, err := afero.ReadFile(root.fs, "/out.js")
	require.NoError(t, err)
	assert.Contains(t, string(script), "page.goto(\"https://example.com/login\"")
	assert.Contains(t, string(script), "page.click(\"[id=\\\"submit\\\"]\")")
}

func TestCompileCommandRejectsBadJSON(t *testing.T) {
	root, _ := newTestRoot(t)
	require.NoError(t, afero.WriteFile(root.fs, "/actions.json", []byte("{not json"), 0o644))

	root.cmd.SetArgs([]string{"compile", "/actions.json"})
	err := root.cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestDedupeCommandReportsGroups(t *testing.T) {
	root, out := newTestRoot(t)
	attrs := map[string]any{
		lib.AttrTagName: "button",
		lib.AttrID:      "submit",
		lib.AttrXPath:   "//button[1]",
	}
	writeActionsFile(t, root.fs, "/actions.json", evidence.ActionsResponse{
		Actions: []lib.Action{
			{Type: lib.ActionClick, Description: "click submit", Elements: []lib.Element{{Data: attrs}}},
			{Type: lib.ActionAssert, Description: "submit is visible", Elements: []lib.Element{{Data: attrs}}},
		},
	})

	root.cmd.SetArgs([]string{"dedupe", "/actions.json", "--assign"})
	require.NoError(t, root.cmd.Execute())
	assert.Contains(t, out.String(), "group 1")
	assert.Contains(t, out.String(), "click submit")

	raw, err := afero.ReadFile(root.fs, "/actions.json")
	require.NoError(t, err)
	var updated evidence.ActionsResponse
	require.NoError(t, json.Unmarshal(raw, &updated))
	first := updated.Actions[0].Elements[0].ElementID
	second := updated.Actions[1].Elements[0].ElementID
	require.True(t, first.Valid)
	assert.Equal(t, first.String, second.String)
}

func TestRunCommandRequiresBackendConfig(t *testing.T) {
	root, _ := newTestRoot(t)

	root.cmd.SetArgs([]string{"run", "tc-1"})
	err := root.cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backend URL configured")
}
