package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/testwise/runcore/lib"
)

func navigateAction(url string) lib.Action {
	return lib.Action{
		Type:        lib.ActionNavigate,
		Description: "open " + url,
		Datas:       []lib.ActionData{{Value: &lib.ValueData{Value: url}}},
	}
}

func inputAction(id, value string) lib.Action {
	return lib.Action{
		Type:        lib.ActionInput,
		Description: "type into " + id,
		Datas:       []lib.ActionData{{Value: &lib.ValueData{Value: value}}},
		Elements:    []lib.Element{{Data: map[string]any{"tagName": "INPUT", "id": id}}},
	}
}

func TestCompileNoActions(t *testing.T) {
	t.Parallel()

	script, err := Compile(nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, script)

	script, err = Compile(&lib.BasicAuthentication{Username: "u"}, []lib.Action{}, map[string]string{})
	require.NoError(t, err)
	assert.Empty(t, script)
}

func TestCompileOrdering(t *testing.T) {
	t.Parallel()

	actions := []lib.Action{
		navigateAction("https://app.example.com/login"),
		inputAction("email", "ada@example.com"),
		inputAction("password", "hunter2"),
	}

	script, err := Compile(nil, actions, nil)
	require.NoError(t, err)

	gotoPos := strings.Index(script, "app.example.com/login")
	emailPos := strings.Index(script, "ada@example.com")
	passPos := strings.Index(script, "hunter2")
	require.NotEqual(t, -1, gotoPos)
	require.NotEqual(t, -1, emailPos)
	require.NotEqual(t, -1, passPos)
	assert.Less(t, gotoPos, emailPos)
	assert.Less(t, emailPos, passPos)
}

func TestCompileEmitsValidJavaScript(t *testing.T) {
	t.Parallel()

	actions := []lib.Action{
		navigateAction("https://app.example.com"),
		inputAction("email", `quotes " and
newlines`),
		{
			Type:     lib.ActionClick,
			Elements: []lib.Element{{Data: map[string]any{"tagName": "BUTTON", "innerText": "Submit"}}},
		},
		{
			Type: lib.ActionDatabaseExecution,
			Datas: []lib.ActionData{{Statement: &lib.StatementData{
				SQL: "SELECT * FROM orders WHERE status = 'open'",
				Connection: lib.Connection{
					Driver: "postgres", Host: "db.internal", Port: 5432,
					Database: "shop", Username: "qa",
					Password: null.StringFrom("s3cret"),
				},
			}}},
		},
		{
			Type: lib.ActionAPICall,
			Datas: []lib.ActionData{{APIRequest: &lib.APIRequestData{
				Method:  "post",
				URL:     "https://api.example.com/orders",
				Headers: map[string]string{"Content-Type": "application/json"},
				Body:    null.StringFrom(`{"sku":"A-1"}`),
			}}},
		},
		{
			Type: lib.ActionBrowserStorage,
			Datas: []lib.ActionData{{BrowserStorage: &lib.BrowserStorageData{
				Cookies:      []lib.Cookie{{Name: "session", Value: "abc", Domain: "app.example.com"}},
				LocalStorage: map[string]string{"theme": "dark"},
			}}},
		},
		{Type: lib.ActionWait, Datas: []lib.ActionData{{Value: &lib.ValueData{Value: "250"}}}},
		{
			Type:     lib.ActionAssert,
			Datas:    []lib.ActionData{{Value: &lib.ValueData{Value: "Order placed"}}},
			Elements: []lib.Element{{Data: map[string]any{"tagName": "DIV", "id": "toast"}}},
		},
	}

	script, err := Compile(&lib.BasicAuthentication{Username: "ada", Password: "pw"}, actions, nil)
	require.NoError(t, err)
	require.NoError(t, Validate(script))
}

func TestCompileBasicAuthEmbeddedOnce(t *testing.T) {
	t.Parallel()

	actions := []lib.Action{
		navigateAction("https://a.example.com"),
		navigateAction("https://b.example.com"),
	}
	auth := &lib.BasicAuthentication{Username: "ada", Password: "pw"}

	script, err := Compile(auth, actions, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(script, "setHTTPCredentials"))
	// Credentials come before any action statement.
	assert.Less(t, strings.Index(script, "setHTTPCredentials"), strings.Index(script, "page.goto"))
}

func TestCompileUploadUsesFilePathMap(t *testing.T) {
	t.Parallel()

	upload := lib.Action{
		Type: lib.ActionUpload,
		Datas: []lib.ActionData{{FileUpload: &lib.FileUploadData{
			ID:       null.IntFrom(12),
			FileName: "invoice.pdf",
		}}},
		Elements: []lib.Element{{Data: map[string]any{"tagName": "INPUT", "id": "file"}}},
	}

	script, err := Compile(nil, []lib.Action{upload}, map[string]string{"12": "uploads/invoice_12.pdf"})
	require.NoError(t, err)
	assert.Contains(t, script, "uploads/invoice_12.pdf")
	// The server-side filename never leaks into the script as a path.
	assert.NotContains(t, script, `setInputFiles("invoice.pdf"`)

	_, err = Compile(nil, []lib.Action{upload}, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no preprocessed file")
}

func TestCompileLeavesPlaceholdersUnresolved(t *testing.T) {
	t.Parallel()

	actions := []lib.Action{
		{
			Type:     lib.ActionAssert,
			Elements: []lib.Element{{Data: map[string]any{"tagName": "DIV", "id": "toast"}}},
		},
		{
			Type: lib.ActionDatabaseExecution,
			Datas: []lib.ActionData{{Statement: &lib.StatementData{
				SQL:        "SELECT 1",
				Connection: lib.Connection{Driver: "mysql", Host: "db", Port: 3306},
			}}},
		},
		{
			Type: lib.ActionAPICall,
			Datas: []lib.ActionData{{APIRequest: &lib.APIRequestData{
				Method: "get", URL: "https://api.example.com/health",
			}}},
		},
	}

	script, err := Compile(nil, actions, nil)
	require.NoError(t, err)
	assert.Contains(t, script, ScreenshotDirToken)
	assert.Contains(t, script, DBExportDirToken)
	assert.Contains(t, script, APIExportDirToken)
}

func TestCompileGeneratedValueOverride(t *testing.T) {
	t.Parallel()

	action := inputAction("email", "recorded@example.com")
	action.Generations = []lib.DataGeneration{{Field: "value", Value: "generated@example.com"}}

	script, err := Compile(nil, []lib.Action{action}, nil)
	require.NoError(t, err)
	assert.Contains(t, script, "generated@example.com")
	assert.NotContains(t, script, "recorded@example.com")
}

func TestCompileUnknownActionType(t *testing.T) {
	t.Parallel()

	_, err := Compile(nil, []lib.Action{{Type: "teleport"}}, nil)
	require.Error(t, err)

	var unknown lib.UnknownActionTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, lib.ActionType("teleport"), unknown.Type)
}

func TestCompileSelectorPreference(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data map[string]any
		want string
	}{
		{"id wins", map[string]any{"id": "save", "name": "s", "xpath": "/a"}, `[id=\"save\"]`},
		{"name next", map[string]any{"tagName": "INPUT", "name": "email", "xpath": "/a"}, `input[name=\"email\"]`},
		{"xpath next", map[string]any{"tagName": "A", "xpath": "/html/body/a[2]"}, "xpath=/html/body/a[2]"},
		{"text fallback", map[string]any{"tagName": "A", "innerText": " Details "}, "text=Details"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			action := lib.Action{Type: lib.ActionClick, Elements: []lib.Element{{Data: tc.data}}}
			script, err := Compile(nil, []lib.Action{action}, nil)
			require.NoError(t, err)
			assert.Contains(t, script, tc.want)
		})
	}
}

func TestCompileWaitDefaults(t *testing.T) {
	t.Parallel()

	script, err := Compile(nil, []lib.Action{{Type: lib.ActionWait}}, nil)
	require.NoError(t, err)
	assert.Contains(t, script, "waitForTimeout(1000)")

	script, err = Compile(nil, []lib.Action{
		{Type: lib.ActionWait, Datas: []lib.ActionData{{Value: &lib.ValueData{Value: "not a number"}}}},
	}, nil)
	require.NoError(t, err)
	assert.Contains(t, script, "waitForTimeout(1000)")
}
