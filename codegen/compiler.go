// Package codegen transforms a decrypted action list, optional basic-auth
// credentials and a file-path remapping table into a single executable
// automation script for the browser runner.
//
// Compilation is pure: no filesystem and no network. Output-directory
// placeholders are left unresolved; the run coordinator substitutes them
// once a sandbox exists.
package codegen

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dop251/goja/parser"

	"github.com/testwise/runcore/lib"
	"github.com/testwise/runcore/lib/consts"
)

// Placeholder tokens for per-run output directories. The compiler never
// resolves them.
const (
	ScreenshotDirToken = "__SCREENSHOT_DIR__"
	DBExportDirToken   = "__DB_EXPORT_DIR__"
	APIExportDirToken  = "__API_EXPORT_DIR__"
)

// Compile builds the automation script for the given actions, in their
// original order, one statement block per action. Upload actions resolve
// their local path strictly through files, keyed by the upload's stable
// identifier. Basic-auth credentials, when present, are embedded once ahead
// of the action statements.
//
// An empty action list compiles to "" with no error: a no-op run is a valid
// outcome, not a failure.
func Compile(auth *lib.BasicAuthentication, actions []lib.Action, files map[string]string) (string, error) {
	if len(actions) == 0 {
		return "", nil
	}

	var b bytes.Buffer
	w := bufio.NewWriter(&b)

	fmt.Fprintf(w, "// Generated by %s\n", consts.Banner)
	fmt.Fprint(w, "'use strict';\n")
	fmt.Fprint(w, "const runner = require('@testwise/runner');\n\n")
	fmt.Fprint(w, "runner.run(async ({ page, context }) => {\n")

	if auth.Valid() {
		fmt.Fprintf(w, "\tawait context.setHTTPCredentials(%s, %s);\n\n",
			jsString(auth.Username), jsString(auth.Password))
	}

	for i, action := range actions {
		if action.Description != "" {
			fmt.Fprintf(w, "\t// %d. %s\n", i+1, sanitizeComment(action.Description))
		}
		if err := emitAction(w, i, action, files); err != nil {
			return "", fmt.Errorf("action %d (%s): %w", i+1, action.Type, err)
		}
		fmt.Fprint(w, "\n")
	}

	fmt.Fprint(w, "});\n")
	if err := w.Flush(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Validate parses src as JavaScript and returns the syntax error, if any.
// The coordinator runs it as a pre-flight before a script reaches the
// sandbox; a failure here is a compiler bug, not a test failure.
func Validate(src string) error {
	_, err := parser.ParseFile(nil, "testcase.js", src, 0)
	return err
}

func emitAction(w *bufio.Writer, idx int, action lib.Action, files map[string]string) error {
	switch action.Type {
	case lib.ActionNavigate:
		return emitNavigate(w, action)
	case lib.ActionClick:
		return emitClick(w, action)
	case lib.ActionInput:
		return emitInput(w, action)
	case lib.ActionUpload:
		return emitUpload(w, action, files)
	case lib.ActionDatabaseExecution:
		return emitDatabaseExecution(w, idx, action)
	case lib.ActionAPICall:
		return emitAPICall(w, idx, action)
	case lib.ActionWait:
		return emitWait(w, action)
	case lib.ActionAssert:
		return emitAssert(w, idx, action)
	case lib.ActionBrowserStorage:
		return emitBrowserStorage(w, action)
	default:
		return lib.UnknownActionTypeError{Type: action.Type}
	}
}

func emitNavigate(w *bufio.Writer, action lib.Action) error {
	url := recordedValue(action)
	if url == "" && len(action.Elements) > 0 {
		url = action.Elements[0].Attr(lib.AttrURL)
	}
	if url == "" {
		return fmt.Errorf("no target URL recorded")
	}
	fmt.Fprintf(w, "\tawait page.goto(%s, { waitUntil: 'load' });\n", jsString(url))
	return nil
}

func emitClick(w *bufio.Writer, action lib.Action) error {
	sel, err := buildSelector(action)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\tawait page.click(%s);\n", jsString(sel))
	return nil
}

func emitInput(w *bufio.Writer, action lib.Action) error {
	sel, err := buildSelector(action)
	if err != nil {
		return err
	}
	value := recordedValue(action)
	if gen, ok := action.GeneratedValue("value"); ok {
		value = gen
	}
	fmt.Fprintf(w, "\tawait page.fill(%s, %s);\n", jsString(sel), jsString(value))
	return nil
}

func emitUpload(w *bufio.Writer, action lib.Action, files map[string]string) error {
	upload := uploadData(action)
	if upload == nil {
		return fmt.Errorf("upload action carries no file payload")
	}
	path, ok := files[upload.Key()]
	if !ok {
		return fmt.Errorf("no preprocessed file for upload %q", upload.Key())
	}
	sel, err := buildSelector(action)
	if err != nil {
		sel = "input[type=\"file\"]"
	}
	fmt.Fprintf(w, "\tawait page.setInputFiles(%s, %s);\n", jsString(sel), jsString(path))
	return nil
}

func emitDatabaseExecution(w *bufio.Writer, idx int, action lib.Action) error {
	stmt := statementData(action)
	if stmt == nil {
		return fmt.Errorf("database action carries no statement")
	}
	conn := stmt.Connection
	fmt.Fprint(w, "\tawait context.database.execute({\n")
	fmt.Fprintf(w, "\t\tdriver: %s,\n", jsString(conn.Driver))
	fmt.Fprintf(w, "\t\thost: %s,\n", jsString(conn.Host))
	fmt.Fprintf(w, "\t\tport: %d,\n", conn.Port)
	fmt.Fprintf(w, "\t\tdatabase: %s,\n", jsString(conn.Database))
	fmt.Fprintf(w, "\t\tusername: %s,\n", jsString(conn.Username))
	if conn.Password.Valid {
		fmt.Fprintf(w, "\t\tpassword: %s,\n", jsString(conn.Password.String))
	}
	if conn.SSHPrivateKey.Valid {
		fmt.Fprintf(w, "\t\tsshPrivateKey: %s,\n", jsString(conn.SSHPrivateKey.String))
	}
	fmt.Fprintf(w, "\t}, %s, %s);\n",
		jsString(stmt.SQL),
		jsString(fmt.Sprintf("%s/statement_%d.csv", DBExportDirToken, idx+1)))
	return nil
}

func emitAPICall(w *bufio.Writer, idx int, action lib.Action) error {
	req := apiRequestData(action)
	if req == nil {
		return fmt.Errorf("api action carries no request")
	}
	fmt.Fprint(w, "\tawait context.api.request({\n")
	fmt.Fprintf(w, "\t\tmethod: %s,\n", jsString(strings.ToUpper(req.Method)))
	fmt.Fprintf(w, "\t\turl: %s,\n", jsString(req.URL))
	if len(req.Headers) > 0 {
		fmt.Fprint(w, "\t\theaders: {\n")
		for _, name := range sortedKeys(req.Headers) {
			fmt.Fprintf(w, "\t\t\t%s: %s,\n", jsString(name), jsString(req.Headers[name]))
		}
		fmt.Fprint(w, "\t\t},\n")
	}
	if req.Body.Valid {
		fmt.Fprintf(w, "\t\tbody: %s,\n", jsString(req.Body.String))
	}
	fmt.Fprintf(w, "\t}, %s);\n",
		jsString(fmt.Sprintf("%s/request_%d.json", APIExportDirToken, idx+1)))
	return nil
}

func emitWait(w *bufio.Writer, action lib.Action) error {
	ms := 1000
	if v := recordedValue(action); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			ms = parsed
		}
	}
	fmt.Fprintf(w, "\tawait page.waitForTimeout(%d);\n", ms)
	return nil
}

func emitAssert(w *bufio.Writer, idx int, action lib.Action) error {
	sel, err := buildSelector(action)
	if err != nil {
		return err
	}
	shot := jsString(fmt.Sprintf("%s/assert_%d.png", ScreenshotDirToken, idx+1))
	if expected := recordedValue(action); expected != "" {
		fmt.Fprintf(w, "\tawait context.assert.text(%s, %s, %s);\n", jsString(sel), jsString(expected), shot)
		return nil
	}
	fmt.Fprintf(w, "\tawait context.assert.visible(%s, %s);\n", jsString(sel), shot)
	return nil
}

func emitBrowserStorage(w *bufio.Writer, action lib.Action) error {
	storage := storageData(action)
	if storage == nil {
		return fmt.Errorf("storage action carries no snapshot")
	}
	if len(storage.Cookies) > 0 {
		fmt.Fprint(w, "\tawait context.addCookies([\n")
		for _, c := range storage.Cookies {
			path := c.Path
			if path == "" {
				path = "/"
			}
			fmt.Fprintf(w, "\t\t{ name: %s, value: %s, domain: %s, path: %s },\n",
				jsString(c.Name), jsString(c.Value), jsString(c.Domain), jsString(path))
		}
		fmt.Fprint(w, "\t]);\n")
	}
	if len(storage.LocalStorage) > 0 || len(storage.SessionStorage) > 0 {
		fmt.Fprint(w, "\tawait page.evaluate(() => {\n")
		for _, k := range sortedKeys(storage.LocalStorage) {
			fmt.Fprintf(w, "\t\tlocalStorage.setItem(%s, %s);\n", jsString(k), jsString(storage.LocalStorage[k]))
		}
		for _, k := range sortedKeys(storage.SessionStorage) {
			fmt.Fprintf(w, "\t\tsessionStorage.setItem(%s, %s);\n", jsString(k), jsString(storage.SessionStorage[k]))
		}
		fmt.Fprint(w, "\t});\n")
	}
	return nil
}

// buildSelector derives the runner selector from the action's first element
// descriptor, preferring the most stable recorded attribute: id, then name,
// then xpath, then visible text, then the bare tag.
func buildSelector(action lib.Action) (string, error) {
	if len(action.Elements) == 0 {
		return "", fmt.Errorf("no element descriptor recorded")
	}
	el := action.Elements[0]
	if id := el.Attr(lib.AttrID); id != "" {
		return fmt.Sprintf("[id=%q]", id), nil
	}
	if name := el.Attr(lib.AttrName); name != "" {
		tag := strings.ToLower(el.Attr(lib.AttrTagName))
		return fmt.Sprintf("%s[name=%q]", tag, name), nil
	}
	if xpath := el.Attr(lib.AttrXPath); xpath != "" {
		return "xpath=" + xpath, nil
	}
	if text := el.Attr(lib.AttrInnerText); text != "" {
		return "text=" + strings.TrimSpace(text), nil
	}
	if tag := el.Attr(lib.AttrTagName); tag != "" {
		return strings.ToLower(tag), nil
	}
	return "", fmt.Errorf("element descriptor has no usable attributes")
}

// recordedValue returns the action's first value payload, if any.
func recordedValue(action lib.Action) string {
	for _, d := range action.Datas {
		if d.Kind() == lib.KindValue {
			return d.Value.Value
		}
	}
	return ""
}

func uploadData(action lib.Action) *lib.FileUploadData {
	for _, d := range action.Datas {
		if d.Kind() == lib.KindFileUpload {
			return d.FileUpload
		}
	}
	return nil
}

func statementData(action lib.Action) *lib.StatementData {
	for _, d := range action.Datas {
		if d.Kind() == lib.KindStatement {
			return d.Statement
		}
	}
	return nil
}

func apiRequestData(action lib.Action) *lib.APIRequestData {
	for _, d := range action.Datas {
		if d.Kind() == lib.KindAPIRequest {
			return d.APIRequest
		}
	}
	return nil
}

func storageData(action lib.Action) *lib.BrowserStorageData {
	for _, d := range action.Datas {
		if d.Kind() == lib.KindBrowserStorage {
			return d.BrowserStorage
		}
	}
	return nil
}

func jsString(s string) string {
	return strconv.Quote(s)
}

func sanitizeComment(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "\r", " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
