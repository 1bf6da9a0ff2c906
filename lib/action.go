// Package lib contains the domain models shared by the recording and
// execution subsystems: recorded actions, their payload variants, element
// descriptors and per-testcase credentials.
package lib

import (
	"fmt"
	"strconv"

	"gopkg.in/guregu/null.v3"
)

// ActionType enumerates the kinds of recorded user-interaction steps.
type ActionType string

// Supported action types. The recorder only ever produces these values;
// anything else is rejected by the compiler.
const (
	ActionClick             ActionType = "click"
	ActionInput             ActionType = "input"
	ActionNavigate          ActionType = "navigate"
	ActionUpload            ActionType = "upload"
	ActionDatabaseExecution ActionType = "database_execution"
	ActionAPICall           ActionType = "api_call"
	ActionWait              ActionType = "wait"
	ActionAssert            ActionType = "assert"
	ActionBrowserStorage    ActionType = "browser_storage"
)

func (t ActionType) String() string { return string(t) }

// Action is one recorded test step. Actions are created by the recorder,
// mutated only before persistence, and treated as immutable once they are
// compiled into a script for a run.
type Action struct {
	ID          null.Int         `json:"id"`
	Type        ActionType       `json:"action_type"`
	Description string           `json:"description"`
	Datas       []ActionData     `json:"action_datas"`
	Elements    []Element        `json:"elements"`
	Generations []DataGeneration `json:"action_data_generation,omitempty"`
}

// GeneratedValue returns the generated payload variant for the given field,
// if the recorder attached one. Generated variants take precedence over the
// recorded value at compile time.
func (a Action) GeneratedValue(field string) (string, bool) {
	for _, g := range a.Generations {
		if g.Field == field {
			return g.Value, true
		}
	}
	return "", false
}

// DataKind identifies which variant of an ActionData is populated.
type DataKind int

// ActionData payload kinds.
const (
	KindNone DataKind = iota
	KindValue
	KindStatement
	KindFileUpload
	KindBrowserStorage
	KindAPIRequest
)

// ActionData is a tagged union of payload kinds attached to an Action. At
// most one variant is populated per instance; an Action may carry several
// entries representing the facets of one logical step.
type ActionData struct {
	Value          *ValueData          `json:"value,omitempty"`
	Statement      *StatementData      `json:"statement,omitempty"`
	FileUpload     *FileUploadData     `json:"file_upload,omitempty"`
	BrowserStorage *BrowserStorageData `json:"browser_storage,omitempty"`
	APIRequest     *APIRequestData     `json:"api_request,omitempty"`
}

// Kind reports the populated variant. Populating more than one variant is a
// recorder bug; the first populated one wins, in declaration order.
func (d ActionData) Kind() DataKind {
	switch {
	case d.Value != nil:
		return KindValue
	case d.Statement != nil:
		return KindStatement
	case d.FileUpload != nil:
		return KindFileUpload
	case d.BrowserStorage != nil:
		return KindBrowserStorage
	case d.APIRequest != nil:
		return KindAPIRequest
	default:
		return KindNone
	}
}

// ValueData wraps a recorded input value. This is the only ActionData
// sub-field that is ever stored encrypted.
type ValueData struct {
	Value string `json:"value"`
}

// StatementData is an embedded database connection plus the SQL text to run
// against it.
type StatementData struct {
	Name       null.String `json:"name"`
	Connection Connection  `json:"connection"`
	SQL        string      `json:"sql"`
}

// Connection describes a database reachable from a generated script. The
// password and SSH private key arrive encrypted from the backend.
type Connection struct {
	Driver        string      `json:"driver"`
	Host          string      `json:"host"`
	Port          int         `json:"port"`
	Database      string      `json:"database"`
	Username      string      `json:"username"`
	Password      null.String `json:"password,omitempty"`
	SSHPrivateKey null.String `json:"ssh_private_key,omitempty"`
}

// FileUploadData carries an upload action's file payload: either inline
// base64 content or a server path the content must be fetched from.
type FileUploadData struct {
	ID         null.Int    `json:"id"`
	FileName   string      `json:"file_name"`
	Content    null.String `json:"content,omitempty"`
	ServerPath null.String `json:"server_path,omitempty"`
}

// Key returns the stable identifier used to correlate an upload with its
// materialized temp file: upload id, else server path, else filename.
func (f FileUploadData) Key() string {
	if f.ID.Valid {
		return strconv.FormatInt(f.ID.Int64, 10)
	}
	if f.ServerPath.Valid && f.ServerPath.String != "" {
		return f.ServerPath.String
	}
	return f.FileName
}

// BrowserStorageData is a snapshot of browser-side storage captured at
// record time and re-applied before the recorded steps run.
type BrowserStorageData struct {
	Origin         string            `json:"origin,omitempty"`
	Cookies        []Cookie          `json:"cookies,omitempty"`
	LocalStorage   map[string]string `json:"local_storage,omitempty"`
	SessionStorage map[string]string `json:"session_storage,omitempty"`
}

// Cookie is a single recorded browser cookie.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// APIRequestData describes a recorded HTTP call replayed by the generated
// script.
type APIRequestData struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    null.String       `json:"body,omitempty"`
}

// DataGeneration is a templated variant of payload data: the named field is
// fed the generated value instead of the recorded one.
type DataGeneration struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// BasicAuthentication is the per-testcase HTTP basic-auth credential record.
// Both credential fields may arrive encrypted.
type BasicAuthentication struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	TestcaseID int64  `json:"testcase_id"`
}

// Valid reports whether the record carries usable credentials.
func (b *BasicAuthentication) Valid() bool {
	return b != nil && b.Username != ""
}

// UnknownActionTypeError is returned by the compiler when it encounters an
// action type it has no emission rule for.
type UnknownActionTypeError struct {
	Type ActionType
}

func (e UnknownActionTypeError) Error() string {
	return fmt.Sprintf("unknown action type %q", string(e.Type))
}
