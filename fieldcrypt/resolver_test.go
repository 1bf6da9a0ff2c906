package fieldcrypt

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/testwise/runcore/lib"
	"github.com/testwise/runcore/lib/testutils"
)

// fakeCipher is a reversible stand-in for the real AES-GCM primitives: it
// prefixes base64 of the plaintext and refuses anything unprefixed, which
// is exactly how a real cipher reacts to never-encrypted values.
type fakeCipher struct{}

const fakePrefix = "enc:"

func (fakeCipher) Encrypt(plaintext string, _ []byte) (string, error) {
	return fakePrefix + base64.StdEncoding.EncodeToString([]byte(plaintext)), nil
}

func (fakeCipher) Decrypt(ciphertext string, _ []byte) (string, error) {
	if !strings.HasPrefix(ciphertext, fakePrefix) {
		return "", errors.New("malformed ciphertext")
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, fakePrefix))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var testKey = make([]byte, KeySize)

func encrypted(t *testing.T, plain string) string {
	t.Helper()
	s, err := fakeCipher{}.Encrypt(plain, testKey)
	require.NoError(t, err)
	return s
}

func TestDecryptFields(t *testing.T) {
	t.Parallel()

	logger, _ := testutils.NewLogger()
	obj := map[string]any{
		"statement": map[string]any{
			"connection": map[string]any{
				"password": encrypted(t, "s3cret"),
				"host":     "db.internal",
			},
		},
	}

	out, warnings := DecryptFields(logger, fakeCipher{}, testKey, obj,
		[]string{"statement.connection.password"})

	assert.Empty(t, warnings)
	conn := out["statement"].(map[string]any)["connection"].(map[string]any)
	assert.Equal(t, "s3cret", conn["password"])
	// Untargeted fields stay put.
	assert.Equal(t, "db.internal", conn["host"])
}

func TestDecryptFieldsDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	logger, _ := testutils.NewLogger()
	enc := encrypted(t, "s3cret")
	obj := map[string]any{"value": map[string]any{"value": enc}}

	_, warnings := DecryptFields(logger, fakeCipher{}, testKey, obj, []string{"value.value"})

	assert.Empty(t, warnings)
	assert.Equal(t, enc, obj["value"].(map[string]any)["value"])
}

func TestDecryptFieldsPlaintextIsNonFatal(t *testing.T) {
	t.Parallel()

	logger, hook := testutils.NewLogger()
	obj := map[string]any{"value": map[string]any{"value": "never encrypted"}}

	out, warnings := DecryptFields(logger, fakeCipher{}, testKey, obj, []string{"value.value"})

	// The stored value is retained and the degradation is observable both
	// as a warning value and in the log.
	assert.Equal(t, "never encrypted", out["value"].(map[string]any)["value"])
	require.Len(t, warnings, 1)
	assert.Equal(t, "value.value", warnings[0].Path)
	lines := hook.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "could not decrypt")
}

func TestDecryptFieldsMissingPathIgnored(t *testing.T) {
	t.Parallel()

	logger, hook := testutils.NewLogger()
	obj := map[string]any{"value": map[string]any{}}

	out, warnings := DecryptFields(logger, fakeCipher{}, testKey, obj,
		[]string{"value.value", "no.such.path"})

	assert.Empty(t, warnings)
	assert.Empty(t, hook.Lines())
	assert.Equal(t, obj, out)
}

func TestDecryptFieldsStructuredPlaintext(t *testing.T) {
	t.Parallel()

	logger, _ := testutils.NewLogger()
	obj := map[string]any{
		"value": map[string]any{"value": encrypted(t, `{"user":"ada","roles":["qa"]}`)},
	}

	out, warnings := DecryptFields(logger, fakeCipher{}, testKey, obj, []string{"value.value"})

	assert.Empty(t, warnings)
	parsed, ok := out["value"].(map[string]any)["value"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada", parsed["user"])
}

func TestDecryptFieldsScalarPlaintextStaysString(t *testing.T) {
	t.Parallel()

	logger, _ := testutils.NewLogger()
	obj := map[string]any{"value": map[string]any{"value": encrypted(t, "12345")}}

	out, warnings := DecryptFields(logger, fakeCipher{}, testKey, obj, []string{"value.value"})

	assert.Empty(t, warnings)
	assert.Equal(t, "12345", out["value"].(map[string]any)["value"])
}

func TestDecryptFieldsListIndexPath(t *testing.T) {
	t.Parallel()

	logger, _ := testutils.NewLogger()
	obj := map[string]any{
		"action_datas": []any{
			map[string]any{"value": map[string]any{"value": encrypted(t, "typed text")}},
		},
	}

	out, warnings := DecryptFields(logger, fakeCipher{}, testKey, obj,
		[]string{"action_datas.0.value.value"})

	assert.Empty(t, warnings)
	data := out["action_datas"].([]any)[0].(map[string]any)
	assert.Equal(t, "typed text", data["value"].(map[string]any)["value"])
}

func TestEncryptFields(t *testing.T) {
	t.Parallel()

	obj := map[string]any{
		"username": "ada",
		"port":     float64(5432),
		"note":     nil,
	}

	out, err := EncryptFields(fakeCipher{}, testKey, obj, []string{"username", "port", "note", "absent"})
	require.NoError(t, err)

	// Strings encrypt as-is, non-strings through their canonical JSON form,
	// nil and absent leaves are skipped.
	user, _ := fakeCipher{}.Decrypt(out["username"].(string), testKey)
	assert.Equal(t, "ada", user)
	port, _ := fakeCipher{}.Decrypt(out["port"].(string), testKey)
	assert.Equal(t, "5432", port)
	assert.Nil(t, out["note"])
	_, ok := out["absent"]
	assert.False(t, ok)
}

func TestEncryptDecryptObjectRoundTrip(t *testing.T) {
	t.Parallel()

	logger, _ := testutils.NewLogger()
	auth := lib.BasicAuthentication{Username: "ada", Password: "pw", TestcaseID: 7}

	enc, err := EncryptObject(fakeCipher{}, testKey, auth, BasicAuthPaths(auth))
	require.NoError(t, err)
	assert.NotEqual(t, auth.Password, enc.Password)

	dec, warnings := DecryptObject(logger, fakeCipher{}, testKey, enc, BasicAuthPaths(enc))
	assert.Empty(t, warnings)
	assert.Equal(t, auth, dec)
}

func TestActionPathsInspectsPopulatedFields(t *testing.T) {
	t.Parallel()

	action := lib.Action{
		Type: lib.ActionDatabaseExecution,
		Datas: []lib.ActionData{
			{Value: &lib.ValueData{Value: "ciphertext"}},
			{Statement: &lib.StatementData{
				SQL: "select 1",
				Connection: lib.Connection{
					Host:     "db.internal",
					Password: null.StringFrom("ciphertext"),
				},
			}},
			{Statement: &lib.StatementData{
				SQL:        "select 2",
				Connection: lib.Connection{Host: "other.internal"},
			}},
		},
	}

	paths := ActionPaths(action)
	assert.Equal(t, []string{
		"action_datas.0.value.value",
		"action_datas.1.statement.connection.password",
	}, paths)
}

func TestConnectionPathsSSHKeyOnlyWhenPresent(t *testing.T) {
	t.Parallel()

	plain := lib.Connection{Password: null.StringFrom("x")}
	withKey := lib.Connection{
		Password:      null.StringFrom("x"),
		SSHPrivateKey: null.StringFrom("y"),
	}

	assert.Equal(t, []string{"password"}, ConnectionPaths(plain, ""))
	assert.Equal(t, []string{"conn.password", "conn.ssh_private_key"}, ConnectionPaths(withKey, "conn."))
}
