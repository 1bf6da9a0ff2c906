package fieldcrypt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// DecryptFields returns a deep copy of obj with the leaf value at every
// given dotted path decrypted. Decryption failure on a field is non-fatal:
// the copy keeps the original value and a Warning is returned and logged,
// so records written before encryption was introduced still load.
//
// Decrypted plaintext that forms a JSON object or array is parsed into the
// structured value; anything else stays a string.
func DecryptFields(
	logger logrus.FieldLogger, c Cipher, key []byte, obj map[string]any, paths []string,
) (map[string]any, []Warning) {
	out, _ := deepCopy(obj).(map[string]any)

	var warnings []Warning
	for _, path := range paths {
		parent, leaf, ok := navigate(out, path, false)
		if !ok {
			continue
		}
		raw, ok := leafString(parent, leaf)
		if !ok || raw == "" {
			continue
		}

		plain, err := c.Decrypt(raw, key)
		if err != nil {
			w := Warning{Path: path, Err: err}
			warnings = append(warnings, w)
			if logger != nil {
				logger.WithError(err).WithField("path", path).
					Warn("could not decrypt field, keeping stored value")
			}
			continue
		}
		setLeaf(parent, leaf, parsePlain(plain))
	}
	return out, warnings
}

// EncryptFields returns a deep copy of obj with the leaf value at every
// given dotted path encrypted. Non-string leaves are converted to their
// canonical JSON form first; nil or absent leaves are skipped. Unlike
// decryption, a cipher failure here is an error: writing a record with a
// half-encrypted field is never acceptable.
func EncryptFields(c Cipher, key []byte, obj map[string]any, paths []string) (map[string]any, error) {
	out, _ := deepCopy(obj).(map[string]any)

	for _, path := range paths {
		parent, leaf, ok := navigate(out, path, true)
		if !ok {
			continue
		}
		val := getLeaf(parent, leaf)
		if val == nil {
			continue
		}

		plain, ok := val.(string)
		if !ok {
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("canonicalizing %q: %w", path, err)
			}
			plain = string(b)
		}

		enc, err := c.Encrypt(plain, key)
		if err != nil {
			return nil, fmt.Errorf("encrypting %q: %w", path, err)
		}
		setLeaf(parent, leaf, enc)
	}
	return out, nil
}

// DecryptObject applies DecryptFields to a typed value through a JSON
// round trip, which also provides the deep copy.
func DecryptObject[T any](logger logrus.FieldLogger, c Cipher, key []byte, obj T, paths []string) (T, []Warning) {
	var zero T
	m, err := toMap(obj)
	if err != nil {
		return obj, []Warning{{Path: "", Err: err}}
	}
	dec, warnings := DecryptFields(logger, c, key, m, paths)
	out, err := fromMap[T](dec)
	if err != nil {
		return zero, append(warnings, Warning{Path: "", Err: err})
	}
	return out, warnings
}

// EncryptObject is the symmetric typed wrapper around EncryptFields.
func EncryptObject[T any](c Cipher, key []byte, obj T, paths []string) (T, error) {
	var zero T
	m, err := toMap(obj)
	if err != nil {
		return zero, err
	}
	enc, err := EncryptFields(c, key, m, paths)
	if err != nil {
		return zero, err
	}
	return fromMap[T](enc)
}

func toMap(obj any) (map[string]any, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromMap[T any](m map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(m)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}

// parsePlain turns decrypted plaintext back into its recorded shape:
// structured data when the plaintext is a JSON object or array, the raw
// string otherwise. Scalar-looking plaintext ("123", "true") stays a
// string on purpose, since the recorded field was a string.
func parsePlain(plain string) any {
	trimmed := strings.TrimSpace(plain)
	if len(trimmed) == 0 {
		return plain
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return plain
	}
	if !gjson.Valid(trimmed) {
		return plain
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return plain
	}
	return parsed
}

// navigate walks obj along the dotted path and returns the container of the
// final segment. Map segments missing on the way are created when create is
// set; numeric segments index into lists and are never created. The third
// return is false when the leaf's container cannot be reached.
func navigate(obj map[string]any, path string, create bool) (any, string, bool) {
	segments := strings.Split(path, ".")
	var cur any = obj
	for _, seg := range segments[:len(segments)-1] {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok || next == nil {
				if !create {
					return nil, "", false
				}
				created := map[string]any{}
				node[seg] = created
				next = created
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, "", false
			}
			cur = node[idx]
		default:
			return nil, "", false
		}
	}
	return cur, segments[len(segments)-1], true
}

func getLeaf(parent any, leaf string) any {
	switch node := parent.(type) {
	case map[string]any:
		return node[leaf]
	case []any:
		idx, err := strconv.Atoi(leaf)
		if err != nil || idx < 0 || idx >= len(node) {
			return nil
		}
		return node[idx]
	}
	return nil
}

func leafString(parent any, leaf string) (string, bool) {
	s, ok := getLeaf(parent, leaf).(string)
	return s, ok
}

func setLeaf(parent any, leaf string, val any) {
	switch node := parent.(type) {
	case map[string]any:
		node[leaf] = val
	case []any:
		if idx, err := strconv.Atoi(leaf); err == nil && idx >= 0 && idx < len(node) {
			node[idx] = val
		}
	}
}

func deepCopy(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, vv := range node {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, vv := range node {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}
