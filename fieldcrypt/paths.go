package fieldcrypt

import (
	"fmt"

	"github.com/testwise/runcore/lib"
)

// The functions below derive the dotted paths to decrypt for each object
// kind by inspecting which optional sub-fields are actually populated.
// Callers must never decrypt a fixed path list blindly: a path whose leaf
// is absent on this particular object is never emitted.

// ConnectionPaths returns the encrypted field paths of a database
// connection, each prefixed with prefix (which must end with a dot when
// non-empty).
func ConnectionPaths(c lib.Connection, prefix string) []string {
	var paths []string
	if c.Password.Valid && c.Password.String != "" {
		paths = append(paths, prefix+"password")
	}
	if c.SSHPrivateKey.Valid && c.SSHPrivateKey.String != "" {
		paths = append(paths, prefix+"ssh_private_key")
	}
	return paths
}

// ActionPaths returns every encrypted field path reachable in one recorded
// action: input values and the credentials of embedded statement
// connections.
func ActionPaths(a lib.Action) []string {
	var paths []string
	for i, d := range a.Datas {
		switch d.Kind() {
		case lib.KindValue:
			if d.Value.Value != "" {
				paths = append(paths, fmt.Sprintf("action_datas.%d.value.value", i))
			}
		case lib.KindStatement:
			prefix := fmt.Sprintf("action_datas.%d.statement.connection.", i)
			paths = append(paths, ConnectionPaths(d.Statement.Connection, prefix)...)
		}
	}
	return paths
}

// BasicAuthPaths returns the encrypted field paths of a basic-auth record.
func BasicAuthPaths(b lib.BasicAuthentication) []string {
	var paths []string
	if b.Username != "" {
		paths = append(paths, "username")
	}
	if b.Password != "" {
		paths = append(paths, "password")
	}
	return paths
}
