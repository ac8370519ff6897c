// Package authfile loads the shared password both the server and client
// read from their respective authfile argument (§6). It is deliberately
// thin: argument parsing and authfile loading are the out-of-scope
// collaborators spec.md hands to the core, sketched here only far enough to
// drive it.
package authfile

import (
	"fmt"
	"os"
	"strings"
)

// Load reads path and returns the password it carries, or nil if the file
// grants access with no password. The first line is the password; an empty
// file (or a file whose first line is itself empty) means no password is
// required. A file containing more than one non-empty line is an error.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1] // drop the artifact of a trailing '\n'
	}
	if len(lines) == 0 {
		return nil, nil
	}
	for _, l := range lines[1:] {
		if l != "" {
			return nil, fmt.Errorf("authfile: more than one non-empty line")
		}
	}
	if lines[0] == "" {
		return nil, nil
	}
	return []byte(lines[0]), nil
}
