package pipeline

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ResolveURI turns a command line input into a URI uridecodebin accepts.
// Plain paths become absolute file:// URIs. path is the local file for
// file:// inputs and empty otherwise.
func ResolveURI(input string) (uri, path string, err error) {
	if input == "" {
		return "", "", fmt.Errorf("pipeline: empty input")
	}

	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", "", fmt.Errorf("pipeline: bad uri %q: %w", input, err)
		}
		if u.Scheme == "file" {
			return input, u.Path, nil
		}
		return input, "", nil
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return "", "", fmt.Errorf("pipeline: resolve %q: %w", input, err)
	}
	u := url.URL{Scheme: "file", Path: abs}
	return u.String(), abs, nil
}
