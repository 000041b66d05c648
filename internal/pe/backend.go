package pe

import (
	"fmt"
	"strings"
)

// Backend selects the PE parser used to build an Image.
type Backend string

const (
	// BackendDebugPE parses with the standard library's debug/pe.
	BackendDebugPE Backend = "debugpe"
	// BackendSaferwall parses headers only with github.com/saferwall/pe.
	// It accepts malformed headers that debug/pe rejects.
	BackendSaferwall Backend = "saferwall"

	// DefaultBackend is used when no backend is named.
	DefaultBackend = BackendSaferwall
)

// Backends lists the supported backends, default first.
var Backends = []Backend{BackendSaferwall, BackendDebugPE}

// ParseBackend resolves a backend name, case-insensitively.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	if b == "" {
		return DefaultBackend, nil
	}
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("未知的解析后端: %q (可选: %s, %s)", name, BackendSaferwall, BackendDebugPE)
}

func (b Backend) String() string {
	return string(b)
}
