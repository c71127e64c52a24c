package vcloud

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Entity kinds used in control-plane URNs
const (
	KindVM       = "vm"
	KindVApp     = "vapp"
	KindTemplate = "vappTemplate"
	KindNetwork  = "network"
	KindVDC      = "vdc"
	KindOrg      = "org"
	KindTask     = "task"
)

// URNPrefix is the common prefix of every control-plane URN
const URNPrefix = "urn:vcloud:"

// ToURN formats an id as a URN of the given kind. Ids that already are URNs are
// returned unchanged.
func ToURN(kind, id string) string {
	if strings.HasPrefix(id, URNPrefix) {
		return id
	}
	return URNPrefix + kind + ":" + id
}

// ParseURN splits a URN into its kind and UUID
func ParseURN(urn string) (string, string, error) {
	if urn == "" {
		return "", "", fmt.Errorf("empty URN")
	}
	if !strings.HasPrefix(urn, URNPrefix) {
		return "", "", fmt.Errorf("invalid URN prefix: %s", urn)
	}

	rest := strings.TrimPrefix(urn, URNPrefix)
	kind, id, ok := strings.Cut(rest, ":")
	if !ok || kind == "" {
		return "", "", fmt.Errorf("invalid URN format: %s", urn)
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", "", fmt.Errorf("invalid UUID in URN: %s", id)
	}

	return kind, id, nil
}

// NormalizeID accepts a URN, a hyphenless 32-hex id or a plain UUID and
// returns the canonical URN of the given kind
func NormalizeID(kind, s string) (string, error) {
	if strings.HasPrefix(s, URNPrefix) {
		urnKind, id, err := ParseURN(s)
		if err != nil {
			return "", err
		}
		if urnKind != kind {
			return "", fmt.Errorf("expected %s URN, got %s", kind, urnKind)
		}
		return ToURN(kind, id), nil
	}

	// uuid.Parse accepts the hyphenless 32-hex form as well
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid %s id %q: %w", kind, s, err)
	}
	return ToURN(kind, id.String()), nil
}

// NewURN generates a fresh URN of the given kind
func NewURN(kind string) string {
	return ToURN(kind, uuid.New().String())
}
