// Package naming normalizes user-supplied names to what the control plane
// accepts for vApps and guest computer names.
package naming

import (
	"errors"
	"fmt"
	"strings"
)

// MaxComputerNameLength is the longest guest computer name the control plane accepts
const MaxComputerNameLength = 15

// ErrEmptyName is returned when nothing usable remains of a name
var ErrEmptyName = errors.New("name is empty after normalization")

// Validator normalizes a requested name or rejects it
type Validator interface {
	Validate(name string) (string, error)
}

// VCloudValidator keeps ASCII letters, digits and hyphens. Other characters
// become hyphens, runs of hyphens collapse, and leading or trailing hyphens are
// dropped before the result is cut to MaxLength.
type VCloudValidator struct {
	MaxLength int
}

// NewValidator returns a validator using MaxComputerNameLength.
func NewValidator() VCloudValidator {
	return VCloudValidator{MaxLength: MaxComputerNameLength}
}

// Validate implements Validator.
func (v VCloudValidator) Validate(name string) (string, error) {
	maxLen := v.MaxLength
	if maxLen <= 0 {
		maxLen = MaxComputerNameLength
	}

	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.TrimSpace(name) {
		if isNameRune(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > maxLen {
		out = strings.TrimRight(out[:maxLen], "-")
	}
	if out == "" {
		return "", fmt.Errorf("invalid name %q: %w", name, ErrEmptyName)
	}
	return out, nil
}

func isNameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ComputerName returns the guest computer name of the index-th (1-based) of
// members VMs sharing a base name. A lone VM keeps base; otherwise the index is
// appended, shortening base so the result stays within MaxComputerNameLength.
func ComputerName(base string, index, members int) string {
	if members == 1 {
		return base
	}
	suffix := fmt.Sprintf("-%d", index)
	if room := MaxComputerNameLength - len(suffix); len(base) > room && room > 0 {
		base = strings.TrimRight(base[:room], "-")
	}
	return base + suffix
}
