// Package netcalc derives IPv4 network prefixes from gateway and netmask pairs
// and classifies addresses as public or private.
package netcalc

import (
	"fmt"
	"strconv"
	"strings"
)

// parseQuad splits a dotted-quad literal into four octets in [0,255]
func parseQuad(kind, s string) ([4]int, error) {
	var out [4]int
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 4 {
		return out, fmt.Errorf("invalid %s %q: expected 4 octets", kind, s)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return out, fmt.Errorf("invalid %s %q: octet %q out of range", kind, s, p)
		}
		out[i] = v
	}
	return out, nil
}

// PrefixLength counts the set bits of a dotted-quad netmask, octet by octet.
// Each octet is shifted left within a byte until it is empty, so a contiguous
// mask yields its leading one-bits.
func PrefixLength(netmask string) (int, error) {
	octets, err := parseQuad("netmask", netmask)
	if err != nil {
		return 0, err
	}
	prefix := 0
	for _, v := range octets {
		for v != 0 {
			prefix++
			v = (v * 2) % 256
		}
	}
	return prefix, nil
}

// ToCIDR returns the network base of gateway under netmask in
// "<base>/<prefix>" form, e.g. ("192.168.1.130", "255.255.255.192") gives
// "192.168.1.128/26". Non-contiguous masks produce unspecified results.
func ToCIDR(gateway, netmask string) (string, error) {
	prefix, err := PrefixLength(netmask)
	if err != nil {
		return "", err
	}
	octets, err := parseQuad("gateway", gateway)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, 4)
	for i, v := range octets {
		remaining := prefix - i*8
		switch {
		case remaining >= 8:
			parts = append(parts, strconv.Itoa(v))
		case remaining > 0:
			width := 1 << (8 - remaining)
			subnets := 256 / width
			base := 0
			for n := 0; n < subnets; n++ {
				if v >= n*width && v < (n+1)*width {
					base = n * width
					break
				}
			}
			parts = append(parts, strconv.Itoa(base))
		default:
			parts = append(parts, "0")
		}
	}
	return strings.Join(parts, ".") + "/" + strconv.Itoa(prefix), nil
}
