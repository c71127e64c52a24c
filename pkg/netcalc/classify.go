package netcalc

import (
	"strconv"
	"strings"
)

// IsPublicIP reports whether an IPv4 literal lies outside 10/8, 172.16/12 and
// 192.168/16. Only the second octet of a 172.x address is parsed; if it is not
// a number the address counts as public.
func IsPublicIP(addr string) bool {
	if strings.HasPrefix(addr, "10.") || strings.HasPrefix(addr, "192.168.") {
		return false
	}
	if strings.HasPrefix(addr, "172.") {
		parts := strings.Split(addr, ".")
		if len(parts) < 2 {
			return true
		}
		second, err := strconv.Atoi(parts[1])
		if err != nil {
			return true
		}
		return second < 16 || second > 31
	}
	return true
}

// SplitAddresses partitions addresses into public and private lists,
// ignoring empty entries.
func SplitAddresses(addrs ...string) (public, private []string) {
	for _, a := range addrs {
		if a == "" {
			continue
		}
		if IsPublicIP(a) {
			public = append(public, a)
		} else {
			private = append(private, a)
		}
	}
	return public, private
}
