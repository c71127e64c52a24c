package netcalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCIDR(t *testing.T) {
	tests := []struct {
		gateway string
		netmask string
		want    string
	}{
		{"192.168.1.1", "255.255.255.0", "192.168.1.0/24"},
		{"10.0.0.1", "255.0.0.0", "10.0.0.0/8"},
		{"192.168.1.130", "255.255.255.192", "192.168.1.128/26"},
		{"172.16.5.4", "255.240.0.0", "172.16.0.0/12"},
		{"172.31.200.1", "255.240.0.0", "172.16.0.0/12"},
		{"10.1.2.3", "255.255.255.255", "10.1.2.3/32"},
		{"10.1.2.3", "0.0.0.0", "0.0.0.0/0"},
		{"192.168.7.77", "255.255.254.0", "192.168.6.0/23"},
		{"100.64.3.9", "255.255.255.252", "100.64.3.8/30"},
	}

	for _, tt := range tests {
		t.Run(tt.gateway+"/"+tt.netmask, func(t *testing.T) {
			got, err := ToCIDR(tt.gateway, tt.netmask)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToCIDRInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		gateway string
		netmask string
	}{
		{"short netmask", "10.0.0.1", "255.255.0"},
		{"non-numeric netmask", "10.0.0.1", "255.x.0.0"},
		{"octet too large", "10.0.0.1", "256.0.0.0"},
		{"bad gateway", "10.0.zero.1", "255.0.0.0"},
		{"empty gateway", "", "255.0.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToCIDR(tt.gateway, tt.netmask)
			assert.Error(t, err)
		})
	}
}

func TestPrefixLength(t *testing.T) {
	tests := map[string]int{
		"255.255.255.0":   24,
		"255.0.0.0":       8,
		"255.255.255.192": 26,
		"255.255.255.255": 32,
		"0.0.0.0":         0,
		"255.255.128.0":   17,
	}
	for mask, want := range tests {
		got, err := PrefixLength(mask)
		require.NoError(t, err, mask)
		assert.Equal(t, want, got, mask)
	}
}

func TestIsPublicIP(t *testing.T) {
	tests := []struct {
		addr   string
		public bool
	}{
		{"10.1.2.3", false},
		{"192.168.0.5", false},
		{"172.20.0.1", false},
		{"172.16.0.1", false},
		{"172.31.255.255", false},
		{"172.15.0.1", true},
		{"172.32.0.1", true},
		{"172.40.0.1", true},
		{"8.8.8.8", true},
		{"172.abc.0.1", true},
		{"172.", true},
		{"192.169.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.public, IsPublicIP(tt.addr))
			})
		})
	}
}

func TestSplitAddresses(t *testing.T) {
	public, private := SplitAddresses("10.0.0.5", "", "203.0.113.7", "192.168.1.9")
	assert.Equal(t, []string{"203.0.113.7"}, public)
	assert.Equal(t, []string{"10.0.0.5", "192.168.1.9"}, private)

	public, private = SplitAddresses()
	assert.Nil(t, public)
	assert.Nil(t, private)
}
