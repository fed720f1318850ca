// Package bridgeid derives the bridge's own identifier, the 16-hex-digit
// string real Hue bridges expose in mDNS/SSDP and the `bridge_id` field:
// the configured MAC address with "fffe" spliced in at the EUI-64 split
// point.
package bridgeid

import (
	"fmt"
	"net"
	"strings"
)

// FromMAC derives the bridge identifier from a 6-byte hardware address.
// The result is the MAC's upper 3 bytes, "fffe", then the MAC's lower 3
// bytes, all uppercase hex with no separators, e.g.
// "00:17:88:AA:BB:CC" -> "001788FFFEAABBCC".
func FromMAC(mac net.HardwareAddr) (string, error) {
	if len(mac) != 6 {
		return "", fmt.Errorf("bridgeid: MAC address must be 6 bytes, got %d", len(mac))
	}
	return fmt.Sprintf("%02X%02X%02XFFFE%02X%02X%02X",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5]), nil
}

// Parse derives the bridge identifier from a MAC address string in any
// format net.ParseMAC accepts (colon, dash, or dot separated).
func Parse(s string) (string, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return "", fmt.Errorf("bridgeid: %w", err)
	}
	return FromMAC(mac)
}

// Validate reports whether s is a well-formed 16-hex-digit bridge
// identifier with "FFFE" at the EUI-64 split point.
func Validate(s string) bool {
	if len(s) != 16 {
		return false
	}
	if !strings.EqualFold(s[6:10], "FFFE") {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
