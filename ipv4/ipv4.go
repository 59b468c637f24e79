// Package ipv4 converts dotted-quad IPv4 addresses to and from their
// 32-bit unsigned integer form, big-endian octet order.
package ipv4

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse converts a dotted-quad address such as "8.8.8.8" to its integer
// form (a<<24 | b<<16 | c<<8 | d). It rejects anything that is not four
// decimal octets in the 0-255 range.
func Parse(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("invalid IPv4 address %q: expected 4 octets, got %d", s, len(parts))
	}
	var ip uint32
	for _, p := range parts {
		octet, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid IPv4 address %q: bad octet %q", s, p)
		}
		ip = ip<<8 | uint32(octet)
	}
	return ip, nil
}

// Format is the inverse of Parse.
func Format(ip uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
}
