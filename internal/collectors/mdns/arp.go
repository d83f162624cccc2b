package mdns

import (
	"bufio"
	"os"
	"strings"
)

// macForIP resolves an IP to a MAC via the kernel's ARP table, mirroring the
// donor's internal/services/discovery/arp.go approach.
func macForIP(ip string) string {
	f, err := os.Open("/proc/net/arp")
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Scan() // header

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 4 && fields[0] == ip {
			mac := fields[3]
			if mac != "00:00:00:00:00:00" && len(mac) == 17 {
				return mac
			}
		}
	}
	return ""
}
