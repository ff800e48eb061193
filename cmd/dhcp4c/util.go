package main

import (
	"net"
	"strings"
)

func ipMaskString(m net.IPMask) string {
	if m == nil {
		return ""
	}
	return net.IP(m).String()
}

func ipListString(ips []net.IP) string {
	if len(ips) == 0 {
		return ""
	}
	parts := make([]string, len(ips))
	for i, ip := range ips {
		parts[i] = ip.String()
	}
	return strings.Join(parts, ", ")
}
