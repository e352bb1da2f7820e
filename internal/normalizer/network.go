package normalizer

import (
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/logsift/logsift/internal/logs/model"
)

var (
	ipPattern       = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)
	portPattern     = regexp.MustCompile(`(?i)(?:src_port|dst_port|port|spt|dpt)\s*[=:]\s*(\d+)`)
	protocolPattern = regexp.MustCompile(`(?i)(?:proto|protocol)\s*[=:]\s*(\w+)`)
	protocolWord    = regexp.MustCompile(`\b(TCP|UDP|ICMP|HTTP|HTTPS|FTP|SSH|SMTP|DNS|DHCP|SNMP)\b`)
)

// protocolNumberMap resolves IANA protocol numbers seen in firewall logs.
var protocolNumberMap = map[string]string{
	"1":   "ICMP",
	"6":   "TCP",
	"17":  "UDP",
	"47":  "GRE",
	"50":  "ESP",
	"51":  "AH",
	"58":  "ICMPv6",
	"89":  "OSPF",
	"132": "SCTP",
}

// ExtractNetworkInfo scans a message for network-shaped fields. It returns
// nil when nothing was found so that entries without network context carry
// no network_info block at all.
func ExtractNetworkInfo(message string) *model.NetworkInfo {
	info := &model.NetworkInfo{}

	// The pattern admits out-of-range octets like 300.1.2.3; only candidates
	// that parse as real addresses may reach the ip-mapped store fields.
	var ips []string
	for _, candidate := range ipPattern.FindAllString(message, -1) {
		if net.ParseIP(candidate) != nil {
			ips = append(ips, candidate)
		}
	}
	switch {
	case len(ips) >= 2:
		info.SrcIP = ips[0]
		info.DstIP = ips[1]
		info.IPAddress = ips[0]
	case len(ips) == 1:
		info.IPAddress = ips[0]
	}

	if match := portPattern.FindStringSubmatch(message); match != nil {
		if port, err := strconv.Atoi(match[1]); err == nil && port >= 1 && port <= 65535 {
			info.Port = port
		}
	}

	if match := protocolPattern.FindStringSubmatch(message); match != nil {
		info.Protocol = ResolveProtocol(match[1])
	} else if match := protocolWord.FindStringSubmatch(message); match != nil {
		info.Protocol = strings.ToUpper(match[1])
	}

	if info.Empty() {
		return nil
	}
	return info
}

// ResolveProtocol maps a numeric protocol identifier onto its name, leaving
// names untouched.
func ResolveProtocol(raw string) string {
	if name, ok := protocolNumberMap[raw]; ok {
		return name
	}
	return strings.ToUpper(raw)
}
