package env

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	ethAddressPattern = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")
	privateKeyPattern = regexp.MustCompile("^(0x)?[0-9a-fA-F]{64}$")
)

func IsEmpty(value string) bool {
	return strings.TrimSpace(value) == ""
}

// Ethereum Address
func IsValidEthAddress(address string) bool {
	return ethAddressPattern.MatchString(address)
}

// ECDSA Private Key, with or without 0x
func IsValidPrivateKey(privateKey string) bool {
	return privateKeyPattern.MatchString(privateKey)
}

// Port number
func IsValidPort(port string) bool {
	p, err := strconv.Atoi(port)
	return err == nil && p > 0 && p <= 65535
}

// IsValidURL accepts http(s) URLs with a host
func IsValidURL(raw string) bool {
	return hasSchemeAndHost(raw, "http", "https")
}

// IsValidRPCURL accepts http(s) and ws(s) endpoints
func IsValidRPCURL(raw string) bool {
	return hasSchemeAndHost(raw, "http", "https", "ws", "wss")
}

func hasSchemeAndHost(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	if port := u.Port(); port != "" && !IsValidPort(port) {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}
