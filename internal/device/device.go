// Package device derives display labels and stable fingerprints from
// user-agent strings. Labels show up in audit events and the session
// endpoint; fingerprints let downstream consumers spot a session moving to a
// very different client without storing raw user-agent strings.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Service computes device fingerprints. Parsing display labels works even
// when fingerprinting is disabled.
type Service struct {
	enabled bool
}

// NewService creates a device service. When disabled, fingerprints are empty.
func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ParseUserAgent turns a raw user-agent string into a short display label
// like "Chrome on Mac OS X" or "Safari on iPhone".
func ParseUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}

	parsed := useragent.New(rawUA)

	browser, _ := parsed.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := parsed.OSInfo().Name
	if parsed.Mobile() && parsed.Platform() != "" {
		platform = parsed.Platform()
	}
	if platform == "" {
		platform = "Unknown OS"
	}

	return browser + " on " + platform
}

// ComputeFingerprint hashes the stable parts of a user-agent (browser, major
// version, OS, platform) into a SHA-256 hex string. Minor browser updates
// keep the same fingerprint; a browser or OS change produces a new one.
func (s *Service) ComputeFingerprint(rawUA string) string {
	if !s.enabled {
		return ""
	}

	parsed := useragent.New(rawUA)
	browser, version := parsed.Browser()
	canonical := strings.Join([]string{
		browser,
		majorVersion(version),
		parsed.OSInfo().Name,
		parsed.Platform(),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether two fingerprints match and whether the
// difference counts as drift.
func (s *Service) CompareFingerprints(current, stored string) (matched, drift bool) {
	if current == stored {
		return true, false
	}
	return false, true
}

func majorVersion(version string) string {
	if i := strings.Index(version, "."); i >= 0 {
		return version[:i]
	}
	return version
}
