// Package logger builds the process-wide zap logger and holds the masking
// helpers that keep addresses and secrets out of log lines.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey carries the request correlation id on a context. The HTTP
// middleware plants it; log fields and event metadata read it back.
type RequestIDKey struct{}

// New builds a logger for the given environment: JSON output in production,
// colored console output everywhere else.
func New(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return cfg.Build()
}

// MaskEmail shows at most three characters of the local part plus the domain.
// Log lines and bus events carry only the masked form.
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, found := strings.Cut(email, "@")
	if !found || domain == "" {
		return "***"
	}

	keep := len(local)
	if keep > 3 {
		keep = 3
	}
	return local[:keep] + "***@" + domain
}

// MaskIP keeps enough of an address to group log lines by network without
// recording the full source: two octets for IPv4, four groups for IPv6.
// Example: 192.168.1.100 -> 192.168.*.*
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if octets := strings.Split(ip, "."); len(octets) == 4 {
		return octets[0] + "." + octets[1] + ".*.*"
	}
	if groups := strings.Split(ip, ":"); len(groups) >= 4 {
		return strings.Join(groups[:4], ":") + ":*:*:*:*"
	}
	return "***"
}

// MaskString hides the middle of an arbitrary secret, keeping two characters
// on each end. Short values mask entirely.
// Example: "secret123" -> "se***23"
func MaskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}
