package events

import (
	"net/url"
	"strings"

	"folio/internal/pkg/referrers"
	ua "folio/internal/pkg/user_agent"
)

// DirectReferrer labels events without a usable referrer.
const DirectReferrer = referrers.Direct

// NormalizeOperatingSystem normalizes operating system names to standardize them
func NormalizeOperatingSystem(os string) string {
	if os == "" {
		return ua.Unknown
	}

	osLower := strings.ToLower(os)

	switch {
	case strings.Contains(osLower, "ipados"):
		return "iPadOS"
	case strings.Contains(osLower, "ios") || strings.Contains(osLower, "iphone os"):
		return "iOS"
	case strings.Contains(osLower, "mac") || strings.Contains(osLower, "darwin"):
		return "macOS"
	case strings.Contains(osLower, "android"):
		return "Android"
	case strings.Contains(osLower, "chrome os") || strings.Contains(osLower, "chromeos"):
		return "ChromeOS"
	case strings.Contains(osLower, "linux"):
		return "Linux"
	case strings.Contains(osLower, "windows"):
		return "Windows"
	}

	return strings.ToUpper(os[:1]) + os[1:]
}

// ReferrerHost reduces a raw referrer to its hostname without "www.".
// Unparseable or empty referrers count as direct traffic.
func ReferrerHost(raw *string) string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return DirectReferrer
	}
	value := strings.TrimSpace(*raw)
	if !strings.Contains(value, "://") {
		value = "https://" + value
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Hostname() == "" {
		return DirectReferrer
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// deviceFromUserAgent fills device fields from a raw user agent string.
func deviceFromUserAgent(userAgent string) (device, os, browser string, bot bool) {
	parsed := ua.ParseUserAgent(userAgent)
	return parsed.Device, NormalizeOperatingSystem(parsed.OS), parsed.Browser, parsed.Bot
}
