package capture

import (
	ua "folio/internal/pkg/user_agent"
)

// Brand is one entry of the structured user agent data a browser exposes.
type Brand struct {
	Brand   string `json:"brand"`
	Version string `json:"version"`
}

// UserAgentData mirrors the browser's structured user agent hints.
type UserAgentData struct {
	Brands   []Brand `json:"brands"`
	Mobile   bool    `json:"mobile"`
	Platform string  `json:"platform"`
}

// DeviceInfo is what the client reports about the viewer's device.
type DeviceInfo struct {
	Device  string `json:"device,omitempty"`
	OS      string `json:"os,omitempty"`
	Browser string `json:"browser,omitempty"`
}

// ResolveDevice prefers structured user agent data and only falls back to
// pattern matching the raw string when none is available. The fallback checks
// browsers in a fixed order because Edge and Brave also carry a Chrome token.
func ResolveDevice(data *UserAgentData, userAgent string) DeviceInfo {
	if data != nil && len(data.Brands) > 0 {
		info := DeviceInfo{
			Browser: data.Brands[0].Brand,
			OS:      data.Platform,
			Device:  ua.DeviceDesktop,
		}
		if data.Mobile {
			info.Device = ua.DeviceMobile
		}
		return info
	}

	if userAgent == "" {
		return DeviceInfo{Browser: ua.Unknown}
	}

	parsed := ua.ParseUserAgent(userAgent)
	return DeviceInfo{
		Device:  parsed.Device,
		OS:      parsed.OS,
		Browser: ua.BrowserFamily(userAgent),
	}
}
