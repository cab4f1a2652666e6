package user_agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"folio/internal/pkg/user_agent"
)

func TestParseUserAgent(t *testing.T) {
	testCases := []struct {
		name            string
		userAgent       string
		expectedBrowser string
		expectedOS      string
		expectedDevice  string
	}{
		{
			name:            "Chrome on Windows",
			userAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			expectedBrowser: "Chrome",
			expectedOS:      "Windows",
			expectedDevice:  user_agent.DeviceDesktop,
		},
		{
			name:            "Safari on iPhone",
			userAgent:       "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			expectedBrowser: "Safari",
			expectedOS:      "iOS",
			expectedDevice:  user_agent.DeviceMobile,
		},
		{
			name:            "Chrome on Android phone",
			userAgent:       "Mozilla/5.0 (Linux; Android 11; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36",
			expectedBrowser: "Chrome",
			expectedOS:      "Android",
			expectedDevice:  user_agent.DeviceMobile,
		},
		{
			name:            "Safari on iPad",
			userAgent:       "Mozilla/5.0 (iPad; CPU OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			expectedBrowser: "Safari",
			expectedOS:      "iPadOS",
			expectedDevice:  user_agent.DeviceTablet,
		},
		{
			name:            "Android tablet without Mobile token",
			userAgent:       "Mozilla/5.0 (Linux; Android 12; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36",
			expectedBrowser: "Chrome",
			expectedOS:      "Android",
			expectedDevice:  user_agent.DeviceTablet,
		},
		{
			name:            "Edge on Windows",
			userAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91",
			expectedBrowser: "Edge",
			expectedOS:      "Windows",
			expectedDevice:  user_agent.DeviceDesktop,
		},
		{
			name:            "Firefox on Linux",
			userAgent:       "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			expectedBrowser: "Firefox",
			expectedOS:      "Linux",
			expectedDevice:  user_agent.DeviceDesktop,
		},
		{
			name:            "Safari on macOS",
			userAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
			expectedBrowser: "Safari",
			expectedOS:      "macOS",
			expectedDevice:  user_agent.DeviceDesktop,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := user_agent.ParseUserAgent(tc.userAgent)

			assert.Equal(t, tc.expectedBrowser, result.Browser)
			assert.Equal(t, tc.expectedOS, result.OS)
			assert.Equal(t, tc.expectedDevice, result.Device)
			assert.False(t, result.Bot)
		})
	}
}

func TestParseUserAgent_Bot(t *testing.T) {
	result := user_agent.ParseUserAgent("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
	assert.True(t, result.Bot)
	assert.Equal(t, user_agent.DeviceBot, result.Device)
}

func TestParseUserAgent_Empty(t *testing.T) {
	result := user_agent.ParseUserAgent("")
	assert.Equal(t, user_agent.Unknown, result.Browser)
	assert.Equal(t, user_agent.DeviceDesktop, result.Device)
}

func TestBrowserFamily_Order(t *testing.T) {
	// An Edge user agent also contains Chrome and Safari tokens.
	edge := "Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0"
	assert.Equal(t, "Edge", user_agent.BrowserFamily(edge))

	brave := "Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Brave/1.61"
	assert.Equal(t, "Brave", user_agent.BrowserFamily(brave))

	chrome := "Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	assert.Equal(t, "Chrome", user_agent.BrowserFamily(chrome))

	assert.Equal(t, user_agent.Unknown, user_agent.BrowserFamily("curl/8.0"))
	assert.Equal(t, user_agent.Unknown, user_agent.BrowserFamily(""))
}
