// Package referrers turns referrer hostnames into the source names shown on the
// dashboard, so google.com and google.de both count as "Google".
package referrers

import (
	"sort"
	"strings"
)

// Direct is the label for visits without a usable referrer.
const Direct = "Direct"

var knownReferrers = map[string]string{
	// Professional networks and job boards
	"linkedin.com":           "LinkedIn",
	"lnkd.in":                "LinkedIn",
	"indeed.com":             "Indeed",
	"glassdoor.com":          "Glassdoor",
	"wellfound.com":          "Wellfound",
	"angel.co":               "Wellfound",
	"workatastartup.com":     "Work at a Startup",
	"hired.com":              "Hired",
	"otta.com":               "Otta",
	"welcometothejungle.com": "Welcome to the Jungle",
	"xing.com":               "XING",
	"monster.com":            "Monster",
	"ziprecruiter.com":       "ZipRecruiter",
	"greenhouse.io":          "Greenhouse",
	"lever.co":               "Lever",
	"ashbyhq.com":            "Ashby",
	"workable.com":           "Workable",

	// Search engines
	"google.com":     "Google",
	"google.co.uk":   "Google",
	"google.de":      "Google",
	"google.fr":      "Google",
	"google.es":      "Google",
	"google.it":      "Google",
	"google.ca":      "Google",
	"google.com.au":  "Google",
	"google.co.in":   "Google",
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"yahoo.com":      "Yahoo",
	"ecosia.org":     "Ecosia",
	"kagi.com":       "Kagi",

	// Social
	"x.com":           "X/Twitter",
	"twitter.com":     "X/Twitter",
	"t.co":            "X/Twitter",
	"facebook.com":    "Facebook",
	"instagram.com":   "Instagram",
	"reddit.com":      "Reddit",
	"threads.net":     "Threads",
	"bsky.app":        "Bluesky",
	"mastodon.social": "Mastodon",
	"youtube.com":     "YouTube",
	"discord.com":     "Discord",
	"whatsapp.com":    "WhatsApp",
	"t.me":            "Telegram",
	"slack.com":       "Slack",

	// Developer communities, where portfolios get shared
	"github.com":           "GitHub",
	"gitlab.com":           "GitLab",
	"news.ycombinator.com": "Hacker News",
	"dev.to":               "DEV Community",
	"hashnode.com":         "Hashnode",
	"medium.com":           "Medium",
	"stackoverflow.com":    "Stack Overflow",
	"dribbble.com":         "Dribbble",
	"behance.net":          "Behance",
	"producthunt.com":      "Product Hunt",

	// Mail clients, for resumes sent as links
	"mail.google.com":    "Gmail",
	"outlook.live.com":   "Outlook",
	"outlook.office.com": "Outlook",
	"mail.yahoo.com":     "Yahoo Mail",
	"mail.proton.me":     "Proton Mail",

	"bit.ly":      "Bitly",
	"tinyurl.com": "TinyURL",
}

// domains sorted longest first so that subdomain matching prefers the most
// specific entry (mail.google.com before google.com).
var domainsBySpecificity = func() []string {
	list := make([]string, 0, len(knownReferrers))
	for domain := range knownReferrers {
		list = append(list, domain)
	}
	sort.Slice(list, func(i, j int) bool {
		if len(list[i]) != len(list[j]) {
			return len(list[i]) > len(list[j])
		}
		return list[i] < list[j]
	})
	return list
}()

// FriendlyName returns a human-friendly name for a referrer hostname.
// Unknown hosts come back without "www." and with the first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hostname)), "www.")
	if hostname == "" {
		return Direct
	}

	if name, ok := knownReferrers[hostname]; ok {
		return name
	}

	for _, domain := range domainsBySpecificity {
		if strings.HasSuffix(hostname, "."+domain) {
			return knownReferrers[domain]
		}
	}

	return capitalizeFirst(hostname)
}

// Source labels a host already reduced by the event store, passing Direct through.
func Source(host string) string {
	if host == Direct {
		return Direct
	}
	return FriendlyName(host)
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
