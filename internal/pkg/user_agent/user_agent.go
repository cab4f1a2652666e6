package user_agent

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device classes reported by ParseUserAgent.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
	Unknown       = "Unknown"
)

type UserAgent struct {
	UserAgent string
	OS        string
	Browser   string
	Version   string
	Device    string
	Mobile    bool
	Tablet    bool
	Desktop   bool
	Bot       bool
}

//go:embed rules.yml
var rulesFile []byte

// Rule matches a user agent and names what it found. Version may reference
// capture groups as $1, $2...
type Rule struct {
	Regex   string `yaml:"regex"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ruleSet struct {
	Bots     []Rule `yaml:"bots"`
	Browsers []Rule `yaml:"browsers"`
	OSs      []Rule `yaml:"oss"`
	Devices  struct {
		Tablet []string `yaml:"tablet"`
		Mobile []string `yaml:"mobile"`
	} `yaml:"devices"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

var (
	parser *Parser
	once   sync.Once
)

type Parser struct {
	rules      ruleSet
	regexCache *RegexCache
}

func getParser() *Parser {
	once.Do(func() {
		parser = &Parser{regexCache: newRegexCache()}
		if err := yaml.Unmarshal(rulesFile, &parser.rules); err != nil {
			slog.Default().Error("Error parsing user agent rules", slog.Any("error", err))
		}
	})
	return parser
}

func (p *Parser) match(rules []Rule, userAgent string) (string, string) {
	for _, rule := range rules {
		regex, err := p.regexCache.get(rule.Regex)
		if err != nil {
			continue
		}
		matches := regex.FindStringSubmatch(userAgent)
		if len(matches) == 0 {
			continue
		}
		version := ""
		if rule.Version != "" && len(matches) > 1 {
			version = rule.Version
			for i, m := range matches[1:] {
				version = strings.ReplaceAll(version, fmt.Sprintf("$%d", i+1), m)
			}
			version = strings.ReplaceAll(version, "_", ".")
		}
		return rule.Name, version
	}
	return Unknown, ""
}

func (p *Parser) matchesAny(patterns []string, userAgent string) bool {
	for _, pattern := range patterns {
		regex, err := p.regexCache.get(pattern)
		if err != nil {
			continue
		}
		if regex.MatchString(userAgent) {
			return true
		}
	}
	return false
}

func (p *Parser) parseDevice(userAgent string) string {
	if p.matchesAny(p.rules.Devices.Tablet, userAgent) {
		return DeviceTablet
	}
	if p.matchesAny(p.rules.Devices.Mobile, userAgent) {
		return DeviceMobile
	}
	return DeviceDesktop
}

// BrowserFamily returns the first browser rule matching the user agent, or Unknown.
// Rules are ordered Firefox, Edge, Brave, Chrome, Safari.
func BrowserFamily(userAgent string) string {
	if userAgent == "" {
		return Unknown
	}
	name, _ := getParser().match(getParser().rules.Browsers, userAgent)
	return name
}

func ParseUserAgent(userAgent string) UserAgent {
	p := getParser()

	if userAgent == "" {
		return UserAgent{OS: Unknown, Browser: Unknown, Device: DeviceDesktop, Desktop: true}
	}

	if p.matchesAny(botPatterns(p.rules.Bots), userAgent) {
		return UserAgent{
			UserAgent: userAgent,
			OS:        Unknown,
			Browser:   Unknown,
			Device:    DeviceBot,
			Bot:       true,
		}
	}

	browser, version := p.match(p.rules.Browsers, userAgent)
	os, _ := p.match(p.rules.OSs, userAgent)
	device := p.parseDevice(userAgent)

	return UserAgent{
		UserAgent: userAgent,
		OS:        os,
		Browser:   browser,
		Version:   version,
		Device:    device,
		Mobile:    device == DeviceMobile,
		Tablet:    device == DeviceTablet,
		Desktop:   device == DeviceDesktop,
	}
}

func botPatterns(rules []Rule) []string {
	patterns := make([]string, len(rules))
	for i, r := range rules {
		patterns[i] = r.Regex
	}
	return patterns
}
