package timeframe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeWindowBuffer extends the end of a window slightly so that events stamped by
// a server whose clock runs a little ahead are still included.
const TimeWindowBuffer = 5 * time.Minute

type TimeFrameParserParams struct {
	Days        string
	Tz          string
	DefaultDays int
	MaxDays     int
}

type TimeFrameParser struct {
	timeProvider TimeProvider
}

func NewTimeFrameParser(timeProvider ...TimeProvider) *TimeFrameParser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}

	return &TimeFrameParser{
		timeProvider: provider,
	}
}

// ParseTimeFrame reads a "days" value and IANA timezone name from user input.
// An empty days value uses the default and values above MaxDays are capped.
func (p *TimeFrameParser) ParseTimeFrame(params TimeFrameParserParams) (*TimeFrame, error) {
	tzName := strings.TrimSpace(params.Tz)
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("error loading timezone: %w", err)
	}

	days := params.DefaultDays
	if s := strings.TrimSpace(params.Days); s != "" {
		days, err = strconv.Atoi(s)
		if err != nil || days < 1 {
			return nil, fmt.Errorf("invalid days value: %q", params.Days)
		}
	}
	if params.MaxDays > 0 && days > params.MaxDays {
		days = params.MaxDays
	}

	return LastNDays(p.timeProvider.Now(loc), days, loc)
}
