package events

import (
	"fmt"
	"slices"

	"folio/internal/resources"
)

// EventKind names what a viewer did. Resumes and portfolios each have their own
// vocabulary; the same word may appear in both with different meaning.
type EventKind string

// Resume kinds
const (
	KindView     EventKind = "view"
	KindDownload EventKind = "download"
	KindShare    EventKind = "share"
	KindContact  EventKind = "contact"
)

// Portfolio kinds
const (
	KindPageView    EventKind = "page_view"
	KindSectionView EventKind = "section_view"
	KindClick       EventKind = "click"
	KindTimeOnPage  EventKind = "time_on_page"
)

// Role is the aggregation meaning of a kind within its vocabulary.
type Role int

const (
	RoleOther Role = iota
	RoleView
	RoleDownload
	RoleShare
	RoleContact
	RoleSectionView
	RoleClick
	RoleTimeTracking
)

// KindSpec describes one entry of a vocabulary.
type KindSpec struct {
	Role Role
	// Interaction kinds count towards the engagement rate.
	Interaction bool
	describe    func(e *AnalyticsEvent) string
}

// Describe renders the activity feed message for e.
func (s KindSpec) Describe(e *AnalyticsEvent) string {
	return s.describe(e)
}

// Vocabulary maps kinds to their meaning for one resource type.
type Vocabulary map[EventKind]KindSpec

func fixed(msg string) func(*AnalyticsEvent) string {
	return func(*AnalyticsEvent) string { return msg }
}

func orFallback(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

var ResumeVocabulary = Vocabulary{
	KindView:     {Role: RoleView, describe: fixed("Resume viewed")},
	KindDownload: {Role: RoleDownload, describe: fixed("Resume downloaded")},
	KindShare:    {Role: RoleShare, describe: fixed("Resume shared")},
	KindContact:  {Role: RoleContact, Interaction: true, describe: fixed("Contact request received")},
}

var PortfolioVocabulary = Vocabulary{
	KindPageView: {Role: RoleView, describe: fixed("Portfolio viewed")},
	KindSectionView: {Role: RoleSectionView, Interaction: true, describe: func(e *AnalyticsEvent) string {
		return orFallback(e.Section, "Unknown") + " section viewed"
	}},
	KindClick: {Role: RoleClick, Interaction: true, describe: func(e *AnalyticsEvent) string {
		return orFallback(e.Target, "Link") + " clicked"
	}},
	KindContact:    {Role: RoleContact, Interaction: true, describe: fixed("Contact form submitted")},
	KindShare:      {Role: RoleShare, describe: fixed("Portfolio shared")},
	KindTimeOnPage: {Role: RoleTimeTracking, describe: fixed("Time on page recorded")},
}

// VocabularyFor returns the table for a resource type.
func VocabularyFor(t resources.ResourceType) Vocabulary {
	if t == resources.TypeResume {
		return ResumeVocabulary
	}
	return PortfolioVocabulary
}

// Lookup returns the KindSpec for kind. ok is false for kinds outside the vocabulary.
func (v Vocabulary) Lookup(kind EventKind) (KindSpec, bool) {
	spec, ok := v[kind]
	return spec, ok
}

// Describe renders a message for any kind, falling back to "<kind> event".
func (v Vocabulary) Describe(e *AnalyticsEvent) string {
	if spec, ok := v[e.Kind]; ok {
		return spec.Describe(e)
	}
	return fmt.Sprintf("%s event", e.Kind)
}

// Kinds lists the kinds of a vocabulary in alphabetical order.
func (v Vocabulary) Kinds() []EventKind {
	kinds := make([]EventKind, 0, len(v))
	for k := range v {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
