package events

import (
	"time"

	"folio/internal/resources"
)

// Geo is where an event came from. Empty fields mean the lookup failed or was skipped.
type Geo struct {
	City        string `json:"city,omitempty"`
	Region      string `json:"region,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty" gorm:"size:2"`
}

// IsZero reports whether no location is known.
func (g Geo) IsZero() bool {
	return g == Geo{}
}

// AnalyticsEvent is one immutable analytics record. Rows are only ever inserted;
// they are removed in bulk when the owning account is deleted.
type AnalyticsEvent struct {
	ID             uint                   `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID        uint                   `gorm:"index:idx_owner_created;not null" json:"owner_id"`
	ResourceID     *string                `gorm:"index" json:"resource_id"`
	ResourceType   resources.ResourceType `gorm:"not null" json:"resource_type"`
	Kind           EventKind              `gorm:"index;not null" json:"event_kind"`
	SessionID      string                 `gorm:"index;not null" json:"session_id"`
	Device         string                 `json:"device"`
	OS             string                 `json:"os"`
	Browser        string                 `json:"browser"`
	Geo            Geo                    `gorm:"embedded;embeddedPrefix:geo_" json:"geo"`
	Referrer       *string                `json:"referrer"`
	Section        string                 `json:"section,omitempty"`
	Target         string                 `json:"target,omitempty"`
	TimeSpent      float64                `json:"time_spent,omitempty"`
	ScrollDepth    float64                `json:"scroll_depth,omitempty"`
	IdempotencyKey *string                `gorm:"uniqueIndex;size:64" json:"-"`
	CreatedAt      time.Time              `gorm:"index:idx_owner_created;not null;autoCreateTime:false" json:"created_at"`
}

// TableName keeps the table name short.
func (AnalyticsEvent) TableName() string {
	return "events"
}

// Vocabulary returns the table matching the event's resource type.
func (e *AnalyticsEvent) Vocabulary() Vocabulary {
	return VocabularyFor(e.ResourceType)
}
