package events

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"folio/internal/resources"
)

// EventFilters scopes a read of the event store. OwnerID is always required.
type EventFilters struct {
	OwnerID      uint
	ResourceID   string
	ResourceType resources.ResourceType
	Kind         EventKind
	SessionID    string
	FromDate     time.Time
	ToDate       time.Time
	Limit        int
	Offset       int
}

// EventsResult represents paginated events result
type EventsResult struct {
	Events []AnalyticsEvent
	Total  int64
}

func (f EventFilters) apply(db *gorm.DB) *gorm.DB {
	query := db.Model(&AnalyticsEvent{}).Where("owner_id = ?", f.OwnerID)

	if !f.FromDate.IsZero() {
		query = query.Where("created_at >= ?", f.FromDate.UTC())
	}
	if !f.ToDate.IsZero() {
		query = query.Where("created_at <= ?", f.ToDate.UTC())
	}
	if f.ResourceID != "" {
		query = query.Where("resource_id = ?", f.ResourceID)
	}
	if f.ResourceType != "" {
		query = query.Where("resource_type = ?", f.ResourceType)
	}
	if f.Kind != "" {
		query = query.Where("kind = ?", f.Kind)
	}
	if f.SessionID != "" {
		query = query.Where("session_id = ?", f.SessionID)
	}
	return query
}

// ListEvents returns every event matching the filters, newest first.
// Ties on created_at fall back to insertion order.
func ListEvents(db *gorm.DB, filters EventFilters) ([]AnalyticsEvent, error) {
	list := []AnalyticsEvent{}
	query := filters.apply(db).Order("created_at DESC").Order("id DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if err := query.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return list, nil
}

// ListForOwner returns the owner's events inside [from, to], newest first.
func ListForOwner(db *gorm.DB, ownerID uint, from, to time.Time) ([]AnalyticsEvent, error) {
	return ListEvents(db, EventFilters{OwnerID: ownerID, FromDate: from, ToDate: to})
}

// GetFilteredEvents retrieves filtered and paginated events
func GetFilteredEvents(db *gorm.DB, filters EventFilters) (EventsResult, error) {
	var total int64
	if err := filters.apply(db).Count(&total).Error; err != nil {
		return EventsResult{}, err
	}

	if filters.Limit <= 0 {
		filters.Limit = 50
	}

	list := []AnalyticsEvent{}
	if err := filters.apply(db).Order("created_at DESC").Order("id DESC").
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&list).Error; err != nil {
		return EventsResult{}, err
	}

	return EventsResult{Events: list, Total: total}, nil
}

// CountForOwner counts all stored events of an owner.
func CountForOwner(db *gorm.DB, ownerID uint) (int64, error) {
	var count int64
	err := db.Model(&AnalyticsEvent{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

// DeleteBatchForOwner deletes up to batchSize of the owner's events and returns how
// many were removed. Callers loop until it returns 0.
func DeleteBatchForOwner(db *gorm.DB, logger *slog.Logger, ownerID uint, batchSize int) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Exec(`
			DELETE FROM events WHERE id IN (
				SELECT id FROM events WHERE owner_id = ? LIMIT ?
			)`, ownerID, batchSize)
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete events for owner %d: %w", ownerID, err)
	}
	return deleted, nil
}
