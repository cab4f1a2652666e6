// Package resources stores the resumes and portfolios that analytics events point at.
package resources

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// ResourceType tags which product surface an event belongs to.
type ResourceType string

const (
	TypeResume    ResourceType = "resume"
	TypePortfolio ResourceType = "portfolio"
)

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	return t == TypeResume || t == TypePortfolio
}

// ParseResourceType converts user input into a ResourceType.
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown resource type: %q", s)
	}
	return t, nil
}

// ResourceNotFoundError represents an error when a resume or portfolio is not found
type ResourceNotFoundError struct {
	ID string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.ID)
}

// NewResourceNotFoundError creates a new ResourceNotFoundError
func NewResourceNotFoundError(id string) *ResourceNotFoundError {
	return &ResourceNotFoundError{ID: id}
}

// Resource is a resume or portfolio owned by an account.
type Resource struct {
	ID        string       `gorm:"primaryKey" json:"id"`
	OwnerID   uint         `gorm:"index;not null" json:"owner_id"`
	Type      ResourceType `gorm:"not null" json:"type"`
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"created_at"`
}

// GetResourceOrNotFound retrieves a resource by id.
// It accepts a transaction to be used as part of a larger transaction process
func GetResourceOrNotFound(tx *gorm.DB, id string) (*Resource, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewResourceNotFoundError(id)
	}

	var resource Resource
	if err := tx.Where("id = ?", id).First(&resource).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewResourceNotFoundError(id)
		}
		return nil, fmt.Errorf("unexpected error querying resource: %w", err)
	}

	return &resource, nil
}

// CreateResource creates a new resource, assigning an id when none is set.
func CreateResource(db *gorm.DB, logger *slog.Logger, resource *Resource) error {
	if !resource.Type.Valid() {
		return fmt.Errorf("unknown resource type: %q", resource.Type)
	}
	if resource.OwnerID == 0 {
		return errors.New("resource owner is required")
	}
	if resource.ID == "" {
		resource.ID = uuid.NewString()
	}
	resource.CreatedAt = time.Now().UTC()

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Create(resource).Error
	})
}

// ListForOwner returns the owner's resources, newest first.
func ListForOwner(db *gorm.DB, ownerID uint) ([]Resource, error) {
	var list []Resource
	if err := db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to get resources: %w", err)
	}
	return list, nil
}

// DeleteForOwner removes all resources of an owner and returns how many were deleted.
func DeleteForOwner(db *gorm.DB, logger *slog.Logger, ownerID uint) (int64, error) {
	var deleted int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		result := tx.Where("owner_id = ?", ownerID).Delete(&Resource{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}
