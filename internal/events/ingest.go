package events

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"folio/internal/accounts"
	"folio/internal/config"
	"folio/internal/pkg/geoip"
	"folio/internal/resources"
	"folio/internal/settings"
	"folio/internal/visitors"
)

// RecordEventInput is a capture payload plus the request context it arrived with.
type RecordEventInput struct {
	Kind        EventKind `validate:"required,max=32"`
	ResourceID  string    `validate:"max=64"`
	OwnerID     uint
	SessionID   string  `validate:"max=128"`
	Geo         *Geo    `validate:"omitempty"`
	Device      string  `validate:"max=64"`
	OS          string  `validate:"max=64"`
	Browser     string  `validate:"max=64"`
	Referrer    string  `validate:"max=2048"`
	Section     string  `validate:"max=128"`
	Target      string  `validate:"max=256"`
	TimeSpent   float64 `validate:"gte=0,lte=86400"`
	ScrollDepth float64 `validate:"gte=0,lte=100"`

	IPAddress string
	UserAgent string
}

// RecordOptions holds the pipeline switches read from configuration.
type RecordOptions struct {
	// ServerDedup stores an idempotency key and silently drops exact repeats of
	// (session, kind, resource). Off by default; the capture client dedups.
	ServerDedup bool
	// Salt keys the fallback session signature.
	Salt  string
	Clock *Clock
}

// OptionsFromConfig builds RecordOptions from the application config.
func OptionsFromConfig(cfg *config.Config) RecordOptions {
	return RecordOptions{ServerDedup: cfg.ServerDedup, Salt: cfg.PrivateKey, Clock: storeClock}
}

// ValidationError rejects a malformed payload. Nothing is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsNotFound reports whether err means the resource or its owner does not exist.
func IsNotFound(err error) bool {
	var resourceErr *resources.ResourceNotFoundError
	var accountErr *accounts.AccountNotFoundError
	return errors.As(err, &resourceErr) || errors.As(err, &accountErr)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// RecordEvent validates input, attributes it to an owner and appends it to the store.
// A nil event with a nil error means the event was accepted but intentionally not
// stored (excluded IP, bot traffic, or a server-side duplicate).
func RecordEvent(ctx context.Context, dbManager cartridge.DBManager, logger *slog.Logger, input *RecordEventInput) (*AnalyticsEvent, error) {
	return RecordEventWithOptions(ctx, dbManager, logger, input, OptionsFromConfig(config.GetConfig()))
}

// RecordEventWithOptions is RecordEvent with explicit options.
func RecordEventWithOptions(ctx context.Context, dbManager cartridge.DBManager, logger *slog.Logger, input *RecordEventInput, opts RecordOptions) (*AnalyticsEvent, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	db := dbManager.GetConnection().WithContext(ctx)

	ownerID, resourceType, resourceID, err := resolveOwner(db, input)
	if err != nil {
		return nil, err
	}

	vocabulary := VocabularyFor(resourceType)
	if _, ok := vocabulary.Lookup(input.Kind); !ok {
		return nil, &ValidationError{
			Field:  "event_kind",
			Reason: fmt.Sprintf("%q is not a %s event (expected one of %s)", input.Kind, resourceType, joinKinds(vocabulary.Kinds())),
		}
	}

	// Excluded traffic is acknowledged only once the payload is known to be valid.
	excluded, err := settings.IsIPExcluded(input.IPAddress)
	if err != nil {
		logger.Error("Error checking IP exclusion", slog.Any("error", err))
	} else if excluded {
		logger.Debug("Skipping event for excluded IP", slog.String("ip", input.IPAddress))
		return nil, nil
	}

	event, bot := buildEvent(input, ownerID, resourceType, resourceID, opts.Salt)
	if bot {
		logger.Debug("Skipping event from bot user agent", slog.String("user_agent", input.UserAgent))
		return nil, nil
	}

	if opts.ServerDedup {
		key := idempotencyKey(event)
		event.IdempotencyKey = &key
	}

	clock := opts.Clock
	if clock == nil {
		clock = storeClock
	}

	inserted := true
	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		event.ID = 0
		event.CreatedAt = clock.Next()
		if event.IdempotencyKey == nil {
			return tx.Create(event).Error
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
		inserted = result.RowsAffected > 0
		return result.Error
	})
	if err != nil {
		logger.Error("Failed to store analytics event", slog.Any("error", err))
		return nil, fmt.Errorf("failed to store analytics event: %w", err)
	}

	if !inserted {
		logger.Debug("Duplicate event suppressed",
			slog.String("session_id", event.SessionID),
			slog.String("event_kind", string(event.Kind)))
		return nil, nil
	}

	return event, nil
}

func joinKinds(kinds []EventKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func validateInput(input *RecordEventInput) error {
	if input == nil {
		return &ValidationError{Field: "payload", Reason: "is required"}
	}

	input.Kind = EventKind(strings.ToLower(strings.TrimSpace(string(input.Kind))))
	input.ResourceID = strings.TrimSpace(input.ResourceID)

	if err := validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return &ValidationError{Field: fieldName(first.Field()), Reason: describeTag(first)}
		}
		return &ValidationError{Field: "payload", Reason: err.Error()}
	}

	if input.ResourceID == "" && input.OwnerID == 0 {
		return &ValidationError{Field: "resource_id", Reason: "resource_id or owner_id is required"}
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "is too long"
	case "gte":
		return "must not be negative"
	case "lte":
		return "is out of range"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// fieldName maps an input field to the name clients know it by.
func fieldName(name string) string {
	if name == "Kind" {
		return "event_kind"
	}
	return toSnake(name)
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && (name[i-1] < 'A' || name[i-1] > 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// resolveOwner finds who owns the event. Resource events take their owner and
// type from the resource; portfolio-only events name the owner directly.
func resolveOwner(db *gorm.DB, input *RecordEventInput) (uint, resources.ResourceType, *string, error) {
	if input.ResourceID == "" {
		account, err := accounts.GetActiveAccount(db, input.OwnerID)
		if err != nil {
			return 0, "", nil, err
		}
		return account.ID, resources.TypePortfolio, nil, nil
	}

	resource, err := resources.GetResourceOrNotFound(db, input.ResourceID)
	if err != nil {
		return 0, "", nil, err
	}
	if input.OwnerID != 0 && input.OwnerID != resource.OwnerID {
		return 0, "", nil, resources.NewResourceNotFoundError(input.ResourceID)
	}
	if _, err := accounts.GetActiveAccount(db, resource.OwnerID); err != nil {
		return 0, "", nil, err
	}

	id := resource.ID
	return resource.OwnerID, resource.Type, &id, nil
}

func buildEvent(input *RecordEventInput, ownerID uint, resourceType resources.ResourceType, resourceID *string, salt string) (*AnalyticsEvent, bool) {
	event := &AnalyticsEvent{
		OwnerID:      ownerID,
		ResourceID:   resourceID,
		ResourceType: resourceType,
		Kind:         input.Kind,
		SessionID:    strings.TrimSpace(input.SessionID),
		Device:       input.Device,
		OS:           input.OS,
		Browser:      input.Browser,
		Section:      strings.TrimSpace(input.Section),
		Target:       strings.TrimSpace(input.Target),
		TimeSpent:    input.TimeSpent,
		ScrollDepth:  input.ScrollDepth,
	}

	device, os, browser, bot := deviceFromUserAgent(input.UserAgent)
	if bot && input.Device == "" && input.Browser == "" {
		return nil, true
	}
	if event.Device == "" {
		event.Device = device
	}
	if event.OS == "" {
		event.OS = os
	}
	if event.Browser == "" {
		event.Browser = browser
	}

	if input.Geo != nil && !input.Geo.IsZero() {
		event.Geo = normalizeGeo(*input.Geo)
	} else if loc, ok := geoip.LookupIP(input.IPAddress); ok {
		event.Geo = Geo{City: loc.City, Region: loc.Region, Country: loc.Country, CountryCode: loc.CountryCode}
	}

	if ref := strings.TrimSpace(input.Referrer); ref != "" {
		event.Referrer = &ref
	}

	if event.SessionID == "" {
		scope := strconv.FormatUint(uint64(ownerID), 10)
		event.SessionID = visitors.BuildSessionSignature(scope, input.IPAddress, input.UserAgent, salt)
	}

	return event, false
}

func normalizeGeo(g Geo) Geo {
	g.City = strings.TrimSpace(g.City)
	g.Region = strings.TrimSpace(g.Region)
	g.Country = strings.TrimSpace(g.Country)
	g.CountryCode = strings.ToUpper(strings.TrimSpace(g.CountryCode))
	if len(g.CountryCode) != 2 {
		g.CountryCode = ""
	}
	if g.Country == "" && g.CountryCode != "" {
		g.Country = geoip.CountryName(g.CountryCode)
	}
	return g
}

func idempotencyKey(e *AnalyticsEvent) string {
	resource := ""
	if e.ResourceID != nil {
		resource = *e.ResourceID
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", e.SessionID, e.Kind, resource, e.OwnerID)))
	return hex.EncodeToString(sum[:])
}
