package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Setting keys
const (
	KeyExcludedIPs = "excluded_ips"
)

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

var (
	excludedIPsMu    sync.RWMutex
	excludedIPsCache *cache.Cache[string, []string]
)

func currentCache() *cache.Cache[string, []string] {
	excludedIPsMu.RLock()
	defer excludedIPsMu.RUnlock()
	return excludedIPsCache
}

// SetupDefaultSettings inserts missing default settings and primes the cache.
func SetupDefaultSettings(dbConn *gorm.DB) error {
	defaults := []Setting{
		{Key: KeyExcludedIPs, Value: ""},
	}
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		for _, setting := range defaults {
			err := tx.Exec(`
                INSERT INTO settings (key, value, created_at, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(key) DO NOTHING
            `, setting.Key, setting.Value, time.Now().UTC(), time.Now().UTC()).Error
			if err != nil {
				return fmt.Errorf("failed to upsert setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})

	loadCache(dbConn, slog.Default())

	return err
}

// IsIPExcluded reports whether events from ip should be dropped. Entries may be
// single addresses or CIDR ranges.
func IsIPExcluded(ip string) (bool, error) {
	c := currentCache()
	if c == nil {
		return false, nil
	}

	excluded, err := c.Get(KeyExcludedIPs)
	if err != nil {
		return false, fmt.Errorf("failed to check excluded IPs: %w", err)
	}

	parsed := net.ParseIP(ip)
	for _, entry := range excluded {
		if entry == "" {
			continue
		}
		if entry == ip {
			return true, nil
		}
		if parsed == nil || !strings.Contains(entry, "/") {
			continue
		}
		if _, network, err := net.ParseCIDR(entry); err == nil && network.Contains(parsed) {
			return true, nil
		}
	}
	return false, nil
}

// GetSetting retrieves a setting value from the database
func GetSetting(dbConn *gorm.DB, key string) (string, error) {
	var setting Setting
	if err := dbConn.Where("key = ?", key).First(&setting).Error; err != nil {
		return "", err
	}
	return setting.Value, nil
}

// UpdateSetting stores a setting, creating it when missing, and refreshes the cache.
func UpdateSetting(dbConn *gorm.DB, key string, value string) error {
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		result := tx.Model(&Setting{}).Where("key = ?", key).Update("value", value)
		if result.Error != nil {
			return fmt.Errorf("failed to update setting: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&Setting{Key: key, Value: value}).Error; err != nil {
				return fmt.Errorf("failed to create setting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c := currentCache(); c != nil {
		c.Clear()
	}
	loadCache(dbConn, slog.Default())

	return nil
}

// ExcludedIPs returns the configured exclusion entries.
func ExcludedIPs(dbConn *gorm.DB) ([]string, error) {
	value, err := GetSetting(dbConn, KeyExcludedIPs)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return splitList(value), nil
}

// SetExcludedIPs replaces the exclusion list. Every entry must be an IP address
// or a CIDR range; nothing is stored when one is invalid.
func SetExcludedIPs(dbConn *gorm.DB, entries []string) ([]string, error) {
	normalized := make([]string, 0, len(entries))
	for _, entry := range entries {
		for _, item := range splitList(entry) {
			value, err := normalizeExclusion(item)
			if err != nil {
				return nil, err
			}
			normalized = append(normalized, value)
		}
	}

	if err := UpdateSetting(dbConn, KeyExcludedIPs, strings.Join(normalized, ",")); err != nil {
		return nil, err
	}
	return normalized, nil
}

func normalizeExclusion(entry string) (string, error) {
	if strings.Contains(entry, "/") {
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return "", fmt.Errorf("invalid CIDR range %q", entry)
		}
		return network.String(), nil
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address %q", entry)
	}
	return ip.String(), nil
}

func loadCache(dbConn *gorm.DB, logger *slog.Logger) {
	fetchFunc := func(key string) ([]string, error) {
		var value string
		err := dbConn.WithContext(context.Background()).Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).Scan(&value).Error
		if err != nil {
			return nil, err
		}
		return splitList(value), nil
	}
	c := cache.NewCache[string, []string](logger, 5*time.Minute, fetchFunc)

	excludedIPsMu.Lock()
	excludedIPsCache = c
	excludedIPsMu.Unlock()
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
