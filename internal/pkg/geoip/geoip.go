package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"

	"folio/internal/config"
)

var (
	geoDB  *geoip2.Reader
	once   sync.Once
	mu     sync.RWMutex
	logger *slog.Logger

	countries = gountries.New()
)

// Location is the result of resolving an IP address. Empty fields mean unknown.
type Location struct {
	City        string
	Region      string
	Country     string
	CountryCode string
}

// IsZero reports whether nothing was resolved.
func (l Location) IsZero() bool {
	return l.City == "" && l.Region == "" && l.Country == "" && l.CountryCode == ""
}

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	logger = l
}

func log() *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// InitGeoDB opens the GeoLite2 City database.
// Returns nil if the database is not configured or not found (GeoIP is optional).
func InitGeoDB() *geoip2.Reader {
	cfg := config.GetConfig()
	if cfg.GeoDBPath == "" {
		log().Debug("GeoIP database path not configured - GeoIP features disabled")
		return nil
	}

	if _, err := os.Stat(cfg.GeoDBPath); os.IsNotExist(err) {
		log().Info("GeoLite2 database not found - GeoIP features disabled",
			slog.String("path", cfg.GeoDBPath))
		return nil
	} else if err != nil {
		log().Warn("Error checking GeoLite2 database file",
			slog.String("path", cfg.GeoDBPath),
			slog.Any("error", err))
		return nil
	}

	db, err := geoip2.Open(cfg.GeoDBPath)
	if err != nil {
		log().Error("Failed to open GeoLite2 database",
			slog.String("path", cfg.GeoDBPath),
			slog.Any("error", err))
		return nil
	}

	log().Info("GeoLite2 database initialized successfully",
		slog.String("path", cfg.GeoDBPath),
		slog.String("db_type", db.Metadata().DatabaseType))
	return db
}

// GetGeoDB returns the GeoLite2 database reader, initializing it if necessary.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = InitGeoDB()
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// ReloadGeoDB reloads the GeoLite2 database from disk.
func ReloadGeoDB() {
	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}
	geoDB = InitGeoDB()

	if geoDB != nil {
		log().Info("GeoLite2 database reloaded successfully")
	}
}

// LookupIP resolves an IP address to a location. The second value is false when
// the database is missing, the IP is unparseable, or nothing was found.
func LookupIP(ipAddress string) (Location, bool) {
	reader := GetGeoDB()
	if reader == nil {
		return Location{}, false
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		log().Debug("Failed to parse IP address", slog.String("ip_address", ipAddress))
		return Location{}, false
	}

	record, err := reader.City(ip)
	if err != nil {
		log().Warn("Error looking up location for IP",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return Location{}, false
	}

	code := strings.ToUpper(record.Country.IsoCode)
	if code == "" || code == "--" {
		return Location{}, false
	}

	loc := Location{
		City:        record.City.Names["en"],
		Country:     record.Country.Names["en"],
		CountryCode: code,
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	if loc.Country == "" {
		loc.Country = CountryName(code)
	}
	return loc, true
}

// CountryName returns the common English name for an ISO alpha-2 code, or "" if unknown.
func CountryName(code string) string {
	if code == "" {
		return ""
	}
	country, err := countries.FindCountryByAlpha(strings.ToUpper(code))
	if err != nil {
		return ""
	}
	return country.Name.Common
}
