package jobs

import (
	"context"
	"log/slog"
	"os"
	"time"

	"folio/internal/pkg/geoip"
)

// GeoDBReloadJob reopens the GeoLite2 database when the file on disk changes,
// so a replaced database is picked up without a restart.
type GeoDBReloadJob struct {
	path    string
	logger  *slog.Logger
	modTime time.Time
	reload  func()
}

func NewGeoDBReloadJob(path string, logger *slog.Logger) *GeoDBReloadJob {
	j := &GeoDBReloadJob{path: path, logger: logger, reload: geoip.ReloadGeoDB}
	if info, err := os.Stat(path); err == nil {
		j.modTime = info.ModTime()
	}
	return j
}

func (j *GeoDBReloadJob) Name() string {
	return "geodb_reload"
}

func (j *GeoDBReloadJob) Run(context.Context) error {
	if j.path == "" {
		return nil
	}

	info, err := os.Stat(j.path)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn("Cannot stat GeoLite2 database", slog.String("path", j.path), slog.Any("error", err))
		}
		return nil
	}

	if !info.ModTime().After(j.modTime) {
		return nil
	}

	j.logger.Info("GeoLite2 database changed on disk, reloading", slog.String("path", j.path))
	j.modTime = info.ModTime()
	j.reload()
	return nil
}
