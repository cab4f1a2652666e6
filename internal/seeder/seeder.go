// Package seeder fills a development database with a demo owner, a few resumes
// and portfolios, and a month of believable viewer activity.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"folio/internal/accounts"
	"folio/internal/events"
	ua "folio/internal/pkg/user_agent"
	"folio/internal/resources"
)

const (
	DemoEmail = "demo@folio.local"
	batchSize = 500
	// seeded events spread over this many days
	historyDays = 30
)

// Seeder handles the data seeding process
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	EventCount int

	rand *rand.Rand
}

// Result describes what a seeding run created.
type Result struct {
	Account   *accounts.Account
	APIKey    string
	Resources []resources.Resource
	Events    int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, eventCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		EventCount: eventCount,
		rand:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 42)),
	}
}

// WithSeed makes the generated data reproducible.
func (s *Seeder) WithSeed(seed uint64) *Seeder {
	s.rand = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return s
}

// Run creates the demo owner when missing and generates events for every one of
// its resources. The API key is only returned when the account was created by
// this run.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	s.Logger.Info("Seeding database...", slog.Int("eventCount", s.EventCount))

	db := s.DBManager.GetConnection()

	result := &Result{}
	account, err := accounts.FindByEmail(db, DemoEmail)
	switch {
	case err == nil:
		result.Account = account
	case errors.Is(err, gorm.ErrRecordNotFound):
		account, key, err := accounts.CreateAccount(db, s.Logger, DemoEmail, "Demo Owner")
		if err != nil {
			return nil, fmt.Errorf("failed to create demo account: %w", err)
		}
		result.Account, result.APIKey = account, key
	default:
		return nil, fmt.Errorf("failed to look up demo account: %w", err)
	}

	list, err := s.seedResources(result.Account.ID)
	if err != nil {
		return nil, err
	}
	result.Resources = list

	count, err := s.SeedEvents(ctx, result.Account.ID, list)
	if err != nil {
		return nil, err
	}
	result.Events = count

	s.Logger.Info("Seeding completed successfully",
		slog.Uint64("owner_id", uint64(result.Account.ID)),
		slog.Int("events", count),
		slog.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (s *Seeder) seedResources(ownerID uint) ([]resources.Resource, error) {
	db := s.DBManager.GetConnection()

	existing, err := resources.ListForOwner(db, ownerID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	demo := []resources.Resource{
		{OwnerID: ownerID, Type: resources.TypeResume, Title: "Senior Backend Engineer"},
		{OwnerID: ownerID, Type: resources.TypeResume, Title: "Engineering Manager"},
		{OwnerID: ownerID, Type: resources.TypePortfolio, Title: "Personal Portfolio"},
	}
	for i := range demo {
		if err := resources.CreateResource(db, s.Logger, &demo[i]); err != nil {
			return nil, fmt.Errorf("failed to create resource %q: %w", demo[i].Title, err)
		}
	}
	return demo, nil
}

// SeedEvents writes EventCount events spread across list. Events are inserted
// directly with back-dated timestamps, so they skip ingestion validation.
func (s *Seeder) SeedEvents(ctx context.Context, ownerID uint, list []resources.Resource) (int, error) {
	if len(list) == 0 || s.EventCount <= 0 {
		return 0, nil
	}

	db := s.DBManager.GetConnection().WithContext(ctx)
	userAgents := getUserAgents()
	referrers := getReferrers()
	places := getPlaces()

	batch := make([]events.AnalyticsEvent, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			return tx.CreateInBatches(batch, batchSize).Error
		})
		batch = batch[:0]
		return err
	}

	written := 0
	for written < s.EventCount {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		resource := list[s.rand.IntN(len(list))]
		parsed := ua.ParseUserAgent(userAgents[s.rand.IntN(len(userAgents))])
		place := places[s.rand.IntN(len(places))]
		session := uuid.NewString()
		at := time.Now().UTC().Add(-time.Duration(s.rand.IntN(historyDays*24*60*60)) * time.Second)

		var referrer *string
		if r := referrers[s.rand.IntN(len(referrers))]; r != "" {
			referrer = &r
		}

		for _, step := range s.journey(resource.Type) {
			resourceID := resource.ID
			batch = append(batch, events.AnalyticsEvent{
				OwnerID:      ownerID,
				ResourceID:   &resourceID,
				ResourceType: resource.Type,
				Kind:         step.kind,
				SessionID:    session,
				Device:       parsed.Device,
				OS:           events.NormalizeOperatingSystem(parsed.OS),
				Browser:      parsed.Browser,
				Geo:          place,
				Referrer:     referrer,
				Section:      step.section,
				Target:       step.target,
				TimeSpent:    step.timeSpent,
				ScrollDepth:  step.scrollDepth,
				CreatedAt:    at,
			})
			at = at.Add(time.Duration(s.rand.IntN(110)+10) * time.Second)
			written++

			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return written, fmt.Errorf("failed to insert seeded events: %w", err)
				}
			}
			if written >= s.EventCount {
				break
			}
		}
	}

	if err := flush(); err != nil {
		return written, fmt.Errorf("failed to insert seeded events: %w", err)
	}
	return written, nil
}

type step struct {
	kind        events.EventKind
	section     string
	target      string
	timeSpent   float64
	scrollDepth float64
}

// journey returns what one visitor does: always a view, sometimes more.
func (s *Seeder) journey(t resources.ResourceType) []step {
	if t == resources.TypeResume {
		steps := []step{{kind: events.KindView, scrollDepth: float64(s.rand.IntN(100) + 1)}}
		if s.rand.Float64() < 0.25 {
			steps = append(steps, step{kind: events.KindDownload})
		}
		if s.rand.Float64() < 0.08 {
			steps = append(steps, step{kind: events.KindShare})
		}
		if s.rand.Float64() < 0.05 {
			steps = append(steps, step{kind: events.KindContact})
		}
		return steps
	}

	sections := []string{"hero", "projects", "experience", "skills", "contact"}
	targets := []string{"GitHub", "LinkedIn", "Live demo", "Case study"}

	steps := []step{{kind: events.KindPageView}}
	for _, section := range sections[:s.rand.IntN(len(sections))+1] {
		steps = append(steps, step{kind: events.KindSectionView, section: section})
	}
	if s.rand.Float64() < 0.4 {
		steps = append(steps, step{kind: events.KindClick, target: targets[s.rand.IntN(len(targets))]})
	}
	if s.rand.Float64() < 0.04 {
		steps = append(steps, step{kind: events.KindContact})
	}
	steps = append(steps, step{
		kind:        events.KindTimeOnPage,
		timeSpent:   float64(s.rand.IntN(300) + 5),
		scrollDepth: float64(s.rand.IntN(100) + 1),
	})
	return steps
}

func getUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	}
}

// Empty entries are direct visits.
func getReferrers() []string {
	return []string{
		"",
		"",
		"https://www.linkedin.com/feed/",
		"https://www.google.com/",
		"https://github.com/",
		"https://news.ycombinator.com/",
		"https://mail.google.com/",
	}
}

func getPlaces() []events.Geo {
	return []events.Geo{
		{City: "San Francisco", Region: "California", Country: "United States", CountryCode: "US"},
		{City: "New York", Region: "New York", Country: "United States", CountryCode: "US"},
		{City: "London", Region: "England", Country: "United Kingdom", CountryCode: "GB"},
		{City: "Berlin", Region: "Berlin", Country: "Germany", CountryCode: "DE"},
		{City: "Toronto", Region: "Ontario", Country: "Canada", CountryCode: "CA"},
		{City: "Madrid", Region: "Madrid", Country: "Spain", CountryCode: "ES"},
		{},
	}
}
