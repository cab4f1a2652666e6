// main.go - Admin control tool for folio
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"folio/internal"
	"folio/internal/accounts"
	"folio/internal/analytics"
	"folio/internal/events"
	"folio/internal/resources"
	"folio/internal/seeder"
	"folio/internal/settings"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

var log = logrus.New()

// slogger feeds the internal packages, which log through log/slog, into the
// same destination as log.
var slogger = slog.Default()

// Command defines the interface for all command implementations
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

var commands = []Command{
	&MigrateCommand{},
	&CreateAccountCommand{},
	&RotateKeyCommand{},
	&CheckKeyCommand{},
	&CreateResourceCommand{},
	&SeedCommand{},
	&MetricsCommand{},
	&DeleteAccountCommand{},
	&ExcludeIPsCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	logFile := flag.String("log-file", os.Getenv("FOLIO_CTL_LOG_FILE"), "also write logs to this file (rotated)")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Parse()

	setupLogging(*logFile, *verbose)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Warn("Received signal, initiating cleanup...")
		cancel()
	}()

	cmdName, args := parseArgs(flag.Args())

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if _, isHelp := cmd.(*HelpCommand); !isHelp {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.WithError(err).Warn("Failed to initialize app, proceeding with limited functionality")
		}
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Cleanup error")
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.WithError(err).WithField("command", cmd.Name()).Error("Command failed")
		os.Exit(1)
	}

	log.WithField("command", cmd.Name()).Debug("Command completed successfully")
}

// setupLogging writes to stderr and, when path is set, to a rotated log file.
func setupLogging(path string, verbose bool) {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	var out io.Writer = os.Stderr
	if path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	log.SetOutput(out)

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slogger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func requireApp(app *internal.Application) error {
	if app == nil {
		return errors.New("app initialization failed, cannot connect to database")
	}
	return nil
}

func parseOwnerID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid owner id %q", raw)
	}
	return uint(id), nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if err := requireApp(app); err != nil {
		return err
	}

	log.Info("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info("Migrations completed successfully")
	return nil
}

// CreateAccountCommand creates an owner and prints its API key once.
type CreateAccountCommand struct{}

func (c *CreateAccountCommand) Name() string { return "create-account" }
func (c *CreateAccountCommand) Description() string {
	return "Creates an owner account and prints its API key: <email> [name]"
}

func (c *CreateAccountCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <email> [name]", c.Name())
	}
	if err := requireApp(app); err != nil {
		return err
	}

	name := strings.Join(args[1:], " ")
	account, key, err := accounts.CreateAccount(app.DBManager.GetConnection(), slogger, args[0], name)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountExists) {
			log.WithField("email", args[0]).Warn("Account already exists")
			return nil
		}
		return err
	}

	fmt.Printf("Owner ID: %d\n", account.ID)
	fmt.Printf("API key:  %s\n", key)
	fmt.Println("Store the key now; it cannot be shown again.")
	return nil
}

// RotateKeyCommand replaces an owner's API key.
type RotateKeyCommand struct{}

func (c *RotateKeyCommand) Name() string { return "rotate-key" }
func (c *RotateKeyCommand) Description() string {
	return "Issues a new API key for an owner: <owner-id>"
}

func (c *RotateKeyCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <owner-id>", c.Name())
	}
	if err := requireApp(app); err != nil {
		return err
	}
	ownerID, err := parseOwnerID(args[0])
	if err != nil {
		return err
	}

	key, err := accounts.RotateAPIKey(app.DBManager.GetConnection(), slogger, ownerID)
	if err != nil {
		return err
	}
	fmt.Printf("API key: %s\n", key)
	return nil
}

// CheckKeyCommand verifies an API key typed at a hidden prompt.
type CheckKeyCommand struct{}

func (c *CheckKeyCommand) Name() string { return "check-key" }
func (c *CheckKeyCommand) Description() string {
	return "Checks an API key against an owner: <owner-id>"
}

func (c *CheckKeyCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <owner-id>", c.Name())
	}
	if err := requireApp(app); err != nil {
		return err
	}
	ownerID, err := parseOwnerID(args[0])
	if err != nil {
		return err
	}

	account, err := accounts.GetActiveAccount(app.DBManager.GetConnection(), ownerID)
	if err != nil {
		return err
	}

	key, err := readSecret("API key: ")
	if err != nil {
		return err
	}
	if !account.VerifyAPIKey(key) {
		return errors.New("API key does not match")
	}
	fmt.Println("API key is valid")
	return nil
}

// CreateResourceCommand registers a resume or portfolio.
type CreateResourceCommand struct{}

func (c *CreateResourceCommand) Name() string { return "create-resource" }
func (c *CreateResourceCommand) Description() string {
	return "Registers a resume or portfolio: <owner-id> <resume|portfolio> <title>"
}

func (c *CreateResourceCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: %s <owner-id> <resume|portfolio> <title>", c.Name())
	}
	if err := requireApp(app); err != nil {
		return err
	}
	ownerID, err := parseOwnerID(args[0])
	if err != nil {
		return err
	}
	resourceType, err := resources.ParseResourceType(args[1])
	if err != nil {
		return err
	}

	db := app.DBManager.GetConnection()
	if _, err := accounts.GetActiveAccount(db, ownerID); err != nil {
		return err
	}

	resource := &resources.Resource{OwnerID: ownerID, Type: resourceType, Title: strings.Join(args[2:], " ")}
	if err := resources.CreateResource(db, slogger, resource); err != nil {
		return err
	}
	fmt.Printf("Resource ID: %s\n", resource.ID)
	return nil
}

// SeedCommand populates the DB with demo data
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with a demo owner and events" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	count := fs.Int("events", 5000, "number of events to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireApp(app); err != nil {
		return err
	}

	result, err := seeder.NewSeeder(app.DBManager, slogger, *count).Run(ctx)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"owner_id":  result.Account.ID,
		"resources": len(result.Resources),
		"events":    result.Events,
	}).Info("Seed complete")
	if result.APIKey != "" {
		fmt.Printf("Demo API key: %s\n", result.APIKey)
	}
	return nil
}

// MetricsCommand prints the dashboard payload of an owner or one resource.
type MetricsCommand struct{}

func (c *MetricsCommand) Name() string { return "metrics" }
func (c *MetricsCommand) Description() string {
	return "Prints aggregated metrics as JSON: [-days N] [-resource ID] <owner-id>"
}

func (c *MetricsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	days := fs.Int("days", 30, "window in days")
	resourceID := fs.String("resource", "", "limit to one resume or portfolio")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s [-days N] [-resource ID] <owner-id>", c.Name())
	}
	if err := requireApp(app); err != nil {
		return err
	}
	ownerID, err := parseOwnerID(fs.Arg(0))
	if err != nil {
		return err
	}

	db := app.DBManager.GetConnection()
	var metrics *analytics.AggregatedMetrics
	if *resourceID != "" {
		metrics, err = analytics.GetResourceMetrics(ctx, db, ownerID, *resourceID, *days)
	} else {
		metrics, err = analytics.GetAggregatedMetrics(ctx, db, ownerID, *days)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// DeleteAccountCommand schedules an owner for deletion.
type DeleteAccountCommand struct{}

func (c *DeleteAccountCommand) Name() string { return "delete-account" }
func (c *DeleteAccountCommand) Description() string {
	return "Schedules an owner and all its events for deletion: [-yes] <owner-id>"
}

func (c *DeleteAccountCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("delete-account", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "skip confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s [-yes] <owner-id>", c.Name())
	}
	if err := requireApp(app); err != nil {
		return err
	}
	ownerID, err := parseOwnerID(fs.Arg(0))
	if err != nil {
		return err
	}

	db := app.DBManager.GetConnection()
	count, err := events.CountForOwner(db, ownerID)
	if err != nil {
		return err
	}

	if !*yes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("refusing to delete without -yes when stdin is not a terminal")
		}
		answer, err := prompt(fmt.Sprintf("Delete owner %d and %d events? [y/N]: ", ownerID, count))
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			log.Info("Aborted")
			return nil
		}
	}

	if err := accounts.MarkForDeletion(db, slogger, ownerID); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"owner_id": ownerID, "events": count}).
		Info("Account scheduled for deletion; the cleanup job removes its data")
	return nil
}

// ExcludeIPsCommand lists or replaces the addresses whose events are dropped.
type ExcludeIPsCommand struct{}

func (c *ExcludeIPsCommand) Name() string { return "exclude-ips" }
func (c *ExcludeIPsCommand) Description() string {
	return "Lists or replaces excluded IPs and CIDR ranges: list | set <ip,cidr,...> | clear"
}

func (c *ExcludeIPsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if err := requireApp(app); err != nil {
		return err
	}
	db := app.DBManager.GetConnection().WithContext(ctx)

	action := "list"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "list":
		list, err := settings.ExcludedIPs(db)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			log.Info("No excluded IPs")
			return nil
		}
		for _, entry := range list {
			fmt.Println(entry)
		}
		return nil
	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s set <ip,cidr,...>", c.Name())
		}
		stored, err := settings.SetExcludedIPs(db, args[1:])
		if err != nil {
			return err
		}
		log.WithField("entries", strings.Join(stored, ",")).Info("Excluded IPs updated")
		return nil
	case "clear":
		if _, err := settings.SetExcludedIPs(db, nil); err != nil {
			return err
		}
		log.Info("Excluded IPs cleared")
		return nil
	default:
		return fmt.Errorf("unknown action %q, expected list, set or clear", action)
	}
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if err := requireApp(app); err != nil {
		return err
	}

	db := app.DBManager.GetConnection()

	var accountCount, resourceCount, eventCount int64
	if err := db.Model(&accounts.Account{}).Count(&accountCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&resources.Resource{}).Count(&resourceCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&events.AnalyticsEvent{}).Count(&eventCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	stats := sqlDB.Stats()

	log.WithFields(logrus.Fields{
		"accounts":  accountCount,
		"resources": resourceCount,
		"events":    eventCount,
	}).Info("Database: connected")
	log.WithFields(logrus.Fields{
		"max_open": stats.MaxOpenConnections,
		"open":     stats.OpenConnections,
		"in_use":   stats.InUse,
		"idle":     stats.Idle,
	}).Info("Connection pool")
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// readSecret reads without echo on a terminal and falls back to a plain line otherwise.
func readSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Print(label)
	secret, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

func parseArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: folioctl [-v] [-log-file PATH] [command] [args...]")
	fmt.Println("Available commands:")
	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
