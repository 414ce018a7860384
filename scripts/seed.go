// Command seed loads demo records into the record store.
//
//	go run ./scripts --clear --commissioner <uid>
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"responseready/config"
	"responseready/db"
	"responseready/logging"
	"responseready/models"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures is the seed file layout.
type Fixtures struct {
	Incidents   []IncidentFixture   `yaml:"incidents"`
	Individuals []models.Individual `yaml:"individuals"`
	Vehicles    []models.Vehicle    `yaml:"vehicles"`
	Comms       []CommFixture       `yaml:"comms"`
}

type IncidentFixture struct {
	Unit        string `yaml:"unit"`
	Type        string `yaml:"type"`
	Location    string `yaml:"location"`
	Description string `yaml:"description"`
	Status      string `yaml:"status"`
	Age         string `yaml:"age"`
}

type CommFixture struct {
	Unit    string `yaml:"unit"`
	Message string `yaml:"message"`
	Age     string `yaml:"age"`
}

// seeded collections, cleared in this order by --clear
var seededCollections = []string{
	models.CollectionIncidents,
	models.CollectionIndividuals,
	models.CollectionVehicles,
	models.CollectionComms,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		fixturesPath string
		clearFirst   bool
		commissioner string
		backend      string
	)

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&fixturesPath, "fixtures", "", "path to a YAML fixture file (default: built-in demo data)")
	flagSet.BoolVar(&clearFirst, "clear", false, "delete incidents, records and comms before seeding")
	flagSet.StringVar(&commissioner, "commissioner", "", "promote this user ID to commissioner")
	flagSet.StringVar(&backend, "backend", "", "record store backend, overrides STORE_BACKEND")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "⚠️  No .env file found, using system environment variables")
	}
	cfg := config.Load()
	if backend != "" {
		cfg.Store.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.New(cfg.Logging.Level, "console", os.Stderr)

	data := defaultFixtures
	if fixturesPath != "" {
		var err error
		if data, err = os.ReadFile(fixturesPath); err != nil {
			return fmt.Errorf("reading fixtures: %w", err)
		}
	}
	fixtures, err := ParseFixtures(data)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info().Str("backend", cfg.Store.Backend).Msg("🌱 Starting database seeding...")
	if clearFirst {
		if err := clearCollections(ctx, store, logger); err != nil {
			return err
		}
	}
	if err := Seed(ctx, store, fixtures, time.Now(), logger); err != nil {
		return err
	}
	if commissioner != "" {
		if err := store.UpdateUserRole(ctx, commissioner, models.RoleCommissioner); err != nil {
			return fmt.Errorf("promoting %s: %w", commissioner, err)
		}
		logger.Info().Str("user_id", commissioner).Msg("  ✓ Promoted to commissioner")
	}
	logger.Info().Msg("✅ Database seeding completed successfully!")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (db.Store, error) {
	if cfg.Store.Backend == config.BackendMemory {
		logger.Warn().Msg("⚠️  Seeding the in-memory store; data is discarded on exit")
		return db.NewMemoryDB(), nil
	}
	app, err := db.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
	if err != nil {
		return nil, err
	}
	return db.NewFirestoreDB(ctx, app, logger)
}

// ParseFixtures decodes a fixture file and checks every entry.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var fixtures Fixtures
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}

	for i, f := range fixtures.Incidents {
		if !models.IncidentStatus(f.Status).Valid() {
			return nil, fmt.Errorf("incident %d: unknown status %q", i, f.Status)
		}
		if _, err := parseAge(f.Age); err != nil {
			return nil, fmt.Errorf("incident %d: %w", i, err)
		}
	}
	for i, f := range fixtures.Comms {
		if _, err := parseAge(f.Age); err != nil {
			return nil, fmt.Errorf("comm %d: %w", i, err)
		}
	}
	for i := range fixtures.Individuals {
		if err := models.Validate(&fixtures.Individuals[i]); err != nil {
			return nil, fmt.Errorf("individual %d: %w", i, err)
		}
	}
	for i := range fixtures.Vehicles {
		if err := models.Validate(&fixtures.Vehicles[i]); err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", i, err)
		}
	}
	return &fixtures, nil
}

func parseAge(age string) (time.Duration, error) {
	if age == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(age)
	if err != nil {
		return 0, fmt.Errorf("invalid age %q: %w", age, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid age %q: must not be negative", age)
	}
	return d, nil
}

// Seed writes fixtures to store. Timestamps are now minus each entry's age.
func Seed(ctx context.Context, store db.Store, fixtures *Fixtures, now time.Time, logger zerolog.Logger) error {
	for _, f := range fixtures.Incidents {
		age, _ := parseAge(f.Age)
		incident := &models.Incident{
			Unit:        f.Unit,
			Type:        f.Type,
			Location:    f.Location,
			Description: f.Description,
			Status:      models.IncidentStatus(f.Status),
			CreatedAt:   now.Add(-age),
		}
		if err := store.CreateIncident(ctx, incident); err != nil {
			return fmt.Errorf("failed to create incident %s: %w", f.Type, err)
		}
		logger.Info().Str("incident_id", incident.ID).Msgf("  ✓ Created incident: %s", f.Type)
	}

	for i := range fixtures.Individuals {
		individual := fixtures.Individuals[i]
		if individual.Guns == nil {
			individual.Guns = []string{}
		}
		if err := store.CreateIndividual(ctx, &individual); err != nil {
			return fmt.Errorf("failed to create individual %s: %w", individual.Name, err)
		}
		logger.Info().Msgf("  ✓ Created individual: %s", individual.Name)
	}

	for i := range fixtures.Vehicles {
		vehicle := fixtures.Vehicles[i]
		if err := store.CreateVehicle(ctx, &vehicle); err != nil {
			return fmt.Errorf("failed to create vehicle %s: %w", vehicle.Plate, err)
		}
		logger.Info().Msgf("  ✓ Created vehicle: %s (owner: %s)", vehicle.Plate, vehicle.Owner)
	}

	for _, f := range fixtures.Comms {
		age, _ := parseAge(f.Age)
		comm := &models.Comm{Unit: f.Unit, Message: f.Message, CreatedAt: now.Add(-age)}
		if err := store.CreateComm(ctx, comm); err != nil {
			return fmt.Errorf("failed to create comm from %s: %w", f.Unit, err)
		}
	}
	logger.Info().Int("count", len(fixtures.Comms)).Msg("  ✓ Created comms")
	return nil
}

func clearCollections(ctx context.Context, store db.Store, logger zerolog.Logger) error {
	for _, name := range seededCollections {
		n, err := store.ClearCollection(ctx, name)
		if err != nil {
			return fmt.Errorf("clearing %s: %w", name, err)
		}
		logger.Info().Str("collection", name).Int("deleted", n).Msg("  🧹 Cleared collection")
	}
	return nil
}
