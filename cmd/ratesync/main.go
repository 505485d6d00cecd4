package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/carparkfinder/backend/internal/adapters/database"
	"github.com/carparkfinder/backend/internal/adapters/filestore"
	"github.com/carparkfinder/backend/internal/domain/repositories"
	"github.com/carparkfinder/backend/internal/infrastructure/clients/postgres"
	"github.com/carparkfinder/backend/internal/infrastructure/observability"
	"github.com/carparkfinder/backend/pkg/config"
)

const usage = `usage:
  ratesync missing                                   list carparks whose rates still need filling in
  ratesync set <id> <weekday> <saturday> <sunday> [after-hours]
  ratesync sync                                      copy the rates file into PostgreSQL`

const needsUpdateNote = " - NEEDS RATE UPDATE"

func main() {
	ratesFile := flag.String("file", "", "rates JSON file (defaults to RATES_FILE)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-ratesync", cfg.Env, cfg.LogLevel)

	path := *ratesFile
	if path == "" {
		path = cfg.Data.RatesFile
	}
	file := filestore.NewRateFileAdapter(path)

	ctx := context.Background()
	args := flag.Args()

	if len(args) > 0 && args[0] == "sync" {
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("PostgreSQL unavailable")
		}
		defer pgClient.Close()
		if err := syncRates(ctx, file, database.NewRateAdapter(pgClient), os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("Rate sync failed")
		}
		return
	}

	if err := run(ctx, args, file, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// run executes the file-only subcommands.
func run(ctx context.Context, args []string, repo repositories.RateRepository, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "missing":
		missing, err := missingRates(ctx, repo)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			fmt.Fprintln(out, "All carpark rates are up to date.")
			return nil
		}
		fmt.Fprintf(out, "%d carparks need rate updates:\n", len(missing))
		for _, r := range missing {
			fmt.Fprintf(out, "  %s (%s) %s\n", r.Pricing.Name, r.CarparkID, r.Pricing.Note)
		}
		return nil

	case "set":
		if len(args) < 5 || len(args) > 6 {
			return errors.New(usage)
		}
		afterHours := ""
		if len(args) == 6 {
			afterHours = args[5]
		}
		return setRate(ctx, repo, args[1], args[2], args[3], args[4], afterHours, out)

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func missingRates(ctx context.Context, repo repositories.RateRepository) ([]*repositories.RateRecord, error) {
	records, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var missing []*repositories.RateRecord
	for _, r := range records {
		if strings.Contains(r.Pricing.WeekdayRate, "TODO") {
			missing = append(missing, r)
		}
	}
	return missing, nil
}

func setRate(ctx context.Context, repo repositories.RateRepository, id, weekday, saturday, sunday, afterHours string, out io.Writer) error {
	records, err := repo.List(ctx)
	if err != nil {
		return err
	}

	key := repositories.NormalizeRateKey(id)
	for _, r := range records {
		if r.Key != key {
			continue
		}
		r.Pricing.WeekdayRate = weekday
		r.Pricing.SaturdayRate = saturday
		r.Pricing.SundayRate = sunday
		if afterHours != "" {
			r.Pricing.WeekdayRateAfterHours = afterHours
		}
		r.Pricing.Note = strings.Replace(r.Pricing.Note, needsUpdateNote, "", 1)

		if err := repo.Upsert(ctx, []*repositories.RateRecord{r}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated %s\n", r.Pricing.Name)
		return nil
	}
	return fmt.Errorf("carpark %q not found", id)
}

func syncRates(ctx context.Context, from, to repositories.RateRepository, out io.Writer) error {
	records, err := from.List(ctx)
	if err != nil {
		return err
	}
	if err := to.Upsert(ctx, records); err != nil {
		return err
	}
	fmt.Fprintf(out, "Synced %d rate records\n", len(records))
	return nil
}
