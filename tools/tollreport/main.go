package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"toll-calculator/internal/holiday"
	tollapp "toll-calculator/internal/toll/application"
	toll "toll-calculator/internal/toll/domain"
	rules "toll-calculator/internal/toll/infrastructure/rules"
	tollinterfaces "toll-calculator/internal/toll/interfaces"
)

type config struct {
	vehicle  string
	rules    string
	timezone string
	calendar string
	extra    string
	currency string
}

func main() {
	cfg := parseConfig()
	logger := log.New(os.Stderr, "tollreport: ", 0)

	loc, err := time.LoadLocation(cfg.timezone)
	if err != nil {
		logger.Fatalf("timezone: %v", err)
	}
	vehicle, err := toll.ParseVehicleType(cfg.vehicle)
	if err != nil {
		logger.Fatalf("vehicle: %v", err)
	}

	var input io.Reader = os.Stdin
	if flag.NArg() > 0 {
		input = strings.NewReader(strings.Join(flag.Args(), "\n"))
	}
	timestamps, err := readTimestamps(input, loc)
	if err != nil {
		logger.Fatalf("timestamps: %v", err)
	}

	service, err := buildService(cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	reports, err := service.DailyReports(context.Background(), vehicle, timestamps)
	if err != nil {
		logger.Fatalf("calculate: %v", err)
	}
	if err := tollinterfaces.WriteText(os.Stdout, reports, cfg.currency); err != nil {
		logger.Fatalf("print: %v", err)
	}
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.vehicle, "vehicle", envOrDefault("TOLL_VEHICLE", string(toll.VehicleCar)), "vehicle type")
	flag.StringVar(&cfg.rules, "rules", envOrDefault("RULES_FILE", ""), "rules file (json or yaml); default rules when empty")
	flag.StringVar(&cfg.timezone, "tz", envOrDefault("TIMEZONE", "Europe/Stockholm"), "zone for timestamps without an offset")
	flag.StringVar(&cfg.calendar, "holidays", envOrDefault("HOLIDAY_CALENDAR", "se"), "holiday calendar (se|none)")
	flag.StringVar(&cfg.extra, "extra-holidays", envOrDefault("EXTRA_HOLIDAYS", ""), "comma separated extra holiday dates")
	flag.StringVar(&cfg.currency, "currency", envOrDefault("CURRENCY", "SEK"), "currency label")
	flag.Parse()
	return cfg
}

func buildService(cfg config, logger *log.Logger) (*tollapp.CalculationService, error) {
	calendar, err := holiday.ByName(cfg.calendar)
	if err != nil {
		return nil, err
	}
	if cfg.extra != "" {
		extra, err := holiday.ParseDates(cfg.extra)
		if err != nil {
			return nil, err
		}
		calendar = holiday.Union{calendar, extra}
	}

	var store *tollapp.RuleStore
	if cfg.rules == "" {
		store, err = tollapp.NewRuleStore(nil, toll.DefaultRuleSet(), tollapp.WithLogger(logger))
	} else {
		provider, perr := rules.NewFileProvider(cfg.rules)
		if perr != nil {
			return nil, perr
		}
		store, err = tollapp.NewRuleStore(provider, nil, tollapp.WithLogger(logger))
	}
	if err != nil {
		return nil, err
	}
	return tollapp.NewCalculationService(store, calendar, logger)
}

// readTimestamps reads one timestamp per non-empty line.
func readTimestamps(r io.Reader, loc *time.Location) ([]time.Time, error) {
	var out []time.Time
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ts, err := tollinterfaces.ParseTimestamp(line, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, scanner.Err()
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
