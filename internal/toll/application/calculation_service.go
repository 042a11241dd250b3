package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"toll-calculator/internal/observability/metrics"
	toll "toll-calculator/internal/toll/domain"
)

// RuleSource resolves the rule set snapshot to compute with.
type RuleSource interface {
	Current(ctx context.Context) (*toll.RuleSet, error)
}

// CalculationService computes daily toll reports for one vehicle.
type CalculationService struct {
	rules    RuleSource
	holidays toll.HolidayChecker
	logger   *log.Logger
}

// NewCalculationService constructs the service. A nil holiday checker
// means no public holidays.
func NewCalculationService(rules RuleSource, holidays toll.HolidayChecker, logger *log.Logger) (*CalculationService, error) {
	if rules == nil {
		return nil, errors.New("calculation service: nil rule source")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CalculationService{rules: rules, holidays: holidays, logger: logger}, nil
}

// DailyReports resolves the current rules and evaluates the timestamps.
// Empty input yields an empty result without touching the rule source,
// whatever the vehicle type.
func (s *CalculationService) DailyReports(ctx context.Context, vehicle toll.VehicleType, timestamps []time.Time) ([]toll.DailyReport, error) {
	if len(timestamps) == 0 {
		return []toll.DailyReport{}, nil
	}
	if vehicle == "" {
		return nil, fmt.Errorf("%w: empty", toll.ErrInvalidVehicleType)
	}

	start := time.Now()
	rules, err := s.rules.Current(ctx)
	if err != nil {
		metrics.ObserveCalculation(metrics.ResultError, time.Since(start))
		return nil, err
	}

	reports := toll.ComputeDailyReports(rules, s.holidays, vehicle, timestamps)
	metrics.ObserveCalculation(metrics.ResultSuccess, time.Since(start))
	metrics.AddPassages(len(timestamps))
	return reports, nil
}

// Rules returns the rule set the next calculation would use.
func (s *CalculationService) Rules(ctx context.Context) (*toll.RuleSet, error) {
	return s.rules.Current(ctx)
}
