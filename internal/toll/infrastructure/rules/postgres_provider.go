package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	toll "toll-calculator/internal/toll/domain"
)

const (
	defaultRuleSetsTable   = "toll_rule_sets"
	defaultFeesTable       = "toll_fee_intervals"
	defaultExemptionsTable = "toll_exemptions"
	defaultRuleSetName     = "default"

	exemptionWeekday = "weekday"
	exemptionVehicle = "vehicle"
)

// PostgresProvider loads the newest rule set with a given name.
type PostgresProvider struct {
	db              *sql.DB
	name            string
	ruleSetsTable   string
	feesTable       string
	exemptionsTable string
}

// PostgresOption configures the provider.
type PostgresOption func(*PostgresProvider)

// WithRuleSetName selects which named rule set is served.
func WithRuleSetName(name string) PostgresOption {
	return func(p *PostgresProvider) {
		if name != "" {
			p.name = name
		}
	}
}

// WithRuleSetsTable overrides the rule sets table name.
func WithRuleSetsTable(table string) PostgresOption {
	return func(p *PostgresProvider) {
		if table != "" {
			p.ruleSetsTable = table
		}
	}
}

// WithFeesTable overrides the fee intervals table name.
func WithFeesTable(table string) PostgresOption {
	return func(p *PostgresProvider) {
		if table != "" {
			p.feesTable = table
		}
	}
}

// WithExemptionsTable overrides the exemptions table name.
func WithExemptionsTable(table string) PostgresOption {
	return func(p *PostgresProvider) {
		if table != "" {
			p.exemptionsTable = table
		}
	}
}

// NewPostgresProvider constructs a provider.
func NewPostgresProvider(db *sql.DB, opts ...PostgresOption) *PostgresProvider {
	p := &PostgresProvider{
		db:              db,
		name:            defaultRuleSetName,
		ruleSetsTable:   defaultRuleSetsTable,
		feesTable:       defaultFeesTable,
		exemptionsTable: defaultExemptionsTable,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch implements application.RuleProvider.
func (p *PostgresProvider) Fetch(ctx context.Context) (*toll.RuleSet, error) {
	if p == nil || p.db == nil {
		return nil, errors.New("postgres provider: nil db")
	}

	id, rules, err := p.loadRuleSet(ctx)
	if err != nil {
		return nil, err
	}
	if rules.Fees, err = p.loadFees(ctx, id); err != nil {
		return nil, err
	}
	if err := p.loadExemptions(ctx, id, rules); err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

func (p *PostgresProvider) loadRuleSet(ctx context.Context) (int64, *toll.RuleSet, error) {
	query := fmt.Sprintf(`
SELECT id, daily_max_fee, window_minutes, valid_until
FROM %s
WHERE name = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`, p.ruleSetsTable)

	var (
		id            int64
		dailyMax      decimal.Decimal
		windowMinutes int
		validUntil    sql.NullTime
	)
	if err := p.db.QueryRowContext(ctx, query, p.name).Scan(&id, &dailyMax, &windowMinutes, &validUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, fmt.Errorf("%w: rule set %q", ErrRulesNotFound, p.name)
		}
		return 0, nil, err
	}

	rules := &toll.RuleSet{
		DailyMaxFee:    dailyMax,
		WindowDuration: time.Duration(windowMinutes) * time.Minute,
	}
	if validUntil.Valid {
		rules.ValidUntil = validUntil.Time.UTC()
	}
	return id, rules, nil
}

func (p *PostgresProvider) loadFees(ctx context.Context, id int64) ([]toll.Fee, error) {
	query := fmt.Sprintf(`
SELECT fee_index, amount, start_minute, end_minute
FROM %s
WHERE rule_set_id = $1
ORDER BY fee_index ASC, start_minute ASC`, p.feesTable)

	rows, err := p.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		fees      []toll.Fee
		lastIndex = -1
	)
	for rows.Next() {
		var (
			index      int
			amount     decimal.Decimal
			start, end int
		)
		if err := rows.Scan(&index, &amount, &start, &end); err != nil {
			return nil, err
		}
		if index != lastIndex {
			fees = append(fees, toll.Fee{Amount: amount})
			lastIndex = index
		}
		fees[len(fees)-1].Intervals = append(fees[len(fees)-1].Intervals, toll.Interval{
			Start: toll.Clock(0, start),
			End:   toll.Clock(0, end),
		})
	}
	return fees, rows.Err()
}

func (p *PostgresProvider) loadExemptions(ctx context.Context, id int64, rules *toll.RuleSet) error {
	query := fmt.Sprintf(`
SELECT kind, value
FROM %s
WHERE rule_set_id = $1
ORDER BY kind ASC, position ASC`, p.exemptionsTable)

	rows, err := p.db.QueryContext(ctx, query, id)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return err
		}
		switch kind {
		case exemptionWeekday:
			day, err := toll.ParseWeekday(value)
			if err != nil {
				return fmt.Errorf("%w: %w", toll.ErrInvalidRuleSet, err)
			}
			rules.ExemptWeekdays = append(rules.ExemptWeekdays, day)
		case exemptionVehicle:
			vehicle, err := toll.ParseVehicleType(value)
			if err != nil {
				return fmt.Errorf("%w: %w", toll.ErrInvalidRuleSet, err)
			}
			rules.ExemptVehicleTypes = append(rules.ExemptVehicleTypes, vehicle)
		default:
			return fmt.Errorf("%w: unknown exemption kind %q", toll.ErrInvalidRuleSet, kind)
		}
	}
	return rows.Err()
}

// Save inserts rules as the newest version of the provider's named rule
// set and returns its id.
func (p *PostgresProvider) Save(ctx context.Context, rules *toll.RuleSet) (int64, error) {
	if p == nil || p.db == nil {
		return 0, errors.New("postgres provider: nil db")
	}
	if err := rules.Validate(); err != nil {
		return 0, err
	}
	if rules.WindowDuration%time.Minute != 0 {
		return 0, fmt.Errorf("%w: window duration %s is not whole minutes", toll.ErrInvalidRuleSet, rules.WindowDuration)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var validUntil any
	if !rules.ValidUntil.IsZero() {
		validUntil = rules.ValidUntil.UTC()
	}

	var id int64
	insertSet := fmt.Sprintf(`
INSERT INTO %s (name, daily_max_fee, window_minutes, valid_until)
VALUES ($1, $2, $3, $4)
RETURNING id`, p.ruleSetsTable)
	if err := tx.QueryRowContext(ctx, insertSet,
		p.name, rules.DailyMaxFee.String(), int(rules.WindowDuration/time.Minute), validUntil,
	).Scan(&id); err != nil {
		return 0, err
	}

	insertFee := fmt.Sprintf(`
INSERT INTO %s (rule_set_id, fee_index, amount, start_minute, end_minute)
VALUES ($1, $2, $3, $4, $5)`, p.feesTable)
	for i, fee := range rules.Fees {
		for _, interval := range fee.Intervals {
			if interval.Start.Duration()%time.Minute != 0 || interval.End.Duration()%time.Minute != 0 {
				return 0, fmt.Errorf("%w: interval %s-%s is not whole minutes", toll.ErrInvalidRuleSet, interval.Start, interval.End)
			}
			if _, err := tx.ExecContext(ctx, insertFee, id, i, fee.Amount.String(),
				minuteOfDay(interval.Start), minuteOfDay(interval.End)); err != nil {
				return 0, err
			}
		}
	}

	insertExemption := fmt.Sprintf(`
INSERT INTO %s (rule_set_id, kind, value, position)
VALUES ($1, $2, $3, $4)`, p.exemptionsTable)
	for i, day := range rules.ExemptWeekdays {
		if _, err := tx.ExecContext(ctx, insertExemption, id, exemptionWeekday, day.String(), i); err != nil {
			return 0, err
		}
	}
	for i, vehicle := range rules.ExemptVehicleTypes {
		if _, err := tx.ExecContext(ctx, insertExemption, id, exemptionVehicle, string(vehicle), i); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func minuteOfDay(t toll.TimeOfDay) int {
	return int(t.Duration() / time.Minute)
}
