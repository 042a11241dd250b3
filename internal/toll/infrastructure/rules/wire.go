package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	toll "toll-calculator/internal/toll/domain"
)

// Format selects the document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var validUntilLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Document is the wire shape of a rule set.
type Document struct {
	DailyMaxFee           Amount         `json:"dailyMaxFee" yaml:"dailyMaxFee"`
	WindowDurationMinutes float64        `json:"windowDurationMinutes" yaml:"windowDurationMinutes"`
	Fees                  []FeeDocument  `json:"fees" yaml:"fees"`
	ExemptDaysOfTheWeek   []WeekdayValue `json:"exemptDaysOfTheWeek" yaml:"exemptDaysOfTheWeek"`
	ExemptVehicleTypes    []string       `json:"exemptVehicleTypes" yaml:"exemptVehicleTypes"`
	ValidUntil            string         `json:"validUntil,omitempty" yaml:"validUntil,omitempty"`
}

// FeeDocument is one fee entry.
type FeeDocument struct {
	Amount    Amount             `json:"amount" yaml:"amount"`
	Intervals []IntervalDocument `json:"intervals" yaml:"intervals"`
}

// IntervalDocument is a "HH:mm" range.
type IntervalDocument struct {
	StartTime string `json:"startTime" yaml:"startTime"`
	EndTime   string `json:"endTime" yaml:"endTime"`
}

// Amount is a decimal that travels as a bare number.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

// MarshalJSON writes the amount unquoted.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers and numeric strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	return a.Decimal.UnmarshalJSON(data)
}

// UnmarshalYAML parses the scalar without a float round trip.
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("toll rules: amount must be a scalar (line %d)", node.Line)
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("toll rules: bad amount %q (line %d): %w", node.Value, node.Line, err)
	}
	a.Decimal = d
	return nil
}

// MarshalYAML writes the amount as a plain scalar.
func (a Amount) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: a.Decimal.String()}, nil
}

// WeekdayValue is a weekday given either by name or by number (Sunday = 0).
type WeekdayValue string

// UnmarshalJSON accepts strings and integers.
func (w *WeekdayValue) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*w = WeekdayValue(name)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("toll rules: weekday must be a name or a number: %s", data)
	}
	*w = WeekdayValue(strconv.Itoa(n))
	return nil
}

// Decode parses a document in the given format.
func Decode(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("toll rules: decode yaml: %w", err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("toll rules: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("toll rules: unknown format %q", format)
	}
	return &doc, nil
}

// Encode writes the document in the given format.
func Encode(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatJSON, "":
		return encodeJSON(doc)
	default:
		return nil, fmt.Errorf("toll rules: unknown format %q", format)
	}
}

func encodeJSON(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeRuleSet decodes, converts and validates in one step.
func DecodeRuleSet(data []byte, format Format) (*toll.RuleSet, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	return doc.ToDomain()
}

// ToDomain converts the document and validates the result.
func (d *Document) ToDomain() (*toll.RuleSet, error) {
	if d == nil {
		return nil, errors.New("toll rules: nil document")
	}
	rules := &toll.RuleSet{
		DailyMaxFee:    d.DailyMaxFee.Decimal,
		WindowDuration: time.Duration(d.WindowDurationMinutes * float64(time.Minute)),
	}

	for i, fee := range d.Fees {
		converted := toll.Fee{Amount: fee.Amount.Decimal}
		for _, interval := range fee.Intervals {
			start, err := toll.ParseTimeOfDay(interval.StartTime)
			if err != nil {
				return nil, fmt.Errorf("%w: fee %d start: %w", toll.ErrInvalidRuleSet, i, err)
			}
			end, err := toll.ParseTimeOfDay(interval.EndTime)
			if err != nil {
				return nil, fmt.Errorf("%w: fee %d end: %w", toll.ErrInvalidRuleSet, i, err)
			}
			converted.Intervals = append(converted.Intervals, toll.Interval{Start: start, End: end})
		}
		rules.Fees = append(rules.Fees, converted)
	}

	for _, value := range d.ExemptDaysOfTheWeek {
		day, err := toll.ParseWeekday(string(value))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", toll.ErrInvalidRuleSet, err)
		}
		rules.ExemptWeekdays = append(rules.ExemptWeekdays, day)
	}

	for _, value := range d.ExemptVehicleTypes {
		vehicle, err := toll.ParseVehicleType(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", toll.ErrInvalidRuleSet, err)
		}
		rules.ExemptVehicleTypes = append(rules.ExemptVehicleTypes, vehicle)
	}

	if strings.TrimSpace(d.ValidUntil) != "" {
		validUntil, err := parseValidUntil(d.ValidUntil)
		if err != nil {
			return nil, err
		}
		rules.ValidUntil = validUntil
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// FromDomain builds the wire document for a rule set.
func FromDomain(rules *toll.RuleSet) *Document {
	if rules == nil {
		return nil
	}
	doc := &Document{
		DailyMaxFee:           NewAmount(rules.DailyMaxFee),
		WindowDurationMinutes: rules.WindowDuration.Minutes(),
		Fees:                  make([]FeeDocument, 0, len(rules.Fees)),
		ExemptDaysOfTheWeek:   make([]WeekdayValue, 0, len(rules.ExemptWeekdays)),
		ExemptVehicleTypes:    make([]string, 0, len(rules.ExemptVehicleTypes)),
	}
	for _, fee := range rules.Fees {
		out := FeeDocument{Amount: NewAmount(fee.Amount), Intervals: make([]IntervalDocument, 0, len(fee.Intervals))}
		for _, interval := range fee.Intervals {
			out.Intervals = append(out.Intervals, IntervalDocument{
				StartTime: interval.Start.String(),
				EndTime:   interval.End.String(),
			})
		}
		doc.Fees = append(doc.Fees, out)
	}
	for _, day := range rules.ExemptWeekdays {
		doc.ExemptDaysOfTheWeek = append(doc.ExemptDaysOfTheWeek, WeekdayValue(day.String()))
	}
	for _, vehicle := range rules.ExemptVehicleTypes {
		doc.ExemptVehicleTypes = append(doc.ExemptVehicleTypes, string(vehicle))
	}
	if !rules.ValidUntil.IsZero() {
		doc.ValidUntil = rules.ValidUntil.UTC().Format(time.RFC3339)
	}
	return doc
}

// parseValidUntil reads ISO-8601 timestamps; values without an offset are UTC.
func parseValidUntil(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range validUntilLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad validUntil %q", toll.ErrInvalidRuleSet, value)
}
