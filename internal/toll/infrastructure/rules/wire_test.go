package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	toll "toll-calculator/internal/toll/domain"
)

const gothenburgJSON = `{
  "dailyMaxFee": 60,
  "windowDurationMinutes": 60,
  "fees": [
    {"amount": 8, "intervals": [
      {"startTime": "06:00", "endTime": "06:30"},
      {"startTime": "08:30", "endTime": "15:00"},
      {"startTime": "17:00", "endTime": "18:00"}
    ]},
    {"amount": 13, "intervals": [
      {"startTime": "06:30", "endTime": "07:00"},
      {"startTime": "08:00", "endTime": "08:30"},
      {"startTime": "15:00", "endTime": "15:30"}
    ]},
    {"amount": 18, "intervals": [
      {"startTime": "07:00", "endTime": "08:00"},
      {"startTime": "15:30", "endTime": "17:00"}
    ]}
  ],
  "exemptDaysOfTheWeek": [6, "Sunday"],
  "exemptVehicleTypes": ["Emergency", "diplomat", "Military"],
  "validUntil": "2026-12-31T00:00:00"
}`

const gothenburgYAML = `
dailyMaxFee: 60
windowDurationMinutes: 60
fees:
  - amount: 8
    intervals:
      - {startTime: "06:00", endTime: "06:30"}
      - {startTime: "08:30", endTime: "15:00"}
      - {startTime: "17:00", endTime: "18:00"}
  - amount: 13
    intervals:
      - {startTime: "06:30", endTime: "07:00"}
      - {startTime: "08:00", endTime: "08:30"}
      - {startTime: "15:00", endTime: "15:30"}
  - amount: 18
    intervals:
      - {startTime: "07:00", endTime: "08:00"}
      - {startTime: "15:30", endTime: "17:00"}
exemptDaysOfTheWeek: [Saturday, Sunday]
exemptVehicleTypes: [Emergency, Diplomat, Military]
validUntil: "2026-12-31"
`

func encoded(t *testing.T, rules *toll.RuleSet) string {
	t.Helper()
	data, err := Encode(FromDomain(rules), FormatJSON)
	require.NoError(t, err)
	return string(data)
}

func TestDecodeRuleSet_MatchesDefault(t *testing.T) {
	want := encoded(t, toll.DefaultRuleSet())

	fromJSON, err := DecodeRuleSet([]byte(gothenburgJSON), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, want, encoded(t, fromJSON))

	fromYAML, err := DecodeRuleSet([]byte(gothenburgYAML), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, want, encoded(t, fromYAML))
}

func TestDecodeRuleSet_Fields(t *testing.T) {
	rules, err := DecodeRuleSet([]byte(gothenburgJSON), FormatJSON)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(60).Equal(rules.DailyMaxFee))
	assert.Equal(t, time.Hour, rules.WindowDuration)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, rules.ExemptWeekdays)
	assert.Equal(t, []toll.VehicleType{toll.VehicleEmergency, toll.VehicleDiplomat, toll.VehicleMilitary}, rules.ExemptVehicleTypes)
	assert.Equal(t, time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), rules.ValidUntil)
	require.Len(t, rules.Fees, 3)
	assert.Equal(t, toll.Interval{Start: toll.Clock(8, 30), End: toll.Clock(15, 0)}, rules.Fees[0].Intervals[1])
}

func TestDecodeRuleSet_DecimalAmounts(t *testing.T) {
	doc := `{"dailyMaxFee": "60.50", "windowDurationMinutes": 30,
	  "fees": [{"amount": 12.25, "intervals": [{"startTime": "00:00", "endTime": "24:00"}]}]}`

	rules, err := DecodeRuleSet([]byte(doc), FormatJSON)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("60.5").Equal(rules.DailyMaxFee))
	assert.True(t, decimal.RequireFromString("12.25").Equal(rules.Fees[0].Amount))
	assert.Equal(t, 30*time.Minute, rules.WindowDuration)
	assert.True(t, rules.ValidUntil.IsZero())
	assert.Empty(t, rules.ExemptWeekdays)
}

func TestDecodeRuleSet_Rejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"overlap", `{"dailyMaxFee": 60, "windowDurationMinutes": 60, "fees": [
			{"amount": 8, "intervals": [{"startTime": "06:00", "endTime": "07:00"}]},
			{"amount": 13, "intervals": [{"startTime": "06:30", "endTime": "07:30"}]}]}`},
		{"reversed interval", `{"dailyMaxFee": 60, "windowDurationMinutes": 60, "fees": [
			{"amount": 8, "intervals": [{"startTime": "07:00", "endTime": "06:00"}]}]}`},
		{"negative amount", `{"dailyMaxFee": 60, "windowDurationMinutes": 60, "fees": [
			{"amount": -8, "intervals": [{"startTime": "06:00", "endTime": "07:00"}]}]}`},
		{"zero window", `{"dailyMaxFee": 60, "windowDurationMinutes": 0}`},
		{"negative daily max", `{"dailyMaxFee": -1, "windowDurationMinutes": 60}`},
		{"bad clock", `{"dailyMaxFee": 60, "windowDurationMinutes": 60, "fees": [
			{"amount": 8, "intervals": [{"startTime": "6am", "endTime": "07:00"}]}]}`},
		{"bad weekday", `{"dailyMaxFee": 60, "windowDurationMinutes": 60, "exemptDaysOfTheWeek": ["Caturday"]}`},
		{"bad validUntil", `{"dailyMaxFee": 60, "windowDurationMinutes": 60, "validUntil": "soon"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRuleSet([]byte(tc.doc), FormatJSON)
			assert.ErrorIs(t, err, toll.ErrInvalidRuleSet)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{"dailyMaxFee": `), FormatJSON)
	assert.Error(t, err)

	_, err = Decode([]byte("dailyMaxFee: [1, 2]"), FormatYAML)
	assert.Error(t, err)

	_, err = Decode([]byte(`{}`), Format("toml"))
	assert.Error(t, err)
}

func TestEncode_YAMLRoundTrip(t *testing.T) {
	data, err := Encode(FromDomain(toll.DefaultRuleSet()), FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dailyMaxFee: 60\n")

	rules, err := DecodeRuleSet(data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, encoded(t, toll.DefaultRuleSet()), encoded(t, rules))
}

func TestFromDomain_Nil(t *testing.T) {
	assert.Nil(t, FromDomain(nil))

	var doc *Document
	_, err := doc.ToDomain()
	assert.Error(t, err)
}
