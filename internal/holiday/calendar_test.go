package holiday

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) civil.Date {
	return civil.Date{Year: year, Month: month, Day: day}
}

func TestSweden(t *testing.T) {
	sweden := NewSweden()

	for _, d := range []civil.Date{
		date(2025, time.January, 1),
		date(2025, time.April, 18),
		date(2025, time.June, 20),
		date(2025, time.December, 24),
		date(2025, time.December, 25),
		date(2025, time.December, 31),
	} {
		assert.True(t, sweden.IsPublicHoliday(d), d.String())
	}

	for _, d := range []civil.Date{
		date(2025, time.June, 19),
		date(2025, time.December, 19),
		date(2025, time.December, 22),
	} {
		assert.False(t, sweden.IsPublicHoliday(d), d.String())
	}
}

func TestDatesAndUnion(t *testing.T) {
	dates, err := ParseDates("2025-12-19, 2026-01-02,")
	require.NoError(t, err)
	assert.Len(t, dates, 2)
	assert.True(t, dates.IsPublicHoliday(date(2025, time.December, 19)))

	_, err = ParseDates("2025-13-01")
	assert.Error(t, err)

	union := Union{None{}, dates, nil}
	assert.True(t, union.IsPublicHoliday(date(2026, time.January, 2)))
	assert.False(t, union.IsPublicHoliday(date(2026, time.January, 3)))
}

func TestByName(t *testing.T) {
	c, err := ByName("SE")
	require.NoError(t, err)
	assert.IsType(t, &Sweden{}, c)

	c, err = ByName("none")
	require.NoError(t, err)
	assert.False(t, c.IsPublicHoliday(date(2025, time.December, 25)))

	_, err = ByName("atlantis")
	assert.Error(t, err)
}
