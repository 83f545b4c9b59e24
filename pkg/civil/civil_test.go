package civil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateUsesZone(t *testing.T) {
	z := MustLoad("America/Sao_Paulo")

	d, err := z.ParseDate("2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10T00:00:00-03:00", d.Format(time.RFC3339))

	_, err = z.ParseDate("10/06/2025")
	assert.Error(t, err)
}

func TestParseTimestampVariants(t *testing.T) {
	z := MustLoad("America/Sao_Paulo")
	date, err := z.ParseDate("2025-06-10")
	require.NoError(t, err)

	cases := map[string]string{
		"08:03":                     "2025-06-10T08:03:00-03:00",
		"8:03:30":                   "2025-06-10T08:03:30-03:00",
		"25:10":                     "2025-06-11T01:10:00-03:00",
		"2025-06-10 08:03:00":       "2025-06-10T08:03:00-03:00",
		"2025-06-10T11:03:00Z":      "2025-06-10T08:03:00-03:00",
		"2025-06-10T08:03:00-03:00": "2025-06-10T08:03:00-03:00",
	}
	for raw, want := range cases {
		got, err := z.ParseTimestamp(date, raw)
		require.NoError(t, err, raw)
		require.NotNil(t, got, raw)
		assert.Equal(t, want, got.Format(time.RFC3339), raw)
	}

	empty, err := z.ParseTimestamp(date, "  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = z.ParseTimestamp(date, "tomorrow")
	assert.Error(t, err)
}

func TestParseTimestampKeepsWallClockAcrossDST(t *testing.T) {
	z := MustLoad("America/New_York")
	date, err := z.ParseDate("2025-03-09")
	require.NoError(t, err)

	got, err := z.ParseTimestamp(date, "08:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09T08:00:00-04:00", got.Format(time.RFC3339))

	fall, err := z.ParseDate("2025-11-02")
	require.NoError(t, err)
	got, err = z.ParseTimestamp(fall, "08:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-02T08:00:00-05:00", got.Format(time.RFC3339))
}

func TestValidClock(t *testing.T) {
	assert.True(t, ValidClock("07:45"))
	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("24:00"))
	assert.False(t, ValidClock("7:45"))
	assert.False(t, ValidClock("07h45"))
}

func TestFormatClock(t *testing.T) {
	z := MustLoad("America/Sao_Paulo")
	ts := time.Date(2025, 6, 10, 11, 3, 0, 0, time.UTC)
	assert.Equal(t, "08:03", z.FormatClock(&ts))
	assert.Equal(t, "", z.FormatClock(nil))
}

func TestStorageDateKeepsCalendarDay(t *testing.T) {
	z := MustLoad("Asia/Tokyo")
	d, err := z.ParseDate("2025-06-10")
	require.NoError(t, err)

	stored := StorageDate(d)
	assert.Equal(t, "2025-06-10T00:00:00Z", stored.Format(time.RFC3339))
	assert.Equal(t, "2025-06-10", z.FormatDate(stored))

	ts, err := z.ParseTimestamp(stored, "08:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-10T08:00:00+09:00", ts.Format(time.RFC3339))
}
