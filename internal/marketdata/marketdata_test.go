package marketdata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-trading/nexus-backtest/internal/series"
)

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func TestReadCSV_DefaultColumns(t *testing.T) {
	in := "date,open,close\n2024-03-01,99,100.5\n2024-03-04,100,101.25\n2024-03-05,101,99.75\n"

	s, err := ReadCSV(strings.NewReader(in), CSVOptions{})
	require.NoError(t, err)

	assert.Equal(t, []float64{100.5, 101.25, 99.75}, s.Values)
	assert.Equal(t, []time.Time{day(1), day(4), day(5)}, s.Index)
}

func TestReadCSV_CustomColumnsAndOrder(t *testing.T) {
	in := "Timestamp,Adj Close\n03/05/2024,12\n03/01/2024,10\n03/04/2024,11\n"

	s, err := ReadCSV(strings.NewReader(in), CSVOptions{
		DateColumn:  "timestamp",
		CloseColumn: "adj close",
		DateLayout:  "01/02/2006",
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 11, 12}, s.Values, "rows are sorted by date")
	assert.True(t, s.Index[0].Equal(day(1)))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", series.ErrEmpty},
		{"header only", "date,close\n", series.ErrEmpty},
		{"missing column", "date,price\n2024-03-01,1\n", ErrMissingColumn},
		{"zero price", "date,close\n2024-03-01,0\n", series.ErrNonPositivePrice},
		{"negative price", "date,close\n2024-03-01,-3\n", series.ErrNonPositivePrice},
		{"duplicate date", "date,close\n2024-03-01,1\n2024-03-01,2\n", series.ErrUnordered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in), DefaultCSVOptions())
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := ReadCSV(strings.NewReader("date,close\nyesterday,1\n"), DefaultCSVOptions())
	assert.ErrorContains(t, err, "parse date")
	_, err = ReadCSV(strings.NewReader("date,close\n2024-03-01,abc\n"), DefaultCSVOptions())
	assert.ErrorContains(t, err, "parse close")
}

func TestParquet_RoundTrip(t *testing.T) {
	want, err := series.New([]time.Time{day(1), day(4), day(5)}, []float64{100, 101.5, 99})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "px", "spy.parquet")
	require.NoError(t, WriteParquet(path, want))

	got, err := LoadFile(path, CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, want.Values, got.Values)
	require.Len(t, got.Index, 3)
	for i := range want.Index {
		assert.True(t, want.Index[i].Equal(got.Index[i]), "index %d", i)
	}
}

func TestWriteParquet_RequiresIndex(t *testing.T) {
	err := WriteParquet(filepath.Join(t.TempDir(), "x.parquet"), series.FromValues(1, 2))
	assert.ErrorIs(t, err, series.ErrLengthMismatch)
}

func TestLoadFile_Dispatch(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "prices.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("date,close\n2024-03-01,5\n"), 0o644))
	s, err := LoadFile(csvPath, DefaultCSVOptions())
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, s.Values)

	_, err = LoadFile(filepath.Join(dir, "prices.json"), DefaultCSVOptions())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadFile(filepath.Join(dir, "missing.csv"), DefaultCSVOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
