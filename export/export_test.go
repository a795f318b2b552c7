package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/chartfeed/model/bar"
)

var sample = []bar.Bar{
	{Time: 1704205800000, Open: 185.1, High: 186, Low: 184.5, Close: 185.64, Volume: 12000},
	{Time: 1704206400000, Open: 185.64, High: 185.9, Low: 185.2, Close: 185.3, Volume: 8000.5},
}

func TestNewSaver(t *testing.T) {
	for _, f := range Formats() {
		s := NewSaver(f)
		require.NotNil(t, s, f)
		assert.Equal(t, f, s.Extension())
	}
	assert.NotNil(t, NewSaver(" CSV "))
	assert.Nil(t, NewSaver("xlsx"))
}

func TestCSVSaver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, CSVSaver{}.Save(sample, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"time,open,high,low,close,volume\n"+
			"1704205800000,185.1,186,184.5,185.64,12000\n"+
			"1704206400000,185.64,185.9,185.2,185.3,8000.5\n",
		string(raw))
}

func TestJSONSaver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.json")
	require.NoError(t, JSONSaver{}.Save(sample, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []bar.Bar
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, sample, got)
}

func TestJSONSaverEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, JSONSaver{}.Save(nil, path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(raw))
}

func TestParquetSaver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.parquet")
	require.NoError(t, ParquetSaver{}.Save(sample, path))

	got, err := parquet.ReadFile[bar.Bar](path)
	require.NoError(t, err)
	assert.Equal(t, sample, got)
}

func TestSaveBadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "bars.csv")
	assert.Error(t, CSVSaver{}.Save(sample, path))
}
