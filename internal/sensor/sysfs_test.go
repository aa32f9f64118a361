package sensor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestSysfsPortReads(t *testing.T) {
	dir := t.TempDir()
	port := NewSysfsWithPaths(
		writeFile(t, dir, "temp", "74000\n"),
		writeFile(t, dir, "scaling_cur_freq", "2000000\n"),
		writeFile(t, dir, "scaling_max_freq", "3600000\n"),
	)

	temp, err := port.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 74.0, temp, 1e-9)

	freq, err := port.Frequency()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, freq, 1e-9)

	maxFreq, err := port.MaxFrequency()
	require.NoError(t, err)
	assert.Equal(t, 3600000, maxFreq)
}

func TestSysfsPortWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	maxPath := writeFile(t, dir, "scaling_max_freq", "3600000\n")
	port := NewSysfsWithPaths(
		writeFile(t, dir, "temp", "50000"),
		writeFile(t, dir, "scaling_cur_freq", "1500000"),
		maxPath,
	)

	require.NoError(t, port.SetMaxFrequency(2520000))

	maxFreq, err := port.MaxFrequency()
	require.NoError(t, err)
	assert.Equal(t, 2520000, maxFreq)
}

func TestSysfsPortMissingFile(t *testing.T) {
	dir := t.TempDir()
	port := NewSysfsWithPaths(
		filepath.Join(dir, "missing"),
		filepath.Join(dir, "missing"),
		filepath.Join(dir, "missing"),
	)

	_, err := port.Temperature()
	require.Error(t, err)

	_, err = port.Frequency()
	require.Error(t, err)

	_, err = port.MaxFrequency()
	require.Error(t, err)
}

func TestSysfsPortParseError(t *testing.T) {
	dir := t.TempDir()
	port := NewSysfsWithPaths(
		writeFile(t, dir, "temp", "not a number"),
		writeFile(t, dir, "scaling_cur_freq", "2000000"),
		writeFile(t, dir, "scaling_max_freq", "3600000"),
	)

	_, err := port.Temperature()
	require.Error(t, err)
}

func TestProcStatUtilization(t *testing.T) {
	dir := t.TempDir()
	statPath := writeFile(t, dir, "stat",
		"cpu  100 0 100 700 100 0 0 0\ncpu0 100 0 100 700 100 0 0 0\n")

	u := NewProcStatUtilization()
	u.path = statPath

	// First sample has no delta to work from
	assert.InDelta(t, 0.7, u.Estimate(), 1e-9)

	// +800 jiffies of which 200 idle+iowait → 75% busy
	writeFile(t, dir, "stat",
		"cpu  500 0 300 850 150 0 0 0\ncpu0 500 0 300 850 150 0 0 0\n")
	assert.InDelta(t, 0.75, u.Estimate(), 1e-9)

	// Unreadable stat keeps the last estimate
	require.NoError(t, os.Remove(statPath))
	assert.InDelta(t, 0.75, u.Estimate(), 1e-9)
}
