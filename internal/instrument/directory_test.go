package instrument

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qledger/internal/broker"
)

func TestResolveCacheMissFallsThroughToSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	session := broker.NewSimSession()
	session.SeedInstruments(broker.Instrument{Code: "600519.SH", Name: "贵州茅台"})

	dir, err := NewDirectory(path, session, nil)
	require.NoError(t, err)

	assert.Equal(t, "贵州茅台", dir.Resolve("600519.SH"))
	assert.Equal(t, 1, dir.Size())

	// The hit was persisted: a fresh directory with no session still knows
	// the name.
	reloaded, err := NewDirectory(path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "贵州茅台", reloaded.Resolve("600519.SH"))
}

func TestResolveUnknownCodeReturnsCode(t *testing.T) {
	dir, err := NewDirectory(filepath.Join(t.TempDir(), "names.json"), broker.NewSimSession(), nil)
	require.NoError(t, err)
	assert.Equal(t, "000000.SZ", dir.Resolve("000000.SZ"))
	assert.Equal(t, "", dir.Resolve("  "))
}

func TestRefreshAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	session := broker.NewSimSession()
	session.SeedInstruments(
		broker.Instrument{Code: "600519.SH", Name: "贵州茅台"},
		broker.Instrument{Code: "000001.SZ", Name: "平安银行"},
		broker.Instrument{Code: "999999.SH", Name: ""},
	)

	dir, err := NewDirectory(path, session, []string{"SHSZ-A"})
	require.NoError(t, err)

	n, err := dir.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "nameless entries are skipped")
	assert.Equal(t, "平安银行", dir.Resolve("000001.SZ"))
}

func TestNewDirectoryToleratesCorruptCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	dir, err := NewDirectory(path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, dir.Size())
}
