package voucher

import (
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T, codes []string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vouchers.gz")
	f, err := os.Create(path)
	require.NoError(t, err)

	gz := pgzip.NewWriter(f)
	for _, c := range codes {
		_, err := gz.Write([]byte(c + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestPrefilter(t *testing.T) {
	path := writeSnapshot(t, []string{"TET2026", "SINHNHAT", "KHACHQUEN"})

	pf, err := LoadPrefilter(path)
	require.NoError(t, err)

	assert.True(t, pf.MayContain("TET2026"))
	assert.True(t, pf.MayContain("tet2026"), "case-insensitive")
	assert.True(t, pf.MayContain(" sinhnhat "), "whitespace tolerated")
	assert.False(t, pf.MayContain("TYPOCODE"))
}

func TestPrefilterEmptySnapshot(t *testing.T) {
	path := writeSnapshot(t, nil)

	pf, err := LoadPrefilter(path)
	require.NoError(t, err)
	assert.False(t, pf.MayContain("ANY"))
}

func TestPrefilterNilAllowsEverything(t *testing.T) {
	var pf *Prefilter
	assert.True(t, pf.MayContain("ANY"), "no snapshot configured means no local rejection")
}

func TestLoadPrefilterMissingFile(t *testing.T) {
	_, err := LoadPrefilter(filepath.Join(t.TempDir(), "missing.gz"))
	assert.Error(t, err)
}
