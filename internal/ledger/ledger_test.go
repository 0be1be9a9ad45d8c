package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckRange(t *testing.T) {
	l := New(100)
	assert.NoError(t, l.Check(0))
	assert.NoError(t, l.Check(100))
	assert.ErrorIs(t, l.Check(101), ErrAgencyOutOfRange)
	assert.ErrorIs(t, l.Check(-1), ErrAgencyOutOfRange)
	assert.ErrorIs(t, l.Credit(101, decimal.NewFromInt(1)), ErrAgencyOutOfRange)
}

func TestCreditDebit(t *testing.T) {
	l := New(10)
	require.NoError(t, l.Credit(5, decimal.NewFromInt(300)))
	require.NoError(t, l.Debit(5, decimal.RequireFromString("270")))
	assert.Equal(t, "30.00", l.BalanceOf(5).StringFixed(2))

	// Balances may go negative.
	require.NoError(t, l.Debit(7, decimal.RequireFromString("90")))
	assert.True(t, l.BalanceOf(7).IsNegative())
	assert.True(t, l.BalanceOf(3).IsZero())
}

func TestSnapshotOmitsZeroAndSorts(t *testing.T) {
	l := New(10)
	require.NoError(t, l.Credit(9, decimal.NewFromInt(100)))
	require.NoError(t, l.Credit(2, decimal.RequireFromString("12.5")))
	require.NoError(t, l.Credit(4, decimal.NewFromInt(10)))
	require.NoError(t, l.Debit(4, decimal.NewFromInt(10)))

	path := filepath.Join(t.TempDir(), "facture.txt")
	require.NoError(t, l.WriteSnapshot(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2 12.50\n9 100.00\n", string(data))
}

func TestLoadSnapshot(t *testing.T) {
	l := New(10)
	require.NoError(t, l.Credit(5, decimal.NewFromInt(300)))
	require.NoError(t, l.Debit(3, decimal.RequireFromString("12.5")))
	path := filepath.Join(t.TempDir(), "facture.txt")
	require.NoError(t, l.WriteSnapshot(path))

	loaded, err := Load(path, 10)
	require.NoError(t, err)
	assert.Equal(t, "300.00", loaded.BalanceOf(5).StringFixed(2))
	assert.Equal(t, "-12.50", loaded.BalanceOf(3).StringFixed(2))
	assert.Equal(t, 10, loaded.Max())
}

func TestLoadMissingSnapshot(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "absent.txt"), 10)
	require.NoError(t, err)
	assert.Empty(t, l.Balances())
}

func TestLoadRejectsBadSnapshot(t *testing.T) {
	cases := map[string]string{
		"fields":    "5\n",
		"agency":    "five 1.00\n",
		"amount":    "5 lots\n",
		"duplicate": "5 1.00\n5 2.00\n",
		"range":     "11 1.00\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "facture.txt")
			require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
			_, err := Load(path, 10)
			assert.Error(t, err)
		})
	}
}
