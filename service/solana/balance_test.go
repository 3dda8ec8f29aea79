package solana

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffNativeBalances(t *testing.T) {
	t.Run("empty arrays yield empty result", func(t *testing.T) {
		tx := &TransactionRecord{}
		deltas := DiffNativeBalances(tx)
		require.NotNil(t, deltas)
		assert.Empty(t, deltas)
	})

	t.Run("missing post balances yield empty result", func(t *testing.T) {
		tx := &TransactionRecord{PreBalances: []uint64{10, 20}}
		assert.Empty(t, DiffNativeBalances(tx))
	})

	t.Run("nil record yields empty result", func(t *testing.T) {
		assert.Empty(t, DiffNativeBalances(nil))
	})

	t.Run("computes post minus pre per index", func(t *testing.T) {
		tx := &TransactionRecord{
			PreBalances:  []uint64{5_000_000_000, 1_000_000_000, 42},
			PostBalances: []uint64{3_999_995_000, 2_000_000_000, 42},
		}

		deltas := DiffNativeBalances(tx)

		require.Len(t, deltas, 3)
		assert.Equal(t, NativeDelta{AccountIndex: 0, Delta: -1_000_005_000}, deltas[0])
		assert.Equal(t, NativeDelta{AccountIndex: 1, Delta: 1_000_000_000}, deltas[1])
		assert.Equal(t, NativeDelta{AccountIndex: 2, Delta: 0}, deltas[2])
	})

	t.Run("mismatched lengths use the shorter array", func(t *testing.T) {
		tx := &TransactionRecord{
			PreBalances:  []uint64{10, 20, 30},
			PostBalances: []uint64{5, 25},
		}
		assert.Len(t, DiffNativeBalances(tx), 2)
	})
}

func TestDiffTokenBalances(t *testing.T) {
	tx := &TransactionRecord{
		PreTokenBalances: []TokenHolding{
			{Mint: "mintA", Owner: "seller", Amount: 1},
			{Mint: "mintB", Owner: "other", Amount: 100},
		},
		PostTokenBalances: []TokenHolding{
			{Mint: "mintA", Owner: "seller", Amount: 0},
			{Mint: "mintA", Owner: "buyer", Amount: 1},
			{Mint: "mintB", Owner: "other", Amount: 100},
		},
	}

	diff := DiffTokenBalances(tx, "mintA")

	assert.Equal(t, []Holder{{Owner: "seller", Amount: 1}}, diff.PreHolders)
	assert.Equal(t, []Holder{{Owner: "seller", Amount: 0}, {Owner: "buyer", Amount: 1}}, diff.PostHolders)

	none := DiffTokenBalances(tx, "mintC")
	assert.Empty(t, none.PreHolders)
	assert.Empty(t, none.PostHolders)
}

func TestLargestNativeLoss(t *testing.T) {
	tests := []struct {
		name string
		pre  []uint64
		post []uint64
		want uint64
	}{
		{name: "no balances", want: 0},
		{name: "only gains", pre: []uint64{1, 2}, post: []uint64{3, 4}, want: 0},
		{name: "single loss", pre: []uint64{2_000_000_000}, post: []uint64{1_500_000_000}, want: 500_000_000},
		{name: "largest of several", pre: []uint64{100, 5_000, 70}, post: []uint64{90, 1_000, 80}, want: 4_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &TransactionRecord{PreBalances: tt.pre, PostBalances: tt.post}
			assert.Equal(t, tt.want, LargestNativeLoss(tx))
		})
	}
}

func TestLamportConversions(t *testing.T) {
	assert.True(t, decimal.NewFromInt(1).Equal(LamportsToSOL(LamportsPerSOL)))
	assert.True(t, decimal.RequireFromString("12.5").Equal(LamportsToSOL(12_500_000_000)))
	assert.True(t, decimal.RequireFromString("0.000000001").Equal(LamportsToSOL(1)))

	for _, lamports := range []uint64{0, 1, 999, 1_000_000, 123_456_789_012, 5_000_000_000_000, math.MaxUint64} {
		got, ok := SOLToLamports(LamportsToSOL(lamports))
		assert.True(t, ok, "round trip of %d", lamports)
		assert.Equal(t, lamports, got, "round trip of %d", lamports)
	}

	_, ok := SOLToLamports(decimal.NewFromInt(-1))
	assert.False(t, ok, "negative amounts are rejected")
}

func TestLamportConversion_Overflow(t *testing.T) {
	sol := LamportsToSOL(10_000_000_000_000_000_000)
	assert.True(t, sol.IsPositive())
	assert.True(t, decimal.RequireFromString("10000000000").Equal(sol))

	_, ok := SOLToLamports(decimal.RequireFromString("20000000000"))
	assert.False(t, ok, "2e19 lamports does not fit in a u64")

	got, ok := SOLToLamports(decimal.RequireFromString("18446744073.709551615"))
	require.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), got)
}
