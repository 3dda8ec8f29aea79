package solana

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindFromLogs(t *testing.T) {
	tests := []struct {
		name string
		logs string
		want ActivityKind
	}{
		{name: "mint to", logs: "Program log: Instruction: MintTo", want: KindMint},
		{name: "initialize mint", logs: "Program log: Instruction: InitializeMint2", want: KindMint},
		{name: "list snake case", logs: "Program log: list_nft called", want: KindList},
		{name: "list anchor", logs: "Program log: Instruction: ListNft", want: KindList},
		{name: "buy", logs: "Program log: Instruction: BuyNft", want: KindSale},
		{name: "cancel", logs: "Program log: Instruction: CancelListing", want: KindCancel},
		{name: "plain transfer", logs: "Program log: Instruction: Transfer", want: KindTransfer},
		{name: "checked transfer is not a plain transfer", logs: "Program log: Instruction: TransferChecked", want: KindUnknown},
		{name: "nothing recognizable", logs: "Program log: Instruction: UpdateListing", want: KindUnknown},
		{name: "mint wins over list", logs: "Program log: Instruction: ListNft Program log: Instruction: MintTo", want: KindMint},
		{name: "list wins over sale", logs: "list_nft buy_nft", want: KindList},
		{name: "sale wins over transfer", logs: "Instruction: BuyNft Instruction: Transfer", want: KindSale},
		{name: "cancel wins over transfer", logs: "Instruction: CancelListing Instruction: Transfer", want: KindCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindFromLogs(tt.logs))
		})
	}
}

func TestClassifyActivity(t *testing.T) {
	t.Run("list with logged price", func(t *testing.T) {
		tx := &TransactionRecord{
			LogMessages: []string{
				"Program log: Instruction: ListNft",
				"Program log: Listing NFT for price: 2500000000 lamports",
			},
			AccountKeys:  []string{"seller", "listing"},
			PreBalances:  []uint64{10_000_000_000, 0},
			PostBalances: []uint64{9_997_000_000, 3_000_000},
		}

		act := ClassifyActivity(tx)

		assert.Equal(t, KindList, act.Kind)
		assert.Equal(t, "seller", act.Actor)
		assert.Empty(t, act.Target)
		require.NotNil(t, act.Price)
		assert.True(t, decimal.RequireFromString("2.5").Equal(*act.Price))
	})

	t.Run("sale falls back to largest native loss", func(t *testing.T) {
		tx := &TransactionRecord{
			LogMessages:  []string{"Program log: Instruction: BuyNft", "Program log: Buy NFT data: Price=3000000000"},
			AccountKeys:  []string{"buyer", "seller", "marketplace"},
			PreBalances:  []uint64{10_000_000_000, 1_000_000_000, 0},
			PostBalances: []uint64{6_999_990_000, 3_925_000_000, 75_000_000},
		}

		act := ClassifyActivity(tx)

		assert.Equal(t, KindSale, act.Kind)
		assert.Equal(t, "buyer", act.Actor)
		assert.Equal(t, "seller", act.Target)
		require.NotNil(t, act.Price)
		assert.True(t, decimal.RequireFromString("3.00001").Equal(*act.Price))
	})

	t.Run("sale without any price signal has no price", func(t *testing.T) {
		tx := &TransactionRecord{
			LogMessages: []string{"buy_nft"},
			AccountKeys: []string{"buyer", "seller"},
		}

		act := ClassifyActivity(tx)

		assert.Equal(t, KindSale, act.Kind)
		assert.Nil(t, act.Price)
	})

	t.Run("transfer targets the second account", func(t *testing.T) {
		tx := &TransactionRecord{
			LogMessages: []string{"Program log: Instruction: Transfer"},
			AccountKeys: []string{"from", "to"},
		}

		act := ClassifyActivity(tx)

		assert.Equal(t, KindTransfer, act.Kind)
		assert.Equal(t, "from", act.Actor)
		assert.Equal(t, "to", act.Target)
		assert.Nil(t, act.Price)
	})

	t.Run("mint carries no price", func(t *testing.T) {
		tx := &TransactionRecord{
			LogMessages:  []string{"Program log: Instruction: MintTo"},
			AccountKeys:  []string{"creator", "mint"},
			PreBalances:  []uint64{1_000_000_000, 0},
			PostBalances: []uint64{985_000_000, 1_461_600},
		}

		act := ClassifyActivity(tx)

		assert.Equal(t, KindMint, act.Kind)
		assert.Empty(t, act.Target)
		assert.Nil(t, act.Price)
	})

	t.Run("missing logs are not classifiable", func(t *testing.T) {
		act := ClassifyActivity(&TransactionRecord{AccountKeys: []string{"a"}})
		assert.Equal(t, KindUnknown, act.Kind)
	})

	t.Run("missing account keys are not classifiable", func(t *testing.T) {
		act := ClassifyActivity(&TransactionRecord{LogMessages: []string{"MintTo"}})
		assert.Equal(t, KindUnknown, act.Kind)
	})

	t.Run("nil record", func(t *testing.T) {
		assert.Equal(t, KindUnknown, ClassifyActivity(nil).Kind)
	})

	t.Run("zero logged price falls back to largest native loss", func(t *testing.T) {
		tx := &TransactionRecord{
			LogMessages:  []string{"Program log: buy_nft", "Program log: price: 0"},
			AccountKeys:  []string{"buyer", "seller"},
			PreBalances:  []uint64{5_000_000_000, 0},
			PostBalances: []uint64{3_000_000_000, 2_000_000_000},
		}

		price, ok := ExtractPrice(tx)

		require.True(t, ok)
		assert.True(t, decimal.NewFromInt(2).Equal(price))
	})

	t.Run("logged price above max int64 stays positive", func(t *testing.T) {
		tx := &TransactionRecord{
			LogMessages: []string{"Program log: list_nft", "Program log: Listing NFT for price: 10000000000000000000 lamports"},
			AccountKeys: []string{"seller"},
		}

		act := ClassifyActivity(tx)

		require.NotNil(t, act.Price)
		assert.True(t, act.Price.IsPositive())
		assert.True(t, decimal.RequireFromString("10000000000").Equal(*act.Price))
	})
}

func TestLoggedPrice(t *testing.T) {
	lamports, ok := LoggedPrice("Program log: Listing NFT for price: 1500000000 lamports")
	require.True(t, ok)
	assert.Equal(t, uint64(1_500_000_000), lamports)

	_, ok = LoggedPrice("Program log: Buy NFT data: Price=1500000000")
	assert.False(t, ok)
}

func TestElapsedBucket(t *testing.T) {
	tests := []struct {
		minutes   int
		wantValue int
		wantUnit  string
	}{
		{minutes: 0, wantValue: 0, wantUnit: "m"},
		{minutes: 59, wantValue: 59, wantUnit: "m"},
		{minutes: 60, wantValue: 1, wantUnit: "h"},
		{minutes: 119, wantValue: 1, wantUnit: "h"},
		{minutes: 1439, wantValue: 23, wantUnit: "h"},
		{minutes: 1440, wantValue: 1, wantUnit: "d"},
		{minutes: 4320, wantValue: 3, wantUnit: "d"},
	}

	for _, tt := range tests {
		v, unit := ElapsedBucket(tt.minutes)
		assert.Equal(t, tt.wantValue, v, "minutes=%d", tt.minutes)
		assert.Equal(t, tt.wantUnit, unit, "minutes=%d", tt.minutes)
	}
}

func TestFormatElapsed(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "59m ago", FormatElapsed(now, now.Add(-59*time.Minute-30*time.Second)))
	assert.Equal(t, "1h ago", FormatElapsed(now, now.Add(-60*time.Minute)))
	assert.Equal(t, "2h ago", FormatElapsed(now, now.Add(-2*time.Hour)))
	assert.Equal(t, "1d ago", FormatElapsed(now, now.Add(-24*time.Hour)))
	assert.Equal(t, "0m ago", FormatElapsed(now, now.Add(time.Minute)), "future times clamp to zero")
}

func TestIsSale(t *testing.T) {
	const mint = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	paid := func(logs ...string) *TransactionRecord {
		return &TransactionRecord{
			LogMessages:  logs,
			AccountKeys:  []string{"buyer", "seller"},
			PreBalances:  []uint64{3_000_000_000, 0},
			PostBalances: []uint64{1_000_000_000, 2_000_000_000},
		}
	}

	tests := []struct {
		name string
		tx   *TransactionRecord
		want bool
	}{
		{name: "buy with payment", tx: paid("Program log: Instruction: BuyNft"), want: true},
		{name: "transfer mentioning mint with payment", tx: paid("Program log: Transfer " + mint), want: true},
		{name: "transfer of another mint", tx: paid("Program log: Transfer someOtherMint"), want: false},
		{name: "buy without payment", tx: &TransactionRecord{
			LogMessages:  []string{"buy_nft"},
			PreBalances:  []uint64{1_000_000_000},
			PostBalances: []uint64{999_995_000},
		}, want: false},
		{name: "loss exactly at threshold", tx: &TransactionRecord{
			LogMessages:  []string{"buy_nft"},
			PreBalances:  []uint64{2_000_000},
			PostBalances: []uint64{1_000_000},
		}, want: false},
		{name: "no logs", tx: &TransactionRecord{PreBalances: []uint64{5_000_000_000}, PostBalances: []uint64{0}}, want: false},
		{name: "nil", tx: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSale(tt.tx, mint))
		})
	}
}
