package solana

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ActivityKind labels a classified marketplace transaction.
type ActivityKind string

const (
	KindMint     ActivityKind = "mint"
	KindList     ActivityKind = "list"
	KindSale     ActivityKind = "sale"
	KindCancel   ActivityKind = "cancel"
	KindTransfer ActivityKind = "transfer"
	KindUnknown  ActivityKind = "unknown"
)

// activityRule pairs a log-text predicate with the kind it assigns.
type activityRule struct {
	kind    ActivityKind
	matches func(logText string) bool
}

// activityRules is evaluated in order; the first match wins.
var activityRules = []activityRule{
	{kind: KindMint, matches: containsAny("InitializeMint", "MintTo")},
	{kind: KindList, matches: containsAny("list_nft", "Instruction: ListNft")},
	{kind: KindSale, matches: isBuyLog},
	{kind: KindCancel, matches: containsAny("cancel_listing", "Instruction: CancelListing")},
	{kind: KindTransfer, matches: func(logText string) bool {
		return strings.Contains(logText, "Transfer") && !strings.Contains(logText, "TransferChecked")
	}},
}

// priceMarker matches the "price: <lamports>" line logged by list_nft.
var priceMarker = regexp.MustCompile(`price: (\d+)`)

func containsAny(markers ...string) func(string) bool {
	return func(logText string) bool {
		for _, m := range markers {
			if strings.Contains(logText, m) {
				return true
			}
		}
		return false
	}
}

// KindFromLogs returns the kind of the first rule matching logText.
func KindFromLogs(logText string) ActivityKind {
	for _, rule := range activityRules {
		if rule.matches(logText) {
			return rule.kind
		}
	}
	return KindUnknown
}

// Activity is the classification of one transaction for the activity feed.
type Activity struct {
	Kind   ActivityKind     `json:"kind"`
	Actor  string           `json:"actor"`
	Target string           `json:"target,omitempty"`
	Price  *decimal.Decimal `json:"price,omitempty"` // SOL
}

// ClassifyActivity labels tx and extracts actor, target and price.
// Records without logs or account keys are non-classifiable and come back
// as KindUnknown.
func ClassifyActivity(tx *TransactionRecord) Activity {
	if tx == nil || len(tx.LogMessages) == 0 || len(tx.AccountKeys) == 0 {
		return Activity{Kind: KindUnknown}
	}

	logText := tx.LogText()
	act := Activity{
		Kind:  KindFromLogs(logText),
		Actor: tx.FeePayer(),
	}

	switch act.Kind {
	case KindSale, KindTransfer:
		if len(tx.AccountKeys) > 1 {
			act.Target = tx.AccountKeys[1]
		}
	}

	switch act.Kind {
	case KindList, KindSale:
		if price, ok := ExtractPrice(tx); ok {
			act.Price = &price
		}
	}

	return act
}

// LoggedPrice returns the lamports of the first "price: N" log marker.
func LoggedPrice(logText string) (uint64, bool) {
	m := priceMarker.FindStringSubmatch(logText)
	if m == nil {
		return 0, false
	}
	lamports, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return lamports, true
}

// ExtractPrice returns the price in SOL: the logged price marker first, then
// the largest native loss. Zero or absent on both counts means no price.
func ExtractPrice(tx *TransactionRecord) (decimal.Decimal, bool) {
	if lamports, ok := LoggedPrice(tx.LogText()); ok && lamports > 0 {
		return LamportsToSOL(lamports), true
	}
	// Largest loss approximates the price; it also counts fees and rent.
	if loss := LargestNativeLoss(tx); loss > 0 {
		return LamportsToSOL(loss), true
	}
	return decimal.Decimal{}, false
}

// ElapsedBucket splits an elapsed duration in whole minutes into a display
// value and unit: minutes below 60, hours below 1440, days otherwise.
func ElapsedBucket(minutes int) (int, string) {
	switch {
	case minutes < 60:
		return minutes, "m"
	case minutes < 1440:
		return minutes / 60, "h"
	default:
		return minutes / 1440, "d"
	}
}

// FormatElapsed renders the time between then and now, e.g. "5m ago".
func FormatElapsed(now, then time.Time) string {
	minutes := int(now.Sub(then) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	v, unit := ElapsedBucket(minutes)
	return fmt.Sprintf("%d%s ago", v, unit)
}

// SaleMinLossLamports is the smallest native loss (0.001 SOL) that counts as a payment.
const SaleMinLossLamports = 1_000_000

var isBuyLog = containsAny("buy_nft", "Instruction: BuyNft")

// IsSale reports whether tx looks like a sale of mint: a buy instruction, or
// a transfer mentioning the mint, together with a payment-sized native loss.
func IsSale(tx *TransactionRecord, mint string) bool {
	if tx == nil || len(tx.LogMessages) == 0 {
		return false
	}
	logs := tx.LogText()
	saleLike := isBuyLog(logs) || (strings.Contains(logs, "Transfer") && mint != "" && strings.Contains(logs, mint))
	return saleLike && LargestNativeLoss(tx) > SaleMinLossLamports
}
