package market

import (
	"fmt"

	"github.com/brojonat/nftmarket/service/solana"
)

var rankAvatars = []string{"🥇", "🥈", "🥉"}

// RankAvatar returns the glyph of the 0-based leaderboard rank.
func RankAvatar(rank int) string {
	if rank >= 0 && rank < len(rankAvatars) {
		return rankAvatars[rank]
	}
	return "🏅"
}

// FormatAddress shortens an address to "abcd...wxyz". Empty addresses render as "Unknown".
func FormatAddress(address string) string {
	if address == "" || address == "Unknown" {
		return "Unknown"
	}
	if len(address) <= 8 {
		return address
	}
	return address[:4] + "..." + address[len(address)-4:]
}

// ActivityIcon returns the glyph of an activity kind.
func ActivityIcon(kind solana.ActivityKind) string {
	switch kind {
	case solana.KindSale:
		return "💰"
	case solana.KindList:
		return "📋"
	case solana.KindMint:
		return "🔨"
	case solana.KindCancel:
		return "❌"
	case solana.KindTransfer:
		return "🔄"
	default:
		return "📝"
	}
}

// Describe returns a one-line headline for an activity.
func Describe(a Activity) string {
	switch a.Kind {
	case solana.KindSale:
		return a.NFTName + " sold"
	case solana.KindList:
		return a.NFTName + " listed"
	case solana.KindMint:
		return a.NFTName + " minted"
	case solana.KindCancel:
		return "Listing of " + a.NFTName + " canceled"
	case solana.KindTransfer:
		return a.NFTName + " transferred"
	default:
		return "Action on " + a.NFTName
	}
}

// Details returns the secondary line for an activity: price, parties and age.
func Details(a Activity) string {
	switch a.Kind {
	case solana.KindSale, solana.KindList:
		if a.Price != nil {
			return fmt.Sprintf("%s SOL • %s", a.Price.String(), a.TimeAgo)
		}
		return a.TimeAgo
	case solana.KindMint, solana.KindCancel:
		return fmt.Sprintf("by %s • %s", FormatAddress(a.Actor), a.TimeAgo)
	case solana.KindTransfer:
		target := "?"
		if a.Target != "" {
			target = FormatAddress(a.Target)
		}
		return fmt.Sprintf("%s → %s • %s", FormatAddress(a.Actor), target, a.TimeAgo)
	default:
		return a.TimeAgo
	}
}
