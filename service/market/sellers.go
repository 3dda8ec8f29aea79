package market

import (
	"sort"

	"github.com/brojonat/nftmarket/service/marketplace"
)

// TopSellers ranks sellers of the loaded listings by listing count. No RPC
// calls are made. Ties keep first-appearance order. When no listing has a
// seller the default leaderboard is returned.
func TopSellers(nfts []marketplace.ListedNFT) ([]SellerSummary, Status) {
	index := make(map[string]int)
	var sellers []SellerSummary
	for _, nft := range nfts {
		if nft.Seller == "" {
			continue
		}
		i, ok := index[nft.Seller]
		if !ok {
			i = len(sellers)
			index[nft.Seller] = i
			sellers = append(sellers, SellerSummary{Address: nft.Seller})
		}
		sellers[i].ListedNFTs++
		if nft.Price.IsPositive() {
			sellers[i].Sales++
		}
	}

	if len(sellers) == 0 {
		return DefaultSellers(), Status{Source: SourceDefault}
	}

	sort.SliceStable(sellers, func(i, j int) bool {
		return sellers[i].ListedNFTs > sellers[j].ListedNFTs
	})
	if len(sellers) > topSellers {
		sellers = sellers[:topSellers]
	}
	for i := range sellers {
		sellers[i].Avatar = RankAvatar(i)
	}
	return sellers, Status{Source: SourceChain}
}
