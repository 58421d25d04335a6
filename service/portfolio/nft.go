package portfolio

import "github.com/samber/lo"

// NormalizeNFTs drops assets without an image and fills display defaults.
func NormalizeNFTs(items []NFT) []NFT {
	return lo.FilterMap(items, func(n NFT, _ int) (NFT, bool) {
		if n.Image == "" {
			return NFT{}, false
		}
		if n.Name == "" {
			n.Name = "Unnamed"
		}
		return n, true
	})
}

// GroupByCollection buckets NFTs by collection name; ungrouped NFTs use "".
func GroupByCollection(items []NFT) map[string][]NFT {
	return lo.GroupBy(items, func(n NFT) string { return n.Collection })
}
