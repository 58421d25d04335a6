package helius

import (
	"context"
	"fmt"

	"github.com/brojonat/solboard/service/portfolio"
	"github.com/shopspring/decimal"
)

const (
	assetPageLimit = 1000
	maxAssetPages  = 30

	fungibleInterface = "FungibleToken"
)

type displayOptions struct {
	ShowFungible           bool `json:"showFungible"`
	ShowNativeBalance      bool `json:"showNativeBalance,omitempty"`
	ShowCollectionMetadata bool `json:"showCollectionMetadata,omitempty"`
}

type assetsByOwnerParams struct {
	OwnerAddress   string         `json:"ownerAddress"`
	Page           int            `json:"page"`
	Limit          int            `json:"limit"`
	DisplayOptions displayOptions `json:"displayOptions"`
}

// Asset is a DAS asset as returned by getAssetsByOwner.
type Asset struct {
	ID        string `json:"id"`
	Interface string `json:"interface"`
	Content   struct {
		Metadata struct {
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
		} `json:"metadata"`
		Links struct {
			Image string `json:"image"`
		} `json:"links"`
	} `json:"content"`
	TokenInfo *struct {
		Balance  decimal.Decimal `json:"balance"`
		Decimals int             `json:"decimals"`
	} `json:"token_info"`
	Grouping []struct {
		GroupKey           string `json:"group_key"`
		GroupValue         string `json:"group_value"`
		CollectionMetadata *struct {
			Name string `json:"name"`
		} `json:"collection_metadata"`
	} `json:"grouping"`
}

// AssetsPage is one page of getAssetsByOwner results.
type AssetsPage struct {
	Total         int     `json:"total"`
	Limit         int     `json:"limit"`
	Page          int     `json:"page"`
	Items         []Asset `json:"items"`
	NativeBalance *struct {
		Lamports int64 `json:"lamports"`
	} `json:"nativeBalance"`
}

// GetAssetsByOwner reads the owner's native balance and fungible token
// holdings, paging 1000 assets at a time for at most 30 pages.
func (c *Client) GetAssetsByOwner(ctx context.Context, apiKey, owner string) (portfolio.Holdings, error) {
	var holdings portfolio.Holdings

	page := 1
	for ; ; page++ {
		var result AssetsPage
		params := assetsByOwnerParams{
			OwnerAddress:   owner,
			Page:           page,
			Limit:          assetPageLimit,
			DisplayOptions: displayOptions{ShowFungible: true, ShowNativeBalance: true},
		}
		if err := c.call(ctx, apiKey, "getAssetsByOwner", params, &result); err != nil {
			return portfolio.Holdings{}, fmt.Errorf("fetching assets page %d: %w", page, err)
		}

		if result.NativeBalance != nil && result.NativeBalance.Lamports != 0 {
			holdings.NativeLamports = result.NativeBalance.Lamports
		}
		for _, a := range result.Items {
			if a.Interface != fungibleInterface || a.TokenInfo == nil {
				continue
			}
			holdings.Fungible = append(holdings.Fungible, portfolio.RawAsset{
				ID:         a.ID,
				Symbol:     a.Content.Metadata.Symbol,
				Name:       a.Content.Metadata.Name,
				RawBalance: a.TokenInfo.Balance,
				Decimals:   a.TokenInfo.Decimals,
				Image:      a.Content.Links.Image,
			})
		}

		if len(result.Items) < assetPageLimit || page >= maxAssetPages {
			break
		}
	}

	c.metrics.RecordAssetPages(page)
	c.logger.DebugContext(ctx, "fetched holdings",
		"owner", owner,
		"pages", page,
		"fungible", len(holdings.Fungible),
	)
	return holdings, nil
}

// GetNFTs returns the first page of the owner's non-fungible assets that
// have an image, with collection names resolved when grouped.
func (c *Client) GetNFTs(ctx context.Context, apiKey, owner string) ([]portfolio.NFT, error) {
	var result AssetsPage
	params := assetsByOwnerParams{
		OwnerAddress:   owner,
		Page:           1,
		Limit:          assetPageLimit,
		DisplayOptions: displayOptions{ShowFungible: false, ShowCollectionMetadata: true},
	}
	if err := c.call(ctx, apiKey, "getAssetsByOwner", params, &result); err != nil {
		return nil, fmt.Errorf("fetching NFTs: %w", err)
	}

	nfts := make([]portfolio.NFT, 0, len(result.Items))
	for _, a := range result.Items {
		nfts = append(nfts, portfolio.NFT{
			ID:         a.ID,
			Name:       a.Content.Metadata.Name,
			Symbol:     a.Content.Metadata.Symbol,
			Image:      a.Content.Links.Image,
			Collection: collectionName(a),
		})
	}
	return portfolio.NormalizeNFTs(nfts), nil
}

func collectionName(a Asset) string {
	for _, g := range a.Grouping {
		if g.GroupKey != "collection" {
			continue
		}
		if g.CollectionMetadata != nil && g.CollectionMetadata.Name != "" {
			return g.CollectionMetadata.Name
		}
		return g.GroupValue
	}
	return ""
}
