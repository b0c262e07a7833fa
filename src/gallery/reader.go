// Package gallery recomputes the connected account's collection from the
// contract's Transfer history. Every token resolves independently: one bad
// token never blanks the listing.
package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	app "vibemint/src/app"
	"vibemint/src/chain"
)

type (
	// Source is the read surface of the token contract.
	Source interface {
		TransfersTo(ctx context.Context, account common.Address) ([]chain.Transfer, error)
		TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
	}

	// Item is one owned token. Metadata is nil when its document could not
	// be resolved; the presentation falls back to a placeholder.
	Item struct {
		TokenID  *big.Int      `json:"tokenId"`
		TokenURI string        `json:"tokenURI"`
		Metadata *app.Metadata `json:"metadata,omitempty"`
	}

	Reader struct {
		source  Source
		gateway string
		client  *http.Client
	}
)

func NewReader(source Source, gateway string, timeout time.Duration) *Reader {
	return &Reader{
		source:  source,
		gateway: gateway,
		client:  &http.Client{Timeout: timeout},
	}
}

// ListOwned returns the account's tokens in event-discovery order. Per-token
// resolutions run concurrently; each writes only its own result slot, so a
// slow or failing token cannot block or corrupt the others.
func (r *Reader) ListOwned(ctx context.Context, account common.Address) ([]Item, error) {
	transfers, err := r.source.TransfersTo(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("can not list transfer events: %w", err)
	}

	slots := make([]*Item, len(transfers))
	var wg sync.WaitGroup
	for i, transfer := range transfers {
		wg.Add(1)
		go func(slot int, transfer chain.Transfer) {
			defer wg.Done()
			tokenURI, err := r.source.TokenURI(ctx, transfer.TokenID)
			if err != nil {
				// Skipped, not surfaced: one malformed token should not
				// blank the whole gallery.
				log.Printf("can not resolve locator of token %s: %v", transfer.TokenID, err)
				return
			}
			slots[slot] = &Item{
				TokenID:  transfer.TokenID,
				TokenURI: tokenURI,
				Metadata: r.fetchMetadata(ctx, tokenURI),
			}
		}(i, transfer)
	}
	wg.Wait()

	items := make([]Item, 0, len(slots))
	for _, item := range slots {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

// fetchMetadata resolves a token locator through the gateway and validates
// the document shape. Any failure degrades to a nil document.
func (r *Reader) fetchMetadata(ctx context.Context, locator string) *app.Metadata {
	url := app.ToGatewayURL(r.gateway, locator)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Printf("can not prepare metadata request for %s: %v", locator, err)
		return nil
	}
	resp, err := r.client.Do(req)
	if err != nil {
		log.Printf("can not fetch metadata %s: %v", locator, err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("metadata fetch %s returned status %d", locator, resp.StatusCode)
		return nil
	}

	var metadata app.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		log.Printf("can not parse metadata %s: %v", locator, err)
		return nil
	}
	if err := metadata.Validate(); err != nil {
		log.Printf("rejecting metadata %s: %v", locator, err)
		return nil
	}
	metadata.Image = app.ToGatewayURL(r.gateway, metadata.Image)
	return &metadata
}
