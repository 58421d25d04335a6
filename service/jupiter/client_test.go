package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/brojonat/solboard/service/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("mint%03d", i)
	}
	return ids
}

// priceServer quotes every requested id at 1.5 unless the chunk contains failID.
func priceServer(t *testing.T, failID string, chunks *[][]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		mu.Lock()
		*chunks = append(*chunks, ids)
		mu.Unlock()

		for _, id := range ids {
			if id == failID {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
		}

		out := map[string]any{}
		for _, id := range ids {
			out[id] = map[string]any{"usdPrice": 1.5, "priceChange24h": -2.0}
		}
		json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPrices_ChunksAtFifty(t *testing.T) {
	var chunks [][]string
	srv := priceServer(t, "", &chunks)
	client := NewClient(srv.URL, nil, nil, testLogger())

	quotes := client.FetchPrices(context.Background(), makeIDs(120))

	assert.Len(t, quotes, 120)
	require.Len(t, chunks, 3)
	sizes := []int{len(chunks[0]), len(chunks[1]), len(chunks[2])}
	assert.ElementsMatch(t, []int{50, 50, 20}, sizes)
	assert.Equal(t, portfolio.PriceQuote{USDPrice: 1.5, PriceChange24h: -2}, quotes["mint007"])
}

func TestFetchPrices_FailedChunkIsIsolated(t *testing.T) {
	var chunks [][]string
	ids := makeIDs(100)
	// mint010 lives in the first chunk; the second chunk succeeds.
	srv := priceServer(t, "mint010", &chunks)
	client := NewClient(srv.URL, nil, nil, testLogger())

	quotes := client.FetchPrices(context.Background(), ids)

	assert.Len(t, quotes, 50)
	for _, id := range ids[:50] {
		assert.NotContains(t, quotes, id)
	}
	for _, id := range ids[50:] {
		assert.Contains(t, quotes, id)
	}
}

func TestFetchPrices_NullEntriesAndMissingChange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"known":{"usdPrice":2.25},"unknown":null}`))
	}))
	defer srv.Close()

	quotes := NewClient(srv.URL, nil, nil, testLogger()).FetchPrices(context.Background(), []string{"known", "unknown"})

	require.Len(t, quotes, 1)
	assert.Equal(t, portfolio.PriceQuote{USDPrice: 2.25}, quotes["known"])
}

func TestFetchPrices_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	quotes := NewClient(srv.URL, nil, nil, testLogger()).FetchPrices(context.Background(), []string{"a"})
	assert.Empty(t, quotes)
}

func TestFetchPrices_NoIDs(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", nil, nil, testLogger())
	assert.Empty(t, client.FetchPrices(context.Background(), nil))
}
