// Package indexer implements an HTTP client for the external block
// explorer / indexer service that the SPV verifier and blockchain monitor
// depend on for chain data.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Fantasim/bsvbank/internal/bankerr"
	"github.com/Fantasim/bsvbank/internal/config"
)

// Client talks to a single indexer instance over the contract described in
// the external interfaces section: base path "<indexer>/v1/bsv/<network>".
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *circuitBreaker
	limiter    *rateLimiter
}

// New creates an indexer client for the given base URL and network path
// segment ("main" or "test").
func New(baseURL, networkPath string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.IndexerRequestTimeout}
	}

	full := fmt.Sprintf("%s/v1/bsv/%s", trimTrailingSlash(baseURL), networkPath)

	slog.Info("indexer client created", "baseURL", full)

	return &Client{
		httpClient: httpClient,
		baseURL:    full,
		breaker:    newCircuitBreaker(config.CircuitBreakerThreshold, config.CircuitBreakerCooldown),
		limiter:    newRateLimiter(config.DefaultIndexerRateRPS),
	}
}

func trimTrailingSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}

// do performs a single HTTP round trip through the rate limiter and circuit
// breaker, decoding a JSON response body into out (skipped if out is nil).
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if !c.breaker.Allow() {
		return bankerr.IndexerUnreachable(fmt.Errorf("circuit breaker open for %s", c.baseURL))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return bankerr.IndexerUnreachable(err)
	}

	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return bankerr.IndexerUnreachable(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("indexer request", "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return bankerr.IndexerUnreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.breaker.RecordFailure()
		wait := parseRetryAfter(resp.Header)
		slog.Warn("indexer rate limited", "url", url, "retryAfter", wait)
		return bankerr.IndexerStatus(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.breaker.RecordFailure()
		slog.Warn("indexer non-2xx response", "url", url, "status", resp.StatusCode)
		return bankerr.IndexerStatus(resp.StatusCode)
	}

	c.breaker.RecordSuccess()

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return bankerr.IndexerMalformed(err)
	}

	return nil
}

// TxInfo mirrors the indexer's /tx/{txid} response.
type TxInfo struct {
	Txid          string  `json:"txid"`
	Confirmations *uint32 `json:"confirmations,omitempty"`
	BlockHash     *string `json:"blockhash,omitempty"`
	BlockHeight   *int32  `json:"blockheight,omitempty"`
	BlockTime     *int64  `json:"blocktime,omitempty"`
	Vin           []any   `json:"vin"`
	Vout          []any   `json:"vout"`
	Hex           *string `json:"hex,omitempty"`
}

// FetchTx retrieves a transaction's indexed status.
func (c *Client) FetchTx(ctx context.Context, txid string) (*TxInfo, error) {
	var info TxInfo
	if err := c.do(ctx, http.MethodGet, "/tx/"+txid, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// AddressBalance mirrors the indexer's /address/{a}/balance response.
type AddressBalance struct {
	Confirmed   int64 `json:"confirmed"`
	Unconfirmed int64 `json:"unconfirmed"`
}

// FetchBalance retrieves confirmed/unconfirmed satoshi balances for an address.
func (c *Client) FetchBalance(ctx context.Context, address string) (*AddressBalance, error) {
	var bal AddressBalance
	if err := c.do(ctx, http.MethodGet, "/address/"+address+"/balance", nil, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// UnspentOutput mirrors one element of the indexer's /address/{a}/unspent response.
type UnspentOutput struct {
	TxHash string `json:"tx_hash"`
	TxPos  uint32 `json:"tx_pos"`
	Value  int64  `json:"value"`
	Height *int32 `json:"height,omitempty"`
}

// FetchUnspent retrieves the UTXO set for a watched address.
func (c *Client) FetchUnspent(ctx context.Context, address string) ([]UnspentOutput, error) {
	var utxos []UnspentOutput
	if err := c.do(ctx, http.MethodGet, "/address/"+address+"/unspent", nil, &utxos); err != nil {
		return nil, err
	}
	return utxos, nil
}

// BroadcastTx submits a raw transaction hex string and returns its txid.
func (c *Client) BroadcastTx(ctx context.Context, txHex string) (string, error) {
	body, err := json.Marshal(map[string]string{"txhex": txHex})
	if err != nil {
		return "", bankerr.IndexerMalformed(err)
	}

	var txid string
	if err := c.do(ctx, http.MethodPost, "/tx/raw", body, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

// chainInfoResponse mirrors the indexer's /chain/info response.
type chainInfoResponse struct {
	Blocks        int32   `json:"blocks"`
	BestBlockHash string  `json:"bestblockhash"`
	Difficulty    float64 `json:"difficulty"`
	Chain         string  `json:"chain"`
}

// FetchChainInfo retrieves the indexer's current view of chain tip and difficulty.
func (c *Client) FetchChainInfo(ctx context.Context) (*chainInfoResponse, error) {
	var info chainInfoResponse
	if err := c.do(ctx, http.MethodGet, "/chain/info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
