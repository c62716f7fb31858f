// Package tron implements the gateway interfaces against the full-node
// HTTP API shared by the main chain and the side chain.
package tron

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/time/rate"

	"github.com/GPTx-global/sun-network-oracle/oracle/log"
	"github.com/GPTx-global/sun-network-oracle/oracle/retry"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

const maxResponseSize = 10 * 1024 * 1024

var (
	once       sync.Once
	httpClient *http.Client
)

// nodeClient returns the HTTP client shared by every node connection
func nodeClient() *http.Client {
	once.Do(func() {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	})

	return httpClient
}

// ClientConfig describes one full node endpoint
type ClientConfig struct {
	Endpoint          string
	RequestsPerSecond float64
	Burst             int
	Retry             *retry.Config
}

// Client talks to a full node's /wallet HTTP API
type Client struct {
	endpoint string
	limiter  *rate.Limiter
	breaker  *retry.CircuitBreaker
	retry    *retry.Config
	logger   log.Logger
}

func NewClient(cfg ClientConfig, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.NetworkConfig()
	}

	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  retry.NewCircuitBreaker(5, time.Minute),
		retry:    retryCfg,
		logger:   logger.With("module", "tron", "endpoint", cfg.Endpoint),
	}
}

// TriggerConstant calls a view function and returns the first ABI encoded
// result.
func (c *Client) TriggerConstant(ctx context.Context, owner, contract, selector string, params []byte) ([]byte, error) {
	body, err := callBody(owner, contract, selector, params)
	if err != nil {
		return nil, err
	}

	res, err := c.post(ctx, "/wallet/triggerconstantcontract", body)
	if err != nil {
		return nil, err
	}

	if err := checkResult(res); err != nil {
		return nil, fmt.Errorf("%s: %w", selector, err)
	}

	out := gjson.GetBytes(res, "constant_result.0")
	if !out.Exists() {
		return nil, fmt.Errorf("%s: empty constant_result", selector)
	}

	bz, err := hex.DecodeString(out.String())
	if err != nil {
		return nil, fmt.Errorf("%s: malformed constant_result: %w", selector, err)
	}

	return bz, nil
}

// TriggerSmart asks the node to build an unsigned contract call transaction
// and returns its JSON.
func (c *Client) TriggerSmart(ctx context.Context, owner, contract, selector string, params []byte, feeLimit int64) ([]byte, error) {
	body, err := callBody(owner, contract, selector, params)
	if err != nil {
		return nil, err
	}

	if body, err = sjson.SetBytes(body, "fee_limit", feeLimit); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "call_value", 0); err != nil {
		return nil, err
	}

	res, err := c.post(ctx, "/wallet/triggersmartcontract", body)
	if err != nil {
		return nil, err
	}

	if err := checkResult(res); err != nil {
		return nil, fmt.Errorf("%s: %w", selector, err)
	}

	tx := gjson.GetBytes(res, "transaction")
	if !tx.IsObject() || tx.Get("txID").String() == "" {
		return nil, fmt.Errorf("%s: node returned no transaction", selector)
	}

	return []byte(tx.Raw), nil
}

// Broadcast submits a signed transaction JSON
func (c *Client) Broadcast(ctx context.Context, signed []byte) error {
	res, err := c.post(ctx, "/wallet/broadcasttransaction", signed)
	if err != nil {
		return err
	}

	if gjson.GetBytes(res, "result").Bool() {
		return nil
	}

	code := gjson.GetBytes(res, "code").String()
	msg := decodeMessage(gjson.GetBytes(res, "message").String())

	switch code {
	case "DUP_TRANSACTION_ERROR":
		c.logger.Info("transaction already known to node", "txid", gjson.GetBytes(signed, "txID").String())
		return nil
	case "SERVER_BUSY", "NOT_ENOUGH_EFFECTIVE_CONNECTION", "NO_CONNECTION", "BLOCK_UNSOLIDIFIED":
		return types.ErrGateway.Wrapf("broadcast rejected: %s %s", code, msg)
	default:
		return fmt.Errorf("broadcast rejected: %s %s", code, msg)
	}
}

// NowBlock returns the latest block number
func (c *Client) NowBlock(ctx context.Context) (int64, error) {
	res, err := c.post(ctx, "/wallet/getnowblock", []byte("{}"))
	if err != nil {
		return 0, err
	}

	number := gjson.GetBytes(res, "block_header.raw_data.number")
	if !number.Exists() {
		return 0, fmt.Errorf("malformed block response")
	}

	return number.Int(), nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	var res []byte

	err := retry.Do(ctx, c.logger, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		return c.breaker.Execute(func() error {
			var err error
			res, err = c.do(ctx, path, body)
			return err
		})
	}, retry.DefaultIsRetryable)
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (c *Client) do(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := nodeClient().Do(req)
	if err != nil {
		return nil, types.WrapGateway(err, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, types.WrapGateway(err, path+": failed to read response")
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("%s: response too large", path)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, types.ErrGateway.Wrapf("%s: unexpected HTTP status %s", path, resp.Status)
	default:
		return nil, fmt.Errorf("%s: unexpected HTTP status %s (%s)", path, resp.Status, data)
	}

	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid JSON response", path)
	}

	// the node reports failures inside a 200 response
	if e := gjson.GetBytes(data, "Error"); e.Exists() {
		return nil, fmt.Errorf("%s: %s", path, e.String())
	}

	return data, nil
}

func callBody(owner, contract, selector string, params []byte) ([]byte, error) {
	body := []byte("{}")
	var err error

	for _, kv := range []struct {
		key   string
		value any
	}{
		{"owner_address", owner},
		{"contract_address", contract},
		{"function_selector", selector},
		{"parameter", hex.EncodeToString(params)},
		{"visible", false},
	} {
		if body, err = sjson.SetBytes(body, kv.key, kv.value); err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
	}

	return body, nil
}

func checkResult(res []byte) error {
	if gjson.GetBytes(res, "result.result").Bool() {
		return nil
	}

	code := gjson.GetBytes(res, "result.code").String()
	msg := decodeMessage(gjson.GetBytes(res, "result.message").String())

	return fmt.Errorf("contract call failed: %s %s", code, msg)
}

// decodeMessage undoes the node's hex encoding of error messages
func decodeMessage(msg string) string {
	if bz, err := hex.DecodeString(msg); err == nil {
		return string(bz)
	}

	return msg
}
