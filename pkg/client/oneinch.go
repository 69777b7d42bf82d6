package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dualswap/pkg/types"
)

const DefaultOneInchURL = "https://api.1inch.dev/swap/v5.2"

// OneInchClient talks to the 1inch swap API
type OneInchClient struct {
	baseClient
}

// NewOneInchClient creates a new 1inch API client
func NewOneInchClient(opts Options) *OneInchClient {
	return &OneInchClient{baseClient: newBaseClient("1inch", DefaultOneInchURL, opts)}
}

// OneInchQuoteRequest holds the query of a quote call. Amount is in base units.
type OneInchQuoteRequest struct {
	ChainID          int64
	FromTokenAddress string
	ToTokenAddress   string
	Amount           string
}

// OneInchSwapRequest extends a quote request with the sender and slippage (percent)
type OneInchSwapRequest struct {
	OneInchQuoteRequest
	FromAddress string
	Slippage    float64
}

// OneInchQuote is the quote response. Older API versions use the *TokenAmount/estimatedGas names.
type OneInchQuote struct {
	FromTokenAmount string `json:"fromTokenAmount"`
	ToTokenAmount   string `json:"toTokenAmount"`
	ToAmount        string `json:"toAmount"`
	EstimatedGas    uint64 `json:"estimatedGas"`
	Gas             uint64 `json:"gas"`
}

// ReturnAmount returns the output amount in base units
func (q *OneInchQuote) ReturnAmount() string {
	if q.ToAmount != "" {
		return q.ToAmount
	}
	return q.ToTokenAmount
}

// GasEstimate returns the estimated gas units
func (q *OneInchQuote) GasEstimate() uint64 {
	if q.Gas != 0 {
		return q.Gas
	}
	return q.EstimatedGas
}

// OneInchTx is the transaction payload returned by the swap endpoint
type OneInchTx struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	Gas      uint64 `json:"gas"`
	GasPrice string `json:"gasPrice"`
}

// OneInchSwap is the swap response
type OneInchSwap struct {
	ToAmount      string     `json:"toAmount"`
	ToTokenAmount string     `json:"toTokenAmount"`
	Tx            *OneInchTx `json:"tx"`
}

// Quote fetches a price quote
func (c *OneInchClient) Quote(ctx context.Context, req OneInchQuoteRequest) (*OneInchQuote, error) {
	q, err := quoteQuery(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := c.newRequest(ctx, chainID(req.ChainID), "quote", q)
	if err != nil {
		return nil, err
	}

	var out OneInchQuote
	if err := c.do(ctx, httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Swap fetches transaction data for a swap
func (c *OneInchClient) Swap(ctx context.Context, req OneInchSwapRequest) (*OneInchSwap, error) {
	q, err := quoteQuery(req.OneInchQuoteRequest)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FromAddress) == "" {
		return nil, fmt.Errorf("%w: fromAddress is required", types.ErrValidation)
	}

	q.Set("fromAddress", req.FromAddress)
	q.Set("slippage", strconv.FormatFloat(req.Slippage, 'f', -1, 64))
	q.Set("disableEstimate", "true")

	httpReq, err := c.newRequest(ctx, chainID(req.ChainID), "swap", q)
	if err != nil {
		return nil, err
	}

	var out OneInchSwap
	if err := c.do(ctx, httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *OneInchClient) newRequest(ctx context.Context, chain int64, endpoint string, q url.Values) (*http.Request, error) {
	u := fmt.Sprintf("%s/%d/%s?%s", c.baseURL, chain, endpoint, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build 1inch request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func quoteQuery(req OneInchQuoteRequest) (url.Values, error) {
	if strings.TrimSpace(req.FromTokenAddress) == "" {
		return nil, fmt.Errorf("%w: fromTokenAddress is required", types.ErrValidation)
	}
	if strings.TrimSpace(req.ToTokenAddress) == "" {
		return nil, fmt.Errorf("%w: toTokenAddress is required", types.ErrValidation)
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, fmt.Errorf("%w: amount is required", types.ErrValidation)
	}

	q := url.Values{}
	q.Set("fromTokenAddress", req.FromTokenAddress)
	q.Set("toTokenAddress", req.ToTokenAddress)
	q.Set("amount", req.Amount)
	return q, nil
}

func chainID(id int64) int64 {
	if id <= 0 {
		return types.DefaultEVMChainID
	}
	return id
}
