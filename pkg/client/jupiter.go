package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"dualswap/pkg/types"
)

const DefaultJupiterURL = "https://quote-api.jup.ag/v6"

// JupiterClient talks to the Jupiter quote and swap API
type JupiterClient struct {
	baseClient
}

// NewJupiterClient creates a new Jupiter API client
func NewJupiterClient(opts Options) *JupiterClient {
	return &JupiterClient{baseClient: newBaseClient("jupiter", DefaultJupiterURL, opts)}
}

// JupiterQuoteRequest holds the query of a quote call. Amount is in base units.
type JupiterQuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      string
	SlippageBps uint16
}

// SwapInfo describes the AMM used by one route step
type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// RoutePlanStep is one leg of a route
type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// JupiterQuote is a normalized quote. Raw holds the route exactly as returned
// so it can be echoed back to the swap endpoint.
type JupiterQuote struct {
	InputMint            string          `json:"inputMint"`
	OutputMint           string          `json:"outputMint"`
	InAmount             string          `json:"inAmount"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          uint16          `json:"slippageBps"`
	PriceImpactPct       decimal.Decimal `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	ContextSlot          uint64          `json:"contextSlot"`

	Raw json.RawMessage `json:"-"`
}

// HasRoute reports whether the quote carries at least one route step
func (q *JupiterQuote) HasRoute() bool {
	return q != nil && len(q.RoutePlan) > 0
}

// Legs converts the route plan to display legs
func (q *JupiterQuote) Legs() []types.RouteLeg {
	legs := make([]types.RouteLeg, 0, len(q.RoutePlan))
	for _, step := range q.RoutePlan {
		legs = append(legs, types.RouteLeg{
			Label:     step.SwapInfo.Label,
			InAmount:  step.SwapInfo.InAmount,
			OutAmount: step.SwapInfo.OutAmount,
			Percent:   step.Percent,
		})
	}
	return legs
}

// legacy v4 shape: {"data":[route, ...]} with marketInfos instead of routePlan
type legacyQuoteEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type legacyMarketInfo struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	InputMint  string          `json:"inputMint"`
	OutputMint string          `json:"outputMint"`
	InAmount   decimal.Decimal `json:"inAmount"`
	OutAmount  decimal.Decimal `json:"outAmount"`
}

type legacyRoute struct {
	InAmount             decimal.Decimal    `json:"inAmount"`
	OutAmount            decimal.Decimal    `json:"outAmount"`
	OtherAmountThreshold decimal.Decimal    `json:"otherAmountThreshold"`
	SwapMode             string             `json:"swapMode"`
	SlippageBps          uint16             `json:"slippageBps"`
	PriceImpactPct       decimal.Decimal    `json:"priceImpactPct"`
	MarketInfos          []legacyMarketInfo `json:"marketInfos"`
}

func (q *JupiterQuote) decode(body []byte) error {
	var env legacyQuoteEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return q.decodeLegacy(env.Data)
	}

	if err := json.Unmarshal(body, q); err != nil {
		return fmt.Errorf("%w: failed to decode jupiter quote: %w", types.ErrSwapData, err)
	}
	q.Raw = append(json.RawMessage(nil), body...)
	return nil
}

func (q *JupiterQuote) decodeLegacy(data json.RawMessage) error {
	var routes []json.RawMessage
	if err := json.Unmarshal(data, &routes); err != nil {
		return fmt.Errorf("%w: failed to decode jupiter routes: %w", types.ErrSwapData, err)
	}
	if len(routes) == 0 {
		return nil
	}

	var route legacyRoute
	if err := json.Unmarshal(routes[0], &route); err != nil {
		return fmt.Errorf("%w: failed to decode jupiter route: %w", types.ErrSwapData, err)
	}

	q.InAmount = route.InAmount.String()
	q.OutAmount = route.OutAmount.String()
	q.OtherAmountThreshold = route.OtherAmountThreshold.String()
	q.SwapMode = route.SwapMode
	q.SlippageBps = route.SlippageBps
	q.PriceImpactPct = route.PriceImpactPct
	q.RoutePlan = make([]RoutePlanStep, 0, len(route.MarketInfos))
	for _, m := range route.MarketInfos {
		q.RoutePlan = append(q.RoutePlan, RoutePlanStep{
			SwapInfo: SwapInfo{
				AmmKey:     m.ID,
				Label:      m.Label,
				InputMint:  m.InputMint,
				OutputMint: m.OutputMint,
				InAmount:   m.InAmount.String(),
				OutAmount:  m.OutAmount.String(),
			},
			Percent: 100,
		})
	}
	if len(route.MarketInfos) > 0 {
		q.InputMint = route.MarketInfos[0].InputMint
		q.OutputMint = route.MarketInfos[len(route.MarketInfos)-1].OutputMint
	}
	q.Raw = append(json.RawMessage(nil), routes[0]...)
	return nil
}

// JupiterSwapRequest asks the swap endpoint to build a transaction for a quote
type JupiterSwapRequest struct {
	QuoteResponse                 json.RawMessage `json:"quoteResponse"`
	UserPublicKey                 string          `json:"userPublicKey"`
	WrapAndUnwrapSol              bool            `json:"wrapAndUnwrapSol"`
	ComputeUnitPriceMicroLamports uint64          `json:"computeUnitPriceMicroLamports"`
}

// JupiterSwap is the swap response; SwapTransaction is a base64 serialized transaction
type JupiterSwap struct {
	SwapTransaction           string `json:"swapTransaction"`
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports"`
}

// Quote fetches the best route for a swap
func (c *JupiterClient) Quote(ctx context.Context, req JupiterQuoteRequest) (*JupiterQuote, error) {
	if strings.TrimSpace(req.InputMint) == "" || strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("%w: inputMint and outputMint are required", types.ErrValidation)
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, fmt.Errorf("%w: amount is required", types.ErrValidation)
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount)
	q.Set("slippageBps", strconv.FormatUint(uint64(req.SlippageBps), 10))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build jupiter request: %w", err)
	}
	c.authorize(httpReq)

	var out JupiterQuote
	if err := c.do(ctx, httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Swap requests a serialized swap transaction for a previously fetched route
func (c *JupiterClient) Swap(ctx context.Context, req JupiterSwapRequest) (*JupiterSwap, error) {
	if len(req.QuoteResponse) == 0 {
		return nil, fmt.Errorf("%w: quoteResponse is required", types.ErrValidation)
	}
	if strings.TrimSpace(req.UserPublicKey) == "" {
		return nil, fmt.Errorf("%w: userPublicKey is required", types.ErrValidation)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jupiter swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build jupiter request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	var out JupiterSwap
	if err := c.do(ctx, httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *JupiterClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}
