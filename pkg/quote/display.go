package quote

import (
	"fmt"

	"dualswap/pkg/types"
	"dualswap/pkg/units"
)

// LegView is one route leg formatted for display
type LegView struct {
	Label   string `json:"label"`
	From    string `json:"from"`
	To      string `json:"to"`
	Percent int    `json:"percent"`
}

// View is a quote formatted for display
type View struct {
	RequestID    uint64    `json:"requestId"`
	Network      string    `json:"network"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	EstimatedGas uint64    `json:"estimatedGas,omitempty"`
	Legs         []LegView `json:"legs,omitempty"`
	PriceImpact  string    `json:"priceImpact,omitempty"`
	Slippage     string    `json:"slippage"`
}

// Render formats a quote result. EVM amounts are shifted by token decimals,
// Solana amounts use 6 fractional digits and price impact is shown as a percentage.
func Render(r types.QuoteResult) View {
	v := View{
		RequestID: r.RequestID,
		Network:   r.Network.Label(),
		Slippage:  units.FormatSlippage(float64(r.SlippageBps) / 100),
	}

	switch {
	case r.EVM != nil:
		v.From = fmt.Sprintf("%s %s", r.AmountInput, r.From.Symbol)
		v.To = fmt.Sprintf("%s %s", units.FormatEVM(r.EVM.ToAmount, r.To.Decimals), r.To.Symbol)
		v.EstimatedGas = r.EVM.EstimatedGas
	case r.Solana != nil:
		v.From = fmt.Sprintf("%s %s", units.FormatSolana(r.Solana.InAmount, r.From.Decimals), r.From.Symbol)
		v.To = fmt.Sprintf("%s %s", units.FormatSolana(r.Solana.OutAmount, r.To.Decimals), r.To.Symbol)
		v.PriceImpact = units.FormatPriceImpact(r.Solana.PriceImpactPct) + "%"
		for _, leg := range r.Solana.RoutePlan {
			v.Legs = append(v.Legs, LegView{
				Label:   leg.Label,
				From:    fmt.Sprintf("%s %s", units.FormatSolana(leg.InAmount, r.From.Decimals), r.From.Symbol),
				To:      fmt.Sprintf("%s %s", units.FormatSolana(leg.OutAmount, r.To.Decimals), r.To.Symbol),
				Percent: leg.Percent,
			})
		}
	}
	return v
}
