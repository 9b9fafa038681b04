// internal/stats/stats.go
package stats

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/selinkarabicakkk/trading-bot/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Stats is the rolling performance summary of a session.
//
// Invariant: WinningTrades+LosingTrades <= TotalTrades. The derived rates
// are zero while TotalTrades is zero.
type Stats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalProfit   decimal.Decimal
	SuccessRate   decimal.Decimal
	AverageProfit decimal.Decimal
}

// Apply folds one event into s in O(1). s is not modified.
func Apply(s Stats, ev model.SignalEvent) Stats {
	s.TotalTrades++
	switch ev.Profit.Sign() {
	case 1:
		s.WinningTrades++
	case -1:
		s.LosingTrades++
	}
	s.TotalProfit = s.TotalProfit.Add(ev.Profit)

	total := decimal.NewFromInt(int64(s.TotalTrades))
	s.SuccessRate = decimal.NewFromInt(int64(s.WinningTrades)).Mul(hundred).Div(total)
	s.AverageProfit = s.TotalProfit.Div(total)
	return s
}

// Fold recomputes Stats from scratch over events, oldest first.
func Fold(events []model.SignalEvent) Stats {
	var s Stats
	for _, ev := range events {
		s = Apply(s, ev)
	}
	return s
}

// Equal compares two Stats numerically.
func Equal(a, b Stats) bool {
	return a.TotalTrades == b.TotalTrades &&
		a.WinningTrades == b.WinningTrades &&
		a.LosingTrades == b.LosingTrades &&
		a.TotalProfit.Equal(b.TotalProfit) &&
		a.SuccessRate.Equal(b.SuccessRate) &&
		a.AverageProfit.Equal(b.AverageProfit)
}

type statsJSON struct {
	TotalTrades   int         `json:"totalTrades"`
	WinningTrades int         `json:"winningTrades"`
	LosingTrades  int         `json:"losingTrades"`
	TotalProfit   json.Number `json:"totalProfit"`
	SuccessRate   json.Number `json:"successRate"`
	AverageProfit json.Number `json:"averageProfit"`
}

// MarshalJSON encodes decimals as JSON numbers.
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(statsJSON{
		TotalTrades:   s.TotalTrades,
		WinningTrades: s.WinningTrades,
		LosingTrades:  s.LosingTrades,
		TotalProfit:   json.Number(s.TotalProfit.String()),
		SuccessRate:   json.Number(s.SuccessRate.StringFixed(2)),
		AverageProfit: json.Number(s.AverageProfit.StringFixed(4)),
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Stats) UnmarshalJSON(b []byte) error {
	var v statsJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	out := Stats{TotalTrades: v.TotalTrades, WinningTrades: v.WinningTrades, LosingTrades: v.LosingTrades}
	for _, f := range []struct {
		dst *decimal.Decimal
		src json.Number
	}{
		{&out.TotalProfit, v.TotalProfit},
		{&out.SuccessRate, v.SuccessRate},
		{&out.AverageProfit, v.AverageProfit},
	} {
		if f.src == "" {
			continue
		}
		d, err := decimal.NewFromString(string(f.src))
		if err != nil {
			return err
		}
		*f.dst = d
	}
	*s = out
	return nil
}
