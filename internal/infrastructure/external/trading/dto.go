package trading

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
	"github.com/tradequest/tradequest-core/internal/domain/trading"
)

// statsDTO is the wire form of user trade statistics.
// TotalProfit arrives as a decimal string to preserve precision.
type statsDTO struct {
	UserID           string `json:"user_id"`
	TotalTrades      int    `json:"total_trades"`
	ProfitableTrades int    `json:"profitable_trades"`
	TotalProfit      string `json:"total_profit"`
}

// toDomain converts the DTO into domain trade stats.
func (d statsDTO) toDomain(userID shared.UserID) (trading.Stats, error) {
	profit := decimal.Zero
	if d.TotalProfit != "" {
		parsed, err := decimal.NewFromString(d.TotalProfit)
		if err != nil {
			return trading.Stats{}, fmt.Errorf("parse total_profit %q: %w", d.TotalProfit, err)
		}
		profit = parsed
	}

	if d.TotalTrades < 0 || d.ProfitableTrades < 0 || d.ProfitableTrades > d.TotalTrades {
		return trading.Stats{}, fmt.Errorf("inconsistent stats: %d profitable of %d total",
			d.ProfitableTrades, d.TotalTrades)
	}

	return trading.Stats{
		UserID:           userID,
		TotalTrades:      d.TotalTrades,
		ProfitableTrades: d.ProfitableTrades,
		TotalProfit:      profit,
	}, nil
}
