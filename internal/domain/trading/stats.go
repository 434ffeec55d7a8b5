// Package trading определяет контракт с внешней торговой подсистемой.
// Ядро прогрессии не исполняет сделки - оно только читает агрегаты
// (количество сделок, прибыль) для критериев достижений и лидерборда.
package trading

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRADE STATS
// ══════════════════════════════════════════════════════════════════════════════

// Stats - торговые агрегаты пользователя, поставляемые торговой подсистемой.
// Денежные величины - decimal, не float: ошибка округления в прибыли
// видна пользователю.
type Stats struct {
	// UserID - идентификатор пользователя.
	UserID shared.UserID

	// TotalTrades - количество исполненных сделок.
	TotalTrades int

	// ProfitableTrades - количество прибыльных сделок.
	ProfitableTrades int

	// TotalProfit - суммарная прибыль (может быть отрицательной).
	TotalProfit decimal.Decimal
}

// ZeroStats возвращает нулевые агрегаты для пользователя без сделок.
func ZeroStats(userID shared.UserID) Stats {
	return Stats{
		UserID:      userID,
		TotalProfit: decimal.Zero,
	}
}

// WinRate возвращает долю прибыльных сделок [0, 1].
func (s Stats) WinRate() decimal.Decimal {
	if s.TotalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.ProfitableTrades)).
		Div(decimal.NewFromInt(int64(s.TotalTrades)))
}

// Stat возвращает именованный агрегат для вычисления критериев достижений.
// Неизвестное имя - ошибка критерия, не паника.
func (s Stats) Stat(name string) (decimal.Decimal, bool) {
	switch name {
	case "total_trades":
		return decimal.NewFromInt(int64(s.TotalTrades)), true
	case "profitable_trades":
		return decimal.NewFromInt(int64(s.ProfitableTrades)), true
	case "total_profit":
		return s.TotalProfit, true
	case "win_rate":
		return s.WinRate(), true
	default:
		return decimal.Zero, false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PROVIDER CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// StatsProvider - контракт внешней торговой подсистемы.
// Реализация в infrastructure/external/trading; может ходить по сети,
// поэтому принимает контекст.
type StatsProvider interface {
	// GetStats возвращает торговые агрегаты пользователя.
	// Для пользователя без сделок возвращает ZeroStats, не ошибку.
	GetStats(ctx context.Context, userID shared.UserID) (Stats, error)
}
