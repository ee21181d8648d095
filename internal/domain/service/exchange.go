package service

import (
	"context"

	"SigPull/internal/domain/models"
)

// ExchangeClient provides read-only 24h market stats from one exchange.
// Implementations return an error when the pair is unknown or the exchange
// is unreachable; callers treat either as "no data from this exchange".
type ExchangeClient interface {
	Name() string
	Ticker(ctx context.Context, symbol string) (*models.TickerStats, error)
}
