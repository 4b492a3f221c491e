package store

import (
	"context"
	"errors"

	"doradori/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Repository is the Query Layer plus the persistence half of the Write
// Gate. Reads come from the read projection; UpdateStyle targets the
// writable table.
type Repository interface {
	KPISummary(ctx context.Context, riskCoverDays float64) (domain.KPISummary, error)
	TopSKUs(ctx context.Context, limit int) ([]domain.TopSKU, error)
	StockoutRisks(ctx context.Context, riskCoverDays float64, limit int) ([]domain.StockoutRisk, error)
	ChannelPerformance(ctx context.Context, assumedCVR float64) ([]domain.ChannelPerformance, error)
	ReturnRateByCategory(ctx context.Context) ([]domain.CategoryReturnRate, error)
	UnitsReturnsAggregate(ctx context.Context) (domain.UnitsReturnsAggregate, error)
	FabricUsage(ctx context.Context, limit int) ([]domain.FabricUsage, error)
	ListStyles(ctx context.Context, search string, limit int) ([]domain.Row, error)
	GetStyle(ctx context.Context, styleID string) (domain.Row, error)
	// UpdateStyle applies fields to the single row whose style_id matches
	// case- and trim-insensitively and returns the canonical style_id.
	UpdateStyle(ctx context.Context, styleID string, fields map[string]any) (string, error)
	Ping(ctx context.Context) error
}
