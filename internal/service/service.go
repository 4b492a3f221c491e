package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"doradori/backend/internal/alerts"
	"doradori/backend/internal/cache"
	"doradori/backend/internal/domain"
	"doradori/backend/internal/store"
)

const (
	// RiskCoverDays is the single at-risk threshold used by the KPI count
	// and the stockout list.
	RiskCoverDays = 30
	TopListLimit  = 5
	AssumedCVR    = 0.02
	FabricLimit   = 4
	TrendDays     = 7
)

const (
	keyKPIs          = "report:kpis"
	keyTopSKUs       = "report:top-skus"
	keyStockoutRisks = "report:stockout-risks"
	keyChannels      = "report:channel-performance"
	keyReturnRates   = "report:return-rate-by-category"
	keyUnitsReturns  = "report:units-vs-returns"
	keyFabricUsage   = "report:fabric-usage"
)

var reportKeys = []string{
	keyKPIs, keyTopSKUs, keyStockoutRisks, keyChannels, keyReturnRates, keyUnitsReturns, keyFabricUsage,
}

type Options struct {
	Cache    cache.ReportCache
	Locker   cache.Locker
	CacheTTL time.Duration
	LockTTL  time.Duration
	Now      func() time.Time
}

type Service struct {
	repo     store.Repository
	cache    *cache.Guarded
	locker   cache.Locker
	alerts   *alerts.Engine
	cacheTTL time.Duration
	lockTTL  time.Duration
	now      func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.Locker == nil {
		opts.Locker = cache.NoopLocker{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	reports := cache.NewGuarded(opts.Cache)
	return &Service{
		repo:     repo,
		cache:    reports,
		locker:   opts.Locker,
		alerts:   alerts.NewEngine(reports, opts.CacheTTL),
		cacheTTL: opts.CacheTTL,
		lockTTL:  opts.LockTTL,
		now:      opts.Now,
	}
}

func (s *Service) Health(_ context.Context) domain.HealthStatus {
	return domain.HealthStatus{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) KPIs(ctx context.Context) (domain.KPISummary, error) {
	return cached(ctx, s, keyKPIs, func(ctx context.Context) (domain.KPISummary, error) {
		return s.repo.KPISummary(ctx, RiskCoverDays)
	})
}

func (s *Service) TopSKUs(ctx context.Context) ([]domain.TopSKU, error) {
	return cached(ctx, s, keyTopSKUs, func(ctx context.Context) ([]domain.TopSKU, error) {
		return s.repo.TopSKUs(ctx, TopListLimit)
	})
}

func (s *Service) StockoutRisks(ctx context.Context) ([]domain.StockoutRisk, error) {
	return cached(ctx, s, keyStockoutRisks, func(ctx context.Context) ([]domain.StockoutRisk, error) {
		return s.repo.StockoutRisks(ctx, RiskCoverDays, TopListLimit)
	})
}

func (s *Service) ChannelPerformance(ctx context.Context) ([]domain.ChannelPerformance, error) {
	return cached(ctx, s, keyChannels, func(ctx context.Context) ([]domain.ChannelPerformance, error) {
		return s.repo.ChannelPerformance(ctx, AssumedCVR)
	})
}

func (s *Service) ReturnRateByCategory(ctx context.Context) ([]domain.CategoryReturnRate, error) {
	return cached(ctx, s, keyReturnRates, s.repo.ReturnRateByCategory)
}

func (s *Service) FabricUsage(ctx context.Context) ([]domain.FabricUsage, error) {
	return cached(ctx, s, keyFabricUsage, func(ctx context.Context) ([]domain.FabricUsage, error) {
		return s.repo.FabricUsage(ctx, FabricLimit)
	})
}

// UnitsVsReturns spreads the current daily sell rate over the last
// TrendDays calendar days ending today.
func (s *Service) UnitsVsReturns(ctx context.Context) ([]domain.UnitsVsReturnsPoint, error) {
	return cached(ctx, s, keyUnitsReturns, func(ctx context.Context) ([]domain.UnitsVsReturnsPoint, error) {
		agg, err := s.repo.UnitsReturnsAggregate(ctx)
		if err != nil {
			return nil, err
		}

		today := s.now()
		points := make([]domain.UnitsVsReturnsPoint, 0, TrendDays)
		for i := TrendDays - 1; i >= 0; i-- {
			day := today.AddDate(0, 0, -i)
			points = append(points, domain.UnitsVsReturnsPoint{
				DayLabel:      day.Format("Mon"),
				UnitsSold:     int64(math.Round(agg.UnitsSoldPerDay)),
				ReturnRatePct: agg.ReturnRatePct,
			})
		}
		return points, nil
	})
}

func (s *Service) Alerts(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	return s.alerts.Evaluate(ctx, filter, func(ctx context.Context) ([]domain.Row, error) {
		return s.repo.ListStyles(ctx, "", 0)
	})
}

func (s *Service) Schema() []domain.Column {
	return domain.Columns
}

// MasterTable returns the whole filtered projection as a single page.
// limit <= 0 means unbounded.
func (s *Service) MasterTable(ctx context.Context, search string, limit int) (domain.MasterTablePage, error) {
	rows, err := s.repo.ListStyles(ctx, search, limit)
	if err != nil {
		return domain.MasterTablePage{}, err
	}
	if rows == nil {
		rows = []domain.Row{}
	}

	return domain.MasterTablePage{
		Data:  rows,
		Total: len(rows),
		Pagination: domain.Pagination{
			Page:       1,
			PageSize:   len(rows),
			Total:      len(rows),
			TotalPages: 1,
		},
	}, nil
}

// UpdateStyle is the Write Gate: it keeps only editable, non-derived
// fields, writes them in one UPDATE and answers with the row re-read from
// the read projection.
func (s *Service) UpdateStyle(ctx context.Context, rawStyleID string, fields map[string]any) (domain.StyleUpdateResponse, error) {
	styleID, err := NormalizeStyleID(rawStyleID)
	if err != nil {
		return domain.StyleUpdateResponse{}, err
	}

	writable, err := WritableFields(fields)
	if err != nil {
		return domain.StyleUpdateResponse{}, err
	}

	release, err := s.locker.Obtain(ctx, "lock:style:"+strings.ToLower(styleID), s.lockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockNotObtained) {
			return domain.StyleUpdateResponse{}, fmt.Errorf("%w: style %s is being updated", store.ErrConflict, styleID)
		}
		return domain.StyleUpdateResponse{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("style_id", styleID).Msg("release write lock")
		}
	}()

	matched, err := s.repo.UpdateStyle(ctx, styleID, writable)
	if err != nil {
		return domain.StyleUpdateResponse{}, err
	}

	s.invalidate(ctx)

	row, err := s.repo.GetStyle(ctx, matched)
	if err != nil {
		return domain.StyleUpdateResponse{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("style_id", matched).
		Int("fields", len(writable)).
		Msg("style updated")
	return domain.StyleUpdateResponse{Row: row}, nil
}

// NormalizeStyleID decodes a path segment, drops anything after a stray
// '?', and trims whitespace.
func NormalizeStyleID(raw string) (string, error) {
	id := raw
	if decoded, err := url.PathUnescape(raw); err == nil {
		id = decoded
	}
	id, _, _ = strings.Cut(id, "?")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: style id is required", store.ErrInvalidInput)
	}
	return id, nil
}

// WritableFields filters a client payload down to editable columns and
// coerces each value to its column type.
func WritableFields(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, value := range fields {
		if !domain.IsEditable(name) || domain.IsDerived(name) {
			continue
		}
		col, _ := domain.LookupColumn(name)
		coerced, err := domain.Coerce(col, value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
		}
		out[name] = coerced
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no valid fields to update", store.ErrInvalidInput)
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context) {
	keys := append(append([]string{}, reportKeys...), alerts.CacheKeys()...)
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("invalidate report cache")
	}
}

func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	hit, err := s.cache.Get(ctx, key, &out)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("report cache read")
	}
	if err == nil && hit {
		return out, nil
	}

	gen := s.cache.Generation()
	out, err = load(ctx)
	if err != nil {
		return out, err
	}
	if _, err := s.cache.Fill(ctx, gen, key, out, s.cacheTTL); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("report cache write")
	}
	return out, nil
}
