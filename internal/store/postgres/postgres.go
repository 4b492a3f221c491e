package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"doradori/backend/internal/domain"
	"doradori/backend/internal/store"
)

// Options names the writable table and the read projection. Both are
// server configuration and are quoted once in New.
type Options struct {
	DatabaseURL string
	Table       string
	View        string
}

type Store struct {
	db    *sql.DB
	table string
	view  string

	q queries
}

type queries struct {
	kpis           string
	topSKUs        string
	stockoutRisks  string
	channels       string
	returnRates    string
	unitsReturns   string
	fabricUsage    string
	listAll        string
	listSearch     string
	getStyle       string
	countTableRows string
}

func New(ctx context.Context, opts Options) (*Store, error) {
	table, err := quoteIdent(opts.Table)
	if err != nil {
		return nil, fmt.Errorf("table name: %w", err)
	}
	viewName := opts.View
	if strings.TrimSpace(viewName) == "" {
		viewName = opts.Table
	}
	view, err := quoteIdent(viewName)
	if err != nil {
		return nil, fmt.Errorf("view name: %w", err)
	}

	db, err := sql.Open("pgx", opts.DatabaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, table: table, view: view, q: buildQueries(table, view)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// quoteIdent accepts "name" or "schema.name" and returns the quoted form.
func quoteIdent(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("empty identifier")
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("identifier %q has too many parts", name)
	}
	for _, part := range parts {
		if part == "" {
			return "", fmt.Errorf("identifier %q has an empty part", name)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

func buildQueries(table string, view string) queries {
	return queries{
		kpis: fmt.Sprintf(`
			SELECT
				COUNT(DISTINCT style_id) AS total_active_styles,
				COUNT(*) FILTER (WHERE total_days_of_cover < $1) AS styles_at_risk_count,
				COALESCE(SUM(total_revenue), 0) AS revenue_last_30d,
				COALESCE(AVG(return_average_percent) FILTER (WHERE one_month_total_sales > 0), 0) AS avg_return_rate_pct
			FROM %s
			WHERE ats_pooled > 0 OR one_month_total_sales > 0
		`, view),
		topSKUs: fmt.Sprintf(`
			SELECT
				style_id,
				COALESCE(style_name, ''),
				CASE
					WHEN COALESCE(one_month_sales_myntra, 0) > COALESCE(one_month_sales_nykaa, 0) THEN 'Myntra'
					ELSE 'Nykaa'
				END AS primary_platform,
				one_month_total_sales
			FROM %s
			WHERE one_month_total_sales > 0 AND ats_pooled > 0
			ORDER BY one_month_total_sales DESC, style_id ASC
			LIMIT $1
		`, view),
		stockoutRisks: fmt.Sprintf(`
			WITH sales_stats AS (
				SELECT AVG(daily_total_sales) AS avg_daily_sales
				FROM %[1]s
				WHERE daily_total_sales > 0
			)
			SELECT
				i.style_id,
				COALESCE(i.style_name, ''),
				i.total_days_of_cover,
				COALESCE(i.ats_pooled, 0),
				i.daily_total_sales
			FROM %[1]s i, sales_stats s
			WHERE i.total_days_of_cover < $1
				AND i.daily_total_sales > 0
				AND i.daily_total_sales >= s.avg_daily_sales
			ORDER BY i.total_days_of_cover ASC, i.daily_total_sales DESC
			LIMIT $2
		`, view),
		channels: fmt.Sprintf(`
			WITH global_aov AS (
				SELECT
					CASE
						WHEN COALESCE(SUM(one_month_total_sales), 0) = 0 THEN 0
						ELSE SUM(
							COALESCE(one_month_sales_myntra, 0) * COALESCE(price_myntra, 0) +
							COALESCE(one_month_sales_nykaa, 0) * COALESCE(price_nykaa, 0)
						) / SUM(one_month_total_sales)
					END AS aov
				FROM %[1]s
			),
			platform_agg AS (
				SELECT
					ads_platform,
					SUM(ad_spend) AS total_ad_spend,
					COALESCE(SUM(clicks), 0) AS total_clicks
				FROM %[1]s
				WHERE ad_spend IS NOT NULL
				GROUP BY ads_platform
			)
			SELECT
				p.ads_platform,
				p.total_ad_spend,
				p.total_clicks,
				ga.aov,
				CASE
					WHEN p.total_ad_spend = 0 THEN NULL
					ELSE (p.total_clicks * $1::numeric * ga.aov) / p.total_ad_spend
				END AS estimated_roas_x
			FROM platform_agg p
			CROSS JOIN global_aov ga
			ORDER BY p.total_ad_spend DESC, p.ads_platform ASC NULLS LAST
		`, view),
		returnRates: fmt.Sprintf(`
			SELECT
				category,
				CASE
					WHEN COALESCE(SUM(one_month_total_sales), 0) = 0 THEN 0
					ELSE ROUND(100.0 * COALESCE(SUM(total_return_units), 0) / NULLIF(SUM(one_month_total_sales), 0), 1)
				END AS return_rate_pct
			FROM %s
			GROUP BY category
			ORDER BY return_rate_pct DESC, category ASC NULLS LAST
		`, view),
		unitsReturns: fmt.Sprintf(`
			SELECT
				COALESCE(SUM(daily_total_sales), 0) AS units_sold_per_day,
				CASE
					WHEN COALESCE(SUM(daily_total_sales), 0) = 0 THEN 0
					ELSE COALESCE(SUM(daily_total_sales * (return_average_percent / 100.0)), 0) / SUM(daily_total_sales) * 100
				END AS return_rate_pct
			FROM %s
		`, view),
		fabricUsage: fmt.Sprintf(`
			SELECT
				fabric_type,
				COALESCE(MAX(fabric_available_mtr), 0) AS available_meters,
				COALESCE(SUM(one_month_total_sales * fabric_yield_per_unit), 0) AS usage_30d_meters
			FROM %s
			GROUP BY fabric_type
			ORDER BY usage_30d_meters DESC, fabric_type ASC NULLS LAST
			LIMIT $1
		`, view),
		listAll: fmt.Sprintf(`SELECT * FROM %s ORDER BY style_id ASC LIMIT $1`, view),
		listSearch: fmt.Sprintf(`
			SELECT * FROM %s
			WHERE style_name ILIKE $1 OR style_id ILIKE $1 OR category ILIKE $1
			ORDER BY style_id ASC
			LIMIT $2
		`, view),
		getStyle:       fmt.Sprintf(`SELECT * FROM %s WHERE style_id = $1`, view),
		countTableRows: fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table),
	}
}

func (s *Store) KPISummary(ctx context.Context, riskCoverDays float64) (domain.KPISummary, error) {
	summary := domain.KPISummary{
		TotalActiveStylesChange: "+0",
		StylesAtRiskChange:      "+0",
		RevenueLast30dChange:    "+0",
		AverageReturnRateChange: "+0%",
	}
	err := s.db.QueryRowContext(ctx, s.q.kpis, riskCoverDays).Scan(
		&summary.TotalActiveStyles,
		&summary.StylesAtRiskCount,
		&summary.RevenueLast30d,
		&summary.AverageReturnRate,
	)
	if err != nil {
		return domain.KPISummary{}, wrap(ctx, "kpi summary", err)
	}
	return summary, nil
}

func (s *Store) TopSKUs(ctx context.Context, limit int) ([]domain.TopSKU, error) {
	rows, err := s.db.QueryContext(ctx, s.q.topSKUs, limitArg(limit))
	if err != nil {
		return nil, wrap(ctx, "top skus", err)
	}
	defer rows.Close()

	out := make([]domain.TopSKU, 0, 8)
	for rows.Next() {
		var item domain.TopSKU
		if err := rows.Scan(&item.StyleID, &item.StyleName, &item.PrimaryPlatform, &item.OneMonthSalesUnits); err != nil {
			return nil, wrap(ctx, "top skus", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ctx, "top skus", err)
	}
	return out, nil
}

func (s *Store) StockoutRisks(ctx context.Context, riskCoverDays float64, limit int) ([]domain.StockoutRisk, error) {
	rows, err := s.db.QueryContext(ctx, s.q.stockoutRisks, riskCoverDays, limitArg(limit))
	if err != nil {
		return nil, wrap(ctx, "stockout risks", err)
	}
	defer rows.Close()

	out := make([]domain.StockoutRisk, 0, 8)
	for rows.Next() {
		var item domain.StockoutRisk
		if err := rows.Scan(&item.StyleID, &item.StyleName, &item.DaysOfCover, &item.AtsPooled, &item.DailySales); err != nil {
			return nil, wrap(ctx, "stockout risks", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ctx, "stockout risks", err)
	}
	return out, nil
}

func (s *Store) ChannelPerformance(ctx context.Context, assumedCVR float64) ([]domain.ChannelPerformance, error) {
	rows, err := s.db.QueryContext(ctx, s.q.channels, assumedCVR)
	if err != nil {
		return nil, wrap(ctx, "channel performance", err)
	}
	defer rows.Close()

	out := make([]domain.ChannelPerformance, 0, 4)
	for rows.Next() {
		var (
			platform sql.NullString
			roas     sql.NullFloat64
			item     domain.ChannelPerformance
		)
		if err := rows.Scan(&platform, &item.TotalAdSpend, &item.TotalClicks, &item.GlobalAOV, &roas); err != nil {
			return nil, wrap(ctx, "channel performance", err)
		}
		item.AdsPlatform = platform.String
		item.AssumedCVR = assumedCVR
		item.EstimatedOrders = float64(item.TotalClicks) * assumedCVR
		item.Revenue30d = item.EstimatedOrders * item.GlobalAOV
		if roas.Valid {
			v := roas.Float64
			item.RoasX = &v
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ctx, "channel performance", err)
	}
	return out, nil
}

func (s *Store) ReturnRateByCategory(ctx context.Context) ([]domain.CategoryReturnRate, error) {
	rows, err := s.db.QueryContext(ctx, s.q.returnRates)
	if err != nil {
		return nil, wrap(ctx, "return rate by category", err)
	}
	defer rows.Close()

	out := make([]domain.CategoryReturnRate, 0, 16)
	for rows.Next() {
		var (
			category sql.NullString
			item     domain.CategoryReturnRate
		)
		if err := rows.Scan(&category, &item.ReturnRatePct); err != nil {
			return nil, wrap(ctx, "return rate by category", err)
		}
		item.Category = category.String
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ctx, "return rate by category", err)
	}
	return out, nil
}

func (s *Store) UnitsReturnsAggregate(ctx context.Context) (domain.UnitsReturnsAggregate, error) {
	var agg domain.UnitsReturnsAggregate
	if err := s.db.QueryRowContext(ctx, s.q.unitsReturns).Scan(&agg.UnitsSoldPerDay, &agg.ReturnRatePct); err != nil {
		return domain.UnitsReturnsAggregate{}, wrap(ctx, "units vs returns", err)
	}
	return agg, nil
}

func (s *Store) FabricUsage(ctx context.Context, limit int) ([]domain.FabricUsage, error) {
	rows, err := s.db.QueryContext(ctx, s.q.fabricUsage, limitArg(limit))
	if err != nil {
		return nil, wrap(ctx, "fabric usage", err)
	}
	defer rows.Close()

	out := make([]domain.FabricUsage, 0, 4)
	for rows.Next() {
		var (
			fabric sql.NullString
			item   domain.FabricUsage
		)
		if err := rows.Scan(&fabric, &item.AvailableMeters, &item.Usage30dMeters); err != nil {
			return nil, wrap(ctx, "fabric usage", err)
		}
		item.FabricType = fabric.String
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(ctx, "fabric usage", err)
	}
	return out, nil
}

// limitArg maps a non-positive limit to NULL, which Postgres treats as
// LIMIT ALL.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// wrap classifies driver errors: data exceptions raised by a coerced
// write become ErrInvalidInput, everything else keeps its cause.
func wrap(ctx context.Context, op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	zerolog.Ctx(ctx).Warn().
		Str("op", op).
		Str("sqlstate", pgErr.Code).
		Str("detail", pgErr.Detail).
		Msg(pgErr.Message)

	// class 22 is data_exception, 23502 is not_null_violation
	if strings.HasPrefix(pgErr.Code, "22") || pgErr.Code == "23502" {
		return fmt.Errorf("%w: %s", store.ErrInvalidInput, pgErr.Message)
	}
	return fmt.Errorf("%s (sqlstate %s): %w", op, pgErr.Code, err)
}
