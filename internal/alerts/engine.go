package alerts

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"doradori/backend/internal/cache"
	"doradori/backend/internal/domain"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"

	FilterCriticalWarning = "critical-warning"
	FilterAll             = "all"

	PlatformAll = "All"
)

const (
	TypeLowStock      = "Low Stock"
	TypeHighReturn    = "High Return"
	TypeBrokenSize    = "Broken Size Curve"
	TypeFabricReorder = "Fabric Reorder"
)

type Thresholds struct {
	CriticalCoverDays   float64
	WarningCoverDays    float64
	CriticalReturnPct   float64
	WarningReturnPct    float64
	FabricReorderMeters float64
	fabricSlots         int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalCoverDays:   15,
		WarningCoverDays:    30,
		CriticalReturnPct:   20,
		WarningReturnPct:    10,
		FabricReorderMeters: 200,
		fabricSlots:         3,
	}
}

// Engine derives inventory alerts from projection rows and caches the
// result per normalised filter.
type Engine struct {
	cache      *cache.Guarded
	cacheTTL   time.Duration
	thresholds Thresholds
}

func NewEngine(cacheStore *cache.Guarded, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NewGuarded(nil)
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Engine{
		cache:      cacheStore,
		cacheTTL:   cacheTTL,
		thresholds: DefaultThresholds(),
	}
}

// Evaluate returns alerts matching filter, loading rows only on a cache miss.
func (e *Engine) Evaluate(ctx context.Context, filter domain.AlertFilter, load func(context.Context) ([]domain.Row, error)) ([]domain.Alert, error) {
	filter = NormalizeFilter(filter)
	key := cacheKey(filter)

	var cached []domain.Alert
	if ok, err := e.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	gen := e.cache.Generation()
	rows, err := load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Alert, 0, len(rows))
	for _, alert := range e.Scan(rows) {
		if matches(alert, filter) {
			out = append(out, alert)
		}
	}

	if _, err := e.cache.Fill(ctx, gen, key, out, e.cacheTTL); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("alert cache write")
	}
	return out, nil
}

// Scan emits every alert for rows, ordered critical first then by style.
func (e *Engine) Scan(rows []domain.Row) []domain.Alert {
	th := e.thresholds
	out := make([]domain.Alert, 0, len(rows))
	for _, row := range rows {
		base := domain.Alert{StyleID: row.StyleID(), StyleName: text(row, domain.ColStyleName)}

		for _, p := range domain.Platforms {
			platform := platformLabel(p)
			if cover, ok := num(row, domain.ColDaysOfCover(p)); ok {
				severity := ""
				switch {
				case cover < th.CriticalCoverDays:
					severity = SeverityCritical
				case cover < th.WarningCoverDays:
					severity = SeverityWarning
				}
				if severity != "" {
					ats, _ := num(row, domain.ColAts(p))
					out = append(out, with(base, platform, TypeLowStock, severity,
						fmt.Sprintf("%.1f days of cover (%d units left)", cover, int64(ats))))
				}
			}

			if broken := text(row, domain.ColBrokenSize(p)); broken != "" {
				out = append(out, with(base, platform, TypeBrokenSize, SeverityWarning,
					"Missing sizes: "+strings.ReplaceAll(broken, ",", ", ")))
			}
		}

		if rate, ok := num(row, domain.ColReturnAveragePercent); ok {
			severity := ""
			threshold := th.WarningReturnPct
			switch {
			case rate >= th.CriticalReturnPct:
				severity, threshold = SeverityCritical, th.CriticalReturnPct
			case rate >= th.WarningReturnPct:
				severity = SeverityWarning
			}
			if severity != "" {
				out = append(out, with(base, PlatformAll, TypeHighReturn, severity,
					fmt.Sprintf("Return rate %g%% (threshold: %g%%)", rate, threshold)))
			}
		}

		for i := 1; i <= th.fabricSlots; i++ {
			remaining, ok := num(row, domain.ColFabricRemainingN(i))
			if !ok || remaining >= th.FabricReorderMeters {
				continue
			}
			severity := SeverityWarning
			if remaining < 0 {
				severity = SeverityCritical
			}
			fabric := text(row, fabricTypeColumn(i))
			if fabric == "" {
				fabric = fmt.Sprintf("fabric %d", i)
			}
			out = append(out, with(base, PlatformAll, TypeFabricReorder, severity,
				fmt.Sprintf("%s remaining: %gm < reorder point: %gm", fabric, math.Round(remaining*10)/10, th.FabricReorderMeters)))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if rank(out[i].Severity) != rank(out[j].Severity) {
			return rank(out[i].Severity) < rank(out[j].Severity)
		}
		return out[i].StyleID < out[j].StyleID
	})
	return out
}

// NormalizeFilter maps empty or unknown values onto the dashboard defaults.
func NormalizeFilter(filter domain.AlertFilter) domain.AlertFilter {
	severity := strings.ToLower(strings.TrimSpace(filter.Severity))
	switch severity {
	case SeverityCritical, SeverityWarning, FilterAll:
	default:
		severity = FilterCriticalWarning
	}

	platform := strings.ToLower(strings.TrimSpace(filter.Platform))
	switch platform {
	case domain.PlatformMyntra, domain.PlatformNykaa:
	default:
		platform = FilterAll
	}
	return domain.AlertFilter{Severity: severity, Platform: platform}
}

// CacheKeys lists every key Evaluate may write.
func CacheKeys() []string {
	keys := make([]string, 0, 12)
	for _, severity := range []string{SeverityCritical, SeverityWarning, FilterAll, FilterCriticalWarning} {
		for _, platform := range []string{domain.PlatformMyntra, domain.PlatformNykaa, FilterAll} {
			keys = append(keys, cacheKey(domain.AlertFilter{Severity: severity, Platform: platform}))
		}
	}
	return keys
}

func cacheKey(filter domain.AlertFilter) string {
	return "report:alerts:" + filter.Severity + ":" + filter.Platform
}

func matches(alert domain.Alert, filter domain.AlertFilter) bool {
	severityOK := filter.Severity == FilterAll ||
		(filter.Severity == FilterCriticalWarning && (alert.Severity == SeverityCritical || alert.Severity == SeverityWarning)) ||
		alert.Severity == filter.Severity
	platformOK := filter.Platform == FilterAll || strings.EqualFold(alert.Platform, filter.Platform)
	return severityOK && platformOK
}

func with(base domain.Alert, platform string, alertType string, severity string, message string) domain.Alert {
	base.Platform = platform
	base.AlertType = alertType
	base.Severity = severity
	base.Message = message
	return base
}

func rank(severity string) int {
	if severity == SeverityCritical {
		return 0
	}
	return 1
}

func platformLabel(p string) string {
	return strings.ToUpper(p[:1]) + p[1:]
}

func fabricTypeColumn(i int) string {
	if i == 1 {
		return domain.ColFabricType
	}
	return fmt.Sprintf("%s_%d", domain.ColFabricType, i)
}

func num(row domain.Row, col string) (float64, bool) {
	switch v := row[col].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func text(row domain.Row, col string) string {
	s, _ := row[col].(string)
	return s
}
