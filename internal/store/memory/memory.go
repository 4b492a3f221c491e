package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"doradori/backend/internal/domain"
	"doradori/backend/internal/store"
)

// Store keeps base inventory records in memory and serves reads from a
// projection computed on the fly, so derived columns always reflect the
// latest write.
type Store struct {
	mu     sync.RWMutex
	styles map[string]domain.Row
}

func New(records ...domain.Row) *Store {
	s := &Store{styles: make(map[string]domain.Row, len(records))}
	for _, record := range records {
		id := strings.TrimSpace(record.StyleID())
		if id == "" {
			continue
		}
		base := make(domain.Row, len(record))
		for name, value := range record {
			if domain.IsDerived(name) {
				continue
			}
			base[name] = value
		}
		base[domain.ColStyleID] = id
		s.styles[id] = base
	}
	return s
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// snapshot returns projected rows ordered by style_id.
func (s *Store) snapshot() []domain.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.Row, 0, len(s.styles))
	for _, base := range s.styles {
		rows = append(rows, project(base))
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].StyleID() < rows[j].StyleID()
	})
	return rows
}

func (s *Store) KPISummary(_ context.Context, riskCoverDays float64) (domain.KPISummary, error) {
	summary := domain.KPISummary{
		TotalActiveStylesChange: "+0",
		StylesAtRiskChange:      "+0",
		RevenueLast30dChange:    "+0",
		AverageReturnRateChange: "+0%",
	}

	active := make(map[string]struct{})
	returnSum, returnCount := 0.0, 0
	for _, row := range s.snapshot() {
		ats, _ := num(row, domain.ColAtsPooled)
		sales, _ := num(row, domain.ColOneMonthTotalSales)
		if ats <= 0 && sales <= 0 {
			continue
		}
		active[row.StyleID()] = struct{}{}

		if cover, ok := num(row, domain.ColTotalDaysOfCover); ok && cover < riskCoverDays {
			summary.StylesAtRiskCount++
		}
		if revenue, ok := num(row, domain.ColTotalRevenue); ok {
			summary.RevenueLast30d += revenue
		}
		if rate, ok := num(row, domain.ColReturnAveragePercent); ok && sales > 0 {
			returnSum += rate
			returnCount++
		}
	}
	summary.TotalActiveStyles = int64(len(active))
	if returnCount > 0 {
		summary.AverageReturnRate = returnSum / float64(returnCount)
	}
	return summary, nil
}

func (s *Store) TopSKUs(_ context.Context, limit int) ([]domain.TopSKU, error) {
	out := make([]domain.TopSKU, 0, limit)
	for _, row := range s.snapshot() {
		sales, _ := num(row, domain.ColOneMonthTotalSales)
		ats, _ := num(row, domain.ColAtsPooled)
		if sales <= 0 || ats <= 0 {
			continue
		}
		myntra, _ := num(row, domain.ColOneMonthSales(domain.PlatformMyntra))
		nykaa, _ := num(row, domain.ColOneMonthSales(domain.PlatformNykaa))
		out = append(out, domain.TopSKU{
			StyleID:            row.StyleID(),
			StyleName:          text(row, domain.ColStyleName),
			PrimaryPlatform:    primaryPlatform(myntra, nykaa),
			OneMonthSalesUnits: int64(sales),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OneMonthSalesUnits > out[j].OneMonthSalesUnits
	})
	return truncate(out, limit), nil
}

func primaryPlatform(myntraSales float64, nykaaSales float64) string {
	if myntraSales > nykaaSales {
		return "Myntra"
	}
	return "Nykaa"
}

func (s *Store) StockoutRisks(_ context.Context, riskCoverDays float64, limit int) ([]domain.StockoutRisk, error) {
	rows := s.snapshot()

	dailySum, dailyCount := 0.0, 0
	for _, row := range rows {
		if daily, ok := num(row, domain.ColDailyTotalSales); ok && daily > 0 {
			dailySum += daily
			dailyCount++
		}
	}
	if dailyCount == 0 {
		return []domain.StockoutRisk{}, nil
	}
	avgDaily := dailySum / float64(dailyCount)

	out := make([]domain.StockoutRisk, 0, limit)
	for _, row := range rows {
		cover, hasCover := num(row, domain.ColTotalDaysOfCover)
		daily, _ := num(row, domain.ColDailyTotalSales)
		if !hasCover || cover >= riskCoverDays || daily <= 0 || daily < avgDaily {
			continue
		}
		ats, _ := num(row, domain.ColAtsPooled)
		out = append(out, domain.StockoutRisk{
			StyleID:     row.StyleID(),
			StyleName:   text(row, domain.ColStyleName),
			DaysOfCover: cover,
			AtsPooled:   int64(ats),
			DailySales:  daily,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DaysOfCover != out[j].DaysOfCover {
			return out[i].DaysOfCover < out[j].DaysOfCover
		}
		return out[i].DailySales > out[j].DailySales
	})
	return truncate(out, limit), nil
}

func (s *Store) ChannelPerformance(_ context.Context, assumedCVR float64) ([]domain.ChannelPerformance, error) {
	rows := s.snapshot()

	platformRevenue, totalUnits := 0.0, 0.0
	for _, row := range rows {
		if sales, ok := num(row, domain.ColOneMonthTotalSales); ok {
			totalUnits += sales
		}
		for _, p := range domain.Platforms {
			sales, _ := num(row, domain.ColOneMonthSales(p))
			price, _ := num(row, domain.ColPrice(p))
			platformRevenue += sales * price
		}
	}
	aov := 0.0
	if totalUnits != 0 {
		aov = platformRevenue / totalUnits
	}

	byPlatform := make(map[string]*domain.ChannelPerformance)
	order := make([]string, 0, 4)
	for _, row := range rows {
		spend, ok := num(row, domain.ColAdSpend)
		if !ok {
			continue
		}
		platform := text(row, domain.ColAdsPlatform)
		agg, exists := byPlatform[platform]
		if !exists {
			agg = &domain.ChannelPerformance{AdsPlatform: platform}
			byPlatform[platform] = agg
			order = append(order, platform)
		}
		agg.TotalAdSpend += spend
		if clicks, ok := num(row, domain.ColClicks); ok {
			agg.TotalClicks += int64(clicks)
		}
	}

	out := make([]domain.ChannelPerformance, 0, len(order))
	for _, platform := range order {
		agg := *byPlatform[platform]
		agg.GlobalAOV = aov
		agg.AssumedCVR = assumedCVR
		agg.EstimatedOrders = float64(agg.TotalClicks) * assumedCVR
		agg.Revenue30d = agg.EstimatedOrders * aov
		if agg.TotalAdSpend != 0 {
			roas := agg.Revenue30d / agg.TotalAdSpend
			agg.RoasX = &roas
		}
		out = append(out, agg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalAdSpend != out[j].TotalAdSpend {
			return out[i].TotalAdSpend > out[j].TotalAdSpend
		}
		return out[i].AdsPlatform < out[j].AdsPlatform
	})
	return out, nil
}

func (s *Store) ReturnRateByCategory(_ context.Context) ([]domain.CategoryReturnRate, error) {
	type totals struct{ returns, sales float64 }
	byCategory := make(map[string]*totals)
	for _, row := range s.snapshot() {
		category := text(row, domain.ColCategory)
		t, ok := byCategory[category]
		if !ok {
			t = &totals{}
			byCategory[category] = t
		}
		returns, _ := num(row, domain.ColTotalReturnUnits)
		sales, _ := num(row, domain.ColOneMonthTotalSales)
		t.returns += returns
		t.sales += sales
	}

	out := make([]domain.CategoryReturnRate, 0, len(byCategory))
	for category, t := range byCategory {
		rate := 0.0
		if t.sales != 0 {
			rate = domain.RoundHalfUp(100*t.returns/t.sales, 1)
		}
		out = append(out, domain.CategoryReturnRate{Category: category, ReturnRatePct: rate})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReturnRatePct != out[j].ReturnRatePct {
			return out[i].ReturnRatePct > out[j].ReturnRatePct
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *Store) UnitsReturnsAggregate(_ context.Context) (domain.UnitsReturnsAggregate, error) {
	var agg domain.UnitsReturnsAggregate
	weightedReturns := 0.0
	for _, row := range s.snapshot() {
		daily, ok := num(row, domain.ColDailyTotalSales)
		if !ok {
			continue
		}
		agg.UnitsSoldPerDay += daily
		if rate, ok := num(row, domain.ColReturnAveragePercent); ok {
			weightedReturns += daily * rate / 100
		}
	}
	if agg.UnitsSoldPerDay != 0 {
		agg.ReturnRatePct = weightedReturns / agg.UnitsSoldPerDay * 100
	}
	return agg, nil
}

func (s *Store) FabricUsage(_ context.Context, limit int) ([]domain.FabricUsage, error) {
	byFabric := make(map[string]*domain.FabricUsage)
	for _, row := range s.snapshot() {
		fabric := text(row, domain.ColFabricType)
		usage, ok := byFabric[fabric]
		if !ok {
			usage = &domain.FabricUsage{FabricType: fabric}
			byFabric[fabric] = usage
		}
		if available, ok := num(row, domain.ColFabricAvailable); ok {
			usage.AvailableMeters = math.Max(usage.AvailableMeters, available)
		}
		sales, hasSales := num(row, domain.ColOneMonthTotalSales)
		yield, hasYield := num(row, domain.ColFabricYield)
		if hasSales && hasYield {
			usage.Usage30dMeters += sales * yield
		}
	}

	out := make([]domain.FabricUsage, 0, len(byFabric))
	for _, usage := range byFabric {
		out = append(out, *usage)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Usage30dMeters != out[j].Usage30dMeters {
			return out[i].Usage30dMeters > out[j].Usage30dMeters
		}
		return out[i].FabricType < out[j].FabricType
	})
	return truncate(out, limit), nil
}

func (s *Store) ListStyles(_ context.Context, search string, limit int) ([]domain.Row, error) {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Row, 0, 64)
	for _, row := range s.snapshot() {
		if needle != "" && !matchesSearch(row, needle) {
			continue
		}
		out = append(out, row)
	}
	return truncate(out, limit), nil
}

func matchesSearch(row domain.Row, needle string) bool {
	for _, col := range []string{domain.ColStyleName, domain.ColStyleID, domain.ColCategory} {
		if strings.Contains(strings.ToLower(text(row, col)), needle) {
			return true
		}
	}
	return false
}

func (s *Store) GetStyle(_ context.Context, styleID string) (domain.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	base, ok := s.styles[styleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return project(base), nil
}

func (s *Store) UpdateStyle(_ context.Context, styleID string, fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: no fields to update", store.ErrInvalidInput)
	}
	for name := range fields {
		if !domain.IsEditable(name) {
			return "", fmt.Errorf("%w: column %s is not writable", store.ErrInvalidInput, name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(styleID))
	var matched []string
	for id := range s.styles {
		if strings.ToLower(strings.TrimSpace(id)) == key {
			matched = append(matched, id)
		}
	}
	switch len(matched) {
	case 0:
		return "", store.ErrNotFound
	case 1:
	default:
		return "", fmt.Errorf("%w: %d rows match style id %q", store.ErrConflict, len(matched), styleID)
	}

	base := s.styles[matched[0]]
	for name, value := range fields {
		base[name] = value
	}
	return matched[0], nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
