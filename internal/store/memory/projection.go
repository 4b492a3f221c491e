package memory

import (
	"math"
	"strings"

	"doradori/backend/internal/domain"
)

const (
	salesWindowDays = 30
	// sizes at or below this many units count as broken when another
	// size of the same platform is still above it
	brokenSizeUnits = 2
	fabricSlots     = 3
)

// project computes the read-projection row for a base record, mirroring
// the inventory view in schema.sql.
func project(base domain.Row) domain.Row {
	row := make(domain.Row, len(domain.Columns))
	for _, col := range domain.Columns {
		if col.Kind == domain.KindDerived {
			continue
		}
		row[col.Name] = base[col.Name]
	}

	totalSales, hasTotalSales := num(base, domain.ColOneMonthTotalSales)
	atsPooled, hasAtsPooled := num(base, domain.ColAtsPooled)

	dailyTotal := nullable(totalSales/salesWindowDays, hasTotalSales)
	row[domain.ColDailyTotalSales] = dailyTotal
	row[domain.ColTotalDaysOfCover] = ratio(atsPooled, hasAtsPooled, dailyTotal)
	row["total_sell_through"] = percentOf(totalSales, hasTotalSales, atsPooled, hasAtsPooled)

	revenueTotal := 0.0
	revenueKnown := false
	cmTotal := 0.0
	cmKnown := false
	for _, p := range domain.Platforms {
		sales, hasSales := num(base, domain.ColOneMonthSales(p))
		ats, hasAts := num(base, domain.ColAts(p))
		price, hasPrice := num(base, domain.ColPrice(p))
		returns, hasReturns := num(base, domain.ColReturnUnits(p))

		daily := nullable(sales/salesWindowDays, hasSales)
		row[domain.ColDailySales(p)] = daily
		row[domain.ColDaysOfCover(p)] = ratio(ats, hasAts, daily)
		row[domain.ColSellThrough(p)] = percentOf(sales, hasSales, ats, hasAts)
		row[domain.ColBrokenSize(p)] = brokenSizes(base, p)

		revenue := nullable(sales*price, hasSales && hasPrice)
		row[domain.ColRevenue(p)] = revenue
		if revenue != nil {
			revenueTotal += sales * price
			revenueKnown = true
		}

		cm := nullable(sales*price-returns*price, hasSales && hasPrice && hasReturns)
		row[domain.ColContribution(p)] = cm
		if cm != nil {
			cmTotal += sales*price - returns*price
			cmKnown = true
		}

		soldTotal := 0.0
		for _, size := range domain.Sizes {
			if sold, ok := num(base, domain.ColSold(p, size)); ok {
				soldTotal += sold
			}
		}
		for _, size := range domain.Sizes {
			sold, ok := num(base, domain.ColSold(p, size))
			row[domain.ColSizeContribution(p, size)] = nullable(100*sold/soldTotal, ok && soldTotal > 0)
		}
	}

	row[domain.ColTotalRevenue] = nullable(revenueTotal, revenueKnown)
	adSpend, hasAdSpend := num(base, domain.ColAdSpend)
	row["roas"] = nullable(revenueTotal/adSpend, revenueKnown && hasAdSpend && adSpend != 0)
	if hasAdSpend {
		cmTotal -= adSpend
	}
	row["contribution_margin_overall"] = nullable(cmTotal, cmKnown)

	consumedTotal := 0.0
	consumedKnown := false
	unitsPossible := math.Inf(1)
	for i := 1; i <= fabricSlots; i++ {
		available, hasAvailable := num(base, domain.ColFabricAvailableN(i))
		yield, hasYield := num(base, domain.ColFabricYieldN(i))

		consumed := nullable(totalSales*yield, hasTotalSales && hasYield)
		row[domain.ColFabricConsumedN(i)] = consumed
		if consumed != nil {
			consumedTotal += totalSales * yield
			consumedKnown = true
		}
		row[domain.ColFabricRemainingN(i)] = nullable(available-totalSales*yield, hasAvailable && consumed != nil)

		if hasAvailable && hasYield && yield > 0 {
			unitsPossible = math.Min(unitsPossible, math.Floor(available/yield))
		}
	}
	row["fabric_consumed_meters"] = nullable(consumedTotal, consumedKnown)
	if math.IsInf(unitsPossible, 1) {
		row["units_possible_from_fabric"] = nil
	} else {
		row["units_possible_from_fabric"] = int64(unitsPossible)
	}

	return row
}

func brokenSizes(base domain.Row, platform string) string {
	var low []string
	healthy := false
	for _, size := range domain.Sizes {
		qty, ok := num(base, domain.ColQty(platform, size))
		if !ok {
			continue
		}
		if qty <= brokenSizeUnits {
			low = append(low, strings.ToUpper(size))
		} else {
			healthy = true
		}
	}
	if !healthy {
		return ""
	}
	return strings.Join(low, ",")
}

func ratio(numerator float64, ok bool, denominator any) any {
	d, isNum := denominator.(float64)
	if !ok || !isNum || d == 0 {
		return nil
	}
	return numerator / d
}

func percentOf(sold float64, hasSold bool, remaining float64, hasRemaining bool) any {
	if !hasSold || !hasRemaining || sold+remaining == 0 {
		return nil
	}
	return 100 * sold / (sold + remaining)
}

func nullable(v float64, ok bool) any {
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
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
