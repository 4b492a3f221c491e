package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"doradori/backend/internal/domain"
	"doradori/backend/internal/store"
)

func style(id string, fields domain.Row) domain.Row {
	row := domain.Row{domain.ColStyleID: id, domain.ColStyleName: "Style " + id}
	for k, v := range fields {
		row[k] = v
	}
	return row
}

func TestKPISummarySingleStyle(t *testing.T) {
	s := New(style("S1", domain.Row{
		domain.ColAtsPooled:            int64(10),
		domain.ColOneMonthTotalSales:   int64(50),
		"one_month_sales_myntra":       int64(50),
		"price_myntra":                 float64(100),
		domain.ColReturnAveragePercent: float64(8),
	}))

	kpis, err := s.KPISummary(context.Background(), 30)
	if err != nil {
		t.Fatalf("kpis: %v", err)
	}
	if kpis.TotalActiveStyles != 1 {
		t.Fatalf("expected 1 active style, got %d", kpis.TotalActiveStyles)
	}
	if kpis.StylesAtRiskCount != 1 {
		t.Fatalf("expected 1 style at risk, got %d", kpis.StylesAtRiskCount)
	}
	if kpis.RevenueLast30d != 5000 {
		t.Fatalf("expected revenue 5000, got %v", kpis.RevenueLast30d)
	}
	if kpis.AverageReturnRate != 8 {
		t.Fatalf("expected average return rate 8, got %v", kpis.AverageReturnRate)
	}
	if kpis.AverageReturnRateChange != "+0%" {
		t.Fatalf("unexpected change label %q", kpis.AverageReturnRateChange)
	}
}

func TestKPIAtRiskCountMatchesNaiveScan(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	kpis, err := s.KPISummary(ctx, 30)
	if err != nil {
		t.Fatalf("kpis: %v", err)
	}
	rows, err := s.ListStyles(ctx, "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var naive int64
	for _, row := range rows {
		ats, _ := num(row, domain.ColAtsPooled)
		sales, _ := num(row, domain.ColOneMonthTotalSales)
		cover, ok := num(row, domain.ColTotalDaysOfCover)
		if (ats > 0 || sales > 0) && ok && cover < 30 {
			naive++
		}
	}
	if kpis.StylesAtRiskCount != naive {
		t.Fatalf("at-risk count %d does not match scan %d", kpis.StylesAtRiskCount, naive)
	}
	if kpis.TotalActiveStyles != 5 {
		t.Fatalf("expected the out-of-stock, unsold seed style to be inactive; got %d active", kpis.TotalActiveStyles)
	}
}

func TestTopSKUsOrderingAndExclusions(t *testing.T) {
	records := []domain.Row{
		style("A", domain.Row{domain.ColOneMonthTotalSales: int64(10), domain.ColAtsPooled: int64(1), "one_month_sales_myntra": int64(6), "one_month_sales_nykaa": int64(4)}),
		style("B", domain.Row{domain.ColOneMonthTotalSales: int64(90), domain.ColAtsPooled: int64(0)}),
		style("C", domain.Row{domain.ColOneMonthTotalSales: int64(0), domain.ColAtsPooled: int64(40)}),
		style("D", domain.Row{domain.ColOneMonthTotalSales: int64(30), domain.ColAtsPooled: int64(5), "one_month_sales_myntra": int64(15), "one_month_sales_nykaa": int64(15)}),
	}
	for i := 0; i < 6; i++ {
		records = append(records, style(fmt.Sprintf("E%d", i), domain.Row{domain.ColOneMonthTotalSales: int64(20 + i), domain.ColAtsPooled: int64(3)}))
	}
	s := New(records...)

	top, err := s.TopSKUs(context.Background(), 5)
	if err != nil {
		t.Fatalf("top skus: %v", err)
	}
	if len(top) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].OneMonthSalesUnits > top[i-1].OneMonthSalesUnits {
			t.Fatalf("not sorted descending at %d: %+v", i, top)
		}
	}
	for _, sku := range top {
		if sku.StyleID == "B" || sku.StyleID == "C" {
			t.Fatalf("style %s should be excluded", sku.StyleID)
		}
	}
	if top[0].StyleID != "D" || top[0].PrimaryPlatform != "Nykaa" {
		t.Fatalf("expected D first with tie resolved to Nykaa, got %+v", top[0])
	}

	onlyA, _ := New(records[0]).TopSKUs(context.Background(), 5)
	if len(onlyA) != 1 || onlyA[0].PrimaryPlatform != "Myntra" {
		t.Fatalf("expected Myntra primary platform for A, got %+v", onlyA)
	}
}

func TestStockoutRisksAboveAverageSellers(t *testing.T) {
	// daily sales = sales/30; cover = ats/daily
	s := New(
		style("FAST", domain.Row{domain.ColOneMonthTotalSales: int64(120), domain.ColAtsPooled: int64(40)}),   // daily 4, cover 10
		style("FASTER", domain.Row{domain.ColOneMonthTotalSales: int64(150), domain.ColAtsPooled: int64(50)}), // daily 5, cover 10
		style("SLOW", domain.Row{domain.ColOneMonthTotalSales: int64(15), domain.ColAtsPooled: int64(2)}),     // daily 0.5, cover 4 but below avg
		style("DEEP", domain.Row{domain.ColOneMonthTotalSales: int64(150), domain.ColAtsPooled: int64(500)}),  // daily 5, cover 100
	)

	risks, err := s.StockoutRisks(context.Background(), 30, 5)
	if err != nil {
		t.Fatalf("stockout risks: %v", err)
	}
	if len(risks) != 2 {
		t.Fatalf("expected 2 risks, got %+v", risks)
	}
	if risks[0].StyleID != "FASTER" || risks[1].StyleID != "FAST" {
		t.Fatalf("expected equal cover broken by daily sales desc, got %+v", risks)
	}
	if risks[0].AtsPooled != 50 || risks[0].DailySales != 5 {
		t.Fatalf("unexpected risk payload %+v", risks[0])
	}
}

func TestChannelPerformanceRoas(t *testing.T) {
	s := New(
		style("A", domain.Row{
			domain.ColOneMonthTotalSales: int64(10), "one_month_sales_myntra": int64(10), "price_myntra": float64(1000),
			domain.ColAdsPlatform: "Meta", domain.ColClicks: int64(1000), domain.ColAdSpend: float64(200),
		}),
		style("B", domain.Row{
			domain.ColOneMonthTotalSales: int64(10), "one_month_sales_nykaa": int64(10), "price_nykaa": float64(500),
			domain.ColAdsPlatform: "Influencer", domain.ColClicks: int64(500), domain.ColAdSpend: float64(0),
		}),
		style("C", domain.Row{domain.ColAdsPlatform: "Google", domain.ColClicks: int64(50)}),
	)

	channels, err := s.ChannelPerformance(context.Background(), 0.02)
	if err != nil {
		t.Fatalf("channel performance: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("rows without ad spend must be excluded, got %+v", channels)
	}
	meta := channels[0]
	if meta.AdsPlatform != "Meta" {
		t.Fatalf("expected Meta first by spend, got %+v", channels)
	}
	// AOV = (10*1000 + 10*500) / 20 = 750; orders = 20; revenue = 15000
	if meta.GlobalAOV != 750 || meta.EstimatedOrders != 20 || meta.Revenue30d != 15000 {
		t.Fatalf("unexpected estimates %+v", meta)
	}
	if meta.RoasX == nil || math.Abs(*meta.RoasX-75) > 1e-9 {
		t.Fatalf("expected roas 75, got %v", meta.RoasX)
	}
	if channels[1].RoasX != nil {
		t.Fatalf("expected nil roas for zero spend, got %v", *channels[1].RoasX)
	}
}

func TestReturnRateByCategory(t *testing.T) {
	s := New(
		style("A", domain.Row{domain.ColCategory: "Dresses", domain.ColTotalReturnUnits: int64(1), domain.ColOneMonthTotalSales: int64(7)}),
		style("B", domain.Row{domain.ColCategory: "Dresses", domain.ColTotalReturnUnits: int64(0), domain.ColOneMonthTotalSales: int64(0)}),
		style("C", domain.Row{domain.ColCategory: "Tops", domain.ColTotalReturnUnits: int64(3), domain.ColOneMonthTotalSales: int64(10)}),
		style("D", domain.Row{domain.ColCategory: "Scarves", domain.ColTotalReturnUnits: int64(2)}),
	)

	rates, err := s.ReturnRateByCategory(context.Background())
	if err != nil {
		t.Fatalf("return rates: %v", err)
	}
	want := []domain.CategoryReturnRate{
		{Category: "Tops", ReturnRatePct: 30},
		{Category: "Dresses", ReturnRatePct: 14.3},
		{Category: "Scarves", ReturnRatePct: 0},
	}
	if len(rates) != len(want) {
		t.Fatalf("expected %d categories, got %+v", len(want), rates)
	}
	for i := range want {
		if rates[i] != want[i] {
			t.Fatalf("row %d: expected %+v, got %+v", i, want[i], rates[i])
		}
	}
}

func TestFabricUsageTopFabrics(t *testing.T) {
	s := New(
		style("A", domain.Row{domain.ColFabricType: "Linen", domain.ColOneMonthTotalSales: int64(10), domain.ColFabricYield: 2.0, domain.ColFabricAvailable: 100.0}),
		style("B", domain.Row{domain.ColFabricType: "Linen", domain.ColOneMonthTotalSales: int64(5), domain.ColFabricYield: 2.0, domain.ColFabricAvailable: 140.0}),
		style("C", domain.Row{domain.ColFabricType: "Silk", domain.ColOneMonthTotalSales: int64(4), domain.ColFabricYield: 3.0, domain.ColFabricAvailable: 60.0}),
	)

	usage, err := s.FabricUsage(context.Background(), 4)
	if err != nil {
		t.Fatalf("fabric usage: %v", err)
	}
	if len(usage) != 2 || usage[0].FabricType != "Linen" {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if usage[0].Usage30dMeters != 30 || usage[0].AvailableMeters != 140 {
		t.Fatalf("unexpected linen usage %+v", usage[0])
	}
}

func TestUpdateStyleMatchesTrimmedCaseInsensitive(t *testing.T) {
	s := New(style("ABC-1", domain.Row{"price_myntra": float64(500)}))
	ctx := context.Background()

	id, err := s.UpdateStyle(ctx, " abc-1 ", map[string]any{"price_myntra": float64(999)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if id != "ABC-1" {
		t.Fatalf("expected canonical id ABC-1, got %q", id)
	}
	row, err := s.GetStyle(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row["price_myntra"] != float64(999) {
		t.Fatalf("expected updated price, got %v", row["price_myntra"])
	}
}

func TestUpdateStyleRejectsDerivedAndMissing(t *testing.T) {
	s := New(style("ABC-1", nil))
	ctx := context.Background()

	if _, err := s.UpdateStyle(ctx, "ABC-1", map[string]any{"total_revenue": float64(1)}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for derived column, got %v", err)
	}
	if _, err := s.UpdateStyle(ctx, "NOPE", map[string]any{"price_myntra": float64(1)}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStyleAmbiguousIDIsConflict(t *testing.T) {
	s := New(
		style("ABC-1", domain.Row{"price_myntra": float64(500)}),
		style("abc-1", domain.Row{"price_myntra": float64(600)}),
	)
	ctx := context.Background()

	if _, err := s.UpdateStyle(ctx, "Abc-1", map[string]any{"price_myntra": float64(999)}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	for id, want := range map[string]float64{"ABC-1": 500, "abc-1": 600} {
		row, err := s.GetStyle(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if row["price_myntra"] != want {
			t.Fatalf("expected %s to keep price %v, got %v", id, want, row["price_myntra"])
		}
	}

	id, err := s.UpdateStyle(ctx, "abc-1", map[string]any{"price_myntra": float64(999)})
	if !errors.Is(err, store.ErrConflict) || id != "" {
		t.Fatalf("expected conflict for exact-case id too, got %q %v", id, err)
	}
}

func TestProjectionDerivedColumns(t *testing.T) {
	row := project(domain.Row{
		domain.ColStyleID:            "P1",
		domain.ColOneMonthTotalSales: int64(60),
		domain.ColAtsPooled:          int64(40),
		"one_month_sales_myntra":     int64(60),
		"ats_myntra":                 int64(40),
		"price_myntra":               float64(100),
		"return_units_myntra":        int64(6),
		domain.ColAdSpend:            float64(1200),
		"qty_myntra_s":               int64(1),
		"qty_myntra_m":               int64(8),
		"qty_myntra_l":               int64(0),
		"qty_myntra_xl":              int64(5),
		"sold_myntra_s":              int64(15),
		"sold_myntra_m":              int64(45),
		domain.ColFabricAvailable:    float64(300),
		"fabric_yield_per_unit_1":    float64(2),
		"fabric_available_mtr_2":     float64(50),
		"fabric_yield_per_unit_2":    float64(0.5),
	})

	checks := map[string]any{
		"daily_total_sales":           float64(2),
		"total_days_of_cover":         float64(20),
		"total_sell_through":          float64(60),
		"revenue_myntra":              float64(6000),
		"total_revenue":               float64(6000),
		"roas":                        float64(5),
		"contribution_margin_myntra":  float64(5400),
		"contribution_margin_overall": float64(4200),
		"broken_size_myntra":          "S,L",
		"broken_size_nykaa":           "",
		"size_contribution_myntra_m":  float64(75),
		"fabric_consumed_meters_1":    float64(120),
		"fabric_remaining_meters_1":   float64(180),
		"fabric_remaining_meters_2":   float64(20),
		"fabric_consumed_meters":      float64(150),
		"units_possible_from_fabric":  int64(100),
		"days_of_cover_nykaa":         nil,
		"revenue_nykaa":               nil,
	}
	for col, want := range checks {
		if got := row[col]; got != want {
			t.Fatalf("%s: expected %v (%T), got %v (%T)", col, want, want, got, got)
		}
	}
}
