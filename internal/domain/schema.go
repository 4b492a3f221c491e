package domain

import "fmt"

type ColumnKind string

const (
	KindKey      ColumnKind = "key"
	KindEditable ColumnKind = "editable"
	KindDerived  ColumnKind = "derived"
)

type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeInteger ColumnType = "integer"
	TypeNumeric ColumnType = "numeric"
	TypeDate    ColumnType = "date"
	TypeBool    ColumnType = "bool"
)

type Column struct {
	Name  string     `json:"name"`
	Group string     `json:"group"`
	Kind  ColumnKind `json:"kind"`
	Type  ColumnType `json:"type"`
}

const (
	PlatformMyntra = "myntra"
	PlatformNykaa  = "nykaa"
)

var (
	Platforms = []string{PlatformMyntra, PlatformNykaa}
	Sizes     = []string{"s", "m", "l", "xl"}
)

const (
	ColStyleID              = "style_id"
	ColStyleName            = "style_name"
	ColCategory             = "category"
	ColFabricType           = "fabric_type"
	ColFabricAvailable      = "fabric_available_mtr"
	ColFabricYield          = "fabric_yield_per_unit"
	ColAtsPooled            = "ats_pooled"
	ColOneMonthTotalSales   = "one_month_total_sales"
	ColTotalReturnUnits     = "total_return_units"
	ColReturnAveragePercent = "return_average_percent"
	ColAdsPlatform          = "ads_platform"
	ColClicks               = "clicks"
	ColAdSpend              = "ad_spend"
	ColDailyTotalSales      = "daily_total_sales"
	ColTotalDaysOfCover     = "total_days_of_cover"
	ColTotalRevenue         = "total_revenue"
)

// Per-platform and per-size column names.

func ColAts(platform string) string           { return "ats_" + platform }
func ColOneMonthSales(platform string) string { return "one_month_sales_" + platform }
func ColPrice(platform string) string         { return "price_" + platform }
func ColReturnUnits(platform string) string   { return "return_units_" + platform }
func ColDailySales(platform string) string    { return "daily_sales_" + platform }
func ColDaysOfCover(platform string) string   { return "days_of_cover_" + platform }
func ColSellThrough(platform string) string   { return "sell_through_" + platform }
func ColBrokenSize(platform string) string    { return "broken_size_" + platform }
func ColRevenue(platform string) string       { return "revenue_" + platform }
func ColContribution(platform string) string  { return "contribution_margin_" + platform }
func ColSold(platform, size string) string    { return "sold_" + platform + "_" + size }
func ColQty(platform, size string) string     { return "qty_" + platform + "_" + size }
func ColSizeContribution(platform, size string) string {
	return "size_contribution_" + platform + "_" + size
}

// ColFabricAvailableN maps fabric slot 1..3 to its availability column;
// slot 1 is the unsuffixed column.
func ColFabricAvailableN(i int) string {
	if i == 1 {
		return ColFabricAvailable
	}
	return fmt.Sprintf("%s_%d", ColFabricAvailable, i)
}

func ColFabricYieldN(i int) string     { return fmt.Sprintf("%s_%d", ColFabricYield, i) }
func ColFabricConsumedN(i int) string  { return fmt.Sprintf("fabric_consumed_meters_%d", i) }
func ColFabricRemainingN(i int) string { return fmt.Sprintf("fabric_remaining_meters_%d", i) }

// Columns is the full StyleInventoryRecord descriptor in projection order.
var Columns = buildColumns()

var columnIndex = indexColumns(Columns)

func buildColumns() []Column {
	cols := make([]Column, 0, 128)
	add := func(group string, kind ColumnKind, typ ColumnType, names ...string) {
		for _, name := range names {
			cols = append(cols, Column{Name: name, Group: group, Kind: kind, Type: typ})
		}
	}

	add("identity", KindKey, TypeText, ColStyleID)
	add("identity", KindEditable, TypeText, ColStyleName, ColCategory)
	add("identity", KindEditable, TypeDate, "launch_date")
	add("identity", KindEditable, TypeText, "color", ColFabricType, "fabric_type_2", "fabric_type_3")

	add("fabric", KindEditable, TypeNumeric,
		ColFabricAvailableN(1), ColFabricAvailableN(2), ColFabricAvailableN(3),
		ColFabricYield, ColFabricYieldN(1), ColFabricYieldN(2), ColFabricYieldN(3))

	add("listing", KindEditable, TypeBool, "listed_myntra", "listed_nykaa")
	add("listing", KindEditable, TypeInteger, "listed_quantity", ColAtsPooled, ColAts(PlatformMyntra), ColAts(PlatformNykaa))

	add("sales", KindEditable, TypeInteger, ColOneMonthTotalSales, ColOneMonthSales(PlatformMyntra), ColOneMonthSales(PlatformNykaa))
	for _, p := range Platforms {
		for _, size := range Sizes {
			add("sales", KindEditable, TypeInteger, ColSold(p, size))
		}
	}
	for _, p := range Platforms {
		for _, size := range Sizes {
			add("sales", KindEditable, TypeInteger, ColQty(p, size))
		}
	}

	add("pricing", KindEditable, TypeNumeric, "mrp", ColPrice(PlatformMyntra), ColPrice(PlatformNykaa),
		"discount_percent_myntra", "discount_percent_nykaa")

	add("returns", KindEditable, TypeInteger, ColTotalReturnUnits, ColReturnUnits(PlatformMyntra), ColReturnUnits(PlatformNykaa))
	add("returns", KindEditable, TypeNumeric, ColReturnAveragePercent)

	add("ads", KindEditable, TypeText, ColAdsPlatform)
	add("ads", KindEditable, TypeInteger, ColClicks, "impressions")
	add("ads", KindEditable, TypeNumeric, ColAdSpend)

	add("derived", KindDerived, TypeNumeric,
		ColDailySales(PlatformMyntra), ColDailySales(PlatformNykaa), ColDailyTotalSales,
		ColDaysOfCover(PlatformMyntra), ColDaysOfCover(PlatformNykaa), ColTotalDaysOfCover,
		ColSellThrough(PlatformMyntra), ColSellThrough(PlatformNykaa), "total_sell_through")
	add("derived", KindDerived, TypeText, ColBrokenSize(PlatformMyntra), ColBrokenSize(PlatformNykaa))
	add("derived", KindDerived, TypeNumeric, "fabric_consumed_meters",
		ColFabricConsumedN(1), ColFabricConsumedN(2), ColFabricConsumedN(3),
		ColFabricRemainingN(1), ColFabricRemainingN(2), ColFabricRemainingN(3))
	add("derived", KindDerived, TypeInteger, "units_possible_from_fabric")
	add("derived", KindDerived, TypeNumeric,
		ColRevenue(PlatformMyntra), ColRevenue(PlatformNykaa), ColTotalRevenue, "roas",
		"contribution_margin_overall", ColContribution(PlatformMyntra), ColContribution(PlatformNykaa))
	for _, p := range Platforms {
		for _, size := range Sizes {
			add("derived", KindDerived, TypeNumeric, ColSizeContribution(p, size))
		}
	}

	return cols
}

func indexColumns(cols []Column) map[string]Column {
	idx := make(map[string]Column, len(cols))
	for _, col := range cols {
		idx[col.Name] = col
	}
	return idx
}

func LookupColumn(name string) (Column, bool) {
	col, ok := columnIndex[name]
	return col, ok
}

// IsEditable reports whether a client may write the column. Unknown,
// key and derived columns are never editable.
func IsEditable(name string) bool {
	col, ok := columnIndex[name]
	return ok && col.Kind == KindEditable
}

func IsDerived(name string) bool {
	col, ok := columnIndex[name]
	return ok && col.Kind == KindDerived
}

func ColumnNames(kind ColumnKind) []string {
	names := make([]string, 0, len(Columns))
	for _, col := range Columns {
		if col.Kind == kind {
			names = append(names, col.Name)
		}
	}
	return names
}
