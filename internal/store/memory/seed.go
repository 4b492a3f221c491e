package memory

import "doradori/backend/internal/domain"

// NewSeeded returns a store with a small demo catalogue for running the
// dashboard without a database.
func NewSeeded() *Store {
	return New(seedStyles()...)
}

type seedStyle struct {
	id, name, category, color, fabric string
	launch                            string
	atsMyntra, atsNykaa               int64
	salesMyntra, salesNykaa           int64
	priceMyntra, priceNykaa, mrp      float64
	returnsMyntra, returnsNykaa       int64
	returnPct                         float64
	adsPlatform                       string
	clicks, impressions               int64
	adSpend                           float64
	fabricAvailable, fabricYield      float64
	qtyMyntra, qtyNykaa               [4]int64
}

func seedStyles() []domain.Row {
	seeds := []seedStyle{
		{
			id: "DD-DR-001", name: "Floral Kurta Set", category: "Kurta Sets", color: "Rose", fabric: "Cotton Voile",
			launch: "2025-06-12", atsMyntra: 18, atsNykaa: 12, salesMyntra: 96, salesNykaa: 54,
			priceMyntra: 1899, priceNykaa: 1999, mrp: 2999, returnsMyntra: 9, returnsNykaa: 4, returnPct: 8.7,
			adsPlatform: "Meta", clicks: 5400, impressions: 182000, adSpend: 42000,
			fabricAvailable: 150, fabricYield: 2.4,
			qtyMyntra: [4]int64{6, 2, 7, 3}, qtyNykaa: [4]int64{4, 3, 5, 0},
		},
		{
			id: "DD-CO-045", name: "Cotton Co-ord", category: "Co-ords", color: "Sage", fabric: "Cotton Cambric",
			launch: "2025-04-02", atsMyntra: 64, atsNykaa: 40, salesMyntra: 38, salesNykaa: 51,
			priceMyntra: 1499, priceNykaa: 1449, mrp: 2499, returnsMyntra: 6, returnsNykaa: 5, returnPct: 12.4,
			adsPlatform: "Google", clicks: 2100, impressions: 90500, adSpend: 18500,
			fabricAvailable: 420, fabricYield: 2.1,
			qtyMyntra: [4]int64{14, 18, 20, 12}, qtyNykaa: [4]int64{10, 12, 10, 8},
		},
		{
			id: "DD-DR-023", name: "Silk Maxi Dress", category: "Dresses", color: "Emerald", fabric: "Silk Crepe",
			launch: "2025-08-20", atsMyntra: 9, atsNykaa: 6, salesMyntra: 72, salesNykaa: 30,
			priceMyntra: 3299, priceNykaa: 3399, mrp: 4999, returnsMyntra: 11, returnsNykaa: 3, returnPct: 13.7,
			adsPlatform: "Meta", clicks: 3900, impressions: 120400, adSpend: 36000,
			fabricAvailable: 95, fabricYield: 3.2,
			qtyMyntra: [4]int64{4, 0, 0, 5}, qtyNykaa: [4]int64{3, 1, 2, 0},
		},
		{
			id: "DD-KU-089", name: "Printed Kurta", category: "Kurtas", color: "Indigo", fabric: "Cotton Voile",
			launch: "2025-02-14", atsMyntra: 120, atsNykaa: 85, salesMyntra: 44, salesNykaa: 39,
			priceMyntra: 999, priceNykaa: 1049, mrp: 1799, returnsMyntra: 3, returnsNykaa: 2, returnPct: 6.0,
			adsPlatform: "Google", clicks: 1500, impressions: 64000, adSpend: 9000,
			fabricAvailable: 150, fabricYield: 1.8,
			qtyMyntra: [4]int64{30, 35, 32, 23}, qtyNykaa: [4]int64{20, 25, 22, 18},
		},
		{
			id: "DD-TP-012", name: "Linen Shirt Top", category: "Tops", color: "White", fabric: "Linen",
			launch: "2025-07-01", atsMyntra: 22, atsNykaa: 14, salesMyntra: 58, salesNykaa: 61,
			priceMyntra: 1299, priceNykaa: 1299, mrp: 1999, returnsMyntra: 7, returnsNykaa: 6, returnPct: 10.9,
			adsPlatform: "Influencer", clicks: 0, impressions: 45000, adSpend: 0,
			fabricAvailable: 260, fabricYield: 1.5,
			qtyMyntra: [4]int64{5, 7, 6, 4}, qtyNykaa: [4]int64{3, 4, 5, 2},
		},
		{
			id: "DD-DR-031", name: "Tiered Midi Dress", category: "Dresses", color: "Mustard", fabric: "Rayon",
			launch: "2024-11-18", atsMyntra: 0, atsNykaa: 0, salesMyntra: 0, salesNykaa: 0,
			priceMyntra: 1799, priceNykaa: 1849, mrp: 2799, returnPct: 0,
			fabricAvailable: 80, fabricYield: 2.6,
		},
	}

	rows := make([]domain.Row, 0, len(seeds))
	for _, s := range seeds {
		row := domain.Row{
			domain.ColStyleID:              s.id,
			domain.ColStyleName:            s.name,
			domain.ColCategory:             s.category,
			"launch_date":                  s.launch,
			"color":                        s.color,
			domain.ColFabricType:           s.fabric,
			"listed_myntra":                true,
			"listed_nykaa":                 true,
			"listed_quantity":              s.atsMyntra + s.atsNykaa + s.salesMyntra + s.salesNykaa,
			domain.ColAtsPooled:            s.atsMyntra + s.atsNykaa,
			domain.ColOneMonthTotalSales:   s.salesMyntra + s.salesNykaa,
			"mrp":                          s.mrp,
			"discount_percent_myntra":      discountPercent(s.mrp, s.priceMyntra),
			"discount_percent_nykaa":       discountPercent(s.mrp, s.priceNykaa),
			domain.ColTotalReturnUnits:     s.returnsMyntra + s.returnsNykaa,
			domain.ColReturnAveragePercent: s.returnPct,
			domain.ColFabricAvailable:      s.fabricAvailable,
			domain.ColFabricYield:          s.fabricYield,
			domain.ColFabricYieldN(1):      s.fabricYield,
		}
		for platform, v := range map[string]struct {
			ats, sales, returns int64
			price               float64
			qty                 [4]int64
		}{
			domain.PlatformMyntra: {s.atsMyntra, s.salesMyntra, s.returnsMyntra, s.priceMyntra, s.qtyMyntra},
			domain.PlatformNykaa:  {s.atsNykaa, s.salesNykaa, s.returnsNykaa, s.priceNykaa, s.qtyNykaa},
		} {
			row[domain.ColAts(platform)] = v.ats
			row[domain.ColOneMonthSales(platform)] = v.sales
			row[domain.ColReturnUnits(platform)] = v.returns
			row[domain.ColPrice(platform)] = v.price
			for i, size := range domain.Sizes {
				row[domain.ColQty(platform, size)] = v.qty[i]
				// spread sales across the curve in a fixed 2:3:3:2 ratio
				row[domain.ColSold(platform, size)] = v.sales * []int64{2, 3, 3, 2}[i] / 10
			}
		}
		if s.adsPlatform != "" {
			row[domain.ColAdsPlatform] = s.adsPlatform
			row[domain.ColClicks] = s.clicks
			row["impressions"] = s.impressions
			row[domain.ColAdSpend] = s.adSpend
		}
		rows = append(rows, row)
	}
	return rows
}

func discountPercent(mrp float64, price float64) float64 {
	if mrp <= 0 {
		return 0
	}
	return domain.RoundHalfUp(100*(mrp-price)/mrp, 1)
}
