package domain

// Row is one record of the read projection keyed by column name.
// Values are nil, string, int64, float64 or bool.
type Row map[string]any

func (r Row) StyleID() string {
	id, _ := r[ColStyleID].(string)
	return id
}

type KPISummary struct {
	TotalActiveStyles       int64   `json:"totalActiveStyles"`
	TotalActiveStylesChange string  `json:"totalActiveStylesChange"`
	StylesAtRiskCount       int64   `json:"stylesAtRiskCount"`
	StylesAtRiskChange      string  `json:"stylesAtRiskChange"`
	RevenueLast30d          float64 `json:"revenueLast30d"`
	RevenueLast30dChange    string  `json:"revenueLast30dChange"`
	AverageReturnRate       float64 `json:"averageReturnRate"`
	AverageReturnRateChange string  `json:"averageReturnRateChange"`
}

type TopSKU struct {
	StyleID            string `json:"styleId"`
	StyleName          string `json:"styleName"`
	PrimaryPlatform    string `json:"primaryPlatform"`
	OneMonthSalesUnits int64  `json:"oneMonthSalesUnits"`
}

type StockoutRisk struct {
	StyleID     string  `json:"styleId"`
	StyleName   string  `json:"styleName"`
	DaysOfCover float64 `json:"daysOfCover"`
	AtsPooled   int64   `json:"atsPooled"`
	DailySales  float64 `json:"dailySales"`
}

type ChannelPerformance struct {
	AdsPlatform     string   `json:"adsPlatform"`
	TotalAdSpend    float64  `json:"totalAdSpend"`
	TotalClicks     int64    `json:"totalClicks"`
	GlobalAOV       float64  `json:"globalAov"`
	AssumedCVR      float64  `json:"assumedCvr"`
	EstimatedOrders float64  `json:"estimatedOrders"`
	Revenue30d      float64  `json:"revenue30d"`
	RoasX           *float64 `json:"roasX"`
}

type CategoryReturnRate struct {
	Category      string  `json:"category"`
	ReturnRatePct float64 `json:"returnRatePct"`
}

// UnitsReturnsAggregate is the whole-table daily sell rate and weighted
// return rate that the units-vs-returns trend spreads across its days.
type UnitsReturnsAggregate struct {
	UnitsSoldPerDay float64
	ReturnRatePct   float64
}

type UnitsVsReturnsPoint struct {
	DayLabel      string  `json:"dayLabel"`
	UnitsSold     int64   `json:"unitsSold"`
	ReturnRatePct float64 `json:"returnRatePct"`
}

type FabricUsage struct {
	FabricType      string  `json:"fabricType"`
	AvailableMeters float64 `json:"availableMeters"`
	Usage30dMeters  float64 `json:"usage30dMeters"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type MasterTablePage struct {
	Data       []Row      `json:"data"`
	Total      int        `json:"total"`
	Pagination Pagination `json:"pagination"`
}

type StyleUpdateResponse struct {
	Row Row `json:"row"`
}

type Alert struct {
	StyleID   string `json:"styleId"`
	StyleName string `json:"styleName"`
	Platform  string `json:"platform"`
	AlertType string `json:"alertType"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
}

type AlertFilter struct {
	Severity string
	Platform string
}

type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
