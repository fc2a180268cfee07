package models

// ComparisonSummary holds the pairwise deltas between the best and worst
// routes in a comparison, for display purposes.
type ComparisonSummary struct {
	// OutputDeltaRaw is best minus worst ToAmount, integer string in
	// smallest units
	OutputDeltaRaw string `json:"output_delta_raw"`
	// TimeDeltaSeconds is slowest minus fastest estimate
	TimeDeltaSeconds int `json:"time_delta_seconds"`
	// CostDeltaUSD is most expensive minus cheapest total cost
	CostDeltaUSD float64 `json:"cost_delta_usd"`
}

// RouteComparison is a derived, read-only view over the routes returned
// for one intent. It is recomputed fresh on every aggregation call and
// never mutated in place.
type RouteComparison struct {
	// Recommended has the highest ToAmount
	Recommended *UnifiedRoute `json:"recommended"`
	// Fastest has the lowest EstimatedTime
	Fastest *UnifiedRoute `json:"fastest"`
	// Cheapest has the lowest TotalGasUSD + TotalFeeUSD
	Cheapest *UnifiedRoute `json:"cheapest"`

	AllRoutes []*UnifiedRoute   `json:"all_routes"`
	Summary   ComparisonSummary `json:"summary"`
}
