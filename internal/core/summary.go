package core

// MonthlyTrendPoint is one calendar month of the cash-flow trend.
type MonthlyTrendPoint struct {
	Month       string  `json:"month"`
	Revenue     float64 `json:"revenue"`
	Expense     float64 `json:"expense"`
	NetCashFlow float64 `json:"net_cash_flow"`
}

// Summary is the backend-computed overview of a user's books.
type Summary struct {
	TotalRevenue  float64             `json:"total_revenue"`
	TotalExpense  float64             `json:"total_expense"`
	NetProfit     float64             `json:"net_profit"`
	MarginPercent float64             `json:"margin_percent"`
	MonthlyTrend  []MonthlyTrendPoint `json:"monthly_trend"`
	Insights      []string            `json:"insights"`
}

type HealthScore struct {
	HealthScore                float64 `json:"health_score"`
	ProfitMarginComponent      float64 `json:"profit_margin_component"`
	CashFlowStabilityComponent float64 `json:"cash_flow_stability_component"`
	ExpenseEfficiencyComponent float64 `json:"expense_efficiency_component"`
	Interpretation             string  `json:"interpretation"`
}

type RecurringExpenseItem struct {
	Category             string  `json:"category"`
	AverageMonthlyAmount float64 `json:"average_monthly_amount"`
	ActiveMonths         int     `json:"active_months"`
}

type ExpenseIntelligence struct {
	RecurringExpenses []RecurringExpenseItem `json:"recurring_expenses"`
	Recommendations   []string               `json:"recommendations"`
}

type PredictionPoint struct {
	Month             string  `json:"month"`
	PredictedCashFlow float64 `json:"predicted_cash_flow"`
}

// Prediction is a cash-flow forecast. DeficitRiskMonths counts forecast
// months with a negative projected cash flow.
type Prediction struct {
	ModelUsed         string            `json:"model_used"`
	HorizonMonths     int               `json:"horizon_months"`
	DeficitRiskMonths int               `json:"deficit_risk_months"`
	Points            []PredictionPoint `json:"points"`
}

// PredictionHorizons lists the forecast lengths offered on the dashboard.
var PredictionHorizons = []int{3, 6, 9, 12}

// DefaultHorizon is the forecast length used until the user picks another.
const DefaultHorizon = 6

// ParseHorizon accepts only the offered horizons and falls back to the default.
func ParseHorizon(months int) int {
	for _, h := range PredictionHorizons {
		if h == months {
			return months
		}
	}
	return DefaultHorizon
}

// ParsePredictionModel returns Arima only for "arima"; everything else is Linear.
func ParsePredictionModel(s string) PredictionModel {
	if PredictionModel(s) == Arima {
		return Arima
	}
	return Linear
}
