package dashboard

import (
	"time"

	"unfinial/internal/chart"
	"unfinial/internal/core"
	"unfinial/internal/format"
)

const (
	maxInsights        = 3
	maxRecommendations = 4
)

// View is a rendering snapshot of a Dashboard.
type View struct {
	State  State
	Busy   bool
	Loaded bool

	Months int
	Model  core.PredictionModel

	Summary      *core.Summary
	Health       *core.HealthScore
	Intelligence *core.ExpenseIntelligence
	Prediction   *core.Prediction
	Transactions []core.Transaction
	LoadedAt     time.Time

	Error string
	Toast string

	Chat     []Message
	ChatBusy bool
}

// Insights returns the first few summary insights.
func (v View) Insights() []string {
	if v.Summary == nil {
		return nil
	}
	return head(v.Summary.Insights, maxInsights)
}

// Recommendations returns the first few saving recommendations.
func (v View) Recommendations() []string {
	if v.Intelligence == nil {
		return nil
	}
	return head(v.Intelligence.Recommendations, maxRecommendations)
}

func (v View) RecurringExpenses() []core.RecurringExpenseItem {
	if v.Intelligence == nil {
		return nil
	}
	return v.Intelligence.RecurringExpenses
}

// TrendMonths is the number of months in the cash flow trend.
func (v View) TrendMonths() int {
	if v.Summary == nil {
		return 0
	}
	return len(v.Summary.MonthlyTrend)
}

// TrendChart plots monthly net cash flow.
func (v View) TrendChart() chart.Chart {
	var pts []chart.Point
	if v.Summary != nil {
		for _, p := range v.Summary.MonthlyTrend {
			pts = append(pts, chart.Point{Label: format.MonthLabel(p.Month), Value: p.NetCashFlow})
		}
	}
	return chart.Render(pts, chart.DefaultHeight)
}

// PredictionChart plots the forecast cash flow.
func (v View) PredictionChart() chart.Chart {
	var pts []chart.Point
	if v.Prediction != nil {
		for _, p := range v.Prediction.Points {
			pts = append(pts, chart.Point{Label: format.MonthLabel(p.Month), Value: p.PredictedCashFlow})
		}
	}
	return chart.Render(pts, chart.DefaultHeight)
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
