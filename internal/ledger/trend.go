package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"barledger/backend/internal/domain"
)

// trendThresholdPercent is the band around zero within which a series is
// classified as stable.
var trendThresholdPercent = decimal.NewFromInt(10)

// Month is a calendar-month bucket key.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month {
	u := t.UTC()
	return Month{Year: u.Year(), Month: u.Month()}
}

func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

func (m Month) Prev() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Start returns the first instant of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Window returns n consecutive months ending at end, oldest first. n < 1
// yields an empty window.
func Window(end Month, n int) []Month {
	if n < 1 {
		return nil
	}
	months := make([]Month, n)
	cursor := end
	for i := n - 1; i >= 0; i-- {
		months[i] = cursor
		cursor = cursor.Prev()
	}
	return months
}

// MonthlyTotal is one bucket of the trend series: the sum of every ledger
// event in the month, across all locations and counting sessions. This is
// deliberately NOT point-in-time resolved; the trend measures volume counted
// per month, not a single "current" value.
type MonthlyTotal struct {
	Month    Month
	Quantity decimal.Decimal
	Value    decimal.Decimal
}

// MonthlySeries buckets one ingredient's raw events into the given months.
// Months with no events appear as zero entries so the time axis stays
// contiguous. Events outside the window or for other ingredients are ignored.
func MonthlySeries(events []domain.InventorySnapshot, ingredientID string, months []Month) []MonthlyTotal {
	index := make(map[Month]int, len(months))
	series := make([]MonthlyTotal, len(months))
	for i, m := range months {
		index[m] = i
		series[i] = MonthlyTotal{Month: m, Quantity: decimal.Zero, Value: decimal.Zero}
	}

	for _, event := range events {
		if event.IngredientID != ingredientID {
			continue
		}
		i, ok := index[MonthOf(event.SubmittedAt)]
		if !ok {
			continue
		}
		series[i].Quantity = series[i].Quantity.Add(event.Quantity)
		series[i].Value = series[i].Value.Add(event.TotalValue)
	}
	return series
}

// Classify compares the first and last bucket of the series and returns the
// three-way classification plus the percentage change.
//
// This is a two-point trend over the window endpoints, not a regression, so
// it is sensitive to noise in either endpoint month. A first-month total of
// zero forces "stable" at 0% (division by zero has no meaningful percentage),
// as does a window shorter than two months.
func Classify(series []MonthlyTotal) (string, float64) {
	if len(series) < 2 {
		return domain.TrendStable, 0
	}

	first := series[0].Quantity
	last := series[len(series)-1].Quantity
	if first.IsZero() {
		return domain.TrendStable, 0
	}

	change := last.Sub(first).Div(first).Mul(decimal.NewFromInt(100))
	percent, _ := change.Float64()
	if change.Abs().GreaterThan(trendThresholdPercent) {
		if change.IsPositive() {
			return domain.TrendIncreasing, percent
		}
		return domain.TrendDecreasing, percent
	}
	return domain.TrendStable, percent
}

// RankedMover pairs an ingredient with its classified change over a window.
type RankedMover struct {
	IngredientID   string
	Classification string
	ChangePercent  float64
}

// TopMovers classifies every ingredient present in events over the window and
// ranks by descending absolute percentage change, ties broken by ingredient
// id for determinism. limit < 1 returns the full ranking.
func TopMovers(events []domain.InventorySnapshot, months []Month, limit int) []RankedMover {
	seen := make(map[string]struct{})
	for _, event := range events {
		seen[event.IngredientID] = struct{}{}
	}

	movers := make([]RankedMover, 0, len(seen))
	for ingredientID := range seen {
		classification, percent := Classify(MonthlySeries(events, ingredientID, months))
		movers = append(movers, RankedMover{
			IngredientID:   ingredientID,
			Classification: classification,
			ChangePercent:  percent,
		})
	}

	sort.Slice(movers, func(i, j int) bool {
		abs := func(v float64) float64 {
			if v < 0 {
				return -v
			}
			return v
		}
		ai, aj := abs(movers[i].ChangePercent), abs(movers[j].ChangePercent)
		if ai != aj {
			return ai > aj
		}
		return movers[i].IngredientID < movers[j].IngredientID
	})

	if limit > 0 && len(movers) > limit {
		movers = movers[:limit]
	}
	return movers
}
