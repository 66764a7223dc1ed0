// Package consumption derives cost and efficiency figures for fuel events.
package consumption

import (
	"sort"

	"github.com/marcus/fueltrack/internal/models"
)

// Metrics holds the values derived from one refueling
type Metrics struct {
	TotalCost          float64
	Distance           float64
	AverageConsumption float64 // distance per liter, 0 when undefined
	CostPerUnit        float64 // cost per distance unit, 0 when undefined
}

// Derive computes metrics for a refueling. previous is the equipment's
// prior meter reading, nil when this is its first event.
func Derive(previous *float64, current, liters, pricePerLiter float64) Metrics {
	m := Metrics{TotalCost: liters * pricePerLiter}
	if previous != nil {
		m.Distance = current - *previous
	}
	if m.Distance > 0 && liters > 0 {
		m.AverageConsumption = m.Distance / liters
	}
	if m.Distance > 0 {
		m.CostPerUnit = m.TotalCost / m.Distance
	}
	return m
}

// Apply recomputes the derived fields of ev in place.
func Apply(ev *models.FuelEvent) {
	m := Derive(ev.PreviousReading, ev.CurrentReading, ev.Liters, ev.PricePerLiter)
	ev.TotalCost = m.TotalCost
	ev.AverageConsumption = m.AverageConsumption
	ev.CostPerUnit = m.CostPerUnit
}

// EquipmentSummary aggregates events of one equipment
type EquipmentSummary struct {
	EquipmentID        string
	Events             int
	TotalLiters        float64
	TotalCost          float64
	AverageConsumption float64 // mean over events with a defined value
}

// FuelSummary aggregates events by fuel type
type FuelSummary struct {
	FuelType     string
	TotalLiters  float64
	TotalCost    float64
	AveragePrice float64
}

// Summarize groups events per equipment, ordered by total cost descending.
func Summarize(events []models.FuelEvent) []EquipmentSummary {
	byID := make(map[string]*EquipmentSummary)
	consumptionCount := make(map[string]int)
	for _, ev := range events {
		s, ok := byID[ev.EquipmentID]
		if !ok {
			s = &EquipmentSummary{EquipmentID: ev.EquipmentID}
			byID[ev.EquipmentID] = s
		}
		s.Events++
		s.TotalLiters += ev.Liters
		s.TotalCost += ev.TotalCost
		if ev.AverageConsumption > 0 {
			s.AverageConsumption += ev.AverageConsumption
			consumptionCount[ev.EquipmentID]++
		}
	}

	out := make([]EquipmentSummary, 0, len(byID))
	for id, s := range byID {
		if n := consumptionCount[id]; n > 0 {
			s.AverageConsumption /= float64(n)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCost != out[j].TotalCost {
			return out[i].TotalCost > out[j].TotalCost
		}
		return out[i].EquipmentID < out[j].EquipmentID
	})
	return out
}

// SummarizeFuel groups events per fuel type, ordered by name.
func SummarizeFuel(events []models.FuelEvent) []FuelSummary {
	byType := make(map[string]*FuelSummary)
	for _, ev := range events {
		s, ok := byType[ev.FuelType]
		if !ok {
			s = &FuelSummary{FuelType: ev.FuelType}
			byType[ev.FuelType] = s
		}
		s.TotalLiters += ev.Liters
		s.TotalCost += ev.TotalCost
	}

	out := make([]FuelSummary, 0, len(byType))
	for _, s := range byType {
		if s.TotalLiters > 0 {
			s.AveragePrice = s.TotalCost / s.TotalLiters
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FuelType < out[j].FuelType })
	return out
}
