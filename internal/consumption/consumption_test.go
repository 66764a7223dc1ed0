package consumption

import (
	"math"
	"testing"

	"github.com/marcus/fueltrack/internal/models"
)

func ptr(v float64) *float64 { return &v }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		previous *float64
		current  float64
		liters   float64
		price    float64
		want     Metrics
	}{
		{
			name:    "first event has no distance",
			current: 1000, liters: 50, price: 6,
			want: Metrics{TotalCost: 300},
		},
		{
			name:     "with predecessor",
			previous: ptr(1000), current: 1500, liters: 50, price: 6,
			want: Metrics{TotalCost: 300, Distance: 500, AverageConsumption: 10, CostPerUnit: 0.6},
		},
		{
			name:     "zero liters leaves consumption undefined",
			previous: ptr(1000), current: 1200, liters: 0, price: 6,
			want: Metrics{TotalCost: 0, Distance: 200, CostPerUnit: 0},
		},
		{
			name:     "meter went backwards",
			previous: ptr(1200), current: 1100, liters: 20, price: 5,
			want: Metrics{TotalCost: 100, Distance: -100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.previous, tt.current, tt.liters, tt.price)
			if !approx(got.TotalCost, tt.want.TotalCost) ||
				!approx(got.Distance, tt.want.Distance) ||
				!approx(got.AverageConsumption, tt.want.AverageConsumption) ||
				!approx(got.CostPerUnit, tt.want.CostPerUnit) {
				t.Errorf("Derive() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	ev := &models.FuelEvent{PreviousReading: ptr(100), CurrentReading: 400, Liters: 30, PricePerLiter: 5.5}
	Apply(ev)
	if !approx(ev.TotalCost, 165) {
		t.Errorf("TotalCost = %v, want 165", ev.TotalCost)
	}
	if !approx(ev.AverageConsumption, 10) {
		t.Errorf("AverageConsumption = %v, want 10", ev.AverageConsumption)
	}
	if !approx(ev.CostPerUnit, 0.55) {
		t.Errorf("CostPerUnit = %v, want 0.55", ev.CostPerUnit)
	}
}

func TestSummarize(t *testing.T) {
	events := []models.FuelEvent{
		{EquipmentID: "a", Liters: 10, TotalCost: 60, AverageConsumption: 8, FuelType: "Diesel S10"},
		{EquipmentID: "a", Liters: 20, TotalCost: 120, AverageConsumption: 0, FuelType: "Diesel S10"},
		{EquipmentID: "a", Liters: 10, TotalCost: 60, AverageConsumption: 12, FuelType: "Diesel S10"},
		{EquipmentID: "b", Liters: 5, TotalCost: 35, FuelType: "Gasolina"},
	}

	got := Summarize(events)
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].EquipmentID != "a" {
		t.Errorf("expected highest cost first, got %s", got[0].EquipmentID)
	}
	if got[0].Events != 3 || !approx(got[0].TotalLiters, 40) || !approx(got[0].TotalCost, 240) {
		t.Errorf("unexpected totals for a: %+v", got[0])
	}
	if !approx(got[0].AverageConsumption, 10) {
		t.Errorf("mean consumption should skip undefined values, got %v", got[0].AverageConsumption)
	}

	fuel := SummarizeFuel(events)
	if len(fuel) != 2 || fuel[0].FuelType != "Diesel S10" {
		t.Fatalf("unexpected fuel summary: %+v", fuel)
	}
	if !approx(fuel[0].AveragePrice, 6) {
		t.Errorf("AveragePrice = %v, want 6", fuel[0].AveragePrice)
	}
}
