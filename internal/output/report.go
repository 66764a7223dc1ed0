package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/marcus/fueltrack/internal/consumption"
	"github.com/marcus/fueltrack/internal/models"
)

// ReportInput is what BuildReport summarizes
type ReportInput struct {
	Title     string
	From, To  time.Time // zero means unbounded
	Events    []models.FuelEvent
	Equipment []models.Equipment
}

// BuildReport renders a consumption report as markdown.
func BuildReport(in ReportInput) string {
	eqByID := make(map[string]*models.Equipment, len(in.Equipment))
	for i := range in.Equipment {
		eqByID[in.Equipment[i].ID] = &in.Equipment[i]
	}

	var totalLiters, totalCost float64
	for _, ev := range in.Events {
		totalLiters += ev.Liters
		totalCost += ev.TotalCost
	}

	var sb strings.Builder
	title := in.Title
	if title == "" {
		title = "Fuel report"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if period := formatPeriod(in.From, in.To); period != "" {
		fmt.Fprintf(&sb, "_%s_\n\n", period)
	}

	if len(in.Events) == 0 {
		sb.WriteString("No fuel events recorded.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "- **Events:** %d\n", len(in.Events))
	fmt.Fprintf(&sb, "- **Liters:** %.2f\n", totalLiters)
	fmt.Fprintf(&sb, "- **Total cost:** %s\n", FormatMoney(totalCost))
	if totalLiters > 0 {
		fmt.Fprintf(&sb, "- **Average price:** %s/L\n", FormatMoney(totalCost/totalLiters))
	}

	sb.WriteString("\n## By equipment\n\n")
	sb.WriteString("| Equipment | Events | Liters | Cost | Avg consumption |\n")
	sb.WriteString("|---|---:|---:|---:|---:|\n")
	for _, s := range consumption.Summarize(in.Events) {
		eq := eqByID[s.EquipmentID]
		fmt.Fprintf(&sb, "| %s | %d | %.2f | %s | %s |\n",
			escapeCell(equipmentName(eq)), s.Events, s.TotalLiters, FormatMoney(s.TotalCost),
			FormatConsumption(s.AverageConsumption, eq))
	}

	sb.WriteString("\n## By fuel\n\n")
	sb.WriteString("| Fuel | Liters | Cost | Avg price |\n")
	sb.WriteString("|---|---:|---:|---:|\n")
	for _, s := range consumption.SummarizeFuel(in.Events) {
		fuel := s.FuelType
		if fuel == "" {
			fuel = models.Placeholder
		}
		fmt.Fprintf(&sb, "| %s | %.2f | %s | %s |\n",
			escapeCell(fuel), s.TotalLiters, FormatMoney(s.TotalCost), FormatMoney(s.AveragePrice))
	}

	return sb.String()
}

func formatPeriod(from, to time.Time) string {
	switch {
	case from.IsZero() && to.IsZero():
		return ""
	case to.IsZero():
		return "From " + from.Format("2006-01-02")
	case from.IsZero():
		return "Until " + to.Format("2006-01-02")
	default:
		return fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
