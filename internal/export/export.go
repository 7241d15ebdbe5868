package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/smukkama/energy-monitor/internal/dashboard"
)

const timeframeFormat = "2006-01-02 15:04"

// Reading is one exported row.
type Reading struct {
	Time  string  `json:"time"`
	Watts float64 `json:"watts"`
	KWh   float64 `json:"kWh"`
	Cost  float64 `json:"cost"`
}

// Summary carries the window totals appended to every export.
type Summary struct {
	PeakWatts float64 `json:"peakWatts"`
	AvgWatts  float64 `json:"avgWatts"`
	TotalKWh  float64 `json:"totalKWh"`
	TotalCost float64 `json:"totalCost"`
}

// Document is the user-facing export of one historical window.
type Document struct {
	Device    string    `json:"device"`
	Timeframe string    `json:"timeframe"`
	Timestamp time.Time `json:"timestamp"`
	Readings  []Reading `json:"readings"`
	Summary   Summary   `json:"summary"`
}

// BuildDocument converts a historical view into its export form.
func BuildDocument(view *dashboard.HistoricalView, now time.Time) *Document {
	doc := &Document{
		Device:    view.Device.Name,
		Timeframe: fmt.Sprintf("%s to %s", view.Start.Format(timeframeFormat), view.End.Format(timeframeFormat)),
		Timestamp: now,
		Readings:  make([]Reading, 0, len(view.Readings)),
		Summary: Summary{
			PeakWatts: view.Stats.MaxWatts,
			AvgWatts:  view.Stats.AvgWatts,
			TotalKWh:  view.Stats.TotalKWh,
			TotalCost: view.Stats.TotalCost,
		},
	}
	if doc.Device == "" {
		doc.Device = view.Device.ID
	}

	for _, r := range view.Readings {
		doc.Readings = append(doc.Readings, Reading{
			Time:  r.Timestamp.Format(time.RFC3339),
			Watts: r.Watts,
			KWh:   r.KWh,
			Cost:  r.Cost,
		})
	}

	return doc
}

// WriteJSON renders the document as indented JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

// WriteCSV renders the document as CSV: the reading rows, a blank line,
// then the summary rows.
func WriteCSV(w io.Writer, doc *Document) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"Time", "Watts", "kWh", "Cost"}); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, r := range doc.Readings {
		row := []string{
			r.Time,
			formatFloat(r.Watts),
			formatFloat(r.KWh),
			formatFloat(r.Cost),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}

	summary := [][]string{
		{""},
		{"Summary"},
		{"Peak Watts", formatFloat(doc.Summary.PeakWatts)},
		{"Average Watts", formatFloat(doc.Summary.AvgWatts)},
		{"Total kWh", formatFloat(doc.Summary.TotalKWh)},
		{"Total Cost", formatFloat(doc.Summary.TotalCost)},
	}
	for _, row := range summary {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write export summary: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
