package analytics

import (
	"fmt"
)

// Policy constants for the insight rules.
const (
	// BaselineWatts is the idle draw below which a plug is considered off.
	BaselineWatts = 5.0

	// StandbyCeilingWatts bounds the standby-waste band from above. The band
	// is the open interval (BaselineWatts, StandbyCeilingWatts).
	StandbyCeilingWatts = 50.0

	// PeakThresholdWatts marks heavy draw (kettle, heater, tools).
	PeakThresholdWatts = 800.0
)

// Efficiency score penalties, independently evaluated and summed.
const (
	peakPenalty    = 20
	standbyPenalty = 10
	offPeakPenalty = 15
)

// Classification labels, most severe first.
const (
	ClassOffPeakPeakUsage = "off_peak_peak_usage"
	ClassPeakUsage        = "peak_usage"
	ClassAboveAverage     = "above_average"
	ClassStandbyOffPeak   = "standby_waste_off_peak"
	ClassStandbyWaste     = "standby_waste"
	ClassNormal           = "normal"
)

// IsOffPeak reports whether the hour of day falls in the night window
// (23:00 through 05:59).
func IsOffPeak(hour int) bool {
	return hour >= 23 || hour <= 5
}

// IsStandbyWaste reports whether the draw sits in the standby-waste band,
// exclusive on both ends.
func IsStandbyWaste(watts float64) bool {
	return watts > BaselineWatts && watts < StandbyCeilingWatts
}

// EfficiencyScore rates the current draw 0-100. Penalties stack: a 900 W
// reading at 02:00 loses both the peak and the off-peak penalty.
func EfficiencyScore(watts float64, hour int) int {
	score := 100
	if watts > PeakThresholdWatts {
		score -= peakPenalty
	}
	if IsStandbyWaste(watts) {
		score -= standbyPenalty
	}
	if IsOffPeak(hour) && watts > BaselineWatts {
		score -= offPeakPenalty
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// ScoreTier maps a score to its display tier.
func ScoreTier(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 75:
		return "Good"
	case score >= 60:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

// Classify labels the current draw. The most severe matching condition wins.
func Classify(watts float64, hour int, dailyAvgWatts float64) string {
	offPeak := IsOffPeak(hour)
	switch {
	case offPeak && watts > PeakThresholdWatts:
		return ClassOffPeakPeakUsage
	case watts > PeakThresholdWatts:
		return ClassPeakUsage
	case dailyAvgWatts > 0 && watts > dailyAvgWatts && !IsStandbyWaste(watts):
		return ClassAboveAverage
	case offPeak && IsStandbyWaste(watts):
		return ClassStandbyOffPeak
	case IsStandbyWaste(watts):
		return ClassStandbyWaste
	default:
		return ClassNormal
	}
}

// Comparison is the day-over-day result. Without a yesterday baseline there
// is no percentage to report.
type Comparison struct {
	HasBaseline bool
	ChangePct   float64
}

// Compare computes today's energy use relative to yesterday's total.
func Compare(todayKWh float64, yesterday *DayState) Comparison {
	if yesterday == nil || yesterday.TotalKWh <= 0 {
		return Comparison{}
	}
	return Comparison{
		HasBaseline: true,
		ChangePct:   (todayKWh - yesterday.TotalKWh) / yesterday.TotalKWh * 100,
	}
}

// Input carries everything the insight rules look at for one sample.
type Input struct {
	Watts              float64
	Hour               int
	RatePerKWh         float64
	CurrencySymbol     string
	ProjectedDailyCost float64
	DailyCostAlert     float64
	Today              *DayState
	Yesterday          *DayState
}

// Insights is the full derived view for one sample.
type Insights struct {
	EfficiencyScore int
	Tier            string
	Classification  string
	DailyAvgWatts   float64
	DailyTotalKWh   float64
	DailyTotalCost  float64
	IsPeakUsage     bool
	IsStandbyWaste  bool
	IsOffPeakHours  bool
	DayOverDay      Comparison
	Tips            []string
}

// Analyze derives the full insight set for the current sample. Pure: no
// I/O, no clock reads (the caller supplies the hour). A nil Today is
// treated as an empty day rather than panicking.
func Analyze(in Input) Insights {
	if in.Today == nil {
		in.Today = NewDayState()
	}
	dailyAvg := in.Today.AvgWatts()
	score := EfficiencyScore(in.Watts, in.Hour)

	ins := Insights{
		EfficiencyScore: score,
		Tier:            ScoreTier(score),
		Classification:  Classify(in.Watts, in.Hour, dailyAvg),
		DailyAvgWatts:   dailyAvg,
		DailyTotalKWh:   in.Today.TotalKWh,
		DailyTotalCost:  in.Today.TotalCost,
		IsPeakUsage:     in.Watts > PeakThresholdWatts,
		IsStandbyWaste:  IsStandbyWaste(in.Watts),
		IsOffPeakHours:  IsOffPeak(in.Hour),
		DayOverDay:      Compare(in.Today.TotalKWh, in.Yesterday),
	}
	ins.Tips = tips(in, ins)
	return ins
}

// tips runs the advisory rules. Every rule is independent; any subset may
// fire. An empty list is a valid result.
func tips(in Input, ins Insights) []string {
	var out []string

	if ins.IsPeakUsage {
		out = append(out, fmt.Sprintf(
			"High power draw (%.0f W). Consider shifting this load to spread usage through the day.", in.Watts))
	}
	if ins.IsStandbyWaste {
		out = append(out, fmt.Sprintf(
			"Standby waste detected (%.0f W). Switching the device off fully could save energy.", in.Watts))
	}
	if ins.EfficiencyScore < 60 {
		out = append(out, fmt.Sprintf(
			"Efficiency score is %d. Review when and how this device runs.", ins.EfficiencyScore))
	}
	if in.DailyCostAlert > 0 && in.ProjectedDailyCost > in.DailyCostAlert {
		out = append(out, fmt.Sprintf(
			"Projected daily cost %s%.2f exceeds your %s%.2f budget.",
			in.CurrencySymbol, in.ProjectedDailyCost, in.CurrencySymbol, in.DailyCostAlert))
	}
	if ins.IsOffPeakHours && in.Watts > BaselineWatts {
		out = append(out, "Device is drawing power during off-peak night hours. Check it is not left running unintentionally.")
	}
	if in.Today.AfternoonHeavy() {
		out = append(out, "Usage concentrates in the afternoon. Off-peak scheduling could lower cost.")
	}
	if ins.DayOverDay.HasBaseline && ins.DayOverDay.ChangePct > 20 {
		out = append(out, fmt.Sprintf(
			"Usage is up %.0f%% versus yesterday.", ins.DayOverDay.ChangePct))
	}

	return out
}
