package weather

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/i474232898/weather-lookup/internal/common"
)

// ForecastDays is the number of daily summaries kept.
const ForecastDays = 5

const unknownCondition = "Unknown"

// ConditionText title-cases the first descriptor, e.g. "partly cloudy" -> "Partly Cloudy".
func ConditionText(ds []Descriptor) string {
	if len(ds) == 0 || strings.TrimSpace(ds[0].Description) == "" {
		return unknownCondition
	}
	// Casers are stateful; one per call.
	return cases.Title(language.English).String(strings.TrimSpace(ds[0].Description))
}

// NormalizeCurrent rounds temperatures and picks the display condition.
func NormalizeCurrent(p CurrentPayload) Current {
	return Current{
		Temperature: common.Round(p.Main.Temp),
		Condition:   ConditionText(p.Weather),
		Humidity:    common.Round(p.Main.Humidity),
		High:        common.Round(p.Main.TempMax),
		Low:         common.Round(p.Main.TempMin),
	}
}

// AggregateForecast groups entries by calendar date and summarizes the first
// ForecastDays dates in chronological order. The dominant condition is the
// most frequent one; ties go to the condition seen first that day.
func AggregateForecast(p ForecastPayload) []DailySummary {
	type dayKey string

	days := make(map[dayKey][]ForecastEntry)
	for _, e := range p.List {
		ts, ok := e.Time()
		if !ok {
			continue
		}
		k := dayKey(ts.Format("2006-01-02"))
		days[k] = append(days[k], e)
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	if len(keys) > ForecastDays {
		keys = keys[:ForecastDays]
	}

	out := make([]DailySummary, 0, len(keys))
	for _, k := range keys {
		entries := days[dayKey(k)]
		ts, _ := entries[0].Time()

		summary := DailySummary{
			Date: k,
			Day:  ts.Format("Mon"),
		}
		for i, e := range entries {
			t := common.Round(e.Main.Temp)
			if i == 0 || t > summary.High {
				summary.High = t
			}
			if i == 0 || t < summary.Low {
				summary.Low = t
			}
		}
		summary.Condition = dominantCondition(entries)
		out = append(out, summary)
	}
	return out
}

func dominantCondition(entries []ForecastEntry) string {
	counts := make(map[string]int)
	var order []string
	for _, e := range entries {
		c := ConditionText(e.Weather)
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	best := unknownCondition
	bestCount := 0
	for _, c := range order {
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best
}
