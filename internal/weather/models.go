package weather

import "time"

// Report is the normalized weather for one location.
type Report struct {
	Current  Current        `json:"current"`
	Forecast []DailySummary `json:"forecast"`
}

// Current holds present conditions. Temperatures are whole degrees Fahrenheit.
type Current struct {
	Temperature int    `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    int    `json:"humidity"`
	High        int    `json:"high"`
	Low         int    `json:"low"`
}

// DailySummary aggregates one calendar day of forecast entries.
type DailySummary struct {
	Date      string `json:"date"` // 2006-01-02
	Day       string `json:"day"`  // Mon
	High      int    `json:"high"`
	Low       int    `json:"low"`
	Condition string `json:"condition"`
}

// Descriptor is one entry of an upstream "weather" list.
type Descriptor struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

// MainBlock is the upstream "main" object.
type MainBlock struct {
	Temp     float64 `json:"temp"`
	TempMin  float64 `json:"temp_min"`
	TempMax  float64 `json:"temp_max"`
	Humidity float64 `json:"humidity"`
}

// CurrentPayload is the subset of a current-conditions response that is consumed.
type CurrentPayload struct {
	Main    MainBlock    `json:"main"`
	Weather []Descriptor `json:"weather"`
}

// ForecastPayload is the subset of a forecast response that is consumed.
type ForecastPayload struct {
	List []ForecastEntry `json:"list"`
}

// ForecastEntry is one timestamped forecast point.
type ForecastEntry struct {
	Dt      int64        `json:"dt"`
	DtTxt   string       `json:"dt_txt"`
	Main    MainBlock    `json:"main"`
	Weather []Descriptor `json:"weather"`
}

const forecastTimeLayout = "2006-01-02 15:04:05"

// Time returns the entry timestamp in UTC, preferring the textual form.
func (e ForecastEntry) Time() (time.Time, bool) {
	if e.DtTxt != "" {
		if ts, err := time.Parse(forecastTimeLayout, e.DtTxt); err == nil {
			return ts.UTC(), true
		}
	}
	if e.Dt > 0 {
		return time.Unix(e.Dt, 0).UTC(), true
	}
	return time.Time{}, false
}
