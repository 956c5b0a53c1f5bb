package quota

import (
	"fmt"
	"time"
)

type bucket struct {
	window Window
	key    string
	ttl    time.Duration
}

// buckets returns the counter keys for now, each expiring shortly after its
// window closes.
func buckets(provider string, now time.Time) []bucket {
	return []bucket{
		{
			window: WindowSecond,
			key:    fmt.Sprintf("quota:%s:second:%d", provider, now.Unix()),
			ttl:    2 * time.Second,
		},
		{
			window: WindowMinute,
			key:    fmt.Sprintf("quota:%s:minute:%s", provider, now.Format("1504")),
			ttl:    61 * time.Second,
		},
		{
			window: WindowMonth,
			key:    fmt.Sprintf("quota:%s:month:%s", provider, now.Format("200601")),
			ttl:    daysLeftInMonth(now) * 24 * time.Hour,
		},
	}
}

// daysLeftInMonth counts today through the last day of the month.
func daysLeftInMonth(now time.Time) time.Duration {
	last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	return time.Duration(last - now.Day() + 1)
}
