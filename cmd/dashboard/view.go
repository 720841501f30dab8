package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/afroash/corrosion-monitor/internal/history"
	"github.com/afroash/corrosion-monitor/internal/models"
	"github.com/afroash/corrosion-monitor/internal/query"
)

const displayTimeLayout = "2006-01-02 15:04:05"

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// view is everything the dashboard screen shows
type view struct {
	mode     string
	devices  []int
	deviceID int
	metric   models.Metric
	loc      *time.Location

	latest        *models.Reading
	latestErr     error
	latestLoading bool
	latestAt      time.Time

	recent    []models.RecentValue
	recentErr error

	history history.State
	window  []history.PageItem
}

func (v *view) formatTime(t time.Time) string {
	loc := v.loc
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(displayTimeLayout)
}

func (v *view) render(w io.Writer) {
	fmt.Fprintf(w, "Corrosion Monitor [%s]  device %d\n", v.mode, v.deviceID)
	v.renderDevices(w)
	fmt.Fprintln(w)
	v.renderLatest(w)
	fmt.Fprintln(w)
	v.renderRecent(w)
	fmt.Fprintln(w)
	v.renderHistory(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands: n next page, p previous page, <number> go to page, d <id> switch device, m <metric> switch chart, q quit")
}

func (v *view) renderDevices(w io.Writer) {
	if len(v.devices) == 0 {
		fmt.Fprintln(w, "Devices: none")
		return
	}
	parts := make([]string, 0, len(v.devices))
	for _, id := range v.devices {
		if id == v.deviceID {
			parts = append(parts, "["+strconv.Itoa(id)+"]")
		} else {
			parts = append(parts, strconv.Itoa(id))
		}
	}
	fmt.Fprintf(w, "Devices: %s\n", strings.Join(parts, " "))
}

func (v *view) renderLatest(w io.Writer) {
	fmt.Fprintln(w, "Latest reading")
	switch {
	case v.latestLoading && v.latest == nil && v.latestErr == nil:
		fmt.Fprintln(w, "  Loading...")
	case v.latestErr != nil:
		fmt.Fprintf(w, "  Error: %s. Retrying on next refresh.\n", errorText(v.latestErr))
	case v.latest == nil:
		fmt.Fprintln(w, "  No data available for this device.")
	default:
		r := v.latest
		fmt.Fprintf(w, "  Temperature %.2f %s   Humidity %.2f %s   Resistor %.4f %s\n",
			r.Temperature, models.MetricTemperature.Unit(),
			r.Humidity, models.MetricHumidity.Unit(),
			r.Resistor, models.MetricResistor.Unit())
		fmt.Fprintf(w, "  Captured %s\n", v.formatTime(r.CapturedAt))
	}
	if !v.latestAt.IsZero() {
		fmt.Fprintf(w, "  Updated %s\n", v.formatTime(v.latestAt))
	}
}

func (v *view) renderRecent(w io.Writer) {
	fmt.Fprintf(w, "Recent %s\n", v.metric)
	switch {
	case v.recentErr != nil:
		fmt.Fprintf(w, "  Error: %s.\n", errorText(v.recentErr))
	case len(v.recent) == 0:
		fmt.Fprintln(w, "  No data available.")
	default:
		low, high := v.recent[0].Value, v.recent[0].Value
		for _, rv := range v.recent {
			low = min(low, rv.Value)
			high = max(high, rv.Value)
		}
		fmt.Fprintf(w, "  %s  min %.2f max %.2f %s\n", sparkline(v.recent), low, high, v.metric.Unit())
	}
}

func (v *view) renderHistory(w io.Writer) {
	s := v.history
	fmt.Fprintf(w, "History page %d of %d (%d readings)\n", s.CurrentPage, max(s.TotalPages, 1), s.TotalItems)

	switch s.Status {
	case history.StatusLoading:
		fmt.Fprintln(w, "  Loading...")
		return
	case history.StatusError:
		fmt.Fprintf(w, "  Error: %s. Try again.\n", errorText(s.Err))
	case history.StatusEmpty:
		fmt.Fprintln(w, "  No data available for this device.")
	case history.StatusLoaded:
		fmt.Fprintf(w, "  %-8s %12s %10s %10s  %s\n", "ID", "Temperature", "Humidity", "Resistor", "Captured")
		for _, r := range s.Records {
			fmt.Fprintf(w, "  %-8d %12.2f %10.2f %10.4f  %s\n",
				r.ID, r.Temperature, r.Humidity, r.Resistor, v.formatTime(r.CapturedAt))
		}
	}

	if s.TotalPages > 1 {
		fmt.Fprintf(w, "  Pages: %s\n", renderWindow(v.window, s.CurrentPage))
	}
}

func renderWindow(items []history.PageItem, current int) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if !item.IsEllipsis() && item.Page == current {
			parts = append(parts, "["+item.String()+"]")
			continue
		}
		parts = append(parts, item.String())
	}
	return strings.Join(parts, " ")
}

// sparkline draws values oldest to newest; the API returns them newest first
func sparkline(values []models.RecentValue) string {
	if len(values) == 0 {
		return ""
	}
	low, high := values[0].Value, values[0].Value
	for _, v := range values {
		low = min(low, v.Value)
		high = max(high, v.Value)
	}

	var b strings.Builder
	for i := len(values) - 1; i >= 0; i-- {
		level := 0
		if high > low {
			level = int((values[i].Value - low) / (high - low) * float64(len(sparkLevels)-1))
		}
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return query.PublicMessage(err)
}
