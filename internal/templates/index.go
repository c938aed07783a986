package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"bustrack/internal/tracker"
)

// MonitoredRoute is one configured short name and what the directory knows about it.
type MonitoredRoute struct {
	ShortName string
	Route     tracker.RouteInfo
	Found     bool
}

// IndexData is everything the status page shows.
type IndexData struct {
	Ready     bool
	Monitored []MonitoredRoute
	Routes    int
	History   int
	Capacity  int
	Latest    *tracker.HistoryRecord
}

// Index renders the status page.
func Index(d IndexData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		p.raw(`<title>bustrack</title></head><body><main>`)
		p.raw(`<h1>bustrack</h1>`)

		if !d.Ready {
			p.raw(`<p class="status loading">Loading route directory&hellip;</p>`)
		} else {
			p.raw(`<p class="status ok">`)
			p.text(fmt.Sprintf("%d routes loaded, %d of %d history records.", d.Routes, d.History, d.Capacity))
			p.raw(`</p>`)
		}

		p.raw(`<h2>Monitored routes</h2><ul class="routes">`)
		for _, m := range d.Monitored {
			p.raw(`<li>`)
			p.raw(`<strong>`)
			p.text(m.ShortName)
			p.raw(`</strong> `)
			if m.Found {
				p.text(m.Route.LongName)
				p.raw(` <code>`)
				p.text(m.Route.RouteID)
				p.raw(`</code>`)
			} else {
				p.raw(`<em>not in directory</em>`)
			}
			p.raw(`</li>`)
		}
		p.raw(`</ul>`)

		p.raw(`<h2>Latest positions</h2>`)
		switch {
		case d.Latest == nil:
			p.raw(`<p>No polls recorded yet.</p>`)
		case len(d.Latest.Locations) == 0:
			p.raw(`<p>No monitored vehicles in the last poll`)
			p.text(pollTime(d.Latest.Timestamp))
			p.raw(`.</p>`)
		default:
			p.raw(`<p>Polled`)
			p.text(pollTime(d.Latest.Timestamp))
			p.raw(`.</p><table><thead><tr><th>Route</th><th>Vehicle</th><th>Reported</th><th>Map</th></tr></thead><tbody>`)
			for _, v := range d.Latest.Locations {
				p.raw(`<tr><td>`)
				p.text(v.Route.ShortName)
				p.raw(`</td><td>`)
				p.text(v.VehicleID)
				p.raw(`</td><td>`)
				p.text(pollTime(v.Timestamp))
				p.raw(`</td><td><a href="`)
				p.text(string(templ.URL(v.MapLink())))
				p.raw(`" rel="noopener" target="_blank">`)
				p.text(fmt.Sprintf("%.5f, %.5f", v.Lat, v.Lon))
				p.raw(`</a></td></tr>`)
			}
			p.raw(`</tbody></table>`)
		}

		p.raw(`<footer><a href="/history">history</a> &middot; <a href="/current">current</a> &middot; <a href="/health">health</a></footer>`)
		p.raw(`</main></body></html>`)
		return p.err
	})
}

// pollTime formats a unix-seconds string for display, or returns it unchanged.
func pollTime(ts string) string {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return " " + ts
	}
	return " at " + time.Unix(secs, 0).UTC().Format("15:04:05 MST")
}

// printer remembers the first write error so rendering reads top to bottom.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}
