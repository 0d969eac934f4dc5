package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/maintenance-monitor/internal/logic"
	"github.com/sweeney/maintenance-monitor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"date": logic.FormatDate,
	"usage": func(m status.MonitorSnapshot) string {
		switch m.Type {
		case logic.SensorRuntime:
			return fmt.Sprintf("%.1fh / %.1fh", m.Accumulated.Hours(), m.Interval.Hours())
		case logic.SensorCount:
			return fmt.Sprintf("%d / %d", m.TurnOnCount, m.Threshold)
		}
		return fmt.Sprintf("every %.0fd", m.Interval.Hours()/24)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Maintenance Monitor</title>
<style>
body { font-family: monospace; max-width: 900px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.due { color: red; font-weight: bold; }
.ok { color: green; }
.connected { color: green; }
.disconnected { color: red; }
form { display: inline; }
</style>
</head>
<body>
<h1>Maintenance Monitor</h1>

<h2>Monitors</h2>
<table>
<tr><th>Monitor</th><th>Type</th><th>Device</th><th>Usage</th><th>Last</th><th>Predicted</th><th>Status</th><th></th></tr>
{{range .Monitors}}<tr id="monitor-{{.ID}}">
<td title="{{.Source}}">{{.Name}}</td>
<td>{{.Type}}</td>
<td class="{{if .On}}on{{else}}off{{end}}">{{if .Source}}{{stateOrUnknown .RawState}}{{else}}-{{end}}</td>
<td>{{usage .}}</td>
<td>{{date .LastMaintenance}}</td>
<td>{{if .HasPredicted}}{{date .Predicted}}{{else}}-{{end}}</td>
<td class="{{if .MaintenanceNeeded}}due{{else}}ok{{end}}">{{if .MaintenanceNeeded}}DUE{{else}}ok{{end}}</td>
<td><form method="post" action="/api/monitors/{{.ID}}/reset"><input type="hidden" name="redirect" value="1"><button type="submit">Reset</button></form></td>
</tr>
{{else}}<tr><td colspan="8">No monitors configured</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
