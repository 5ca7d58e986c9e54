package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/temp-actuator/internal/status"
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
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Temp Actuator</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.bad { color: red; }
.pending { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Temp Actuator</h1>

<h2>Last Cycle</h2>
<table>
{{with .Last}}<tr><th>Run</th><td>{{.Run}}</td></tr>
<tr><th>ID</th><td>{{.ID}}</td></tr>
<tr><th>Outcome</th><td id="outcome" class="{{if eq .Outcome "ok"}}ok{{else}}bad{{end}}">{{.Outcome}}</td></tr>
<tr><th>{{$.Config.Field}}</th><td id="reading">{{if .Found}}{{.Value}}{{if .Lenient}} (parsed {{.Reading}}){{end}}{{else}}not found{{end}}</td></tr>
<tr><th>Actuated</th><td>{{if .Written}}yes{{else if .Triggered}}failed{{else}}no{{end}}</td></tr>
<tr><th>Duration</th><td>{{.Duration}}</td></tr>
{{if .Error}}<tr><th>Error</th><td class="bad">{{.Error}}</td></tr>{{end}}
{{else}}<tr><th>Outcome</th><td id="outcome" class="pending">pending</td></tr>
{{end}}</table>

<h2>Schedule</h2>
<table>
<tr><th>Runs</th><td>{{.Schedule.Completed}} / {{.Schedule.Budget}}</td></tr>
<tr><th>State</th><td>{{if .Done}}done{{else}}running{{end}}</td></tr>
<tr><th>Next run</th><td>{{stamp .NextRun}}</td></tr>
<tr><th>Last actuation</th><td>{{stamp .LastActuation}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>OK</th><td>{{.Counts.OK}}</td></tr>
<tr><th>Timeouts</th><td>{{.Counts.Timeouts}}</td></tr>
<tr><th>Incomplete</th><td>{{.Counts.Incomplete}}</td></tr>
<tr><th>Failures</th><td>{{.Counts.Failures}}</td></tr>
<tr><th>Field errors</th><td>{{.Counts.FieldErrors}}</td></tr>
<tr><th>Actuations</th><td>{{.Counts.Actuations}}</td></tr>
<tr><th>Actuation errors</th><td>{{.Counts.ActuationErrors}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}none{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{stamp .StartTime}}</td></tr>
<tr><th>Procedure</th><td>{{.Config.Procedure}}</td></tr>
<tr><th>Rule</th><td>{{.Config.Field}} &gt; {{.Config.Threshold}} drives pin {{.Config.Pin}} low</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Timeout</th><td>{{.Config.TimeoutMs}}ms</td></tr>
<tr><th>Transport</th><td>{{.Config.Transport}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.GPIO}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
