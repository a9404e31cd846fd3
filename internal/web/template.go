package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/thermostat-sim/internal/logic"
	"github.com/sweeney/thermostat-sim/internal/status"
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
	"celsius": func(c logic.Celsius) string {
		return fmt.Sprintf("%.1f °C", logic.Round1(float64(c)))
	},
	"orNone": func(s string) string {
		if s == "" {
			return "none"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="30">
<title>Thermostat {{.Config.DeviceID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.warn { color: orange; font-weight: bold; }
.ok { color: green; }
.connected { color: green; }
.disconnected { color: red; }
.pending { color: #888; }
</style>
</head>
<body>
<h1>Thermostat {{.Config.DeviceID}}</h1>

<h2>Reading</h2>
{{if .HasReading}}<table>
<tr><th>Timestamp</th><td id="timestamp">{{.Reading.Timestamp.Format "2006-01-02 15:04:05 MST"}}</td></tr>
<tr><th>Mode</th><td id="mode">{{.Reading.ControlMode}}</td></tr>
<tr><th>Actual</th><td id="actual">{{celsius .Reading.ActualTemperature}}</td></tr>
<tr><th>Setpoint</th><td id="setpoint">{{celsius .Reading.SetTemperature}}</td></tr>
<tr><th>Valve</th><td id="valve">{{.Reading.ValvePosition}}%</td></tr>
<tr><th>Battery</th><td class="{{if .Reading.BatteryLow}}warn{{else}}ok{{end}}">{{if .Reading.BatteryLow}}low{{else}}ok{{end}}</td></tr>
</table>{{else}}<p class="pending">waiting for first tick</p>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>Store</th><td>{{.Config.StoreHost}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{orNone .Config.Broker}}</td></tr>
<tr><th>Kafka</th><td>{{orNone .Config.KafkaBrokers}}{{if .Config.KafkaBrokers}} ({{.Config.KafkaTopic}}){{end}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Ticks</th><td>{{.Counts.Ticks}}</td></tr>
<tr><th>Stored</th><td>{{.Counts.Stored}}</td></tr>
<tr><th>Store failures</th><td>{{.Counts.StoreFailures}}</td></tr>
<tr><th>Config fallbacks</th><td>{{.Counts.Fallbacks}}</td></tr>
<tr><th>Mirror failures</th><td>{{.Counts.MirrorFailures}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Run</th><td>{{.Config.RunID}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Timezone</th><td>{{.Config.Timezone}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
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
