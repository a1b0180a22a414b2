package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	monitoring "camwatch/internal/monitoring/domain"
)

const digestTemplate = `<html lang="en">
<head>
<meta charset="UTF-8">
<style>
body { font-family: Arial, sans-serif; font-size: 16px; line-height: 1.6; }
table { border-collapse: collapse; width: 100%; margin-bottom: 20px; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #f2f2f2; font-weight: bold; }
tr:nth-child(even) { background-color: #f9f9f9; }
.header { font-size: 24px; font-weight: bold; color: #dc3545; }
.status-offline { font-weight: bold; color: #dc3545; }
.status-muted { font-weight: bold; color: #666; background-color: #eee; }
</style>
</head>
<body>
<div class="header">Camera Alert</div>
<p>Total {{.Total}} Camera/NVR are currently offline.</p>
<h3>Offline List</h3>
<table>
<tr><th>Camera Name</th><th>NVR</th><th>IP</th><th>Status</th><th>Alerts Sent</th></tr>
{{range .Rows}}<tr>
<td>{{.Name}}</td>
<td>{{.NVRIP}}</td>
<td>{{.CameraIP}}</td>
<td class="{{.StatusClass}}">{{.StatusText}}</td>
<td>{{.AlertsText}}</td>
</tr>
{{end}}</table>
</body>
</html>`

const recoveryTemplate = `<html lang="en">
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif">
<div style="font-size: 24px; font-weight: bold; color: #28a745">Camera Recovered</div>
<p>Camera <b>{{.Name}}</b> ({{.CameraIP}} on NVR {{.NVRIP}}) is back online.</p>
<p>Downtime: <b>{{.Downtime}}</b></p>
<p>Recovered at {{.At}}</p>
</body>
</html>`

var (
	digestTpl   = template.Must(template.New("digest").Parse(digestTemplate))
	recoveryTpl = template.Must(template.New("recovery").Parse(recoveryTemplate))
)

type digestRow struct {
	Name        string
	NVRIP       string
	CameraIP    string
	StatusText  string
	StatusClass string
	AlertsText  string
}

type digestData struct {
	Total int
	Rows  []digestRow
}

// RenderDigest builds the HTML digest covering every offline camera,
// including already muted ones.
func RenderDigest(offline []monitoring.Camera, muteAfter int, now time.Time) (string, error) {
	data := digestData{Total: len(offline)}
	for i := range offline {
		camera := &offline[i]
		seconds, _ := camera.DowntimeSeconds(now)
		formatted := monitoring.FormatDowntime(seconds)

		row := digestRow{
			Name:        camera.Name,
			NVRIP:       camera.NVRIP,
			CameraIP:    camera.CameraIP,
			StatusText:  fmt.Sprintf("Offline for %s", formatted),
			StatusClass: "status-offline",
			AlertsText:  fmt.Sprintf("%d", camera.Alert.SentCount),
		}
		if camera.IsMuted(muteAfter) {
			row.StatusText = fmt.Sprintf("Muted - Offline for %s", formatted)
			row.StatusClass = "status-muted"
			row.AlertsText = fmt.Sprintf("Muted (Sent: %d)", camera.Alert.SentCount)
		}
		data.Rows = append(data.Rows, row)
	}

	var buf bytes.Buffer
	if err := digestTpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type recoveryData struct {
	Name     string
	NVRIP    string
	CameraIP string
	Downtime string
	At       string
}

// RenderRecovery builds the HTML recovery notice for one camera.
func RenderRecovery(camera monitoring.Camera, downtime string, at time.Time) (string, error) {
	data := recoveryData{
		Name:     camera.Name,
		NVRIP:    camera.NVRIP,
		CameraIP: camera.CameraIP,
		Downtime: downtime,
		At:       at.Format("2006-01-02 15:04:05"),
	}
	var buf bytes.Buffer
	if err := recoveryTpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
