package web

import "net/http"

// Minimal operator dashboard. Served inline so the binary stays a single
// artifact; it polls the JSON API the same way an external UI would.
var dashboardHTML = []byte(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Rotor Dashboard</title>
<style>
body { font-family: monospace; background: #0d1117; color: #c9d1d9; margin: 2em; }
h1 { color: #58a6ff; }
table { border-collapse: collapse; margin-top: 1em; }
th, td { border: 1px solid #30363d; padding: 4px 10px; text-align: left; }
th { background: #161b22; }
.HOLD { color: #8b949e; } .ENTER { color: #3fb950; }
.EXIT { color: #f85149; } .ROTATE { color: #d29922; }
#meta { margin-top: 1em; color: #8b949e; }
</style>
</head>
<body>
<h1>Rotor</h1>
<div id="meta">loading...</div>
<table>
<thead><tr><th>Time</th><th>Action</th><th>From</th><th>To</th><th>Reason</th><th>Executed</th></tr></thead>
<tbody id="decisions"></tbody>
</table>
<script>
async function refresh() {
  try {
    const health = await (await fetch('/health')).json();
    const rs = health.rotor_status || {};
    document.getElementById('meta').textContent =
      'status=' + health.status + ' dry_run=' + rs.dry_run +
      ' live_armed=' + rs.live_armed + ' ticks=' + rs.tick_count;
    const data = await (await fetch('/api/decisions?limit=50')).json();
    const rows = (data.decisions || []).map(d =>
      '<tr><td>' + new Date(d.timestamp).toLocaleString() + '</td>' +
      '<td class="' + d.action + '">' + d.action + '</td>' +
      '<td>' + (d.from_pool || '-') + '</td>' +
      '<td>' + (d.to_pool || '-') + '</td>' +
      '<td>' + d.reason + '</td>' +
      '<td>' + d.executed + '</td></tr>');
    document.getElementById('decisions').innerHTML = rows.join('');
  } catch (err) {
    document.getElementById('meta').textContent = 'error: ' + err;
  }
}
refresh();
setInterval(refresh, 15000);
</script>
</body>
</html>
`)

// handleDashboard serves the main dashboard HTML
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(dashboardHTML)
}
