package webserver

import (
	"bytes"
	"html/template"
	"net/http"

	"kartpitsbot/pkg/render"
)

func (m *Manager) boardSVGHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := render.BoardSVG(&buf, m.race.State()); err != nil {
		m.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (m *Manager) boardPNGHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := render.BoardPNG(&buf, m.race.State()); err != nil {
		m.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

type dashboardData struct {
	WebSocketURL string
	BoardURL     string
}

func (m *Manager) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	scheme := "ws://"
	if r.TLS != nil {
		scheme = "wss://"
	}
	data := dashboardData{
		WebSocketURL: scheme + r.Host + "/ws",
		BoardURL:     "/board.svg",
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, data); err != nil {
		m.logger.Warn("dashboard render failed", "error", err)
	}
}

var dashboardTemplate = template.Must(template.New("").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Kart Pits</title>
  <style>
    body { background: #1e1e24; color: #f0f0f0; font-family: sans-serif; }
    table { border-collapse: collapse; margin-top: 1em; }
    td, th { padding: 2px 10px; text-align: left; }
  </style>
</head>
<body>
  <img id="board" src="{{ .BoardURL }}" alt="pit board">
  <p id="status"></p>
  <table id="karts"><thead><tr><th>Kart</th><th>Score</th><th>Band</th></tr></thead><tbody></tbody></table>

  <script>
    const wsUrl = '{{ .WebSocketURL }}';
    const boardUrl = '{{ .BoardURL }}';
    const board = document.getElementById('board');
    const status = document.getElementById('status');
    const karts = document.querySelector('#karts tbody');

    const socket = new WebSocket(wsUrl);

    socket.addEventListener('message', (event) => {
      const msg = JSON.parse(event.data);
      if (msg.type !== 'state') {
        return;
      }
      const state = msg.body;
      board.src = boardUrl + '?t=' + Date.now();
      status.textContent = state.status.kind ? state.status.kind + ': ' + state.status.message : 'idle';
      karts.innerHTML = '';
      for (const kart of state.karts) {
        const row = document.createElement('tr');
        const score = kart.score === null ? '-' : Math.round(kart.score);
        for (const value of [kart.label || kart.id.slice(0, 8), score, kart.band]) {
          const cell = document.createElement('td');
          cell.textContent = value;
          row.appendChild(cell);
        }
        karts.appendChild(row);
      }
    });

    socket.addEventListener('close', (event) => {
      status.textContent = 'disconnected';
    });
  </script>
</body>
</html>
`))
