package dev

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// ReloadPath is the WebSocket endpoint the client script connects to.
const ReloadPath = "/_shipsite/reload"

// ReloadMessageType represents the type of reload message.
type ReloadMessageType string

const (
	ReloadTypeFull  ReloadMessageType = "reload"
	ReloadTypeCSS   ReloadMessageType = "css"
	ReloadTypeError ReloadMessageType = "error"
	ReloadTypeClear ReloadMessageType = "clear"
)

// ReloadMessage is sent to browsers via WebSocket.
type ReloadMessage struct {
	Type  ReloadMessageType `json:"type"`
	Error string            `json:"error,omitempty"`
	File  string            `json:"file,omitempty"`
}

// ReloadServer manages WebSocket connections for hot reload.
type ReloadServer struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewReloadServer creates a new reload server.
func NewReloadServer(logger *slog.Logger) *ReloadServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReloadServer{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The preview server only listens for local browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and holds the connection until the browser
// goes away.
func (r *ReloadServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Debug("reload upgrade failed", "error", err)
		return
	}

	r.mu.Lock()
	r.clients[conn] = struct{}{}
	r.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	r.drop(conn)
}

// NotifyReload sends a full page reload message to all clients.
func (r *ReloadServer) NotifyReload() {
	r.broadcast(ReloadMessage{Type: ReloadTypeFull})
}

// NotifyCSS sends a stylesheet reload message to all clients.
func (r *ReloadServer) NotifyCSS(file string) {
	r.broadcast(ReloadMessage{Type: ReloadTypeCSS, File: file})
}

// NotifyError shows msg in the error overlay of all clients.
func (r *ReloadServer) NotifyError(msg string) {
	r.broadcast(ReloadMessage{Type: ReloadTypeError, Error: msg})
}

// ClearError clears the error overlay on all clients.
func (r *ReloadServer) ClearError() {
	r.broadcast(ReloadMessage{Type: ReloadTypeClear})
}

// broadcast writes msg to every client. Writes are serialized under mu,
// which also satisfies websocket's single-writer rule.
func (r *ReloadServer) broadcast(msg ReloadMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(r.clients, conn)
			conn.Close()
		}
	}
}

func (r *ReloadServer) drop(conn *websocket.Conn) {
	r.mu.Lock()
	delete(r.clients, conn)
	r.mu.Unlock()
	conn.Close()
}

// ClientCount returns the number of connected clients.
func (r *ReloadServer) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close closes all client connections.
func (r *ReloadServer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn := range r.clients {
		conn.Close()
		delete(r.clients, conn)
	}
}

// InjectScript inserts ClientScript into an HTML document, before </body>
// when present, else before </html>, else at the end. Minified pages often
// omit both tags.
func InjectScript(page []byte) []byte {
	script := []byte(ClientScript)
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		idx = bytes.LastIndex(bytes.ToLower(page), []byte("</html>"))
	}
	if idx < 0 {
		return append(append([]byte(nil), page...), script...)
	}

	out := make([]byte, 0, len(page)+len(script))
	out = append(out, page[:idx]...)
	out = append(out, script...)
	return append(out, page[idx:]...)
}

// ClientScript is injected into served HTML pages while hot reload is on.
const ClientScript = `<script>
(function () {
  'use strict';
  var delay = 1000;
  var overlayID = 'shipsite-error-overlay';

  function connect() {
    var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
    var ws = new WebSocket(proto + '//' + location.host + '` + ReloadPath + `');
    ws.onopen = function () { delay = 1000; clearOverlay(); };
    ws.onmessage = function (e) {
      var msg;
      try { msg = JSON.parse(e.data); } catch (err) { return; }
      if (msg.type === 'reload') location.reload();
      else if (msg.type === 'css') reloadCSS();
      else if (msg.type === 'error') showOverlay(msg.error);
      else if (msg.type === 'clear') clearOverlay();
    };
    ws.onclose = function () {
      setTimeout(function () { delay = Math.min(delay * 2, 30000); connect(); }, delay);
    };
  }

  function reloadCSS() {
    document.querySelectorAll('link[rel="stylesheet"]').forEach(function (link) {
      var url = new URL(link.href);
      url.searchParams.set('_reload', Date.now());
      link.href = url.toString();
    });
  }

  function showOverlay(text) {
    clearOverlay();
    var el = document.createElement('pre');
    el.id = overlayID;
    el.style.cssText = 'position:fixed;inset:0;margin:0;padding:24px;background:rgba(0,0,0,.9);color:#f55;font:14px monospace;white-space:pre-wrap;overflow:auto;z-index:999999';
    el.textContent = 'Build error\n\n' + text;
    document.body.appendChild(el);
  }

  function clearOverlay() {
    var el = document.getElementById(overlayID);
    if (el) el.remove();
  }

  connect();
})();
</script>`
