package dev

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shipsite/shipsite/internal/build"
	"github.com/shipsite/shipsite/internal/config"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// touch moves a file's modification time forward so pollers see a change
// regardless of file system timestamp resolution.
func touch(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, dir string) (*Watcher, chan []Change) {
	t.Helper()
	watcher := NewWatcher(WatcherConfig{
		Paths:    []string{dir},
		Interval: 20 * time.Millisecond,
	})
	changes := make(chan []Change, 10)
	watcher.OnChange(func(c []Change) { changes <- c })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go watcher.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for !watcher.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Let the initial scan settle.
	time.Sleep(50 * time.Millisecond)
	return watcher, changes
}

func waitChanges(t *testing.T, ch chan []Change) []Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change")
		return nil
	}
}

func TestWatcher_Modified(t *testing.T) {
	tmpDir := t.TempDir()
	cssFile := filepath.Join(tmpDir, "site.css")
	mustWriteFile(t, cssFile, "a{}")

	watcher, changes := startWatcher(t, tmpDir)
	defer watcher.Stop()

	mustWriteFile(t, cssFile, "a{color:red}")
	touch(t, cssFile)

	got := waitChanges(t, changes)
	want := []Change{{Path: cssFile, Type: ChangeCSS}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("changes = %v, want %v", got, want)
	}
}

func TestWatcher_NewAndDeletedFile(t *testing.T) {
	tmpDir := t.TempDir()
	old := filepath.Join(tmpDir, "old.png")
	mustWriteFile(t, old, "png")

	watcher, changes := startWatcher(t, tmpDir)
	defer watcher.Stop()

	newFile := filepath.Join(tmpDir, "pages", "index.html")
	mustWriteFile(t, newFile, "<p>hi")
	if err := os.Remove(old); err != nil {
		t.Fatal(err)
	}

	seen := map[string]ChangeType{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case batch := <-changes:
			for _, c := range batch {
				seen[c.Path] = c.Type
			}
		case <-deadline:
			t.Fatalf("timeout, saw %v", seen)
		}
	}
	if seen[newFile] != ChangeHTML {
		t.Errorf("new file type = %v, want html", seen[newFile])
	}
	if seen[old] != ChangeAsset {
		t.Errorf("deleted file type = %v, want asset", seen[old])
	}
}

func TestWatcher_Ignore(t *testing.T) {
	tmpDir := t.TempDir()

	watcher := NewWatcher(WatcherConfig{
		Paths:  []string{tmpDir},
		Ignore: []string{"*.swp", "node_modules", "vendor/lib"},
	})

	if !watcher.shouldIgnore(filepath.Join(tmpDir, "index.html.swp")) {
		t.Error("Should ignore *.swp files")
	}
	if !watcher.shouldIgnore(filepath.Join(tmpDir, "node_modules", "x", "a.css")) {
		t.Error("Should ignore node_modules directory")
	}
	if !watcher.shouldIgnore(filepath.Join(tmpDir, "vendor", "lib", "a.js")) {
		t.Error("Should ignore vendor/lib path")
	}
	if watcher.shouldIgnore(filepath.Join(tmpDir, "vendor", "other.js")) {
		t.Error("Should not ignore vendor/other.js")
	}
	if watcher.shouldIgnore(filepath.Join(tmpDir, "index.html")) {
		t.Error("Should not ignore index.html")
	}
}

func TestWatcher_IgnoreSegments(t *testing.T) {
	watcher := NewWatcher(WatcherConfig{
		Paths:  []string{"."},
		Ignore: []string{"tmp"},
	})

	if !watcher.shouldIgnore(filepath.Join("foo", "tmp", "bar.css")) {
		t.Error("Should ignore tmp directory segment")
	}
	if watcher.shouldIgnore(filepath.Join("foo", "attempt.css")) {
		t.Error("Should not ignore substring match")
	}
}

func TestWatcher_SkipDirs(t *testing.T) {
	tmpDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tmpDir, "index.html"), "x")
	mustWriteFile(t, filepath.Join(tmpDir, "dist", "index.html"), "x")

	watcher := NewWatcher(WatcherConfig{
		Paths:    []string{tmpDir},
		SkipDirs: []string{filepath.Join(tmpDir, "dist")},
	})

	files := watcher.scan()
	if len(files) != 1 {
		t.Errorf("scanned %d files, want 1: %v", len(files), files)
	}
}

func TestWatcher_IsRunning(t *testing.T) {
	watcher := NewWatcher(WatcherConfig{Paths: []string{"."}})

	if watcher.IsRunning() {
		t.Error("Watcher should not be running initially")
	}
}

func TestDiff(t *testing.T) {
	t0 := time.Unix(100, 0)
	t1 := time.Unix(200, 0)

	previous := map[string]time.Time{"a.css": t0, "b.html": t0, "c.png": t0}
	current := map[string]time.Time{"a.css": t1, "b.html": t0, "d.js": t0}

	got := diff(previous, current)
	want := []Change{
		{Path: "a.css", Type: ChangeCSS},
		{Path: "c.png", Type: ChangeAsset},
		{Path: "d.js", Type: ChangeAsset},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("diff = %v, want %v", got, want)
	}
}

func TestClassifyChange(t *testing.T) {
	tests := []struct {
		path string
		want ChangeType
	}{
		{"style.css", ChangeCSS},
		{"STYLE.CSS", ChangeCSS},
		{"index.html", ChangeHTML},
		{"about.htm", ChangeHTML},
		{"image.png", ChangeAsset},
		{"app.js", ChangeAsset},
	}

	for _, tt := range tests {
		if got := classifyChange(tt.path); got != tt.want {
			t.Errorf("classifyChange(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatchPaths(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	cfg.SetDir(dir)
	cfg.Serve.Watch = []string{"src", "partials", "", filepath.Join(dir, "partials")}

	got := WatchPaths(cfg)
	want := []string{filepath.Join(dir, "src"), filepath.Join(dir, "partials")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WatchPaths = %v, want %v", got, want)
	}
}

func TestInjectScript(t *testing.T) {
	tests := []struct {
		name   string
		page   string
		before string
	}{
		{"body", "<html><body><p>x</p></body></html>", "</body>"},
		{"html only", "<html><p>x</html>", "</html>"},
		{"uppercase", "<P>x</BODY>", "</BODY>"},
		{"minified", "<p>x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(InjectScript([]byte(tt.page)))
			if !strings.Contains(got, ClientScript) {
				t.Fatal("script not injected")
			}
			if tt.before != "" && !strings.Contains(got, ClientScript+tt.before) {
				t.Errorf("script should precede %s: %q", tt.before, got)
			}
			if tt.before == "" && !strings.HasSuffix(got, ClientScript) {
				t.Error("script should be appended")
			}
		})
	}
}

func TestClientScript(t *testing.T) {
	for _, want := range []string{"WebSocket", ReloadPath, "location.reload"} {
		if !strings.Contains(ClientScript, want) {
			t.Errorf("ClientScript should contain %q", want)
		}
	}
}

func dialReload(t *testing.T, base string, rs *ReloadServer) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(base, "http") + ReloadPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(time.Second)
	for rs.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rs.ClientCount() == 0 {
		t.Fatal("client never registered")
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ReloadMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg ReloadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return msg
}

func TestReloadServer_Broadcast(t *testing.T) {
	rs := NewReloadServer(nil)
	mux := http.NewServeMux()
	mux.Handle(ReloadPath, rs)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	conn := dialReload(t, ts.URL, rs)

	rs.NotifyCSS("site.css")
	if msg := readMessage(t, conn); msg.Type != ReloadTypeCSS || msg.File != "site.css" {
		t.Errorf("message = %+v, want css site.css", msg)
	}

	rs.NotifyError("boom")
	if msg := readMessage(t, conn); msg.Type != ReloadTypeError || msg.Error != "boom" {
		t.Errorf("message = %+v, want error boom", msg)
	}

	rs.Close()
	if rs.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Close, want 0", rs.ClientCount())
	}
}

func newProject(t *testing.T, hotReload bool) *config.Config {
	t.Helper()
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "src", "index.html"), "<html>\n<body>\n  <h1>  Home  </h1>\n</body>\n</html>\n")
	mustWriteFile(t, filepath.Join(dir, "src", "css", "site.css"), "body {\n  color : red ;\n}\n")

	cfg := config.New()
	cfg.SetDir(dir)
	cfg.Serve.HotReload = hotReload
	return cfg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestServer_ServeStatic(t *testing.T) {
	cfg := newProject(t, true)
	srv := NewServer(ServerOptions{Config: cfg})
	srv.Rebuild(context.Background(), nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	status, body := get(t, ts.URL+"/")
	if status != http.StatusOK {
		t.Fatalf("GET / status = %d", status)
	}
	if !strings.Contains(body, "Home") || strings.Contains(body, "\n  <h1>") {
		t.Errorf("GET / should serve minified index: %q", body)
	}
	if !strings.Contains(body, ReloadPath) {
		t.Error("GET / should include the reload script")
	}

	status, body = get(t, ts.URL+"/css/site.css")
	if status != http.StatusOK || body != "body{color:red}" {
		t.Errorf("GET /css/site.css = %d %q", status, body)
	}

	if status, _ := get(t, ts.URL+"/missing.html"); status != http.StatusNotFound {
		t.Errorf("GET /missing.html status = %d, want 404", status)
	}
	if status, _ := get(t, ts.URL+"/../../etc/passwd"); status != http.StatusNotFound {
		t.Errorf("path traversal status = %d, want 404", status)
	}
}

func TestServer_NoHotReload(t *testing.T) {
	cfg := newProject(t, false)
	srv := NewServer(ServerOptions{Config: cfg})
	srv.Rebuild(context.Background(), nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+"/index.html")
	if strings.Contains(body, ReloadPath) {
		t.Error("reload script should not be injected without hot reload")
	}
	if status, _ := get(t, ts.URL+ReloadPath); status != http.StatusNotFound {
		t.Errorf("reload endpoint status = %d, want 404", status)
	}
}

func TestServer_RebuildNotifies(t *testing.T) {
	cfg := newProject(t, true)

	var builds int
	srv := NewServer(ServerOptions{
		Config:  cfg,
		OnBuild: func(*build.Result, error) { builds++ },
	})
	srv.Rebuild(context.Background(), nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	conn := dialReload(t, ts.URL, srv.reloadServer)

	cssFile := filepath.Join(cfg.SourcePath(), "css", "site.css")
	mustWriteFile(t, cssFile, "body { color : blue ; }")
	srv.Rebuild(context.Background(), []Change{{Path: cssFile, Type: ChangeCSS}})

	if msg := readMessage(t, conn); msg.Type != ReloadTypeClear {
		t.Errorf("first message = %+v, want clear", msg)
	}
	if msg := readMessage(t, conn); msg.Type != ReloadTypeCSS || msg.File != "site.css" {
		t.Errorf("second message = %+v, want css site.css", msg)
	}
	if _, body := get(t, ts.URL+"/css/site.css"); body != "body{color:blue}" {
		t.Errorf("rebuilt css = %q", body)
	}

	htmlFile := filepath.Join(cfg.SourcePath(), "index.html")
	srv.Rebuild(context.Background(), []Change{
		{Path: cssFile, Type: ChangeCSS},
		{Path: htmlFile, Type: ChangeHTML},
	})
	readMessage(t, conn)
	if msg := readMessage(t, conn); msg.Type != ReloadTypeFull {
		t.Errorf("message = %+v, want reload", msg)
	}

	if err := os.RemoveAll(cfg.SourcePath()); err != nil {
		t.Fatal(err)
	}
	srv.Rebuild(context.Background(), []Change{{Path: htmlFile, Type: ChangeHTML}})
	msg := readMessage(t, conn)
	if msg.Type != ReloadTypeError || !strings.Contains(msg.Error, "E143") {
		t.Errorf("message = %+v, want E143 error", msg)
	}

	if builds != 4 {
		t.Errorf("builds = %d, want 4", builds)
	}
}

func TestOnlyCSS(t *testing.T) {
	if _, ok := onlyCSS(nil); ok {
		t.Error("empty batch is not a stylesheet change")
	}
	file, ok := onlyCSS([]Change{{Path: "/a/site.css", Type: ChangeCSS}})
	if !ok || file != "site.css" {
		t.Errorf("onlyCSS = %q, %v", file, ok)
	}
	if _, ok := onlyCSS([]Change{{Path: "a.css", Type: ChangeCSS}, {Path: "a.png", Type: ChangeAsset}}); ok {
		t.Error("mixed batch is not a stylesheet change")
	}
}
