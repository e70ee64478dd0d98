package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerServesRoot(t *testing.T) {
	w := get(t, Handler(""), "/")

	if w.Code != http.StatusOK {
		t.Errorf("GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("GET /: response doesn't contain HTML doctype")
	}
	if got := w.Header().Get("Cache-Control"); !strings.Contains(got, "no-cache") {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}
}

func TestHandlerServesStaticAssets(t *testing.T) {
	handler := Handler("")

	for _, asset := range []string{"/app.js", "/style.css"} {
		w := get(t, handler, asset)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want 200", asset, w.Code)
		}
		if w.Body.Len() == 0 {
			t.Errorf("GET %s: empty response body", asset)
		}
	}
}

func TestHandlerScriptFollowsGridEvents(t *testing.T) {
	body := get(t, Handler(""), "/app.js").Body.String()

	for _, want := range []string{"grid.rebuild", "grid.patch", "/auth/ws-ticket", "/reconnect"} {
		if !strings.Contains(body, want) {
			t.Errorf("app.js does not reference %q", want)
		}
	}
}

func TestHandlerSPAFallback(t *testing.T) {
	handler := Handler("")

	for _, target := range []string{"/some/deep/route", "/nonexistent"} {
		w := get(t, handler, target)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want 200 (SPA fallback)", target, w.Code)
		}
		if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
			t.Errorf("GET %s: SPA fallback didn't serve index.html", target)
		}
	}
}

func TestHandlerFilesystemMode(t *testing.T) {
	dir := t.TempDir()
	indexContent := `<!DOCTYPE html><html><body>filesystem panel</body></html>`
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexContent), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "test.js"), []byte("console.log('test')"), 0644); err != nil {
		t.Fatal(err)
	}

	handler := Handler(dir)

	w := get(t, handler, "/")
	if !strings.Contains(w.Body.String(), "filesystem panel") {
		t.Errorf("filesystem GET /: expected filesystem content, got %q", w.Body.String())
	}

	if w := get(t, handler, "/test.js"); w.Code != http.StatusOK {
		t.Errorf("filesystem GET /test.js: got status %d, want 200", w.Code)
	}

	w = get(t, handler, "/deep/route")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "filesystem panel") {
		t.Errorf("filesystem SPA fallback: got %d %q", w.Code, w.Body.String())
	}
}

func TestHandlerInvalidDirFallsBackToEmbed(t *testing.T) {
	w := get(t, Handler("/nonexistent/dir/that/does/not/exist"), "/")

	if w.Code != http.StatusOK {
		t.Errorf("invalid dir GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "app.js") {
		t.Error("invalid dir: didn't fall back to embedded index.html")
	}
}
