package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/perlpunk/openqa-review/internal/browser"
	"github.com/perlpunk/openqa-review/internal/cache"
	"github.com/perlpunk/openqa-review/internal/fixture"
)

// TestFixtureServerReplaysSavedContent 把 save 模式产出的目录直接交给
// 回放服务，验证索引能反解出原始 URL、raw 路由能原样吐出正文。
func TestFixtureServerReplaysSavedContent(t *testing.T) {
	body := `{"job":{"id":77,"result":"passed"}}`
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer upstream.Close()

	dir := t.TempDir()
	sourceURL := upstream.URL + "/api/v1/jobs/77"

	saver := newBrowser(t, browser.Options{Save: true, SaveDir: dir})
	if _, err := saver.GetJSON(context.Background(), sourceURL, true); err != nil {
		t.Fatalf("save error: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := cache.NewStore(dir)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	app, err := fixture.NewApp(fixture.Options{Logger: logger, Store: store})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/-/fixtures", nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index status: %d", resp.StatusCode)
	}

	var index struct {
		Fixtures []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"fixtures"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&index); err != nil {
		t.Fatalf("decode index: %v", err)
	}
	if len(index.Fixtures) != 1 {
		t.Fatalf("fixture count: %d", len(index.Fixtures))
	}
	if index.Fixtures[0].URL != sourceURL {
		t.Fatalf("decoded url mismatch: %s", index.Fixtures[0].URL)
	}

	raw := "/-/fixtures/raw?name=" + url.QueryEscape(index.Fixtures[0].Name)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, raw, nil))
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("raw status: %d", resp.StatusCode)
	}
	got, _ := io.ReadAll(resp.Body)
	if string(got) != body {
		t.Fatalf("raw body mismatch: %s", string(got))
	}
}
