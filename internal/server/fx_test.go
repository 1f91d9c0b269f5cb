package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/testimony-tracker/internal/config"
)

const listingBody = `<select>
<option>Support</option>
<option>Oppose</option>
</select>
<table>
<tr>
<td><a href="/liz/2023R1/Downloads/PublicTestimonyDocument/7">View</a></td>
<td>Ada Lovelace</td>
<td>Portland</td>
<td>Support</td>
</tr>
</table>
`

func TestBuildWithLoggerWiresHandler(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	app, err := BuildWithLogger(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, app.Refresher())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, app.Close(context.Background()))
}

func TestBuildFailsOnUnusableStorage(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	blocker := filepath.Join(t.TempDir(), "file")
	writeFile(t, blocker)
	cfg.Storage.TestimonyDir = blocker

	_, err := BuildWithLogger(context.Background(), &cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "testimony store init failed")
}

func TestNewAppRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewApp(nil, nil)
	require.Error(t, err)
}

func TestRunServesUntilCanceled(t *testing.T) {
	t.Parallel()

	olis := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/liz/2023R1/Measures/Testimony/SB422":
			_, _ = w.Write([]byte(listingBody))
		case "/liz/2023R1/Downloads/PublicTestimonyDocument/7":
			_, _ = w.Write([]byte("%PDF-1.4 testimony"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer olis.Close()

	cfg := testConfig(t, olis.URL)
	cfg.Server.Port = freePort(t)
	app, err := BuildWithLogger(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return app.Refresher().Snapshot() != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, app.Refresher().Snapshot().Results.Total)

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Server.Port))
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Server: config.ServerConfig{Port: 4567},
		Source: config.SourceConfig{
			BaseURL: baseURL,
			Session: "2023R1",
			Bill:    "SB422",
		},
		HTTP: config.HTTPConfig{
			UserAgent:      "testimony-tracker-test",
			TimeoutSeconds: 5,
		},
		Storage: config.StorageConfig{
			TestimonyDir: filepath.Join(dir, "testimony"),
			OutputDir:    dir,
			MergedPDF:    "all-testimony.pdf",
			MergedText:   "all-testimony.txt",
			MissingNames: "missing_names.txt",
		},
		Schedule: config.ScheduleConfig{
			Tick:            10 * time.Millisecond,
			UpdateEvery:     time.Minute,
			PruneEvery:      time.Hour,
			RegenerateEvery: 5 * time.Minute,
			PruneGrace:      5 * time.Minute,
		},
		Tools: config.ToolsConfig{
			PDFUnite:  "pdfunite",
			PDFToText: "pdftotext",
		},
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	app, err := BuildWithLogger(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, app.Close(context.Background()))
	require.NoError(t, app.Close(context.Background()))
}
