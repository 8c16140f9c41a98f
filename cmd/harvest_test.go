package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-weather-crawler/internal/config"
	"github.com/JakeFAU/realtime-weather-crawler/internal/extract"
)

func newWeatherSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/china/jilin/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<div class="city_hot"><ul>
<li><a href="/city/changchun">Changchun</a></li>
<li><a href="/city/yanji">Yanji</a></li>
</ul></div>`)
	})
	mux.HandleFunc("/china/hunan/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<div class="city_hot"><ul><li><a href="/city/changsha">Changsha</a></li></ul></div>`)
	})
	mux.HandleFunc("/city/", func(w http.ResponseWriter, r *http.Request) {
		city := strings.TrimPrefix(r.URL.Path, "/city/")
		if city == "yanji" {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `<div class="search_default"><em>%s</em></div>
<div class="wea_weather clearfix"><em>7</em></div>`, city)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestHarvestCommand(t *testing.T) {
	t.Parallel()

	srv := newWeatherSite(t)
	cfgPath := writeConfig(t, fmt.Sprintf(`
harvest:
  listing_url_template: "%s/china/{province}/"
http:
  timeout: 2s
logging:
  level: error
`, srv.URL))

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{
		"harvest",
		"--config", cfgPath,
		"--province", "jilin",
		"--province", "hunan",
		"--delay", "0s",
		"--max-concurrent", "2",
	})
	require.NoError(t, root.ExecuteContext(context.Background()))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Done", lines[2])
	got := append([]string(nil), lines[:2]...)
	sort.Strings(got)
	require.Equal(t, []string{"changchun 7", "changsha 7"}, got)

	require.Equal(t, 1, strings.Count(errOut.String(), "\n"))
	require.True(t, strings.HasPrefix(errOut.String(), "Task failed: "+srv.URL+"/city/yanji "))
}

func TestHarvestCommandRejectsBadSelector(t *testing.T) {
	t.Parallel()

	cfgPath := writeConfig(t, `
selectors:
  temperature: "em["
logging:
  level: error
`)
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"harvest", "--config", cfgPath, "--province", "jilin"})

	err := root.ExecuteContext(context.Background())
	var selErr *extract.SelectorError
	require.ErrorAs(t, err, &selErr)
	require.Equal(t, extract.FieldTemperature, selErr.Name)
	require.Empty(t, out.String())
}

func TestHarvestCommandRejectsArgs(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"harvest", "extra"})
	require.Error(t, root.ExecuteContext(context.Background()))
}

func TestRunHarvestServesMetrics(t *testing.T) {
	t.Parallel()

	srv := newWeatherSite(t)
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Harvest.ListingURLTemplate = srv.URL + "/china/{province}/"
	cfg.Harvest.Provinces = []string{"hunan"}
	cfg.Harvest.Delay = 0
	cfg.Metrics.Addr = "127.0.0.1:0"

	var out bytes.Buffer
	summary, err := runHarvest(context.Background(), cfg, zap.NewNop(), &out, &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, "changsha 7\nDone\n", out.String())
}

func TestRunHarvestCancelled(t *testing.T) {
	t.Parallel()

	srv := newWeatherSite(t)
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Harvest.ListingURLTemplate = srv.URL + "/china/{province}/"
	cfg.Harvest.Provinces = []string{"jilin"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, err = runHarvest(ctx, cfg, zap.NewNop(), &out, &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "Done\n", out.String())
}
