// Package replayer captures TiDB plan replayer bundles for the reference
// query of a case.
package replayer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"tlpwhere/internal/config"
	"tlpwhere/internal/db"
	"tlpwhere/internal/util"
)

// BundleFile is the file name of a downloaded bundle inside a case directory.
const BundleFile = "plan_replayer.zip"

// Replayer dumps and downloads plan replayer bundles.
type Replayer struct {
	cfg    config.PlanReplayer
	client *http.Client
}

// New constructs a Replayer from config.
func New(cfg config.PlanReplayer) *Replayer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Replayer{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// Enabled reports whether bundles should be captured.
func (r *Replayer) Enabled() bool {
	return r != nil && r.cfg.Enabled
}

// Capture runs PLAN REPLAYER DUMP for query and stores the bundle in caseDir.
// It returns the bundle path.
func (r *Replayer) Capture(ctx context.Context, exec *db.DB, query string, caseDir string) (string, error) {
	if !r.Enabled() {
		return "", nil
	}
	rows, err := exec.QueryRows(ctx, DumpSQL(query))
	if err != nil {
		return "", errors.Wrap(err, "plan replayer dump")
	}
	var parts []string
	for _, row := range rows {
		for _, v := range row {
			if v != "" && v != db.NullValue {
				parts = append(parts, v)
			}
		}
	}
	text := strings.Join(parts, " ")
	url := r.bundleURL(ctx, exec, text)
	if url == "" {
		return "", errors.Errorf("plan replayer dump did not include a downloadable url: %s", text)
	}
	return r.download(ctx, url, caseDir)
}

// DumpSQL wraps a SELECT in PLAN REPLAYER DUMP EXPLAIN, stripping any
// EXPLAIN prefix and trailing semicolon.
func DumpSQL(query string) string {
	stmt := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
	upper := strings.ToUpper(stmt)
	for _, prefix := range []string{"EXPLAIN ANALYZE ", "EXPLAIN "} {
		if strings.HasPrefix(upper, prefix) {
			stmt = strings.TrimSpace(stmt[len(prefix):])
			break
		}
	}
	return "PLAN REPLAYER DUMP EXPLAIN " + stmt
}

func (r *Replayer) bundleURL(ctx context.Context, exec *db.DB, text string) string {
	if url := extractURL(text); url != "" {
		return url
	}
	token := extractZipName(text)
	if token == "" {
		token, _ = exec.QueryString(ctx, "SELECT @@tidb_last_plan_replayer_token")
		token = strings.TrimSpace(token)
	}
	if token == "" || token == db.NullValue || r.cfg.DownloadURLTemplate == "" {
		return ""
	}
	return formatDownloadURL(r.cfg.DownloadURLTemplate, token)
}

func (r *Replayer) download(ctx context.Context, url string, caseDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "build bundle request")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "download %s", url)
	}
	defer util.CloseWithErr(resp.Body, "bundle body")
	if resp.StatusCode/100 != 2 {
		return "", errors.Errorf("download %s failed with status %s", url, resp.Status)
	}
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", caseDir)
	}
	path := filepath.Join(caseDir, BundleFile)
	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	defer util.CloseWithErr(out, "bundle file")

	var body io.Reader = resp.Body
	if r.cfg.MaxDownloadBytes > 0 {
		body = io.LimitReader(resp.Body, r.cfg.MaxDownloadBytes)
	}
	if _, err := io.Copy(out, body); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

var (
	urlRE = regexp.MustCompile(`https?://\S+`)
	zipRE = regexp.MustCompile(`([A-Za-z0-9_\-=]+\.zip)`)
)

func extractURL(text string) string {
	return strings.TrimRight(strings.TrimSpace(urlRE.FindString(text)), ".,);")
}

func extractZipName(text string) string {
	return strings.TrimSpace(zipRE.FindString(text))
}

func formatDownloadURL(tmpl, name string) string {
	if strings.Contains(tmpl, "%s.zip") {
		name = strings.TrimSuffix(name, ".zip")
	}
	return fmt.Sprintf(tmpl, name)
}
