package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"tlpwhere/internal/config"
	"tlpwhere/internal/replayer"
	"tlpwhere/internal/report"
	"tlpwhere/internal/uploader"
	"tlpwhere/internal/util"
)

// IndexFile is the name of the generated case index.
const IndexFile = "report.json"

const summaryMaxBytes = 1 << 20

// FileContent holds inlined case file content.
type FileContent struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// CaseEntry is one case in the index.
type CaseEntry struct {
	ID             string                 `json:"id"`
	Dir            string                 `json:"dir"`
	Timestamp      string                 `json:"timestamp"`
	Dialect        string                 `json:"dialect"`
	PartitionMode  string                 `json:"partition_mode"`
	Discipline     string                 `json:"discipline"`
	EngineVersion  string                 `json:"engine_version"`
	ReferenceSQL   string                 `json:"reference_sql"`
	Statements     []string               `json:"statements"`
	Reason         string                 `json:"reason"`
	Error          string                 `json:"error"`
	Flaky          bool                   `json:"flaky"`
	Seed           int64                  `json:"seed"`
	UploadLocation string                 `json:"upload_location,omitempty"`
	Files          map[string]FileContent `json:"files"`
}

// Totals aggregates the indexed cases.
type Totals struct {
	Cases        int            `json:"cases"`
	Flaky        int            `json:"flaky"`
	ByDiscipline map[string]int `json:"by_discipline"`
	ByMode       map[string]int `json:"by_partition_mode"`
}

// Index is the JSON document written to the output directory.
type Index struct {
	GeneratedAt string      `json:"generated_at"`
	Source      string      `json:"source"`
	Totals      Totals      `json:"totals"`
	Cases       []CaseEntry `json:"cases"`
}

// caseSource lists case directories and reads files inside them.
type caseSource interface {
	CaseDirs(ctx context.Context) ([]string, error)
	ReadFile(ctx context.Context, dir, name string, maxBytes int) (string, bool, error)
	Exists(ctx context.Context, dir, name string) bool
}

var inlinedFiles = []string{report.CaseSQLFile, report.SchemaFile, report.InsertsFile, report.ExpectedFile, report.ActualFile, report.ReproducerFile}

var binaryFiles = []string{report.CaseArchiveName, replayer.BundleFile}

func main() {
	input := flag.String("input", "reports", "input directory or s3://bucket/prefix")
	output := flag.String("output", "web/public", "output directory for report.json")
	configPath := flag.String("config", "config.yaml", "path to config file (for S3 access)")
	maxBytes := flag.Int("max-bytes", 64*1024, "max bytes to read per case file")
	flag.Parse()

	ctx := context.Background()
	src, err := newSource(ctx, *input, *configPath)
	if err != nil {
		fail("open input: %v", err)
	}
	idx, err := buildIndex(ctx, src, *input, *maxBytes)
	if err != nil {
		fail("load cases: %v", err)
	}
	if err := writeIndex(*output, idx); err != nil {
		fail("write index: %v", err)
	}
	fmt.Printf("indexed %d case(s) into %s\n", idx.Totals.Cases, filepath.Join(*output, IndexFile))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func newSource(ctx context.Context, input, configPath string) (caseSource, error) {
	if !strings.HasPrefix(input, "s3://") {
		return localSource{root: input}, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if !cfg.Storage.S3.Enabled {
		return nil, errors.New("s3 input requested but storage.s3.enabled is false")
	}
	bucket, prefix, err := parseS3URI(input)
	if err != nil {
		return nil, err
	}
	client, err := uploader.NewS3Client(ctx, cfg.Storage.S3)
	if err != nil {
		return nil, err
	}
	return &s3Source{client: client, bucket: bucket, prefix: prefix}, nil
}

func buildIndex(ctx context.Context, src caseSource, input string, maxBytes int) (Index, error) {
	dirs, err := src.CaseDirs(ctx)
	if err != nil {
		return Index{}, err
	}
	idx := Index{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Source:      input,
		Totals:      Totals{ByDiscipline: map[string]int{}, ByMode: map[string]int{}},
		Cases:       make([]CaseEntry, 0, len(dirs)),
	}
	for _, dir := range dirs {
		entry, err := readCase(ctx, src, dir, maxBytes)
		if err != nil {
			util.Warnf("skip case dir=%s err=%v", dir, err)
			continue
		}
		idx.Cases = append(idx.Cases, entry)
		idx.Totals.Cases++
		if entry.Flaky {
			idx.Totals.Flaky++
		}
		if entry.Discipline != "" {
			idx.Totals.ByDiscipline[entry.Discipline]++
		}
		if entry.PartitionMode != "" {
			idx.Totals.ByMode[entry.PartitionMode]++
		}
	}
	sort.SliceStable(idx.Cases, func(i, j int) bool {
		return idx.Cases[i].Timestamp > idx.Cases[j].Timestamp
	})
	return idx, nil
}

func readCase(ctx context.Context, src caseSource, dir string, maxBytes int) (CaseEntry, error) {
	data, truncated, err := src.ReadFile(ctx, dir, report.SummaryFile, summaryMaxBytes)
	if err != nil {
		return CaseEntry{}, err
	}
	if truncated {
		return CaseEntry{}, errors.Errorf("%s exceeds %d bytes", report.SummaryFile, summaryMaxBytes)
	}
	var summary report.Summary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return CaseEntry{}, errors.Wrap(err, "decode summary")
	}
	files := make(map[string]FileContent, len(inlinedFiles)+len(binaryFiles))
	for _, name := range inlinedFiles {
		content, truncated, err := src.ReadFile(ctx, dir, name, maxBytes)
		if err != nil {
			continue
		}
		files[name] = FileContent{Name: name, Content: content, Truncated: truncated}
	}
	for _, name := range binaryFiles {
		if src.Exists(ctx, dir, name) {
			files[name] = FileContent{Name: name, Content: "(binary)", Truncated: true}
		}
	}
	id := strings.TrimSpace(summary.CaseID)
	if id == "" {
		id = path.Base(dir)
	}
	return CaseEntry{
		ID:             id,
		Dir:            dir,
		Timestamp:      summary.Timestamp,
		Dialect:        summary.Dialect,
		PartitionMode:  summary.PartitionMode,
		Discipline:     summary.Discipline,
		EngineVersion:  summary.EngineVersion,
		ReferenceSQL:   summary.ReferenceSQL,
		Statements:     summary.Statements,
		Reason:         summary.Reason,
		Error:          summary.Error,
		Flaky:          summary.Flaky,
		Seed:           summary.Seed,
		UploadLocation: summary.UploadLocation,
		Files:          files,
	}, nil
}

func writeIndex(output string, idx Index) error {
	if err := os.MkdirAll(output, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", output)
	}
	f, err := os.Create(filepath.Join(output, IndexFile))
	if err != nil {
		return errors.Wrap(err, "create index")
	}
	defer util.CloseWithErr(f, "report output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(idx)
}

func readLimited(r io.Reader, maxBytes int) (string, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)+1))
	if err != nil {
		return "", false, err
	}
	if len(data) > maxBytes {
		return string(data[:maxBytes]), true, nil
	}
	return string(data), false, nil
}

type localSource struct {
	root string
}

func (s localSource) CaseDirs(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.root)
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		dir := filepath.Join(s.root, e.Name())
		if !e.IsDir() || !s.Exists(context.Background(), dir, report.SummaryFile) {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func (localSource) ReadFile(_ context.Context, dir, name string, maxBytes int) (string, bool, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return "", false, err
	}
	defer util.CloseWithErr(f, "case file")
	return readLimited(f, maxBytes)
}

func (localSource) Exists(_ context.Context, dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

type s3Source struct {
	client  *s3.Client
	bucket  string
	prefix  string
	objects map[string]struct{}
}

func (s *s3Source) CaseDirs(ctx context.Context) ([]string, error) {
	s.objects = make(map[string]struct{})
	var dirs []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list objects")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			s.objects[key] = struct{}{}
			if strings.HasSuffix(key, "/"+report.SummaryFile) {
				dirs = append(dirs, strings.TrimSuffix(key, "/"+report.SummaryFile))
			}
		}
	}
	return dirs, nil
}

func (s *s3Source) ReadFile(ctx context.Context, dir, name string, maxBytes int) (string, bool, error) {
	key := dir + "/" + name
	if !s.Exists(ctx, dir, name) {
		return "", false, errors.Errorf("missing object %s", key)
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "get %s", key)
	}
	defer util.CloseWithErr(resp.Body, "s3 response body")
	return readLimited(resp.Body, maxBytes)
}

func (s *s3Source) Exists(_ context.Context, dir, name string) bool {
	_, ok := s.objects[dir+"/"+name]
	return ok
}

func parseS3URI(input string) (bucket string, prefix string, err error) {
	trimmed := strings.TrimPrefix(input, "s3://")
	bucket, prefix, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", errors.New("missing s3 bucket")
	}
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}
