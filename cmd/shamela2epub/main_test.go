package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/cache"
	"github.com/yuanying/shamela2epub/internal/converter"
	"github.com/yuanying/shamela2epub/internal/epub"
	"github.com/yuanying/shamela2epub/internal/shamela"
)

const testBookURL = "https://shamela.ws/book/158"

func readCLIOptionsForTest(t *testing.T, flagArgs ...string) (*cliOptions, error) {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetErr(io.Discard)
	if err := cmd.ParseFlags(flagArgs); err != nil {
		return nil, err
	}
	return readCLIOptions(cmd, []string{testBookURL})
}

func TestReadCLIOptions_Defaults(t *testing.T) {
	cacheDir := t.TempDir()
	t.Setenv(cache.EnvDir, cacheDir)

	opts, err := readCLIOptionsForTest(t)
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	if opts.BookURL != testBookURL {
		t.Fatalf("BookURL = %q", opts.BookURL)
	}
	if opts.Convert.Profile != book.ProfileLenient {
		t.Fatalf("Profile = %v, want lenient", opts.Convert.Profile)
	}
	if opts.Convert.OutputDir != converter.DefaultOutputDir || opts.Convert.OutputPath != "" {
		t.Fatalf("output = %q / %q", opts.Convert.OutputDir, opts.Convert.OutputPath)
	}
	if opts.Fetch.Workers != defaultWorkers {
		t.Fatalf("Workers = %d, want %d", opts.Fetch.Workers, defaultWorkers)
	}
	if opts.Fetch.Throttle != shamela.DefaultThrottle || opts.Fetch.Jitter != shamela.DefaultJitter {
		t.Fatalf("Throttle = %s, Jitter = %g", opts.Fetch.Throttle, opts.Fetch.Jitter)
	}
	if opts.Fetch.Cache == nil || opts.Fetch.Cache.Root() != cacheDir {
		t.Fatalf("Cache = %+v, want root %s", opts.Fetch.Cache, cacheDir)
	}
	if opts.Cover != converter.DefaultCoverOptions() {
		t.Fatalf("Cover = %+v", opts.Cover)
	}
	if !opts.Progress || opts.Verify {
		t.Fatalf("Progress = %v, Verify = %v", opts.Progress, opts.Verify)
	}
	if opts.Logger == nil {
		t.Fatal("Logger is nil, want non-nil")
	}
	if !opts.Logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Logger should be enabled at INFO level by default")
	}
	if opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should not be enabled at DEBUG level by default")
	}
}

func TestReadCLIOptions_CustomFlags(t *testing.T) {
	opts, err := readCLIOptionsForTest(t,
		"--output", "./out/book.epub",
		"--profile", "kindle",
		"--limit", "3",
		"--workers", "4",
		"--throttle", "250ms",
		"--jitter", "0",
		"--cache-dir", "./my-cache",
		"--cover", "cover.jpg",
		"--cover-min-size", "600x800",
		"--cover-min-bytes", "1024",
		"--cover-convert-jpeg",
		"--cover-max-width", "1200",
		"--css", "book.css",
		"--verify",
		"--no-progress",
		"--log-level", "warn",
		"--verbose",
	)
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}

	if opts.Convert.OutputPath != "./out/book.epub" {
		t.Fatalf("OutputPath = %q", opts.Convert.OutputPath)
	}
	if opts.Convert.Profile != book.ProfileConservativeDevice {
		t.Fatalf("Profile = %v", opts.Convert.Profile)
	}
	if opts.Convert.Limit != 3 || opts.Fetch.Limit != 3 {
		t.Fatalf("Limit = %d / %d", opts.Convert.Limit, opts.Fetch.Limit)
	}
	if opts.Fetch.Workers != 4 {
		t.Fatalf("Workers = %d", opts.Fetch.Workers)
	}
	if opts.Fetch.Throttle != 250*time.Millisecond || opts.Fetch.Jitter != 0 {
		t.Fatalf("Throttle = %s, Jitter = %g", opts.Fetch.Throttle, opts.Fetch.Jitter)
	}
	if opts.Fetch.Cache == nil || opts.Fetch.Cache.Root() != "./my-cache" {
		t.Fatalf("Cache = %+v", opts.Fetch.Cache)
	}
	want := converter.CoverOptions{
		MinWidth:    600,
		MinHeight:   800,
		MinBytes:    1024,
		ConvertPNG:  true,
		MaxWidth:    1200,
		JPEGQuality: converter.DefaultCoverOptions().JPEGQuality,
	}
	if opts.Cover != want {
		t.Fatalf("Cover = %+v, want %+v", opts.Cover, want)
	}
	if opts.CoverPath != "cover.jpg" || opts.CSSPath != "book.css" {
		t.Fatalf("CoverPath = %q, CSSPath = %q", opts.CoverPath, opts.CSSPath)
	}
	if !opts.Verify || opts.Progress {
		t.Fatalf("Verify = %v, Progress = %v", opts.Verify, opts.Progress)
	}
	// --verbose overrides log-level to debug
	if !opts.Logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("Logger should be enabled at DEBUG level when --verbose is set")
	}
}

func TestReadCLIOptions_Profiles(t *testing.T) {
	tests := map[string]book.Profile{
		"minimal":             book.ProfileLenient,
		"lenient":             book.ProfileLenient,
		"kindle":              book.ProfileConservativeDevice,
		"apple":               book.ProfileStrictXML,
		"strict-xml":          book.ProfileStrictXML,
		"Conservative-Device": book.ProfileConservativeDevice,
	}
	for name, want := range tests {
		opts, err := readCLIOptionsForTest(t, "--profile", name)
		if err != nil {
			t.Fatalf("--profile %s: error = %v", name, err)
		}
		if opts.Convert.Profile != want {
			t.Errorf("--profile %s = %v, want %v", name, opts.Convert.Profile, want)
		}
	}
}

func TestReadCLIOptions_NoCache(t *testing.T) {
	opts, err := readCLIOptionsForTest(t, "--no-cache", "--cache-dir", "ignored")
	if err != nil {
		t.Fatalf("readCLIOptions() error = %v", err)
	}
	if opts.Fetch.Cache != nil {
		t.Fatal("Cache should be nil with --no-cache")
	}
}

func TestReadCLIOptions_Invalid(t *testing.T) {
	tests := []struct {
		args []string
		flag string
	}{
		{[]string{"--workers", "0"}, "--workers"},
		{[]string{"--workers", "5"}, "--workers"},
		{[]string{"--limit", "-1"}, "--limit"},
		{[]string{"--throttle", "-1s"}, "--throttle"},
		{[]string{"--jitter", "1.5"}, "--jitter"},
		{[]string{"--jitter", "-0.1"}, "--jitter"},
		{[]string{"--profile", "epub2"}, "--profile"},
		{[]string{"--cover-min-size", "600"}, "--cover-min-size"},
		{[]string{"--cover-min-size", "0x800"}, "--cover-min-size"},
		{[]string{"--cover-min-bytes", "-1"}, "--cover-min-bytes"},
		{[]string{"--cover-max-width", "-5"}, "--cover-max-width"},
		{[]string{"--log-level", "trace"}, "--log-level"},
		{[]string{"--log-format", "yaml"}, "--log-format"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			_, err := readCLIOptionsForTest(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.flag) {
				t.Fatalf("expected %s validation error, got %v", tt.flag, err)
			}
		})
	}
}

func TestReadCLIOptions_InvalidURL(t *testing.T) {
	cmd := newRootCmd()
	_, err := readCLIOptions(cmd, []string{"https://shamela.ws/author/12"})
	if err == nil {
		t.Fatal("expected invalid URL error")
	}
}

func TestBuildLogger_FormatNormalization(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, "info", "JSON")
	logger.Info("test message")
	// JSON format should produce JSON output (starts with '{')
	output := buf.String()
	if len(output) == 0 || output[0] != '{' {
		t.Fatalf("expected JSON output for format 'JSON', got: %s", output)
	}
}

func TestBuildLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, "warning", "text")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestProgressObserver(t *testing.T) {
	var buf bytes.Buffer
	o := newProgressObserver(&buf)
	for i := 1; i <= 2; i++ {
		o.Notify(book.Event{Kind: book.EventChapterFetchStart, Index: i, Total: 2})
		o.Notify(book.Event{Kind: book.EventChapterFetchDone, Index: i, Total: 2})
	}
	for i := 1; i <= 2; i++ {
		o.Notify(book.Event{Kind: book.EventChapterTransformDone, Index: i, Total: 2})
	}
	o.Notify(book.Event{Kind: book.EventAssemblyStart, Path: "out.epub"})
	o.Notify(book.Event{Kind: book.EventAssemblyDone, Path: "out.epub"})

	out := buf.String()
	if !strings.Contains(out, "Fetching") || !strings.Contains(out, "Converting") {
		t.Fatalf("progress output = %q", out)
	}
	if o.bar != nil {
		t.Fatal("bar should be finished after assembly starts")
	}
}

func TestRun(t *testing.T) {
	pages := map[string]string{
		"/book/7": `<html><body><h1><a href="/book/7">كتاب التجربة</a></h1>
<ul><li><a href="/book/7/1">المقدمة</a></li><li><a href="/book/7/2">الخاتمة</a></li></ul></body></html>`,
		"/book/7/1": `<html><body><div class="nass"><h3>تمهيد</h3><p>نص المقدمة (1)</p><p class="hamesh">(1) حاشية المقدمة</p></div></body></html>`,
		"/book/7/2": `<html><body><div class="nass"><p>نص الخاتمة</p></div></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "book.epub")
	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{
		srv.URL + "/book/7",
		"--output", out,
		"--profile", "apple",
		"--throttle", "0",
		"--no-cache",
		"--verify",
		"--log-level", "error",
	})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v\n%s", err, stderr.String())
	}

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output not written: %v", err)
	}
	r, err := epub.Open(out)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()
	opf, err := r.Package()
	if err != nil {
		t.Fatalf("Package() error = %v", err)
	}
	if opf.Metadata.Title != "كتاب التجربة" {
		t.Errorf("Title = %q", opf.Metadata.Title)
	}
	if len(opf.Spine) != 4 {
		t.Errorf("spine has %d items, want nav, two chapters and endnotes", len(opf.Spine))
	}
}

func TestRun_MissingCover(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{testBookURL, "--cover", filepath.Join(t.TempDir(), "missing.jpg"), "--no-progress", "--no-cache"})
	err := cmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "cover") {
		t.Fatalf("expected cover error, got %v", err)
	}
}
