package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuanying/shamela2epub/internal/book"
	"github.com/yuanying/shamela2epub/internal/cache"
	"github.com/yuanying/shamela2epub/internal/converter"
	"github.com/yuanying/shamela2epub/internal/epub"
	"github.com/yuanying/shamela2epub/internal/shamela"
)

const (
	defaultProfile   = "minimal"
	defaultWorkers   = 2
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

type cliOptions struct {
	BookURL   string
	CoverPath string
	CSSPath   string
	Cover     converter.CoverOptions
	Fetch     shamela.Options
	Convert   converter.ConvertOptions
	Verify    bool
	Progress  bool
	Logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shamela2epub <book-url>",
		Short: "Convert Shamela web books to EPUB",
		Long: `shamela2epub downloads a book from shamela.ws (or a compatible mirror)
and packages it as an EPUB 3 file with a navigable table of contents
and linked endnotes.

Example:
  shamela2epub https://shamela.ws/book/158 --profile kindle --limit 5`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), opts, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "Output EPUB path (default: <output-dir>/<book title>.epub)")
	f.String("output-dir", converter.DefaultOutputDir, "Directory for the generated EPUB when --output is not set")
	f.String("profile", defaultProfile, "Sanitizer profile: minimal|lenient, kindle|conservative-device, apple|strict-xml")
	f.Int("limit", 0, "Process only the first N chapters (0 = all)")
	f.IntP("workers", "w", defaultWorkers, "Parallel chapter downloads (1-4)")
	f.Duration("throttle", shamela.DefaultThrottle, "Delay between requests")
	f.Float64("jitter", shamela.DefaultJitter, "Throttle jitter fraction (0..1)")
	f.String("cache-dir", "", "Cache directory (default: $"+cache.EnvDir+" or .cache/shamela_books)")
	f.Bool("no-cache", false, "Disable the local page cache")
	f.String("cover", "", "Path to a local cover image (jpg/png)")
	f.String("cover-min-size", "", "Minimal cover size WxH (e.g. 600x800)")
	f.Int("cover-min-bytes", converter.DefaultCoverOptions().MinBytes, "Minimal cover file size in bytes")
	f.Bool("cover-convert-jpeg", false, "Convert a PNG cover to JPEG")
	f.Int("cover-max-width", 0, "Downscale wider covers to this width (0 = keep)")
	f.String("css", "", "Stylesheet replacing the built-in one")
	f.Bool("verify", false, "Re-open the written EPUB and check its structure")
	f.Bool("no-progress", false, "Disable progress bars")
	f.String("log-level", defaultLogLevel, "Log level: debug|info|warn|error")
	f.String("log-format", defaultLogFormat, "Log format: text|json")
	f.BoolP("verbose", "v", false, "Shorthand for --log-level debug")

	return cmd
}

func readCLIOptions(cmd *cobra.Command, args []string) (*cliOptions, error) {
	f := cmd.Flags()
	opts := &cliOptions{BookURL: strings.TrimSpace(args[0])}

	if _, err := shamela.BookID(opts.BookURL); err != nil {
		return nil, err
	}

	logLevel, _ := f.GetString("log-level")
	logFormat, _ := f.GetString("log-format")
	verbose, _ := f.GetBool("verbose")
	if _, ok := parseLogLevel(logLevel); !ok {
		return nil, fmt.Errorf("--log-level must be one of debug, info, warn, error: %q", logLevel)
	}
	switch strings.ToLower(logFormat) {
	case "text", "json":
	default:
		return nil, fmt.Errorf("--log-format must be text or json: %q", logFormat)
	}
	if verbose {
		logLevel = "debug"
	}
	opts.Logger = buildLogger(cmd.ErrOrStderr(), logLevel, logFormat)

	profileName, _ := f.GetString("profile")
	profile, err := book.ParseProfile(profileName)
	if err != nil {
		return nil, fmt.Errorf("--profile: %w", err)
	}

	limit, _ := f.GetInt("limit")
	if limit < 0 {
		return nil, fmt.Errorf("--limit must not be negative: %d", limit)
	}
	workers, _ := f.GetInt("workers")
	if workers < 1 || workers > shamela.MaxWorkers {
		return nil, fmt.Errorf("--workers must be between 1 and %d: %d", shamela.MaxWorkers, workers)
	}
	throttle, _ := f.GetDuration("throttle")
	if throttle < 0 {
		return nil, fmt.Errorf("--throttle must not be negative: %s", throttle)
	}
	jitter, _ := f.GetFloat64("jitter")
	if jitter < 0 || jitter > 1 {
		return nil, fmt.Errorf("--jitter must be between 0 and 1: %g", jitter)
	}

	var store *cache.Store
	if noCache, _ := f.GetBool("no-cache"); !noCache {
		dir, _ := f.GetString("cache-dir")
		store = cache.New(dir)
	}

	opts.Fetch = shamela.Options{
		Cache:    store,
		Workers:  workers,
		Throttle: throttle,
		Jitter:   jitter,
		Limit:    limit,
		Logger:   opts.Logger,
	}

	opts.Cover = converter.DefaultCoverOptions()
	if size, _ := f.GetString("cover-min-size"); size != "" {
		w, h, err := converter.ParseSize(size)
		if err != nil {
			return nil, fmt.Errorf("--cover-min-size: %w", err)
		}
		opts.Cover.MinWidth, opts.Cover.MinHeight = w, h
	}
	minBytes, _ := f.GetInt("cover-min-bytes")
	if minBytes < 0 {
		return nil, fmt.Errorf("--cover-min-bytes must not be negative: %d", minBytes)
	}
	opts.Cover.MinBytes = minBytes
	maxWidth, _ := f.GetInt("cover-max-width")
	if maxWidth < 0 {
		return nil, fmt.Errorf("--cover-max-width must not be negative: %d", maxWidth)
	}
	opts.Cover.MaxWidth = maxWidth
	opts.Cover.ConvertPNG, _ = f.GetBool("cover-convert-jpeg")
	opts.CoverPath, _ = f.GetString("cover")
	opts.CSSPath, _ = f.GetString("css")

	outputPath, _ := f.GetString("output")
	outputDir, _ := f.GetString("output-dir")
	opts.Convert = converter.ConvertOptions{
		Profile:    profile,
		Limit:      limit,
		OutputPath: outputPath,
		OutputDir:  outputDir,
		Logger:     opts.Logger,
	}

	opts.Verify, _ = f.GetBool("verify")
	noProgress, _ := f.GetBool("no-progress")
	opts.Progress = !noProgress

	return opts, nil
}

func run(ctx context.Context, opts *cliOptions, stderr io.Writer) error {
	logger := opts.Logger

	if opts.Progress {
		observer := newProgressObserver(stderr)
		opts.Fetch.Observer = observer
		opts.Convert.Observer = observer
	}

	// Local inputs are checked before any network traffic.
	var cover *book.CoverAsset
	if opts.CoverPath != "" {
		c, err := converter.LoadCover(opts.CoverPath, opts.Cover)
		if err != nil {
			return err
		}
		cover = c
	}
	if opts.CSSPath != "" {
		data, err := os.ReadFile(opts.CSSPath)
		if err != nil {
			return fmt.Errorf("failed to read stylesheet: %w", err)
		}
		opts.Convert.Stylesheet = string(data)
	}

	start := time.Now()
	logger.Info("fetching book", "url", opts.BookURL, "workers", opts.Fetch.Workers, "profile", opts.Convert.Profile.String())
	src, err := shamela.NewProvider(opts.Fetch).Fetch(ctx, opts.BookURL)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	src.Cover = cover

	res, err := converter.NewPipeline(opts.Convert).Convert(ctx, src)
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	if opts.Verify {
		if err := epub.Verify(res.OutputPath, opts.Convert.Profile); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		logger.Debug("verified EPUB", "path", res.OutputPath)
	}

	logger.Info("done",
		"path", res.OutputPath,
		"chapters", len(res.Book.Chapters),
		"warnings", len(res.Warnings),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func parseLogLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := parseLogLevel(level)
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
