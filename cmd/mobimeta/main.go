// Command mobimeta prints the metadata of MOBI and PalmDOC books stored on
// disk or in S3-compatible object storage.
//
// Usage:
//
//	mobimeta [flags] <path|s3://bucket/key>...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/simp-lee/mobi"
	"github.com/simp-lee/mobi/internal/config"
	"github.com/simp-lee/mobi/internal/source"
)

// report is the per-book output document.
type report struct {
	Path        string   `yaml:"path" json:"path"`
	Title       string   `yaml:"title,omitempty" json:"title,omitempty"`
	Authors     []string `yaml:"authors,omitempty" json:"authors,omitempty"`
	Publisher   string   `yaml:"publisher,omitempty" json:"publisher,omitempty"`
	Imprint     string   `yaml:"imprint,omitempty" json:"imprint,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	ISBN        string   `yaml:"isbn,omitempty" json:"isbn,omitempty"`
	Subjects    []string `yaml:"subjects,omitempty" json:"subjects,omitempty"`
	PublishDate string   `yaml:"publish_date,omitempty" json:"publish_date,omitempty"`
	Review      string   `yaml:"review,omitempty" json:"review,omitempty"`
	Contributor string   `yaml:"contributor,omitempty" json:"contributor,omitempty"`
	Copyright   string   `yaml:"copyright,omitempty" json:"copyright,omitempty"`
	ASIN        string   `yaml:"asin,omitempty" json:"asin,omitempty"`
	Language    string   `yaml:"language,omitempty" json:"language,omitempty"`
	Compression string   `yaml:"compression" json:"compression"`
	Encrypted   bool     `yaml:"encrypted" json:"encrypted"`
	TextLength  int      `yaml:"text_length" json:"text_length"`
	Warnings    []string `yaml:"warnings,omitempty" json:"warnings,omitempty"`
	Text        string   `yaml:"text,omitempty" json:"text,omitempty"`
}

var compressionNames = map[int]string{
	mobi.CompressionNone:     "none",
	mobi.CompressionPalmDOC:  "palmdoc",
	mobi.CompressionHuffCDIC: "huffcdic",
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mobimeta", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "path to YAML config file")
		format     = fs.String("format", "", "output format: yaml or json (overrides config)")
		withText   = fs.Bool("text", false, "include the plain text of each book")
		progress   = fs.Bool("progress", false, "show a progress spinner on stderr")
		verbose    = fs.Bool("v", false, "enable debug logging")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: mobimeta [flags] <path|s3://bucket/key>...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	logger := newLogger(*verbose, stderr)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 1
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *withText {
		cfg.Output.Text = true
	}
	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid options", zap.Error(err))
		return 2
	}

	opener := source.NewOpener(source.S3Options{
		Endpoint:        cfg.S3.Endpoint,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	}, cfg.Limits.MaxObjectSize, mobi.WithLogger(logger), mobi.WithMaxTextSize(cfg.Limits.MaxTextSize))

	var spin *spinner.Spinner
	if *progress {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(stderr))
		spin.Start()
	}

	ctx := context.Background()
	reports := make([]report, 0, fs.NArg())
	failed := 0
	for i, arg := range fs.Args() {
		if spin != nil {
			spin.Lock()
			spin.Suffix = fmt.Sprintf(" reading %s (%d/%d)", arg, i+1, fs.NArg())
			spin.Unlock()
		}
		r, err := inspect(ctx, opener, arg, cfg.Output.Text)
		if err != nil {
			logger.Error("failed to read book", zap.String("path", arg), zap.Error(err))
			failed++
			continue
		}
		logger.Debug("book read", zap.String("path", arg), zap.String("title", r.Title))
		reports = append(reports, r)
	}
	if spin != nil {
		spin.Stop()
	}

	if err := writeReports(stdout, cfg.Output.Format, reports); err != nil {
		logger.Error("failed to write output", zap.Error(err))
		return 1
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// newLogger writes console-encoded logs to w. Verbose mode adds debug
// records and caller information.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.InfoLevel
	encCfg := zap.NewProductionEncoderConfig()
	var opts []zap.Option
	if verbose {
		level = zapcore.DebugLevel
		encCfg = zap.NewDevelopmentEncoderConfig()
		opts = append(opts, zap.AddCaller())
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core, opts...)
}

// inspect opens one book and builds its report. Text extraction failures are
// recorded as warnings; only open failures are returned.
func inspect(ctx context.Context, opener *source.Opener, arg string, withText bool) (report, error) {
	ref, err := source.ParseRef(arg)
	if err != nil {
		return report{}, err
	}
	doc, err := opener.Open(ctx, ref)
	if err != nil {
		return report{}, err
	}

	md := doc.Metadata()
	r := report{
		Path:        ref.String(),
		Title:       md.Title,
		Authors:     md.Authors,
		Publisher:   md.Publisher,
		Imprint:     md.Imprint,
		Description: md.Description,
		ISBN:        md.ISBN,
		Subjects:    md.Subjects,
		PublishDate: md.PublishDate,
		Review:      md.Review,
		Contributor: md.Contributor,
		Copyright:   md.Copyright,
		ASIN:        md.ASIN,
		Language:    md.Language,
		Compression: compressionName(doc.Compression()),
		Encrypted:   doc.Encrypted(),
		TextLength:  doc.TextLength(),
		Warnings:    doc.Warnings(),
	}
	if withText {
		text, err := doc.PlainText()
		if err != nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("text: %v", err))
		} else {
			r.Text = text
		}
	}
	return r, nil
}

func compressionName(c int) string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown (%d)", c)
}

func writeReports(w io.Writer, format string, reports []report) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	}
}
