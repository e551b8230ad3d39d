package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/codec/native"
	"github.com/nvr-ai/go-transcode/codec/vipscodec"
	"github.com/nvr-ai/go-transcode/config"
	"github.com/nvr-ai/go-transcode/engine"
	"github.com/nvr-ai/go-transcode/logger"
	"github.com/nvr-ai/go-transcode/params"
	"github.com/nvr-ai/go-transcode/profiler"
	"github.com/nvr-ai/go-transcode/util"
)

const (
	// DefaultOutputDir is where transcoded files are written.
	DefaultOutputDir = "transcoded"
)

// InputType represents the type of input being processed
type InputType int

const (
	InputImage InputType = iota
	InputDirectory
)

// InputConfig holds the input configuration
type InputConfig struct {
	Type InputType
	Path string
}

func main() {
	var (
		configPath string
		inputPath  string
		outputDir  string
		backend    string
		quality    string
		avif       bool
		grayscale  bool
		report     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&inputPath, "input", "", "Image file or directory of images to transcode")
	flag.StringVar(&outputDir, "output-dir", DefaultOutputDir, "Output directory for transcoded images")
	flag.StringVar(&backend, "backend", "", "Codec backend override (vips, native)")
	flag.StringVar(&quality, "quality", "", "Quality 10-100 (default 75)")
	flag.BoolVar(&avif, "avif", false, "Prefer AVIF output over JPEG")
	flag.BoolVar(&grayscale, "grayscale", false, "Convert to grayscale")
	flag.BoolVar(&report, "report", true, "Print timings and savings when done")
	flag.Parse()

	inputConfig, err := validateInputFlags(inputPath)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := loadConfig(configPath, backend)
	if err != nil {
		log.Fatal(err)
	}

	if err := logger.Initialize(cfg.Log); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	c, err := newCodec(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	recorder := profiler.NewRecorder(0)
	eng := engine.New(cfg, c, engine.WithRecorder(recorder))
	defer eng.Close()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	files, err := loadInputs(inputConfig)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fields := params.RequestFields{
		PreferNextGenFormat: avif,
		Quality:             quality,
		Grayscale:           strconv.FormatBool(grayscale),
	}

	fmt.Printf("\n🚀 Transcoding %d file(s) with the %s backend\n", len(files), c.Name())
	fmt.Printf("=====================================\n")

	var failed int
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		if err := transcodeFile(ctx, eng, f, fields, outputDir); err != nil {
			failed++
			fmt.Printf("⚠️  %s: %v (original kept)\n", f.Name, err)
		}
	}

	fmt.Printf("=====================================\n")
	fmt.Printf("✅ %d succeeded, ❌ %d failed\n\n", len(files)-failed, failed)

	if report {
		recorder.Report(os.Stdout)
	}
}

func transcodeFile(ctx context.Context, eng *engine.Engine, f util.ImageFile, fields params.RequestFields, outputDir string) error {
	res, err := eng.Transcode(ctx, engine.Input{
		Data:       f.Data,
		OriginSize: uint64(len(f.Data)),
		Fields:     fields,
	})
	if err != nil {
		return err
	}

	origin := (&url.URL{Scheme: "file", Path: "/" + f.Name}).String()
	name, err := url.PathUnescape(res.Filename(origin))
	if err != nil {
		name = f.Name + res.Format.Extension()
	}

	out := filepath.Join(outputDir, name)
	if err := os.WriteFile(out, res.Bytes, 0o644); err != nil {
		return errors.Wrap(err, "failed to write output")
	}

	flags := ""
	if res.Sliced {
		flags += " 🔪 sliced"
	}
	if res.FellBack {
		flags += " ↩️  fallback"
	}
	fmt.Printf("🖼️  %s → %s | %dx%d | %s → %s (saved %s)%s\n",
		f.Name, name, res.Width, res.Height,
		profiler.FormatBytes(res.OriginalSize),
		profiler.FormatBytes(res.CompressedSize),
		profiler.FormatBytes(res.BytesSaved()),
		flags,
	)
	return nil
}

func loadConfig(path, backend string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if backend != "" {
		cfg.Engine.Backend = config.Backend(backend)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func newCodec(cfg *config.Config) (codec.Codec, error) {
	switch cfg.Engine.Backend {
	case config.BackendVips:
		return vipscodec.New(cfg.Vips), nil
	case config.BackendNative:
		return native.New(), nil
	}
	return nil, errors.Errorf("unknown backend %q", cfg.Engine.Backend)
}

func loadInputs(in *InputConfig) ([]util.ImageFile, error) {
	if in.Type == InputDirectory {
		return util.LoadDirectoryImageFiles(in.Path)
	}
	f, err := util.LoadImageFile(in.Path)
	if err != nil {
		return nil, err
	}
	return []util.ImageFile{f}, nil
}

// validateInputFlags checks the input path and determines its type.
func validateInputFlags(path string) (*InputConfig, error) {
	if path == "" {
		return nil, errors.New("-input is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot access input %s", path)
	}
	if info.IsDir() {
		return &InputConfig{Type: InputDirectory, Path: path}, nil
	}
	if !util.IsImageFile(path) {
		return nil, errors.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
	return &InputConfig{Type: InputImage, Path: path}, nil
}
