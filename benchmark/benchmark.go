// Package benchmark measures transcode throughput and compression across
// resolutions and output formats.
package benchmark

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-transcode/engine"
	"github.com/nvr-ai/go-transcode/images"
	"github.com/nvr-ai/go-transcode/params"
	"github.com/nvr-ai/go-transcode/util"
)

// Resolution represents image dimensions for benchmarking
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// Pixels returns width × height.
func (r Resolution) Pixels() int64 {
	return int64(r.Width) * int64(r.Height)
}

// TestScenario defines a specific test configuration
type TestScenario struct {
	Name       string        `json:"name"`
	Resolution Resolution    `json:"resolution"`
	Format     images.Format `json:"format"`
	Quality    int           `json:"quality"`
	Grayscale  bool          `json:"grayscale"`
	Iterations int           `json:"iterations"`
	WarmupRuns int           `json:"warmup_runs"`
}

// Fields converts the scenario into request fields.
func (s TestScenario) Fields() params.RequestFields {
	return params.RequestFields{
		PreferNextGenFormat: s.Format == images.FormatAVIF,
		Quality:             strconv.Itoa(s.Quality),
		Grayscale:           strconv.FormatBool(s.Grayscale),
	}
}

// PerformanceMetrics captures detailed performance data
type PerformanceMetrics struct {
	Scenario         TestScenario  `json:"scenario"`
	Timestamp        time.Time     `json:"timestamp"`
	TotalDuration    time.Duration `json:"total_duration"`
	ImagesPerSecond  float64       `json:"images_per_second"`
	OriginalBytes    uint64        `json:"original_bytes"`
	CompressedBytes  uint64        `json:"compressed_bytes"`
	CompressionRatio float64       `json:"compression_ratio"`
	Sliced           int           `json:"sliced"`
	Fallbacks        int           `json:"fallbacks"`
	ErrorRate        float64       `json:"error_rate"`
	MemoryStats      MemoryMetrics `json:"memory_stats"`
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
}

// Transcoder is the engine under test.
type Transcoder interface {
	Transcode(ctx context.Context, in engine.Input) (*engine.Result, error)
}

// BenchmarkSuite manages and executes benchmark scenarios
type BenchmarkSuite struct {
	scenarios  []TestScenario
	transcoder Transcoder
	outputDir  string
	corpus     [][]byte
	mu         sync.RWMutex
	results    []PerformanceMetrics
}

// NewBenchmarkSuite creates a new benchmark suite
func NewBenchmarkSuite(t Transcoder, outputDir string) *BenchmarkSuite {
	return &BenchmarkSuite{
		transcoder: t,
		outputDir:  outputDir,
		scenarios:  make([]TestScenario, 0),
		results:    make([]PerformanceMetrics, 0),
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *BenchmarkSuite) AddScenario(scenario TestScenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// LoadTestImages loads a corpus from a file or directory. Without a corpus,
// each scenario synthesizes a source at its resolution.
func (bs *BenchmarkSuite) LoadTestImages(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "failed to stat image path")
	}

	var files []util.ImageFile
	if info.IsDir() {
		files, err = util.LoadDirectoryImageFiles(path)
	} else {
		var f util.ImageFile
		f, err = util.LoadImageFile(path)
		files = []util.ImageFile{f}
	}
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no valid images found in %s", path)
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.corpus = bs.corpus[:0]
	for _, f := range files {
		bs.corpus = append(bs.corpus, f.Data)
	}
	return nil
}

// sources returns the inputs for a scenario.
func (bs *BenchmarkSuite) sources(scenario TestScenario) ([][]byte, error) {
	bs.mu.RLock()
	corpus := bs.corpus
	bs.mu.RUnlock()

	if len(corpus) > 0 {
		return corpus, nil
	}
	src, err := Synthesize(scenario.Resolution.Width, scenario.Resolution.Height)
	if err != nil {
		return nil, err
	}
	return [][]byte{src}, nil
}

// RunScenario executes a single benchmark scenario
func (bs *BenchmarkSuite) RunScenario(ctx context.Context, scenario TestScenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %s has no iterations", scenario.Name)
	}

	sources, err := bs.sources(scenario)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare sources")
	}

	input := func(i int) engine.Input {
		data := sources[i%len(sources)]
		return engine.Input{Data: data, OriginSize: uint64(len(data)), Fields: scenario.Fields()}
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		_, _ = bs.transcoder.Transcode(ctx, input(i))
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Timestamp: time.Now(),
	}

	failures := 0
	startTime := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := bs.transcoder.Transcode(ctx, input(i))
		if err != nil {
			failures++
			continue
		}

		metrics.OriginalBytes += res.OriginalSize
		metrics.CompressedBytes += res.CompressedSize
		if res.Sliced {
			metrics.Sliced++
		}
		if res.FellBack {
			metrics.Fallbacks++
		}
	}
	metrics.TotalDuration = time.Since(startTime)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics.ImagesPerSecond = float64(scenario.Iterations) / metrics.TotalDuration.Seconds()
	metrics.ErrorRate = float64(failures) / float64(scenario.Iterations)
	if metrics.OriginalBytes > 0 {
		metrics.CompressionRatio = float64(metrics.CompressedBytes) / float64(metrics.OriginalBytes)
	}
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
	}

	return metrics, nil
}

// RunAllScenarios executes all configured benchmark scenarios
func (bs *BenchmarkSuite) RunAllScenarios(ctx context.Context) error {
	bs.mu.Lock()
	scenarios := make([]TestScenario, len(bs.scenarios))
	copy(scenarios, bs.scenarios)
	bs.mu.Unlock()

	for _, scenario := range scenarios {
		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			fmt.Printf("❌ Scenario %s failed: %v\n", scenario.Name, err)
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		fmt.Printf("✅ Scenario %s completed: %.2f images/s, ratio %.3f\n",
			scenario.Name, metrics.ImagesPerSecond, metrics.CompressionRatio)
	}

	return bs.SaveResults()
}

// SaveResults persists benchmark results to filesystem
func (bs *BenchmarkSuite) SaveResults() error {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return errors.Wrap(err, "failed to save summary CSV")
	}

	fmt.Printf("Results saved to: %s\n", resultsFile)
	fmt.Printf("Summary saved to: %s\n", summaryFile)
	return nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	_ = w.Write([]string{
		"Scenario", "Resolution", "Format", "Quality", "Images_Per_Second",
		"Total_Duration_ms", "Compression_Ratio", "Sliced", "Fallbacks", "Error_Rate",
	})
	for _, r := range results {
		_ = w.Write([]string{
			r.Scenario.Name,
			r.Scenario.Resolution.Name,
			string(r.Scenario.Format),
			strconv.Itoa(r.Scenario.Quality),
			fmt.Sprintf("%.2f", r.ImagesPerSecond),
			fmt.Sprintf("%.2f", float64(r.TotalDuration.Nanoseconds())/1e6),
			fmt.Sprintf("%.4f", r.CompressionRatio),
			strconv.Itoa(r.Sliced),
			strconv.Itoa(r.Fallbacks),
			fmt.Sprintf("%.4f", r.ErrorRate),
		})
	}
	w.Flush()
	return w.Error()
}

// GetResults returns all benchmark results
func (bs *BenchmarkSuite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}

// Synthesize renders a width × height test pattern and encodes it as a
// high-quality JPEG.
func Synthesize(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid resolution %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	images.Parallel(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				i := img.PixOffset(x, y)
				img.Pix[i+0] = uint8(x ^ y)
				img.Pix[i+1] = uint8(x*3 + y)
				img.Pix[i+2] = uint8(x + y*7)
				img.Pix[i+3] = 255
			}
		}
	})

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, errors.Wrap(err, "failed to encode test pattern")
	}
	return buf.Bytes(), nil
}
