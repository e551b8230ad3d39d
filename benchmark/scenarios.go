package benchmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-transcode/images"
	"github.com/nvr-ai/go-transcode/params"
)

// TierResolutions holds one representative resolution per pixel tier, plus
// an oversized panorama that exercises slicing.
var TierResolutions = map[images.TierName]Resolution{
	images.TierSmall:  {Width: 800, Height: 600, Name: "800x600"},
	images.TierMedium: {Width: 1920, Height: 1080, Name: "1920x1080"},
	images.TierLarge:  {Width: 4000, Height: 3000, Name: "4000x3000"},
}

// PanoramaResolution is wider than the default max dimension.
var PanoramaResolution = Resolution{Width: 20000, Height: 1000, Name: "20000x1000"}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario TestScenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: TestScenario{
			Name:       name,
			Format:     images.FormatJPEG,
			Quality:    params.DefaultQuality,
			Iterations: 20,
			WarmupRuns: 2,
		},
	}
}

// WithResolution sets the image resolution
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithFormat sets the requested output format (JPEG or AVIF)
func (sb *ScenarioBuilder) WithFormat(format images.Format) *ScenarioBuilder {
	sb.scenario.Format = format
	return sb
}

// WithQuality sets the requested quality
func (sb *ScenarioBuilder) WithQuality(quality int) *ScenarioBuilder {
	sb.scenario.Quality = quality
	return sb
}

// WithGrayscale requests grayscale output
func (sb *ScenarioBuilder) WithGrayscale(grayscale bool) *ScenarioBuilder {
	sb.scenario.Grayscale = grayscale
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() TestScenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Scenarios   []TestScenario `json:"scenarios"`
}

// TierScenarios returns one scenario per pixel tier and requested format,
// largest tier first.
func TierScenarios(iterations int) *ScenarioSet {
	scenarios := make([]TestScenario, 0)
	for _, tier := range images.GetAllTiers() {
		res := TierResolutions[tier.Name]
		for _, format := range []images.Format{images.FormatJPEG, images.FormatAVIF} {
			scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("%s_%s", tier.Name, format)).
				WithResolution(res.Width, res.Height).
				WithFormat(format).
				WithIterations(iterations).
				Build())
		}
	}

	return &ScenarioSet{
		Name:        "Tier Comparison",
		Description: "Each pixel tier encoded as JPEG and AVIF",
		Scenarios:   scenarios,
	}
}

// QuickScenarios returns a small set for smoke testing, including one
// sliced panorama.
func QuickScenarios() *ScenarioSet {
	small := TierResolutions[images.TierSmall]
	return &ScenarioSet{
		Name:        "Quick Test",
		Description: "Small still images and one oversized panorama",
		Scenarios: []TestScenario{
			NewScenarioBuilder("small_jpeg").WithResolution(small.Width, small.Height).WithIterations(5).Build(),
			NewScenarioBuilder("small_avif_gray").
				WithResolution(small.Width, small.Height).
				WithFormat(images.FormatAVIF).
				WithGrayscale(true).
				WithIterations(5).
				Build(),
			NewScenarioBuilder("panorama_avif").
				WithResolution(PanoramaResolution.Width, PanoramaResolution.Height).
				WithFormat(images.FormatAVIF).
				WithIterations(1).
				WithWarmupRuns(0).
				Build(),
		},
	}
}

// SaveScenarioSet saves a scenario set to a JSON file
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(scenarioSet, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scenario file")
	}

	return nil
}

// LoadScenarioSet loads a scenario set from a JSON file
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	var scenarioSet ScenarioSet
	if err := json.Unmarshal(data, &scenarioSet); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scenario set")
	}

	return &scenarioSet, nil
}
