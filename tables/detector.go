package tables

import (
	"context"

	"github.com/cdehaan/lattice/engine"
	"github.com/cdehaan/lattice/model"
)

// Detector is the interface for table region detection algorithms.
type Detector interface {
	// Detect proposes candidate table regions on a page. A page with no
	// tabular structure yields an empty slice, not an error.
	Detect(ctx context.Context, geom *engine.PageGeometry) ([]model.Region, error)

	// Name returns the detector name.
	Name() string

	// Configure sets detector parameters.
	Configure(config Config) error
}

// Config holds detector configuration.
type Config struct {
	// Minimum rows for a valid region
	MinRows int

	// Minimum columns for a valid region
	MinCols int

	// Minimum confidence threshold (0-1)
	MinConfidence float64

	// Whether to use ruled-line detection
	UseLines bool

	// Whether to use whitespace-gap clustering
	UseWhitespace bool

	// Tolerance for row/column alignment (points)
	AlignmentTolerance float64

	// Overlap ratio at or above which two candidate regions on the same
	// page are merged into one. The boundary is inclusive: overlap exactly
	// equal to the threshold merges.
	MergeOverlapThreshold float64
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		MinRows:               2,
		MinCols:               2,
		MinConfidence:         0.4,
		UseLines:              true,
		UseWhitespace:         true,
		AlignmentTolerance:    2.0,
		MergeOverlapThreshold: 0.5,
	}
}

// DetectorRegistry holds registered detectors.
type DetectorRegistry struct {
	detectors map[string]Detector
}

// NewRegistry creates a new detector registry.
func NewRegistry() *DetectorRegistry {
	return &DetectorRegistry{
		detectors: make(map[string]Detector),
	}
}

// Register registers a detector.
func (r *DetectorRegistry) Register(detector Detector) {
	r.detectors[detector.Name()] = detector
}

// Get retrieves a detector by name.
func (r *DetectorRegistry) Get(name string) Detector {
	return r.detectors[name]
}

// List returns all registered detector names.
func (r *DetectorRegistry) List() []string {
	names := make([]string, 0, len(r.detectors))
	for name := range r.detectors {
		names = append(names, name)
	}
	return names
}

// Global registry
var globalRegistry = NewRegistry()

// RegisterDetector registers a detector globally.
func RegisterDetector(detector Detector) {
	globalRegistry.Register(detector)
}

// GetDetector retrieves a detector by name.
func GetDetector(name string) Detector {
	return globalRegistry.Get(name)
}

// ListDetectors returns all registered detector names.
func ListDetectors() []string {
	return globalRegistry.List()
}

func init() {
	RegisterDetector(NewGeometricDetector())
}
