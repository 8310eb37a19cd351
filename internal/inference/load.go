package inference

import (
	"errors"
	"time"
)

// ModelConfig selects and configures the model backend.
type ModelConfig struct {
	// Path is the JSON artifact for a DenseModel.
	Path string

	// ServingURL, when set, takes precedence over Path.
	ServingURL string
	Name       string
	Timeout    time.Duration
}

// ErrNoModel is returned by Load when neither a path nor a serving URL is set.
var ErrNoModel = errors.New("no model configured: set model.path or model.serving_url")

// Load returns the configured predictor. A file-backed model is read and
// validated here, once, so a missing or malformed artifact fails start-up.
func Load(cfg ModelConfig) (Predictor, error) {
	switch {
	case cfg.ServingURL != "":
		name := cfg.Name
		if name == "" {
			name = "traffic"
		}
		return NewServingClient(cfg.ServingURL, name, cfg.Timeout), nil
	case cfg.Path != "":
		return LoadDenseModel(cfg.Path)
	default:
		return nil, ErrNoModel
	}
}
