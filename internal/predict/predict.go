// Package predict serves the tabular regression model. A Predictor is built
// once at process start from MODEL_URI and shared by the HTTP API, the agent
// tools and the CLI. The artifact is never reloaded.
package predict

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoArtifact is returned by Open when MODEL_URI does not point at a model.
var ErrNoArtifact = errors.New("predict: no model artifact found")

// Features are the model inputs, in training column order.
var Features = []string{"age", "income"}

// artifactName is the file looked up when MODEL_URI names a directory.
const artifactName = "model.json"

// Predictor scores one (age, income) pair.
type Predictor interface {
	Predict(ctx context.Context, age, income float64) (float64, error)
}

// Open resolves uri into a Predictor. http(s) URIs address a served model
// (`mlflow models serve`); anything else is a local CatBoost JSON export,
// either the file itself or a directory containing model.json.
func Open(uri string) (Predictor, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("%w: MODEL_URI is empty", ErrNoArtifact)
	}
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return NewMLflowPredictor(uri, nil), nil
	}

	path := strings.TrimPrefix(uri, "file://")
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoArtifact, path)
	}
	if err != nil {
		return nil, fmt.Errorf("predict: stat %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, artifactName)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoArtifact, path)
		}
	}
	return LoadCatBoost(path)
}
