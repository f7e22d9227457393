package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// catboostFile mirrors the parts of CatBoost's JSON export
// (model.save_model(path, format="json")) needed to evaluate a regressor.
type catboostFile struct {
	FeaturesInfo struct {
		FloatFeatures []struct {
			FeatureIndex     int       `json:"feature_index"`
			FlatFeatureIndex int       `json:"flat_feature_index"`
			Borders          []float64 `json:"borders"`
		} `json:"float_features"`
	} `json:"features_info"`
	ObliviousTrees []struct {
		LeafValues []float64 `json:"leaf_values"`
		Splits     []struct {
			Border            float64 `json:"border"`
			FloatFeatureIndex int     `json:"float_feature_index"`
			SplitType         string  `json:"split_type"`
		} `json:"splits"`
	} `json:"oblivious_trees"`
	ScaleAndBias []json.RawMessage `json:"scale_and_bias"`
}

// split is one tree level: go right when features[feature] > border.
type split struct {
	feature int
	border  float64
}

type tree struct {
	splits []split
	leaves []float64
}

// CatBoostModel evaluates an oblivious-tree ensemble in memory.
type CatBoostModel struct {
	trees    []tree
	features int
	scale    float64
	bias     float64
}

// LoadCatBoost reads and validates a CatBoost JSON export.
func LoadCatBoost(path string) (*CatBoostModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("predict: read %s: %w", path, err)
	}
	m, err := ParseCatBoost(raw)
	if err != nil {
		return nil, fmt.Errorf("predict: %s: %w", path, err)
	}
	return m, nil
}

// ParseCatBoost decodes a CatBoost JSON export. Only float features are
// supported; the model must have been trained on exactly the Features columns.
func ParseCatBoost(raw []byte) (*CatBoostModel, error) {
	var f catboostFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode catboost json: %w", err)
	}
	if len(f.ObliviousTrees) == 0 {
		return nil, fmt.Errorf("model has no oblivious_trees")
	}

	m := &CatBoostModel{features: len(f.FeaturesInfo.FloatFeatures), scale: 1}
	if m.features == 0 {
		m.features = len(Features)
	}
	if m.features != len(Features) {
		return nil, fmt.Errorf("model expects %d float features, want %d %v", m.features, len(Features), Features)
	}

	for i, t := range f.ObliviousTrees {
		if len(t.LeafValues) != 1<<len(t.Splits) {
			return nil, fmt.Errorf("tree %d: %d leaf values for depth %d", i, len(t.LeafValues), len(t.Splits))
		}
		tr := tree{leaves: t.LeafValues, splits: make([]split, len(t.Splits))}
		for j, s := range t.Splits {
			if s.SplitType != "" && s.SplitType != "FloatFeature" {
				return nil, fmt.Errorf("tree %d: unsupported split type %q", i, s.SplitType)
			}
			if s.FloatFeatureIndex < 0 || s.FloatFeatureIndex >= m.features {
				return nil, fmt.Errorf("tree %d: float_feature_index %d out of range", i, s.FloatFeatureIndex)
			}
			tr.splits[j] = split{feature: s.FloatFeatureIndex, border: s.Border}
		}
		m.trees = append(m.trees, tr)
	}

	if err := m.parseScaleAndBias(f.ScaleAndBias); err != nil {
		return nil, err
	}
	return m, nil
}

// parseScaleAndBias accepts [scale, bias] and [scale, [bias]].
func (m *CatBoostModel) parseScaleAndBias(parts []json.RawMessage) error {
	if len(parts) == 0 {
		return nil
	}
	if err := json.Unmarshal(parts[0], &m.scale); err != nil {
		return fmt.Errorf("scale_and_bias: scale: %w", err)
	}
	if len(parts) < 2 {
		return nil
	}
	var biases []float64
	if err := json.Unmarshal(parts[1], &biases); err == nil {
		if len(biases) > 1 {
			return fmt.Errorf("scale_and_bias: multi-dimensional models are not supported")
		}
		if len(biases) == 1 {
			m.bias = biases[0]
		}
		return nil
	}
	if err := json.Unmarshal(parts[1], &m.bias); err != nil {
		return fmt.Errorf("scale_and_bias: bias: %w", err)
	}
	return nil
}

// Trees returns the ensemble size.
func (m *CatBoostModel) Trees() int { return len(m.trees) }

// Predict implements Predictor.
func (m *CatBoostModel) Predict(_ context.Context, age, income float64) (float64, error) {
	return m.Eval([]float64{age, income})
}

// Eval scores a feature vector ordered like Features.
func (m *CatBoostModel) Eval(features []float64) (float64, error) {
	if len(features) != m.features {
		return 0, fmt.Errorf("predict: got %d features, want %d", len(features), m.features)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("predict: feature %s is not finite", Features[i])
		}
	}

	sum := 0.0
	for _, t := range m.trees {
		idx := 0
		for depth, s := range t.splits {
			if features[s.feature] > s.border {
				idx |= 1 << depth
			}
		}
		sum += t.leaves[idx]
	}
	return m.scale*sum + m.bias, nil
}
