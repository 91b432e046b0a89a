package tfidf

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spamguard/spamguard/internal/core"
	"github.com/spamguard/spamguard/internal/utils"
	"go.uber.org/zap"
)

// modelArtifact is the JSON export of a fitted TF-IDF vectorizer plus a
// logistic regression head. Vocabulary maps each term to its column in the
// idf and coefficients arrays.
type modelArtifact struct {
	Model        string         `json:"model"`
	NgramMin     int            `json:"ngram_min"`
	NgramMax     int            `json:"ngram_max"`
	Vocabulary   map[string]int `json:"vocabulary"`
	IDF          []float64      `json:"idf"`
	Coefficients []float64      `json:"coefficients"`
	Intercept    float64        `json:"intercept"`
}

// Classifier scores text with a TF-IDF + logistic regression model loaded
// from a JSON artifact. Inference is local and deterministic; the same input
// always yields the same probability.
type Classifier struct {
	modelName     string
	vocabulary    map[string]int
	idf           []float64
	coefficients  []float64
	intercept     float64
	ngramMin      int
	ngramMax      int
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// New loads the model artifact from modelPath. Load and validation failures
// are configuration errors; the classifier is mandatory and callers treat
// them as fatal.
func New(modelPath string, textProcessor *utils.TextProcessor, logger *zap.Logger) (*Classifier, error) {
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, &core.ConfigurationError{Err: fmt.Errorf("reading classifier model %q: %w", modelPath, err)}
	}

	var artifact modelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, &core.ConfigurationError{Err: fmt.Errorf("parsing classifier model %q: %w", modelPath, err)}
	}

	if err := validate(&artifact); err != nil {
		return nil, &core.ConfigurationError{Err: fmt.Errorf("invalid classifier model %q: %w", modelPath, err)}
	}

	name := artifact.Model
	if name == "" {
		name = "tfidf-logreg"
	}
	ngramMin, ngramMax := artifact.NgramMin, artifact.NgramMax
	if ngramMin <= 0 {
		ngramMin = 1
	}
	if ngramMax < ngramMin {
		ngramMax = ngramMin
	}

	logger.Info("Loaded classifier model",
		zap.String("model", name),
		zap.String("path", modelPath),
		zap.Int("vocabulary_size", len(artifact.Vocabulary)),
		zap.Int("ngram_min", ngramMin),
		zap.Int("ngram_max", ngramMax))

	return &Classifier{
		modelName:     name,
		vocabulary:    artifact.Vocabulary,
		idf:           artifact.IDF,
		coefficients:  artifact.Coefficients,
		intercept:     artifact.Intercept,
		ngramMin:      ngramMin,
		ngramMax:      ngramMax,
		textProcessor: textProcessor,
		logger:        logger,
	}, nil
}

// validate checks the artifact's internal consistency before use
func validate(artifact *modelArtifact) error {
	if len(artifact.Vocabulary) == 0 {
		return fmt.Errorf("empty vocabulary")
	}
	if len(artifact.IDF) != len(artifact.Coefficients) {
		return fmt.Errorf("idf and coefficients disagree on feature count: %d vs %d",
			len(artifact.IDF), len(artifact.Coefficients))
	}
	for term, index := range artifact.Vocabulary {
		if index < 0 || index >= len(artifact.IDF) {
			return fmt.Errorf("term %q maps to column %d, outside %d features", term, index, len(artifact.IDF))
		}
	}
	return nil
}

// ModelName returns the artifact's model identifier
func (c *Classifier) ModelName() string {
	return c.modelName
}

// Classify scores raw text. Normalization happens here, so callers never
// pre-normalize. Text with no known terms degrades to the intercept-only
// probability instead of failing.
func (c *Classifier) Classify(ctx context.Context, text string) (bool, float32, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, &core.ClassifierError{Err: err}
	}

	features := c.vectorize(c.textProcessor.Normalize(text))

	score := c.intercept
	for index, weight := range features {
		score += c.coefficients[index] * weight
	}
	probability := float32(sigmoid(score))

	c.logger.Debug("Classified text",
		zap.Float32("probability", probability),
		zap.Int("matched_features", len(features)))

	return probability > core.SpamBoundary, probability, nil
}

// vectorize builds the sparse L2-normalized TF-IDF vector for normalized
// text, keyed by feature column.
func (c *Classifier) vectorize(normalized string) map[int]float64 {
	tokens := strings.Fields(normalized)

	features := make(map[int]float64)
	for n := c.ngramMin; n <= c.ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			term := tokens[i]
			if n > 1 {
				term = strings.Join(tokens[i:i+n], " ")
			}
			if index, ok := c.vocabulary[term]; ok {
				features[index]++
			}
		}
	}

	var sumSquares float64
	for index := range features {
		features[index] *= c.idf[index]
		sumSquares += features[index] * features[index]
	}
	if sumSquares > 0 {
		norm := math.Sqrt(sumSquares)
		for index := range features {
			features[index] /= norm
		}
	}

	return features
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
