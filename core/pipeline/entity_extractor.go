package pipeline

import (
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/recaller/helper"
	"github.com/siherrmann/recaller/model"
)

// DefaultEntityExtractor creates an entity extractor using a NER model.
// Uses distilbert-NER, detecting PER, ORG, LOC and MISC entities.
func DefaultEntityExtractor() (ExtractFunc, error) {
	modelName := "KnightsAnalytics/distilbert-NER"
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return func(text string) ([]model.EntityKey, error) {
		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}

		if len(result.Entities) == 0 {
			return nil, nil
		}

		var keys []model.EntityKey
		seen := make(map[model.EntityKey]bool)
		for _, entity := range result.Entities[0] {
			key, err := model.NewEntityKey(entity.Word, normalizeEntityLabel(entity.Entity))
			if err != nil {
				continue
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}

		return keys, nil
	}, nil
}

// normalizeEntityLabel removes the BIO tagging prefixes (B-, I-) from NER labels.
func normalizeEntityLabel(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}
