package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"health-records-platform/internal/rag"
	"health-records-platform/models"
)

// maxExtractionInputRunes bounds how much report text is sent to the
// model for structured extraction. Long reports are front-truncated
// since headers carry the patient and test metadata.
const maxExtractionInputRunes = 12000

// MedicalExtractor pulls structured fields and a short summary out of
// raw report text using the generation model.
type MedicalExtractor struct {
	generator rag.Generator
}

func NewMedicalExtractor(generator rag.Generator) *MedicalExtractor {
	return &MedicalExtractor{generator: generator}
}

const extractionPromptTemplate = `Extract structured medical information from the following report text.
Respond with ONLY a JSON object, no prose, using exactly this shape:
{
  "patient_name": string or null,
  "patient_age": string or null,
  "patient_gender": string or null,
  "report_date": string or null,
  "report_type": string or null,
  "diagnosis": string or null,
  "key_findings": [string],
  "recommendations": [string],
  "test_results": [{"test_name": string, "value": string, "unit": string, "reference_range": string, "flag": string}]
}
Use null for fields not present in the text. Do not invent values.

Report text:
%s`

const summaryPromptTemplate = `Summarize the following medical report in 3-4 plain sentences for a patient.
Mention the report type, the main findings, and any flagged results. Do not add information
that is not in the text.

Report text:
%s`

// Extract returns the structured fields found in the report text.
func (m *MedicalExtractor) Extract(ctx context.Context, text string) (*models.MedicalInfo, error) {
	prompt := fmt.Sprintf(extractionPromptTemplate, truncateRunes(text, maxExtractionInputRunes))

	raw, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction generation failed: %w", err)
	}

	var info models.MedicalInfo
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &info); err != nil {
		return nil, fmt.Errorf("extraction returned invalid JSON: %w", err)
	}
	return &info, nil
}

// Summarize returns a short patient-facing summary of the report.
func (m *MedicalExtractor) Summarize(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(summaryPromptTemplate, truncateRunes(text, maxExtractionInputRunes))

	summary, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// stripCodeFences removes a markdown code fence the model sometimes
// wraps around JSON output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
