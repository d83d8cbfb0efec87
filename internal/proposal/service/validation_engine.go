/*
 * Copyright (c) 2025, WSO2 LLC. (http://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wso2/profile-reconciliation-service/internal/proposal/model"
	"github.com/wso2/profile-reconciliation-service/internal/system/client"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
)

// ValidationEngine scores the plausibility of a draft and detects conflicts
// against the current profile state. The engine is advisory: it never
// mutates the store, and an unavailable judge degrades to a deterministic
// fallback rather than blocking submission.
type ValidationEngine struct {
	judge client.JudgementClientInterface
}

// sourceTypeDomains is the deterministic fallback table mapping a source type
// to the profile domains it plausibly informs.
var sourceTypeDomains = map[string][]string{
	"self_report":     {"goals_profile", "activity_profile", "social_emotional_profile"},
	"counseling_note": {"social_emotional_profile", "family_profile", "goals_profile"},
	"health_form":     {"health_profile"},
	"academic_record": {"academic_profile"},
	"manual_edit":     {"academic_profile", "health_profile", "family_profile"},
}

// judgeVerdict is the structured shape expected from the judge. Confidence
// may arrive on a 0-100 scale and is normalized.
type judgeVerdict struct {
	IsValid          bool     `json:"is_valid"`
	Confidence       float64  `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
	SuggestedDomains []string `json:"suggested_domains"`
	Conflicts        []string `json:"conflicts"`
	Recommendations  []string `json:"recommendations"`
}

func NewValidationEngine(judge client.JudgementClientInterface) *ValidationEngine {

	return &ValidationEngine{judge: judge}
}

// Validate scores one draft against the subject's current stored value.
// currentValue is the stored serialized value for the draft's target, empty
// when the field is unset.
func (v *ValidationEngine) Validate(ctx context.Context, draft model.ProposalDraft, sourceType,
	currentValue string) model.ValidationResult {

	if result, fatal := v.checkDeterministic(draft); fatal {
		return result
	}

	verdict, err := v.judgeDraft(ctx, draft, sourceType, currentValue)
	if err != nil {
		log.GetLogger().Debug("Judgement unavailable, using deterministic fallback.",
			log.String("subjectId", draft.SubjectId), log.Error(err))
		return v.fallbackResult(draft, sourceType)
	}

	result := model.ValidationResult{
		IsValid:          verdict.IsValid,
		Confidence:       normalizeConfidence(verdict.Confidence),
		Reasoning:        verdict.Reasoning,
		SuggestedDomains: verdict.SuggestedDomains,
		Recommendations:  verdict.Recommendations,
	}
	if currentValue != "" {
		serialized, serr := draft.ProposedValue.Serialize()
		if serr == nil {
			result.Conflicts = v.DetectConflicts(draft.TargetLocator, serialized, currentValue)
		}
	}
	return result
}

// checkDeterministic runs plausibility checks that need no model. The second
// return value reports whether the verdict is final.
func (v *ValidationEngine) checkDeterministic(draft model.ProposalDraft) (model.ValidationResult, bool) {

	if _, known := constants.KnownProfileTables[draft.TargetLocator.Table]; !known {
		return model.ValidationResult{
			IsValid:    false,
			Confidence: 1.0,
			Reasoning:  fmt.Sprintf("Unknown target table: %s", draft.TargetLocator.Table),
		}, true
	}

	if draft.ProposedValue.Kind == model.KindNumber {
		if math.IsNaN(draft.ProposedValue.Number) || math.IsInf(draft.ProposedValue.Number, 0) {
			return model.ValidationResult{
				IsValid:    false,
				Confidence: 1.0,
				Reasoning:  "Proposed number is not finite.",
			}, true
		}
	}

	if draft.ProposedValue.Kind == model.KindText && len(draft.ProposedValue.Text) > 10000 {
		return model.ValidationResult{
			IsValid:    false,
			Confidence: 1.0,
			Reasoning:  "Proposed text exceeds the maximum field length.",
		}, true
	}

	return model.ValidationResult{}, false
}

func (v *ValidationEngine) judgeDraft(ctx context.Context, draft model.ProposalDraft, sourceType,
	currentValue string) (*judgeVerdict, error) {

	if v.judge == nil {
		return nil, fmt.Errorf("no judgement client configured")
	}

	serialized, err := draft.ProposedValue.Serialize()
	if err != nil {
		return nil, err
	}

	var prompt strings.Builder
	prompt.WriteString("You are validating a proposed update to a longitudinal subject profile.\n")
	prompt.WriteString(fmt.Sprintf("Source type: %s\n", sourceType))
	prompt.WriteString(fmt.Sprintf("Target field: %s\n", draft.TargetLocator.String()))
	prompt.WriteString(fmt.Sprintf("Proposed value: %s\n", serialized))
	if currentValue != "" {
		prompt.WriteString(fmt.Sprintf("Current stored value: %s\n", currentValue))
	}
	if draft.Reasoning != "" {
		prompt.WriteString(fmt.Sprintf("Transformation notes: %s\n", draft.Reasoning))
	}
	prompt.WriteString("Respond with JSON only, using this shape:\n")
	prompt.WriteString(`{"is_valid": bool, "confidence": number 0-100, "reasoning": string, ` +
		`"suggested_domains": [string], "conflicts": [string], "recommendations": [string]}`)

	response, err := v.judge.Judge(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	return parseJudgeVerdict(response)
}

// parseJudgeVerdict extracts the structured verdict from the judge's text,
// tolerating markdown code fences around the JSON.
func parseJudgeVerdict(response string) (*judgeVerdict, error) {

	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var verdict judgeVerdict
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return nil, fmt.Errorf("judge response is not the expected structure: %w", err)
	}
	return &verdict, nil
}

// fallbackResult is the deterministic verdict used when the judge is
// unavailable or unparseable. Confidence lands between 0.50 and 0.60 and the
// draft stays valid; a proposal is never dropped over infrastructure failure.
func (v *ValidationEngine) fallbackResult(draft model.ProposalDraft, sourceType string) model.ValidationResult {

	domains, known := sourceTypeDomains[sourceType]
	confidence := 0.5
	reasoning := "Validation service unavailable; deterministic fallback applied."
	if known {
		for _, domain := range domains {
			if domain == draft.TargetLocator.Table {
				confidence = 0.6
				reasoning = fmt.Sprintf("Validation service unavailable; source type %q plausibly informs %s.",
					sourceType, draft.TargetLocator.Table)
				break
			}
		}
		if confidence == 0.5 {
			confidence = 0.55
		}
	}

	return model.ValidationResult{
		IsValid:          true,
		Confidence:       confidence,
		Reasoning:        reasoning,
		SuggestedDomains: domains,
		Recommendations:  []string{"Review manually; automated validation was degraded."},
	}
}

// DetectConflicts compares an incoming serialized value against an existing
// one for the same target. Type-incompatible or strongly divergent values are
// high severity, small numeric drift is low.
func (v *ValidationEngine) DetectConflicts(locator model.TargetLocator, newValue,
	existingValue string) []model.DataConflict {

	if existingValue == "" || newValue == existingValue {
		return nil
	}

	conflict := model.DataConflict{
		TargetLocator: locator,
		ExistingValue: existingValue,
		NewValue:      newValue,
	}

	newNum, newIsNum := parseNumeric(newValue)
	existingNum, existingIsNum := parseNumeric(existingValue)

	switch {
	case newIsNum != existingIsNum:
		conflict.Severity = constants.SeverityHigh
		conflict.ResolutionSuggestion = "Incoming value type disagrees with the stored value; verify the source."
	case newIsNum && existingIsNum:
		drift := math.Abs(newNum - existingNum)
		base := math.Max(math.Abs(existingNum), 1)
		switch {
		case drift/base <= 0.1:
			conflict.Severity = constants.SeverityLow
			conflict.ResolutionSuggestion = "Small numeric drift; likely a routine update."
		case drift/base <= 0.5:
			conflict.Severity = constants.SeverityMedium
			conflict.ResolutionSuggestion = "Moderate numeric change; confirm with the source."
		default:
			conflict.Severity = constants.SeverityHigh
			conflict.ResolutionSuggestion = "Large divergence from the stored value; requires careful review."
		}
	default:
		conflict.Severity = constants.SeverityMedium
		conflict.ResolutionSuggestion = "Stored value differs; choose which record to trust."
	}

	return []model.DataConflict{conflict}
}

func parseNumeric(value string) (float64, bool) {

	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	return n, err == nil
}

func normalizeConfidence(confidence float64) float64 {

	if confidence > 1 {
		confidence = confidence / 100
	}
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
