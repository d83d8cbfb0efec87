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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wso2/profile-reconciliation-service/internal/proposal/model"
	"github.com/wso2/profile-reconciliation-service/internal/system/client"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	errors2 "github.com/wso2/profile-reconciliation-service/internal/system/errors"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
	rulemodel "github.com/wso2/profile-reconciliation-service/internal/transformation_rules/model"
)

// TransformationRegistry converts one raw answer plus a rule into zero or
// more proposal drafts. Transformation is deterministic except where
// AI_STANDARDIZE falls through the closed vocabulary to the judge.
type TransformationRegistry struct {
	judge client.JudgementClientInterface
}

// NewTransformationRegistry creates a registry with the given judge. The
// judge may be nil; strategies that would use it degrade deterministically.
func NewTransformationRegistry(judge client.JudgementClientInterface) *TransformationRegistry {

	return &TransformationRegistry{judge: judge}
}

// Transform runs the rule's strategy over the raw answer. An empty answer
// yields zero drafts. An unknown strategy fails only this rule.
func (t *TransformationRegistry) Transform(ctx context.Context, rule rulemodel.TransformationRule,
	rawAnswer interface{}, subjectId, sourceId string, updateType model.UpdateType) ([]model.ProposalDraft, error) {

	if isEmptyAnswer(rawAnswer) {
		return nil, nil
	}

	locator := model.TargetLocator{Table: rule.TargetTable, Field: rule.TargetField}

	switch rule.Strategy {
	case constants.StrategyDirect:
		return t.transformDirect(rule, locator, rawAnswer, subjectId, sourceId, updateType)
	case constants.StrategyAIStandardize:
		return t.transformAIStandardize(ctx, rule, locator, rawAnswer, subjectId, sourceId, updateType)
	case constants.StrategyScaleConvert:
		return t.transformScaleConvert(rule, locator, rawAnswer, subjectId, sourceId, updateType)
	case constants.StrategyArrayMerge:
		return t.transformArrayMerge(rule, locator, rawAnswer, subjectId, sourceId, updateType)
	case constants.StrategyMultipleFields:
		return t.transformMultipleFields(rule, rawAnswer, subjectId, sourceId, updateType)
	default:
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.UNKNOWN_STRATEGY.Code,
			Message:     errors2.UNKNOWN_STRATEGY.Message,
			Description: fmt.Sprintf("Unknown strategy %q on rule: %s", rule.Strategy, rule.RuleId),
		}, nil)
	}
}

// transformDirect coerces the answer to the declared value type with full
// confidence.
func (t *TransformationRegistry) transformDirect(rule rulemodel.TransformationRule, locator model.TargetLocator,
	rawAnswer interface{}, subjectId, sourceId string, updateType model.UpdateType) ([]model.ProposalDraft, error) {

	valueType, _ := rule.StrategyConfig["valueType"].(string)
	value, err := coerceValue(rawAnswer, valueType)
	if err != nil {
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PARSING_ERROR.Code,
			Message:     errors2.PARSING_ERROR.Message,
			Description: fmt.Sprintf("Failed to coerce answer for rule %s: %v", rule.RuleId, err),
		}, err)
	}

	return []model.ProposalDraft{{
		SubjectId:        subjectId,
		SourceId:         sourceId,
		UpdateType:       updateType,
		TargetLocator:    locator,
		ProposedValue:    value,
		Confidence:       1.0,
		Priority:         rule.Priority,
		RequiresApproval: rule.RequiresApproval,
	}}, nil
}

// transformAIStandardize maps free text onto a closed vocabulary when one is
// configured. A case-insensitive exact match carries confidence 0.9; a miss
// delegates to the judge at 0.7; a judge failure keeps the raw text at 0.5
// so submissions never stall on the model.
func (t *TransformationRegistry) transformAIStandardize(ctx context.Context, rule rulemodel.TransformationRule,
	locator model.TargetLocator, rawAnswer interface{}, subjectId, sourceId string,
	updateType model.UpdateType) ([]model.ProposalDraft, error) {

	raw := strings.TrimSpace(answerAsString(rawAnswer))
	vocabulary := vocabularyFromConfig(rule.StrategyConfig)

	draft := model.ProposalDraft{
		SubjectId:        subjectId,
		SourceId:         sourceId,
		UpdateType:       updateType,
		TargetLocator:    locator,
		Priority:         rule.Priority,
		RequiresApproval: rule.RequiresApproval,
	}

	for _, term := range vocabulary {
		if strings.EqualFold(term, raw) {
			draft.ProposedValue = model.TextValue(term)
			draft.Confidence = 0.9
			draft.Reasoning = fmt.Sprintf("Matched standard term %q.", term)
			return []model.ProposalDraft{draft}, nil
		}
	}

	standardized, err := t.standardizeWithJudge(ctx, raw, vocabulary)
	if err != nil {
		log.GetLogger().Warn("Standardization judge unavailable, keeping raw answer.",
			log.String("ruleId", rule.RuleId), log.Error(err))
		draft.ProposedValue = model.TextValue(raw)
		draft.Confidence = 0.5
		draft.Reasoning = "Standardization unavailable; raw answer retained."
		return []model.ProposalDraft{draft}, nil
	}

	draft.ProposedValue = model.TextValue(standardized)
	draft.Confidence = 0.7
	draft.Reasoning = fmt.Sprintf("Standardized from %q.", raw)
	return []model.ProposalDraft{draft}, nil
}

func (t *TransformationRegistry) standardizeWithJudge(ctx context.Context, raw string,
	vocabulary []string) (string, error) {

	if t.judge == nil {
		return "", errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.JUDGEMENT_UNAVAILABLE.Code,
			Message:     errors2.JUDGEMENT_UNAVAILABLE.Message,
			Description: "No judgement client configured.",
		}, nil)
	}

	var prompt strings.Builder
	prompt.WriteString("Normalize the following free-text answer into a short standardized term.\n")
	if len(vocabulary) > 0 {
		prompt.WriteString("Prefer one of these terms if any is a reasonable fit: ")
		prompt.WriteString(strings.Join(vocabulary, ", "))
		prompt.WriteString("\n")
	}
	prompt.WriteString("Respond with the standardized term only, no explanation.\n")
	prompt.WriteString("Answer: ")
	prompt.WriteString(raw)

	response, err := t.judge.Judge(ctx, prompt.String())
	if err != nil {
		return "", err
	}
	standardized := strings.TrimSpace(strings.Trim(strings.TrimSpace(response), `"`))
	if standardized == "" {
		return "", errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.JUDGEMENT_UNAVAILABLE.Code,
			Message:     errors2.JUDGEMENT_UNAVAILABLE.Message,
			Description: "Judge returned an empty standardization.",
		}, nil)
	}
	return standardized, nil
}

// transformScaleConvert rescales a numeric answer between the configured
// scales, or maps it through a lookup table. Results are rounded to one
// decimal.
func (t *TransformationRegistry) transformScaleConvert(rule rulemodel.TransformationRule,
	locator model.TargetLocator, rawAnswer interface{}, subjectId, sourceId string,
	updateType model.UpdateType) ([]model.ProposalDraft, error) {

	raw := strings.TrimSpace(answerAsString(rawAnswer))

	if lookup, ok := rule.StrategyConfig["lookupTable"].(map[string]interface{}); ok && len(lookup) > 0 {
		mapped, found := lookup[raw]
		if !found {
			return nil, errors2.NewServerError(errors2.ErrorMessage{
				Code:        errors2.PARSING_ERROR.Code,
				Message:     errors2.PARSING_ERROR.Message,
				Description: fmt.Sprintf("Answer %q not present in lookup table for rule: %s", raw, rule.RuleId),
			}, nil)
		}
		converted, err := numberFromConfig(mapped)
		if err != nil {
			return nil, errors2.NewServerError(errors2.ErrorMessage{
				Code:        errors2.PARSING_ERROR.Code,
				Message:     errors2.PARSING_ERROR.Message,
				Description: fmt.Sprintf("Lookup table value for %q is not numeric on rule: %s", raw, rule.RuleId),
			}, err)
		}
		return []model.ProposalDraft{scaleDraft(rule, locator, roundOneDecimal(converted), subjectId, sourceId,
			updateType)}, nil
	}

	input, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PARSING_ERROR.Code,
			Message:     errors2.PARSING_ERROR.Message,
			Description: fmt.Sprintf("Answer %q is not numeric for scale conversion on rule: %s", raw, rule.RuleId),
		}, err)
	}

	srcMin, srcMax, err := scaleFromConfig(rule.StrategyConfig, "sourceScale")
	if err != nil {
		return nil, err
	}
	dstMin, dstMax, err := scaleFromConfig(rule.StrategyConfig, "targetScale")
	if err != nil {
		return nil, err
	}
	if srcMax == srcMin {
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PARSING_ERROR.Code,
			Message:     errors2.PARSING_ERROR.Message,
			Description: fmt.Sprintf("Degenerate source scale on rule: %s", rule.RuleId),
		}, nil)
	}

	converted := dstMin + (input-srcMin)*(dstMax-dstMin)/(srcMax-srcMin)
	return []model.ProposalDraft{scaleDraft(rule, locator, roundOneDecimal(converted), subjectId, sourceId,
		updateType)}, nil
}

func scaleDraft(rule rulemodel.TransformationRule, locator model.TargetLocator, value float64,
	subjectId, sourceId string, updateType model.UpdateType) model.ProposalDraft {

	return model.ProposalDraft{
		SubjectId:        subjectId,
		SourceId:         sourceId,
		UpdateType:       updateType,
		TargetLocator:    locator,
		ProposedValue:    model.NumberValue(value),
		Confidence:       1.0,
		Priority:         rule.Priority,
		RequiresApproval: rule.RequiresApproval,
	}
}

// transformArrayMerge normalizes an array answer, or splits a delimited
// string, into a trimmed non-empty string array.
func (t *TransformationRegistry) transformArrayMerge(rule rulemodel.TransformationRule,
	locator model.TargetLocator, rawAnswer interface{}, subjectId, sourceId string,
	updateType model.UpdateType) ([]model.ProposalDraft, error) {

	separator := constants.ArrayMergeDefaultSeparator
	if configured, ok := rule.StrategyConfig["separator"].(string); ok && configured != "" {
		separator = configured
	}

	var items []string
	switch v := rawAnswer.(type) {
	case []string:
		items = v
	case []interface{}:
		for _, item := range v {
			items = append(items, fmt.Sprintf("%v", item))
		}
	default:
		items = strings.Split(answerAsString(rawAnswer), separator)
	}

	merged := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			merged = append(merged, trimmed)
		}
	}
	if len(merged) == 0 {
		return nil, nil
	}

	return []model.ProposalDraft{{
		SubjectId:        subjectId,
		SourceId:         sourceId,
		UpdateType:       updateType,
		TargetLocator:    locator,
		ProposedValue:    model.ArrayValue(merged),
		Confidence:       1.0,
		Priority:         rule.Priority,
		RequiresApproval: rule.RequiresApproval,
	}}, nil
}

// transformMultipleFields fans one answer into independent proposals, one per
// configured sub-mapping. Sub-mappings flagged parseWithAI carry confidence
// 0.85 since the extraction is unverified.
func (t *TransformationRegistry) transformMultipleFields(rule rulemodel.TransformationRule,
	rawAnswer interface{}, subjectId, sourceId string, updateType model.UpdateType) ([]model.ProposalDraft, error) {

	mappingsRaw, ok := rule.StrategyConfig["mappings"].([]interface{})
	if !ok || len(mappingsRaw) == 0 {
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.UNKNOWN_STRATEGY.Code,
			Message:     errors2.UNKNOWN_STRATEGY.Message,
			Description: fmt.Sprintf("MULTIPLE_FIELDS rule %s has no mappings configured.", rule.RuleId),
		}, nil)
	}

	answer := answerAsString(rawAnswer)
	drafts := make([]model.ProposalDraft, 0, len(mappingsRaw))
	for _, mappingRaw := range mappingsRaw {
		mapping, ok := mappingRaw.(map[string]interface{})
		if !ok {
			continue
		}
		targetTable, _ := mapping["targetTable"].(string)
		targetField, _ := mapping["targetField"].(string)
		if targetTable == "" {
			targetTable = rule.TargetTable
		}
		if targetField == "" {
			continue
		}

		confidence := 1.0
		reasoning := ""
		if parseWithAI, _ := mapping["parseWithAI"].(bool); parseWithAI {
			confidence = 0.85
			reasoning = "Derived from free-text answer."
		}

		drafts = append(drafts, model.ProposalDraft{
			SubjectId:        subjectId,
			SourceId:         sourceId,
			UpdateType:       updateType,
			TargetLocator:    model.TargetLocator{Table: targetTable, Field: targetField},
			ProposedValue:    model.TextValue(answer),
			Reasoning:        reasoning,
			Confidence:       confidence,
			Priority:         rule.Priority,
			RequiresApproval: rule.RequiresApproval,
		})
	}
	return drafts, nil
}

func coerceValue(rawAnswer interface{}, valueType string) (model.FieldValue, error) {

	switch valueType {
	case constants.ValueTypeNumber:
		raw := strings.TrimSpace(answerAsString(rawAnswer))
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.FieldValue{}, fmt.Errorf("%q is not a number", raw)
		}
		return model.NumberValue(n), nil
	case constants.ValueTypeBoolean:
		raw := strings.ToLower(strings.TrimSpace(answerAsString(rawAnswer)))
		switch raw {
		case "true", "yes", "1":
			return model.BooleanValue(true), nil
		case "false", "no", "0":
			return model.BooleanValue(false), nil
		}
		return model.FieldValue{}, fmt.Errorf("%q is not a boolean", raw)
	case constants.ValueTypeArray:
		parsed := model.ParseFieldValue(rawAnswer)
		if parsed.Kind == model.KindStringArray {
			return parsed, nil
		}
		return model.ArrayValue([]string{answerAsString(rawAnswer)}), nil
	case constants.ValueTypeDate:
		// Dates travel as text; range validation happens downstream.
		return model.TextValue(strings.TrimSpace(answerAsString(rawAnswer))), nil
	default:
		return model.ParseFieldValue(rawAnswer), nil
	}
}

func vocabularyFromConfig(config map[string]interface{}) []string {

	raw, ok := config["vocabulary"].([]interface{})
	if !ok {
		return nil
	}
	vocabulary := make([]string, 0, len(raw))
	for _, term := range raw {
		if s, ok := term.(string); ok && s != "" {
			vocabulary = append(vocabulary, s)
		}
	}
	return vocabulary
}

func scaleFromConfig(config map[string]interface{}, key string) (float64, float64, error) {

	scale, ok := config[key].(map[string]interface{})
	if !ok {
		return 0, 0, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PARSING_ERROR.Code,
			Message:     errors2.PARSING_ERROR.Message,
			Description: fmt.Sprintf("Missing %s configuration for scale conversion.", key),
		}, nil)
	}
	min, err := numberFromConfig(scale["min"])
	if err != nil {
		return 0, 0, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PARSING_ERROR.Code,
			Message:     errors2.PARSING_ERROR.Message,
			Description: fmt.Sprintf("Non-numeric %s.min for scale conversion.", key),
		}, err)
	}
	max, err := numberFromConfig(scale["max"])
	if err != nil {
		return 0, 0, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PARSING_ERROR.Code,
			Message:     errors2.PARSING_ERROR.Message,
			Description: fmt.Sprintf("Non-numeric %s.max for scale conversion.", key),
		}, err)
	}
	return min, max, nil
}

func numberFromConfig(raw interface{}) (float64, error) {

	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("value %v is not numeric", raw)
	}
}

func roundOneDecimal(value float64) float64 {

	return math.Round(value*10) / 10
}

func answerAsString(rawAnswer interface{}) string {

	switch v := rawAnswer.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", rawAnswer)
	}
}

func isEmptyAnswer(rawAnswer interface{}) bool {

	if rawAnswer == nil {
		return true
	}
	if s, ok := rawAnswer.(string); ok && strings.TrimSpace(s) == "" {
		return true
	}
	return false
}
