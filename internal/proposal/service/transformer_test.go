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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/profile-reconciliation-service/internal/proposal/model"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	rulemodel "github.com/wso2/profile-reconciliation-service/internal/transformation_rules/model"
)

// stubJudge is a canned judgement client shared by the tests in this package.
type stubJudge struct {
	response string
	err      error
	prompts  []string
}

func (j *stubJudge) Judge(_ context.Context, prompt string) (string, error) {

	j.prompts = append(j.prompts, prompt)
	if j.err != nil {
		return "", j.err
	}
	return j.response, nil
}

func directRule(valueType string) rulemodel.TransformationRule {

	return rulemodel.TransformationRule{
		RuleId:           "rule-direct",
		QuestionId:       "q1",
		TargetTable:      "academic_profile",
		TargetField:      "grade_level",
		Strategy:         constants.StrategyDirect,
		StrategyConfig:   map[string]interface{}{"valueType": valueType},
		RequiresApproval: true,
	}
}

func TestTransformDirect(t *testing.T) {
	registry := NewTransformationRegistry(nil)

	tests := []struct {
		name      string
		valueType string
		answer    interface{}
		expected  model.FieldValue
	}{
		{"text passthrough", constants.ValueTypeText, "10th grade", model.TextValue("10th grade")},
		{"number coercion", constants.ValueTypeNumber, "7.5", model.NumberValue(7.5)},
		{"boolean yes", constants.ValueTypeBoolean, "yes", model.BooleanValue(true)},
		{"boolean zero", constants.ValueTypeBoolean, "0", model.BooleanValue(false)},
		{"array wraps scalar", constants.ValueTypeArray, "soccer", model.ArrayValue([]string{"soccer"})},
		{"date travels as text", constants.ValueTypeDate, " 2025-09-01 ", model.TextValue("2025-09-01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := registry.Transform(context.Background(), directRule(tt.valueType), tt.answer,
				"subj-1", "src-1", model.UpdateTypeSelfReported)
			require.NoError(t, err)
			require.Len(t, drafts, 1)
			assert.Equal(t, tt.expected, drafts[0].ProposedValue)
			assert.Equal(t, 1.0, drafts[0].Confidence)
			assert.True(t, drafts[0].RequiresApproval)
		})
	}
}

func TestTransformDirectRejectsUnparsableNumber(t *testing.T) {
	registry := NewTransformationRegistry(nil)

	_, err := registry.Transform(context.Background(), directRule(constants.ValueTypeNumber), "often",
		"subj-1", "src-1", model.UpdateTypeSelfReported)
	assert.Error(t, err)
}

func TestTransformEmptyAnswerYieldsNoDrafts(t *testing.T) {
	registry := NewTransformationRegistry(nil)

	for _, answer := range []interface{}{nil, "", "   "} {
		drafts, err := registry.Transform(context.Background(), directRule(constants.ValueTypeText), answer,
			"subj-1", "src-1", model.UpdateTypeSelfReported)
		require.NoError(t, err)
		assert.Empty(t, drafts)
	}
}

func TestTransformUnknownStrategy(t *testing.T) {
	registry := NewTransformationRegistry(nil)

	rule := directRule(constants.ValueTypeText)
	rule.Strategy = "REVERSE"
	_, err := registry.Transform(context.Background(), rule, "x", "subj-1", "src-1", model.UpdateTypeManual)
	assert.Error(t, err)
}

func TestTransformScaleConvertLinear(t *testing.T) {
	registry := NewTransformationRegistry(nil)
	rule := rulemodel.TransformationRule{
		RuleId:      "rule-scale",
		TargetTable: "social_emotional_profile",
		TargetField: "wellbeing_score",
		Strategy:    constants.StrategyScaleConvert,
		StrategyConfig: map[string]interface{}{
			"sourceScale": map[string]interface{}{"min": 1.0, "max": 5.0},
			"targetScale": map[string]interface{}{"min": 0.0, "max": 100.0},
		},
	}

	tests := []struct {
		name     string
		answer   string
		expected float64
	}{
		{"midpoint", "3", 50.0},
		{"minimum", "1", 0.0},
		{"maximum", "5", 100.0},
		{"rounds to one decimal", "2.33", 33.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := registry.Transform(context.Background(), rule, tt.answer, "subj-1", "src-1",
				model.UpdateTypeSelfReported)
			require.NoError(t, err)
			require.Len(t, drafts, 1)
			assert.Equal(t, model.KindNumber, drafts[0].ProposedValue.Kind)
			assert.Equal(t, tt.expected, drafts[0].ProposedValue.Number)
			assert.Equal(t, 1.0, drafts[0].Confidence)
		})
	}
}

func TestTransformScaleConvertLookupTable(t *testing.T) {
	registry := NewTransformationRegistry(nil)
	rule := rulemodel.TransformationRule{
		RuleId:      "rule-lookup",
		TargetTable: "health_profile",
		TargetField: "activity_level",
		Strategy:    constants.StrategyScaleConvert,
		StrategyConfig: map[string]interface{}{
			"lookupTable": map[string]interface{}{"never": 0.0, "sometimes": 50.0, "daily": 100.0},
		},
	}

	drafts, err := registry.Transform(context.Background(), rule, "sometimes", "subj-1", "src-1",
		model.UpdateTypeSelfReported)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, 50.0, drafts[0].ProposedValue.Number)

	_, err = registry.Transform(context.Background(), rule, "hourly", "subj-1", "src-1",
		model.UpdateTypeSelfReported)
	assert.Error(t, err, "answers outside the lookup table must fail the rule")
}

func TestTransformScaleConvertDegenerateScale(t *testing.T) {
	registry := NewTransformationRegistry(nil)
	rule := rulemodel.TransformationRule{
		RuleId:      "rule-degenerate",
		TargetTable: "health_profile",
		TargetField: "score",
		Strategy:    constants.StrategyScaleConvert,
		StrategyConfig: map[string]interface{}{
			"sourceScale": map[string]interface{}{"min": 3.0, "max": 3.0},
			"targetScale": map[string]interface{}{"min": 0.0, "max": 100.0},
		},
	}

	_, err := registry.Transform(context.Background(), rule, "3", "subj-1", "src-1", model.UpdateTypeManual)
	assert.Error(t, err)
}

func TestTransformArrayMerge(t *testing.T) {
	registry := NewTransformationRegistry(nil)
	rule := rulemodel.TransformationRule{
		RuleId:         "rule-array",
		TargetTable:    "activity_profile",
		TargetField:    "interests",
		Strategy:       constants.StrategyArrayMerge,
		StrategyConfig: map[string]interface{}{},
	}

	tests := []struct {
		name     string
		answer   interface{}
		expected []string
	}{
		{"delimited string trims items", "A, B ,C", []string{"A", "B", "C"}},
		{"string slice", []string{" soccer", "chess "}, []string{"soccer", "chess"}},
		{"interface slice", []interface{}{"art", "music"}, []string{"art", "music"}},
		{"drops empty items", "A,,  ,B", []string{"A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := registry.Transform(context.Background(), rule, tt.answer, "subj-1", "src-1",
				model.UpdateTypeSelfReported)
			require.NoError(t, err)
			require.Len(t, drafts, 1)
			assert.Equal(t, model.ArrayValue(tt.expected), drafts[0].ProposedValue)
			assert.Equal(t, 1.0, drafts[0].Confidence)
		})
	}

	t.Run("all-empty answer yields no drafts", func(t *testing.T) {
		drafts, err := registry.Transform(context.Background(), rule, " , ,", "subj-1", "src-1",
			model.UpdateTypeSelfReported)
		require.NoError(t, err)
		assert.Empty(t, drafts)
	})

	t.Run("custom separator", func(t *testing.T) {
		custom := rule
		custom.StrategyConfig = map[string]interface{}{"separator": ";"}
		drafts, err := registry.Transform(context.Background(), custom, "a;b", "subj-1", "src-1",
			model.UpdateTypeSelfReported)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, []string{"a", "b"}, drafts[0].ProposedValue.Array)
	})
}

func TestTransformAIStandardize(t *testing.T) {
	rule := rulemodel.TransformationRule{
		RuleId:      "rule-standardize",
		TargetTable: "goals_profile",
		TargetField: "career_interest",
		Strategy:    constants.StrategyAIStandardize,
		StrategyConfig: map[string]interface{}{
			"vocabulary": []interface{}{"Engineering", "Medicine", "Education"},
		},
	}

	t.Run("vocabulary match skips the judge", func(t *testing.T) {
		judge := &stubJudge{response: "should not be called"}
		registry := NewTransformationRegistry(judge)

		drafts, err := registry.Transform(context.Background(), rule, "engineering", "subj-1", "src-1",
			model.UpdateTypeAISuggested)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "Engineering", drafts[0].ProposedValue.Text)
		assert.Equal(t, 0.9, drafts[0].Confidence)
		assert.Empty(t, judge.prompts)
	})

	t.Run("judge standardizes a vocabulary miss", func(t *testing.T) {
		judge := &stubJudge{response: "\"Medicine\"\n"}
		registry := NewTransformationRegistry(judge)

		drafts, err := registry.Transform(context.Background(), rule, "I want to be a doctor", "subj-1",
			"src-1", model.UpdateTypeAISuggested)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "Medicine", drafts[0].ProposedValue.Text)
		assert.Equal(t, 0.7, drafts[0].Confidence)
		require.Len(t, judge.prompts, 1)
		assert.Contains(t, judge.prompts[0], "Engineering, Medicine, Education")
	})

	t.Run("judge failure keeps the raw answer", func(t *testing.T) {
		judge := &stubJudge{err: fmt.Errorf("model timeout")}
		registry := NewTransformationRegistry(judge)

		drafts, err := registry.Transform(context.Background(), rule, "helping animals", "subj-1", "src-1",
			model.UpdateTypeAISuggested)
		require.NoError(t, err, "a judge outage must not fail the rule")
		require.Len(t, drafts, 1)
		assert.Equal(t, "helping animals", drafts[0].ProposedValue.Text)
		assert.Equal(t, 0.5, drafts[0].Confidence)
	})

	t.Run("nil judge degrades the same way", func(t *testing.T) {
		registry := NewTransformationRegistry(nil)

		drafts, err := registry.Transform(context.Background(), rule, "stargazing", "subj-1", "src-1",
			model.UpdateTypeAISuggested)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, 0.5, drafts[0].Confidence)
	})
}

func TestTransformMultipleFields(t *testing.T) {
	registry := NewTransformationRegistry(nil)
	rule := rulemodel.TransformationRule{
		RuleId:      "rule-multi",
		TargetTable: "goals_profile",
		Strategy:    constants.StrategyMultipleFields,
		StrategyConfig: map[string]interface{}{
			"mappings": []interface{}{
				map[string]interface{}{"targetField": "short_term_goal"},
				map[string]interface{}{
					"targetTable": "social_emotional_profile",
					"targetField": "self_description",
					"parseWithAI": true,
				},
			},
		},
	}

	drafts, err := registry.Transform(context.Background(), rule, "Make the honor roll this year",
		"subj-1", "src-1", model.UpdateTypeSelfReported)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, model.TargetLocator{Table: "goals_profile", Field: "short_term_goal"},
		drafts[0].TargetLocator)
	assert.Equal(t, 1.0, drafts[0].Confidence)

	assert.Equal(t, model.TargetLocator{Table: "social_emotional_profile", Field: "self_description"},
		drafts[1].TargetLocator)
	assert.Equal(t, 0.85, drafts[1].Confidence)
	assert.NotEmpty(t, drafts[1].Reasoning)
}

func TestTransformMultipleFieldsWithoutMappings(t *testing.T) {
	registry := NewTransformationRegistry(nil)
	rule := rulemodel.TransformationRule{
		RuleId:         "rule-multi-empty",
		TargetTable:    "goals_profile",
		Strategy:       constants.StrategyMultipleFields,
		StrategyConfig: map[string]interface{}{},
	}

	_, err := registry.Transform(context.Background(), rule, "anything", "subj-1", "src-1",
		model.UpdateTypeManual)
	assert.Error(t, err)
}
