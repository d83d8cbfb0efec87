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

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/wso2/profile-reconciliation-service/internal/system/log"
	"github.com/wso2/profile-reconciliation-service/internal/system/utils"
	"github.com/wso2/profile-reconciliation-service/internal/transformation_rules/model"
	"github.com/wso2/profile-reconciliation-service/internal/transformation_rules/provider"
)

type TransformationRuleHandler struct{}

func NewTransformationRuleHandler() *TransformationRuleHandler {

	return &TransformationRuleHandler{}
}

// CreateTransformationRule handles POST /transformation-rules
func (trh *TransformationRuleHandler) CreateTransformationRule(w http.ResponseWriter, r *http.Request) {

	var rule model.TransformationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, utils.HandleDecodeError(err, "transformation rule"), http.StatusBadRequest)
		return
	}

	ruleProvider := provider.NewTransformationRuleProvider()
	ruleService := ruleProvider.GetTransformationRuleService()
	created, err := ruleService.AddTransformationRule(rule)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	logger := log.GetLogger()
	logger.Info(fmt.Sprintf("Transformation rule: %s for question: %s created successfully", created.RuleId,
		created.QuestionId))
	utils.WriteJSONResponse(w, http.StatusCreated, created)
}

// GetTransformationRules handles GET /transformation-rules
func (trh *TransformationRuleHandler) GetTransformationRules(w http.ResponseWriter, r *http.Request) {

	ruleProvider := provider.NewTransformationRuleProvider()
	ruleService := ruleProvider.GetTransformationRuleService()

	if questionId := r.URL.Query().Get("question_id"); questionId != "" {
		rules, err := ruleService.GetTransformationRulesByQuestion(questionId)
		if err != nil {
			utils.HandleError(w, err)
			return
		}
		utils.WriteJSONResponse(w, http.StatusOK, rules)
		return
	}

	rules, err := ruleService.GetTransformationRules()
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, rules)
}

// GetTransformationRule handles GET /transformation-rules/:rule_id
func (trh *TransformationRuleHandler) GetTransformationRule(w http.ResponseWriter, r *http.Request) {

	ruleId, ok := ruleIdFromPath(r.URL.Path)
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	ruleProvider := provider.NewTransformationRuleProvider()
	ruleService := ruleProvider.GetTransformationRuleService()
	rule, err := ruleService.GetTransformationRule(ruleId)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, rule)
}

// UpdateTransformationRule handles PUT /transformation-rules/:rule_id
func (trh *TransformationRuleHandler) UpdateTransformationRule(w http.ResponseWriter, r *http.Request) {

	ruleId, ok := ruleIdFromPath(r.URL.Path)
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	var rule model.TransformationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, utils.HandleDecodeError(err, "transformation rule"), http.StatusBadRequest)
		return
	}

	ruleProvider := provider.NewTransformationRuleProvider()
	ruleService := ruleProvider.GetTransformationRuleService()
	updated, err := ruleService.UpdateTransformationRule(ruleId, rule)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	logger := log.GetLogger()
	logger.Info(fmt.Sprintf("Transformation rule: %s updated successfully", ruleId))
	utils.WriteJSONResponse(w, http.StatusOK, updated)
}

// DeleteTransformationRule handles DELETE /transformation-rules/:rule_id
func (trh *TransformationRuleHandler) DeleteTransformationRule(w http.ResponseWriter, r *http.Request) {

	ruleId, ok := ruleIdFromPath(r.URL.Path)
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	ruleProvider := provider.NewTransformationRuleProvider()
	ruleService := ruleProvider.GetTransformationRuleService()
	if err := ruleService.DeleteTransformationRule(ruleId); err != nil {
		utils.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ruleIdFromPath(path string) (string, bool) {

	pathParts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(pathParts) < 2 {
		return "", false
	}
	ruleId := pathParts[len(pathParts)-1]
	if ruleId == "" || ruleId == "transformation-rules" {
		return "", false
	}
	return ruleId, true
}
