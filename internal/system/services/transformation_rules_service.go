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

package services

import (
	"net/http"
	"strings"

	"github.com/wso2/profile-reconciliation-service/internal/transformation_rules/handler"
)

type TransformationRulesService struct {
	transformationRuleHandler *handler.TransformationRuleHandler
}

func NewTransformationRulesService() *TransformationRulesService {
	return &TransformationRulesService{
		transformationRuleHandler: handler.NewTransformationRuleHandler(),
	}
}

// Route handles all transformation rule configuration endpoints
func (s *TransformationRulesService) Route(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimSuffix(r.URL.Path, "/")
	method := r.Method

	switch {
	case method == http.MethodPost && path == "/transformation-rules":
		s.transformationRuleHandler.CreateTransformationRule(w, r)

	case method == http.MethodGet && path == "/transformation-rules":
		s.transformationRuleHandler.GetTransformationRules(w, r)

	case method == http.MethodGet && strings.HasPrefix(path, "/transformation-rules/"):
		s.transformationRuleHandler.GetTransformationRule(w, r)

	case method == http.MethodPut && strings.HasPrefix(path, "/transformation-rules/"):
		s.transformationRuleHandler.UpdateTransformationRule(w, r)

	case method == http.MethodDelete && strings.HasPrefix(path, "/transformation-rules/"):
		s.transformationRuleHandler.DeleteTransformationRule(w, r)

	default:
		http.NotFound(w, r)
	}
}
