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

package model

import "time"

// TransformationRule maps one questionId to a profile target with a
// transformation strategy. Rules are configuration data, read-only to the
// reconciliation runtime.
type TransformationRule struct {
	RuleId           string                 `json:"rule_id"`
	QuestionId       string                 `json:"question_id"`
	TargetTable      string                 `json:"target_table"`
	TargetField      string                 `json:"target_field"`
	Strategy         string                 `json:"strategy"`
	StrategyConfig   map[string]interface{} `json:"strategy_config,omitempty"`
	RequiresApproval bool                   `json:"requires_approval"`
	Priority         int                    `json:"priority"`
	ConflictPolicy   string                 `json:"conflict_policy"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}
