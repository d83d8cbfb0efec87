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

package constants

// ApiBasePath is the base path all service routes are mounted under.
const ApiBasePath = "/api/v1"

// Transformation strategies.
const (
	StrategyDirect         = "DIRECT"
	StrategyAIStandardize  = "AI_STANDARDIZE"
	StrategyScaleConvert   = "SCALE_CONVERT"
	StrategyArrayMerge     = "ARRAY_MERGE"
	StrategyMultipleFields = "MULTIPLE_FIELDS"
)

// AllowedStrategies is the closed set of transformation strategies.
var AllowedStrategies = map[string]bool{
	StrategyDirect:         true,
	StrategyAIStandardize:  true,
	StrategyScaleConvert:   true,
	StrategyArrayMerge:     true,
	StrategyMultipleFields: true,
}

// Conflict resolution policies carried by transformation rules.
const (
	ConflictPolicyNewerWins    = "NEWER_WINS"
	ConflictPolicyMerge        = "MERGE"
	ConflictPolicyManualReview = "MANUAL_REVIEW"
)

var AllowedConflictPolicies = map[string]bool{
	ConflictPolicyNewerWins:    true,
	ConflictPolicyMerge:        true,
	ConflictPolicyManualReview: true,
}

// Declared value types used by the DIRECT strategy.
const (
	ValueTypeText    = "text"
	ValueTypeArray   = "array"
	ValueTypeNumber  = "number"
	ValueTypeDate    = "date"
	ValueTypeBoolean = "boolean"
)

var AllowedValueTypes = map[string]bool{
	ValueTypeText:    true,
	ValueTypeArray:   true,
	ValueTypeNumber:  true,
	ValueTypeDate:    true,
	ValueTypeBoolean: true,
}

// KnownProfileTables enumerates the profile tables an update proposal may
// target. An apply against a table outside this set is a configuration error.
var KnownProfileTables = map[string]bool{
	"academic_profile":         true,
	"health_profile":           true,
	"family_profile":           true,
	"social_emotional_profile": true,
	"goals_profile":            true,
	"activity_profile":         true,
}

// Conflict severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ArrayMergeDefaultSeparator splits delimiter-joined answers when the rule
// config does not override it.
const ArrayMergeDefaultSeparator = ","

// Sweeper defaults, used when the deployment config leaves them unset.
const (
	DefaultSweepIntervalMinutes = 60
	DefaultRetentionDays        = 30
	SweepLockKey                = "proposal-expiration-sweep"
)

// Judgement capability defaults.
const (
	DefaultJudgeTimeoutSeconds = 20
	DefaultJudgeModel          = "gemini-2.0-flash"
	DefaultJudgeAPIKeyEnv      = "GOOGLE_API_KEY"
)
