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

package errors

const errorPrefix = "PRS-"

var (
	// Server error codes

	DB_CLIENT_INIT = ErrorMessage{
		Code:    errorPrefix + "15001",
		Message: "Unable to initialize database client.",
	}

	ADD_PROPOSAL = ErrorMessage{
		Code:    errorPrefix + "15002",
		Message: "Error while persisting update proposal.",
	}

	FETCH_PROPOSALS = ErrorMessage{
		Code:    errorPrefix + "15003",
		Message: "Error while fetching update proposal(s).",
	}

	UPDATE_PROPOSAL_STATUS = ErrorMessage{
		Code:    errorPrefix + "15004",
		Message: "Error while transitioning update proposal.",
	}

	EXPIRE_PROPOSALS = ErrorMessage{
		Code:    errorPrefix + "15005",
		Message: "Error while expiring stale update proposals.",
	}

	PROPOSAL_STATS = ErrorMessage{
		Code:    errorPrefix + "15006",
		Message: "Error while aggregating proposal statistics.",
	}

	ADD_TRANSFORMATION_RULE = ErrorMessage{
		Code:    errorPrefix + "15007",
		Message: "Error while adding transformation rule.",
	}

	FETCH_TRANSFORMATION_RULES = ErrorMessage{
		Code:    errorPrefix + "15008",
		Message: "Error while fetching transformation rule(s).",
	}

	UPDATE_TRANSFORMATION_RULE = ErrorMessage{
		Code:    errorPrefix + "15009",
		Message: "Error while updating transformation rule.",
	}

	DELETE_TRANSFORMATION_RULE = ErrorMessage{
		Code:    errorPrefix + "15010",
		Message: "Error while deleting transformation rule.",
	}

	APPLY_PROFILE_VALUE = ErrorMessage{
		Code:    errorPrefix + "15011",
		Message: "Error while writing value to the profile store.",
	}

	FETCH_PROFILE_VALUE = ErrorMessage{
		Code:    errorPrefix + "15012",
		Message: "Error while reading value from the profile store.",
	}

	AUDIT_APPEND = ErrorMessage{
		Code:    errorPrefix + "15013",
		Message: "Error while appending profile update audit entry.",
	}

	UNKNOWN_TARGET_LOCATOR = ErrorMessage{
		Code:    errorPrefix + "15014",
		Message: "Target locator is not part of the profile schema.",
	}

	UNKNOWN_STRATEGY = ErrorMessage{
		Code:    errorPrefix + "15015",
		Message: "Transformation rule references an unknown strategy.",
	}

	LOCK_ACQUIRE = ErrorMessage{
		Code:    errorPrefix + "15016",
		Message: "Advisory lock acquisition failed",
	}

	LOCK_RELEASE = ErrorMessage{
		Code:    errorPrefix + "15017",
		Message: "Error while releasing the lock.",
	}

	LOCK_KEY_GEN = ErrorMessage{
		Code:    errorPrefix + "15018",
		Message: "Error generating advisory lock key",
	}

	LOCK_RESULT_INVALID = ErrorMessage{
		Code:    errorPrefix + "15019",
		Message: "Invalid response from advisory lock query.",
	}

	MARSHAL_JSON = ErrorMessage{
		Code:    errorPrefix + "15020",
		Message: "Error while marshalling JSON.",
	}

	UNMARSHAL_JSON = ErrorMessage{
		Code:    errorPrefix + "15021",
		Message: "Error while un-marshalling JSON.",
	}

	JUDGEMENT_UNAVAILABLE = ErrorMessage{
		Code:    errorPrefix + "15022",
		Message: "Judgement capability unavailable.",
	}

	PARSING_ERROR = ErrorMessage{
		Code:    errorPrefix + "15023",
		Message: "Parsing token failed.",
	}

	// Client error codes

	BAD_REQUEST = ErrorMessage{
		Code:    errorPrefix + "11001",
		Message: "Invalid body format.",
	}

	UN_AUTHORIZED = ErrorMessage{
		Code:        errorPrefix + "11002",
		Message:     "Unauthorized",
		Description: "Authorization failure. Authorization information was invalid or missing from your request.",
	}

	PROPOSAL_NOT_FOUND = ErrorMessage{
		Code:        errorPrefix + "11003",
		Message:     "Proposal not found.",
		Description: "No update proposal record found for the given proposal_id",
	}

	PROPOSAL_NOT_PENDING = ErrorMessage{
		Code:        errorPrefix + "11004",
		Message:     "Proposal already reviewed.",
		Description: "The proposal has already left the PENDING state and was skipped.",
	}

	REVIEW_REASON_REQUIRED = ErrorMessage{
		Code:        errorPrefix + "11005",
		Message:     "Rejection reason is required.",
		Description: "A non-empty reason must be provided when rejecting a proposal.",
	}

	REVIEWER_REQUIRED = ErrorMessage{
		Code:        errorPrefix + "11006",
		Message:     "Reviewer identity is required.",
		Description: "A reviewer must be resolvable from the token or the request body.",
	}

	TRANSFORMATION_RULE_NOT_FOUND = ErrorMessage{
		Code:        errorPrefix + "11007",
		Message:     "Transformation rule not found.",
		Description: "No transformation rule defined for the provided rule_id.",
	}

	TRANSFORMATION_RULE_VALIDATION = ErrorMessage{
		Code:    errorPrefix + "11008",
		Message: "Transformation rule validation failed.",
	}

	INVALID_SUBMISSION = ErrorMessage{
		Code:    errorPrefix + "11009",
		Message: "Invalid raw submission.",
	}
)
