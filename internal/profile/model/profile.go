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

// ProfileValue is one stored field value of a subject profile.
type ProfileValue struct {
	SubjectId    string    `json:"subject_id"`
	TargetTable  string    `json:"target_table"`
	TargetField  string    `json:"target_field"`
	Value        string    `json:"value"`
	LastModified time.Time `json:"last_modified"`
}

// AuditEntry is one immutable provenance record of a profile value change.
type AuditEntry struct {
	EntryId       string    `json:"entry_id"`
	ProposalId    string    `json:"proposal_id"`
	SubjectId     string    `json:"subject_id"`
	TargetTable   string    `json:"target_table"`
	TargetField   string    `json:"target_field"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value"`
	ChangedBy     string    `json:"changed_by"`
	ChangedAt     time.Time `json:"changed_at"`
}
