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
	"fmt"
	"time"

	"github.com/google/uuid"
	profilemodel "github.com/wso2/profile-reconciliation-service/internal/profile/model"
	profilestore "github.com/wso2/profile-reconciliation-service/internal/profile/store"
	"github.com/wso2/profile-reconciliation-service/internal/proposal/model"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	errors2 "github.com/wso2/profile-reconciliation-service/internal/system/errors"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
)

// ApplicationExecutor commits an approved value to the authoritative profile
// store and appends the provenance record. Apply is idempotent: re-applying
// the same value to the same target is a harmless overwrite.
type ApplicationExecutor struct {
	profiles profilestore.ProfileStoreInterface
}

func NewApplicationExecutor(profiles profilestore.ProfileStoreInterface) *ApplicationExecutor {

	return &ApplicationExecutor{profiles: profiles}
}

// Apply writes one field value for a subject. An unknown target table is a
// configuration error surfaced to the caller so the proposal stays PENDING
// for operator remediation. Audit-append failure is logged but never rolls
// back the value write.
func (e *ApplicationExecutor) Apply(subjectId string, locator model.TargetLocator, value model.FieldValue,
	proposalId, changedBy string) error {

	logger := log.GetLogger()

	if _, known := constants.KnownProfileTables[locator.Table]; !known {
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.UNKNOWN_TARGET_LOCATOR.Code,
			Message:     errors2.UNKNOWN_TARGET_LOCATOR.Message,
			Description: fmt.Sprintf("Cannot apply proposal %s: unknown target table %q.", proposalId, locator.Table),
		}, nil)
	}

	serialized, err := value.Serialize()
	if err != nil {
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.MARSHAL_JSON.Code,
			Message:     errors2.MARSHAL_JSON.Message,
			Description: fmt.Sprintf("Cannot serialize value for proposal: %s", proposalId),
		}, err)
	}

	previous, _, err := e.profiles.GetCurrentValue(subjectId, locator.Table, locator.Field)
	if err != nil {
		return err
	}

	if err := e.profiles.SetValue(subjectId, locator.Table, locator.Field, serialized); err != nil {
		return err
	}

	auditErr := e.profiles.AppendAuditEntry(profilemodel.AuditEntry{
		EntryId:       uuid.New().String(),
		ProposalId:    proposalId,
		SubjectId:     subjectId,
		TargetTable:   locator.Table,
		TargetField:   locator.Field,
		PreviousValue: previous,
		NewValue:      serialized,
		ChangedBy:     changedBy,
		ChangedAt:     time.Now().UTC(),
	})
	if auditErr != nil {
		// The value write is authoritative; a lost audit row is a warning.
		logger.Warn("Failed to append audit entry after profile write.",
			log.String("proposalId", proposalId), log.Error(auditErr))
	}

	logger.Audit(log.AuditEvent{
		ActionID:      log.ActionApplyProfileValue,
		InitiatorID:   changedBy,
		InitiatorType: log.InitiatorTypeSystem,
		TargetType:    log.TargetTypeProfileValue,
		TargetID:      subjectId + ":" + locator.String(),
	})
	return nil
}
