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

package schedulers

import (
	"time"

	"github.com/wso2/profile-reconciliation-service/internal/proposal/service"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	"github.com/wso2/profile-reconciliation-service/internal/system/database/lock"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
)

// StartExpirationSweeper starts the periodic stale-proposal sweep. The sweep
// runs under a postgres advisory lock so only one replica sweeps per tick.
func StartExpirationSweeper(svc service.ReconciliationServiceInterface, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once at startup
	sweep(svc)

	for range ticker.C {
		sweep(svc)
	}
}

func sweep(svc service.ReconciliationServiceInterface) {

	logger := log.GetLogger()
	sweepLock := lock.NewPostgresLock()

	acquired, err := sweepLock.Acquire(constants.SweepLockKey)
	if err != nil {
		logger.Error("Failed to acquire expiration sweep lock", log.Error(err))
		return
	}
	if !acquired {
		logger.Debug("Expiration sweep lock held elsewhere; skipping this tick.")
		return
	}
	defer func() {
		if err := sweepLock.Release(constants.SweepLockKey); err != nil {
			logger.Error("Failed to release expiration sweep lock", log.Error(err))
		}
	}()

	count, err := svc.ExpireStale()
	if err != nil {
		logger.Error("Expiration sweep failed", log.Error(err))
		return
	}
	if count > 0 {
		logger.Info("Expiration sweep completed.", log.Int64("expired", count))
	}
}
