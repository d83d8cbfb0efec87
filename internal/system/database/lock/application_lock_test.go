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

package lock

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/profile-reconciliation-service/internal/system/log"
)

func TestMain(m *testing.M) {

	if err := log.Init("error"); err != nil {
		fmt.Println("failed to initialize logger:", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestGenerateLockKeyIsDeterministic(t *testing.T) {

	l := NewPostgresLock()
	first, err := l.generateLockKey("proposal-expiration-sweep")
	require.NoError(t, err)
	second, err := l.generateLockKey("proposal-expiration-sweep")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := l.generateLockKey("another-lock")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestReleaseWithoutHeldSessionErrors(t *testing.T) {

	l := NewPostgresLock()
	err := l.Release("proposal-expiration-sweep")
	require.Error(t, err, "release must fail when no session holds the lock")
}
