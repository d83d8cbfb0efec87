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

package config

import "sync"

// PRSRuntime holds the runtime configuration for the reconciliation server.
type PRSRuntime struct {
	PRSHome string `yaml:"prs_home"`
	Config  Config `yaml:"config"`
}

var (
	runtimeConfig *PRSRuntime
	once          sync.Once
)

// InitializePRSRuntime initializes the PRSRuntime configuration.
func InitializePRSRuntime(prsHome string, config *Config) error {

	once.Do(func() {
		runtimeConfig = &PRSRuntime{
			PRSHome: prsHome,
			Config:  *config,
		}
	})

	return nil
}

// GetPRSRuntime returns the PRSRuntime configuration.
func GetPRSRuntime() *PRSRuntime {

	if runtimeConfig == nil {
		panic("PRSRuntime is not initialized")
	}
	return runtimeConfig
}
