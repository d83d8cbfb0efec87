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

package main

import (
	"flag"
	"fmt"
	standardlog "log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wso2/profile-reconciliation-service/internal/proposal/service"
	"github.com/wso2/profile-reconciliation-service/internal/system/config"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	"github.com/wso2/profile-reconciliation-service/internal/system/database/provider"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
	"github.com/wso2/profile-reconciliation-service/internal/system/managers"
	"github.com/wso2/profile-reconciliation-service/internal/system/schedulers"
)

func main() {

	prsHome := getPRSHome()
	const configFile = "/repository/conf/deployment.yaml"

	envFiles, _ := filepath.Glob("config/*.env")
	_ = godotenv.Load(envFiles...)

	// Load the configuration file
	prsConfig, err := config.LoadConfig(prsHome, configFile)
	if err != nil {
		standardlog.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize runtime configurations.
	if err := config.InitializePRSRuntime(prsHome, prsConfig); err != nil {
		standardlog.Fatalf("Failed to initialize runtime: %v", err)
	}

	// Initialize logger
	if err := log.Init(prsConfig.Log.LogLevel); err != nil {
		standardlog.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := log.GetLogger()

	// Bootstrap the database schema when requested.
	if strings.EqualFold(os.Getenv("PRS_INIT_SCHEMA"), "true") {
		initSchema(prsHome, logger)
	}

	// Start the stale-proposal sweeper.
	interval := prsConfig.Sweeper.IntervalMinutes
	if interval <= 0 {
		interval = constants.DefaultSweepIntervalMinutes
	}
	go schedulers.StartExpirationSweeper(service.GetReconciliationService(),
		time.Duration(interval)*time.Minute)

	serverAddr := fmt.Sprintf("%s:%d", prsConfig.Addr.Host, prsConfig.Addr.Port)
	mux := enableCORS(initMultiplexer())
	logger.Info("WSO2 PRS starting", log.String("address", serverAddr))

	ln, err := net.Listen("tcp", serverAddr)
	if err != nil {
		logger.Fatal("Failed to start listener", log.Error(err))
	}

	server := &http.Server{Handler: mux}
	if err := server.Serve(ln); err != nil {
		logger.Fatal("Failed to serve requests", log.Error(err))
	}
}

// initSchema creates the database tables from the bundled schema script.
func initSchema(prsHome string, logger *log.Logger) {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	if err != nil {
		logger.Fatal("Failed to get db client for schema initialization", log.Error(err))
	}
	defer dbClient.Close()

	if err := dbClient.InitDatabase(prsHome, "/dbscripts/schema.sql"); err != nil {
		logger.Fatal("Failed to initialize the database schema", log.Error(err))
	}
}

// initMultiplexer initializes the HTTP multiplexer and registers the services.
func initMultiplexer() *http.ServeMux {

	mux := http.NewServeMux()
	serviceManager := managers.NewServiceManager(mux)

	// Register the services.
	if err := serviceManager.RegisterServices(constants.ApiBasePath); err != nil {
		log.GetLogger().Fatal("Failed to register the services", log.Error(err))
	}

	return mux
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getPRSHome() string {

	projectHomeFlag := flag.String("prsHome", "", "Path to the service home directory")
	flag.Parse()

	if *projectHomeFlag != "" {
		return *projectHomeFlag
	}
	if envHome := os.Getenv("PRS_HOME"); envHome != "" {
		return envHome
	}
	wd, err := os.Getwd()
	if err != nil {
		standardlog.Fatalf("Failed to determine working directory: %v", err)
	}
	return wd
}
