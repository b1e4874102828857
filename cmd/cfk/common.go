package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/cfk-cache/cfk/pkg/cache"
	"github.com/cfk-cache/cfk/pkg/configuration"
	"github.com/cfk-cache/cfk/pkg/logging"
)

// loadDotEnv loads a ".env" file from the current directory, if one
// exists, into the process environment. A missing file is not an
// error: in that case the process environment is used as-is.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		warning("unable to load .env file: " + err.Error())
	}
}

// openCoordinator loads the configuration file named by the root
// command's --config flag and opens a cache coordinator from it,
// registering a local filesystem backend for every configured mount.
func openCoordinator() (*cache.Coordinator, error) {
	config, err := configuration.Load(rootConfiguration.configPath)
	if err != nil {
		return nil, err
	}

	cacheConfig, err := config.ToCacheConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.RootLogger.Sublogger("cfk")
	coordinator, err := cache.Open(cacheConfig, logger)
	if err != nil {
		return nil, err
	}

	for _, mount := range config.Mounts {
		backend, err := mount.Open()
		if err != nil {
			coordinator.Close()
			return nil, err
		}
		coordinator.RegisterBackend(backend)
	}

	return coordinator, nil
}
