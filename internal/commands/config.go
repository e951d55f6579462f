package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/rezkam/dayplan/internal/config"
	"github.com/rezkam/dayplan/internal/storage"
)

// defaultSQLitePath is used when no backend is configured at all.
const defaultSQLitePath = "~/.dayplan.db"

// loadConfig reads ~/.dayplan.yaml (or $DAYPLAN_CONFIG_PATH/.dayplan.yaml)
// and DAYPLAN_* variables into v. A missing file is not an error.
func loadConfig(v *viper.Viper) error {
	v.SetDefault("sqlite_path", defaultSQLitePath)
	v.SetConfigName(".dayplan") // .yaml is implicit
	v.SetEnvPrefix("DAYPLAN")
	v.AutomaticEnv()

	if override := os.Getenv("DAYPLAN_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	} else if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// storageConfig maps the loaded settings onto the server's storage config.
func storageConfig(v *viper.Viper) (config.StorageConfig, error) {
	expand := func(key string) (string, error) {
		path, err := homedir.Expand(v.GetString(key))
		if err != nil {
			return "", fmt.Errorf("invalid %s: %w", key, err)
		}
		return path, nil
	}

	sqlitePath, err := expand("sqlite_path")
	if err != nil {
		return config.StorageConfig{}, err
	}
	fsDir, err := expand("fs_dir")
	if err != nil {
		return config.StorageConfig{}, err
	}

	return config.StorageConfig{
		Backend:    v.GetString("storage_backend"),
		DSN:        v.GetString("db_dsn"),
		SQLitePath: sqlitePath,
		FSDir:      fsDir,
		GCSBucket:  v.GetString("gcs_bucket"),
		GCSPrefix:  v.GetString("gcs_prefix"),
	}, nil
}

// location resolves the configured time zone, defaulting to the local zone.
func location(v *viper.Viper) (*time.Location, error) {
	planner := config.PlannerConfig{Timezone: v.GetString("timezone")}
	return planner.Location()
}

// openBackend loads configuration and opens the selected store.
func openBackend(ctx context.Context, v *viper.Viper) (*storage.Backend, error) {
	if err := loadConfig(v); err != nil {
		return nil, err
	}
	cfg, err := storageConfig(v)
	if err != nil {
		return nil, err
	}
	return storage.Open(ctx, cfg)
}
