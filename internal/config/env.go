package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3100"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	LogFile  string `envconfig:"LOG_FILE"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

const (
	StorageLocal = "local"
	StorageS3    = "s3"
	StorageMongo = "mongo"
)

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".taskcadence/data"`
	// Reacts to task files edited outside the API. Local storage only.
	WatchLocal bool `envconfig:"WATCH_LOCAL" default:"false"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"taskcadence/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-southeast-1"`
	// MongoDB settings (used when Type == "mongo")
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"taskcadence"`
}

type SchedulerEnv struct {
	// Cron spec evaluated in SGT.
	DeadlineScanSchedule string `envconfig:"DEADLINE_SCAN_SCHEDULE" default:"0 0 * * *"`
	ScanOnStart          bool   `envconfig:"SCAN_ON_START" default:"true"`
}

type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:admin@example.com"`
}

func (e *VAPIDEnv) Configured() bool {
	return e != nil && e.VAPIDPublicKey != "" && e.VAPIDPrivateKey != ""
}

type Env struct {
	BaseEnv
	StorageEnv
	SchedulerEnv
	VAPIDEnv
}

const namespace = "TASKCADENCE"

// LoadDotEnv loads files into the process environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.StorageEnv.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// LoadStorageEnv reads only the storage settings, for tools that open the
// store without serving HTTP.
func LoadStorageEnv() (*StorageEnv, error) {
	var env StorageEnv
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *StorageEnv) validate() error {
	switch e.Type {
	case StorageLocal, StorageS3, StorageMongo:
		return nil
	}
	return fmt.Errorf("unsupported storage type %q", e.Type)
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
