// internal/config/config.go
package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Solver   SolverConfig
	Planner  PlannerConfig
	Report   ReportConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled        bool
	RedisURL       string
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	PolicyTTLHours int
}

// SolverConfig controls the MILP backend behaviour for a single solve.
type SolverConfig struct {
	TimeLimit       time.Duration
	GapTolerance    float64
	NodeLimit       int
	TieBreakEpsilon float64
}

// PlannerConfig controls the rolling-horizon controller.
type PlannerConfig struct {
	Horizon             int
	WorkerCount         int
	MaxPartitionItems   int
	FailureThreshold    float64 // fraction of Failed partitions that fails the cycle
	ShortageAllowance   float64 // planned shortage per period, as a fraction of mean demand
	RelaxedSafetyFactor float64
	UnitGranularity     float64
}

// ReportConfig controls optional cycle report export to object storage.
type ReportConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "replenish")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_POLICY_TTL_HOURS", 48)
		viper.SetDefault("SOLVER_TIME_LIMIT_SECONDS", 30)
		viper.SetDefault("SOLVER_GAP_TOLERANCE", 1e-6)
		viper.SetDefault("SOLVER_NODE_LIMIT", 10000)
		viper.SetDefault("SOLVER_TIE_BREAK_EPSILON", 1e-6)
		viper.SetDefault("PLANNER_HORIZON", 14)
		viper.SetDefault("PLANNER_WORKER_COUNT", 4)
		viper.SetDefault("PLANNER_MAX_PARTITION_ITEMS", 20)
		viper.SetDefault("PLANNER_FAILURE_THRESHOLD", 0.2)
		viper.SetDefault("PLANNER_SHORTAGE_ALLOWANCE", 0.0)
		viper.SetDefault("PLANNER_RELAXED_SAFETY_FACTOR", 0.0)
		viper.SetDefault("PLANNER_UNIT_GRANULARITY", 1.0)
		viper.SetDefault("REPORT_ENABLED", false)
		viper.SetDefault("REPORT_ENDPOINT", "")
		viper.SetDefault("REPORT_ACCESS_KEY", "")
		viper.SetDefault("REPORT_SECRET_KEY", "")
		viper.SetDefault("REPORT_BUCKET", "")
		viper.SetDefault("REPORT_REGION", "")
		viper.SetDefault("REPORT_USE_SSL", true)
		viper.SetDefault("REPORT_PREFIX", "reports")

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:        viper.GetBool("CACHE_ENABLED"),
				RedisURL:       viper.GetString("REDIS_URL"),
				RedisHost:      viper.GetString("REDIS_HOST"),
				RedisPort:      viper.GetString("REDIS_PORT"),
				RedisPassword:  viper.GetString("REDIS_PASSWORD"),
				RedisDB:        viper.GetInt("REDIS_DB"),
				PolicyTTLHours: viper.GetInt("CACHE_POLICY_TTL_HOURS"),
			},
			Solver: SolverConfig{
				TimeLimit:       time.Duration(viper.GetInt("SOLVER_TIME_LIMIT_SECONDS")) * time.Second,
				GapTolerance:    viper.GetFloat64("SOLVER_GAP_TOLERANCE"),
				NodeLimit:       viper.GetInt("SOLVER_NODE_LIMIT"),
				TieBreakEpsilon: viper.GetFloat64("SOLVER_TIE_BREAK_EPSILON"),
			},
			Planner: PlannerConfig{
				Horizon:             viper.GetInt("PLANNER_HORIZON"),
				WorkerCount:         viper.GetInt("PLANNER_WORKER_COUNT"),
				MaxPartitionItems:   viper.GetInt("PLANNER_MAX_PARTITION_ITEMS"),
				FailureThreshold:    viper.GetFloat64("PLANNER_FAILURE_THRESHOLD"),
				ShortageAllowance:   viper.GetFloat64("PLANNER_SHORTAGE_ALLOWANCE"),
				RelaxedSafetyFactor: viper.GetFloat64("PLANNER_RELAXED_SAFETY_FACTOR"),
				UnitGranularity:     viper.GetFloat64("PLANNER_UNIT_GRANULARITY"),
			},
			Report: ReportConfig{
				Enabled:   viper.GetBool("REPORT_ENABLED"),
				Endpoint:  viper.GetString("REPORT_ENDPOINT"),
				AccessKey: viper.GetString("REPORT_ACCESS_KEY"),
				SecretKey: viper.GetString("REPORT_SECRET_KEY"),
				Bucket:    viper.GetString("REPORT_BUCKET"),
				Region:    viper.GetString("REPORT_REGION"),
				UseSSL:    viper.GetBool("REPORT_USE_SSL"),
				Prefix:    viper.GetString("REPORT_PREFIX"),
			},
		}
	})

	return instance
}
