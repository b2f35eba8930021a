package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Node struct {
	// DataDir holds the pebble store. Empty runs on an in-memory store.
	DataDir string
	LogFile string
	// LogLevel is a zap level name: debug, info, warn or error.
	LogLevel string
	// GenesisPath points at a YAML/JSON genesis. Empty uses DefaultGenesis.
	GenesisPath string
	// MinBlockTime paces the single-node block producer.
	//
	//   - Devnet:  200ms (5 blocks/sec)
	//   - Load tests: 50ms
	MinBlockTime  time.Duration
	MaxBlockBytes int64
	// ChainDomain is mixed into every transaction signature.
	ChainDomain string
}

type API struct {
	Addr           string
	AllowedOrigins []string
}

type Config struct {
	Node Node
	API  API
}

func Default() Config {
	return Config{
		Node: Node{
			DataDir:       "data/chain",
			LogFile:       "",
			LogLevel:      "info",
			MinBlockTime:  200 * time.Millisecond,
			MaxBlockBytes: 1 << 24,
			ChainDomain:   "hyperspot-devnet",
		},
		API: API{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if it exists) and the
// environment. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Node.DataDir = getEnv("NODE_DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("NODE_LOG_FILE", cfg.Node.LogFile)
	cfg.Node.LogLevel = getEnv("NODE_LOG_LEVEL", cfg.Node.LogLevel)
	cfg.Node.GenesisPath = getEnv("NODE_GENESIS", cfg.Node.GenesisPath)
	cfg.Node.ChainDomain = getEnv("CHAIN_DOMAIN", cfg.Node.ChainDomain)
	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)

	if minBlock := os.Getenv("NODE_MIN_BLOCK_TIME_MS"); minBlock != "" {
		if ms, err := strconv.Atoi(minBlock); err == nil {
			cfg.Node.MinBlockTime = time.Duration(ms) * time.Millisecond
		}
	}
	if maxBytes := os.Getenv("NODE_MAX_BLOCK_BYTES"); maxBytes != "" {
		if n, err := strconv.ParseInt(maxBytes, 10, 64); err == nil {
			cfg.Node.MaxBlockBytes = n
		}
	}
	if origins := os.Getenv("API_ALLOWED_ORIGINS"); origins != "" {
		cfg.API.AllowedOrigins = splitList(origins)
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
