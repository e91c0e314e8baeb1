package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	HTTPAddr             string        `env:"HTTP_ADDR,default=:8080"`
	GRPCPort             int           `env:"GRPC_PORT,default=9090"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	NumberOfWorkers      int           `env:"NUMBER_OF_WORKERS,default=4"`
	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=128"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=5s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=16"`
	TypingTimeout        time.Duration `env:"TYPING_TIMEOUT,default=3s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS"`
	RedisURL             string        `env:"REDIS_URL"`
	DirectoryCacheTTL    time.Duration `env:"DIRECTORY_CACHE_TTL,default=5m"`
	CensoredWordsDir     string        `env:"CENSORED_WORDS_DIR"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

// TokenConfig holds what the offline tools need to issue tokens. It loads
// without the server's required keys.
type TokenConfig struct {
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}

// Origins splits ALLOWED_ORIGINS on commas. Empty means any origin.
func (c Config) Origins() []string {
	return lo.Compact(lo.Map(strings.Split(c.AllowedOrigins, ","), func(origin string, _ int) string {
		return strings.TrimSpace(origin)
	}))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
