package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "FLAGDASH"

type Config struct {
	Port     string `mapstructure:"port" validate:"required,numeric"`
	LogLevel string `mapstructure:"log-level" validate:"oneof=trace debug info warn error"`

	FlagsFile string `mapstructure:"flags-file" validate:"required"`

	RoundDuration  time.Duration `mapstructure:"round-duration" validate:"gt=0"`
	RoomTTL        time.Duration `mapstructure:"room-ttl" validate:"gtfield=RoundDuration"`
	RoomIDLength   int           `mapstructure:"room-id-length" validate:"min=1,max=32"`
	RoomIDAlphabet string        `mapstructure:"room-id-alphabet" validate:"min=2,alphanum"`
	RoomIDAttempts int           `mapstructure:"room-id-attempts" validate:"min=1"`
	SerializeRooms bool          `mapstructure:"serialize-rooms"`

	SessionIDLength int    `mapstructure:"session-id-length" validate:"min=8,max=64"`
	SessionSecret   string `mapstructure:"session-secret" validate:"required"`
	SecureCookies   bool   `mapstructure:"secure-cookies"`

	StoreBackend   string        `mapstructure:"store-backend" validate:"oneof=memory redis nats badger"`
	StoreRetries   uint64        `mapstructure:"store-retries"`
	StoreRetryWait time.Duration `mapstructure:"store-retry-wait" validate:"gt=0"`

	RedisAddr     string `mapstructure:"redis-addr" validate:"required_if=StoreBackend redis,required_if=Broadcast redis"`
	RedisPassword string `mapstructure:"redis-password"`
	RedisDB       int    `mapstructure:"redis-db" validate:"min=0"`

	NatsURL     string `mapstructure:"nats-url" validate:"required_if=StoreBackend nats,required_if=Broadcast nats"`
	NatsBucket  string `mapstructure:"nats-bucket" validate:"required_if=StoreBackend nats"`
	NatsSubject string `mapstructure:"nats-subject" validate:"required_if=Broadcast nats"`

	BadgerPath string `mapstructure:"badger-path" validate:"required_if=StoreBackend badger"`

	Broadcast string `mapstructure:"broadcast" validate:"oneof=local redis nats"`

	ExportEnabled bool   `mapstructure:"export-enabled"`
	ExportFile    string `mapstructure:"export-file" validate:"required_if=ExportEnabled true"`
}

var validate = validator.New()

// DefaultSessionSecret is only meant for local development.
const DefaultSessionSecret = "devkey"

// RegisterFlags declares every setting with its default on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("port", "p", "8080", "port to listen on")
	fs.String("log-level", "info", "trace, debug, info, warn or error")
	fs.String("flags-file", "flags.json", "JSON file mapping flag ids to display names")
	fs.Duration("round-duration", 5*time.Second, "answer window per round")
	fs.Duration("room-ttl", 600*time.Second, "rooms expire this long after their last write")
	fs.Int("room-id-length", 6, "length of generated room ids")
	fs.String("room-id-alphabet", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", "characters used in room ids")
	fs.Int("room-id-attempts", 5, "room id generation attempts before giving up")
	fs.Bool("serialize-rooms", true, "serialize mutations per room within this process")
	fs.Int("session-id-length", 12, "length of participant ids")
	fs.String("session-secret", DefaultSessionSecret, "secret used to sign session cookies")
	fs.Bool("secure-cookies", false, "mark session cookies Secure")
	fs.String("store-backend", "redis", "room store: memory, redis, nats or badger")
	fs.Uint64("store-retries", 3, "retries for failed room store calls")
	fs.Duration("store-retry-wait", 100*time.Millisecond, "initial backoff between room store retries")
	fs.String("redis-addr", "redis:6379", "redis address")
	fs.String("redis-password", "", "redis password")
	fs.Int("redis-db", 0, "redis database")
	fs.String("nats-url", "nats://127.0.0.1:4222", "NATS server url")
	fs.String("nats-bucket", "flagdash_rooms", "JetStream key/value bucket for rooms")
	fs.String("nats-subject", "flagdash.rooms", "subject prefix for room broadcasts")
	fs.String("badger-path", "./data/rooms", "badger directory")
	fs.String("broadcast", "redis", "cross-process broadcast: local, redis or nats")
	fs.Bool("export-enabled", false, "append round results to export-file")
	fs.String("export-file", "./flagdash-results.txt", "round result export file")
	fs.String("config", "", "optional config file (yaml, toml or json)")
}

// LocalBroadcastOnSharedStore reports whether rooms can be shared between
// processes while round events only reach this process's sockets.
func (c Config) LocalBroadcastOnSharedStore() bool {
	shared := c.StoreBackend == "redis" || c.StoreBackend == "nats"
	return shared && c.Broadcast == "local"
}

// Load resolves settings from flags, FLAGDASH_* environment variables (also
// read from a .env file when present), an optional config file and defaults,
// in that order of precedence.
func Load(fs *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
