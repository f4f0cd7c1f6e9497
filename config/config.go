package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"metagate/core/replay"
	"metagate/crypto"
	"metagate/storage"
)

const (
	// EnvEnvironment overrides Config.Environment.
	EnvEnvironment = "METAGATE_ENV"
	// EnvTokenSecret overrides Auth.HMACSecret so secrets stay out of the file.
	EnvTokenSecret = "METAGATE_RPC_TOKEN_SECRET"

	BackendMemory  = storage.BackendMemory
	BackendLevelDB = storage.BackendLevelDB
	BackendBolt    = storage.BackendBolt
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	Backend     string `toml:"Backend"`
	Environment string `toml:"Environment,omitempty"`
	// Target is the fixed identity of this gateway instance. Signers bind
	// every digest to it.
	Target string `toml:"Target"`
	Policy string `toml:"Policy"`
	// EventArchive is the SQLite file receiving emitted events. Empty disables
	// the archive.
	EventArchive string `toml:"EventArchive,omitempty"`

	Log       Log       `toml:"log"`
	RateLimit RateLimit `toml:"rate_limit"`
	Auth      Auth      `toml:"auth"`
	Telemetry Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./metagate-data"
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = BackendLevelDB
	}
	if strings.TrimSpace(cfg.Policy) == "" {
		cfg.Policy = string(replay.PolicyBitmap)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Auth.SubmitScope == "" {
		cfg.Auth.SubmitScope = "metatx:submit"
	}
}

func applyEnv(cfg *Config) {
	if env := strings.TrimSpace(os.Getenv(EnvEnvironment)); env != "" {
		cfg.Environment = env
	}
	if secret := strings.TrimSpace(os.Getenv(EnvTokenSecret)); secret != "" {
		cfg.Auth.HMACSecret = secret
	}
}

// createDefault creates and saves a default configuration file with a fresh
// random instance target.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	cfg := &Config{
		RPCAddress:   ":8545",
		DataDir:      filepath.Join(dir, "metagate-data"),
		Backend:      BackendLevelDB,
		Target:       key.Identity().Hex(),
		Policy:       string(replay.PolicyBitmap),
		EventArchive: filepath.Join(dir, "metagate-data", "events.db"),
		Log:          Log{Level: "info"},
		RateLimit:    RateLimit{RequestsPerMinute: 600, Burst: 60},
		Auth:         Auth{SubmitScope: "metatx:submit"},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// TargetAddress parses the configured instance target.
func (c *Config) TargetAddress() (common.Address, error) {
	return crypto.ParseIdentity(c.Target)
}

// ReplayPolicy parses the configured replay policy.
func (c *Config) ReplayPolicy() (replay.Policy, error) {
	return replay.ParsePolicy(c.Policy)
}
