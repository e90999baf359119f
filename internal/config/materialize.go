package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// State backends for materializer progress.
const (
	StateNone = "none"
	StateFile = "file"
	StatePG   = "pg"
	StateBolt = "bolt"
)

// MaterializeConfig holds configuration for the materialize command.
type MaterializeConfig struct {
	// RPCURL enables contract reads; without it every read is unavailable.
	RPCURL     string
	In         string
	BatchSize  int
	SkipFailed bool
	LogLevel   string

	BaseToken        string
	Stablecoins      []string
	TickSpacings     []int32
	RewardToken      string
	CLGaugeFactories []string

	ChangesOut    string
	PGDSN         string
	PGMigrate     bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	KafkaBrokers  []string
	KafkaTopic    string
	BoltPath      string

	State     string
	StateFile string
	StateName string
}

// LoadMaterialize merges config file, environment variables, and flags into MaterializeConfig.
func LoadMaterialize(cfgFile string, flags *pflag.FlagSet) (MaterializeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":   1000,
		"log-level":    "info",
		"state":        StateFile,
		"state-file":   "./data/materialize_state.json",
		"state-name":   "materialize",
		"redis-prefix": "clscope",
		"kafka-topic":  "clscope.entities",
		"pg-migrate":   true,
	})
	if err != nil {
		return MaterializeConfig{}, err
	}

	tickSpacings, err := getInt32Slice(v, "tick-spacings")
	if err != nil {
		return MaterializeConfig{}, err
	}

	cfg := MaterializeConfig{
		RPCURL:           v.GetString("rpc"),
		In:               v.GetString("in"),
		BatchSize:        v.GetInt("batch-size"),
		SkipFailed:       v.GetBool("skip-failed"),
		LogLevel:         v.GetString("log-level"),
		BaseToken:        v.GetString("base-token"),
		Stablecoins:      getStringSlice(v, "stablecoins"),
		TickSpacings:     tickSpacings,
		RewardToken:      v.GetString("reward-token"),
		CLGaugeFactories: getStringSlice(v, "cl-gauge-factories"),
		ChangesOut:       v.GetString("changes-out"),
		PGDSN:            v.GetString("pg-dsn"),
		PGMigrate:        v.GetBool("pg-migrate"),
		RedisAddr:        v.GetString("redis-addr"),
		RedisPassword:    v.GetString("redis-password"),
		RedisDB:          v.GetInt("redis-db"),
		RedisPrefix:      v.GetString("redis-prefix"),
		KafkaBrokers:     getStringSlice(v, "kafka-brokers"),
		KafkaTopic:       v.GetString("kafka-topic"),
		BoltPath:         v.GetString("bolt-path"),
		State:            strings.ToLower(strings.TrimSpace(v.GetString("state"))),
		StateFile:        v.GetString("state-file"),
		StateName:        v.GetString("state-name"),
	}

	if err := cfg.validate(); err != nil {
		return MaterializeConfig{}, err
	}
	return cfg, nil
}

func (c MaterializeConfig) validate() error {
	switch c.State {
	case StateNone, StateFile:
	case StatePG:
		if c.PGDSN == "" {
			return fmt.Errorf("state %q requires pg-dsn", c.State)
		}
	case StateBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("state %q requires bolt-path", c.State)
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.State)
	}
	return nil
}
