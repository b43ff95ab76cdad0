// Package config assembles the service configuration from the per-package
// Config structs. Values are bound from the environment, the "configKey"
// tags define the key hierarchy.
package config

import (
	"context"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/partdex/partdex/internal/pkg/log"
	"github.com/partdex/partdex/internal/pkg/marketapi"
	"github.com/partdex/partdex/internal/pkg/pricing/lookup"
	"github.com/partdex/partdex/internal/pkg/pricing/sweep"
	"github.com/partdex/partdex/internal/pkg/replication"
	"github.com/partdex/partdex/internal/pkg/replication/peerclient"
	"github.com/partdex/partdex/internal/pkg/scrape"
	"github.com/partdex/partdex/internal/pkg/utils/errors"
	"github.com/partdex/partdex/internal/pkg/validator"
)

const EnvPrefix = "PARTDEX"

type Config struct {
	LogLevel     string             `configKey:"logLevel" configUsage:"Log level: debug, info, warn or error." validate:"required,oneof=debug info warn error"`
	LogFormat    log.LogFormat      `configKey:"logFormat" configUsage:"Log format: console or json." validate:"required,oneof=console json"`
	DatabasePath string             `configKey:"databasePath" configUsage:"Path of the sqlite database file." validate:"required"`
	MarketAPI    marketapi.Config   `configKey:"marketApi"`
	Lookup       lookup.Config      `configKey:"lookup"`
	Sweep        sweep.Config       `configKey:"sweep"`
	Replication  replication.Config `configKey:"replication"`
	PeerClient   peerclient.Config  `configKey:"peerClient"`
	Scrape       scrape.Config      `configKey:"scrape"`
}

func New() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    log.LogFormatJSON,
		DatabasePath: "partdex.db",
		MarketAPI:    marketapi.NewConfig(),
		Lookup:       lookup.NewConfig(),
		Sweep:        sweep.NewConfig(),
		Replication:  replication.NewConfig(),
		PeerClient:   peerclient.NewConfig(),
		Scrape:       scrape.NewConfig(),
	}
}

// Load binds the configuration from the environment on top of the defaults
// and validates the result.
func Load(ctx context.Context) (Config, error) {
	cfg := New()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindKeys(v, reflect.TypeOf(cfg), nil)

	if err := v.Unmarshal(&cfg, decoderOptions); err != nil {
		return cfg, errors.PrefixError(err, "cannot load configuration")
	}
	if err := validator.New().Validate(ctx, cfg); err != nil {
		return cfg, errors.PrefixError(err, "invalid configuration")
	}
	return cfg, nil
}

func decoderOptions(dc *mapstructure.DecoderConfig) {
	dc.TagName = "configKey"
	dc.WeaklyTypedInput = true
	dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// bindKeys walks the configKey tags and registers every leaf key,
// so the automatic env binding sees the whole hierarchy.
func bindKeys(v *viper.Viper, t reflect.Type, path []string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("configKey")
		if key == "" || key == "-" {
			continue
		}
		keyPath := append(append([]string(nil), path...), key)
		if field.Type.Kind() == reflect.Struct {
			bindKeys(v, field.Type, keyPath)
			continue
		}
		// BindEnv derives PARTDEX_FOO_BAR from the "foo.bar" key
		_ = v.BindEnv(strings.Join(keyPath, "."))
	}
}
