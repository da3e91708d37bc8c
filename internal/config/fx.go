package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(provideConfig),
	fx.Provide(LoadPolicyHolder),
)

func provideConfig() (Config, error) {
	cfg := Load()
	if err := CheckRequired(nil); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
