package profile

import "github.com/feiralabs/feira/internal/config"

const DefaultName = "main"

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. FEIRA_DEFAULT_PROFILE / config.toml default_profile
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil {
		cfg.ApplyEnv()
		if cfg.DefaultProfile != "" {
			return cfg.DefaultProfile
		}
	}
	return DefaultName
}
