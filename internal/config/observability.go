package config

// ObservabilityConfig controls the New Relic agent. The agent is only
// started when Enabled is true and a license key is present.
type ObservabilityConfig struct {
	Enabled     bool   `koanf:"enabled"`
	LicenseKey  string `koanf:"license_key"`
	ServiceName string `koanf:"service_name"`
	Environment string `koanf:"environment"`
}

// DefaultObservabilityConfig returns a disabled observability config.
func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{Enabled: false}
}

// Active reports whether the agent should be started.
func (o *ObservabilityConfig) Active() bool {
	return o != nil && o.Enabled && o.LicenseKey != ""
}
