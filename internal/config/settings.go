package config

import "time"

// Settings contains the application config
type Settings struct {
	Environment string `yaml:"ENVIRONMENT"`
	LogLevel    string `yaml:"LOG_LEVEL"`
	Port        int    `yaml:"PORT"`
	MonPort     int    `yaml:"MON_PORT"`

	DatabasePath string        `yaml:"DATABASE_PATH"`
	ChallengeTTL time.Duration `yaml:"CHALLENGE_TTL"`

	// AllowDebugAppSignature additionally accepts attestations from debug
	// builds of the attestation app. Development setups only.
	AllowDebugAppSignature bool `yaml:"ALLOW_DEBUG_APP_SIGNATURE"`

	TLS TLSSettings `yaml:"TLS"`
}

// TLSSettings configures the optional TLS listener for the public server.
// Both files must be set to enable TLS.
type TLSSettings struct {
	CertFile string `yaml:"CERT_FILE"`
	KeyFile  string `yaml:"KEY_FILE"`
}

// Enabled reports whether a certificate pair is configured.
func (s TLSSettings) Enabled() bool {
	return s.CertFile != "" && s.KeyFile != ""
}
