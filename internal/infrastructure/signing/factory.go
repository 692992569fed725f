package signing

import (
	"github.com/microshop/identity-service/internal/infrastructure/config"
)

// FromConfig resolves the two-variant signing configuration into a single
// KeySource. All environment branching happens here; the token issuer only
// ever sees the resolved source.
func FromConfig(cfg config.SigningConfig) (*KeySource, error) {
	if cfg.Ephemeral {
		return NewEphemeral()
	}
	return NewPersisted(cfg.CertFile, cfg.KeyFile)
}
