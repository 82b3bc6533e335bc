package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePolicyConfig(t *testing.T) {
	require.NoError(t, validatePolicyConfig(DefaultPolicyConfig()))

	bad := DefaultPolicyConfig()
	bad.TaxRate = 1.5
	assert.Error(t, validatePolicyConfig(bad))

	bad = DefaultPolicyConfig()
	bad.DeliveryRadiusKm = 0
	assert.Error(t, validatePolicyConfig(bad))

	bad = DefaultPolicyConfig()
	bad.PreviewTTLMinutes = -1
	assert.Error(t, validatePolicyConfig(bad))
}

func TestStaticPolicyHolder(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.TaxRate = 0.1

	holder := NewStaticPolicyHolder(cfg)
	assert.Equal(t, 0.1, holder.Get().TaxRate)
}
