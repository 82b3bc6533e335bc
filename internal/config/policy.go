package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PolicyConfig holds the business policy knobs that operations may tune
// without a redeploy: tax rate, delivery radius, default vendor capacity,
// fallback item pricing and preview quote lifetime.
type PolicyConfig struct {
	TaxRate                float64 `mapstructure:"taxRate"`
	DeliveryRadiusKm       float64 `mapstructure:"deliveryRadiusKm"`
	DefaultMonthlyCapacity int     `mapstructure:"defaultMonthlyCapacity"`
	DefaultItemPrice       float64 `mapstructure:"defaultItemPrice"`
	PreviewTTLMinutes      int     `mapstructure:"previewTTLMinutes"`
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		TaxRate:                0.05,
		DeliveryRadiusKm:       50,
		DefaultMonthlyCapacity: 50,
		DefaultItemPrice:       25,
		PreviewTTLMinutes:      30,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds PolicyConfig
}

func NewPolicyHolder() (*PolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("policy")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tiffin/config") // Volume-mounted config
	v.AddConfigPath("/etc/tiffin")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("TIFFIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPolicyConfig()
	v.SetDefault("policy.taxRate", defaults.TaxRate)
	v.SetDefault("policy.deliveryRadiusKm", defaults.DeliveryRadiusKm)
	v.SetDefault("policy.defaultMonthlyCapacity", defaults.DefaultMonthlyCapacity)
	v.SetDefault("policy.defaultItemPrice", defaults.DefaultItemPrice)
	v.SetDefault("policy.previewTTLMinutes", defaults.PreviewTTLMinutes)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// if config file not found, defaults above apply
	}

	var cfg PolicyConfig
	if err := v.UnmarshalKey("policy", &cfg); err != nil {
		return nil, err
	}
	if err := validatePolicyConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PolicyHolder{}
	holder.current.Store(cfg)

	// 🔥 HOT RELOAD
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PolicyConfig
		if err := v.UnmarshalKey("policy", &updated); err != nil {
			log.Printf("[policy-config] reload failed: %v", err)
			return
		}
		if err := validatePolicyConfig(updated); err != nil {
			log.Printf("[policy-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[policy-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PolicyHolder) Get() PolicyConfig {
	return h.current.Load().(PolicyConfig)
}

// NewStaticPolicyHolder returns a holder pinned to the given config.
// Used by tests that need a policy without touching the filesystem.
func NewStaticPolicyHolder(cfg PolicyConfig) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(cfg)
	return holder
}

func validatePolicyConfig(cfg PolicyConfig) error {
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return errors.New("policy.taxRate must be in [0, 1)")
	}
	if cfg.DeliveryRadiusKm <= 0 {
		return errors.New("policy.deliveryRadiusKm must be positive")
	}
	if cfg.DefaultMonthlyCapacity <= 0 {
		return errors.New("policy.defaultMonthlyCapacity must be positive")
	}
	if cfg.DefaultItemPrice <= 0 {
		return errors.New("policy.defaultItemPrice must be positive")
	}
	if cfg.PreviewTTLMinutes <= 0 {
		return errors.New("policy.previewTTLMinutes must be positive")
	}
	return nil
}
