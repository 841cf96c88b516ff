package config

import (
	"errors"
	"fmt"
	"time"

	"rfsentry/internal/logger"
	"rfsentry/internal/models"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Defaults mirror a sensible single-room deployment.
const (
	defaultApproachDelta  = 5
	defaultRSSIThreshold  = -85
	defaultApproachWindow = 10 * time.Second
	defaultCooldownWindow = 15 * time.Second
	defaultWatchdog       = 10 * time.Second
	defaultWiFiPulse      = 3 * time.Second
	defaultWiFiInterface  = "wlan0"
	defaultIdleHorizon    = 5 * time.Minute
	defaultQueueSize      = 256
)

// Validation errors surfaced to the operator.
var (
	ErrBadApproachDelta = errors.New("approach_delta must be > 0")
	ErrBadThreshold     = errors.New("rssi_alert_threshold must be a negative dBm value")
	ErrBadWindow        = errors.New("approach_window must be > 0")
	ErrBadCooldown      = errors.New("cooldown_window must be >= 0")
)

// Scanner holds the non-hot-reloadable capture settings.
type Scanner struct {
	WiFiInterface   string
	WiFiPulse       time.Duration
	WatchdogTimeout time.Duration
}

// Config is everything cmd/main needs to wire the daemon.
type Config struct {
	Port       string
	LogLevel   string
	DBPath     string
	SigningKey string

	QueueSize   int
	IdleHorizon time.Duration

	Policy  models.PolicyConfig
	Scanner Scanner
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("log_level", logger.InfoLevel)
	viper.SetDefault("db.path", "rfsentry.db")
	viper.SetDefault("engine.queue_size", defaultQueueSize)
	viper.SetDefault("engine.idle_horizon", defaultIdleHorizon)
	viper.SetDefault("policy.approach_delta", defaultApproachDelta)
	viper.SetDefault("policy.rssi_alert_threshold", defaultRSSIThreshold)
	viper.SetDefault("policy.approach_window", defaultApproachWindow)
	viper.SetDefault("policy.cooldown_window", defaultCooldownWindow)
	viper.SetDefault("scanner.wifi_interface", defaultWiFiInterface)
	viper.SetDefault("scanner.wifi_pulse", defaultWiFiPulse)
	viper.SetDefault("scanner.watchdog_timeout", defaultWatchdog)
}

// Load reads configs/config.yml (or the given path) into a validated
// Config. A missing file is not fatal: defaults apply, matching how the
// daemon ships before the operator customizes anything.
func Load(path string) (*Config, error) {
	setDefaults()
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.AddConfigPath("configs")
		viper.SetConfigName("config")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper()
}

// fromViper assembles and validates a Config from the current viper state.
func fromViper() (*Config, error) {
	policy, err := policyFromViper()
	if err != nil {
		return nil, err
	}
	return &Config{
		Port:        viper.GetString("port"),
		LogLevel:    viper.GetString("log_level"),
		DBPath:      viper.GetString("db.path"),
		SigningKey:  viper.GetString("auth.signing_key"),
		QueueSize:   viper.GetInt("engine.queue_size"),
		IdleHorizon: viper.GetDuration("engine.idle_horizon"),
		Policy:      policy,
		Scanner: Scanner{
			WiFiInterface:   viper.GetString("scanner.wifi_interface"),
			WiFiPulse:       viper.GetDuration("scanner.wifi_pulse"),
			WatchdogTimeout: viper.GetDuration("scanner.watchdog_timeout"),
		},
	}, nil
}

// policyFromViper builds the hot-reloadable policy section.
func policyFromViper() (models.PolicyConfig, error) {
	p := models.PolicyConfig{
		Whitelist:          map[string]string{},
		ApproachDelta:      viper.GetInt("policy.approach_delta"),
		RSSIAlertThreshold: viper.GetInt("policy.rssi_alert_threshold"),
		ApproachWindow:     viper.GetDuration("policy.approach_window"),
		CooldownWindow:     viper.GetDuration("policy.cooldown_window"),
	}
	for addr, name := range viper.GetStringMapString("policy.whitelist") {
		id := models.NormalizeDeviceID(addr)
		if id == "" {
			return models.PolicyConfig{}, fmt.Errorf("whitelist entry %q: not a hardware address", addr)
		}
		p.Whitelist[id] = name
	}
	return p, ValidatePolicy(p)
}

// ValidatePolicy rejects structurally invalid policies; callers keep the
// prior valid policy when this fails.
func ValidatePolicy(p models.PolicyConfig) error {
	if p.ApproachDelta <= 0 {
		return ErrBadApproachDelta
	}
	if p.RSSIAlertThreshold >= 0 {
		return ErrBadThreshold
	}
	if p.ApproachWindow <= 0 {
		return ErrBadWindow
	}
	if p.CooldownWindow < 0 {
		return ErrBadCooldown
	}
	for addr := range p.Whitelist {
		if models.NormalizeDeviceID(addr) == "" {
			return fmt.Errorf("whitelist entry %q: not a hardware address", addr)
		}
	}
	return nil
}

// Watch hot-reloads the policy section on config file changes. Invalid
// edits are rejected wholesale: the previous policy stays authoritative
// and the error is logged, never partially applied.
func Watch(log *logger.Logger, onUpdate func(models.PolicyConfig)) {
	viper.OnConfigChange(func(fsnotify.Event) {
		policy, err := policyFromViper()
		if err != nil {
			log.Errorw("config_reload_rejected", "err", err)
			return
		}
		onUpdate(policy)
		log.Infow("config_reloaded")
	})
	viper.WatchConfig()
}
