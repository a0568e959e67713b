// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Default cron schedules. Pacing encodes the intended ordering between
// derived-data jobs: era points land before inclusion, inclusion and
// the preference sweeps before validity, validity before scoring, and
// era stats less often than validity and the active-validator sweep.
const (
	DefaultMonitorCron         = "*/15 * * * *"
	DefaultClearOfflineCron    = "0 0 * * 0"
	DefaultEraPointsCron       = "3 * * * *"
	DefaultActiveValidatorCron = "*/15 * * * *"
	DefaultInclusionCron       = "20 */4 * * *"
	DefaultSessionKeyCron      = "*/15 * * * *"
	DefaultUnclaimedErasCron   = "45 */12 * * *"
	DefaultValidatorPrefCron   = "*/30 * * * *"
	DefaultValidityCron        = "*/5 * * * *"
	DefaultScoreCron           = "*/10 * * * *"
	DefaultEraStatsCron        = "0 */2 * * *"
	DefaultExtNominationsCron  = "0 */2 * * *"
	DefaultExecutionCron       = "*/15 * * * *"
	DefaultRewardClaimingCron  = "0 */6 * * *"
	DefaultCancelCron          = "25 */4 * * *"
	DefaultStaleCron           = "50 */6 * * *"
)

// DefaultTimeDelayBlocks is the window between recording a delayed
// nomination and executing it, roughly eighteen hours of blocks.
const DefaultTimeDelayBlocks = 10850

// Config is the full service configuration.
type Config struct {
	Global      GlobalConfig      `mapstructure:"global"`
	Db          DbConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Constraints ConstraintsConfig `mapstructure:"constraints"`
	Candidates  []CandidateConfig `mapstructure:"candidates"`
}

type GlobalConfig struct {
	// NetworkPrefix selects the network: 2 = Kusama, 0 = Polkadot,
	// anything else is treated as a testnet.
	NetworkPrefix uint16 `mapstructure:"networkPrefix"`
	Endpoint      string `mapstructure:"endpoint"`
	MetricsAddr   string `mapstructure:"metricsAddr"`
	ReleaseRepo   string `mapstructure:"releaseRepo"`
}

type DbConfig struct {
	Uri  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// CronConfig holds per-job overrides; an empty field means the
// default from the constant table.
type CronConfig struct {
	Monitor         string `mapstructure:"monitor"`
	ClearOffline    string `mapstructure:"clearOffline"`
	Validity        string `mapstructure:"validity"`
	Score           string `mapstructure:"score"`
	EraStats        string `mapstructure:"eraStats"`
	Execution       string `mapstructure:"execution"`
	RewardClaiming  string `mapstructure:"rewardClaiming"`
	Cancel          string `mapstructure:"cancel"`
	Stale           string `mapstructure:"stale"`
	EraPoints       string `mapstructure:"eraPoints"`
	ActiveValidator string `mapstructure:"activeValidator"`
	Inclusion       string `mapstructure:"inclusion"`
	SessionKey      string `mapstructure:"sessionKey"`
	UnclaimedEras   string `mapstructure:"unclaimedEras"`
	ValidatorPref   string `mapstructure:"validatorPref"`
	ExtNominations  string `mapstructure:"extNominations"`
}

type ProxyConfig struct {
	TimeDelayBlocks uint64 `mapstructure:"timeDelayBlocks"`
}

// ConstraintsConfig carries validity thresholds and scoring weights.
type ConstraintsConfig struct {
	Commission         float64       `mapstructure:"commission"`
	MinSelfStake       float64       `mapstructure:"minSelfStake"`
	MinKusamaRank      int           `mapstructure:"minKusamaRank"`
	ClientUpgradeGrace time.Duration `mapstructure:"clientUpgradeGrace"`
	MinConnectionTime  time.Duration `mapstructure:"minConnectionTime"`
	MaxOfflineTime     time.Duration `mapstructure:"maxOfflineTime"`
	ClaimerMinBalance  float64       `mapstructure:"claimerMinBalance"`

	InclusionWeight      float64 `mapstructure:"inclusionWeight"`
	SpanInclusionWeight  float64 `mapstructure:"spanInclusionWeight"`
	DiscoveredWeight     float64 `mapstructure:"discoveredWeight"`
	NominatedWeight      float64 `mapstructure:"nominatedWeight"`
	RankWeight           float64 `mapstructure:"rankWeight"`
	UnclaimedWeight      float64 `mapstructure:"unclaimedWeight"`
	BondedWeight         float64 `mapstructure:"bondedWeight"`
	FaultsWeight         float64 `mapstructure:"faultsWeight"`
	OfflineWeight        float64 `mapstructure:"offlineWeight"`
	ExtNominationsWeight float64 `mapstructure:"extNominationsWeight"`
	RandomnessWeight     float64 `mapstructure:"randomnessWeight"`
}

type CandidateConfig struct {
	Name        string `mapstructure:"name"`
	Stash       string `mapstructure:"stash"`
	KusamaStash string `mapstructure:"kusamaStash"`
}

// Load reads the config file at path, applies env overrides
// (OTV_GLOBAL_NETWORKPREFIX etc.) and fills defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("otv")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("global.networkPrefix", 2)
	v.SetDefault("global.metricsAddr", ":9955")
	v.SetDefault("global.releaseRepo", "paritytech/polkadot")
	v.SetDefault("db.name", "otv")

	v.SetDefault("cron.monitor", DefaultMonitorCron)
	v.SetDefault("cron.clearOffline", DefaultClearOfflineCron)
	v.SetDefault("cron.validity", DefaultValidityCron)
	v.SetDefault("cron.score", DefaultScoreCron)
	v.SetDefault("cron.eraStats", DefaultEraStatsCron)
	v.SetDefault("cron.execution", DefaultExecutionCron)
	v.SetDefault("cron.rewardClaiming", DefaultRewardClaimingCron)
	v.SetDefault("cron.cancel", DefaultCancelCron)
	v.SetDefault("cron.stale", DefaultStaleCron)
	v.SetDefault("cron.eraPoints", DefaultEraPointsCron)
	v.SetDefault("cron.activeValidator", DefaultActiveValidatorCron)
	v.SetDefault("cron.inclusion", DefaultInclusionCron)
	v.SetDefault("cron.sessionKey", DefaultSessionKeyCron)
	v.SetDefault("cron.unclaimedEras", DefaultUnclaimedErasCron)
	v.SetDefault("cron.validatorPref", DefaultValidatorPrefCron)
	v.SetDefault("cron.extNominations", DefaultExtNominationsCron)

	v.SetDefault("proxy.timeDelayBlocks", DefaultTimeDelayBlocks)

	v.SetDefault("constraints.commission", 10)
	v.SetDefault("constraints.minSelfStake", 50*1e10)
	v.SetDefault("constraints.minKusamaRank", 2)
	v.SetDefault("constraints.clientUpgradeGrace", 16*time.Hour)
	v.SetDefault("constraints.minConnectionTime", 7*24*time.Hour)
	v.SetDefault("constraints.maxOfflineTime", time.Duration(float64(7*24*time.Hour)*0.02))
	v.SetDefault("constraints.claimerMinBalance", 1e10)

	v.SetDefault("constraints.inclusionWeight", 100)
	v.SetDefault("constraints.spanInclusionWeight", 100)
	v.SetDefault("constraints.discoveredWeight", 5)
	v.SetDefault("constraints.nominatedWeight", 30)
	v.SetDefault("constraints.rankWeight", 5)
	v.SetDefault("constraints.unclaimedWeight", 10)
	v.SetDefault("constraints.bondedWeight", 50)
	v.SetDefault("constraints.faultsWeight", 5)
	v.SetDefault("constraints.offlineWeight", 2)
	v.SetDefault("constraints.extNominationsWeight", 0)
	v.SetDefault("constraints.randomnessWeight", 0.15)
}
