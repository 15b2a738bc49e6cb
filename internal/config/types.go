package config

// Config is the full application configuration.
type Config struct {
	App        AppConfig        `toml:"app"`
	Broker     BrokerConfig     `toml:"broker"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Fees       FeesConfig       `toml:"fees"`
	Instrument InstrumentConfig `toml:"instrument"`
	MarketData MarketDataConfig `toml:"marketdata"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// BrokerConfig locates the terminal session and its probe cadence.
type BrokerConfig struct {
	Account              string `toml:"account"`
	TerminalPath         string `toml:"terminal_path"`
	ProbeTimeoutSeconds  int    `toml:"probe_timeout_seconds"`
	ProbeIntervalSeconds int    `toml:"probe_interval_seconds"`
	Simulated            bool   `toml:"simulated"` // run against the in-process session
}

type LedgerConfig struct {
	DBPath string `toml:"db_path"`
}

type FeesConfig struct {
	RulesPath string `toml:"rules_path"`
}

type InstrumentConfig struct {
	CachePath string   `toml:"cache_path"`
	Sectors   []string `toml:"sectors"`
}

type MarketDataConfig struct {
	DBPath            string `toml:"db_path"`
	SyncIntervalHours int    `toml:"sync_interval_hours"`
}
