package config

// Board sectors covered when none are configured: main boards, ETFs,
// convertibles and the Beijing exchange.
var defaultSectors = []string{"SHSZ-A", "SHSZ-ETF", "SHSZ-CB", "BJ-A"}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9980"
	}
	if c.Broker.ProbeTimeoutSeconds <= 0 {
		c.Broker.ProbeTimeoutSeconds = 5
	}
	if c.Broker.ProbeIntervalSeconds <= 0 {
		c.Broker.ProbeIntervalSeconds = 30
	}
	if c.Ledger.DBPath == "" {
		c.Ledger.DBPath = "data/ledger.db"
	}
	if c.Fees.RulesPath == "" {
		c.Fees.RulesPath = "data/fees_config.json"
	}
	if c.Instrument.CachePath == "" {
		c.Instrument.CachePath = "data/instrument_names.json"
	}
	if len(c.Instrument.Sectors) == 0 {
		c.Instrument.Sectors = append([]string(nil), defaultSectors...)
	}
	if c.MarketData.DBPath == "" {
		c.MarketData.DBPath = "data/market.db"
	}
	if c.MarketData.SyncIntervalHours <= 0 {
		c.MarketData.SyncIntervalHours = 24
	}
}
