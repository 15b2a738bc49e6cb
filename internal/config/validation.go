package config

import "fmt"

// validate rejects configurations that cannot possibly run. A missing
// account is allowed here: session initialization reports it and leaves the
// session uninitialized instead of failing the whole process.
func validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if cfg.Ledger.DBPath == cfg.MarketData.DBPath {
		return fmt.Errorf("ledger and market data must use separate database files (%s)", cfg.Ledger.DBPath)
	}
	if !cfg.Broker.Simulated && cfg.Broker.TerminalPath == "" && cfg.Broker.Account != "" {
		return fmt.Errorf("broker.terminal_path is required when an account is configured")
	}
	return nil
}
