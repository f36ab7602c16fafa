package main

import (
	"database/sql"
	"log"
	"strconv"
	"strings"
	"sync"
)

// LedgerSettings holds the runtime policy knobs. Balances are never cached
// here; only the conversion/spin parameters are.
type LedgerSettings struct {
	StarThreshold    int64
	ConversionPolicy string
	SpinWinPercent   int
	StarterTickets   int64
}

var (
	settingsMu     sync.RWMutex
	cachedSettings = LedgerSettings{
		StarThreshold:    2,
		ConversionPolicy: PolicyCarry,
		SpinWinPercent:   30,
		StarterTickets:   5,
	}
)

func LoadLedgerSettings(db *sql.DB) error {
	rows, err := db.Query(`
		SELECT key, value
		FROM global_settings
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	settingsMu.Lock()
	defer settingsMu.Unlock()

	for rows.Next() {
		var key string
		var value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		if !applySetting(&cachedSettings, key, value) {
			log.Printf("ignoring invalid setting row: %s=%s", key, value)
		}
	}
	return rows.Err()
}

func GetLedgerSettings() LedgerSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return cachedSettings
}

// UpdateLedgerSettings validates every update against the acceptance rules
// before touching the cache or the store. A single rejected value fails the
// whole request and nothing is persisted.
func UpdateLedgerSettings(db *sql.DB, updates map[string]string) (LedgerSettings, error) {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	staged := cachedSettings
	for key, value := range updates {
		if !applySetting(&staged, key, value) {
			return cachedSettings, errValidation
		}
	}

	for key, value := range updates {
		_, err := db.Exec(`
			INSERT INTO global_settings (key, value, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`, key, value)
		if err != nil {
			return cachedSettings, err
		}
	}

	cachedSettings = staged
	return cachedSettings, nil
}

// applySetting reports whether the key/value pair was accepted. Unknown keys
// and out-of-range values leave the target untouched.
func applySetting(target *LedgerSettings, key string, value string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "star_threshold":
		if v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && v >= 1 {
			target.StarThreshold = v
			return true
		}
	case "conversion_policy":
		switch strings.ToLower(strings.TrimSpace(value)) {
		case PolicyCarry:
			target.ConversionPolicy = PolicyCarry
			return true
		case PolicyReset:
			target.ConversionPolicy = PolicyReset
			return true
		}
	case "spin_win_percent":
		if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v >= 0 && v <= 100 {
			target.SpinWinPercent = v
			return true
		}
	case "starter_tickets":
		if v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && v >= 0 {
			target.StarterTickets = v
			return true
		}
	}
	return false
}
