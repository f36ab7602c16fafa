package main

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withSettings swaps the cached policy for the duration of a test.
func withSettings(t *testing.T, settings LedgerSettings) {
	t.Helper()
	settingsMu.Lock()
	previous := cachedSettings
	cachedSettings = settings
	settingsMu.Unlock()
	t.Cleanup(func() {
		settingsMu.Lock()
		cachedSettings = previous
		settingsMu.Unlock()
	})
}

func TestApplySetting(t *testing.T) {
	target := LedgerSettings{
		StarThreshold:    2,
		ConversionPolicy: PolicyCarry,
		SpinWinPercent:   30,
		StarterTickets:   5,
	}

	assert.True(t, applySetting(&target, "star_threshold", "5"))
	assert.Equal(t, int64(5), target.StarThreshold)

	assert.True(t, applySetting(&target, "conversion_policy", "reset"))
	assert.Equal(t, PolicyReset, target.ConversionPolicy)

	assert.True(t, applySetting(&target, "spin_win_percent", "45"))
	assert.Equal(t, 45, target.SpinWinPercent)

	assert.True(t, applySetting(&target, "starter_tickets", "0"))
	assert.Equal(t, int64(0), target.StarterTickets)
}

func TestApplySettingRejectsInvalidValues(t *testing.T) {
	target := LedgerSettings{
		StarThreshold:    2,
		ConversionPolicy: PolicyCarry,
		SpinWinPercent:   30,
		StarterTickets:   5,
	}

	assert.False(t, applySetting(&target, "star_threshold", "0"))
	assert.False(t, applySetting(&target, "star_threshold", "not-a-number"))
	assert.False(t, applySetting(&target, "conversion_policy", "halve"))
	assert.False(t, applySetting(&target, "spin_win_percent", "150"))
	assert.False(t, applySetting(&target, "starter_tickets", "-3"))
	assert.False(t, applySetting(&target, "unknown_key", "whatever"))

	assert.Equal(t, int64(2), target.StarThreshold)
	assert.Equal(t, PolicyCarry, target.ConversionPolicy)
	assert.Equal(t, 30, target.SpinWinPercent)
	assert.Equal(t, int64(5), target.StarterTickets)
}

func TestLoadLedgerSettings(t *testing.T) {
	withSettings(t, LedgerSettings{
		StarThreshold:    2,
		ConversionPolicy: PolicyCarry,
		SpinWinPercent:   30,
		StarterTickets:   5,
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"key", "value"}).
		AddRow("star_threshold", "5").
		AddRow("conversion_policy", "reset").
		AddRow("spin_win_percent", "50")
	mock.ExpectQuery("SELECT key, value").WillReturnRows(rows)

	require.NoError(t, LoadLedgerSettings(db))

	settings := GetLedgerSettings()
	assert.Equal(t, int64(5), settings.StarThreshold)
	assert.Equal(t, PolicyReset, settings.ConversionPolicy)
	assert.Equal(t, 50, settings.SpinWinPercent)
	assert.Equal(t, int64(5), settings.StarterTickets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLedgerSettingsPersists(t *testing.T) {
	withSettings(t, LedgerSettings{
		StarThreshold:    2,
		ConversionPolicy: PolicyCarry,
		SpinWinPercent:   30,
		StarterTickets:   5,
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO global_settings").
		WithArgs("star_threshold", "3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	settings, err := UpdateLedgerSettings(db, map[string]string{"star_threshold": "3"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), settings.StarThreshold)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLedgerSettingsRejectsOutOfRange(t *testing.T) {
	withSettings(t, LedgerSettings{
		StarThreshold:    2,
		ConversionPolicy: PolicyCarry,
		SpinWinPercent:   30,
		StarterTickets:   5,
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// No Exec expectations: a rejected value must never reach the store.
	_, err = UpdateLedgerSettings(db, map[string]string{"spin_win_percent": "150"})
	assert.ErrorIs(t, err, errValidation)

	_, err = UpdateLedgerSettings(db, map[string]string{"star_threshold": "0"})
	assert.ErrorIs(t, err, errValidation)

	settings := GetLedgerSettings()
	assert.Equal(t, 30, settings.SpinWinPercent)
	assert.Equal(t, int64(2), settings.StarThreshold)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLedgerSettingsAllOrNothing(t *testing.T) {
	withSettings(t, LedgerSettings{
		StarThreshold:    2,
		ConversionPolicy: PolicyCarry,
		SpinWinPercent:   30,
		StarterTickets:   5,
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// One valid and one invalid key: the valid one must not be applied
	// or persisted either.
	_, err = UpdateLedgerSettings(db, map[string]string{
		"star_threshold":   "4",
		"spin_win_percent": "150",
	})
	assert.ErrorIs(t, err, errValidation)

	settings := GetLedgerSettings()
	assert.Equal(t, int64(2), settings.StarThreshold)
	assert.Equal(t, 30, settings.SpinWinPercent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
