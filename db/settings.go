package db

// settings.go deals with the process-wide key-value configuration stored in
// the settings table. Values are JSON-serialized. Entries are created or
// overwritten via upsert; there is no deletion except the explicit resets
// below (disabling biometrics nulls the credential id).

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Setting keys known to the application.
const (
	SettingAPIEndpoint           = "apiEndpoint"
	SettingAPIToken              = "apiToken"
	SettingBiometricEnabled      = "biometricEnabled"
	SettingBiometricCredentialID = "biometricCredentialId"
	SettingPINEnabled            = "pinEnabled"
	SettingPINCode               = "pinCode"
	SettingAutoLockTimeout       = "autoLockTimeout"
	SettingThemePreference       = "themePreference"
)

// Theme preferences.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// PutSetting upserts a setting with a JSON-serialized value.
func (db *DB) PutSetting(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not serialize setting %q: %w", key, err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(b),
	)
	if err != nil {
		return fmt.Errorf("could not put setting %q: %w", key, err)
	}
	db.publish(CollectionSettings)
	return nil
}

// GetSetting unmarshals the setting value into out, reporting whether the key
// was present.
func (db *DB) GetSetting(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := db.GetContext(ctx, &raw, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("could not get setting %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("could not deserialize setting %q: %w", key, err)
	}
	return true, nil
}

// SettingString returns a string setting, or "" when unset or null.
func (db *DB) SettingString(ctx context.Context, key string) (string, error) {
	var v *string
	if _, err := db.GetSetting(ctx, key, &v); err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// SaveAPISettings stores the sync endpoint base URL and shared-secret token.
func (db *DB) SaveAPISettings(ctx context.Context, endpoint, token string) error {
	if err := db.PutSetting(ctx, SettingAPIEndpoint, endpoint); err != nil {
		return err
	}
	return db.PutSetting(ctx, SettingAPIToken, token)
}

// EnableBiometric records a registered credential id and switches biometric
// unlocking on. The credential id is an opaque base64 string; prompting is the
// UI's concern.
func (db *DB) EnableBiometric(ctx context.Context, credentialID string) error {
	if err := db.PutSetting(ctx, SettingBiometricEnabled, true); err != nil {
		return err
	}
	return db.PutSetting(ctx, SettingBiometricCredentialID, credentialID)
}

// DisableBiometric switches biometric unlocking off and nulls the stored
// credential id.
func (db *DB) DisableBiometric(ctx context.Context) error {
	if err := db.PutSetting(ctx, SettingBiometricEnabled, false); err != nil {
		return err
	}
	return db.PutSetting(ctx, SettingBiometricCredentialID, nil)
}

// SetPIN stores a PIN code and enables PIN locking.
func (db *DB) SetPIN(ctx context.Context, code string) error {
	if err := db.PutSetting(ctx, SettingPINEnabled, true); err != nil {
		return err
	}
	return db.PutSetting(ctx, SettingPINCode, code)
}

// DisablePIN switches PIN locking off and nulls the stored code.
func (db *DB) DisablePIN(ctx context.Context) error {
	if err := db.PutSetting(ctx, SettingPINEnabled, false); err != nil {
		return err
	}
	return db.PutSetting(ctx, SettingPINCode, nil)
}

// SetThemePreference stores the theme preference.
func (db *DB) SetThemePreference(ctx context.Context, preference string) error {
	switch preference {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("theme preference must be one of system, light or dark, got %q", preference)
	}
	return db.PutSetting(ctx, SettingThemePreference, preference)
}

// SetAutoLockTimeout stores the auto-lock timeout in minutes; 0 means
// immediate.
func (db *DB) SetAutoLockTimeout(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("auto-lock timeout must not be negative, got %d", minutes)
	}
	return db.PutSetting(ctx, SettingAutoLockTimeout, minutes)
}

// SettingsRow is a raw settings row as stored, used by the snapshot export.
type SettingsRow struct {
	Key   string `db:"key" json:"key"`
	Value string `db:"value" json:"value"`
}
