package db

// tests for the settings key-value store

import (
	"context"
	"testing"
)

func Test_SettingPutGetUpsert(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	var out string
	found, err := testDB.GetSetting(ctx, "missing", &out)
	if err != nil {
		t.Fatalf("unexpected setting retrieval error: %v", err)
	}
	if found {
		t.Error("missing setting should not be found")
	}

	if err := testDB.PutSetting(ctx, SettingThemePreference, "dark"); err != nil {
		t.Fatalf("unexpected setting put error: %v", err)
	}
	found, err = testDB.GetSetting(ctx, SettingThemePreference, &out)
	if err != nil {
		t.Fatalf("unexpected setting retrieval error: %v", err)
	}
	if !found || out != "dark" {
		t.Errorf("setting got (%v, %q) want (true, %q)", found, out, "dark")
	}

	// a second put overwrites.
	if err := testDB.PutSetting(ctx, SettingThemePreference, "light"); err != nil {
		t.Fatalf("unexpected setting put error: %v", err)
	}
	if _, err := testDB.GetSetting(ctx, SettingThemePreference, &out); err != nil {
		t.Fatalf("unexpected setting retrieval error: %v", err)
	}
	if got, want := out, "light"; got != want {
		t.Errorf("overwritten setting got %q want %q", got, want)
	}
}

func Test_APISettings(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	if err := testDB.SaveAPISettings(ctx, "https://example.com/api", "sekrit"); err != nil {
		t.Fatalf("unexpected api settings error: %v", err)
	}
	endpoint, err := testDB.SettingString(ctx, SettingAPIEndpoint)
	if err != nil {
		t.Fatalf("unexpected setting retrieval error: %v", err)
	}
	if got, want := endpoint, "https://example.com/api"; got != want {
		t.Errorf("endpoint got %q want %q", got, want)
	}
	token, err := testDB.SettingString(ctx, SettingAPIToken)
	if err != nil {
		t.Fatalf("unexpected setting retrieval error: %v", err)
	}
	if got, want := token, "sekrit"; got != want {
		t.Errorf("token got %q want %q", got, want)
	}
}

func Test_BiometricAndPINResets(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	if err := testDB.EnableBiometric(ctx, "Y3JlZGVudGlhbA=="); err != nil {
		t.Fatalf("unexpected biometric enable error: %v", err)
	}
	var enabled bool
	if _, err := testDB.GetSetting(ctx, SettingBiometricEnabled, &enabled); err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Error("biometric should be enabled")
	}

	// disabling nulls the stored credential id.
	if err := testDB.DisableBiometric(ctx); err != nil {
		t.Fatalf("unexpected biometric disable error: %v", err)
	}
	credential, err := testDB.SettingString(ctx, SettingBiometricCredentialID)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := credential, ""; got != want {
		t.Errorf("credential after disable got %q want %q", got, want)
	}

	if err := testDB.SetPIN(ctx, "4321"); err != nil {
		t.Fatalf("unexpected pin set error: %v", err)
	}
	if err := testDB.DisablePIN(ctx); err != nil {
		t.Fatalf("unexpected pin disable error: %v", err)
	}
	code, err := testDB.SettingString(ctx, SettingPINCode)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := code, ""; got != want {
		t.Errorf("pin code after disable got %q want %q", got, want)
	}
}

func Test_SettingValidation(t *testing.T) {

	testDB, closeDB := setupTestDB(t)
	t.Cleanup(closeDB)
	ctx := context.Background()

	if err := testDB.SetThemePreference(ctx, "solarized"); err == nil {
		t.Error("expected an error for an unknown theme preference")
	}
	if err := testDB.SetAutoLockTimeout(ctx, -1); err == nil {
		t.Error("expected an error for a negative auto-lock timeout")
	}
	if err := testDB.SetAutoLockTimeout(ctx, 0); err != nil {
		t.Errorf("zero auto-lock timeout should be allowed: %v", err)
	}
}
