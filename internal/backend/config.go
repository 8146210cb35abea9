package backend

import (
	"errors"
	"fmt"

	"spesesync/internal/config"
	"spesesync/internal/remote/sheets"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		KV:            KVType(appConfig.QueueBackend),
		KVPath:        appConfig.QueueDBPath,
		BadgerDir:     appConfig.QueueBadgerDir,
		Remote:        RemoteType(appConfig.RemoteBackend),
		RemoteURL:     appConfig.RemoteURL,
		RemoteTimeout: appConfig.RemoteTimeout,
		Sheets: sheets.Config{
			SpreadsheetID:      appConfig.GoogleSpreadsheetID,
			SheetName:          appConfig.GoogleSheetName,
			ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
			ServiceAccountFile: appConfig.GoogleServiceAccountFile,
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !c.KV.IsValid() {
		return fmt.Errorf("invalid kv backend: %s", c.KV)
	}
	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote backend: %s", c.Remote)
	}

	switch c.KV {
	case KVSQLite:
		if c.KVPath == "" {
			return errors.New("database path is required for sqlite kv backend")
		}
	case KVBadger:
		if c.BadgerDir == "" {
			return errors.New("directory is required for badger kv backend")
		}
	}

	switch c.Remote {
	case RemoteHTTP:
		if c.RemoteURL == "" {
			return errors.New("remote URL is required for http remote backend")
		}
	case RemoteSheets:
		if c.Sheets.SpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets remote backend")
		}
		if c.Sheets.ServiceAccountJSON == "" && c.Sheets.ServiceAccountFile == "" {
			return errors.New("service account credentials are required for sheets remote backend")
		}
	}
	return nil
}

// KVTypes returns every valid kv backend.
func KVTypes() []KVType {
	return []KVType{KVSQLite, KVBadger, KVMemory}
}

// RemoteTypes returns every valid remote backend.
func RemoteTypes() []RemoteType {
	return []RemoteType{RemoteHTTP, RemoteSheets, RemoteMemory}
}
