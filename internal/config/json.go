package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type StructuredJSONConfig struct {
	Vault struct {
		DB struct {
			DSN string `json:"path"`
		} `json:"db,omitempty"`
	} `json:"vault,omitempty"`

	Sync struct {
		Interval       Duration `json:"interval"`
		RequestTimeout Duration `json:"request_timeout"`
		PushBatchSize  int      `json:"push_batch_size"`
		BackoffMin     Duration `json:"backoff_min"`
		BackoffMax     Duration `json:"backoff_max"`
	} `json:"sync,omitempty"`

	Retention struct {
		TombstoneDays int `json:"tombstone_days"`
		ChangeLogDays int `json:"change_log_days"`
	} `json:"retention,omitempty"`

	Tables []Table `json:"tables,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Vault: Vault{
			DB: VaultDB{
				DSN: jsonCfg.Vault.DB.DSN,
			},
		},
		Sync: Sync{
			Interval:       time.Duration(jsonCfg.Sync.Interval),
			RequestTimeout: time.Duration(jsonCfg.Sync.RequestTimeout),
			PushBatchSize:  jsonCfg.Sync.PushBatchSize,
			BackoffMin:     time.Duration(jsonCfg.Sync.BackoffMin),
			BackoffMax:     time.Duration(jsonCfg.Sync.BackoffMax),
		},
		Retention: Retention{
			TombstoneDays: jsonCfg.Retention.TombstoneDays,
			ChangeLogDays: jsonCfg.Retention.ChangeLogDays,
		},
		Tables:       jsonCfg.Tables,
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
