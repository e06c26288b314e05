package backend

import (
	"fmt"

	"expenselog/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type     BackendType
	MirrorTo BackendType

	// Broker is "", "amqp" or "kafka".
	Broker string

	DataDirectory string
	CSVPath       string
	SQLiteDBPath  string
	PostgresDSN   string

	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCategoriesSheet string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:     BackendType(appConfig.DataBackend),
		MirrorTo: BackendType(appConfig.MirrorTo),
		Broker:   appConfig.Broker,

		DataDirectory: appConfig.DataDir,
		CSVPath:       appConfig.CSVPath,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		PostgresDSN:   appConfig.PostgresDSN,

		GoogleSpreadsheetID:   appConfig.GoogleSpreadsheetID,
		GoogleSheetName:       appConfig.GoogleSheetName,
		GoogleCategoriesSheet: appConfig.GoogleCategoriesSheet,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		KafkaBrokers: appConfig.KafkaBrokers,
		KafkaTopic:   appConfig.KafkaTopic,
		KafkaGroupID: appConfig.KafkaGroupID,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s (want one of %v)", c.Type, GetBackendTypeStrings())
	}
	if c.MirrorTo != "" {
		if !c.MirrorTo.IsValid() || c.MirrorTo == MemoryBackend {
			return fmt.Errorf("invalid mirror target: %s", c.MirrorTo)
		}
		if c.MirrorTo == c.Type {
			return fmt.Errorf("mirror target %s must differ from the backend", c.MirrorTo)
		}
	}
	switch c.Broker {
	case "":
	case config.BrokerAMQP, config.BrokerKafka:
		if c.MirrorTo == "" {
			return fmt.Errorf("broker %s requires a mirror target", c.Broker)
		}
	default:
		return fmt.Errorf("invalid broker: %s", c.Broker)
	}

	for _, t := range []BackendType{c.Type, c.MirrorTo} {
		switch t {
		case CSVBackend:
			if c.CSVPath == "" {
				return fmt.Errorf("CSV path is required for csv backend")
			}
		case SQLiteBackend:
			if c.SQLiteDBPath == "" {
				return fmt.Errorf("SQLite database path is required for sqlite backend")
			}
		case PostgresBackend:
			if c.PostgresDSN == "" {
				return fmt.Errorf("Postgres DSN is required for postgres backend")
			}
		case SheetsBackend:
			if c.GoogleSpreadsheetID == "" {
				return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
			}
		}
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, CSVBackend, SheetsBackend, SQLiteBackend, PostgresBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
