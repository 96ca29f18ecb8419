package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophaccount/internal/flagx"
	"github.com/dmitrijs2005/gophaccount/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP                string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC                string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                     string         `json:"database_dsn"`
	DBMaxOpenConns                  int            `json:"db_max_open_conns"`
	DBMaxIdleConns                  int            `json:"db_max_idle_conns"`
	DBConnMaxLifetime               timex.Duration `json:"db_conn_max_lifetime"`
	SecretKey                       string         `json:"secret_key"`
	SessionTokenValidityDuration    timex.Duration `json:"session_token_validity_duration"`
	ActivationTokenValidityDuration timex.Duration `json:"activation_token_validity_duration"`
	TokenSweepInterval              timex.Duration `json:"token_sweep_interval"`
	BcryptCost                      int            `json:"bcrypt_cost"`
	VerificationURL                 string         `json:"verification_url"`
	SMTPHost                        string         `json:"smtp_host"`
	SMTPPort                        int            `json:"smtp_port"`
	SMTPUsername                    string         `json:"smtp_username"`
	SMTPPassword                    string         `json:"smtp_password"`
	SMTPFromName                    string         `json:"smtp_from_name"`
	SMTPFromEmail                   string         `json:"smtp_from_email"`
	SMTPTLS                         bool           `json:"smtp_tls"`
	LogFormat                       string         `json:"log_format"`
	LogLevel                        string         `json:"log_level"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:                c.EndpointAddrHTTP,
		EndpointAddrGRPC:                c.EndpointAddrGRPC,
		DatabaseDSN:                     c.DatabaseDSN,
		DBMaxOpenConns:                  c.DBMaxOpenConns,
		DBMaxIdleConns:                  c.DBMaxIdleConns,
		DBConnMaxLifetime:               timex.Duration{Duration: c.DBConnMaxLifetime},
		SecretKey:                       c.SecretKey,
		SessionTokenValidityDuration:    timex.Duration{Duration: c.SessionTokenValidityDuration},
		ActivationTokenValidityDuration: timex.Duration{Duration: c.ActivationTokenValidityDuration},
		TokenSweepInterval:              timex.Duration{Duration: c.TokenSweepInterval},
		BcryptCost:                      c.BcryptCost,
		VerificationURL:                 c.VerificationURL,
		SMTPHost:                        c.SMTPHost,
		SMTPPort:                        c.SMTPPort,
		SMTPUsername:                    c.SMTPUsername,
		SMTPPassword:                    c.SMTPPassword,
		SMTPFromName:                    c.SMTPFromName,
		SMTPFromEmail:                   c.SMTPFromEmail,
		SMTPTLS:                         c.SMTPTLS,
		LogFormat:                       c.LogFormat,
		LogLevel:                        c.LogLevel,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.EndpointAddrHTTP = j.EndpointAddrHTTP
	c.EndpointAddrGRPC = j.EndpointAddrGRPC
	c.DatabaseDSN = j.DatabaseDSN
	c.DBMaxOpenConns = j.DBMaxOpenConns
	c.DBMaxIdleConns = j.DBMaxIdleConns
	c.DBConnMaxLifetime = j.DBConnMaxLifetime.Duration
	c.SecretKey = j.SecretKey
	c.SessionTokenValidityDuration = j.SessionTokenValidityDuration.Duration
	c.ActivationTokenValidityDuration = j.ActivationTokenValidityDuration.Duration
	c.TokenSweepInterval = j.TokenSweepInterval.Duration
	c.BcryptCost = j.BcryptCost
	c.VerificationURL = j.VerificationURL
	c.SMTPHost = j.SMTPHost
	c.SMTPPort = j.SMTPPort
	c.SMTPUsername = j.SMTPUsername
	c.SMTPPassword = j.SMTPPassword
	c.SMTPFromName = j.SMTPFromName
	c.SMTPFromEmail = j.SMTPFromEmail
	c.SMTPTLS = j.SMTPTLS
	c.LogFormat = j.LogFormat
	c.LogLevel = j.LogLevel
}

// parseJson overlays values from the JSON file named by -c / -config.
// Keys missing from the file keep their current value. Without the flag
// nothing is loaded.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", jsonConfigFile, err)
	}

	c.apply(config)
	return nil
}
