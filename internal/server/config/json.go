package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ericthayer/devlog/internal/flagx"
)

// JsonConfig is the intermediate DTO used only for reading JSON configuration
// files. Token validity is accepted in minutes. After unmarshalling, present
// fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP            *string `json:"endpoint_addr_http"`
	DatabaseDSN                 *string `json:"database_dsn"`
	SecretKey                   *string `json:"secret_key"`
	AccessTokenValidityDuration *int    `json:"access_token_validity_minutes"`
	GeminiAPIKey                *string `json:"gemini_api_key"`
	DefaultModel                *string `json:"default_model"`
	EnhancedModel               *string `json:"enhanced_model"`
	S3AccessKey                 *string `json:"s3_access_key"`
	S3SecretKey                 *string `json:"s3_secret_key"`
	S3Bucket                    *string `json:"s3_bucket"`
	S3Region                    *string `json:"s3_region"`
	S3BaseEndpoint              *string `json:"s3_base_endpoint"`
	S3PublicBaseURL             *string `json:"s3_public_base_url"`
	CachePath                   *string `json:"cache_path"`
	CORSOrigin                  *string `json:"cors_origin"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flags. Absent flags mean no file is loaded; an unreadable or
// invalid file panics, matching the fail-fast startup contract. Only fields
// present in the file override the current Config.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = time.Duration(*c.AccessTokenValidityDuration) * time.Minute
	}
	setString(&config.GeminiAPIKey, c.GeminiAPIKey)
	setString(&config.DefaultModel, c.DefaultModel)
	setString(&config.EnhancedModel, c.EnhancedModel)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.CachePath, c.CachePath)
	setString(&config.CORSOrigin, c.CORSOrigin)
}
