package db

import (
	"fmt"
	"log/slog"
)

// DBConfigFromYamlObj builds the connection config from the yaml section of a service config.
// Credentials must already be merged in from the environment.
func DBConfigFromYamlObj(yamlObj DBConfigYaml, instanceIDs []string) DBConfig {
	if yamlObj.ConnectionStr == "" || yamlObj.Username == "" || yamlObj.Password == "" {
		slog.Error("couldn't read DB credentials", slog.String("connectionStr", yamlObj.ConnectionStr))
		panic("couldn't read DB credentials")
	}
	URI := fmt.Sprintf(`mongodb%s://%s:%s@%s`, yamlObj.ConnectionPrefix, yamlObj.Username, yamlObj.Password, yamlObj.ConnectionStr)

	if yamlObj.Timeout <= 0 {
		slog.Error("DB config timeout must be positive", slog.Int("timeout", yamlObj.Timeout))
		panic("invalid DB timeout")
	}

	maxPoolSize := uint64(0)
	if yamlObj.MaxPoolSize > 0 {
		maxPoolSize = uint64(yamlObj.MaxPoolSize)
	}

	return DBConfig{
		URI:              URI,
		AppName:          yamlObj.AppName,
		Timeout:          yamlObj.Timeout,
		IdleConnTimeout:  yamlObj.IdleConnTimeout,
		MaxPoolSize:      maxPoolSize,
		NoCursorTimeout:  yamlObj.UseNoCursorTimeout,
		DBNamePrefix:     yamlObj.DBNamePrefix,
		InstanceIDs:      instanceIDs,
		RunIndexCreation: yamlObj.RunIndexCreation,
	}
}
