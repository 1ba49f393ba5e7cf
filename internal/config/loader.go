package config

import (
	"github.com/ratewatch/ratewatch/internal/db"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration for the wiring binary.
type Config struct {
	Database    db.Config
	ServerAddr  string
	CORSOrigins []string
	LogLevel    string
	Migrations  string
}

// Default returns the configuration used when no file or env override is set.
func Default() Config {
	return Config{
		Database:    db.DefaultConfig(),
		ServerAddr:  ":8080",
		CORSOrigins: []string{"http://localhost:3000"},
		LogLevel:    "info",
		Migrations:  "./migrations",
	}
}

// Load reads config.yaml from configPath, with environment overrides mapped
// like RATEWATCH_DATABASE_HOST. A missing file is fine; defaults apply.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("RATEWATCH")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("log.level")
	v.BindEnv("migrations.path")

	// Missing config.yaml is not an error; defaults plus env apply.
	_ = v.ReadInConfig()

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.ServerAddr = v.GetString("server.addr")
	}
	if v.IsSet("server.cors_origins") {
		cfg.CORSOrigins = v.GetStringSlice("server.cors_origins")
	}
	if v.IsSet("log.level") {
		cfg.LogLevel = v.GetString("log.level")
	}
	if v.IsSet("migrations.path") {
		cfg.Migrations = v.GetString("migrations.path")
	}

	return cfg, nil
}
