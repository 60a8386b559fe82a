package config

import (
	"log"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort   string `mapstructure:"SERVER_PORT"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	ClientOrigin string `mapstructure:"CLIENT_ORIGIN"`

	// MapsAPIKey is the system-wide distance-provider key. Organizations may
	// override it per-org; this is the fallback when no override exists.
	MapsAPIKey string `mapstructure:"MAPS_API_KEY"`

	// GeofenceRadiusMeters bounds how far from a pool a carer may report
	// arrival. Zero or negative values fall back to the 100 m default.
	GeofenceRadiusMeters float64 `mapstructure:"GEOFENCE_ARRIVAL_RADIUS_METERS"`

	EmailSender        string `mapstructure:"EMAIL_SENDER"`
	AWSRegion          string `mapstructure:"AWS_REGION"`
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	StripeAPIKey string
}

// DefaultGeofenceRadiusMeters applies when no override is configured.
const DefaultGeofenceRadiusMeters = 100.0

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv() // Read in environment variables that match

	err := viper.ReadInConfig()
	if err != nil {
		// Allow a missing .env file; everything can come from the environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No .env file found.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")

	if cfg.GeofenceRadiusMeters <= 0 {
		cfg.GeofenceRadiusMeters = DefaultGeofenceRadiusMeters
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	return &cfg, nil
}
