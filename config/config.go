package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the application needs at startup. It is built once
// in Load and handed to the components that need it; nothing reads viper
// after startup.
type Config struct {
	Host        string
	Port        string
	DBPath      string
	UploadDir   string
	FrontendURL string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURI  string
	SpotifyScopes       []string
}

// Load initializes the configuration with viper
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it. Using default values and environment variables.")
	}

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("db.path", "./data/rewind.db")
	viper.SetDefault("upload.dir", "./data/uploads")
	viper.SetDefault("frontend.url", "http://localhost:5173")

	viper.SetDefault("spotify.redirect_uri", "http://localhost:8080/api/auth/spotify/callback")
	viper.SetDefault("spotify.scopes", "playlist-modify-private user-read-email user-read-private")

	viper.AutomaticEnv()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %v", err)
		}
		log.Println("Config file not found, using default values and environment variables")
	} else {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}

	requiredVars := []string{"spotify.client_id", "spotify.client_secret"}
	missingVars := []string{}

	for _, v := range requiredVars {
		if !viper.IsSet(v) {
			missingVars = append(missingVars, v)
		}
	}

	if len(missingVars) > 0 {
		log.Fatalf("Required configuration variables not set: %s", strings.Join(missingVars, ", "))
	}

	return &Config{
		Host:                viper.GetString("server.host"),
		Port:                viper.GetString("server.port"),
		DBPath:              viper.GetString("db.path"),
		UploadDir:           viper.GetString("upload.dir"),
		FrontendURL:         viper.GetString("frontend.url"),
		SpotifyClientID:     viper.GetString("spotify.client_id"),
		SpotifyClientSecret: viper.GetString("spotify.client_secret"),
		SpotifyRedirectURI:  viper.GetString("spotify.redirect_uri"),
		SpotifyScopes:       strings.Fields(viper.GetString("spotify.scopes")),
	}
}
