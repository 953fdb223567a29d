package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

type MongoConfig struct {
	Uri                    string `json:"uri" env:"MEDSYSTEM_MONGO_URI"`
	Database               string `json:"database" env:"MEDSYSTEM_MONGO_DATABASE"`
	MessagesCollection     string `json:"messagesCollection" env:"MEDSYSTEM_MESSAGES_COLLECTION" envDefault:"messages"`
	UsersCollection        string `json:"usersCollection" env:"MEDSYSTEM_USERS_COLLECTION" envDefault:"users"`
	GroupsCollection       string `json:"groupsCollection" env:"MEDSYSTEM_GROUPS_COLLECTION" envDefault:"groups"`
	AppointmentsCollection string `json:"appointmentsCollection" env:"MEDSYSTEM_APPOINTMENTS_COLLECTION" envDefault:"appointments"`
	SocketRoute            string `json:"socketRoute" env:"MEDSYSTEM_SOCKET_ROUTE" envDefault:"ws"`
}

type ServerConfig struct {
	AppPort    int `json:"app_port" env:"MEDSYSTEM_APP_PORT" envDefault:"8080"`
	SocketPort int `json:"socket_port" env:"MEDSYSTEM_SOCKET_PORT" envDefault:"8081"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" env:"MEDSYSTEM_JWT_SECRET"`
}

type Config struct {
	Mongo  MongoConfig  `json:"mongo"`
	Server ServerConfig `json:"server"`
	Auth   AuthConfig   `json:"auth"`
}

// LoadConfig reads the JSON config file, then overlays environment
// variables so deployments can override without editing the file. A
// missing file is fine when the environment carries everything.
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	file, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only configuration
	default:
		return nil, err
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if config.Mongo.Uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if config.Mongo.Database == "" {
		return nil, errors.New("mongo database is required")
	}
	if config.Auth.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}

	return &config, nil
}
