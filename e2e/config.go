package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_SERVER_URL is the websocket base url of a running relay, the suite is skipped when empty
	ServerURL  string `envconfig:"E2E_SERVER_URL"`
	HealthAddr string `envconfig:"E2E_HEALTH_ADDR" default:"localhost:8001"`
	// E2E_SECRET_KEY must match the SECRET_KEY of the relay
	SecretKey  string `envconfig:"E2E_SECRET_KEY"`
	SenderID   int64  `envconfig:"E2E_SENDER_ID" default:"1"`
	ReceiverID int64  `envconfig:"E2E_RECEIVER_ID" default:"2"`
	// E2E_DEBUG_JSON dumps every frame exchanged
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
