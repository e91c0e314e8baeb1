// Package e2e drives a running bizlink server over its three surfaces.
// The suites skip themselves unless E2E_HTTP_ADDR is set.
package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_HTTP_ADDR is the base URL of the HTTP server, e.g. http://localhost:8080
	HTTPAddr string `envconfig:"E2E_HTTP_ADDR"`
	GRPCAddr string `envconfig:"E2E_GRPC_ADDR" default:"localhost:9090"`
	// JWT_SECRET must match the server's to mint tokens for seeded users
	JWTSecret  string `envconfig:"JWT_SECRET"`
	CustomerID string `envconfig:"E2E_CUSTOMER_ID" default:"customer-1"`
	OwnerID    string `envconfig:"E2E_OWNER_ID" default:"owner-1"`
	BusinessID string `envconfig:"E2E_BUSINESS_ID" default:"business-1"`
	// E2E_DEBUG_JSON allows dumping full gRPC request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
