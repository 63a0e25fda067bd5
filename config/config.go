// Package config holds the application configuration loaded by go-config
// from config/app.json, the environment, and optional local overrides.
package config

import (
	"fmt"
	"time"
)

type AppConfig struct {
	Server      Server      `json:"server" yaml:"server"`
	Auth        Auth        `json:"auth" yaml:"auth"`
	Persistence Persistence `json:"persistence" yaml:"persistence"`
}

type Server struct {
	Name        string `json:"name" yaml:"name"`
	Address     string `json:"address" yaml:"address"`
	Environment string `json:"environment" yaml:"environment"`
	Debug       bool   `json:"debug" yaml:"debug"`
}

type Auth struct {
	SigningKey            string   `json:"signing_key" yaml:"signing_key"`
	TokenExpirationHours  int      `json:"token_expiration_hours" yaml:"token_expiration_hours"`
	Issuer                string   `json:"issuer" yaml:"issuer"`
	Audience              []string `json:"audience" yaml:"audience"`
	StatusWaitExpression  string   `json:"status_wait" yaml:"status_wait"`
	EnforceStatus         bool     `json:"enforce_status" yaml:"enforce_status"`
	SecureCookies         bool     `json:"secure_cookies" yaml:"secure_cookies"`
	DefaultPhoneRegion    string   `json:"default_phone_region" yaml:"default_phone_region"`
	ExternalJWKSetURLs    []string `json:"external_jwk_set_urls" yaml:"external_jwk_set_urls"`
}

type Persistence struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

func (a AppConfig) Validate() error {
	if a.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}

	if a.Persistence.DSN == "" {
		return fmt.Errorf("persistence.dsn is required")
	}

	return nil
}

func (a AppConfig) GetAuth() Auth {
	return a.Auth
}

func (a AppConfig) GetServer() Server {
	return a.Server
}

func (a AppConfig) GetPersistence() Persistence {
	return a.Persistence
}

func (s Server) GetAddress() string {
	if s.Address == "" {
		return ":8080"
	}
	return s.Address
}

func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Auth getters satisfy the auth package Config interface.

func (a Auth) GetSigningKey() string {
	return a.SigningKey
}

func (a Auth) GetTokenExpiration() int {
	return a.TokenExpirationHours
}

func (a Auth) GetIssuer() string {
	if a.Issuer == "" {
		return "gymgate"
	}
	return a.Issuer
}

func (a Auth) GetAudience() []string {
	return a.Audience
}

func (a Auth) GetStatusWait() time.Duration {
	if a.StatusWaitExpression == "" {
		return 25 * time.Second
	}

	dur, err := time.ParseDuration(a.StatusWaitExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", a.StatusWaitExpression),
		)
	}
	return dur
}

func (a Auth) GetDefaultPhoneRegion() string {
	if a.DefaultPhoneRegion == "" {
		return "US"
	}
	return a.DefaultPhoneRegion
}

func (p Persistence) GetDSN() string {
	return p.DSN
}
