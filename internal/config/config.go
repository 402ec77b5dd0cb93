package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server   Server   `yaml:"server" env-prefix:"SERVER_"`
	Postgres Postgres `yaml:"postgres" env-prefix:"POSTGRES_"`
	Redis    Redis    `yaml:"redis" env-prefix:"REDIS_"`
	Stripe   Stripe   `yaml:"stripe" env-prefix:"STRIPE_"`
	App      App      `yaml:"app" env-prefix:"APP_"`
}

type Server struct {
	Port int    `yaml:"Port" env:"PORT"`
	Env  string `yaml:"Env" env:"ENV"`
}

type Postgres struct {
	Host     string `yaml:"Host" env:"HOST"`
	Port     int    `yaml:"Port" env:"PORT"`
	SSLMode  string `yaml:"SSLMode" env:"SSL_MODE"`
	DB       string `yaml:"DB" env:"DB"`
	User     string `yaml:"User" env:"USER"`
	Password string `yaml:"Password" env:"PASSWORD"`
}

type Redis struct {
	URL string `yaml:"URL" env:"URL"`
}

type Stripe struct {
	APIKey               string `yaml:"APIKey" env:"API_KEY"`
	WebhookSecret        string `yaml:"WebhookSecret" env:"WEBHOOK_SECRET"`
	ConnectWebhookSecret string `yaml:"ConnectWebhookSecret" env:"CONNECT_WEBHOOK_SECRET"`
	SuccessURL           string `yaml:"SuccessURL" env:"SUCCESS_URL"`
	CancelURL            string `yaml:"CancelURL" env:"CANCEL_URL"`
}

type App struct {
	Currency string `yaml:"Currency" env:"CURRENCY" env-default:"usd"`
}

func LoadConfig() (*Config, error) {
	configPath, exists := os.LookupEnv("CONFIG_PATH")
	if !exists {
		return nil, errors.New("Missing CONFIG_PATH env variable")
	}
	var config Config
	var err error
	if configPath == "environment" {
		err = cleanenv.ReadEnv(&config)
	} else {
		err = cleanenv.ReadConfig(configPath, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("Unable to process config: %v", err)
	}
	return &config, nil
}
