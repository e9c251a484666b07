package config

import "github.com/joho/godotenv"

// LoadDotEnv reads .env files into the environment for local development.
// Variables already set in the environment are never overridden.
// A missing file returns an error the caller may ignore.
func LoadDotEnv(paths ...string) error {
	return godotenv.Load(paths...)
}
