package config

import (
	"os"

	"github.com/inercia/spaceclient/internal/secrets"
)

// TokenEnv is read when no --token flag is given.
const TokenEnv = "HF_TOKEN"

// TokenSource tells where a token came from.
type TokenSource string

const (
	TokenFromFlag     TokenSource = "flag"
	TokenFromEnv      TokenSource = "env"
	TokenFromKeychain TokenSource = "keychain"
	TokenFromSettings TokenSource = "settings"
	TokenNone         TokenSource = "none"
)

// ResolveToken picks the token by precedence: flag, environment,
// keychain, settings file.
func (s *Settings) ResolveToken(flag string) (string, TokenSource) {
	if flag != "" {
		return flag, TokenFromFlag
	}
	if env := os.Getenv(TokenEnv); env != "" {
		return env, TokenFromEnv
	}
	if tok, err := secrets.GetToken(s.HubURL); err == nil && tok != "" {
		return tok, TokenFromKeychain
	}
	if s.Token != "" {
		return s.Token, TokenFromSettings
	}
	return "", TokenNone
}
