// Package config loads API credentials from the environment and an optional dotenv file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	// DefaultEnvFile is read when present and silently skipped otherwise.
	DefaultEnvFile = ".env"

	KeyConsumerKey       = "TWITTER_API_KEY"
	KeyConsumerSecret    = "TWITTER_API_SECRET"
	KeyBearerToken       = "TWITTER_BEARER_TOKEN"
	KeyAccessToken       = "TWITTER_ACCESS_TOKEN"
	KeyAccessTokenSecret = "TWITTER_ACCESS_TOKEN_SECRET"

	envConfigType                = "env"
	errMessageMissingKeys        = "missing required configuration"
	errMessagePartialAccessToken = "access token and access token secret must be set together"
	errMessageNilSource          = "configuration source is nil"
	readEnvFileErrorFormat       = "read env file %s: %w"
	missingKeysErrorFormat       = "%s: %s"
	logMessageEnvFileLoaded      = "env file loaded"
	logMessageEnvFileSkipped     = "env file not found, using environment only"
	logMessageNoBearerToken      = "no bearer token configured, interaction queries use user context"
	logFieldPath                 = "path"
)

var (
	// ErrPartialAccessToken reports an access token configured without its secret or the reverse.
	ErrPartialAccessToken = errors.New(errMessagePartialAccessToken)
	// ErrMissingKeys is matched by MissingKeysError.
	ErrMissingKeys = errors.New(errMessageMissingKeys)

	errNilSource = errors.New(errMessageNilSource)
)

// MissingKeysError lists the required keys that resolved to empty values.
type MissingKeysError struct {
	Keys []string
}

func (err *MissingKeysError) Error() string {
	return fmt.Sprintf(missingKeysErrorFormat, errMessageMissingKeys, strings.Join(err.Keys, ", "))
}

func (err *MissingKeysError) Unwrap() error {
	return ErrMissingKeys
}

// Config holds the credentials for one run.
type Config struct {
	ConsumerKey       string
	ConsumerSecret    string
	BearerToken       string
	AccessToken       string
	AccessTokenSecret string
}

// HasUserTokens reports whether a pre-provisioned access token is available,
// in which case the PIN login is skipped.
func (configuration Config) HasUserTokens() bool {
	return configuration.AccessToken != "" && configuration.AccessTokenSecret != ""
}

// Options controls where Load reads from.
type Options struct {
	// EnvFile names the dotenv file. Empty means DefaultEnvFile.
	EnvFile string
	// EnvFileRequired turns a missing EnvFile into an error.
	EnvFileRequired bool
	Logger          *zap.Logger
}

// Load reads credentials from source. Environment variables take precedence
// over the dotenv file.
func Load(source *viper.Viper, options Options) (Config, error) {
	if source == nil {
		return Config{}, errNilSource
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	envFile := strings.TrimSpace(options.EnvFile)
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	source.SetConfigFile(envFile)
	source.SetConfigType(envConfigType)
	if err := source.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || options.EnvFileRequired {
			return Config{}, fmt.Errorf(readEnvFileErrorFormat, envFile, err)
		}
		logger.Debug(logMessageEnvFileSkipped, zap.String(logFieldPath, envFile))
	} else {
		logger.Debug(logMessageEnvFileLoaded, zap.String(logFieldPath, envFile))
	}
	source.AutomaticEnv()

	configuration := Config{
		ConsumerKey:       lookup(source, KeyConsumerKey),
		ConsumerSecret:    lookup(source, KeyConsumerSecret),
		BearerToken:       lookup(source, KeyBearerToken),
		AccessToken:       lookup(source, KeyAccessToken),
		AccessTokenSecret: lookup(source, KeyAccessTokenSecret),
	}
	if err := configuration.Validate(); err != nil {
		return Config{}, err
	}
	if configuration.BearerToken == "" {
		logger.Warn(logMessageNoBearerToken)
	}
	return configuration, nil
}

// Validate checks required keys and token pairing.
func (configuration Config) Validate() error {
	requiredValues := map[string]string{
		KeyConsumerKey:    configuration.ConsumerKey,
		KeyConsumerSecret: configuration.ConsumerSecret,
	}
	var missingKeys []string
	for key, value := range requiredValues {
		if value == "" {
			missingKeys = append(missingKeys, key)
		}
	}
	if len(missingKeys) > 0 {
		sort.Strings(missingKeys)
		return &MissingKeysError{Keys: missingKeys}
	}
	if (configuration.AccessToken == "") != (configuration.AccessTokenSecret == "") {
		return ErrPartialAccessToken
	}
	return nil
}

func lookup(source *viper.Viper, key string) string {
	return strings.TrimSpace(source.GetString(key))
}
