package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garyburd/go-oauth/oauth"
	"go.uber.org/zap"
)

const (
	// DefaultOAuthBaseURL hosts the OAuth 1.0a endpoints.
	DefaultOAuthBaseURL = "https://api.twitter.com"

	temporaryCredentialPath   = "/oauth/request_token"
	authorizationPath         = "/oauth/authorize"
	tokenRequestPath          = "/oauth/access_token"
	outOfBandCallback         = "oob"
	responseFieldUserID       = "user_id"
	responseFieldScreenName   = "screen_name"
	defaultLoginHTTPTimeout   = 30 * time.Second
	errMessageMissingConsumer = "consumer key and secret are required"
	errMessageNilPINProvider  = "pin provider is nil"
	requestTemporaryErrFormat = "request temporary credentials: %w"
	readPINErrFormat          = "read pin: %w"
	requestTokenErrFormat     = "exchange pin for access token: %w"
	logMessageAwaitingPIN     = "waiting for authorization pin"
	logMessageLoggedIn        = "login successful"
	logFieldScreenName        = "screen_name"
)

var (
	errMissingConsumer = errors.New(errMessageMissingConsumer)
	errNilPINProvider  = errors.New(errMessageNilPINProvider)
)

// LoginConfig configures the PIN-based OAuth exchange.
type LoginConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	OAuthBaseURL   string
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Session holds the user-context credentials for one run.
type Session struct {
	AccessToken       string
	AccessTokenSecret string
	UserID            string
	ScreenName        string
}

// Login runs the out-of-band OAuth 1.0a flow: it requests temporary
// credentials, asks pinProvider for the PIN shown after authorization and
// exchanges it for an access token.
func Login(ctx context.Context, configuration LoginConfig, pinProvider PINProvider) (Session, error) {
	if strings.TrimSpace(configuration.ConsumerKey) == "" || strings.TrimSpace(configuration.ConsumerSecret) == "" {
		return Session{}, errMissingConsumer
	}
	if pinProvider == nil {
		return Session{}, errNilPINProvider
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultLoginHTTPTimeout}
	}
	oauthClient := newOAuthClient(configuration)

	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	temporaryCredentials, err := oauthClient.RequestTemporaryCredentials(httpClient, outOfBandCallback, nil)
	if err != nil {
		return Session{}, fmt.Errorf(requestTemporaryErrFormat, err)
	}

	logger.Info(logMessageAwaitingPIN)
	verifier, err := pinProvider.PIN(ctx, oauthClient.AuthorizationURL(temporaryCredentials, nil))
	if err != nil {
		return Session{}, fmt.Errorf(readPINErrFormat, err)
	}

	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	tokenCredentials, values, err := oauthClient.RequestToken(httpClient, temporaryCredentials, verifier)
	if err != nil {
		return Session{}, fmt.Errorf(requestTokenErrFormat, err)
	}

	session := Session{
		AccessToken:       tokenCredentials.Token,
		AccessTokenSecret: tokenCredentials.Secret,
		UserID:            values.Get(responseFieldUserID),
		ScreenName:        values.Get(responseFieldScreenName),
	}
	logger.Info(logMessageLoggedIn, zap.String(logFieldScreenName, session.ScreenName))
	return session, nil
}

func newOAuthClient(configuration LoginConfig) oauth.Client {
	baseURL := strings.TrimRight(strings.TrimSpace(configuration.OAuthBaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOAuthBaseURL
	}
	return oauth.Client{
		Credentials:                   oauth.Credentials{Token: configuration.ConsumerKey, Secret: configuration.ConsumerSecret},
		TemporaryCredentialRequestURI: baseURL + temporaryCredentialPath,
		ResourceOwnerAuthorizationURI: baseURL + authorizationPath,
		TokenRequestURI:               baseURL + tokenRequestPath,
	}
}
