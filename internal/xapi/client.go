package xapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/garyburd/go-oauth/oauth"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// DefaultAPIBaseURL is the X API host serving both the v2 and v1.1 endpoints.
	DefaultAPIBaseURL = "https://api.twitter.com"

	authorizationHeaderName      = "Authorization"
	contentTypeHeaderName        = "Content-Type"
	userAgentHeaderName          = "User-Agent"
	bearerAuthorizationPrefix    = "Bearer "
	jsonContentType              = "application/json"
	formContentType              = "application/x-www-form-urlencoded"
	defaultUserAgentValue        = "tweeblock/1.0"
	defaultHTTPTimeout           = 30 * time.Second
	defaultDialTimeout           = 5 * time.Second
	defaultTLSHandshakeTimeout   = 5 * time.Second
	defaultResponseHeaderTimeout = 20 * time.Second
	defaultMaxRateLimitWaits     = 15
	maxLoggedBodyBytes           = 512

	errMessageRateLimited        = "rate limited"
	errMessageMissingConsumer    = "consumer key and secret are required"
	errMessageMissingCredentials = "no credentials available for request"
	errMessageInvalidJSON        = "response is not valid JSON"
	errMessageRateLimitExhausted = "rate limit waits exhausted"
	apiErrorFormat               = "%s %s: status %d"
	apiErrorDetailFormat         = "%s: %s"
	parseBaseURLErrorFormat      = "parse api base url: %w"
	buildRequestErrorFormat      = "build %s %s: %w"
	signRequestErrorFormat       = "sign %s %s: %w"
	sendRequestErrorFormat       = "%s %s: %w"
	readResponseErrorFormat      = "read %s %s response: %w"
	invalidJSONErrorFormat       = "%s %s: %s"
	exhaustedErrorFormat         = "%s %s: %s after %d waits: %w"

	logMessageRateLimitWait = "rate limited, waiting for reset"
	logMessageRequest       = "api request"
	logMessageResponse      = "api response"
	logFieldMethod          = "method"
	logFieldEndpoint        = "endpoint"
	logFieldStatus          = "status"
	logFieldWait            = "wait"
	logFieldAttempt         = "attempt"
	logFieldBody            = "body"
)

var (
	// ErrRateLimited is matched by every APIError carrying HTTP 429.
	ErrRateLimited = errors.New(errMessageRateLimited)

	errMissingConsumer    = errors.New(errMessageMissingConsumer)
	errMissingCredentials = errors.New(errMessageMissingCredentials)
)

// AuthMode selects how a request is authenticated.
type AuthMode int

const (
	// UserContext signs the request with OAuth 1.0a on behalf of the acting account.
	UserContext AuthMode = iota
	// AppContext authenticates with the application bearer token and falls back
	// to UserContext when no bearer token is configured.
	AppContext
)

// APIError describes a non-successful API response.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Title      string
	Detail     string
}

func (apiError *APIError) Error() string {
	message := fmt.Sprintf(apiErrorFormat, apiError.Method, apiError.Endpoint, apiError.StatusCode)
	detail := strings.TrimSpace(strings.Join(nonEmpty(apiError.Title, apiError.Detail), " "))
	if detail == "" {
		return message
	}
	return fmt.Sprintf(apiErrorDetailFormat, message, detail)
}

// Is matches ErrRateLimited for HTTP 429 responses.
func (apiError *APIError) Is(target error) bool {
	return target == ErrRateLimited && apiError.StatusCode == http.StatusTooManyRequests
}

// Config customizes a Client.
type Config struct {
	APIBaseURL        string
	HTTPClient        *http.Client
	ConsumerKey       string
	ConsumerSecret    string
	BearerToken       string
	AccessToken       string
	AccessTokenSecret string
	Logger            *zap.Logger
	// MaxRateLimitWaits bounds how often one request sleeps for a rate-limit reset.
	MaxRateLimitWaits int
	// Sleep waits for the rate-limit reset; tests replace it.
	Sleep func(ctx context.Context, duration time.Duration) error
	Now   func() time.Time
}

// Client issues authenticated requests against the X API.
type Client struct {
	httpClient        *http.Client
	baseURL           *url.URL
	oauthClient       oauth.Client
	userCredentials   *oauth.Credentials
	bearerToken       string
	logger            *zap.Logger
	maxRateLimitWaits int
	sleep             func(ctx context.Context, duration time.Duration) error
	now               func() time.Time
}

// NewClient constructs a Client from configuration values.
func NewClient(configuration Config) (*Client, error) {
	if strings.TrimSpace(configuration.ConsumerKey) == "" || strings.TrimSpace(configuration.ConsumerSecret) == "" {
		return nil, errMissingConsumer
	}
	baseURLString := strings.TrimSpace(configuration.APIBaseURL)
	if baseURLString == "" {
		baseURLString = DefaultAPIBaseURL
	}
	parsedBaseURL, err := url.Parse(strings.TrimRight(baseURLString, "/"))
	if err != nil {
		return nil, fmt.Errorf(parseBaseURLErrorFormat, err)
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient()
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxRateLimitWaits := configuration.MaxRateLimitWaits
	if maxRateLimitWaits <= 0 {
		maxRateLimitWaits = defaultMaxRateLimitWaits
	}
	sleep := configuration.Sleep
	if sleep == nil {
		sleep = WaitForDuration
	}
	now := configuration.Now
	if now == nil {
		now = time.Now
	}

	client := &Client{
		httpClient:        httpClient,
		baseURL:           parsedBaseURL,
		oauthClient:       oauth.Client{Credentials: oauth.Credentials{Token: configuration.ConsumerKey, Secret: configuration.ConsumerSecret}},
		bearerToken:       strings.TrimSpace(configuration.BearerToken),
		logger:            logger,
		maxRateLimitWaits: maxRateLimitWaits,
		sleep:             sleep,
		now:               now,
	}
	if configuration.AccessToken != "" && configuration.AccessTokenSecret != "" {
		client.userCredentials = &oauth.Credentials{Token: configuration.AccessToken, Secret: configuration.AccessTokenSecret}
	}
	return client, nil
}

type apiRequest struct {
	method          string
	path            string
	query           url.Values
	form            url.Values
	jsonBody        []byte
	auth            AuthMode
	waitOnRateLimit bool
}

// do executes request and returns the parsed JSON body of a 2xx response.
// HTTP 429 sleeps until the advertised reset and repeats the request when
// waitOnRateLimit is set; every other failure is returned as is.
func (client *Client) do(ctx context.Context, request apiRequest) (gjson.Result, error) {
	requestURL := client.endpointURL(request.path, request.query)
	for waitCount := 0; ; waitCount++ {
		httpRequest, err := client.buildRequest(ctx, request, requestURL)
		if err != nil {
			return gjson.Result{}, err
		}
		client.logger.Debug(logMessageRequest, zap.String(logFieldMethod, request.method), zap.String(logFieldEndpoint, request.path))

		httpResponse, err := client.httpClient.Do(httpRequest)
		if err != nil {
			return gjson.Result{}, fmt.Errorf(sendRequestErrorFormat, request.method, request.path, err)
		}
		body, readErr := io.ReadAll(httpResponse.Body)
		httpResponse.Body.Close()
		if readErr != nil {
			return gjson.Result{}, fmt.Errorf(readResponseErrorFormat, request.method, request.path, readErr)
		}
		client.logger.Debug(logMessageResponse,
			zap.String(logFieldEndpoint, request.path),
			zap.Int(logFieldStatus, httpResponse.StatusCode),
			zap.String(logFieldBody, truncateForLog(body, maxLoggedBodyBytes)),
		)

		if httpResponse.StatusCode/100 == 2 {
			if len(bytes.TrimSpace(body)) == 0 {
				return gjson.Result{}, nil
			}
			if !gjson.ValidBytes(body) {
				return gjson.Result{}, fmt.Errorf(invalidJSONErrorFormat, request.method, request.path, errMessageInvalidJSON)
			}
			return gjson.ParseBytes(body), nil
		}

		apiError := newAPIError(request.method, request.path, httpResponse.StatusCode, body)
		if httpResponse.StatusCode != http.StatusTooManyRequests || !request.waitOnRateLimit {
			return gjson.Result{}, apiError
		}
		if waitCount >= client.maxRateLimitWaits {
			return gjson.Result{}, fmt.Errorf(exhaustedErrorFormat, request.method, request.path, errMessageRateLimitExhausted, waitCount, apiError)
		}

		waitDuration := rateLimitWait(httpResponse.Header, client.now())
		client.logger.Warn(logMessageRateLimitWait,
			zap.String(logFieldEndpoint, request.path),
			zap.Duration(logFieldWait, waitDuration),
			zap.Int(logFieldAttempt, waitCount+1),
		)
		if err := client.sleep(ctx, waitDuration); err != nil {
			return gjson.Result{}, err
		}
	}
}

func (client *Client) buildRequest(ctx context.Context, request apiRequest, requestURL *url.URL) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	switch {
	case request.jsonBody != nil:
		body = bytes.NewReader(request.jsonBody)
		contentType = jsonContentType
	case request.form != nil:
		body = strings.NewReader(request.form.Encode())
		contentType = formContentType
	}

	httpRequest, err := http.NewRequestWithContext(ctx, request.method, requestURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf(buildRequestErrorFormat, request.method, request.path, err)
	}
	httpRequest.Header.Set(userAgentHeaderName, defaultUserAgentValue)
	if contentType != "" {
		httpRequest.Header.Set(contentTypeHeaderName, contentType)
	}

	if request.auth == AppContext && client.bearerToken != "" {
		httpRequest.Header.Set(authorizationHeaderName, bearerAuthorizationPrefix+client.bearerToken)
		return httpRequest, nil
	}
	if client.userCredentials == nil {
		return nil, fmt.Errorf(signRequestErrorFormat, request.method, request.path, errMissingCredentials)
	}
	if err := client.oauthClient.SetAuthorizationHeader(httpRequest.Header, client.userCredentials, request.method, requestURL, request.form); err != nil {
		return nil, fmt.Errorf(signRequestErrorFormat, request.method, request.path, err)
	}
	return httpRequest, nil
}

func (client *Client) endpointURL(path string, query url.Values) *url.URL {
	endpoint := *client.baseURL
	endpoint.Path = strings.TrimRight(client.baseURL.Path, "/") + path
	endpoint.RawQuery = ""
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return &endpoint
}

func newAPIError(method string, path string, statusCode int, body []byte) *APIError {
	apiError := &APIError{Method: method, Endpoint: path, StatusCode: statusCode}
	if !gjson.ValidBytes(body) {
		apiError.Detail = truncateForLog(body, maxLoggedBodyBytes)
		return apiError
	}
	parsed := gjson.ParseBytes(body)
	apiError.Title = parsed.Get("title").String()
	apiError.Detail = parsed.Get("detail").String()
	if apiError.Detail == "" {
		apiError.Detail = parsed.Get("errors.0.message").String()
	}
	if apiError.Detail == "" {
		apiError.Detail = parsed.Get("errors.0.detail").String()
	}
	return apiError
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultHTTPTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          10,
			ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		},
	}
}

func truncateForLog(body []byte, max int) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) <= max {
		return trimmed
	}
	return trimmed[:max] + "..."
}

func nonEmpty(values ...string) []string {
	kept := make([]string, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			kept = append(kept, strings.TrimSpace(value))
		}
	}
	return kept
}
