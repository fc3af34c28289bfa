package auth_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/f-sync/tweeblock/internal/auth"
)

const (
	testAuthorizationURL = "https://api.twitter.com/oauth/authorize?oauth_token=temp"
	testConsumerKey      = "consumer-key"
	testConsumerSecret   = "consumer-secret"
	testVerifier         = "1234567"
)

func TestTerminalPINProvider(t *testing.T) {
	testCases := []struct {
		name            string
		input           string
		expectedPIN     string
		expectedError   error
		expectedPrompts int
	}{
		{name: "digits on first try", input: "123456\n", expectedPIN: "123456", expectedPrompts: 1},
		{name: "surrounding whitespace", input: "  987654 \r\n", expectedPIN: "987654", expectedPrompts: 1},
		{name: "re-prompts until digits", input: "abc\n\n12a4\n4321\n", expectedPIN: "4321", expectedPrompts: 4},
		{name: "last line without newline", input: "nope\n2468", expectedPIN: "2468", expectedPrompts: 2},
		{name: "input closes", input: "abc\n", expectedError: auth.ErrPINInputClosed, expectedPrompts: 2},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			var output bytes.Buffer
			provider := auth.NewTerminalPINProvider(strings.NewReader(testCase.input), &output)

			pin, err := provider.PIN(context.Background(), testAuthorizationURL)
			if testCase.expectedError != nil {
				if !errors.Is(err, testCase.expectedError) {
					t.Fatalf("expected %v, got %v", testCase.expectedError, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if pin != testCase.expectedPIN {
					t.Fatalf("pin = %q, want %q", pin, testCase.expectedPIN)
				}
			}
			prompts := strings.Count(output.String(), "Please enter the PIN code")
			if prompts != testCase.expectedPrompts {
				t.Fatalf("expected %d prompts, got %d:\n%s", testCase.expectedPrompts, prompts, output.String())
			}
			if !strings.Contains(output.String(), testAuthorizationURL) {
				t.Fatalf("expected authorization URL in output")
			}
		})
	}
}

func TestTerminalPINProviderHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	provider := auth.NewTerminalPINProvider(strings.NewReader("1234\n"), io.Discard)

	if _, err := provider.PIN(ctx, testAuthorizationURL); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type oauthServerStub struct {
	mutex              sync.Mutex
	tokenRequestFields string
}

func (stub *oauthServerStub) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	switch request.URL.Path {
	case "/oauth/request_token":
		_, _ = io.WriteString(writer, "oauth_token=temp&oauth_token_secret=temp-secret&oauth_callback_confirmed=true")
	case "/oauth/access_token":
		body, _ := io.ReadAll(request.Body)
		stub.mutex.Lock()
		stub.tokenRequestFields = request.Header.Get("Authorization") + " " + request.URL.RawQuery + " " + string(body)
		stub.mutex.Unlock()
		_, _ = io.WriteString(writer, "oauth_token=access&oauth_token_secret=access-secret&user_id=123&screen_name=me")
	default:
		writer.WriteHeader(http.StatusNotFound)
	}
}

func TestLogin(t *testing.T) {
	stub := &oauthServerStub{}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	var receivedURL string
	pinProvider := auth.PINProviderFunc(func(_ context.Context, authorizationURL string) (string, error) {
		receivedURL = authorizationURL
		return testVerifier, nil
	})

	session, err := auth.Login(context.Background(), auth.LoginConfig{
		ConsumerKey:    testConsumerKey,
		ConsumerSecret: testConsumerSecret,
		OAuthBaseURL:   server.URL,
		HTTPClient:     server.Client(),
	}, pinProvider)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if !strings.HasPrefix(receivedURL, server.URL+"/oauth/authorize") || !strings.Contains(receivedURL, "oauth_token=temp") {
		t.Fatalf("unexpected authorization URL %q", receivedURL)
	}
	expectedSession := auth.Session{AccessToken: "access", AccessTokenSecret: "access-secret", UserID: "123", ScreenName: "me"}
	if session != expectedSession {
		t.Fatalf("session = %+v, want %+v", session, expectedSession)
	}
	stub.mutex.Lock()
	defer stub.mutex.Unlock()
	if !strings.Contains(stub.tokenRequestFields, testVerifier) {
		t.Fatalf("expected verifier in token request, got %q", stub.tokenRequestFields)
	}
}

func TestLoginPropagatesPINFailure(t *testing.T) {
	server := httptest.NewServer(&oauthServerStub{})
	t.Cleanup(server.Close)

	pinProvider := auth.PINProviderFunc(func(context.Context, string) (string, error) {
		return "", auth.ErrPINInputClosed
	})
	_, err := auth.Login(context.Background(), auth.LoginConfig{
		ConsumerKey:    testConsumerKey,
		ConsumerSecret: testConsumerSecret,
		OAuthBaseURL:   server.URL,
		HTTPClient:     server.Client(),
	}, pinProvider)
	if !errors.Is(err, auth.ErrPINInputClosed) {
		t.Fatalf("expected ErrPINInputClosed, got %v", err)
	}
}

func TestLoginRequiresConsumerCredentials(t *testing.T) {
	_, err := auth.Login(context.Background(), auth.LoginConfig{}, auth.PINProviderFunc(func(context.Context, string) (string, error) {
		return testVerifier, nil
	}))
	if err == nil {
		t.Fatalf("expected error without consumer credentials")
	}
}
