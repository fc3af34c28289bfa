package xapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/f-sync/tweeblock/internal/accountset"
	"github.com/f-sync/tweeblock/internal/collector"
)

const (
	verifyCredentialsPath    = "/1.1/account/verify_credentials.json"
	createBlockPath          = "/1.1/blocks/create.json"
	userByUsernamePathFormat = "/2/users/by/username/%s"
	likingUsersPathFormat    = "/2/tweets/%s/liking_users"
	retweetedByPathFormat    = "/2/tweets/%s/retweeted_by"
	followersPathFormat      = "/2/users/%s/followers"
	followingPathFormat      = "/2/users/%s/following"
	blockingPathFormat       = "/2/users/%s/blocking"

	queryMaxResults       = "max_results"
	queryPaginationToken  = "pagination_token"
	formUserID            = "user_id"
	formSkipStatus        = "skip_status"
	formIncludeEntities   = "include_entities"
	formValueTrue         = "true"
	formValueFalse        = "false"
	engagementPageSizeCap = 100
	followPageSizeCap     = 1000

	errMessageUserNotFound      = "user not found"
	errMessageEmptyIdentity     = "credentials response did not include an account id"
	errMessageBlockNotConfirmed = "block was not confirmed"
	userNotFoundErrorFormat     = "%w: @%s"
	userNotFoundDetailFormat    = "%w: @%s: %s"
	blockNotConfirmedFormat     = "%w for %s"
	encodeBlockBodyErrorFormat  = "encode block request: %w"
)

var (
	// ErrUserNotFound is returned when a handle does not resolve to an account.
	ErrUserNotFound = errors.New(errMessageUserNotFound)

	errEmptyIdentity     = errors.New(errMessageEmptyIdentity)
	errBlockNotConfirmed = errors.New(errMessageBlockNotConfirmed)
)

type blockRequestBody struct {
	TargetUserID string `json:"target_user_id"`
}

// VerifyCredentials returns the account the user-context credentials act for.
func (client *Client) VerifyCredentials(ctx context.Context) (accountset.AccountRecord, error) {
	query := url.Values{}
	query.Set(formSkipStatus, formValueTrue)
	query.Set(formIncludeEntities, formValueFalse)
	response, err := client.do(ctx, apiRequest{
		method:          http.MethodGet,
		path:            verifyCredentialsPath,
		query:           query,
		auth:            UserContext,
		waitOnRateLimit: true,
	})
	if err != nil {
		return accountset.AccountRecord{}, err
	}
	record := accountset.AccountRecord{
		AccountID:   response.Get("id_str").String(),
		UserName:    response.Get("screen_name").String(),
		DisplayName: response.Get("name").String(),
	}
	if record.AccountID == "" {
		return accountset.AccountRecord{}, errEmptyIdentity
	}
	return record, nil
}

// UserByUsername resolves a handle into its account record.
func (client *Client) UserByUsername(ctx context.Context, userName string, auth AuthMode) (accountset.AccountRecord, error) {
	trimmedUserName := strings.TrimPrefix(strings.TrimSpace(userName), "@")
	response, err := client.do(ctx, apiRequest{
		method:          http.MethodGet,
		path:            fmt.Sprintf(userByUsernamePathFormat, url.PathEscape(trimmedUserName)),
		auth:            auth,
		waitOnRateLimit: true,
	})
	if err != nil {
		var apiError *APIError
		if errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound {
			return accountset.AccountRecord{}, fmt.Errorf(userNotFoundErrorFormat, ErrUserNotFound, trimmedUserName)
		}
		return accountset.AccountRecord{}, err
	}
	record := userRecord(response.Get("data"))
	if record.AccountID == "" {
		if detail := response.Get("errors.0.detail").String(); detail != "" {
			return accountset.AccountRecord{}, fmt.Errorf(userNotFoundDetailFormat, ErrUserNotFound, trimmedUserName, detail)
		}
		return accountset.AccountRecord{}, fmt.Errorf(userNotFoundErrorFormat, ErrUserNotFound, trimmedUserName)
	}
	return record, nil
}

// LikingUsers pages through the accounts that liked tweetID.
func (client *Client) LikingUsers(tweetID string, auth AuthMode) collector.PageFetcher {
	return client.pageFetcher(fmt.Sprintf(likingUsersPathFormat, url.PathEscape(tweetID)), auth, engagementPageSizeCap)
}

// Retweeters pages through the accounts that retweeted tweetID.
func (client *Client) Retweeters(tweetID string, auth AuthMode) collector.PageFetcher {
	return client.pageFetcher(fmt.Sprintf(retweetedByPathFormat, url.PathEscape(tweetID)), auth, engagementPageSizeCap)
}

// Followers pages through the accounts following accountID.
func (client *Client) Followers(accountID string, auth AuthMode) collector.PageFetcher {
	return client.pageFetcher(fmt.Sprintf(followersPathFormat, url.PathEscape(accountID)), auth, followPageSizeCap)
}

// Following pages through the accounts accountID follows.
func (client *Client) Following(accountID string, auth AuthMode) collector.PageFetcher {
	return client.pageFetcher(fmt.Sprintf(followingPathFormat, url.PathEscape(accountID)), auth, followPageSizeCap)
}

func (client *Client) pageFetcher(path string, auth AuthMode, pageSizeCap int) collector.PageFetcher {
	return func(ctx context.Context, request collector.PageRequest) (collector.Page, error) {
		pageSize := request.MaxResults
		if pageSize <= 0 || pageSize > pageSizeCap {
			pageSize = pageSizeCap
		}
		query := url.Values{}
		query.Set(queryMaxResults, strconv.Itoa(pageSize))
		if request.Token != "" {
			query.Set(queryPaginationToken, request.Token)
		}
		response, err := client.do(ctx, apiRequest{
			method:          http.MethodGet,
			path:            path,
			query:           query,
			auth:            auth,
			waitOnRateLimit: true,
		})
		if err != nil {
			return collector.Page{}, err
		}
		if !response.Get("data").Exists() && response.Get("errors").Exists() {
			return collector.Page{}, responseErrors(http.MethodGet, path, response)
		}
		return parsePage(response), nil
	}
}

// BlockPrimary blocks targetAccountID through the v2 endpoint. Rate limiting
// is reported as ErrRateLimited instead of waiting.
func (client *Client) BlockPrimary(ctx context.Context, actingAccountID string, targetAccountID string) error {
	body, err := json.Marshal(blockRequestBody{TargetUserID: targetAccountID})
	if err != nil {
		return fmt.Errorf(encodeBlockBodyErrorFormat, err)
	}
	response, err := client.do(ctx, apiRequest{
		method:   http.MethodPost,
		path:     fmt.Sprintf(blockingPathFormat, url.PathEscape(actingAccountID)),
		jsonBody: body,
		auth:     UserContext,
	})
	if err != nil {
		return err
	}
	if blocking := response.Get("data.blocking"); blocking.Exists() && !blocking.Bool() {
		return fmt.Errorf(blockNotConfirmedFormat, errBlockNotConfirmed, targetAccountID)
	}
	return nil
}

// BlockFallback blocks targetAccountID through the v1.1 endpoint, waiting out
// rate limits.
func (client *Client) BlockFallback(ctx context.Context, targetAccountID string) error {
	form := url.Values{}
	form.Set(formUserID, targetAccountID)
	form.Set(formSkipStatus, formValueTrue)
	_, err := client.do(ctx, apiRequest{
		method:          http.MethodPost,
		path:            createBlockPath,
		form:            form,
		auth:            UserContext,
		waitOnRateLimit: true,
	})
	return err
}

// AccountBlocker binds the block endpoints to the acting account.
type AccountBlocker struct {
	client          *Client
	actingAccountID string
}

// BlockerFor returns an AccountBlocker acting as actingAccountID.
func (client *Client) BlockerFor(actingAccountID string) AccountBlocker {
	return AccountBlocker{client: client, actingAccountID: actingAccountID}
}

// BlockPrimary blocks accountID through the v2 endpoint.
func (blocker AccountBlocker) BlockPrimary(ctx context.Context, accountID string) error {
	return blocker.client.BlockPrimary(ctx, blocker.actingAccountID, accountID)
}

// BlockFallback blocks accountID through the v1.1 endpoint.
func (blocker AccountBlocker) BlockFallback(ctx context.Context, accountID string) error {
	return blocker.client.BlockFallback(ctx, accountID)
}

// responseErrors reports a successful response whose payload carries only an
// errors array, as the v2 API does for missing tweets and suspended accounts.
func responseErrors(method string, path string, response gjson.Result) *APIError {
	firstError := response.Get("errors.0")
	detail := firstError.Get("detail").String()
	if detail == "" {
		detail = firstError.Get("message").String()
	}
	return &APIError{
		Method:     method,
		Endpoint:   path,
		StatusCode: http.StatusOK,
		Title:      firstError.Get("title").String(),
		Detail:     detail,
	}
}

func parsePage(response gjson.Result) collector.Page {
	page := collector.Page{NextToken: response.Get("meta.next_token").String()}
	response.Get("data").ForEach(func(_, user gjson.Result) bool {
		if record := userRecord(user); record.AccountID != "" {
			page.Records = append(page.Records, record)
		}
		return true
	})
	return page
}

func userRecord(user gjson.Result) accountset.AccountRecord {
	return accountset.AccountRecord{
		AccountID:   user.Get("id").String(),
		UserName:    user.Get("username").String(),
		DisplayName: user.Get("name").String(),
	}
}
