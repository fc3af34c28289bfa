package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/f-sync/tweeblock/internal/accountset"
	"github.com/f-sync/tweeblock/internal/auth"
	"github.com/f-sync/tweeblock/internal/blocklist"
	"github.com/f-sync/tweeblock/internal/config"
	"github.com/f-sync/tweeblock/internal/executor"
	"github.com/f-sync/tweeblock/internal/report"
	"github.com/f-sync/tweeblock/internal/seed"
	"github.com/f-sync/tweeblock/internal/server"
	"github.com/f-sync/tweeblock/internal/xapi"
)

const (
	defaultBlockDelay  = time.Second
	defaultBlockJitter = 250 * time.Millisecond

	errMessageSeedKindMismatch = "seed does not match the command"
	seedKindMismatchFormat     = "%w: %s command got a %s seed"
	loadConfigErrorFormat      = "load configuration: %w"
	loginErrorFormat           = "login: %w"
	clientErrorFormat          = "create api client: %w"
	verifyErrorFormat          = "verify credentials: %w"
	planErrorFormat            = "plan block list: %w"
	renderErrorFormat          = "render: %w"
	reviewErrorFormat          = "review server: %w"
	executorErrorFormat        = "create executor: %w"
	blockErrorFormat           = "block accounts: %w"
	createFileErrorFormat      = "create %s: %w"
	writeFileErrorFormat       = "write %s: %w"
	loggedInMessageFormat      = "Acting as @%s (%s)\n"
	writeSuccessMessageFormat  = "Wrote %s\n"
	reviewMessageFormat        = "Serving the block list for review on http://%s (Ctrl+C to stop)\n"
	dryRunMessage              = "Dry run: no accounts were blocked\n"
	emptyBlockListMessage      = "Nothing to block\n"
	blockResultFormat          = "Blocked %d of %d accounts via the %s path\n"
	switchedPathFormat         = "Switched to the fallback path at account %d of %d after rate limiting\n"
	truncatedMessageFormat     = "Stopped at the block limit of %d\n"
	logMessageUsingStoredToken = "using configured access token"
	logMessageActingAccount    = "acting account verified"
	logFieldAccountID          = "account_id"
	logFieldScreenName         = "screen_name"
)

var errSeedKindMismatch = errors.New(errMessageSeedKindMismatch)

// RunConfiguration is one invocation of a seed command.
type RunConfiguration struct {
	Kind            seed.Kind
	Seed            string
	EnvFile         string
	EnvFileRequired bool
	APIBaseURL      string
	OAuthBaseURL    string
	DryRun          bool
	// Format selects the block list listing; empty prints counts only.
	Format         report.Format
	HTMLOutputPath string
	ReviewAddress  string
	MaxBlocks      int
	BlockDelay     time.Duration
	BlockJitter    time.Duration
}

// API is the subset of the X API the application drives.
type API interface {
	blocklist.Graph
	VerifyCredentials(ctx context.Context) (accountset.AccountRecord, error)
	Blocker(actingAccountID string) executor.Blocker
}

// Dependencies are the collaborators of an Application. Nil fields fall back
// to the production implementations.
type Dependencies struct {
	LoadConfig      func(options config.Options) (config.Config, error)
	Login           func(ctx context.Context, configuration auth.LoginConfig, pinProvider auth.PINProvider) (auth.Session, error)
	NewAPI          func(configuration xapi.Config) (API, error)
	Serve           func(ctx context.Context, address string, handler http.Handler, logger *zap.Logger) error
	WriteOutputFile func(path string, contents string) error
	BlockWait       func(ctx context.Context, duration time.Duration) error
	Logger          *zap.Logger
	Stdin           io.Reader
	Stdout          io.Writer
	Stderr          io.Writer
}

// Application wires configuration, login, planning, reporting and blocking.
type Application struct {
	dependencies Dependencies
}

// NewApplicationWithDependencies fills unset dependencies with defaults.
func NewApplicationWithDependencies(dependencies Dependencies) Application {
	defaultDependencies := newDefaultDependencies()

	if dependencies.LoadConfig == nil {
		dependencies.LoadConfig = defaultDependencies.LoadConfig
	}
	if dependencies.Login == nil {
		dependencies.Login = defaultDependencies.Login
	}
	if dependencies.NewAPI == nil {
		dependencies.NewAPI = defaultDependencies.NewAPI
	}
	if dependencies.Serve == nil {
		dependencies.Serve = defaultDependencies.Serve
	}
	if dependencies.WriteOutputFile == nil {
		dependencies.WriteOutputFile = defaultDependencies.WriteOutputFile
	}
	if dependencies.Logger == nil {
		dependencies.Logger = defaultDependencies.Logger
	}
	if dependencies.Stdin == nil {
		dependencies.Stdin = defaultDependencies.Stdin
	}
	if dependencies.Stdout == nil {
		dependencies.Stdout = defaultDependencies.Stdout
	}
	if dependencies.Stderr == nil {
		dependencies.Stderr = defaultDependencies.Stderr
	}

	return Application{dependencies: dependencies}
}

// Run plans the block list for the configured seed and then reports it,
// serves it for review, or blocks it.
func (application Application) Run(ctx context.Context, configuration RunConfiguration) error {
	parsedSeed, err := parseSeed(configuration.Kind, configuration.Seed)
	if err != nil {
		return err
	}

	credentials, err := application.dependencies.LoadConfig(config.Options{
		EnvFile:         configuration.EnvFile,
		EnvFileRequired: configuration.EnvFileRequired,
		Logger:          application.dependencies.Logger,
	})
	if err != nil {
		return fmt.Errorf(loadConfigErrorFormat, err)
	}

	session, err := application.session(ctx, configuration, credentials)
	if err != nil {
		return err
	}

	api, err := application.dependencies.NewAPI(xapi.Config{
		APIBaseURL:        configuration.APIBaseURL,
		ConsumerKey:       credentials.ConsumerKey,
		ConsumerSecret:    credentials.ConsumerSecret,
		BearerToken:       credentials.BearerToken,
		AccessToken:       session.AccessToken,
		AccessTokenSecret: session.AccessTokenSecret,
		Logger:            application.dependencies.Logger,
	})
	if err != nil {
		return fmt.Errorf(clientErrorFormat, err)
	}

	actingAccount, err := api.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf(verifyErrorFormat, err)
	}
	application.dependencies.Logger.Info(logMessageActingAccount,
		zap.String(logFieldAccountID, actingAccount.AccountID),
		zap.String(logFieldScreenName, actingAccount.UserName),
	)
	fmt.Fprintf(application.dependencies.Stderr, loggedInMessageFormat, actingAccount.UserName, actingAccount.AccountID)

	planner, err := blocklist.NewPlanner(blocklist.PlannerConfig{
		Graph:           api,
		ActingAccountID: actingAccount.AccountID,
		InteractionAuth: xapi.AppContext,
		Logger:          application.dependencies.Logger,
	})
	if err != nil {
		return fmt.Errorf(planErrorFormat, err)
	}
	plan, err := planner.Plan(ctx, parsedSeed)
	if err != nil {
		return fmt.Errorf(planErrorFormat, err)
	}

	summary := report.Build(plan)
	if err := application.writeReports(summary, configuration); err != nil {
		return err
	}

	if configuration.ReviewAddress != "" {
		return application.review(ctx, summary, configuration.ReviewAddress)
	}
	if configuration.DryRun {
		fmt.Fprint(application.dependencies.Stdout, dryRunMessage)
		return nil
	}
	if plan.BlockList.Len() == 0 {
		fmt.Fprint(application.dependencies.Stdout, emptyBlockListMessage)
		return nil
	}
	return application.block(ctx, api.Blocker(actingAccount.AccountID), plan.BlockList.IDs(), configuration)
}

func parseSeed(kind seed.Kind, rawSeed string) (seed.Seed, error) {
	parsedSeed, err := seed.Parse(rawSeed)
	if err != nil {
		return seed.Seed{}, err
	}
	if kind != 0 && parsedSeed.Kind != kind {
		return seed.Seed{}, fmt.Errorf(seedKindMismatchFormat, errSeedKindMismatch, kind, parsedSeed.Kind)
	}
	return parsedSeed, nil
}

func (application Application) session(ctx context.Context, configuration RunConfiguration, credentials config.Config) (auth.Session, error) {
	if credentials.HasUserTokens() {
		application.dependencies.Logger.Debug(logMessageUsingStoredToken)
		return auth.Session{AccessToken: credentials.AccessToken, AccessTokenSecret: credentials.AccessTokenSecret}, nil
	}
	session, err := application.dependencies.Login(ctx, auth.LoginConfig{
		ConsumerKey:    credentials.ConsumerKey,
		ConsumerSecret: credentials.ConsumerSecret,
		OAuthBaseURL:   configuration.OAuthBaseURL,
		Logger:         application.dependencies.Logger,
	}, auth.NewTerminalPINProvider(application.dependencies.Stdin, application.dependencies.Stderr))
	if err != nil {
		return auth.Session{}, fmt.Errorf(loginErrorFormat, err)
	}
	return session, nil
}

func (application Application) writeReports(summary report.Summary, configuration RunConfiguration) error {
	if err := report.WriteSummary(application.dependencies.Stdout, summary); err != nil {
		return err
	}
	if configuration.Format != "" {
		if err := report.WriteBlockList(application.dependencies.Stdout, summary, configuration.Format); err != nil {
			return err
		}
	}
	if configuration.HTMLOutputPath == "" {
		return nil
	}
	pageHTML, err := report.RenderHTML(summary)
	if err != nil {
		return fmt.Errorf(renderErrorFormat, err)
	}
	if err := application.dependencies.WriteOutputFile(configuration.HTMLOutputPath, pageHTML); err != nil {
		return err
	}
	fmt.Fprintf(application.dependencies.Stderr, writeSuccessMessageFormat, configuration.HTMLOutputPath)
	return nil
}

func (application Application) review(ctx context.Context, summary report.Summary, address string) error {
	router, err := server.NewRouter(server.RouterConfig{Summary: &summary, Logger: application.dependencies.Logger})
	if err != nil {
		return fmt.Errorf(reviewErrorFormat, err)
	}
	fmt.Fprintf(application.dependencies.Stderr, reviewMessageFormat, address)
	if err := application.dependencies.Serve(ctx, address, router, application.dependencies.Logger); err != nil {
		return fmt.Errorf(reviewErrorFormat, err)
	}
	return nil
}

func (application Application) block(ctx context.Context, blocker executor.Blocker, accountIDs []string, configuration RunConfiguration) error {
	blockExecutor, err := executor.New(executor.Config{
		Blocker:   blocker,
		MaxBlocks: configuration.MaxBlocks,
		Pacing:    executor.PacingConfig{BaseDelay: configuration.BlockDelay, Jitter: configuration.BlockJitter},
		Logger:    application.dependencies.Logger,
		Wait:      application.dependencies.BlockWait,
	})
	if err != nil {
		return fmt.Errorf(executorErrorFormat, err)
	}

	executionReport, executeErr := blockExecutor.Execute(ctx, accountIDs)
	stdout := application.dependencies.Stdout
	fmt.Fprintf(stdout, blockResultFormat, len(executionReport.Blocked), executionReport.Total, executionReport.FinalPath)
	if executionReport.SwitchedAt >= 0 {
		fmt.Fprintf(stdout, switchedPathFormat, executionReport.SwitchedAt+1, executionReport.Total)
	}
	if executionReport.Truncated {
		fmt.Fprintf(stdout, truncatedMessageFormat, configuration.MaxBlocks)
	}
	if executeErr != nil {
		return fmt.Errorf(blockErrorFormat, executeErr)
	}
	return nil
}

type xapiClient struct {
	*xapi.Client
}

func (client xapiClient) Blocker(actingAccountID string) executor.Blocker {
	return client.BlockerFor(actingAccountID)
}

func newDefaultDependencies() Dependencies {
	return Dependencies{
		LoadConfig: func(options config.Options) (config.Config, error) {
			return config.Load(viper.New(), options)
		},
		Login: auth.Login,
		NewAPI: func(configuration xapi.Config) (API, error) {
			client, err := xapi.NewClient(configuration)
			if err != nil {
				return nil, err
			}
			return xapiClient{Client: client}, nil
		},
		Serve:           server.Serve,
		WriteOutputFile: defaultWriteOutputFile,
		Logger:          zap.NewNop(),
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	}
}

func defaultWriteOutputFile(outputPath string, contents string) error {
	file, createError := os.Create(outputPath)
	if createError != nil {
		return fmt.Errorf(createFileErrorFormat, outputPath, createError)
	}
	defer file.Close()

	if _, writeError := file.WriteString(contents); writeError != nil {
		return fmt.Errorf(writeFileErrorFormat, outputPath, writeError)
	}
	return nil
}
