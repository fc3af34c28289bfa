package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/f-sync/tweeblock/internal/auth"
	"github.com/f-sync/tweeblock/internal/config"
	"github.com/f-sync/tweeblock/internal/report"
	"github.com/f-sync/tweeblock/internal/seed"
	"github.com/f-sync/tweeblock/internal/xapi"
)

const (
	rootCommandUse               = "tweeblock"
	rootCommandShortDescription  = "Block the accounts that interacted with a tweet or follow an account"
	tweetCommandUse              = "tweet <tweet-url>"
	tweetCommandShortDescription = "Block a tweet's likers, retweeters, the author's followers and the author"
	accountCommandUse            = "account <@handle>"
	accountCommandShortDesc      = "Block an account and its followers"
	envPrefix                    = "TWEEBLOCK"
	flagEnvFileName              = "env-file"
	flagEnvFileDescription       = "Dotenv file holding the API credentials"
	flagAPIBaseURLName           = "api-base-url"
	flagAPIBaseURLDescription    = "Base URL of the API"
	flagOAuthBaseURLName         = "oauth-base-url"
	flagOAuthBaseURLDescription  = "Base URL of the OAuth endpoints"
	flagDryRunName               = "dry-run"
	flagDryRunDescription        = "Compute and print the block list without blocking"
	flagFormatName               = "format"
	flagFormatDescription        = "Print the block list as text, ids, csv or json"
	flagHTMLOutName              = "html-out"
	flagHTMLOutDescription       = "Write an HTML report of the block list to this path"
	flagReviewAddressName        = "review-addr"
	flagReviewAddressDescription = "Serve the block list for review on this address instead of blocking"
	flagMaxBlocksName            = "max-blocks"
	flagMaxBlocksDescription     = "Stop after this many block requests (0 means no limit)"
	flagBlockDelayName           = "block-delay"
	flagBlockDelayDescription    = "Base delay between block requests"
	flagBlockJitterName          = "block-jitter"
	flagBlockJitterDescription   = "Random jitter applied to the block delay"
	flagDebugName                = "debug"
	flagDebugDescription         = "Enable development logging"
	errMessageLoggerCreate       = "create logger"
	logMessageRunFailed          = "run failed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	command := &cobra.Command{
		Use:          rootCommandUse,
		Short:        rootCommandShortDescription,
		SilenceUsage: true,
	}

	flags := command.PersistentFlags()
	flags.String(flagEnvFileName, config.DefaultEnvFile, flagEnvFileDescription)
	flags.String(flagAPIBaseURLName, xapi.DefaultAPIBaseURL, flagAPIBaseURLDescription)
	flags.String(flagOAuthBaseURLName, auth.DefaultOAuthBaseURL, flagOAuthBaseURLDescription)
	flags.Bool(flagDryRunName, false, flagDryRunDescription)
	flags.String(flagFormatName, "", flagFormatDescription)
	flags.String(flagHTMLOutName, "", flagHTMLOutDescription)
	flags.String(flagReviewAddressName, "", flagReviewAddressDescription)
	flags.Int(flagMaxBlocksName, 0, flagMaxBlocksDescription)
	flags.Duration(flagBlockDelayName, defaultBlockDelay, flagBlockDelayDescription)
	flags.Duration(flagBlockJitterName, defaultBlockJitter, flagBlockJitterDescription)
	flags.Bool(flagDebugName, false, flagDebugDescription)

	for _, flagName := range []string{
		flagEnvFileName,
		flagAPIBaseURLName,
		flagOAuthBaseURLName,
		flagDryRunName,
		flagFormatName,
		flagHTMLOutName,
		flagReviewAddressName,
		flagMaxBlocksName,
		flagBlockDelayName,
		flagBlockJitterName,
		flagDebugName,
	} {
		bindFlagToViper(command, flagName)
	}

	cobra.OnInitialize(configureEnvironment)

	command.AddCommand(
		newSeedCommand(tweetCommandUse, tweetCommandShortDescription, seed.KindTweet),
		newSeedCommand(accountCommandUse, accountCommandShortDesc, seed.KindAccount),
	)
	return command
}

func newSeedCommand(use string, shortDescription string, kind seed.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: shortDescription,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runSeedCommand(command, kind, arguments[0])
		},
	}
}

func bindFlagToViper(command *cobra.Command, flagName string) {
	cobra.CheckErr(viper.BindPFlag(flagName, command.PersistentFlags().Lookup(flagName)))
}

func configureEnvironment() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runSeedCommand(command *cobra.Command, kind seed.Kind, rawSeed string) error {
	logger, err := newLogger(viper.GetBool(flagDebugName))
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageLoggerCreate, err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	configuration, err := runConfigurationFromViper(kind, rawSeed, command.Flags().Changed(flagEnvFileName))
	if err != nil {
		return err
	}

	application := NewApplicationWithDependencies(Dependencies{
		Logger: logger,
		Stdin:  command.InOrStdin(),
		Stdout: command.OutOrStdout(),
		Stderr: command.ErrOrStderr(),
	})
	if err := application.Run(command.Context(), configuration); err != nil {
		logger.Error(logMessageRunFailed, zap.Error(err))
		return err
	}
	return nil
}

func runConfigurationFromViper(kind seed.Kind, rawSeed string, envFileExplicit bool) (RunConfiguration, error) {
	format := report.Format("")
	if rawFormat := viper.GetString(flagFormatName); rawFormat != "" {
		parsedFormat, err := report.ParseFormat(rawFormat)
		if err != nil {
			return RunConfiguration{}, err
		}
		format = parsedFormat
	}
	return RunConfiguration{
		Kind:            kind,
		Seed:            rawSeed,
		EnvFile:         viper.GetString(flagEnvFileName),
		EnvFileRequired: envFileExplicit,
		APIBaseURL:      viper.GetString(flagAPIBaseURLName),
		OAuthBaseURL:    viper.GetString(flagOAuthBaseURLName),
		DryRun:          viper.GetBool(flagDryRunName),
		Format:          format,
		HTMLOutputPath:  viper.GetString(flagHTMLOutName),
		ReviewAddress:   viper.GetString(flagReviewAddressName),
		MaxBlocks:       viper.GetInt(flagMaxBlocksName),
		BlockDelay:      viper.GetDuration(flagBlockDelayName),
		BlockJitter:     viper.GetDuration(flagBlockJitterName),
	}, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
