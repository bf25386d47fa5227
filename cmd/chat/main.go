package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/careline/backend/internal/config"
	"github.com/zhouzirui/careline/backend/internal/endpoint"
	"github.com/zhouzirui/careline/backend/internal/logger"
	"github.com/zhouzirui/careline/backend/internal/model/persona"
	"github.com/zhouzirui/careline/backend/internal/terminal"
	"github.com/zhouzirui/careline/backend/internal/widget"
)

type chatOptions struct {
	endpointURL string
	timeout     time.Duration
	greeting    string
	plain       bool
	logLevel    string
	width       int
	crisisFor   time.Duration
	noticeFor   time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := chatOptions{}
	defaults := config.WidgetConfig{
		EndpointURL:         "http://127.0.0.1:5000",
		Timeout:             endpoint.DefaultTimeout,
		CrisisAlertDuration: widget.DefaultCrisisAlertDuration,
		NoticeDuration:      widget.DefaultNoticeDuration,
	}
	if cfg, err := config.Load(); err == nil {
		defaults = cfg.Widget
	}

	cmd := &cobra.Command{
		Use:           "careline-chat",
		Short:         "Talk to the Careline support companion from a terminal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.endpointURL, "endpoint", defaults.EndpointURL, "conversation endpoint base URL")
	flags.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "per-request timeout")
	flags.StringVar(&opts.greeting, "greeting", defaults.Greeting, "greeting shown when the conversation starts")
	flags.BoolVar(&opts.plain, "plain", false, "disable markdown rendering")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level for diagnostics on stderr")
	flags.IntVar(&opts.width, "width", 80, "word wrap width for replies")
	flags.DurationVar(&opts.crisisFor, "crisis-alert", defaults.CrisisAlertDuration, "how long the crisis alert stays up")
	flags.DurationVar(&opts.noticeFor, "notice", defaults.NoticeDuration, "how long error notices stay up")

	return cmd
}

func run(ctx context.Context, opts chatOptions, in io.Reader, out, errOut io.Writer) error {
	logger.Configure(logger.Config{Level: opts.logLevel, Output: errOut, Service: "careline-chat", Console: true})

	client, err := endpoint.New(opts.endpointURL, endpoint.WithTimeout(opts.timeout))
	if err != nil {
		return err
	}

	companion := persona.Seed()[0]
	greeting := opts.greeting
	if greeting == "" {
		greeting = companion.Greeting
	}

	view, err := terminal.New(out, terminal.Options{BotName: companion.Name, Plain: opts.plain, Width: opts.width})
	if err != nil {
		return err
	}

	session := widget.New(client, view,
		widget.WithGreeting(greeting),
		widget.WithCrisisAlertDuration(opts.crisisFor),
		widget.WithNoticeDuration(opts.noticeFor),
	)
	defer session.Close()

	err = view.Run(ctx, in)
	session.Wait()
	return err
}
