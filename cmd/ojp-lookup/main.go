// ojp-lookup resolves a stop name against the OJP location service, trying
// each configured endpoint until one answers with stops.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/api"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/config"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/credential"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/resolver"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/trial"
	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/pkg/http/client"
)

const (
	exitOK                = 0
	exitAllFailed         = 1
	exitCredentialMissing = 2
	exitUsage             = 3

	defaultStopName = "Bern"
)

// exitError carries the process exit code out of RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

type options struct {
	maxResults  int
	language    string
	timeout     time.Duration
	budget      time.Duration
	minInterval time.Duration
	trialsPath  string
	secretsPath string
	envFile     string
	jsonOutput  bool
	verbose     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "ojp-lookup [stop name...]",
		Short: "Find stop references for a stop name via the OJP location service",
		Long: `Find stop references for a stop name via the OJP location service.

Each configured endpoint trial (URL, schema version, authentication scheme)
is tried in order until one returns stops. When every trial fails, a report
lists each attempt and the most likely cause.

The API key is read from OJP_API_KEY, then the secrets header, then the
dotenv file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, args, opts, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.maxResults, "max-results", "n", models.DefaultMaxResults, "Maximum number of stops to request")
	f.StringVarP(&opts.language, "language", "l", models.DefaultLanguage, "Response language (BCP 47 tag)")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Deadline for each endpoint trial")
	f.DurationVar(&opts.budget, "budget", 2*time.Minute, "Deadline for the whole lookup")
	f.DurationVar(&opts.minInterval, "min-interval", 0, "Minimum spacing between requests")
	f.StringVar(&opts.trialsPath, "trials", "", "YAML trial catalog replacing the built-in endpoint list")
	f.StringVar(&opts.secretsPath, "secrets", credential.DefaultHeaderPath, "C header defining OJP_API_KEY")
	f.StringVar(&opts.envFile, "env-file", "", "Dotenv file with OJP_API_KEY and settings (default .env)")
	f.BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every request")

	return cmd
}

func runLookup(cmd *cobra.Command, args []string, opts options, stdout, stderr io.Writer) error {
	if opts.envFile != "" {
		if err := config.LoadEnvFile(opts.envFile); err != nil {
			return usageError(err)
		}
	}

	cfgOpts := []config.Option{config.WithLogOutput(stderr)}
	if os.Getenv("OJP_ENV") == "" {
		cfgOpts = append(cfgOpts, config.WithEnvironment("local"))
	}
	switch {
	case opts.verbose:
		cfgOpts = append(cfgOpts, config.WithLogLevel("debug"))
	case os.Getenv("LOG_LEVEL") == "":
		cfgOpts = append(cfgOpts, config.WithLogLevel("warn"))
	}
	flags := cmd.Flags()
	if flags.Changed("max-results") {
		cfgOpts = append(cfgOpts, config.WithMaxResults(opts.maxResults))
	}
	if flags.Changed("language") {
		cfgOpts = append(cfgOpts, config.WithLanguage(opts.language))
	}
	if flags.Changed("timeout") {
		cfgOpts = append(cfgOpts, config.WithHTTPTimeout(opts.timeout))
	}
	if flags.Changed("budget") {
		cfgOpts = append(cfgOpts, config.WithBudget(opts.budget))
	}
	if flags.Changed("min-interval") {
		cfgOpts = append(cfgOpts, config.WithMinInterval(opts.minInterval))
	}
	if flags.Changed("trials") {
		cfgOpts = append(cfgOpts, config.WithTrialCatalog(opts.trialsPath))
	}

	cfg, err := config.LoadFromEnv(cfgOpts...)
	if err != nil {
		return usageError(err)
	}
	cfg.InitializeLogging()

	trials := resolver.DefaultTrials()
	if cfg.TrialCatalog != "" {
		trials, err = config.LoadTrialCatalog(cfg.TrialCatalog)
		if err != nil {
			return usageError(err)
		}
	}

	stopName := defaultStopName
	if len(args) > 0 {
		stopName = strings.Join(args, " ")
	}
	query := models.NewStopQuery(stopName, cfg.MaxResults, cfg.Language)
	if err := query.Validate(); err != nil {
		return usageError(err)
	}

	ctx := cmd.Context()
	sources := credential.Chain{
		credential.EnvSource{},
		credential.HeaderFileSource{Path: opts.secretsPath},
		credential.DotenvSource{Path: opts.envFile},
	}
	cred, err := sources.Get(ctx)
	if err != nil {
		if errors.Is(err, credential.ErrMissing) {
			return &exitError{code: exitCredentialMissing, err: fmt.Errorf("%w: set %s, define it in %s, or add it to a dotenv file", err, credential.EnvVar, opts.secretsPath)}
		}
		return usageError(err)
	}

	if !opts.jsonOutput {
		report := credential.Inspect(cred)
		fmt.Fprintf(stderr, "API key: %d characters, %s\n", report.Length, report.Preview)
		if report.Warning != "" {
			fmt.Fprintf(stderr, "Warning: %s\n", report.Warning)
		}
	}

	httpClient := client.New(client.Options{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
	})
	r := resolver.New(trial.NewExecutor(httpClient, cfg.UserAgent), resolver.Options{
		Budget:       cfg.Budget,
		TrialTimeout: cfg.HTTPTimeout,
		MinInterval:  cfg.MinInterval,
		RequestorRef: cfg.RequestorRef,
	})

	result, err := r.Resolve(ctx, query, trials, cred)
	if err != nil {
		var allFailed *resolver.AllFailedError
		if !errors.As(err, &allFailed) {
			return usageError(err)
		}
		if opts.jsonOutput {
			resp := api.NewErrorResponse(allFailed.Error())
			resp.Pattern = string(allFailed.Pattern())
			resp.Hint = allFailed.Pattern().Hint()
			if err := writeJSON(stdout, resp); err != nil {
				return err
			}
		} else {
			fmt.Fprint(stdout, allFailed.Report())
		}
		return &exitError{code: exitAllFailed, err: allFailed}
	}

	if opts.jsonOutput {
		return writeJSON(stdout, api.NewStopsResponse(result.Matches, result.Trial.Name))
	}
	fmt.Fprintf(stdout, "Found %d stops for %q via %s:\n", len(result.Matches), query.StopName, result.Trial.Name)
	for _, m := range result.Matches {
		fmt.Fprintf(stdout, "  • %s (ID: %s)\n", m.DisplayName, m.StopReference)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// run executes the command and maps its error to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.code != exitAllFailed {
			fmt.Fprintf(stderr, "Error: %v\n", exitErr.err)
		}
		return exitErr.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitUsage
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
