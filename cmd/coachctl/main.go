// Command coachctl drives the interview coach from a terminal: manage
// backend credentials, check connections and run coaching tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/budget"
	"github.com/interviewcoach/backend/internal/coach"
	"github.com/interviewcoach/backend/internal/credentials"
	"github.com/interviewcoach/backend/internal/logging"
)

var (
	// Global flags
	backendName string
	modelID     string
	credential  string
	ollamaURL   string
	budgetsFile string
	timeout     time.Duration
	verbose     bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "coachctl",
	Short: "Interview coach from the command line",
	Long: `coachctl runs the interview coach against any supported backend.

Credentials are taken from --credential, then COACH_<BACKEND>_CREDENTIAL,
then the OS keyring (see: coachctl login). Ollama needs no credential;
pass its server URL as the credential to use a non-default address.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger = logging.New("", false)
		} else {
			logger = zap.NewNop()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&backendName, "backend", "b", string(backend.Groq), "Backend: groq, openai, anthropic, openrouter or ollama")
	rootCmd.PersistentFlags().StringVarP(&modelID, "model", "m", "", "Model id (default: the backend's first catalogue model)")
	rootCmd.PersistentFlags().StringVar(&credential, "credential", "", "API key, or the server URL for ollama")
	rootCmd.PersistentFlags().StringVar(&ollamaURL, "ollama-url", backend.DefaultOllamaURL, "Ollama server used when no credential is given")
	rootCmd.PersistentFlags().StringVar(&budgetsFile, "budgets", "", "YAML file overriding context budgets")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Overall timeout per command")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log backend calls to stdout")

	rootCmd.AddCommand(backendsCmd, loginCmd, logoutCmd, verifyCmd, modelsCmd, warmupCmd)
	rootCmd.AddCommand(planCmd, tipCmd, gradeCmd, practiceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// commandContext bounds a command by --timeout and cancels it on Ctrl-C.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func newAdapter() *backend.Adapter {
	return backend.NewAdapter(backend.Options{LocalURL: ollamaURL, Logger: logger})
}

// target resolves the backend, credential and model from the flags.
func target() (coach.Connection, error) {
	id, err := backend.Parse(backendName)
	if err != nil {
		return coach.Connection{}, err
	}
	cred, _, err := credentials.Resolve(id, credential)
	if err != nil {
		return coach.Connection{}, err
	}
	model := modelID
	if model == "" {
		spec, _ := backend.Lookup(id)
		model = spec.DefaultModel()
	}
	return coach.Connection{Backend: id, Credential: cred, Model: model}, nil
}

func newCoach(adapter *backend.Adapter) (*coach.Coach, error) {
	cfg := coach.Config{Logger: logger}
	if budgetsFile != "" {
		t, err := budget.LoadTable(budgetsFile)
		if err != nil {
			return nil, fmt.Errorf("load budgets: %w", err)
		}
		cfg.Budgets = t
	}
	return coach.New(adapter, cfg), nil
}
