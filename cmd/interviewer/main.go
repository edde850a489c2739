package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/interviewer/internal/catalog"
	"github.com/pavelanni/interviewer/internal/evaluator"
	"github.com/pavelanni/interviewer/internal/handler"
	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/knowledge"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/secrets"
	"github.com/pavelanni/interviewer/internal/store"
)

func main() {
	// A missing .env file is normal.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "interviewer",
		Short:        "AI interview assistant: question generation, answer scoring and weakness tracking",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(
		serve,
		generateCmd(),
		evaluateCmd(),
		evaluateBatchCmd(),
		historyCmd(),
		weaknessCmd(),
		kbCmd(),
		practiceCmd(),
	)

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `interviewer --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8000", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /api)")
	f.StringP("lang", "l", "zh", "Default message language (en, zh)")
	addStoreFlags(f)
	addLLMFlags(f)
	addLogFlags(f)
	return cmd
}

func addStoreFlags(f *pflag.FlagSet) {
	f.String("store", store.BackendFile, "Storage backend (file, sqlite)")
	f.String("data-dir", "data", "Data directory for the file backend")
	f.String("db", "interviewer.db", "SQLite database path for the sqlite backend")
}

func addLLMFlags(f *pflag.FlagSet) {
	f.String("llm-provider", llm.ProviderDify, "Model backend (dify, openai, gemini, anthropic)")
	f.String("llm-url", "", "Model API base URL (backend default when empty)")
	f.String("llm-key", "", "Model API key")
	f.String("llm-key-file", "", "File containing the model API key (overrides --llm-key)")
	f.String("llm-model", "", "Model name (openai, gemini, anthropic)")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Model request timeout (at least 30s)")
	f.String("response-mode", llm.ResponseBlocking, "Reply mode (blocking, streaming)")
	f.StringToString("llm-keys", nil, "Per-capability API keys, e.g. company=KEY,weakness=@/path/to/key")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("INTERVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("interviewer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/interviewer")
	v.AddConfigPath("/etc/interviewer")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// providerKeyEnv names the conventional key variable of each backend.
var providerKeyEnv = map[string]string{
	llm.ProviderDify:      "DIFY_API_KEY",
	llm.ProviderOpenAI:    "OPENAI_API_KEY",
	llm.ProviderGemini:    "GEMINI_API_KEY",
	llm.ProviderAnthropic: "ANTHROPIC_API_KEY",
}

func llmConfig(v *viper.Viper) (llm.Config, error) {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("llm-provider")))
	if provider == "" {
		provider = llm.ProviderDify
	}
	key, err := secrets.Load(secrets.Source{
		Name:  "llm api key",
		Value: v.GetString("llm-key"),
		File:  v.GetString("llm-key-file"),
		Env:   providerKeyEnv[provider],
	})
	// Local OpenAI-compatible servers usually take no key.
	if errors.Is(err, secrets.ErrNotConfigured) && provider == llm.ProviderOpenAI {
		err = nil
	}
	if err != nil {
		return llm.Config{}, fmt.Errorf("%w (set --llm-key, --llm-key-file or INTERVIEWER_LLM_KEY)", err)
	}
	return llm.Config{
		Provider:     provider,
		BaseURL:      v.GetString("llm-url"),
		APIKey:       key,
		Model:        v.GetString("llm-model"),
		Timeout:      v.GetDuration("llm-timeout"),
		ResponseMode: v.GetString("response-mode"),
	}, nil
}

func buildRegistry(ctx context.Context, v *viper.Viper) (*llm.Registry, error) {
	cfg, err := llmConfig(v)
	if err != nil {
		return nil, err
	}
	keys, err := secrets.LoadAll("llm key", v.GetStringMapString("llm-keys"))
	if err != nil {
		return nil, err
	}
	reg, err := llm.BuildRegistry(ctx, cfg, keys, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("create LLM gateways: %w", err)
	}
	return reg, nil
}

func openStore(v *viper.Viper) (store.Store, error) {
	st, err := store.Open(v.GetString("store"), v.GetString("data-dir"), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// services is the wired application used by every command that calls the model.
type services struct {
	store     store.Store
	catalog   *catalog.Catalog
	evaluator *evaluator.Evaluator
	knowledge *knowledge.Service
}

func newServices(ctx context.Context, v *viper.Viper) (*services, error) {
	reg, err := buildRegistry(ctx, v)
	if err != nil {
		return nil, err
	}
	st, err := openStore(v)
	if err != nil {
		return nil, err
	}
	logger := slog.Default()
	return &services{
		store:     st,
		catalog:   catalog.New(reg, st, logger),
		evaluator: evaluator.New(reg, st, logger),
		knowledge: knowledge.New(reg, st, logger),
	}, nil
}

func (s *services) Close() error {
	return s.store.Close()
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	svc, err := newServices(cmd.Context(), v)
	if err != nil {
		return err
	}
	defer svc.Close()

	h := handler.New(svc.catalog, svc.evaluator, svc.store, svc.knowledge)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())

	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"provider", v.GetString("llm-provider"),
		"model", v.GetString("llm-model"),
		"response_mode", v.GetString("response-mode"),
		"store", v.GetString("store"),
		"lang", lang,
		"languages", appI18n.Languages(),
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
