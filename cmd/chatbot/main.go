// ABOUTME: Entry point for the multi-domain chatbot server
// ABOUTME: Wires config, stores, capabilities, orchestrator, and HTTP surface

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability/city"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability/product"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability/research"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/capability/weather"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/config"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/httpapi"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/llm"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/orchestrator"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/session"
	"github.com/canuysal/multidomain-chatbot-challenge/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _           _   _           _
   ___| |__   __ _| |_| |__   ___ | |_
  / __| '_ \ / _' | __| '_ \ / _ \| __|
 | (__| | | | (_| | |_| |_) | (_) | |_
  \___|_| |_|\__,_|\__|_.__/ \___/ \__|
`

// getConfigPath returns the path to the chatbot config file.
// Priority: CHATBOT_CONFIG env var > ./config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CHATBOT_CONFIG"); envPath != "" {
		return envPath
	}
	return "config.yaml"
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: chatbot <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the chatbot server")
		fmt.Println("  init                     Create a new config file interactively")
		fmt.Println("  bootstrap [--seed FILE]  Create the product database, optionally seeded from JSON")
		fmt.Println("  health                   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when no
// file exists so the server runs out of the box.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) && os.Getenv("CHATBOT_CONFIG") == "" {
		return config.Default(), "(defaults)", nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.LLM.Model)
	green.Print("    ▶ ")
	fmt.Printf("Sessions: %s\n", cfg.Session.Backend)
	fmt.Println()

	logger.Info("starting chatbot",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"model", cfg.LLM.Model,
	)

	products, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening product store: %w", err)
	}
	defer products.Close()

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer sessions.Close()

	registry := capability.NewRegistry(capability.Options{
		Modules: []capability.Module{
			city.New(cfg.Capabilities.City.BaseURL),
			weather.New(cfg.Capabilities.Weather.APIKey, cfg.Capabilities.Weather.BaseURL),
			research.New(cfg.Capabilities.Research.BaseURL),
			product.New(products),
		},
		AllowList:       cfg.Capabilities.Active,
		DispatchTimeout: cfg.Capabilities.DispatchTimeout,
		Logger:          logger,
	})

	model := llm.NewClient(llm.Options{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		MaxRetries:     cfg.LLM.MaxRetries,
		RequestTimeout: cfg.LLM.RequestTimeout,
		Logger:         logger,
	})

	orch := orchestrator.New(orchestrator.Options{
		Model:     model,
		Registry:  registry,
		Sessions:  sessions,
		MaxRounds: cfg.LLM.MaxRounds,
		Logger:    logger,
	})

	server := httpapi.NewServer(httpapi.Options{
		Addr:         cfg.Server.HTTPAddr,
		Orchestrator: orch,
		Registry:     registry,
		Logger:       logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendSQLite:
		path := filepath.Join(filepath.Dir(cfg.Database.Path), "sessions.db")
		s, err := session.NewSQLiteStore(path, cfg.Session.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		return s, nil
	case config.SessionBackendRedis:
		s, err := session.NewRedisStore(ctx, cfg.Session.RedisAddr, cfg.Session.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("connecting session store: %w", err)
		}
		return s, nil
	default:
		return session.NewMemoryStore(cfg.Session.HistoryLimit), nil
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runBootstrap creates the product database and optionally seeds it from
// a JSON file: chatbot bootstrap --seed products.json
func runBootstrap(ctx context.Context) error {
	var seedPath string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--seed" || arg == "-s":
			if i+1 >= len(args) {
				return fmt.Errorf("--seed requires a value")
			}
			seedPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--seed="):
			seedPath = strings.TrimPrefix(arg, "--seed=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	cyan.Printf("  Using config: %s\n", configPath)

	products, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer products.Close()

	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	if seedPath != "" {
		n, err := products.SeedFromFile(ctx, seedPath)
		if err != nil {
			return fmt.Errorf("seeding products: %w", err)
		}
		if n > 0 {
			green.Printf("  ✓ Seeded %d products from %s\n", n, seedPath)
		} else {
			cyan.Println("  Catalog already seeded, nothing to do")
		}
	}

	count, err := products.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting products: %w", err)
	}

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Printf("  Products in catalog: %d\n", count)
	fmt.Println()
	fmt.Println("  To start the server:")
	fmt.Println("    chatbot serve")
	fmt.Println()

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("chatbot configuration setup")
	fmt.Println("===========================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "0.0.0.0:8000")

	fmt.Println("\n--- Model Configuration ---")
	model := prompt(reader, "Model", "gpt-4o")
	baseURL := prompt(reader, "API base URL", "https://api.openai.com/v1")
	maxRounds := prompt(reader, "Max tool rounds per turn", "5")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", "data/chatbot.db")

	fmt.Println("\n--- Session Configuration ---")
	backend := prompt(reader, "Session backend (memory/sqlite/redis)", "memory")
	var redisAddr string
	if backend == "redis" {
		redisAddr = prompt(reader, "Redis address", "localhost:6379")
	}

	fmt.Println("\n--- Capability Configuration ---")
	active := prompt(reader, "Active capabilities (comma-separated, empty for all)", "")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# chatbot configuration\n")
	cfg.WriteString("# Generated by chatbot init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("llm:\n")
	cfg.WriteString("  api_key: \"${OPENAI_API_KEY}\"\n")
	cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	cfg.WriteString(fmt.Sprintf("  model: \"%s\"\n", model))
	cfg.WriteString(fmt.Sprintf("  max_rounds: %s\n", maxRounds))
	cfg.WriteString("  request_timeout: \"60s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString(fmt.Sprintf("  backend: \"%s\"\n", backend))
	if redisAddr != "" {
		cfg.WriteString(fmt.Sprintf("  redis_addr: \"%s\"\n", redisAddr))
	}
	cfg.WriteString("  history_limit: 200\n")
	cfg.WriteString("\n")

	cfg.WriteString("capabilities:\n")
	if active != "" {
		cfg.WriteString(fmt.Sprintf("  active: \"%s\"\n", active))
	}
	cfg.WriteString("  dispatch_timeout: \"30s\"\n")
	cfg.WriteString("  weather:\n")
	cfg.WriteString("    api_key: \"${OPENWEATHERMAP_API_KEY}\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if configDir != "." {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  chatbot serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
