// ABOUTME: Entry point for the hallway chat server
// ABOUTME: Provides serve, init, bootstrap and health commands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
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
	"golang.org/x/crypto/bcrypt"

	"github.com/hallway-chat/hallway/internal/config"
	"github.com/hallway-chat/hallway/internal/server"
	"github.com/hallway-chat/hallway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _           _ _
 | |__   __ _| | |_      ____ _ _   _
 | '_ \ / _' | | \ \ /\ / / _' | | | |
 | | | | (_| | | |\ V  V / (_| | |_| |
 |_| |_|\__,_|_|_| \_/\_/ \__,_|\__, |
                                |___/
`

// getConfigPath returns the path to the hallway config file.
// Priority: HALLWAY_CONFIG env var > XDG_CONFIG_HOME/hallway/hallway.yaml > ~/.config/hallway/hallway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("HALLWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "hallway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "hallway", "hallway.yaml")
}

// getDataPath returns the path to the hallway data directory.
// Priority: XDG_DATA_HOME/hallway > ~/.local/share/hallway
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "hallway")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: hallway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                              Start the chat server")
		fmt.Println("  init                               Create a new config file interactively")
		fmt.Println("  bootstrap --username U --email E   Create config and initial admin user")
		fmt.Println("  health                             Check server health")
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

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	if !cfg.SMTP.Enabled {
		yellow.Print("    ▶ ")
		fmt.Println("SMTP:     disabled (verification mail goes to the log)")
	}

	fmt.Println()

	logger.Info("starting hallway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Create and run server
	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
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
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Make HTTP request to health endpoint with context
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

// bootstrapArgs holds the parsed bootstrap command flags.
type bootstrapArgs struct {
	username string
	email    string
}

// parseBootstrapArgs parses bootstrap flags, supporting both
// "--flag value" and "--flag=value" formats.
func parseBootstrapArgs(args []string) (*bootstrapArgs, error) {
	parsed := &bootstrapArgs{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--username" || arg == "-u":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--username requires a value")
			}
			parsed.username = args[i+1]
			i++
		case strings.HasPrefix(arg, "--username="):
			parsed.username = strings.TrimPrefix(arg, "--username=")
		case arg == "--email" || arg == "-e":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--email requires a value")
			}
			parsed.email = args[i+1]
			i++
		case strings.HasPrefix(arg, "--email="):
			parsed.email = strings.TrimPrefix(arg, "--email=")
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	parsed.username = strings.TrimSpace(parsed.username)
	parsed.email = strings.TrimSpace(parsed.email)
	if parsed.username == "" {
		return nil, fmt.Errorf("--username flag is required")
	}
	if parsed.email == "" {
		return nil, fmt.Errorf("--email flag is required")
	}
	return parsed, nil
}

// ensureBootstrapConfig loads the config, creating one with a random
// JWT secret if none exists yet.
func ensureBootstrapConfig(configPath, dbPath string) (*config.Config, error) {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Generate random JWT secret
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return nil, fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}

		configContent := fmt.Sprintf(`# hallway configuration
# Generated by hallway bootstrap

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

auth:
  jwt_secret: "%s"
  session_ttl: "168h"

smtp:
  enabled: false

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

		if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
			return nil, fmt.Errorf("writing config file: %w", err)
		}

		green.Printf("  ✓ Created config: %s\n", configPath)
		return config.Load(configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cyan.Printf("  Using existing config: %s\n", configPath)
	return cfg, nil
}

// runBootstrap performs first-time setup of the server:
// 1. Creates config file with random JWT secret (if not exists)
// 2. Creates the database and the initial admin user
// 3. Prints the generated admin password once
//
// This is a one-command setup: hallway bootstrap --username admin --email admin@example.com
func runBootstrap(ctx context.Context) error {
	args, err := parseBootstrapArgs(os.Args[2:])
	if err != nil {
		return err
	}

	configPath := getConfigPath()
	dbPath := filepath.Join(getDataPath(), "hallway.db")

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cfg, err := ensureBootstrapConfig(configPath, dbPath)
	if err != nil {
		return err
	}

	// Open the store directly
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	// Refuse to bootstrap twice
	existing, err := s.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("checking users: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("bootstrap already complete: %d user(s) exist", len(existing))
	}

	// Generate a random password and create the admin account
	passwordBytes := make([]byte, 18)
	if _, err := rand.Read(passwordBytes); err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	password := base64.URLEncoding.EncodeToString(passwordBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	admin := &store.User{
		Username:      args.username,
		Email:         args.email,
		PasswordHash:  string(hash),
		EmailVerified: true,
		Admin:         true,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	green.Printf("  ✓ Created admin user: %s\n", args.username)

	// Print results
	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Admin Account")
	cyan.Println("  -------------")
	fmt.Printf("  Username: %s\n", args.username)
	fmt.Printf("  Email:    %s\n", args.email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	yellow.Println("  The password is shown only once - store it now.")
	fmt.Println()
	yellow.Println("  Ready to go:")
	fmt.Println("    hallway serve    # start the server")
	fmt.Println()

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("hallway configuration setup")
	fmt.Println("===========================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "hallway.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Server configuration
	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")
	baseURL := prompt(reader, "External base URL (for verification links)", "")

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Auth
	fmt.Println("\n--- Auth Configuration ---")
	jwtSecret := prompt(reader, "JWT secret (leave empty to generate)", "")
	if jwtSecret == "" {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)
		fmt.Println("Generated a random JWT secret.")
	}

	// SMTP
	fmt.Println("\n--- SMTP Configuration ---")
	enableSMTP := prompt(reader, "Enable SMTP mail delivery?", "no")
	smtpEnabled := strings.ToLower(enableSMTP) == "yes" || strings.ToLower(enableSMTP) == "y"

	var smtpHost, smtpPort, smtpFrom, smtpUser, smtpPass string
	if smtpEnabled {
		smtpHost = prompt(reader, "SMTP host", "localhost")
		smtpPort = prompt(reader, "SMTP port", "587")
		smtpFrom = prompt(reader, "From address", "hallway@localhost")
		smtpUser = prompt(reader, "SMTP username (leave empty for none)", "")
		smtpPass = prompt(reader, "SMTP password", "")
	}

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# hallway configuration\n")
	cfg.WriteString("# Generated by hallway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	if baseURL != "" {
		cfg.WriteString(fmt.Sprintf("  base_url: \"%s\"\n", baseURL))
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
	cfg.WriteString("  session_ttl: \"168h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("smtp:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", smtpEnabled))
	if smtpEnabled {
		cfg.WriteString(fmt.Sprintf("  host: \"%s\"\n", smtpHost))
		cfg.WriteString(fmt.Sprintf("  port: %s\n", smtpPort))
		cfg.WriteString(fmt.Sprintf("  from: \"%s\"\n", smtpFrom))
		if smtpUser != "" {
			cfg.WriteString(fmt.Sprintf("  username: \"%s\"\n", smtpUser))
			cfg.WriteString(fmt.Sprintf("  password: \"%s\"\n", smtpPass))
		}
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  hallway serve\n")

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
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
