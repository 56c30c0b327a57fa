package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/allyai/AllyBot/internal/api"
	"github.com/allyai/AllyBot/internal/genai"
	"github.com/allyai/AllyBot/internal/lockfile"
	"github.com/allyai/AllyBot/internal/messaging"
	"github.com/allyai/AllyBot/internal/store"
	"github.com/allyai/AllyBot/internal/util"
	"github.com/allyai/AllyBot/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for AllyBot state data
	DefaultStateDir = "/var/lib/allybot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "allybot.db"
	// DefaultWhatsmeowDBFileName is the default whatsmeow device database filename
	DefaultWhatsmeowDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	waOpts := buildWhatsAppOptions(flags)
	twilioOpts := buildTwilioOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping AllyBot with configured modules")
	slog.Debug("Final configuration",
		"state_dir", *flags.stateDir,
		"dsn_set", *flags.dbDSN != "",
		"api_addr", *flags.apiAddr,
		"backend", *flags.backend)
	if err := api.Run(storeOpts, genaiOpts, waOpts, twilioOpts, apiOpts); err != nil {
		slog.Error("AllyBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("AllyBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL  string
	WhatsAppDSN  string
	StateDir     string
	OpenAIKey    string
	APIAddr      string
	Backend      string
	TwilioSID    string
	TwilioToken  string
	TwilioFrom   string
	ReminderCron string
	NumericCode  bool
	Verbose      bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	waDSN        *string
	openaiKey    *string
	apiAddr      *string
	backend      *string
	twilioSID    *string
	twilioToken  *string
	twilioFrom   *string
	reminderCron *string
	qrOutput     *string
	numeric      *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("ALLYBOT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:     os.Getenv("ALLYBOT_STATE_DIR"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		Backend:      os.Getenv("MESSAGING_BACKEND"),
		TwilioSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:   os.Getenv("TWILIO_FROM_NUMBER"),
		ReminderCron: os.Getenv("DAILY_REMINDER_CRON"),
		NumericCode:  util.ParseBoolEnv("WHATSAPP_NUMERIC_CODE", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ALLYBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// No database URL means SQLite files under the state directory.
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsmeowDBFileName)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"ALLYBOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.Backend,
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for AllyBot data (overrides $ALLYBOT_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the profile store (overrides $DATABASE_URL)"),
		waDSN:        flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the whatsmeow device store (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		backend:      flag.String("messaging-backend", config.Backend, "messaging backend: twilio or whatsapp (overrides $MESSAGING_BACKEND)"),
		twilioSID:    flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:  flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:   flag.String("twilio-from", config.TwilioFrom, "Twilio WhatsApp sender number (overrides $TWILIO_FROM_NUMBER)"),
		reminderCron: flag.String("reminder-cron", config.ReminderCron, "cron expression for the daily lesson reminder (overrides $DAILY_REMINDER_CRON, empty disables)"),
		qrOutput:     flag.String("qr-output", "", "path to write login QR code"),
		numeric:      flag.Bool("numeric-code", config.NumericCode, "use numeric login code instead of QR code"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"waDSN_set", *flags.waDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"backend", *flags.backend,
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	for _, dsn := range []string{*flags.dbDSN, *flags.waDSN} {
		if dsn == "" || store.DetectDSNType(dsn) == "postgres" {
			continue
		}
		dir := filepath.Dir(dsn)
		slog.Debug("Creating state directory for file-based database", "state_dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		slog.Debug("Configuring profile store", "dsn_type", store.DetectDSNType(*flags.dbDSN))
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.waDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.waDSN))
	}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	return waOpts
}

// buildTwilioOptions constructs Twilio configuration options
func buildTwilioOptions(flags Flags) []messaging.TwilioOption {
	var twilioOpts []messaging.TwilioOption
	if *flags.twilioSID != "" {
		twilioOpts = append(twilioOpts, messaging.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		twilioOpts = append(twilioOpts, messaging.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		twilioOpts = append(twilioOpts, messaging.WithFromWhats(*flags.twilioFrom))
	}
	return twilioOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.backend != "" {
		apiOpts = append(apiOpts, api.WithMessagingBackend(*flags.backend))
	}
	if *flags.reminderCron != "" {
		apiOpts = append(apiOpts, api.WithDailyReminderCron(*flags.reminderCron))
	}
	return apiOpts
}
