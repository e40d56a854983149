package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/api"
	"github.com/ReclaimHQ/ReclaimBot/internal/bot"
	"github.com/ReclaimHQ/ReclaimBot/internal/convstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/engine"
	"github.com/ReclaimHQ/ReclaimBot/internal/flowconfig"
	"github.com/ReclaimHQ/ReclaimBot/internal/handlers"
	"github.com/ReclaimHQ/ReclaimBot/internal/itemstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/lockfile"
	"github.com/ReclaimHQ/ReclaimBot/internal/messaging"
	"github.com/ReclaimHQ/ReclaimBot/internal/registry"
	"github.com/ReclaimHQ/ReclaimBot/internal/scheduler"
	"github.com/ReclaimHQ/ReclaimBot/internal/twiliowhatsapp"
	"github.com/ReclaimHQ/ReclaimBot/internal/util"
	"github.com/ReclaimHQ/ReclaimBot/internal/whatsapp"
	"github.com/joho/godotenv"
	backend "github.com/redis/go-redis/v9"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ReclaimBot state data
	DefaultStateDir = "/var/lib/reclaimbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "reclaimbot.db"
	// DefaultFlowsPath is the default flow definitions document
	DefaultFlowsPath = "config/flows.yaml"
	// DefaultHandlersPath is the default handler configuration document
	DefaultHandlersPath = "config/handlers.yaml"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Guard against two instances sharing the same state directory.
	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ReclaimBot with configured modules")
	if err := run(ctx, flags); err != nil {
		slog.Error("ReclaimBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ReclaimBot exited successfully")
}

// run wires all modules together and serves until the context is cancelled.
func run(ctx context.Context, flags Flags) error {
	// Flow definitions load first: the process must not serve traffic with a
	// broken definition set.
	flows, err := flowconfig.Load(*flags.flowsPath)
	if err != nil {
		return err
	}
	slog.Info("Flow definitions loaded", "count", len(flows.Flows()))

	items, err := itemstore.NewStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer items.Close()

	redisClient := backend.NewClient(&backend.Options{Addr: *flags.redisAddr})
	defer redisClient.Close()
	contexts := convstore.NewRedisStore(redisClient, convstore.WithTTL(*flags.contextTTL))
	locker := convstore.NewRedisLocker(redisClient, "")

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(scheduler.DefaultRetentionSchedule,
		scheduler.ReportRetentionJob(items, scheduler.DefaultRetentionAge)); err != nil {
		return err
	}

	msgService, twilioService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}

	services := registry.NewServiceRegistry()
	services.Register(handlers.ServiceItemStore, items)
	if notifier, ok := msgService.(handlers.Notifier); ok {
		services.Register(handlers.ServiceNotifier, notifier)
	}
	// Registered even when empty: the handlers document declares the
	// dependency, and the ticket handler skips notification without a contact.
	services.Register("support_contact", *flags.supportContact)

	reg := registry.New(services)
	handlers.RegisterAll(reg)
	if err := reg.LoadConfig(*flags.handlersPath); err != nil {
		return err
	}
	slog.Info("Handler registry loaded", "path", *flags.handlersPath)

	eng := engine.New(flows, reg)
	machine := bot.NewStateMachine(contexts, bot.WithContextTTL(*flags.contextTTL))
	processor := bot.NewProcessor(machine, eng, flows, bot.WithUserLocker(locker))

	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	dispatcher := messaging.NewDispatcher(msgService, processor.Process,
		messaging.WithWorkerCount(*flags.workers))
	go dispatcher.Run(ctx)

	apiOpts := []api.ServerOption{api.WithAddr(*flags.apiAddr)}
	if twilioService != nil {
		apiOpts = append(apiOpts, api.WithTwilioWebhook(twilioService.WebhookHandler))
	}
	server := api.NewServer(flows, apiOpts...)
	return server.Run(ctx)
}

// buildMessagingService constructs the configured channel adapter. The
// *messaging.TwilioService is returned separately when used so its webhook
// can be mounted.
func buildMessagingService(flags Flags) (messaging.Service, *messaging.TwilioService, error) {
	switch *flags.channel {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		service := messaging.NewTwilioService(client)
		slog.Info("Messaging channel configured", "channel", "twilio")
		return service, service, nil
	default:
		client, err := whatsapp.NewClient(buildWhatsAppOptions(flags)...)
		if err != nil {
			return nil, nil, err
		}
		service := messaging.NewWhatsAppService(client)
		slog.Info("Messaging channel configured", "channel", "whatsmeow")
		return service, nil, nil
	}
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseURL    string
	RedisAddr      string
	FlowsPath      string
	HandlersPath   string
	APIAddr        string
	Channel        string
	SupportContact string
	WhatsAppDSN    string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput       *string
	numeric        *bool
	stateDir       *string
	dbDSN          *string
	redisAddr      *string
	flowsPath      *string
	handlersPath   *string
	apiAddr        *string
	channel        *string
	supportContact *string
	whatsappDSN    *string
	contextTTL     *time.Duration
	workers        *int
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("RECLAIMBOT_DEBUG", false) {
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
		StateDir:       os.Getenv("RECLAIMBOT_STATE_DIR"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		FlowsPath:      os.Getenv("FLOWS_CONFIG"),
		HandlersPath:   os.Getenv("HANDLERS_CONFIG"),
		APIAddr:        os.Getenv("API_ADDR"),
		Channel:        os.Getenv("MESSAGING_CHANNEL"),
		SupportContact: os.Getenv("SUPPORT_CONTACT"),
		WhatsAppDSN:    os.Getenv("WHATSAPP_DB_DSN"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No RECLAIMBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.RedisAddr == "" {
		config.RedisAddr = "localhost:6379"
	}
	if config.FlowsPath == "" {
		config.FlowsPath = DefaultFlowsPath
	}
	if config.HandlersPath == "" {
		config.HandlersPath = DefaultHandlersPath
	}
	if config.Channel == "" {
		config.Channel = "whatsmeow"
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, "whatsmeow.db")
	}

	slog.Debug("environment variables loaded",
		"RECLAIMBOT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_ADDR", config.RedisAddr,
		"FLOWS_CONFIG", config.FlowsPath,
		"HANDLERS_CONFIG", config.HandlersPath,
		"API_ADDR", config.APIAddr,
		"MESSAGING_CHANNEL", config.Channel,
		"SUPPORT_CONTACT_SET", config.SupportContact != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:       flag.String("qr-output", "", "path to write login QR code"),
		numeric:        flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for ReclaimBot data (overrides $RECLAIMBOT_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "item database DSN (overrides $DATABASE_URL)"),
		redisAddr:      flag.String("redis-addr", config.RedisAddr, "Redis address for conversation contexts (overrides $REDIS_ADDR)"),
		flowsPath:      flag.String("flows", config.FlowsPath, "flow definitions document (overrides $FLOWS_CONFIG)"),
		handlersPath:   flag.String("handlers", config.HandlersPath, "handler configuration document (overrides $HANDLERS_CONFIG)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		channel:        flag.String("channel", config.Channel, "messaging channel: whatsmeow or twilio (overrides $MESSAGING_CHANNEL)"),
		supportContact: flag.String("support-contact", config.SupportContact, "phone number notified about support tickets (overrides $SUPPORT_CONTACT)"),
		whatsappDSN:    flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)"),
		contextTTL:     flag.Duration("context-ttl", util.ParseDurationEnv("CONTEXT_TTL", convstore.DefaultTTL), "conversation context expiry (overrides $CONTEXT_TTL)"),
		workers:        flag.Int("workers", messaging.DefaultWorkerCount, "dispatcher worker count"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"redisAddr", *flags.redisAddr,
		"flowsPath", *flags.flowsPath,
		"handlersPath", *flags.handlersPath,
		"apiAddr", *flags.apiAddr,
		"channel", *flags.channel,
		"contextTTL", *flags.contextTTL,
		"workers", *flags.workers)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if itemstore.DetectDSNType(*flags.dbDSN) == "sqlite3" {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return os.MkdirAll(*flags.stateDir, 0755)
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.whatsappDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDSN))
	}
	return waOpts
}
