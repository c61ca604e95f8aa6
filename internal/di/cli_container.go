package di

import (
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/outreach-tracker/internal/adapters/intake"
	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/factory"
	"github.com/mikey/outreach-tracker/internal/logging"
)

// CLIFlags contains all command line flags for the reply-check application
type CLIFlags struct {
	// Store flags
	StoreType  string
	SQLitePath string
	MySQLDSN   string

	// Input flags
	InputFile  string
	Apply      bool
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}
	registerFlags(flag.CommandLine, flags)
	flag.Parse()
	return flags
}

func registerFlags(fs *flag.FlagSet, flags *CLIFlags) {
	// Store flags
	fs.StringVar(&flags.StoreType, "store-type", "sqlite", "Contact store type (memory, sqlite, mysql)")
	fs.StringVar(&flags.SQLitePath, "sqlite-path", "/data/outreach.db", "Path to the SQLite contact store")
	fs.StringVar(&flags.MySQLDSN, "mysql-dsn", "", "MySQL DSN for the contact store")

	// Input flags
	fs.StringVar(&flags.InputFile, "file", "", "Input message file (use stdin if not specified)")
	fs.BoolVar(&flags.Apply, "apply", false, "Mark the sender as replied when the message is a reply")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging and output")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			cfg.GetViper().Set("cli.apply", flags.Apply)
			cfg.GetViper().Set("cli.verbose", flags.Verbose)
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register CLI intake
	if err := container.Provide(func(f *factory.IntakeFactory) *intake.CLIIntake {
		return f.CreateCLIIntake()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set some cli specific settings
	v.Set("cli.apply", flags.Apply)
	v.Set("cli.verbose", flags.Verbose)

	// Set store configuration
	v.Set("store.type", flags.StoreType)
	v.Set("store.sqlite_path", flags.SQLitePath)
	if flags.MySQLDSN != "" {
		v.Set("store.mysql_dsn", flags.MySQLDSN)
	}

	return config.NewFromViper(v)
}
