package cli

import (
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/raysh454/comply/internal/app"
)

// Options are the command-line options of complyd. Flags override values
// from the config file; unset flags leave them alone.
type Options struct {
	ConfigPath string `short:"c" long:"config" description:"path to a JSON config file" env:"COMPLY_CONFIG" value-name:"PATH"`
	ListenAddr string `long:"listen-addr" description:"HTTP listen address" env:"COMPLY_LISTEN_ADDR" value-name:"ADDR"`
	DBPath     string `long:"db-path" description:"SQLite database file" env:"COMPLY_DB_PATH" value-name:"PATH"`
	LogLevel   string `long:"log-level" description:"log level to use" env:"COMPLY_LOG_LEVEL" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	Timezone   string `long:"timezone" description:"IANA timezone schedules are evaluated in" value-name:"ZONE"`

	Scheduler struct {
		PollInterval time.Duration `long:"poll-interval" description:"how often to look for due schedules" value-name:"DURATION"`
		Workers      int           `long:"workers" description:"number of concurrent scans" value-name:"N"`
	} `group:"Scheduler Options"`

	Analyzer struct {
		URL     string `long:"analyzer-url" description:"base URL of the analyzer service" env:"COMPLY_ANALYZER_URL" value-name:"URL"`
		Retries int    `long:"analyzer-retries" description:"extra attempts after a transient analyzer failure" value-name:"N"`
	} `group:"Analyzer Options"`

	// RawArgs is the original args slice (useful for debugging/tests).
	RawArgs []string `no-flag:"true"`
}

// ParseArgs parses args (without the program name). It does not read
// os.Args and does not print; --help surfaces as a *flags.Error of type
// flags.ErrHelp.
func ParseArgs(args []string) (*Options, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "complyd"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, &flags.Error{Type: flags.ErrUnknownFlag, Message: "unexpected argument " + rest[0]}
	}
	opts.RawArgs = args
	return &opts, nil
}

// LoadConfig reads the config file named by the options, or the defaults
// when there is none, and applies flag overrides.
func (o *Options) LoadConfig() (*app.Config, error) {
	cfg := app.DefaultConfig()
	if o.ConfigPath != "" {
		var err error
		cfg, err = app.LoadConfig(o.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	if o.ListenAddr != "" {
		cfg.ListenAddr = o.ListenAddr
	}
	if o.DBPath != "" {
		cfg.DBPath = o.DBPath
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Timezone != "" {
		cfg.Timezone = o.Timezone
	}
	if o.Scheduler.PollInterval > 0 {
		cfg.Scheduler.PollIntervalSec = int(o.Scheduler.PollInterval / time.Second)
	}
	if o.Scheduler.Workers > 0 {
		cfg.Dispatcher.Workers = o.Scheduler.Workers
	}
	if o.Analyzer.URL != "" {
		cfg.Analyzer.BaseURL = o.Analyzer.URL
	}
	if o.Analyzer.Retries > 0 {
		cfg.Analyzer.Retries = o.Analyzer.Retries
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
