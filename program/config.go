package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/keilerkonzept/tagscope/chart"
	"github.com/keilerkonzept/tagscope/ingest"
	"github.com/keilerkonzept/tagscope/live"
	"github.com/keilerkonzept/tagscope/logging"
	"github.com/keilerkonzept/tagscope/rank"
)

type Config struct {
	Project string
	Tags    string

	// store
	DBPath      string
	InMemory    bool
	Compression int

	// live view
	BufferCapacity  int
	Density         int
	RefreshInterval time.Duration
	TimeTicks       int

	// activity ranking
	K            int
	Width        int
	Depth        int
	Decay        float64
	DecayLUTSize int
	TickSize     time.Duration
	WindowSize   time.Duration
	FullRefresh  time.Duration
	PartialSize  int
	ItemsFPS     int

	// input
	InputPath   string
	InputFormat string
	MaxLines    int
	Pace        time.Duration
	Simulate    bool
	SimInterval time.Duration
	SimMessages int

	// report
	ReportFrom   string
	ReportTo     string
	ReportOut    string
	ReportWidth  int
	ReportHeight int

	// ui
	ViewSplit    int
	StatsEnabled bool
	StatsWindow  int
	AltScreen    bool
	LogLevel     string
	LogFile      string
	ConfigFile   string
	EnvFile      string
}

func defaultConfig() Config {
	r := rank.DefaultConfig()
	return Config{
		DBPath:      "./data",
		Compression: 2,

		BufferCapacity:  chart.DefaultCapacity,
		RefreshInterval: live.DefaultRefreshInterval,
		TimeTicks:       chart.DefaultTimeTickCount,

		K:            r.K,
		Width:        r.Width,
		Depth:        r.Depth,
		Decay:        r.Decay,
		DecayLUTSize: r.DecayLUTSize,
		TickSize:     r.Tick,
		WindowSize:   r.Window,
		FullRefresh:  r.FullRefresh,
		ItemsFPS:     1,

		InputFormat: "text",
		SimInterval: ingest.DefaultSimInterval,
		SimMessages: ingest.DefaultSimMessages,

		ReportWidth:  1200,
		ReportHeight: 600,

		ViewSplit:    30,
		StatsEnabled: true,
		StatsWindow:  256,
		AltScreen:    true,
		LogLevel:     "info",
		LogFile:      "tagscope.log",
		EnvFile:      ".env",
	}
}

var config = defaultConfig()

func registerFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.Project, "project", c.Project, "Project whose tags are shown")
	fs.StringVar(&c.Tags, "tags", c.Tags, "Comma separated tags; the first one is opened on start")

	fs.StringVar(&c.DBPath, "db", c.DBPath, "Directory of the history database")
	fs.BoolVar(&c.InMemory, "in-memory", c.InMemory, "Keep history in memory only")
	fs.IntVar(&c.Compression, "compression", c.Compression, "History compression level [1,4]")

	fs.IntVar(&c.BufferCapacity, "buffer", c.BufferCapacity, "Live buffer capacity in samples")
	fs.IntVar(&c.Density, "density", c.Density, "Samples per window second (0 = buffer capacity)")
	fs.DurationVar(&c.RefreshInterval, "refresh", c.RefreshInterval, "Live view refresh interval")
	fs.IntVar(&c.TimeTicks, "time-ticks", c.TimeTicks, "Number of time labels under the plot")

	fs.IntVar(&c.K, "k", c.K, "Track the top K most active tags")
	fs.IntVar(&c.Width, "width", c.Width, "Activity sketch width")
	fs.IntVar(&c.Depth, "depth", c.Depth, "Activity sketch depth")
	fs.Float64Var(&c.Decay, "decay", c.Decay, "Activity sketch decay")
	fs.IntVar(&c.DecayLUTSize, "decay-lut-size", c.DecayLUTSize, "Activity sketch decay lookup table size")
	fs.DurationVar(&c.TickSize, "tick", c.TickSize, "Activity window tick size")
	fs.DurationVar(&c.WindowSize, "window", c.WindowSize, "Activity window size")
	fs.DurationVar(&c.FullRefresh, "full-refresh", c.FullRefresh, "How often to rebuild the tag ranking (0 = always)")
	fs.IntVar(&c.PartialSize, "partial-size", c.PartialSize, "How many tags to recount between full refreshes (0 = all visible)")
	fs.IntVar(&c.ItemsFPS, "items-fps", c.ItemsFPS, "Tag list refresh rate (frames per second)")

	fs.StringVar(&c.InputPath, "input", c.InputPath, "Read batches from this file instead of stdin")
	fs.StringVar(&c.InputFormat, "format", c.InputFormat, "Input format: text (\"<tag> <v1,v2,...>\") or json")
	fs.IntVar(&c.MaxLines, "max-lines", c.MaxLines, "Stop after reading this many lines (0 = no limit)")
	fs.DurationVar(&c.Pace, "pace", c.Pace, "Sleep between input lines (e.g. 5ms, 50ms)")
	fs.BoolVar(&c.Simulate, "simulate", c.Simulate, "Feed the tags from the built-in sine simulator")
	fs.DurationVar(&c.SimInterval, "sim-interval", c.SimInterval, "Simulator publish interval")
	fs.IntVar(&c.SimMessages, "sim-messages", c.SimMessages, "Simulator message count (0 = unlimited)")

	fs.StringVar(&c.ReportFrom, "from", c.ReportFrom, "Report range start (2006-01-02T15:04:05[.000000], default 1h before -to)")
	fs.StringVar(&c.ReportTo, "to", c.ReportTo, "Report range end (default now)")
	fs.StringVar(&c.ReportOut, "out", c.ReportOut, "Write the report chart as PNG to this file")
	fs.IntVar(&c.ReportWidth, "out-width", c.ReportWidth, "Report chart width in pixels")
	fs.IntVar(&c.ReportHeight, "out-height", c.ReportHeight, "Report chart height in pixels")

	fs.IntVar(&c.ViewSplit, "view-split", c.ViewSplit, "Split the view at this % of the total screen width [20,80]")
	fs.BoolVar(&c.StatsEnabled, "stats", c.StatsEnabled, "Show runtime performance stats")
	fs.IntVar(&c.StatsWindow, "stats-window", c.StatsWindow, "Number of recent samples kept per metric")
	fs.BoolVar(&c.AltScreen, "alt-screen", c.AltScreen, "Use the terminal alternate screen buffer")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Log file used while the terminal UI runs")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "Config file (default ./tagscope.yaml if present)")
	fs.StringVar(&c.EnvFile, "env-file", c.EnvFile, "Dotenv file with TAGSCOPE_* variables, loaded if present")
}

var commands = []string{"view", "report", "simulate"}

// splitCommand peels an optional subcommand off args.
func splitCommand(args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "view", args, nil
	}
	for _, c := range commands {
		if args[0] == c {
			return c, args[1:], nil
		}
	}
	return "", nil, fmt.Errorf("unknown command %q (want one of %s)", args[0], strings.Join(commands, ", "))
}

// loadConfig resolves the configuration with precedence: flags given on the
// command line, then TAGSCOPE_* environment variables, then the config
// file, then defaults.
func loadConfig(args []string) (Config, string, error) {
	cmd, rest, err := splitCommand(args)
	if err != nil {
		return Config{}, "", err
	}
	c := defaultConfig()
	fs := flag.NewFlagSet("tagscope "+cmd, flag.ContinueOnError)
	registerFlags(fs, &c)
	if err := fs.Parse(rest); err != nil {
		return Config{}, "", err
	}
	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	// Variables already in the environment win over the dotenv file.
	if err := godotenv.Load(c.EnvFile); err != nil {
		if explicit["env-file"] || !errors.Is(err, os.ErrNotExist) {
			return Config{}, "", fmt.Errorf("load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("TAGSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
	} else {
		v.SetConfigName("tagscope")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.ConfigFile != "" || !errors.As(err, &notFound) {
			return Config{}, "", fmt.Errorf("read config: %w", err)
		}
	} else {
		logging.Debugf("Using config file %s", v.ConfigFileUsed())
	}

	var setErr error
	fs.VisitAll(func(f *flag.Flag) {
		if setErr != nil || explicit[f.Name] || f.Name == "config" || f.Name == "env-file" || !v.IsSet(f.Name) {
			return
		}
		value := v.GetString(f.Name)
		if f.Name == "tags" {
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		}
		if err := fs.Set(f.Name, value); err != nil {
			setErr = fmt.Errorf("config key %q: %w", f.Name, err)
		}
	})
	if setErr != nil {
		return Config{}, "", setErr
	}
	return c, cmd, nil
}

func (c Config) tagList() []string {
	var tags []string
	for _, t := range strings.Split(c.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (c Config) rankConfig() rank.Config {
	return rank.Config{
		K:            c.K,
		Width:        c.Width,
		Depth:        c.Depth,
		Decay:        c.Decay,
		DecayLUTSize: c.DecayLUTSize,
		Tick:         c.TickSize,
		Window:       c.WindowSize,
		FullRefresh:  c.FullRefresh,
		PartialSize:  c.PartialSize,
	}
}

func validateAndNormalizeConfig(c *Config, cmd string) error {
	if c.Project == "" {
		return fmt.Errorf("-project is required")
	}
	if c.Compression < 1 || c.Compression > 4 {
		return fmt.Errorf("-compression must be in [1,4]")
	}
	if c.BufferCapacity < 2 {
		return fmt.Errorf("-buffer must be >= 2")
	}
	if c.Density < 0 {
		return fmt.Errorf("-density must be >= 0")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("-refresh must be > 0")
	}
	if c.TimeTicks < 2 {
		return fmt.Errorf("-time-ticks must be >= 2")
	}
	if err := c.rankConfig().Validate(); err != nil {
		return err
	}
	if c.ItemsFPS < 1 {
		return fmt.Errorf("-items-fps must be >= 1")
	}
	if _, err := ingest.ParseFormat(c.InputFormat); err != nil {
		return err
	}
	if c.MaxLines < 0 {
		return fmt.Errorf("-max-lines must be >= 0")
	}
	if c.Pace < 0 {
		return fmt.Errorf("-pace must be >= 0")
	}
	if c.SimInterval <= 0 {
		return fmt.Errorf("-sim-interval must be > 0")
	}
	if c.SimMessages < 0 {
		return fmt.Errorf("-sim-messages must be >= 0")
	}
	if (c.Simulate || cmd == "simulate") && len(c.tagList()) == 0 {
		return fmt.Errorf("the simulator needs at least one tag in -tags")
	}
	if cmd == "report" && len(c.tagList()) == 0 {
		return fmt.Errorf("report needs at least one tag in -tags")
	}
	if c.ReportWidth < 100 || c.ReportHeight < 100 {
		return fmt.Errorf("-out-width and -out-height must be >= 100")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	c.ViewSplit = min(80, max(20, c.ViewSplit))
	c.StatsWindow = max(16, c.StatsWindow)
	return nil
}
