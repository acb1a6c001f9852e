// Command whaleflow backtests whale-flow signals against hourly prices and
// serves composite signals over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"whaleflow-lab/internal/config"
	"whaleflow-lab/internal/logging"
)

var (
	v          = config.New()
	cfgFile    string
	appConfig  *config.Config
	rootLogger *zap.Logger
)

// rootCmd is the base command for the whaleflow CLI
var rootCmd = &cobra.Command{
	Use:   "whaleflow",
	Short: "Whale-flow signal backtester and composite scorer",
	Long: `whaleflow turns large exchange transfers into hourly BULLISH/BEARISH
signals, backtests them against hourly prices, and scores tokens on a
composite of on-chain flow, momentum, sentiment and community data.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json, console)")
	flags.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")
	flags.String("clickhouse-dsn", "", "ClickHouse connection string (price tick archive)")
	flags.String("redis-addr", "", "Redis address for the price and FX cache")

	mustBind(flags, map[string]string{
		"log.level":          "log-level",
		"log.format":         "log-format",
		"storage.use_memory": "use-memory",
		"postgres.dsn":       "postgres-dsn",
		"clickhouse.dsn":     "clickhouse-dsn",
		"redis.addr":         "redis-addr",
	})
}

// mustBind binds viper keys to flags. Unset flags leave config and env values in place.
func mustBind(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := bindFlag(v, flags, key, name); err != nil {
			panic(err)
		}
	}
}

func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) error {
	flag := flags.Lookup(name)
	if flag == nil {
		return fmt.Errorf("flag --%s is not defined", name)
	}
	return v.BindPFlag(key, flag)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	appConfig = cfg
	rootLogger = logger.With(zap.String("command", cmd.Name()))
	return nil
}

func main() {
	err := rootCmd.Execute()
	if rootLogger != nil {
		_ = rootLogger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
