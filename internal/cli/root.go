package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X github.com/siherrmann/factual/internal/cli.Version=..."
var Version = "dev"

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "factual",
	Short: "Factual - verify claims against a corpus of trusted facts",
	Long: `Factual checks a short claim against a corpus of labeled facts.

The nearest facts are retrieved by embedding similarity, every fact is
scored against the claim with a natural language inference model, and
the claim is reported as likely true, likely false or not verifiable,
together with the facts that support the verdict.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "factual %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.factual/config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.StringArray("corpus", DefaultCorpus, "corpus file in JSON or JSONL format, repeatable")
	flags.String("backend", BackendLocal, "oracle backend (local, openai)")
	flags.Int("concurrency", 4, "concurrent NLI calls per claim")
	flags.Bool("db", false, "mirror the corpus into PostgreSQL with pgvector and retrieve through it (DB_* env)")
	flags.String("db-index", "none", "pgvector index type (none, hnsw, ivfflat)")

	rootCmd.AddCommand(versionCmd)
}

// bindFlags binds the flags to their viper keys
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("corpus", flags.Lookup("corpus"))
	_ = viper.BindPFlag("backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
	_ = viper.BindPFlag("database.enabled", flags.Lookup("db"))
	_ = viper.BindPFlag("database.index", flags.Lookup("db-index"))
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
}

// initConfig reads in the .env file, the config file and ENV variables
func initConfig() {
	_ = godotenv.Load()
	bindFlags()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.factual")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// FACTUAL_LOG_LEVEL, FACTUAL_OPENAI_API_KEY, ...
	viper.SetEnvPrefix("FACTUAL")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}
