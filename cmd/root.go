package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "mentor-matcher"
)

type Config struct {
	Store  StoreConfig  `mapstructure:"store"`
	Server ServerConfig `mapstructure:"server"`
	Tools  ToolsConfig  `mapstructure:"tools"`
	AI     AIConfig     `mapstructure:"ai"`
}

type StoreConfig struct {
	// Driver is either "sqlite" or "memory".
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	ProfilesFile string `mapstructure:"profiles-file"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
}

type ToolsConfig struct {
	MaxAttempts int `mapstructure:"max-attempts"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Gemini   GeminiConfig  `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "mentor-matcher recommends mentors to mentees and runs the invitation workflow",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	viper.SetEnvPrefix("MENTOR_MATCHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.path", app+".db")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("tools.max-attempts", 2)
	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", "30s")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 2000)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is mentor-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("store", "", "store driver: sqlite or memory")
	rootCmd.PersistentFlags().String("db", "", "path to the sqlite database")
	rootCmd.PersistentFlags().String("profiles", "", "yaml file with profiles to seed the store with")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("store.profiles-file", rootCmd.PersistentFlags().Lookup("profiles"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Every setting has a default, so a missing config file is fine unless it was asked for explicitly.
	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && (cfgFile != "" || !errors.As(err, &notFound)) {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
