package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "hr-screener"

	defaultResume         = "data/resumes/sample_resume.pdf"
	defaultJobDescription = "We are looking for Gen AI engineer with expertise in Python and machine learning."
)

type Config struct {
	Resume     string          `mapstructure:"resume"`
	JobURL     string          `mapstructure:"job-url"`
	JobTitle   string          `mapstructure:"job-title"`
	UploadsDir string          `mapstructure:"uploads-dir"`
	Fetch      FetchConfig     `mapstructure:"fetch"`
	Extract    ExtractConfig   `mapstructure:"extract"`
	Screening  ScreeningConfig `mapstructure:"screening"`
	AI         AIConfig        `mapstructure:"ai"`
	Calendar   CalendarConfig  `mapstructure:"calendar"`
	Cache      CacheConfig     `mapstructure:"cache"`
}

type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user-agent"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	Burst             int           `mapstructure:"burst"`
}

type ExtractConfig struct {
	OCR       bool   `mapstructure:"ocr"`
	Tesseract string `mapstructure:"tesseract"`
	PDFToPPM  string `mapstructure:"pdftoppm"`
	Language  string `mapstructure:"language"`
}

type ScreeningConfig struct {
	MinimumSimilarity float64 `mapstructure:"minimum-similarity"`
	GateOnSimilarity  bool    `mapstructure:"gate-on-similarity"`
}

type AIConfig struct {
	Provider            string       `mapstructure:"provider"`
	MinimumPassingScore int          `mapstructure:"minimum-passing-score"`
	Gemini              GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
	MaxLogLength   int    `mapstructure:"max-log-length"`
	Backend        string `mapstructure:"backend"`
	Project        string `mapstructure:"project"`
	Location       string `mapstructure:"location"`
}

type CalendarConfig struct {
	CredentialsFile string        `mapstructure:"credentials-file"`
	TokenStore      string        `mapstructure:"token-store"`
	TokenFile       string        `mapstructure:"token-file"`
	KeyringAccount  string        `mapstructure:"keyring-account"`
	CalendarID      string        `mapstructure:"calendar-id"`
	Timezone        string        `mapstructure:"timezone"`
	Duration        time.Duration `mapstructure:"duration"`
	RecruiterEmail  string        `mapstructure:"recruiter-email"`
}

type CacheConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max-entries"`
}

var (
	// Used for flags.
	cfgFile string
	envFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hr-screener screens resumes against a job posting and books interviews for good matches",
	}
)

// Execute executes the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	envs := map[string]string{
		"ai.gemini.api-key":         "GEMINI_API_KEY",
		"ai.gemini.api-key-file":    "GEMINI_API_KEY_FILE",
		"calendar.credentials-file": "HR_CALENDAR_CREDENTIALS",
		"calendar.token-file":       "HR_CALENDAR_TOKEN_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hr-screener.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "a dotenv file loaded before reading the config")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("resume", defaultResume)
	viper.SetDefault("uploads-dir", "data/resumes")

	viper.SetDefault("fetch.timeout", 10*time.Second)
	viper.SetDefault("fetch.burst", 1)

	viper.SetDefault("extract.ocr", true)
	viper.SetDefault("extract.tesseract", "tesseract")
	viper.SetDefault("extract.pdftoppm", "pdftoppm")
	viper.SetDefault("extract.language", "eng")

	viper.SetDefault("screening.minimum-similarity", 70.0)
	viper.SetDefault("screening.gate-on-similarity", false)

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.minimum-passing-score", 80)
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.embedding-model", "text-embedding-004")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 200)
	viper.SetDefault("ai.gemini.backend", "gemini-api")

	viper.SetDefault("calendar.credentials-file", "credentials.json")
	viper.SetDefault("calendar.token-store", "file")
	viper.SetDefault("calendar.token-file", "token.json")
	viper.SetDefault("calendar.keyring-account", "calendar")
	viper.SetDefault("calendar.calendar-id", "primary")
	viper.SetDefault("calendar.timezone", "Asia/Kolkata")
	viper.SetDefault("calendar.duration", time.Hour)

	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.path", "data/cache.db")
	viper.SetDefault("cache.max-entries", 256)
}

func initConfig() {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				log.Fatalf("loading env file %s: %v", envFile, err)
			}
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The default config file is optional, everything has a default.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

// bindFlags binds flags of the running command only. Several commands share
// flag names, binding them all in init would let the last one win.
func bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			log.Fatalf("binding flag %s: %v", name, err)
		}
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
