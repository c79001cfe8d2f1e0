package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
)

// App is the application configuration.
type App struct {
	Addr              string    `yaml:"addr"`
	ModelPath         string    `yaml:"model"`
	ReviewsPath       string    `yaml:"reviews"`
	StorePath         string    `yaml:"store"`
	StoplistPath      string    `yaml:"stoplist"`
	VisualizationPath string    `yaml:"visualization"`
	TopTerms          int       `yaml:"top_terms"`
	Log               LogConfig `yaml:"log"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() App {
	return App{
		Addr:              ":8501",
		ModelPath:         "lda_model.json",
		ReviewsPath:       "reviews_with_topics.csv",
		StorePath:         ":memory:",
		VisualizationPath: "lda_visualization.html",
		TopTerms:          30,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadApp reads a YAML config file over the defaults. An empty path
// returns the defaults. Environment overrides are applied last.
func LoadApp(path string) (App, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return App{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return App{}, fmt.Errorf("parse %s: %v: %w", path, err, internalerr.ErrInvalidConfig)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return App{}, err
	}
	if err := cfg.Validate(); err != nil {
		return App{}, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c App) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required: %w", internalerr.ErrInvalidConfig)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("model path is required: %w", internalerr.ErrInvalidConfig)
	}
	if c.TopTerms < 1 {
		return fmt.Errorf("top_terms must be positive, got %d: %w", c.TopTerms, internalerr.ErrInvalidConfig)
	}
	return nil
}

func (c *App) applyEnv() error {
	c.Addr = getEnv("REVIEWTOPICS_ADDR", c.Addr)
	c.ModelPath = getEnv("REVIEWTOPICS_MODEL", c.ModelPath)
	c.ReviewsPath = getEnv("REVIEWTOPICS_REVIEWS", c.ReviewsPath)
	c.StorePath = getEnv("REVIEWTOPICS_STORE", c.StorePath)
	c.StoplistPath = getEnv("REVIEWTOPICS_STOPLIST", c.StoplistPath)
	c.VisualizationPath = getEnv("REVIEWTOPICS_VISUALIZATION", c.VisualizationPath)
	c.Log.Level = getEnv("REVIEWTOPICS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("REVIEWTOPICS_LOG_FORMAT", c.Log.Format)

	if v := os.Getenv("REVIEWTOPICS_TOP_TERMS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REVIEWTOPICS_TOP_TERMS=%q: %w", v, internalerr.ErrInvalidConfig)
		}
		c.TopTerms = n
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
