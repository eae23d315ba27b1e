package application

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	analytics "drycell-monitor/internal/analytics/domain"
)

// BandRangeConfig is a closed value interval in the config file.
type BandRangeConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// BandConfig holds the static band boundaries for one metric.
type BandConfig struct {
	Normal  BandRangeConfig `yaml:"normal"`
	Warning BandRangeConfig `yaml:"warning"`
}

// Config defines monitor configuration: window length, anomaly threshold,
// the cells to refresh, and the per-metric band tables. Thresholds are data,
// not branching logic; the table is supplied by the deploying engineer.
type Config struct {
	WindowMinutes    int                              `yaml:"window_minutes"`
	AnomalyThreshold float64                          `yaml:"anomaly_threshold"`
	Cells            []string                         `yaml:"cells"`
	Bands            map[string]BandConfig            `yaml:"bands"`
	CellBands        map[string]map[string]BandConfig `yaml:"cell_bands"`
}

// LoadConfig loads monitor config from yaml or env. The yaml path comes from
// MONITOR_CONFIG; env vars override individual scalars.
func LoadConfig() (Config, error) {
	cfg := Config{
		WindowMinutes:    getenvIntDefault("MONITOR_WINDOW_MINUTES", 30),
		AnomalyThreshold: getenvFloatDefault("MONITOR_ANOMALY_THRESHOLD", analytics.DefaultAnomalyThreshold),
		Cells:            splitCSV(os.Getenv("MONITOR_CELLS")),
	}

	if path := os.Getenv("MONITOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.WindowMinutes == 0 {
		cfg.WindowMinutes = 30
	}
	if cfg.AnomalyThreshold == 0 {
		cfg.AnomalyThreshold = analytics.DefaultAnomalyThreshold
	}
	if len(cfg.Cells) == 0 {
		cfg.Cells = splitCSV(getenvDefault("MONITOR_CELLS", "cell-1"))
	}
	return cfg, nil
}

// BandSource builds the validated band resolver from the config tables.
func (c Config) BandSource() (*StaticBands, error) {
	defaults, err := toBandTable(c.Bands)
	if err != nil {
		return nil, fmt.Errorf("monitor config: bands: %w", err)
	}
	overrides := make(map[string]analytics.BandTable, len(c.CellBands))
	for cellID, bands := range c.CellBands {
		table, err := toBandTable(bands)
		if err != nil {
			return nil, fmt.Errorf("monitor config: cell %s bands: %w", cellID, err)
		}
		overrides[cellID] = table
	}
	return NewStaticBands(defaults, overrides)
}

func toBandTable(bands map[string]BandConfig) (analytics.BandTable, error) {
	table := make(analytics.BandTable, len(bands))
	for metric, band := range bands {
		table[analytics.Metric(metric)] = analytics.BandThresholds{
			Normal:  analytics.BandRange{Min: band.Normal.Min, Max: band.Normal.Max},
			Warning: analytics.BandRange{Min: band.Warning.Min, Max: band.Warning.Max},
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// StaticBands resolves per-cell band tables: cell-specific entries replace
// the default entry for that metric.
type StaticBands struct {
	defaults  analytics.BandTable
	overrides map[string]analytics.BandTable
}

// NewStaticBands constructs a validated resolver.
func NewStaticBands(defaults analytics.BandTable, overrides map[string]analytics.BandTable) (*StaticBands, error) {
	if defaults == nil {
		defaults = analytics.BandTable{}
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	for cellID, table := range overrides {
		if cellID == "" {
			return nil, errors.New("static bands: empty cell id")
		}
		if err := table.Validate(); err != nil {
			return nil, err
		}
	}
	return &StaticBands{defaults: defaults, overrides: overrides}, nil
}

// BandsFor returns the band table for a cell.
func (b *StaticBands) BandsFor(cellID string) analytics.BandTable {
	override, ok := b.overrides[cellID]
	if !ok {
		return b.defaults
	}
	merged := make(analytics.BandTable, len(b.defaults)+len(override))
	for metric, thresholds := range b.defaults {
		merged[metric] = thresholds
	}
	for metric, thresholds := range override {
		merged[metric] = thresholds
	}
	return merged
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
