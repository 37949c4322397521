// Package config loads the settings of a simulation run from a YAML file,
// a .env file, and MEMSIM_ environment variables.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/mem/hierarchy"
	"github.com/sarchlab/memsim/workload"
)

// EnvPrefix is the prefix of the environment variables that override file
// settings, e.g. MEMSIM_SEED or MEMSIM_WORKLOAD_ACCESSES.
const EnvPrefix = "MEMSIM"

// Level configures one cache level.
type Level struct {
	Name       string `mapstructure:"name"`
	LineWidth  int    `mapstructure:"line_width"`
	SetCount   int    `mapstructure:"set_count"`
	TotalLines int    `mapstructure:"total_lines"`
	Policy     string `mapstructure:"policy"`
}

// Workload configures the accesses issued by the runner.
type Workload struct {
	Pattern         string  `mapstructure:"pattern"`
	Accesses        int     `mapstructure:"accesses"`
	AccessesPerTick int     `mapstructure:"accesses_per_tick"`
	Base            uint64  `mapstructure:"base"`
	Span            uint64  `mapstructure:"span"`
	Stride          uint64  `mapstructure:"stride"`
	WriteRatio      float64 `mapstructure:"write_ratio"`
	TraceFile       string  `mapstructure:"trace_file"`
}

// Record configures the SQLite recording of per-tick counters.
type Record struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	Accesses bool   `mapstructure:"accesses"`
}

// Monitor configures the HTTP monitor.
type Monitor struct {
	Enabled     bool `mapstructure:"enabled"`
	Port        int  `mapstructure:"port"`
	OpenBrowser bool `mapstructure:"open_browser"`
}

// Config is the whole configuration of a run.
type Config struct {
	Seed             int64  `mapstructure:"seed"`
	LineWidth        int    `mapstructure:"line_width"`
	StoreSize        uint64 `mapstructure:"store_size"`
	PLRUPromoteOnHit bool   `mapstructure:"plru_promote_on_hit"`

	// Policy, when set, overrides the policy of every level.
	Policy string `mapstructure:"policy"`

	Levels   []Level  `mapstructure:"levels"`
	Workload Workload `mapstructure:"workload"`
	Record   Record   `mapstructure:"record"`
	Monitor  Monitor  `mapstructure:"monitor"`
}

func setDefaults(v *viper.Viper) {
	d := hierarchy.DefaultConfig()

	v.SetDefault("seed", d.Seed)
	v.SetDefault("line_width", d.LineWidth)
	v.SetDefault("store_size", d.StoreSize)
	v.SetDefault("plru_promote_on_hit", false)
	v.SetDefault("policy", "")

	levels := make([]map[string]any, 0, len(d.Levels))
	for _, l := range d.Levels {
		levels = append(levels, map[string]any{
			"name":        l.Name,
			"set_count":   l.SetCount,
			"total_lines": l.TotalLines,
			"policy":      l.Policy.String(),
		})
	}

	v.SetDefault("levels", levels)

	v.SetDefault("workload.pattern", workload.Sequential.String())
	v.SetDefault("workload.accesses", 1<<16)
	v.SetDefault("workload.accesses_per_tick", 1024)
	v.SetDefault("workload.base", 0)
	v.SetDefault("workload.span", 1<<20)
	v.SetDefault("workload.stride", 64)
	v.SetDefault("workload.write_ratio", 0.0)
	v.SetDefault("workload.trace_file", "")

	v.SetDefault("record.enabled", false)
	v.SetDefault("record.path", "")
	v.SetDefault("record.accesses", false)

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.port", 0)
	v.SetDefault("monitor.open_browser", false)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	c, err := load(viper.New())
	if err != nil {
		panic(err)
	}

	return c
}

// Load reads the configuration. The env files are loaded into the process
// environment first; without any, a .env file in the working directory is
// used if present. An empty path skips the YAML file.
func Load(path string, envFiles ...string) (Config, error) {
	if err := loadEnv(envFiles); err != nil {
		return Config{}, err
	}

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	return load(v)
}

func loadEnv(envFiles []string) error {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}

		envFiles = []string{".env"}
	}

	if err := godotenv.Load(envFiles...); err != nil {
		return errors.Wrap(err, "load env files")
	}

	return nil
}

func load(v *viper.Viper) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks the hierarchy and the workload settings.
func (c Config) Validate() error {
	h, err := c.Hierarchy()
	if err != nil {
		return err
	}

	if err := h.Validate(); err != nil {
		return errors.Wrap(err, "invalid hierarchy")
	}

	if c.Workload.AccessesPerTick <= 0 {
		return errors.Errorf("accesses per tick must be positive, got %d",
			c.Workload.AccessesPerTick)
	}

	if c.Workload.TraceFile != "" {
		return nil
	}

	spec, err := c.WorkloadSpec()
	if err != nil {
		return err
	}

	if err := spec.Validate(); err != nil {
		return errors.Wrap(err, "invalid workload")
	}

	if spec.Base+spec.Span > c.StoreSize {
		return errors.Errorf(
			"workload span [0x%x, 0x%x) exceeds the store size 0x%x",
			spec.Base, spec.Base+spec.Span, c.StoreSize)
	}

	return nil
}

// Hierarchy converts the configuration into a hierarchy configuration.
func (c Config) Hierarchy() (hierarchy.Config, error) {
	h := hierarchy.Config{
		LineWidth:        c.LineWidth,
		StoreSize:        c.StoreSize,
		Seed:             c.Seed,
		PLRUPromoteOnHit: c.PLRUPromoteOnHit,
		Levels:           make([]hierarchy.LevelConfig, 0, len(c.Levels)),
	}

	for i, l := range c.Levels {
		name := l.Policy
		if c.Policy != "" {
			name = c.Policy
		}

		policy, err := cache.ParsePolicy(name)
		if err != nil {
			return hierarchy.Config{}, errors.Wrapf(err, "level %d", i+1)
		}

		h.Levels = append(h.Levels, hierarchy.LevelConfig{
			Name:       l.Name,
			LineWidth:  l.LineWidth,
			SetCount:   l.SetCount,
			TotalLines: l.TotalLines,
			Policy:     policy,
		})
	}

	return h, nil
}

// WorkloadSpec converts the workload settings into a generator spec.
func (c Config) WorkloadSpec() (workload.Spec, error) {
	pattern, err := workload.ParsePattern(c.Workload.Pattern)
	if err != nil {
		return workload.Spec{}, err
	}

	return workload.Spec{
		Pattern:    pattern,
		Accesses:   c.Workload.Accesses,
		Base:       c.Workload.Base,
		Span:       c.Workload.Span,
		Stride:     c.Workload.Stride,
		WriteRatio: c.Workload.WriteRatio,
		Seed:       c.Seed,
	}, nil
}

// Accesses generates the workload, or reads it from the trace file if one
// is configured.
func (c Config) Accesses() ([]hierarchy.Access, error) {
	if c.Workload.TraceFile != "" {
		return workload.Load(c.Workload.TraceFile)
	}

	spec, err := c.WorkloadSpec()
	if err != nil {
		return nil, err
	}

	return workload.Generate(spec)
}
