package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/aldor007/easel/pkg/canvas"
	"github.com/aldor007/easel/pkg/helpers"
	"github.com/aldor007/easel/pkg/monitoring"
)

// Config contains server configuration and render presets
//
// Config should be used like singleton
type Config struct {
	Server         Server            `yaml:"server"`
	Presets        map[string]Preset `yaml:"presets"`
	BaseConfigPath string            `yaml:"-"`
}

var instance *Config
var once sync.Once

// backendKinds is list of available raster backends
var backendKinds = []string{"imaging", "vips"}

// cacheKinds is list of available cache kinds
var cacheKinds = []string{"memory", "redis"}

// lockKinds is list of available request collapsing locks
var lockKinds = []string{"memory", "redis"}

var formats = []string{"", "jpeg", "jpg", "png", "gif"}

var colorRegexp = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// GetInstance return single instance of Config object
func GetInstance() *Config {
	once.Do(func() {
		instance = &Config{}
	})
	return instance
}

// Load reads config data from file
func (c *Config) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return errors.Wrap(err, "unable to load config file")
	}

	if c.BaseConfigPath == "" {
		c.BaseConfigPath = filepath.Dir(filePath)
	}

	return c.load(data)
}

// LoadFromString parse configuration form string
func (c *Config) LoadFromString(data string) error {
	return c.load([]byte(data))
}

func (c *Config) load(data []byte) error {
	data = []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "unable to parse config")
	}

	for name, preset := range c.Presets {
		preset.Name = name
		for i := range preset.Steps {
			if m := preset.Steps[i].Merge; m != nil {
				m.Image = c.PathToConfig(m.Image)
			}
		}
		c.Presets[name] = preset
	}

	return c.validate()
}

// Preset returns preset by name
func (c *Config) Preset(name string) (Preset, bool) {
	p, ok := c.Presets[name]
	return p, ok
}

// PathToConfig resolves local path relative to configuration directory. Urls and absolute paths are returned as is
func (c *Config) PathToConfig(filePath string) string {
	if filePath == "" || filepath.IsAbs(filePath) || helpers.IsURL(filePath) {
		return filePath
	}

	basePath := "."
	if v := os.Getenv("EASEL_CONFIG_DIR"); v != "" {
		basePath = v
	}

	if c.BaseConfigPath != "" {
		basePath = c.BaseConfigPath
	}

	return filepath.Join(basePath, filePath)
}

func configInvalidError(msg string) error {
	monitoring.Logs().Warnw(msg)
	return errors.New(msg)
}

func contains(list []string, v string) bool {
	for _, k := range list {
		if k == v {
			return true
		}
	}
	return false
}

func (c *Config) validateServer() error {
	s := &c.Server
	if s.LogLevel == "" {
		s.LogLevel = "prod"
	}

	if s.Listen == "" {
		s.Listen = ":8080"
	}

	if s.InternalListen == "" {
		s.InternalListen = ":8081"
	}

	if s.SourceRoot == "" {
		s.SourceRoot = "."
	}

	if s.InternalListen == s.Listen {
		return configInvalidError("Server has invalid configuration internalListen and listen should have different address")
	}

	if s.Backend == "" {
		s.Backend = "imaging"
	}

	if !contains(backendKinds, s.Backend) {
		return configInvalidError(fmt.Sprintf("Server has invalid backend %s valid %s", s.Backend, backendKinds))
	}

	if s.RequestTimeout == 0 {
		s.RequestTimeout = 60
	}

	if s.Concurrency == 0 {
		s.Concurrency = 10
	}

	if s.Backlog == 0 {
		s.Backlog = 20
	}

	if s.BacklogTimeout == 0 {
		s.BacklogTimeout = 5
	}

	if s.RequestTimeout < 0 || s.LockTimeout < 0 || s.Concurrency < 0 || s.Backlog < 0 || s.BacklogTimeout < 0 {
		return configInvalidError("Server has invalid configuration timeouts and limits can't be negative")
	}

	if s.LockTimeout == 0 {
		s.LockTimeout = 30
	}

	if s.Lock != nil {
		if s.Lock.Type == "" {
			s.Lock.Type = "memory"
		}

		if !contains(lockKinds, s.Lock.Type) {
			return configInvalidError(fmt.Sprintf("Server has invalid lock type %s valid %s", s.Lock.Type, lockKinds))
		}

		if s.Lock.Type == "redis" && len(s.Lock.Address) == 0 {
			return configInvalidError("Server has invalid lock config - redis lock requires address")
		}
	}

	if s.Cache.Type == "" {
		s.Cache.Type = "memory"
	}

	if !contains(cacheKinds, s.Cache.Type) {
		return configInvalidError(fmt.Sprintf("Server has invalid cache type %s valid %s", s.Cache.Type, cacheKinds))
	}

	if s.Cache.Type == "redis" && len(s.Cache.Address) == 0 {
		return configInvalidError("Server has invalid cache config - redis cache requires address")
	}

	if s.Cache.CacheSize == 0 {
		s.Cache.CacheSize = 50 << 20
	}

	if s.IdleCleanup != nil && s.IdleCleanup.Enabled {
		if s.IdleCleanup.IdleTimeoutMin == 0 {
			s.IdleCleanup.IdleTimeoutMin = 15
		}
		if s.IdleCleanup.IdleTimeoutMin < 5 {
			return configInvalidError("idleCleanup.idleTimeoutMin must be at least 5 minutes")
		}
	}

	return nil
}

func (c *Config) validatePreset(name string, preset Preset) error {
	errorMsgPrefix := fmt.Sprintf("preset %s has invalid config", name)
	if !contains(formats, preset.Format) {
		return configInvalidError(fmt.Sprintf("%s - unknown format %s", errorMsgPrefix, preset.Format))
	}

	if len(preset.Steps) == 0 {
		return configInvalidError(fmt.Sprintf("%s - no steps", errorMsgPrefix))
	}

	for i, step := range preset.Steps {
		var err error
		switch step.Kind() {
		case "":
			err = configInvalidError(fmt.Sprintf("%s - step %d is empty", errorMsgPrefix, i))
		case "multiple":
			err = configInvalidError(fmt.Sprintf("%s - step %d has more than one operation", errorMsgPrefix, i))
		case "resize":
			r := step.Resize
			if r.Width <= 0 || r.Height <= 0 {
				err = configInvalidError(fmt.Sprintf("%s - step %d resize requires positive width and height", errorMsgPrefix, i))
			} else if r.Mode != "" && r.Mode != "inside" && r.Mode != "outside" {
				err = configInvalidError(fmt.Sprintf("%s - step %d unknown resize mode %s", errorMsgPrefix, i, r.Mode))
			}
		case "crop":
			if step.Crop.Width <= 0 || step.Crop.Height <= 0 {
				err = configInvalidError(fmt.Sprintf("%s - step %d crop requires positive width and height", errorMsgPrefix, i))
			}
		case "merge":
			m := step.Merge
			if m.Image == "" {
				err = configInvalidError(fmt.Sprintf("%s - step %d merge requires image", errorMsgPrefix, i))
			} else if m.Opacity < 0 || m.Opacity > 100 {
				err = configInvalidError(fmt.Sprintf("%s - step %d merge opacity should be in range 0-100", errorMsgPrefix, i))
			} else if !contains([]string{"", "full", "middle", "corner"}, m.Placement) {
				err = configInvalidError(fmt.Sprintf("%s - step %d unknown merge placement %s", errorMsgPrefix, i, m.Placement))
			} else if m.Placement != "" && m.Placement != "full" && m.Ratio <= 0 {
				err = configInvalidError(fmt.Sprintf("%s - step %d merge ratio should be positive", errorMsgPrefix, i))
			} else if m.Placement == "corner" {
				if _, errCorner := canvas.ParseCorner(m.Corner); errCorner != nil {
					err = configInvalidError(fmt.Sprintf("%s - step %d %v", errorMsgPrefix, i, errCorner))
				}
			}
		case "background":
			b := step.Background
			if b.Color != "" && !colorRegexp.MatchString(b.Color) {
				err = configInvalidError(fmt.Sprintf("%s - step %d invalid background color %s", errorMsgPrefix, i, b.Color))
			} else if b.Width <= 0 || b.Height <= 0 {
				err = configInvalidError(fmt.Sprintf("%s - step %d background requires positive width and height", errorMsgPrefix, i))
			}
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validate() error {
	for name, preset := range c.Presets {
		if err := c.validatePreset(name, preset); err != nil {
			return err
		}
	}

	return c.validateServer()
}
