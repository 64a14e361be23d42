package config

// ResizeStep scales image to fit inside or cover width x height box
type ResizeStep struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Mode   string `yaml:"mode"` // inside (default) or outside
}

// CropStep cuts exact width x height from centered cover of the box
type CropStep struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RotateStep rotates image counter-clockwise
type RotateStep struct {
	Angle float64 `yaml:"angle"`
}

// MergeStep composites overlay image onto current one
type MergeStep struct {
	Image     string `yaml:"image"`     // local path or http(s) url
	Opacity   int    `yaml:"opacity"`   // 0-100
	Placement string `yaml:"placement"` // full, middle or corner
	Ratio     int    `yaml:"ratio"`
	Corner    string `yaml:"corner"`
}

// BackgroundStep puts current image in the middle of solid canvas
type BackgroundStep struct {
	Color  string `yaml:"color"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Step is single entry of preset steps list, exactly one field should be set
type Step struct {
	Resize      *ResizeStep     `yaml:"resize,omitempty"`
	Crop        *CropStep       `yaml:"crop,omitempty"`
	Rotate      *RotateStep     `yaml:"rotate,omitempty"`
	Transparent bool            `yaml:"transparent,omitempty"`
	Merge       *MergeStep      `yaml:"merge,omitempty"`
	Background  *BackgroundStep `yaml:"background,omitempty"`
}

// Kind returns name of operation described by step or empty string when step is not set.
// Step with more than one operation returns "multiple"
func (s Step) Kind() string {
	kinds := make([]string, 0, 1)
	if s.Resize != nil {
		kinds = append(kinds, "resize")
	}
	if s.Crop != nil {
		kinds = append(kinds, "crop")
	}
	if s.Rotate != nil {
		kinds = append(kinds, "rotate")
	}
	if s.Transparent {
		kinds = append(kinds, "transparent")
	}
	if s.Merge != nil {
		kinds = append(kinds, "merge")
	}
	if s.Background != nil {
		kinds = append(kinds, "background")
	}

	switch len(kinds) {
	case 0:
		return ""
	case 1:
		return kinds[0]
	default:
		return "multiple"
	}
}

// Preset describe properties of render preset
type Preset struct {
	Format       string `yaml:"format"`
	CacheControl string `yaml:"cacheControl"`
	Steps        []Step `yaml:"steps"`
	Name         string `yaml:"-"`
}

// CacheCfg configure type of cache
type CacheCfg struct {
	Type         string            `yaml:"type"`
	Address      []string          `yaml:"address"`
	CacheSize    int64             `yaml:"cacheSize"`
	TTL          int               `yaml:"ttl"` // seconds, used when response has no cache-control
	ClientConfig map[string]string `yaml:"clientConfig"`
}

// LockCfg configure request collapsing lock
type LockCfg struct {
	Type         string            `yaml:"type"` // memory or redis
	Address      []string          `yaml:"address"`
	ClientConfig map[string]string `yaml:"clientConfig"`
}

// IdleCleanupCfg configures libvips cache cleanup during idle periods
type IdleCleanupCfg struct {
	Enabled        bool `yaml:"enabled"`
	IdleTimeoutMin int  `yaml:"idleTimeoutMin"` // Minutes of inactivity before cleanup
}

// Server configure HTTP server
type Server struct {
	LogLevel       string          `yaml:"logLevel"`
	AccessLog      bool            `yaml:"accessLog"`
	Listen         string          `yaml:"listen"`
	InternalListen string          `yaml:"internalListen"`
	Backend        string          `yaml:"backend"`
	SourceRoot     string          `yaml:"sourceRoot"`
	RequestTimeout int             `yaml:"requestTimeout"`
	Concurrency    int             `yaml:"concurrency"`
	Backlog        int             `yaml:"backlog"`
	BacklogTimeout int             `yaml:"backlogTimeout"`
	LockTimeout    int             `yaml:"lockTimeout"`
	Cache          CacheCfg        `yaml:"cache"`
	Lock           *LockCfg        `yaml:"lock,omitempty"`
	IdleCleanup    *IdleCleanupCfg `yaml:"idleCleanup,omitempty"`
}
