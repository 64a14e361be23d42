package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyString(t *testing.T) {
	c := Config{}
	err := c.LoadFromString("")
	assert.Nil(t, err)

	assert.Equal(t, ":8080", c.Server.Listen)
	assert.Equal(t, ":8081", c.Server.InternalListen)
	assert.Equal(t, ".", c.Server.SourceRoot)
	assert.Equal(t, "prod", c.Server.LogLevel)
	assert.Equal(t, "imaging", c.Server.Backend)
	assert.Equal(t, 60, c.Server.RequestTimeout)
	assert.Equal(t, 10, c.Server.Concurrency)
	assert.Equal(t, 20, c.Server.Backlog)
	assert.Equal(t, 5, c.Server.BacklogTimeout)
	assert.Equal(t, 30, c.Server.LockTimeout)
	assert.Nil(t, c.Server.Lock)
	assert.Equal(t, "memory", c.Server.Cache.Type)
	assert.Equal(t, int64(50<<20), c.Server.Cache.CacheSize)
}

func TestGetInstance(t *testing.T) {
	assert.Same(t, GetInstance(), GetInstance())
}

func TestInvalidYaml(t *testing.T) {
	c := Config{}
	err := c.load([]byte(`
	server:
		a: [
`))
	assert.NotNil(t, err)
}

func TestInvalidFile(t *testing.T) {
	c := Config{}
	err := c.Load("no-file")
	assert.NotNil(t, err)
}

func TestInvalidListen(t *testing.T) {
	c := Config{}
	err := c.Load("testdata/invalid-listen.yml")
	assert.NotNil(t, err)
}

func TestInvalidStep(t *testing.T) {
	c := Config{}
	err := c.Load("testdata/invalid-step.yml")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "more than one operation")
}

func TestConfig_Load(t *testing.T) {
	os.Setenv("EASEL_TEST_REDIS", "localhost:6379")
	defer os.Unsetenv("EASEL_TEST_REDIS")

	c := Config{}
	err := c.Load("testdata/config.yml")
	require.Nil(t, err)

	assert.Equal(t, ":8090", c.Server.Listen)
	assert.True(t, c.Server.AccessLog)
	assert.Equal(t, 4, c.Server.Concurrency)
	assert.Equal(t, []string{"localhost:6379"}, c.Server.Cache.Address)
	assert.Equal(t, 600, c.Server.Cache.TTL)
	require.NotNil(t, c.Server.IdleCleanup)
	assert.Equal(t, 15, c.Server.IdleCleanup.IdleTimeoutMin)

	thumb, ok := c.Preset("thumb")
	require.True(t, ok)
	assert.Equal(t, "thumb", thumb.Name)
	assert.Equal(t, "jpeg", thumb.Format)
	assert.Equal(t, "crop", thumb.Steps[0].Kind())

	wm, ok := c.Preset("watermarked")
	require.True(t, ok)
	require.Len(t, wm.Steps, 3)
	assert.Equal(t, filepath.Join("testdata", "logo.png"), wm.Steps[1].Merge.Image)
	assert.Equal(t, "https://example.com/frame.png", wm.Steps[2].Merge.Image)

	tilted, _ := c.Preset("tilted")
	kinds := make([]string, 0)
	for _, s := range tilted.Steps {
		kinds = append(kinds, s.Kind())
	}
	assert.Equal(t, []string{"rotate", "transparent", "background"}, kinds)

	_, ok = c.Preset("missing")
	assert.False(t, ok)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		ok   bool
	}{
		{"unknown backend", "server:\n  backend: magick\n", false},
		{"vips backend", "server:\n  backend: vips\n", true},
		{"unknown cache", "server:\n  cache:\n    type: disk\n", false},
		{"redis without address", "server:\n  cache:\n    type: redis\n", false},
		{"unknown lock", "server:\n  lock:\n    type: etcd\n", false},
		{"redis lock without address", "server:\n  lock:\n    type: redis\n", false},
		{"redis lock", "server:\n  lock:\n    type: redis\n    address: [\"localhost:6379\"]\n", true},
		{"negative concurrency", "server:\n  concurrency: -1\n", false},
		{"idle timeout too short", "server:\n  idleCleanup:\n    enabled: true\n    idleTimeoutMin: 2\n", false},
		{"idle cleanup disabled", "server:\n  idleCleanup:\n    enabled: false\n    idleTimeoutMin: 2\n", true},
		{"no steps", "presets:\n  a:\n    format: png\n", false},
		{"unknown format", "presets:\n  a:\n    format: bmp\n    steps:\n      - transparent: true\n", false},
		{"empty step", "presets:\n  a:\n    steps:\n      - {}\n", false},
		{"resize without height", "presets:\n  a:\n    steps:\n      - resize: {width: 10}\n", false},
		{"resize bad mode", "presets:\n  a:\n    steps:\n      - resize: {width: 10, height: 10, mode: stretch}\n", false},
		{"resize outside", "presets:\n  a:\n    steps:\n      - resize: {width: 10, height: 10, mode: outside}\n", true},
		{"crop zero", "presets:\n  a:\n    steps:\n      - crop: {width: 0, height: 10}\n", false},
		{"rotate", "presets:\n  a:\n    steps:\n      - rotate: {angle: -90}\n", true},
		{"merge no image", "presets:\n  a:\n    steps:\n      - merge: {opacity: 10}\n", false},
		{"merge opacity", "presets:\n  a:\n    steps:\n      - merge: {image: a.png, opacity: 101}\n", false},
		{"merge placement", "presets:\n  a:\n    steps:\n      - merge: {image: a.png, placement: side}\n", false},
		{"merge middle ratio", "presets:\n  a:\n    steps:\n      - merge: {image: a.png, placement: middle}\n", false},
		{"merge corner", "presets:\n  a:\n    steps:\n      - merge: {image: a.png, placement: corner, ratio: 3, corner: \"10\"}\n", true},
		{"merge bad corner", "presets:\n  a:\n    steps:\n      - merge: {image: a.png, placement: corner, ratio: 3, corner: left}\n", false},
		{"background color", "presets:\n  a:\n    steps:\n      - background: {color: red, width: 10, height: 10}\n", false},
		{"background", "presets:\n  a:\n    steps:\n      - background: {color: \"#00ff00\", width: 10, height: 10}\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{}
			err := c.LoadFromString(tt.yaml)
			if tt.ok {
				assert.Nil(t, err)
			} else {
				assert.NotNil(t, err)
			}
		})
	}
}

func TestConfig_PathToConfig(t *testing.T) {
	c := Config{BaseConfigPath: "/etc/easel"}

	assert.Equal(t, "/etc/easel/logo.png", c.PathToConfig("logo.png"))
	assert.Equal(t, "/tmp/logo.png", c.PathToConfig("/tmp/logo.png"))
	assert.Equal(t, "http://a/b.png", c.PathToConfig("http://a/b.png"))
	assert.Equal(t, "", c.PathToConfig(""))
}
