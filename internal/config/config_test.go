package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeINI(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_OptionsDefaults(t *testing.T) {
	path := writeINI(t, `
[source.radio1]
input=file
demuxer=ogg
decoder=opus

[destination.hls-a]
source=radio1
muxer=fmp4
output=folder
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Options.StopOnSourceEnding)
	assert.Equal(t, "info", cfg.Options.LogLevel)
}

func TestLoad_OptionsExplicit(t *testing.T) {
	path := writeINI(t, `
[options]
stop-on-source-ending = false
log-level = trace

[source.radio1]
input=file

[destination.hls-a]
source=radio1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Options.StopOnSourceEnding)
	assert.Equal(t, "trace", cfg.Options.LogLevel)
}

func TestLoad_SourceStagePrefixedKeys(t *testing.T) {
	path := writeINI(t, `
[source.radio1]
input=network
input-url=http://example.com/stream
input-icy-metaint=16000
demuxer=auto
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	src, ok := cfg.SourceByID("radio1")
	require.True(t, ok)
	assert.Equal(t, "network", src.Input)
	assert.Equal(t, "auto", src.Demuxer)
	assert.Equal(t, "http://example.com/stream", src.InputConfig.Values["url"])
	assert.Equal(t, "16000", src.InputConfig.Values["icy-metaint"])
}

func TestLoad_SourceBareKeyTargetsLastStage(t *testing.T) {
	path := writeINI(t, `
[source.radio1]
input=file
input-path=/tmp/a.ogg
demuxer=ogg
buffer-size=4096
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	src, ok := cfg.SourceByID("radio1")
	require.True(t, ok)
	assert.Equal(t, "4096", src.DemuxerConfig.Values["buffer-size"])
}

func TestLoad_SourceMissingInputErrors(t *testing.T) {
	path := writeINI(t, `
[source.radio1]
demuxer=ogg
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_DestinationValues(t *testing.T) {
	path := writeINI(t, `
[source.radio1]
input=file

[destination.hls-a]
source=radio1
images=out-of-band
unknown-tags=txxx
duplicate-tags=semicolon
muxer=fmp4
muxer-segment-type=fmp4
output=folder
output-path=/var/www/hls
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Destinations, 1)
	d := cfg.Destinations[0]
	assert.Equal(t, "out-of-band", d.Images)
	assert.Equal(t, "txxx", d.UnknownTags)
	assert.Equal(t, "semicolon", d.DuplicateTags)
	assert.Equal(t, "fmp4", d.MuxerConfig.Values["segment-type"])
	assert.Equal(t, "/var/www/hls", d.OutputConfig.Values["path"])
}

func TestLoad_DestinationUnknownSourceErrors(t *testing.T) {
	path := writeINI(t, `
[destination.hls-a]
source=missing
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_TagMapRulesWithPriority(t *testing.T) {
	path := writeINI(t, `
[source.radio1]
input=file

[destination.hls-a]
source=radio1
tagmap=t1

[tagmap.t1]
TITLE = TIT2
ARTIST = TPE1 priority=5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	tm, ok := cfg.TagMapByID("t1")
	require.True(t, ok)
	require.Len(t, tm.Rules, 2)

	var artist TagMapRule
	for _, r := range tm.Rules {
		if r.SourceKey == "ARTIST" {
			artist = r
		}
	}
	assert.Equal(t, "TPE1", artist.DestName)
	require.True(t, artist.HasPriority)
	assert.Equal(t, uint8(5), artist.Priority)
}

func TestLoad_DestinationUnknownTagMapErrors(t *testing.T) {
	path := writeINI(t, `
[source.radio1]
input=file

[destination.hls-a]
source=radio1
tagmap=missing
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidLogLevelErrors(t *testing.T) {
	path := writeINI(t, `
[options]
log-level = verbose

[source.radio1]
input=file
`)
	_, err := Load(path)
	require.Error(t, err)
}
