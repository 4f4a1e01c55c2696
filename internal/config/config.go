// Package config resolves settings from flags, the environment, a .env file
// and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/skidoodle/radio-sync/internal/transport"
)

// ErrMissing is returned when a required key has no value.
var ErrMissing = errors.New("missing required setting")

// Keys.
const (
	APIURL   = "api.url"
	APIWSURL = "api.ws_url"
	APIToken = "api.token"

	ServerPort     = "server.port"
	AllowedOrigins = "server.allowed_origins"
	Realtime       = "server.realtime"

	LogLevel  = "log.level"
	LogFormat = "log.format"

	DriftThreshold = "sync.drift_threshold"
	OverlayTimeout = "sync.overlay_timeout"
	TickInterval   = "sync.tick_interval"
	PollInterval   = "sync.poll_interval"
	CommandTimeout = "sync.command_timeout"
	DefaultTitle   = "sync.default_title"

	TransportKind     = "transport.kind"
	TransportFallback = "transport.fallback"
	HLSURL            = "transport.hls_url"
	WHEPURL           = "transport.whep_url"
	OpusBitrate       = "transport.opus_bitrate"
	STUNURLs          = "transport.stun_urls"
	AudioSink         = "transport.sink"

	SpotifyClientID     = "spotify.client_id"
	SpotifyClientSecret = "spotify.client_secret"

	SearchCacheDir = "search.cache_dir"
	SearchCacheTTL = "search.cache_ttl"
)

// Field is one setting: its key, environment variable and default.
type Field struct {
	Key     string
	Env     string
	Default any
}

// Fields lists every setting. Environment names follow the ones the service
// has always used, so they are bound explicitly rather than derived.
var Fields = []Field{
	{APIURL, "API_URL", ""},
	{APIWSURL, "WS_URL", ""},
	{APIToken, "API_TOKEN", ""},
	{ServerPort, "SERVER_PORT", "3000"},
	{AllowedOrigins, "ALLOWED_ORIGINS", []string{}},
	{Realtime, "RT", false},
	{LogLevel, "LOG_LEVEL", "info"},
	{LogFormat, "LOG_FORMAT", "text"},
	{DriftThreshold, "DRIFT_THRESHOLD", 2 * time.Second},
	{OverlayTimeout, "OVERLAY_TIMEOUT", 5 * time.Second},
	{TickInterval, "TICK_INTERVAL", time.Second},
	{PollInterval, "POLL_INTERVAL", 3 * time.Second},
	{CommandTimeout, "COMMAND_TIMEOUT", 10 * time.Second},
	{DefaultTitle, "DEFAULT_TITLE", ""},
	{TransportKind, "TRANSPORT", string(transport.KindAuto)},
	{TransportFallback, "TRANSPORT_FALLBACK", true},
	{HLSURL, "HLS_URL", ""},
	{WHEPURL, "WHEP_URL", ""},
	{OpusBitrate, "OPUS_BITRATE", transport.DefaultOpusBitrate},
	{STUNURLs, "STUN_URLS", []string{}},
	{AudioSink, "AUDIO_SINK", ""},
	{SpotifyClientID, "SPOTIFY_CLIENT_ID", ""},
	{SpotifyClientSecret, "SPOTIFY_CLIENT_SECRET", ""},
	{SearchCacheDir, "SEARCH_CACHE_DIR", defaultCacheDir()},
	{SearchCacheTTL, "SEARCH_CACHE_TTL", 10 * time.Minute},
}

// Config holds the application configuration.
type Config struct {
	API struct {
		URL   string
		WSURL string
		Token string
	}
	Server struct {
		Port           string
		AllowedOrigins []string
		Realtime       bool
	}
	Log struct {
		Level  string
		Format string
	}
	Sync struct {
		DriftThreshold time.Duration
		OverlayTimeout time.Duration
		TickInterval   time.Duration
		PollInterval   time.Duration
		CommandTimeout time.Duration
		DefaultTitle   string
	}
	Transport struct {
		Kind     transport.Kind
		Fallback bool
		HLSURL   string
		WHEPURL  string
		Bitrate  int
		STUNURLs []string
		Sink     string
	}
	Spotify struct {
		ClientID     string
		ClientSecret string
	}
	Search struct {
		CacheDir string
		CacheTTL time.Duration
	}
}

// Setup registers defaults and environment bindings on v, loads .env into
// the environment and reads file when it is set.
func Setup(v *viper.Viper, file string) error {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using environment variables")
	}

	v.SetTypeByDefaultValue(true)
	for _, f := range Fields {
		v.SetDefault(f.Key, f.Default)
		if err := v.BindEnv(f.Key, f.Env); err != nil {
			return err
		}
	}

	if file == "" {
		return nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.API.URL = strings.TrimRight(v.GetString(APIURL), "/")
	cfg.API.WSURL = v.GetString(APIWSURL)
	cfg.API.Token = v.GetString(APIToken)
	if cfg.API.URL == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissing, APIURL)
	}

	cfg.Server.Port = v.GetString(ServerPort)
	cfg.Server.AllowedOrigins = list(v.GetStringSlice(AllowedOrigins))
	cfg.Server.Realtime = v.GetBool(Realtime)

	cfg.Log.Level = v.GetString(LogLevel)
	cfg.Log.Format = v.GetString(LogFormat)

	cfg.Sync.DriftThreshold = v.GetDuration(DriftThreshold)
	cfg.Sync.OverlayTimeout = v.GetDuration(OverlayTimeout)
	cfg.Sync.TickInterval = v.GetDuration(TickInterval)
	cfg.Sync.PollInterval = v.GetDuration(PollInterval)
	cfg.Sync.CommandTimeout = v.GetDuration(CommandTimeout)
	cfg.Sync.DefaultTitle = v.GetString(DefaultTitle)

	kind, err := transport.ParseKind(v.GetString(TransportKind))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TransportKind, err)
	}
	cfg.Transport.Kind = kind
	cfg.Transport.Fallback = v.GetBool(TransportFallback)
	cfg.Transport.HLSURL = v.GetString(HLSURL)
	cfg.Transport.WHEPURL = v.GetString(WHEPURL)
	cfg.Transport.Bitrate = v.GetInt(OpusBitrate)
	cfg.Transport.STUNURLs = list(v.GetStringSlice(STUNURLs))
	cfg.Transport.Sink = v.GetString(AudioSink)
	switch {
	case kind == transport.KindHLS && cfg.Transport.HLSURL == "":
		return nil, fmt.Errorf("%w: %s for the hls transport", ErrMissing, HLSURL)
	case kind == transport.KindWebRTC && cfg.Transport.WHEPURL == "":
		return nil, fmt.Errorf("%w: %s for the webrtc transport", ErrMissing, WHEPURL)
	}

	cfg.Spotify.ClientID = v.GetString(SpotifyClientID)
	cfg.Spotify.ClientSecret = v.GetString(SpotifyClientSecret)
	if (cfg.Spotify.ClientID == "") != (cfg.Spotify.ClientSecret == "") {
		return nil, fmt.Errorf("%w: spotify credentials need both %s and %s", ErrMissing, SpotifyClientID, SpotifyClientSecret)
	}

	cfg.Search.CacheDir = v.GetString(SearchCacheDir)
	cfg.Search.CacheTTL = v.GetDuration(SearchCacheTTL)

	return cfg, nil
}

// HasMedia reports whether any live-audio transport is configured.
func (c *Config) HasMedia() bool {
	return c.Transport.HLSURL != "" || c.Transport.WHEPURL != ""
}

// list accepts both repeated values and a single comma separated value, the
// way list settings arrive from the environment.
func list(values []string) []string {
	out := lo.FlatMap(values, func(s string, _ int) []string {
		return lo.Map(strings.Split(s, ","), func(p string, _ int) string { return strings.TrimSpace(p) })
	})
	return lo.Compact(out)
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "radio-sync")
	}
	return filepath.Join(dir, "radio-sync")
}
