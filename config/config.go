package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	YtdlpBin         string        `mapstructure:"YTDLP_BIN"`
	DownloadDir      string        `mapstructure:"DOWNLOAD_DIR"`
	DBPath           string        `mapstructure:"DB_PATH"`
	PollInterval     time.Duration `mapstructure:"POLL_INTERVAL"`
	MetadataTimeout  time.Duration `mapstructure:"METADATA_TIMEOUT"`
	FetchTimeout     time.Duration `mapstructure:"FETCH_TIMEOUT"`
	Retention        time.Duration `mapstructure:"RETENTION"`
	CookiesFile      string        `mapstructure:"COOKIES_FILE"`
	Cookies          string        `mapstructure:"YOUTUBE_COOKIES"`
	ExtraArgs        string        `mapstructure:"YTDLP_EXTRA_ARGS"`
	ThrottleFreeDisk int64         `mapstructure:"THROTTLE_FREEDISK"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("PORT", "7860")
	vp.SetDefault("YTDLP_BIN", "yt-dlp")
	vp.SetDefault("DOWNLOAD_DIR", "downloads")
	vp.SetDefault("DB_PATH", "jobs.db")
	vp.SetDefault("POLL_INTERVAL", "3s")
	vp.SetDefault("METADATA_TIMEOUT", "2m")
	vp.SetDefault("FETCH_TIMEOUT", "1h")
	vp.SetDefault("RETENTION", "240h")
	vp.SetDefault("COOKIES_FILE", "www.youtube.com_cookies.txt")
	vp.SetDefault("YOUTUBE_COOKIES", "")
	vp.SetDefault("YTDLP_EXTRA_ARGS", "")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")

	// Load from config file
	vp.SetConfigName("ytqueue_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/ytqueue/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("YTQUEUE")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Unmarshal the config, providing our custom composed hooks.
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
