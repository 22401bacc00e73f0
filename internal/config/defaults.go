package config

const (
	defaultOutDir               = "~/podcasts"
	defaultStateDir             = "~/.local/share/podhaul"
	defaultLogDir               = "~/.local/share/podhaul/logs"
	defaultLogRetentionDays     = 30
	defaultBaseURL              = "https://podkaszt.hu/adasok/uj/"
	defaultSource               = "podkaszt"
	defaultStartPage            = 1
	defaultEndPage              = 1
	defaultDelaySeconds         = 0.7
	defaultJitter               = 0.3
	defaultMinFreeGiB           = 1
	defaultUserAgent            = "Mozilla/5.0 (compatible; podhaul/1.0)"
	defaultRequestTimeout       = 30
	defaultIdleReadTimeout      = 60
	defaultHTTPRetries          = 2
	defaultYtDlpFormat          = "bestaudio/best"
	defaultExportTitle          = "Podhaul Archive"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutDir:   defaultOutDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Scan: Scan{
			BaseURL:   defaultBaseURL,
			Source:    defaultSource,
			StartPage: defaultStartPage,
			EndPage:   defaultEndPage,
		},
		Download: Download{
			DelaySeconds: defaultDelaySeconds,
			Jitter:       defaultJitter,
			MinFreeGiB:   defaultMinFreeGiB,
		},
		HTTP: HTTP{
			UserAgent:       defaultUserAgent,
			RequestTimeout:  defaultRequestTimeout,
			IdleReadTimeout: defaultIdleReadTimeout,
			Retries:         defaultHTTPRetries,
		},
		YtDlp: YtDlp{
			Format:            defaultYtDlpFormat,
			RestrictFilenames: true,
		},
		Export: Export{
			Title: defaultExportTitle,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Runs:           true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
