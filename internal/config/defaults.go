package config

const (
	defaultDataDir          = "~/.local/share/blaulicht/partitions"
	defaultLogDir           = "~/.local/share/blaulicht/logs"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultFirstYear        = 2014
	defaultFilePattern      = "berlin_polizei_%d.csv"
	defaultPersist          = "pass"
	defaultParallelism      = 1

	defaultSourceBaseURL     = "https://www.berlin.de"
	defaultSourceArchivePath = "/polizei/polizeimeldungen/archiv/%d/"
	defaultSourcePageParam   = "page_at_1_0"
	defaultSourceUserAgent   = "blaulicht/dev (+https://github.com/blaulicht)"
	defaultSourceTimeout     = 30
	defaultSourceMinDelay    = 1500
	defaultSourceMaxDelay    = 3000
	defaultSourceMaxPages    = 500

	defaultClassifierBaseURL  = "http://localhost:11434/v1/chat/completions"
	defaultClassifierModel    = "llama3.1:8b"
	defaultClassifierTitle    = "blaulicht categorizer"
	defaultClassifierTimeout  = 60
	defaultClassifierInterval = 100
	defaultDescriptionLimit   = 800

	defaultTranslatorBaseURL   = "https://api.mymemory.translated.net/get"
	defaultTranslatorSource    = "de-DE"
	defaultTranslatorTarget    = "en-GB"
	defaultTranslatorBatchSize = 50
	defaultTranslatorBatchWait = 2
	defaultTranslatorTimeout   = 20
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			StateDir: defaultStateDir(),
			LogDir:   defaultLogDir,
		},
		Partitions: Partitions{
			FirstYear:   defaultFirstYear,
			FilePattern: defaultFilePattern,
		},
		Enrich: Enrich{
			Fields:      []string{"description", "en_title", "category"},
			Persist:     defaultPersist,
			Parallelism: defaultParallelism,
		},
		Source: Source{
			BaseURL:        defaultSourceBaseURL,
			ArchivePath:    defaultSourceArchivePath,
			PageParam:      defaultSourcePageParam,
			UserAgent:      defaultSourceUserAgent,
			TimeoutSeconds: defaultSourceTimeout,
			MinDelayMillis: defaultSourceMinDelay,
			MaxDelayMillis: defaultSourceMaxDelay,
			MaxPages:       defaultSourceMaxPages,
		},
		Classifier: Classifier{
			Enabled:          true,
			BaseURL:          defaultClassifierBaseURL,
			Model:            defaultClassifierModel,
			Title:            defaultClassifierTitle,
			TimeoutSeconds:   defaultClassifierTimeout,
			MinIntervalMs:    defaultClassifierInterval,
			DescriptionLimit: defaultDescriptionLimit,
		},
		Translator: Translator{
			Enabled:          true,
			BaseURL:          defaultTranslatorBaseURL,
			SourceLang:       defaultTranslatorSource,
			TargetLang:       defaultTranslatorTarget,
			BatchSize:        defaultTranslatorBatchSize,
			BatchWaitSeconds: defaultTranslatorBatchWait,
			TimeoutSeconds:   defaultTranslatorTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
