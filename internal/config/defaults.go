package config

// UntitledName is the file name bound to documents that have never been saved.
const UntitledName = "_untitled.splice"

// ProjectExtension is the file extension of project and companion files.
const ProjectExtension = ".splice"

const (
	defaultProjectDir             = "~/Videos"
	defaultStaleDir               = "~/.local/share/splice/stalefiles"
	defaultBackupDir              = "~/.local/share/splice/.backup"
	defaultDataDir                = "~/.local/share/splice"
	defaultLogDir                 = "~/.local/share/splice/logs"
	defaultLogRetentionDays       = 30
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultVideoTracks            = 2
	defaultAudioTracks            = 2
	defaultAutosaveDebounceMillis = 3000
	defaultAutosaveForceAfterSecs = 300
	defaultBackupKeep             = 20
	defaultNotifyRequestTimeout   = 10
	defaultProxyMinSize           = 1000
	defaultProxyImageMinSize      = 2000
	defaultProxyResize            = 640
	defaultProxyExtension         = "mkv"
	defaultProxyParams            = "-vf scale=640:-2 -vcodec libx264 -preset veryfast -crf 23 -acodec aac"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ProjectDir: defaultProjectDir,
			CacheDir:   defaultCacheDir(),
			StaleDir:   defaultStaleDir,
			BackupDir:  defaultBackupDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		Project: Project{
			VideoTracks:       defaultVideoTracks,
			AudioTracks:       defaultAudioTracks,
			SameProjectFolder: false,
			EnableProxy:       false,
			GenerateProxy:     true,
			ProxyMinSize:      defaultProxyMinSize,
			ProxyParams:       defaultProxyParams,
			ProxyExtension:    defaultProxyExtension,
			ProxyResize:       defaultProxyResize,
			ProxyImageMinSize: defaultProxyImageMinSize,
		},
		Autosave: Autosave{
			Enabled:           true,
			DebounceMillis:    defaultAutosaveDebounceMillis,
			ForceAfterSeconds: defaultAutosaveForceAfterSecs,
		},
		Backups: Backups{
			Enabled: true,
			Keep:    defaultBackupKeep,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Warnings:       true,
			Relocation:     true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
