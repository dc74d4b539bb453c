package document

// Recognized document property keys.
const (
	KeyDocumentID         = "documentid"
	KeyProfile            = "profile"
	KeyVersion            = "version"
	KeyStorageFolder      = "storagefolder"
	KeyVideoTracks        = "videotracks"
	KeyAudioTracks        = "audiotracks"
	KeyAudioChannels      = "audioChannels"
	KeyEnableProxy        = "enableproxy"
	KeyGenerateProxy      = "generateproxy"
	KeyProxyMinSize       = "proxyminsize"
	KeyProxyParams        = "proxyparams"
	KeyProxyExtension     = "proxyextension"
	KeyProxyResize        = "proxyresize"
	KeyGenerateImageProxy = "generateimageproxy"
	KeyProxyImageMinSize  = "proxyimageminsize"
	KeyGuides             = "guides"
	KeyNotes              = "documentnotes"
	KeyPosition           = "position"
	KeyDisableTimeline    = "disabletimelineeffects"
	KeyDisableBin         = "disablebineffects"
	KeyTimelineHash       = "timelineHash"
	KeyThumbKeys          = "thumbkeys"
)

// transientKeys are rewritten on every save and say nothing about user intent.
var transientKeys = map[string]bool{
	KeyVersion:      true,
	KeyTimelineHash: true,
	KeyThumbKeys:    true,
	KeyPosition:     true,
}

// IsTransient reports whether key is regenerated on every save.
func IsTransient(key string) bool {
	return transientKeys[key]
}
