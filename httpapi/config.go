package httpapi

// Config defines HTTP settings.
type Config struct {
	Addr     string
	BaseURL  string
	BasePath string
	// AllowedOrigins lists the Origin values accepted for websocket
	// upgrades. Empty means same-origin only; "*" accepts any origin.
	AllowedOrigins []string
	// ReadLimit caps a single client message in bytes.
	ReadLimit int64
}
