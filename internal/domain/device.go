package domain

// DeviceInfo carries the raw browser signals a client may post instead of,
// or alongside, a precomputed fingerprint.
type DeviceInfo struct {
	UserAgent      string `json:"userAgent" validate:"max=1024"`
	Language       string `json:"language" validate:"max=64"`
	ScreenWidth    int    `json:"screenWidth" validate:"gte=0"`
	ScreenHeight   int    `json:"screenHeight" validate:"gte=0"`
	ColorDepth     int    `json:"colorDepth" validate:"gte=0"`
	TimezoneOffset int    `json:"timezoneOffset" validate:"gte=-1440,lte=1440"`
	Canvas         string `json:"canvas" validate:"max=8192"`
	Platform       string `json:"platform,omitempty" validate:"max=64"`
}
