package dto

const (
	FlashOff  = "off"
	FlashOn   = "on"
	FlashAuto = "auto"

	FacingBack  = "back"
	FacingFront = "front"
)

// CaptureOptions configure a single still capture.
type CaptureOptions struct {
	Quality float64 `json:"quality"` // JPEG quality in (0, 1]
	Flash   string  `json:"flash"`
	Facing  string  `json:"facing"`
}

// WithDefaults fills unset or out-of-range fields.
func (o CaptureOptions) WithDefaults(quality float64) CaptureOptions {
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = quality
	}
	switch o.Flash {
	case FlashOn, FlashAuto:
	default:
		o.Flash = FlashOff
	}
	if o.Facing != FacingFront {
		o.Facing = FacingBack
	}
	return o
}

// JPEGQuality converts Quality to the 1-100 scale used by JPEG encoders.
func (o CaptureOptions) JPEGQuality() int {
	q := int(o.Quality*100 + 0.5)
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
