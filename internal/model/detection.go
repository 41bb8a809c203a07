package model

// Kind tags which shape a Detection has.
type Kind string

const (
	KindBox  Kind = "box"
	KindItem Kind = "item"
)

// Detection is one identified item. It is either a BoxDetection or an
// ItemDetection; the two shapes share nothing beyond a display label.
type Detection interface {
	Kind() Kind
	Label() string
}

// BoxDetection is a localized detection from the on-device model.
type BoxDetection struct {
	BBox  [4]float64 `json:"bbox"` // x, y, width, height in image pixels
	Class string     `json:"class"`
	Score float64    `json:"score"`
}

func (d BoxDetection) Kind() Kind    { return KindBox }
func (d BoxDetection) Label() string { return d.Class }

// ItemDetection is a descriptive result from the remote vision API.
type ItemDetection struct {
	ItemName    string `json:"itemname"`
	Description string `json:"description"`
}

func (d ItemDetection) Kind() Kind    { return KindItem }
func (d ItemDetection) Label() string { return d.ItemName }
