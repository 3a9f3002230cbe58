package mapview

import "context"

const (
	OSMTileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	OSMAttribution = "&copy; OpenStreetMap contributors"
)

// TileEngine draws OpenStreetMap raster tiles. It is usable as soon as the
// container exists, so Init only honors cancellation.
type TileEngine struct {
	canvas
	tileURL string
}

func NewTileEngine(tileURL string) *TileEngine {
	if tileURL == "" {
		tileURL = OSMTileURL
	}
	e := &TileEngine{tileURL: tileURL}
	e.reset()
	return e
}

func (e *TileEngine) Kind() string { return KindTile }

func (e *TileEngine) Init(ctx context.Context) error { return ctx.Err() }

func (e *TileEngine) Scene() Scene {
	s := e.scene(KindTile)
	s.TileURL = e.tileURL
	s.Attribution = OSMAttribution
	return s
}
