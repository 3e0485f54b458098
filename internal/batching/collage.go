package batching

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	labelBoxWidth  = 120
	labelBoxHeight = 40
	labelScale     = 2
)

var labelColor = color.RGBA{G: 255, A: 255}

// Tile is one collage slot.
type Tile struct {
	TrackID int
	Crop    image.Image
}

// Composer renders batches into a labelled grid.
type Composer struct {
	Rows     int
	Cols     int
	TileSize int
	Quality  int
	// Size caps the tiles per batch below the grid capacity when positive.
	Size int
}

// Capacity returns the number of tracks one collage carries.
func (c Composer) Capacity() int {
	grid := c.Rows * c.Cols
	if c.Size > 0 && c.Size < grid {
		return c.Size
	}
	return grid
}

// Compose lays tiles out row-major. Each tile is scaled to TileSize² and
// carries an "ID:n" label in green on a black box; unused slots stay black.
func (c Composer) Compose(tiles []Tile) (*image.RGBA, error) {
	if c.Rows <= 0 || c.Cols <= 0 || c.TileSize <= 0 {
		return nil, fmt.Errorf("invalid collage geometry %dx%d@%d", c.Rows, c.Cols, c.TileSize)
	}
	if len(tiles) == 0 {
		return nil, errors.New("collage needs at least one tile")
	}
	if len(tiles) > c.Capacity() {
		return nil, fmt.Errorf("collage holds %d tiles, got %d", c.Capacity(), len(tiles))
	}
	size := c.TileSize
	canvas := image.NewRGBA(image.Rect(0, 0, c.Cols*size, c.Rows*size))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	for i, tile := range tiles {
		origin := image.Pt((i%c.Cols)*size, (i/c.Cols)*size)
		slot := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(size, size))}
		if tile.Crop != nil && !tile.Crop.Bounds().Empty() {
			draw.CatmullRom.Scale(canvas, slot, tile.Crop, tile.Crop.Bounds(), draw.Src, nil)
		}
		drawLabel(canvas, origin, "ID:"+strconv.Itoa(tile.TrackID))
	}
	return canvas, nil
}

// Encode renders the collage as JPEG.
func (c Composer) Encode(img image.Image) ([]byte, error) {
	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode collage: %w", err)
	}
	return buf.Bytes(), nil
}

// drawLabel paints the black label box and the green text, rendering the
// bitmap face at 2× so it fills the box.
func drawLabel(dst *image.RGBA, origin image.Point, text string) {
	box := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(labelBoxWidth, labelBoxHeight))}.Intersect(dst.Bounds())
	draw.Draw(dst, box, image.NewUniform(color.Black), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	small := image.NewRGBA(image.Rect(0, 0, labelBoxWidth/labelScale, labelBoxHeight/labelScale))
	drawer := font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(2, (labelBoxHeight/labelScale+face.Ascent-face.Descent)/2),
	}
	drawer.DrawString(text)
	draw.NearestNeighbor.Scale(dst, box, small, small.Bounds(), draw.Over, nil)
}
