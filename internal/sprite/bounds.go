package sprite

import (
	"image"
	"image/draw"
)

// Rect is a pixel rectangle within an image, with inclusive origin and
// positive width/height.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FirstSpriteBounds finds the bounding box of the first sprite in an image.
//
// The image must carry an alpha channel; images without one return ok=false,
// meaning the caller should fall back to the full image as the preview. The
// first pixel with non-zero alpha (scanning row-major from the top-left) seeds
// an 8-connected flood fill over all reachable non-transparent pixels, and the
// returned rectangle is the bounding box of the filled region. A fully
// transparent image also returns ok=false.
//
// Interior transparency does not fragment the result: a ring shape yields one
// box enclosing the whole ring, because the fill follows its 8-connected
// border. This is deliberately not a grid-division heuristic; it isolates one
// silhouette even on irregularly packed sheets.
func FirstSpriteBounds(img image.Image) (Rect, bool) {
	if img == nil || !hasAlphaChannel(img) {
		return Rect{}, false
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return Rect{}, false
	}

	// Normalize to NRGBA for uniform alpha access.
	pix := toNRGBA(img)

	seed := -1
	for i := 0; i < w*h; i++ {
		if pix.Pix[i*4+3] > 0 {
			seed = i
			break
		}
	}
	if seed < 0 {
		return Rect{}, false
	}

	// Explicit stack: the fill can cover hundreds of thousands of pixels on
	// large sheets, so recursion is off the table.
	visited := make([]bool, w*h)
	stack := make([]int, 0, 1024)
	stack = append(stack, seed)
	visited[seed] = true

	minX, minY := seed%w, seed/w
	maxX, maxY := minX, minY

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cx, cy := idx%w, idx/w
		if cx < minX {
			minX = cx
		}
		if cx > maxX {
			maxX = cx
		}
		if cy < minY {
			minY = cy
		}
		if cy > maxY {
			maxY = cy
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := cx+dx, cy+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				nIdx := ny*w + nx
				if !visited[nIdx] && pix.Pix[nIdx*4+3] > 0 {
					visited[nIdx] = true
					stack = append(stack, nIdx)
				}
			}
		}
	}

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX + 1,
		Height: maxY - minY + 1,
	}, true
}

// hasAlphaChannel reports whether the decoded image format carries per-pixel
// alpha. JPEG decodes to YCbCr and never qualifies; paletted images qualify
// only when the palette contains a non-opaque entry.
func hasAlphaChannel(img image.Image) bool {
	switch v := img.(type) {
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64:
		return true
	case *image.Paletted:
		for _, c := range v.Palette {
			if _, _, _, a := c.RGBA(); a < 0xffff {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) && n.Stride == 4*n.Bounds().Dx() {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
