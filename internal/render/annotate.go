package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	overlayText   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	overlayBoxBG  = color.RGBA{R: 0x1a, G: 0x1d, B: 0x22, A: 200}
	overlayBoxFrm = color.RGBA{R: 0x3a, G: 0x3f, B: 0x44, A: 255}
	panelBG       = color.RGBA{R: 0x0e, G: 0x11, B: 0x16, A: 255}
)

// overlayTopRight draws a boxed single-line annotation near the top-right
// corner of the image.
func overlayTopRight(img image.Image, text string) image.Image {
	b := img.Bounds()
	face := basicfont.Face7x13
	tw := textWidth(face, text)
	x := b.Max.X - tw - 24
	y := b.Min.Y + 36
	return drawBoxedText(img, text, x, y)
}

// overlayBottomRight draws a boxed single-line annotation near the
// bottom-right corner of the image.
func overlayBottomRight(img image.Image, text string) image.Image {
	b := img.Bounds()
	face := basicfont.Face7x13
	tw := textWidth(face, text)
	x := b.Max.X - tw - 24
	y := b.Max.Y - 18
	return drawBoxedText(img, text, x, y)
}

func drawBoxedText(img image.Image, text string, x, y int) image.Image {
	if text == "" {
		return img
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)

	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: rgba, Src: image.NewUniform(overlayText), Face: face}
	tw := dr.MeasureString(text).Ceil()

	pad := 6
	ascent := face.Metrics().Ascent.Ceil()
	box := image.Rect(x-pad, y-ascent-pad, x+tw+pad, y+pad)
	draw.Draw(rgba, box, image.NewUniform(overlayBoxBG), image.Point{}, draw.Over)
	strokeRect(rgba, box, overlayBoxFrm)

	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(text)
	return rgba
}

// placeholderPanel renders a bare panel with a centered message and no axes.
func placeholderPanel(text string) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, panelWidth, seriesHeight))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(panelBG), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	dr := &font.Drawer{Dst: rgba, Src: image.NewUniform(overlayText), Face: face}
	tw := dr.MeasureString(text).Ceil()
	x := (panelWidth - tw) / 2
	y := seriesHeight / 2
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(text)
	return rgba
}

func textWidth(face *basicfont.Face, text string) int {
	dr := &font.Drawer{Face: face}
	return dr.MeasureString(text).Ceil()
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	src := image.NewUniform(c)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), src, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Over)
}
