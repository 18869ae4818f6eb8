package analysis

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"

	"github.com/docuflow/invoice-audit/internal/entity"
)

const (
	chartWidth  = 640
	chartHeight = 480
	chartMargin = 60.0
	pointRadius = 6.0
)

// RenderScatterPNG draws the line items as a unit price vs quantity scatter
// and writes it as PNG. Flagged rows are red, the rest blue. Items without a
// unit price are skipped.
func RenderScatterPNG(items []entity.LineItem, w io.Writer) error {
	var plotted []entity.LineItem
	for _, it := range items {
		if it.UnitPrice != nil {
			plotted = append(plotted, it)
		}
	}
	if len(plotted) == 0 {
		return fmt.Errorf("no line items with unit prices to plot")
	}

	minX, maxX := *plotted[0].UnitPrice, *plotted[0].UnitPrice
	minY, maxY := plotted[0].Quantity, plotted[0].Quantity
	for _, it := range plotted[1:] {
		minX, maxX = min(minX, *it.UnitPrice), max(maxX, *it.UnitPrice)
		minY, maxY = min(minY, it.Quantity), max(maxY, it.Quantity)
	}
	// degenerate ranges would collapse the projection
	if maxX == minX {
		maxX = minX + 1
	}
	if maxY == minY {
		maxY = minY + 1
	}

	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	plotW := float64(chartWidth) - 2*chartMargin
	plotH := float64(chartHeight) - 2*chartMargin
	toX := func(v float64) float64 { return chartMargin + (v-minX)/(maxX-minX)*plotW }
	toY := func(v float64) float64 { return float64(chartHeight) - chartMargin - (v-minY)/(maxY-minY)*plotH }

	// axes
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.SetLineWidth(1.5)
	dc.DrawLine(chartMargin, chartMargin, chartMargin, float64(chartHeight)-chartMargin)
	dc.DrawLine(chartMargin, float64(chartHeight)-chartMargin, float64(chartWidth)-chartMargin, float64(chartHeight)-chartMargin)
	dc.Stroke()

	dc.DrawStringAnchored("Anomaly Detection on Line Items", float64(chartWidth)/2, chartMargin/2, 0.5, 0.5)
	dc.DrawStringAnchored("Unit Price", float64(chartWidth)/2, float64(chartHeight)-chartMargin/3, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(-gg.Radians(90), chartMargin/3, float64(chartHeight)/2)
	dc.DrawStringAnchored("Quantity", chartMargin/3, float64(chartHeight)/2, 0.5, 0.5)
	dc.Pop()

	// range labels beat unreadable tick marks at this size
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", minX), chartMargin, float64(chartHeight)-chartMargin+15, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.2f", maxX), float64(chartWidth)-chartMargin, float64(chartHeight)-chartMargin+15, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.0f", minY), chartMargin-20, float64(chartHeight)-chartMargin, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%.0f", maxY), chartMargin-20, chartMargin, 0.5, 0.5)

	for _, it := range plotted {
		if it.IsAnomaly {
			dc.SetRGB(0.85, 0.2, 0.2)
		} else {
			dc.SetRGB(0.2, 0.4, 0.8)
		}
		dc.DrawCircle(toX(*it.UnitPrice), toY(it.Quantity), pointRadius)
		dc.Fill()
	}

	return dc.EncodePNG(w)
}
