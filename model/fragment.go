package model

// TextFragment is a positioned run of text on a page, as reported by a
// layout engine. Fragments are the finest-grained text unit the pipeline
// works with; cell extraction groups them into visual lines and cells.
type TextFragment struct {
	Text     string
	BBox     BBox
	FontSize float64
	FontName string
}
