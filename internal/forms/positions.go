package forms

// FieldPosition records where one field renders on its form template.
// Coordinates are in PDF points from the top-left of the page.
type FieldPosition struct {
	Field  string  `json:"field"`
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
