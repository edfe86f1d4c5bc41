package belaqi

// Category is the display metadata of a class.
type Category struct {
	Class IndexClass `json:"class"`
	Label string     `json:"label"`
	Color string     `json:"color"`
}

var categories = [...]Category{
	{1, "excellent", "#0000FF"},
	{2, "very good", "#0099FF"},
	{3, "good", "#009900"},
	{4, "fairly good", "#00FF00"},
	{5, "moderate", "#FFFF00"},
	{6, "poor", "#FFBB00"},
	{7, "very poor", "#FF6600"},
	{8, "bad", "#FF0000"},
	{9, "very bad", "#990000"},
	{10, "horrible", "#660000"},
}

// Describe returns the label and colour for c. It reports false for Missing.
func Describe(c IndexClass) (Category, bool) {
	if !c.Valid() {
		return Category{}, false
	}
	return categories[c-MinClass], true
}
