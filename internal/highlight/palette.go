package highlight

// Color is one palette entry: a strong base tone plus the light background,
// border and foreground used for highlighted text.
type Color struct {
	Base   string `json:"base" yaml:"base"`
	Light  string `json:"light" yaml:"light"`
	Border string `json:"border" yaml:"border"`
	Text   string `json:"text" yaml:"text"`
}

// Palette is an ordered list of colors cycled by index.
type Palette []Color

// DefaultPalette is the product palette for ranked matches.
var DefaultPalette = Palette{
	{Base: "#ef4444", Light: "#fef2f2", Border: "#fecaca", Text: "#dc2626"},
	{Base: "#3b82f6", Light: "#eff6ff", Border: "#bfdbfe", Text: "#2563eb"},
	{Base: "#a855f7", Light: "#faf5ff", Border: "#e9d5ff", Text: "#9333ea"},
	{Base: "#10b981", Light: "#ecfdf5", Border: "#a7f3d0", Text: "#059669"},
	{Base: "#f59e0b", Light: "#fffbeb", Border: "#fde68a", Text: "#d97706"},
	{Base: "#ec4899", Light: "#fdf2f8", Border: "#fbcfe8", Text: "#db2777"},
	{Base: "#6366f1", Light: "#eef2ff", Border: "#c7d2fe", Text: "#4f46e5"},
	{Base: "#14b8a6", Light: "#f0fdfa", Border: "#99f6e4", Text: "#0d9488"},
}

// At returns the color for index i, cycling through the palette.
// An empty palette falls back to DefaultPalette.
func (p Palette) At(i int) Color {
	if len(p) == 0 {
		p = DefaultPalette
	}
	i %= len(p)
	if i < 0 {
		i += len(p)
	}
	return p[i]
}

// Len returns the number of colors, counting DefaultPalette for an empty palette.
func (p Palette) Len() int {
	if len(p) == 0 {
		return len(DefaultPalette)
	}
	return len(p)
}
