package diagram

// Theme is the fixed renderer configuration. It is passed to the compiler on
// every call instead of living in shared process state.
type Theme struct {
	Name           string            `json:"theme"`
	FontFamily     string            `json:"fontFamily"`
	SecurityLevel  string            `json:"securityLevel"`
	ThemeVariables map[string]string `json:"themeVariables"`
}

// DarkTheme is the palette used by the web page
func DarkTheme() Theme {
	return Theme{
		Name:          "dark",
		FontFamily:    "Inter, sans-serif",
		SecurityLevel: "strict",
		ThemeVariables: map[string]string{
			"primaryColor":       "#0e7490",
			"primaryTextColor":   "#e2e8f0",
			"primaryBorderColor": "#22d3ee",
			"lineColor":          "#94a3b8",
			"secondaryColor":     "#334155",
			"tertiaryColor":      "#1e293b",
		},
	}
}
