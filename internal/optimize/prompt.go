package optimize

import "strings"

// DefaultPrompt is used when the caller supplies no custom prompt.
const DefaultPrompt = "Enhance this jewelry image for professional e-commerce presentation."

// Settings toggles the optional enhancement clauses appended to the prompt.
type Settings struct {
	EnhanceQuality   bool `json:"enhance_quality"`
	RemoveBackground bool `json:"remove_background"`
	EnhanceLighting  bool `json:"enhance_lighting"`
	EnhanceColors    bool `json:"enhance_colors"`
}

// BuildPrompt assembles the generation prompt from a base and the enabled
// settings. Clause order is fixed (quality, background, lighting, colors)
// regardless of how the settings arrived; enabled clauses are joined with
// ", " and terminated with a period.
func BuildPrompt(base string, settings Settings) string {
	prompt := strings.TrimSpace(base)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	var clauses []string
	if settings.EnhanceQuality {
		clauses = append(clauses, "increase image sharpness and clarity")
	}
	if settings.RemoveBackground {
		clauses = append(clauses, "make background pure white")
	}
	if settings.EnhanceLighting {
		clauses = append(clauses, "improve lighting to highlight jewelry details and sparkle")
	}
	if settings.EnhanceColors {
		clauses = append(clauses, "enhance color vibrancy while maintaining natural appearance")
	}
	if len(clauses) == 0 {
		return prompt
	}
	return prompt + " " + strings.Join(clauses, ", ") + "."
}
