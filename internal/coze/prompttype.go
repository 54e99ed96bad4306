package coze

// PromptType is the workflow's name for an output style.
type PromptType string

const (
	PromptNormal          PromptType = "Normal"
	PromptFlux            PromptType = "Flux"
	PromptMidjourney      PromptType = "Midjourney"
	PromptStableDiffusion PromptType = "StableDiffusion"
)

// Variants lists the model variants the site offers, in display order.
var Variants = []string{"general", "flux", "midjourney", "stable-diffusion"}

// PromptTypeFor maps a model variant to the workflow PromptType. Unknown
// variants fall back to Normal.
func PromptTypeFor(variant string) PromptType {
	switch variant {
	case "general":
		return PromptNormal
	case "flux":
		return PromptFlux
	case "midjourney":
		return PromptMidjourney
	case "stable-diffusion":
		return PromptStableDiffusion
	default:
		return PromptNormal
	}
}
