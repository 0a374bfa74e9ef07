package tryon

import (
	"fmt"
	"strings"
)

// MaxDetailLockItems - cap on hard-constraint bullets appended to the prompt
const MaxDetailLockItems = 8

// promptOptions - inputs for BuildPrompt
type promptOptions struct {
	prompt         string
	bodyRefImage   string
	clothingImages []string
	faceImages     []string
	details        *GarmentDetails
}

// BuildPrompt composes the full generation instruction: a fixed scene
// preamble, the user's own prompt, reference-compliance sections for body,
// clothing and face inputs, a bounded DETAIL LOCK bullet list from the
// analyzer output, and a fixed set of negative constraints. Pure function.
func BuildPrompt(opts promptOptions) string {
	var b strings.Builder

	b.WriteString("A full-body fashion photograph of a real person. Single subject, full body, neutral standing pose, photorealistic style, natural lighting. ")
	b.WriteString(opts.prompt)

	if len(opts.clothingImages) > 0 {
		b.WriteString("\n\n[IMPORTANT] The provided reference images must be used to preserve garment detail. Reproduce them exactly as shown.")
	}

	if opts.bodyRefImage != "" {
		b.WriteString("\n\n=== BODY REFERENCE ===")
		b.WriteString("\nStrictly preserve the body proportions and build shown in the body reference image.")
		b.WriteString("\nKeep the body shape consistent with the body reference.")
	}

	if len(opts.clothingImages) > 0 {
		b.WriteString("\n\n=== CLOTHING REFERENCE ===")
		b.WriteString("\nStrictly match the reference images for garment color, pattern, logos, material, buttons and stitching.")
		b.WriteString("\n[DO NOT redesign the garments]. Do not modify or add elements that are not present in the reference images.")
		b.WriteString("\nLogo text must remain exactly as shown, never altered or removed.")
		b.WriteString("\nPattern spacing and layout must remain exactly as shown.")
		b.WriteString("\nButton and stitching details must remain exactly as shown.")
	}

	if len(opts.faceImages) > 0 {
		b.WriteString("\n\n=== FACE REFERENCE ===")
		b.WriteString("\nPreserve facial similarity, while clothing accuracy remains the highest priority.")
	}

	if opts.details != nil && !opts.details.IsEmpty() {
		items := detailLockItems(*opts.details)
		if len(items) > 0 {
			b.WriteString("\n\nDETAIL LOCK (strict):")
			for _, item := range items {
				b.WriteString("\n- ")
				b.WriteString(item)
			}
		}
	}

	b.WriteString("\n\nDo NOT change logo text.")
	b.WriteString("\nDo NOT alter stripe/pattern spacing.")
	b.WriteString("\nDo NOT redesign garment cuts.")
	b.WriteString("\nNo color hue shift.")

	return b.String()
}

// detailLockItems flattens analyzer output into at most MaxDetailLockItems
// bullets, most constraining first: logo text, logo position (deduplicated),
// pattern, up to 2 dominant colors, material, hardware.
func detailLockItems(details GarmentDetails) []string {
	items := make([]string, 0, MaxDetailLockItems)

	for _, garment := range details.Garments {
		for _, logo := range garment.Logos {
			if logo.Text == "" {
				continue
			}
			position := ""
			if logo.Position != "" {
				position = " at " + logo.Position
			}
			items = append(items, fmt.Sprintf("Logo text: %q%s", logo.Text, position))
		}

		for _, logo := range garment.Logos {
			if logo.Position == "" || containsAny(items, logo.Position) {
				continue
			}
			items = append(items, "Logo position: "+logo.Position)
		}

		if garment.Pattern != "" {
			items = append(items, "Pattern: "+garment.Pattern+" (exact spacing)")
		}

		if len(garment.DominantColors) > 0 {
			colors := garment.DominantColors
			if len(colors) > 2 {
				colors = colors[:2]
			}
			items = append(items, "Colors: "+strings.Join(colors, ", "))
		}

		if garment.Material != "" {
			items = append(items, "Material: "+garment.Material)
		}

		if len(garment.Hardware) > 0 {
			items = append(items, "Hardware: "+strings.Join(garment.Hardware, ", "))
		}
	}

	if len(items) > MaxDetailLockItems {
		items = items[:MaxDetailLockItems]
	}
	return items
}

func containsAny(items []string, substr string) bool {
	for _, item := range items {
		if strings.Contains(item, substr) {
			return true
		}
	}
	return false
}
