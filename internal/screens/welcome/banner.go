package welcome

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/gauge/internal/ui/theme"
)

const bannerArt = `
  ██████╗  █████╗ ██╗   ██╗ ██████╗ ███████╗
 ██╔════╝ ██╔══██╗██║   ██║██╔════╝ ██╔════╝
 ██║  ███╗███████║██║   ██║██║  ███╗█████╗
 ██║   ██║██╔══██║██║   ██║██║   ██║██╔══╝
 ╚██████╔╝██║  ██║╚██████╔╝╚██████╔╝███████╗
  ╚═════╝ ╚═╝  ╚═╝ ╚═════╝  ╚═════╝ ╚══════╝`

const bannerCompact = "G A U G E"

// RenderBanner returns the GAUGE banner styled in the primary color.
// Uses a compact fallback for terminals narrower than 50 columns.
func RenderBanner(width int) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	if width < 50 {
		return style.Render(bannerCompact)
	}
	return style.Render(bannerArt)
}
