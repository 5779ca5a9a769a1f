package ui

import "github.com/charmbracelet/lipgloss"

// ASCII art for the anipar header as single string to preserve exact formatting
const aniparASCII = ` █████╗ ███╗   ██╗██╗██████╗  █████╗ ██████╗
██╔══██╗████╗  ██║██║██╔══██╗██╔══██╗██╔══██╗
███████║██╔██╗ ██║██║██████╔╝███████║██████╔╝
██╔══██║██║╚██╗██║██║██╔═══╝ ██╔══██║██╔══██╗
██║  ██║██║ ╚████║██║██║     ██║  ██║██║  ██║
╚═╝  ╚═╝╚═╝  ╚═══╝╚═╝╚═╝     ╚═╝  ╚═╝╚═╝  ╚═╝`

// FormatASCIIHeader renders the anipar ASCII header with RAMA theme
func FormatASCIIHeader() string {
	return lipgloss.NewStyle().
		Foreground(RAMARed).
		Bold(true).
		Render(aniparASCII)
}

// FormatASCIIHeaderWithSubtext renders header with subtitle
func FormatASCIIHeaderWithSubtext(subtext string) string {
	return FormatASCIIHeader() + "\n\n" + MutedStyle.Render(subtext)
}
