package colours

import "github.com/fatih/color"

// Color scheme for the CLI
var (
	Title   = color.New(color.FgCyan, color.Bold)
	Branch  = color.New(color.FgMagenta)
	Prompt  = color.New(color.FgGreen, color.Bold)
	Error   = color.New(color.FgRed, color.Bold)
	Success = color.New(color.FgGreen)
	Info    = color.New(color.FgBlue)
	Warning = color.New(color.FgYellow)
)

// speakers is indexed by voice slot. Slot 0 is the narrator.
var speakers = []*color.Color{
	color.New(color.FgWhite, color.Bold),
	color.New(color.FgCyan),
	color.New(color.FgMagenta),
	color.New(color.FgYellow),
	color.New(color.FgGreen),
	color.New(color.FgBlue),
}

// Speaker returns the colour for a voice slot, cycling through the palette.
// Negative slots fall back to the narrator colour.
func Speaker(slot int) *color.Color {
	if slot < 0 {
		return speakers[0]
	}
	return speakers[slot%len(speakers)]
}

// Level returns the colour for a tree depth.
func Level(level int) *color.Color {
	switch level {
	case 0:
		return Title
	case 1:
		return Branch
	default:
		return Info
	}
}
