package ui

import "github.com/gdamore/tcell/v2"

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
	OutgoingColor     tcell.Color
	IncomingColor     tcell.Color
	DividerColor      tcell.Color
	MutedColor        tcell.Color
}

// DefaultTheme returns a dark theme in koi colors.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorWhiteSmoke,
		BorderColor:       tcell.ColorDarkOrange,
		BorderFocusColor:  tcell.ColorOrange,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorOrange,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorOrange,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorLightGray,
		MenuKeyColor:      tcell.ColorDarkOrange,
		NumericKeyColor:   tcell.ColorFuchsia,
		TitleColor:        tcell.ColorOrangeRed,
		CounterColor:      tcell.ColorPapayaWhip,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDarkOrange,
		OutgoingColor:     tcell.ColorOrange,
		IncomingColor:     tcell.ColorLightSkyBlue,
		DividerColor:      tcell.ColorGray,
		MutedColor:        tcell.ColorDarkGray,
	}
}

// Tag returns c as a tview color tag name.
func Tag(c tcell.Color) string {
	return colorName(c)
}
