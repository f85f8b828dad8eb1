package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode tells what the prompt text is for.
type PromptMode int

const (
	// PromptCommand reads a ':' command such as "open Alice".
	PromptCommand PromptMode = iota
	// PromptFilter reads a contact search.
	PromptFilter
)

// Completer suggests whole-line replacements for the text typed so far.
type Completer func(mode PromptMode, text string) []string

// Prompt is the input bar for commands and contact search. Command mode
// offers completions for command names and contact names.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	complete Completer
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a hidden-by-layout prompt bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetAutocompleteStyles(theme.BgColor,
		tcell.StyleDefault.Foreground(theme.FgColor).Background(theme.BgColor),
		tcell.StyleDefault.Foreground(theme.BgColor).Background(theme.MenuKeyColor))

	p := &Prompt{InputField: input, theme: theme}

	input.SetAutocompleteFunc(p.Suggest)
	input.SetAutocompletedFunc(func(text string, _ int, source int) bool {
		if source != tview.AutocompletedNavigate {
			p.SetText(text)
		}
		return source != tview.AutocompletedNavigate
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := p.GetText()
			p.SetText("")
			if p.onSubmit != nil && (text != "" || p.mode == PromptFilter) {
				p.onSubmit(p.mode, text)
			}
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})
	return p
}

// SetCompleter sets the suggestion source.
func (p *Prompt) SetCompleter(fn Completer) { p.complete = fn }

// SetOnSubmit sets the callback for Enter. An empty search is submitted
// so that it clears the contact filter; an empty command is not.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) { p.onSubmit = fn }

// SetOnCancel sets the callback for Esc.
func (p *Prompt) SetOnCancel(fn func()) { p.onCancel = fn }

// Suggest returns completions for text in the current mode.
func (p *Prompt) Suggest(text string) []string {
	if p.complete == nil || text == "" {
		return nil
	}
	return p.complete(p.mode, text)
}

// Activate clears the prompt and switches it to mode. Search mode starts
// from the filter already applied to the contact list.
func (p *Prompt) Activate(mode PromptMode, current string) {
	p.mode = mode
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
		p.SetText("")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Search contacts ")
		p.SetText(current)
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode { return p.mode }
