package views

import (
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/koichat/internal/tui/ui"
)

// LoginView collects admin credentials.
type LoginView struct {
	*tview.Flex
	theme   *ui.Theme
	form    *tview.Form
	message *tview.TextView
	onLogin func(username, password string)
}

// NewLoginView creates a new login view.
func NewLoginView(theme *ui.Theme) *LoginView {
	lv := &LoginView{theme: theme}

	lv.form = tview.NewForm().
		AddInputField("Username", "", 32, nil, nil).
		AddPasswordField("Password", "", 32, '*', nil).
		AddButton("Sign in", lv.submit)
	lv.form.SetBackgroundColor(theme.BgColor)
	lv.form.SetFieldBackgroundColor(theme.BgColor)
	lv.form.SetFieldTextColor(theme.FgColor)
	lv.form.SetLabelColor(theme.MenuKeyColor)
	lv.form.SetButtonBackgroundColor(theme.BorderColor)
	lv.form.SetButtonTextColor(theme.BgColor)

	lv.message = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	lv.message.SetBackgroundColor(theme.BgColor)

	lv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(lv.message, 2, 0, false).
		AddItem(lv.form, 0, 1, true)
	lv.SetBorder(true)
	lv.SetBorderColor(theme.BorderColor)
	lv.SetBackgroundColor(theme.BgColor)
	lv.SetTitle(" Sign in ")
	lv.SetTitleColor(theme.TitleColor)

	lv.ShowMessage("Sign in with an Admin account.")
	return lv
}

// Name implements Component.
func (lv *LoginView) Name() string { return "Login" }

// FocusTarget implements ui.Component.
func (lv *LoginView) FocusTarget() tview.Primitive { return lv.form }

// Hints implements Component.
func (lv *LoginView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Sign in"},
		{Key: "Ctrl-C", Description: "Quit"},
	}
}

// SetOnLogin sets the callback invoked with the entered credentials.
func (lv *LoginView) SetOnLogin(fn func(username, password string)) {
	lv.onLogin = fn
}

// ShowMessage displays a status line above the form.
func (lv *LoginView) ShowMessage(msg string) {
	lv.message.Clear()
	lv.message.SetText("\n" + tview.Escape(msg))
}

// Reset clears the password field and shows msg.
func (lv *LoginView) Reset(msg string) {
	if field, ok := lv.form.GetFormItemByLabel("Password").(*tview.InputField); ok {
		field.SetText("")
	}
	lv.ShowMessage(msg)
}

func (lv *LoginView) submit() {
	if lv.onLogin == nil {
		return
	}
	var username, password string
	if field, ok := lv.form.GetFormItemByLabel("Username").(*tview.InputField); ok {
		username = strings.TrimSpace(field.GetText())
	}
	if field, ok := lv.form.GetFormItemByLabel("Password").(*tview.InputField); ok {
		password = field.GetText()
	}
	if username == "" || password == "" {
		lv.ShowMessage("Username and password are required.")
		return
	}
	lv.ShowMessage("Signing in...")
	lv.onLogin(username, password)
}
