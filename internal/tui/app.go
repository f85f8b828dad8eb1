// Package tui is the terminal client for a koichat profile daemon.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/rpc"
	"github.com/matheus3301/koichat/internal/tui/keys"
	"github.com/matheus3301/koichat/internal/tui/model"
	"github.com/matheus3301/koichat/internal/tui/ui"
	"github.com/matheus3301/koichat/internal/tui/views"
)

const (
	pageLogin    = "login"
	pageContacts = "contacts"
	pageChat     = "chat"
	pageDetails  = "details"
	pageHelp     = "help"
)

const (
	rpcTimeout      = 15 * time.Second
	refreshInterval = 5 * time.Second
	maxWatchBackoff = 30 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	root     *tview.Flex
	pages    *ui.Pages
	registry *keys.Registry
	vm       *model.ViewModel
	daemon   *rpc.Client
	logger   *zap.Logger

	logo        *ui.Logo
	profileInfo *ui.ProfileInfo
	menu        *ui.Menu
	crumbs      *ui.Crumbs
	flashBar    *ui.FlashBar
	prompt      *ui.Prompt

	components map[string]ui.Component
	login      *views.LoginView
	contacts   *views.ContactList
	thread     *views.MessageThread
	details    *views.ContactInfo
	help       *views.HelpView

	profile      string
	promptActive bool
	opening      int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application for profileName. loc is the display
// timezone for message times.
func NewApp(c *rpc.Client, profileName string, loc *time.Location, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:         tview.NewApplication(),
		theme:       theme,
		pages:       ui.NewPages(),
		registry:    keys.NewRegistry(),
		vm:          model.NewViewModel(c),
		daemon:      c,
		logger:      logger,
		logo:        ui.NewLogo(theme),
		profileInfo: ui.NewProfileInfo(theme),
		menu:        ui.NewMenu(theme),
		crumbs:      ui.NewCrumbs(theme),
		flashBar:    ui.NewFlashBar(theme),
		prompt:      ui.NewPrompt(theme),
		login:       views.NewLoginView(theme),
		contacts:    views.NewContactList(theme),
		thread:      views.NewMessageThread(theme, loc),
		details:     views.NewContactInfo(theme),
		help:        views.NewHelpView(theme),
		profile:     profileName,
		ctx:         ctx,
		cancel:      cancel,
	}
	a.components = map[string]ui.Component{
		pageLogin:    a.login,
		pageContacts: a.contacts,
		pageChat:     a.thread,
		pageDetails:  a.details,
		pageHelp:     a.help,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help", Visible: true,
		Handler: func() { a.push(pageHelp) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Quit/Back", Visible: true,
		Handler: a.quitOrBack,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyEscape, Label: "Esc", Description: "Back",
		Handler: a.back,
	})

	a.registry.AddView(pageContacts, &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Filter",
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageContacts, &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Reload", Visible: true,
		Handler: func() { a.loadContacts(a.vm.Query(), true) },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(pageContacts, &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n),
			Handler: func() {
				if c, ok := a.contacts.ContactByIndex(n); ok {
					a.contacts.Select(n, 0)
					a.openConversation(c)
				}
			},
		})
	}

	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'i',
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'o',
		Handler: a.loadOlder,
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'G',
		Handler: a.thread.ScrollToEnd,
	})
	a.registry.AddView(pageChat, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd',
		Handler: func() { a.push(pageDetails) },
	})
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(stack []string) {
		a.crumbs.Update(stack, a.pageTitle)
		a.updateMenu()
	})

	a.login.SetOnLogin(func(username, password string) {
		a.do("Sign in", func(ctx context.Context) error {
			return a.vm.Login(ctx, username, password)
		}, func(err error) {
			if err != nil {
				a.login.Reset(grpcstatus.Convert(err).Message())
			}
		})
	})

	a.contacts.SetSelectedFunc(func(row, _ int) {
		if c, ok := a.contacts.ContactByIndex(row); ok {
			a.openConversation(c)
		}
	})

	a.thread.SetOnSend(func(text string) {
		a.do("Send", func(ctx context.Context) error {
			return a.vm.Send(ctx, text)
		}, func(err error) {
			if err == nil {
				a.thread.ClearComposer(text)
			}
		})
	})
	a.thread.SetOnScrollTop(a.loadOlder)

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.loadContacts(text, false)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
	a.prompt.SetCompleter(func(mode ui.PromptMode, text string) []string {
		if mode != ui.PromptCommand {
			return nil
		}
		contacts, _ := a.vm.Contacts()
		return CompleteCommand(text, contacts)
	})
}

func (a *App) setupLayout() {
	for name, c := range a.components {
		a.pages.AddPage(name, c, true, false)
	}

	header := tview.NewFlex().
		AddItem(a.profileInfo, 0, 2, false).
		AddItem(a.menu, 0, 3, false).
		AddItem(a.logo, 26, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 7, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)
	a.root.SetBackgroundColor(a.theme.BgColor)

	a.app.SetRoot(a.root, true)
	a.pages.Reset(pageLogin)
	a.app.SetFocus(a.login.FocusTarget())

	a.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlC {
			a.Stop()
			return nil
		}
		if a.promptActive {
			return ev
		}
		current := a.pages.Current()

		// Let text input widgets handle all keys normally.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			if current == pageChat && ev.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return ev
		}
		if current == pageLogin {
			return ev
		}
		if ev.Key() == tcell.KeyPgUp && current == pageChat {
			if row, _ := a.thread.Messages().GetScrollOffset(); row == 0 {
				a.loadOlder()
				return nil
			}
		}
		if a.registry.HandleEvent(current, ev) {
			return nil
		}
		return ev
	})
}

func (a *App) pageTitle(page string) string {
	if page == pageChat {
		if v := a.vm.View(); v != nil && v.Conversation != nil {
			return v.Conversation.ReceiverName
		}
	}
	if c, ok := a.components[page]; ok {
		return c.Name()
	}
	return page
}

func (a *App) updateMenu() {
	current := a.pages.Current()
	var hints []ui.MenuHint
	if c, ok := a.components[current]; ok {
		hints = append(hints, c.Hints()...)
	}
	if current != pageLogin {
		hints = append(hints, a.registry.Hints("")...)
	}
	a.menu.Update(hints)
}

func (a *App) push(page string) {
	if a.pages.Current() == pageLogin {
		return
	}
	if page == pageDetails && a.vm.View() == nil {
		return
	}
	a.pages.Push(page)
	a.app.SetFocus(a.components[page].FocusTarget())
}

// back leaves the current page. Leaving the chat page closes the
// conversation.
func (a *App) back() {
	switch a.pages.Current() {
	case pageLogin:
		return
	case pageContacts:
		if a.vm.Query() != "" {
			a.loadContacts("", false)
		}
		return
	case pageChat:
		a.closeConversation()
		return
	}
	if a.pages.Depth() > 1 {
		a.pages.Pop()
		a.app.SetFocus(a.components[a.pages.Current()].FocusTarget())
	}
}

func (a *App) quitOrBack() {
	switch a.pages.Current() {
	case pageContacts, pageLogin:
		a.Stop()
	default:
		a.back()
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	if a.pages.Current() == pageLogin {
		return
	}
	a.promptActive = true
	a.prompt.Activate(mode, a.vm.Query())
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.promptActive = false
	a.root.ResizeItem(a.prompt, 0, 0)
	if c, ok := a.components[a.pages.Current()]; ok {
		a.app.SetFocus(c.FocusTarget())
	}
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "open":
		contacts, _ := a.vm.Contacts()
		c, err := ResolveContact(cmd.Args, contacts)
		if err != nil {
			a.vm.Flash.Warn(err.Error())
			return
		}
		a.openConversation(c)
	case "reload":
		a.loadContacts(a.vm.Query(), true)
	case "close":
		if a.pages.Contains(pageChat) {
			a.closeConversation()
		}
	case "older":
		a.loadOlder()
	case "logout":
		a.do("Sign out", a.vm.Logout, nil)
	case "help":
		a.push(pageHelp)
	case "quit":
		a.Stop()
	default:
		a.vm.Flash.Warn("Unknown command: " + cmd.Name)
	}
	a.render()
}

// openConversation shows the chat page right away and lets the daemon
// bootstrap the history behind it.
func (a *App) openConversation(c chat.Contact) {
	a.thread.Reset()
	for a.pages.Depth() > 1 && a.pages.Current() != pageContacts {
		a.pages.Pop()
	}
	a.pages.Push(pageChat)
	a.app.SetFocus(a.thread.FocusTarget())

	name := c.FullName
	a.opening++
	a.do("Open conversation", func(ctx context.Context) error {
		return a.vm.Open(ctx, c.ID, name)
	}, func(err error) {
		a.opening--
		if err != nil && a.pages.Current() == pageChat && a.vm.View() == nil {
			a.pages.Pop()
			a.app.SetFocus(a.contacts.FocusTarget())
		}
	})
}

func (a *App) closeConversation() {
	for a.pages.Contains(pageChat) {
		a.pages.Pop()
	}
	a.app.SetFocus(a.contacts.FocusTarget())
	a.thread.Reset()
	a.do("Close conversation", a.vm.Close, nil)
}

func (a *App) loadOlder() {
	if v := a.vm.View(); v == nil || !v.CanLoadOlder {
		return
	}
	a.do("Load older messages", func(ctx context.Context) error {
		_, err := a.vm.LoadOlder(ctx)
		return err
	}, nil)
}

func (a *App) loadContacts(query string, reload bool) {
	a.do("Load contacts", func(ctx context.Context) error {
		return a.vm.LoadContacts(ctx, query, reload)
	}, nil)
}

// do runs fn off the UI goroutine and flashes its error unless the daemon
// already reported it. done, if set, runs on the UI goroutine afterwards.
func (a *App) do(label string, fn func(ctx context.Context) error, done func(err error)) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
		defer cancel()
		err := fn(ctx)
		if err != nil && a.ctx.Err() == nil {
			a.logger.Warn("daemon call failed", zap.String("op", label), zap.Error(err))
			if !model.Reported(err) {
				a.vm.Flash.Warn(fmt.Sprintf("%s: %s", label, grpcstatus.Convert(err).Message()))
			}
		}
		if done != nil {
			a.app.QueueUpdateDraw(func() { done(err) })
		}
	}()
}

// render applies pending view-model changes. It must run on the UI
// goroutine.
func (a *App) render() {
	changes := a.vm.TakeChanges()
	st := a.vm.Status()
	a.profileInfo.Update(a.profileData(st))
	if st != nil {
		a.logo.SetLink(st.State, st.Realtime)
	}
	a.flashBar.Update(a.vm.Flash.GetMessage())

	if st == nil || !st.LoggedIn {
		if a.pages.Current() != pageLogin && st != nil {
			a.hidePrompt()
			a.pages.Reset(pageLogin)
			a.login.Reset("Signed out.")
			a.app.SetFocus(a.login.FocusTarget())
		}
		return
	}
	if a.pages.Current() == pageLogin {
		a.pages.Reset(pageContacts)
		a.app.SetFocus(a.contacts.FocusTarget())
		if contacts, _ := a.vm.Contacts(); contacts == nil {
			a.loadContacts("", false)
		}
	}

	if changes.Has(model.ChangeContacts) {
		contacts, recent := a.vm.Contacts()
		a.contacts.Update(contacts, recent, a.vm.Query(), time.Now())
	}

	if changes.Has(model.ChangeView | model.ChangeNewest | model.ChangeOlder) {
		v := a.vm.View()
		if v == nil {
			// Closed elsewhere, e.g. by koichatctl.
			if a.pages.Contains(pageChat) && a.opening == 0 {
				for a.pages.Contains(pageChat) {
					a.pages.Pop()
				}
				a.app.SetFocus(a.contacts.FocusTarget())
			}
		} else {
			scroll := views.ScrollKeep
			switch {
			case changes.Has(model.ChangeNewest):
				scroll = views.ScrollBottom
			case changes.Has(model.ChangeOlder):
				scroll = views.ScrollAnchorTop
			}
			a.thread.Update(*v, scroll)
			var contact *chat.Contact
			if c, ok := a.vm.Contact(v.Conversation.ReceiverID); ok {
				contact = &c
			}
			a.details.Update(*v, contact)
			a.crumbs.Update(a.pages.Stack(), a.pageTitle)
		}
	}
	a.updateMenu()
}

func (a *App) profileData(st *rpc.Status) *ui.ProfileData {
	data := &ui.ProfileData{Profile: a.profile}
	if st == nil {
		data.State = "CONNECTING"
		return data
	}
	data.State = st.State
	data.Realtime = st.Realtime
	data.APIURL = st.APIURL
	data.Uptime = time.Duration(st.UptimeMs) * time.Millisecond
	if st.Account != nil {
		data.User = st.Account.FullName
		if data.User == "" {
			data.User = st.Account.Username
		}
		data.Role = st.Account.Role
	}
	return data
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		if err := a.vm.Refresh(a.ctx); err != nil {
			a.vm.Flash.Err(fmt.Errorf("daemon status: %w", err))
		}
		if a.vm.LoggedIn() {
			_ = a.vm.LoadContacts(a.ctx, "", false)
		}
	}()
	go a.refreshLoop()
	go a.watchLoop()

	return a.app.Run()
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
		case <-a.vm.Flash.Watch():
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(a.ctx, rpcTimeout)
			if err := a.vm.Refresh(ctx); err != nil {
				a.logger.Debug("status refresh failed", zap.Error(err))
			}
			cancel()
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(a.render)
	}
}

// watchLoop keeps an event stream open, reconnecting with backoff when the
// daemon goes away.
func (a *App) watchLoop() {
	backoff := time.Second
	for a.ctx.Err() == nil {
		stream, err := a.daemon.WatchEvents(a.ctx)
		if err == nil {
			started := time.Now()
			err = a.vm.Watch(a.ctx, stream)
			if time.Since(started) > maxWatchBackoff {
				backoff = time.Second
			}
		}
		if a.ctx.Err() != nil {
			return
		}
		a.logger.Warn("event stream ended", zap.Error(err))
		a.vm.Flash.Warn("Lost connection to the daemon, retrying...")

		select {
		case <-time.After(backoff):
		case <-a.ctx.Done():
			return
		}
		backoff = min(backoff*2, maxWatchBackoff)
		_ = a.vm.Refresh(a.ctx)
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
