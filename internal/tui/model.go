// Package tui provides the terminal model settings screen
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"maestro/config"
	"maestro/config/models"
	"maestro/internal/llm"
	"maestro/internal/providers"
)

// Registry is the part of config.Registry the screen uses.
type Registry interface {
	LoadConfigs() []models.ModelConfig
	SaveConfigs(configs []models.ModelConfig) error
	SelectNext() (models.ModelConfig, bool)
	Cursor() int
}

// Pinger checks that a model answers.
type Pinger interface {
	Ping(ctx context.Context, ref llm.ModelRef) (time.Duration, error)
}

// pingTimeout bounds a ping started from the screen.
const pingTimeout = 30 * time.Second

// ViewState represents the current view state
type ViewState int

const (
	ViewMain        ViewState = iota // Main list view
	ViewDetail                       // Detail view
	ViewAdd                          // Add config form
	ViewEdit                         // Edit config form
	ViewDelete                       // Delete confirmation dialog
	ViewHelp                         // Help panel
	ViewPingTesting                  // Ping in progress
	ViewPingResult                   // Ping result
)

// Model is the core state model for TUI
type Model struct {
	configs   []models.ModelConfig
	lastID    string // config the rotation handed out last
	cursor    int
	selected  int
	viewState ViewState
	registry  Registry
	pinger    Pinger

	formInputs   []textinput.Model
	formFocus    int
	formProvider providers.Name // provider the suggestions were applied for

	message  string
	errorMsg string

	width  int
	height int

	scrollOffset     int
	helpScrollOffset int

	pingResult *PingResultMsg
}

// NewModel creates a new TUI model. pinger may be nil, which disables ping.
func NewModel(reg Registry, pinger Pinger) Model {
	return Model{
		configs:   []models.ModelConfig{},
		selected:  -1,
		viewState: ViewMain,
		registry:  reg,
		pinger:    pinger,
		width:     80,
		height:    24,
	}
}

// Init initializes the model and returns initial commands
func (m Model) Init() tea.Cmd {
	return loadConfigs(m.registry)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.adjustScrollOffset()
		return m, nil

	case ConfigsLoadedMsg:
		m.configs = msg.Configs
		m.lastID = msg.LastID
		if len(m.configs) > 0 && m.cursor >= len(m.configs) {
			m.cursor = len(m.configs) - 1
		}
		if m.selected >= len(m.configs) {
			m.selected = -1
		}
		return m, nil

	case ConfigsSavedMsg:
		if msg.Err != nil {
			m.errorMsg = msg.Err.Error()
			return m, nil
		}
		m.message = msg.Message
		m.errorMsg = ""
		m.viewState = ViewMain
		m.formInputs = nil
		m.formFocus = 0
		return m, loadConfigs(m.registry)

	case ModelSelectedMsg:
		if !msg.OK {
			m.errorMsg = config.ErrNoActiveModel.Error()
			return m, nil
		}
		m.message = fmt.Sprintf("Next model: %s (%s)", msg.Config.Label, msg.Config.Provider)
		m.lastID = msg.Config.ID
		return m, nil

	case PingResultMsg:
		m.pingResult = &msg
		m.viewState = ViewPingResult
		return m, nil

	case errMsg:
		m.errorMsg = string(msg)
		return m, nil
	}

	return m, nil
}

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.viewState {
	case ViewMain:
		return m.handleMainViewKeys(msg)
	case ViewDetail:
		return m.handleDetailViewKeys(msg)
	case ViewAdd, ViewEdit:
		return m.handleFormViewKeys(msg)
	case ViewDelete:
		return m.handleDeleteViewKeys(msg)
	case ViewHelp:
		return m.handleHelpViewKeys(msg)
	case ViewPingTesting:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case ViewPingResult:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc", "enter", "q":
			m.viewState = ViewMain
			m.pingResult = nil
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) clearMessages() {
	m.message = ""
	m.errorMsg = ""
}

func (m Model) hasCursor() bool {
	return m.cursor >= 0 && m.cursor < len(m.configs)
}

// handleMainViewKeys handles keyboard input in main view
func (m Model) handleMainViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		m.moveDown()
		m.clearMessages()
	case "k", "up":
		m.moveUp()
		m.clearMessages()
	case "g":
		m.moveToTop()
		m.clearMessages()
	case "G":
		m.moveToBottom()
		m.clearMessages()

	case "enter":
		if m.hasCursor() {
			m.selected = m.cursor
			m.viewState = ViewDetail
		}

	case "a":
		m.initAddForm()

	case "e":
		if m.hasCursor() {
			m.initEditForm()
		}

	case "d":
		if m.hasCursor() {
			m.viewState = ViewDelete
			m.clearMessages()
		}

	case "n":
		m.clearMessages()
		return m, selectNext(m.registry)

	case "p":
		if m.hasCursor() {
			return m.startPing(m.configs[m.cursor])
		}

	case "?":
		m.viewState = ViewHelp
		m.helpScrollOffset = 0
	}

	return m, nil
}

// handleDetailViewKeys handles keyboard input in detail view
func (m Model) handleDetailViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.viewState = ViewMain
	case "e":
		if m.selected >= 0 && m.selected < len(m.configs) {
			m.cursor = m.selected
			m.initEditForm()
		}
	case "d":
		if m.selected >= 0 && m.selected < len(m.configs) {
			m.cursor = m.selected
			m.viewState = ViewDelete
			m.clearMessages()
		}
	case "p":
		if m.selected >= 0 && m.selected < len(m.configs) {
			return m.startPing(m.configs[m.selected])
		}
	case "?":
		m.viewState = ViewHelp
		m.helpScrollOffset = 0
	}
	return m, nil
}

func (m Model) startPing(cfg models.ModelConfig) (tea.Model, tea.Cmd) {
	if m.pinger == nil {
		m.errorMsg = "ping is not available"
		return m, nil
	}
	if !cfg.IsActive() {
		m.errorMsg = fmt.Sprintf("%s is inactive: fill in its required fields first", cfg.Label)
		return m, nil
	}
	m.clearMessages()
	m.viewState = ViewPingTesting
	return m, pingConfig(m.pinger, cfg)
}

func (m *Model) moveUp() {
	if m.cursor > 0 {
		m.cursor--
		m.adjustScrollOffset()
	}
}

func (m *Model) moveDown() {
	if len(m.configs) > 0 && m.cursor < len(m.configs)-1 {
		m.cursor++
		m.adjustScrollOffset()
	}
}

func (m *Model) moveToTop() {
	m.cursor = 0
	m.scrollOffset = 0
}

func (m *Model) moveToBottom() {
	if len(m.configs) > 0 {
		m.cursor = len(m.configs) - 1
		m.adjustScrollOffset()
	}
}

// getVisibleListHeight returns the number of lines available for the config list
func (m *Model) getVisibleListHeight() int {
	// title, separator, blank line above; blank, separator, status bar below
	available := m.height - 3 - 4
	if available < 1 {
		available = 1
	}
	return available
}

// adjustScrollOffset keeps the cursor inside the visible window
func (m *Model) adjustScrollOffset() {
	visibleHeight := m.getVisibleListHeight()

	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+visibleHeight {
		m.scrollOffset = m.cursor - visibleHeight + 1
	}

	maxOffset := len(m.configs) - visibleHeight
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.scrollOffset > maxOffset {
		m.scrollOffset = maxOffset
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

// View renders the UI
func (m Model) View() string {
	switch m.viewState {
	case ViewHelp:
		return m.RenderHelpView()
	case ViewDetail:
		return m.RenderDetailView()
	case ViewAdd, ViewEdit:
		return m.RenderFormViewFull()
	case ViewDelete:
		return m.RenderDeleteConfirm()
	case ViewPingTesting:
		return m.RenderPingTestingView()
	case ViewPingResult:
		return m.RenderPingResultView()
	default:
		return m.RenderMainView()
	}
}

// loadConfigs creates a command to load configs
func loadConfigs(reg Registry) tea.Cmd {
	return func() tea.Msg {
		configs := reg.LoadConfigs()
		msg := ConfigsLoadedMsg{Configs: configs}
		active := config.ActiveConfigs(configs)
		if c := reg.Cursor(); c >= 0 && c < len(active) {
			msg.LastID = active[c].ID
		}
		return msg
	}
}

// selectNext advances the rotation the same way a flow run does
func selectNext(reg Registry) tea.Cmd {
	return func() tea.Msg {
		cfg, ok := reg.SelectNext()
		return ModelSelectedMsg{Config: cfg, OK: ok}
	}
}

// handleFormViewKeys handles keyboard input in form view (add/edit)
func (m Model) handleFormViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.viewState = ViewMain
		m.errorMsg = ""
		m.formInputs = nil
		m.formFocus = 0
		return m, nil

	case "tab", "down":
		m.formProvider = ApplySuggestions(m.formInputs, m.formProvider)
		m.formFocus = NextFormField(m.formInputs, m.formFocus)
		return m, nil

	case "shift+tab", "up":
		m.formProvider = ApplySuggestions(m.formInputs, m.formProvider)
		m.formFocus = PrevFormField(m.formInputs, m.formFocus)
		return m, nil

	case "enter":
		formData := GetFormData(m.formInputs)
		if err := formData.Validate(); err != nil {
			m.errorMsg = err.Error()
			return m, nil
		}
		m.errorMsg = ""
		if m.viewState == ViewAdd {
			return m, m.submitAddForm(formData)
		}
		return m, m.submitEditForm(formData)

	default:
		if m.formFocus >= 0 && m.formFocus < len(m.formInputs) {
			var cmd tea.Cmd
			m.formInputs[m.formFocus], cmd = m.formInputs[m.formFocus].Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

// initAddForm opens an empty form
func (m *Model) initAddForm() {
	m.formInputs = FormInputs()
	m.formFocus = 0
	m.formProvider = ""
	m.viewState = ViewAdd
	m.errorMsg = ""
}

// initEditForm opens the form pre-filled with the config under the cursor
func (m *Model) initEditForm() {
	if !m.hasCursor() {
		return
	}
	cfg := m.configs[m.cursor]
	m.formInputs = FormInputs()
	m.formFocus = 0
	m.formProvider = cfg.Provider
	m.viewState = ViewEdit
	m.errorMsg = ""
	SetFormData(m.formInputs, FormDataFrom(cfg))
}

// save writes the whole list; the registry validates it as a unit.
func save(reg Registry, configs []models.ModelConfig, message string) tea.Cmd {
	return func() tea.Msg {
		if err := reg.SaveConfigs(configs); err != nil {
			return ConfigsSavedMsg{Err: err}
		}
		return ConfigsSavedMsg{Message: message}
	}
}

func (m *Model) submitAddForm(data FormData) tea.Cmd {
	cfg := data.Apply(models.ModelConfig{ID: models.NewID()})
	next := append(append([]models.ModelConfig{}, m.configs...), cfg)
	return save(m.registry, next, "Added: "+cfg.Label)
}

func (m *Model) submitEditForm(data FormData) tea.Cmd {
	if !m.hasCursor() {
		return nil
	}
	next := append([]models.ModelConfig{}, m.configs...)
	next[m.cursor] = data.Apply(next[m.cursor])
	return save(m.registry, next, "Updated: "+next[m.cursor].Label)
}

// RenderFormViewFull renders the complete form view
func (m Model) RenderFormViewFull() string {
	title := "Add model"
	if m.viewState == ViewEdit {
		title = "Edit model"
	}
	return RenderForm(m.formInputs, m.formFocus, title, m.errorMsg)
}

// handleDeleteViewKeys handles keyboard input in delete confirmation view
func (m Model) handleDeleteViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "y", "Y":
		if m.hasCursor() {
			removed := m.configs[m.cursor]
			next := make([]models.ModelConfig, 0, len(m.configs)-1)
			next = append(next, m.configs[:m.cursor]...)
			next = append(next, m.configs[m.cursor+1:]...)
			return m, save(m.registry, next, "Deleted: "+removed.Label)
		}
		m.viewState = ViewMain
		return m, nil

	case "n", "N", "esc":
		m.viewState = ViewMain
		m.clearMessages()
		return m, nil
	}

	return m, nil
}

// handleHelpViewKeys handles keyboard input in help view
func (m Model) handleHelpViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc", "?":
		m.viewState = ViewMain
	case "j", "down":
		if limit := len(m.buildHelpLines()) - m.getVisibleHelpHeight(); m.helpScrollOffset < limit {
			m.helpScrollOffset++
		}
	case "k", "up":
		if m.helpScrollOffset > 0 {
			m.helpScrollOffset--
		}
	}
	return m, nil
}

// getVisibleHelpHeight returns the number of help lines that fit
func (m *Model) getVisibleHelpHeight() int {
	available := m.height - 6
	if available < 1 {
		available = 1
	}
	return available
}

// pingConfig creates a command that runs a tiny structured prompt
func pingConfig(p Pinger, cfg models.ModelConfig) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		d, err := p.Ping(ctx, llm.RefFromConfig(cfg))
		return PingResultMsg{Label: cfg.Label, Duration: d, Err: err}
	}
}
