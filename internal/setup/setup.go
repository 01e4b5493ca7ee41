// Package setup provides the interactive wizard that writes agent.toml.
package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/taskagent/internal/config"
)

// Provider options
const (
	ProviderLMStudio   = "lmstudio"
	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderLiteLLM    = "litellm"
	ProviderCompat     = "openai-compat"
)

// Credential methods
const (
	credentialEnv    = "env"    // api_key_env names an environment variable
	credentialInline = "inline" // api_key holds the literal key
)

// Config holds the setup configuration
type Config struct {
	// Workspace
	WorkDir string

	// LLM
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	MaxTokens int

	// Credentials
	CredentialMethod string // "env" or "inline"

	// Loop protection
	MaxToolRounds       int
	MaxRepeatSignatures int
	SignatureWindow     int
	MaxMissingFiles     int

	// Sub-agents
	MaxDepth       int
	TimeoutSeconds int
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))
)

// Step represents a setup wizard step
type Step int

const (
	StepWelcome Step = iota
	StepProvider
	StepModel
	StepCustomModel // Text input for model name (local and proxy providers)
	StepBaseURL
	StepCredential
	StepAPIKeyEnv
	StepAPIKey
	StepWorkDir
	StepRounds
	StepDepth
	StepConfirm
	StepWriteFiles
	StepComplete
)

// Model is the bubbletea model for the setup wizard
type Model struct {
	step      Step
	config    Config
	cursor    int
	textInput textinput.Model
	err       error
	width     int
	height    int

	// Edit mode - true if loading from existing config
	editMode     bool
	existingFile string

	// Results
	filesWritten []string
}

// New creates a new setup model. Defaults come from the runtime
// configuration so the wizard and the agent agree on them.
func New() Model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	def := config.New()
	m := Model{
		step:      StepWelcome,
		textInput: ti,
		config: Config{
			WorkDir:             def.Agent.WorkDir,
			Provider:            def.LLM.Provider,
			Model:               def.LLM.Model,
			BaseURL:             def.LLM.BaseURL,
			APIKey:              def.LLM.APIKey,
			MaxTokens:           def.LLM.MaxTokens,
			CredentialMethod:    credentialEnv,
			MaxToolRounds:       def.Limits.MaxToolRounds,
			MaxRepeatSignatures: def.Limits.MaxRepeatSignatures,
			SignatureWindow:     def.Limits.SignatureWindow,
			MaxMissingFiles:     def.Limits.MaxMissingFiles,
			MaxDepth:            def.SubAgent.MaxDepth,
			TimeoutSeconds:      def.SubAgent.TimeoutSeconds,
		},
	}

	// Try to load existing configuration
	if err := m.loadExistingConfig(); err == nil {
		m.editMode = true
	}

	return m
}

func (m *Model) loadExistingConfig() error {
	if _, err := os.Stat("agent.toml"); os.IsNotExist(err) {
		return err
	}

	m.existingFile = "agent.toml"

	var cfg config.Config
	md, err := toml.DecodeFile("agent.toml", &cfg)
	if err != nil {
		return err
	}

	if cfg.Agent.WorkDir != "" {
		m.config.WorkDir = cfg.Agent.WorkDir
	}

	if cfg.LLM.Provider != "" {
		m.config.Provider = cfg.LLM.Provider
	}
	if cfg.LLM.Model != "" {
		m.config.Model = cfg.LLM.Model
	}
	if cfg.LLM.BaseURL != "" {
		m.config.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.LLM.APIKey != "" {
		m.config.APIKey = cfg.LLM.APIKey
		m.config.CredentialMethod = credentialInline
	}
	if cfg.LLM.APIKeyEnv != "" {
		m.config.APIKeyEnv = cfg.LLM.APIKeyEnv
		m.config.CredentialMethod = credentialEnv
	}
	if cfg.LLM.MaxTokens > 0 {
		m.config.MaxTokens = cfg.LLM.MaxTokens
	}

	if cfg.Limits.MaxToolRounds > 0 {
		m.config.MaxToolRounds = cfg.Limits.MaxToolRounds
	}
	if cfg.Limits.MaxRepeatSignatures > 0 {
		m.config.MaxRepeatSignatures = cfg.Limits.MaxRepeatSignatures
	}
	if cfg.Limits.SignatureWindow > 0 {
		m.config.SignatureWindow = cfg.Limits.SignatureWindow
	}
	if cfg.Limits.MaxMissingFiles > 0 {
		m.config.MaxMissingFiles = cfg.Limits.MaxMissingFiles
	}

	// max_depth = 0 is a valid setting (spawning disabled), so presence
	// matters, not the value.
	if md.IsDefined("subagent", "max_depth") {
		m.config.MaxDepth = cfg.SubAgent.MaxDepth
	}
	if cfg.SubAgent.TimeoutSeconds > 0 {
		m.config.TimeoutSeconds = cfg.SubAgent.TimeoutSeconds
	}

	return nil
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case filesWrittenMsg:
		m.filesWritten = msg.files
		m.step = StepComplete
		return m, nil
	case errMsg:
		m.err = msg.error
		m.step = StepComplete
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Text input steps capture all keys except ctrl+c and enter
		if m.isTextInputStep() {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "enter":
				return m.handleEnter()
			default:
				var cmd tea.Cmd
				m.textInput, cmd = m.textInput.Update(msg)
				return m, cmd
			}
		}

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.step == StepComplete || m.step == StepWelcome {
				return m, tea.Quit
			}
			// Go back
			if m.step > StepWelcome {
				m.step = m.previousStep()
				m.cursor = 0
			}
			return m, nil

		case "enter":
			return m.handleEnter()

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "j":
			max := m.maxCursorForStep()
			if m.cursor < max {
				m.cursor++
			}
			return m, nil
		}
	}

	return m, nil
}

func (m Model) previousStep() Step {
	// Handle conditional step skipping when going back
	prev := m.step - 1

	if prev == StepAPIKey && m.config.CredentialMethod != credentialInline {
		prev = StepAPIKeyEnv
	}
	if prev == StepAPIKeyEnv && m.config.CredentialMethod != credentialEnv {
		prev = StepCredential
	}
	if (prev == StepAPIKey || prev == StepAPIKeyEnv || prev == StepCredential) && !m.needsAPIKey() {
		prev = StepBaseURL
	}
	if prev == StepBaseURL && !m.needsBaseURL() {
		prev = StepCustomModel
	}
	if prev == StepCustomModel && !m.needsCustomModelInput() {
		prev = StepModel
	}
	if prev == StepModel && m.needsCustomModelInput() {
		prev = StepProvider
	}

	return prev
}

func (m Model) maxCursorForStep() int {
	switch m.step {
	case StepProvider:
		return len(m.getProviders()) - 1
	case StepModel:
		return len(m.getModels()) - 1
	case StepCredential:
		return 1 // env, inline
	case StepRounds:
		return len(m.getRoundOptions()) - 1
	case StepDepth:
		return len(m.getDepthOptions()) - 1
	case StepConfirm:
		return 1 // confirm, cancel
	default:
		return 0
	}
}

func (m Model) isTextInputStep() bool {
	switch m.step {
	case StepCustomModel, StepBaseURL, StepAPIKeyEnv, StepAPIKey, StepWorkDir:
		return true
	}
	return false
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.step {
	case StepWelcome:
		m.step = StepProvider
		m.cursor = m.findProviderIndex(m.config.Provider)

	case StepProvider:
		providers := m.getProviders()
		if m.cursor >= 0 && m.cursor < len(providers) {
			m.config.Provider = providers[m.cursor].id
			// Only apply defaults if not in edit mode
			if !m.editMode {
				m.applyProviderDefaults()
			}
		}
		if m.needsCustomModelInput() {
			m.step = StepCustomModel
			m.textInput.SetValue(m.config.Model)
			m.textInput.Placeholder = "model name"
			m.textInput.Focus()
		} else {
			m.step = StepModel
			m.cursor = m.findModelIndex()
		}

	case StepModel:
		models := m.getModels()
		if m.cursor >= 0 && m.cursor < len(models) {
			m.config.Model = models[m.cursor].id
		}
		return m.enterAfterModel()

	case StepCustomModel:
		model := strings.TrimSpace(m.textInput.Value())
		if model == "" {
			m.err = fmt.Errorf("model name is required")
			return m, nil
		}
		m.err = nil
		m.config.Model = model
		return m.enterAfterModel()

	case StepBaseURL:
		url := strings.TrimSpace(m.textInput.Value())
		if url == "" && m.requiresBaseURL() {
			m.err = fmt.Errorf("base URL is required for %s", m.config.Provider)
			return m, nil
		}
		m.err = nil
		m.config.BaseURL = url
		if m.needsAPIKey() {
			m.step = StepCredential
			m.cursor = m.findCredentialIndex()
		} else {
			m.enterWorkDir()
		}

	case StepCredential:
		if m.cursor == 0 {
			m.config.CredentialMethod = credentialEnv
			m.step = StepAPIKeyEnv
			if m.config.APIKeyEnv != "" {
				m.textInput.SetValue(m.config.APIKeyEnv)
			} else {
				m.textInput.SetValue(config.DefaultAPIKeyEnv(m.config.Provider))
			}
			m.textInput.Placeholder = "MY_API_KEY"
			m.textInput.Focus()
		} else {
			m.config.CredentialMethod = credentialInline
			m.step = StepAPIKey
			m.textInput.SetValue("")
			m.textInput.Placeholder = "sk-... (leave empty to keep existing)"
			m.textInput.EchoMode = textinput.EchoPassword
			m.textInput.Focus()
		}

	case StepAPIKeyEnv:
		name := strings.TrimSpace(m.textInput.Value())
		if name == "" {
			name = config.DefaultAPIKeyEnv(m.config.Provider)
		}
		if name == "" {
			m.err = fmt.Errorf("environment variable name is required")
			return m, nil
		}
		m.err = nil
		m.config.APIKeyEnv = name
		m.config.APIKey = ""
		m.enterWorkDir()

	case StepAPIKey:
		if m.textInput.Value() != "" {
			m.config.APIKey = m.textInput.Value()
		}
		m.config.APIKeyEnv = ""
		m.textInput.EchoMode = textinput.EchoNormal
		m.enterWorkDir()

	case StepWorkDir:
		m.config.WorkDir = strings.TrimSpace(m.textInput.Value())
		if m.config.WorkDir == "" {
			m.config.WorkDir = "workspace"
		}
		m.step = StepRounds
		m.cursor = m.findRoundsIndex()

	case StepRounds:
		opts := m.getRoundOptions()
		if m.cursor >= 0 && m.cursor < len(opts) {
			m.config.MaxToolRounds = opts[m.cursor].value
		}
		m.step = StepDepth
		m.cursor = m.findDepthIndex()

	case StepDepth:
		opts := m.getDepthOptions()
		if m.cursor >= 0 && m.cursor < len(opts) {
			m.config.MaxDepth = opts[m.cursor].value
		}
		m.step = StepConfirm
		m.cursor = 0

	case StepConfirm:
		if m.cursor == 0 { // Confirm
			m.step = StepWriteFiles
			return m, m.writeFiles()
		}
		// Cancel - go back to provider selection
		m.step = StepProvider
		m.cursor = m.findProviderIndex(m.config.Provider)

	case StepComplete:
		return m, tea.Quit
	}

	return m, nil
}

// enterAfterModel routes past the model steps: base URL when the
// provider needs one, then credentials, then the work directory.
func (m Model) enterAfterModel() (tea.Model, tea.Cmd) {
	switch {
	case m.needsBaseURL():
		m.step = StepBaseURL
		if m.config.BaseURL != "" {
			m.textInput.SetValue(m.config.BaseURL)
		} else {
			m.textInput.SetValue(m.getDefaultBaseURL())
		}
		m.textInput.Placeholder = "http://localhost:1234/v1"
		m.textInput.Focus()
	case m.needsAPIKey():
		m.step = StepCredential
		m.cursor = m.findCredentialIndex()
	default:
		m.enterWorkDir()
	}
	return m, nil
}

func (m *Model) enterWorkDir() {
	m.step = StepWorkDir
	m.textInput.SetValue(m.config.WorkDir)
	m.textInput.Placeholder = "workspace"
	m.textInput.Focus()
}

func (m Model) needsCustomModelInput() bool {
	switch m.config.Provider {
	case ProviderLMStudio, ProviderOllama, ProviderOpenRouter, ProviderLiteLLM, ProviderCompat:
		return true
	}
	return false
}

func (m Model) needsBaseURL() bool {
	switch m.config.Provider {
	case ProviderLMStudio, ProviderOllama, ProviderOpenRouter, ProviderLiteLLM, ProviderCompat:
		return true
	}
	return false
}

// requiresBaseURL reports providers with no usable default endpoint.
func (m Model) requiresBaseURL() bool {
	switch m.config.Provider {
	case ProviderLiteLLM, ProviderCompat:
		return true
	}
	return false
}

func (m Model) needsAPIKey() bool {
	switch m.config.Provider {
	case ProviderLMStudio, ProviderOllama:
		return false
	}
	return true
}

func (m Model) getDefaultBaseURL() string {
	switch m.config.Provider {
	case ProviderLMStudio:
		return "http://localhost:1234/v1"
	case ProviderOllama:
		return "http://localhost:11434/v1"
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	case ProviderLiteLLM:
		return "http://localhost:4000/v1"
	default:
		return ""
	}
}

func (m *Model) applyProviderDefaults() {
	switch m.config.Provider {
	case ProviderLMStudio:
		m.config.Model = "qwen/qwen3-4b-2507"
		m.config.BaseURL = "http://localhost:1234/v1"
		m.config.APIKey = "lm-studio"
		m.config.APIKeyEnv = ""
	case ProviderOllama:
		m.config.Model = "llama3.2"
		m.config.BaseURL = "http://localhost:11434/v1"
		m.config.APIKey = ""
		m.config.APIKeyEnv = ""
	case ProviderOpenAI:
		m.config.Model = "gpt-4o"
		m.config.BaseURL = ""
		m.config.APIKey = ""
		m.config.APIKeyEnv = ""
	case ProviderAnthropic:
		m.config.Model = "claude-sonnet-4-20250514"
		m.config.BaseURL = ""
		m.config.APIKey = ""
		m.config.APIKeyEnv = ""
	case ProviderOpenRouter:
		m.config.Model = "anthropic/claude-sonnet-4"
		m.config.BaseURL = "https://openrouter.ai/api/v1"
		m.config.APIKey = ""
		m.config.APIKeyEnv = ""
	case ProviderLiteLLM:
		m.config.Model = ""
		m.config.BaseURL = "http://localhost:4000/v1"
		m.config.APIKey = ""
		m.config.APIKeyEnv = ""
	case ProviderCompat:
		m.config.Model = ""
		m.config.BaseURL = ""
		m.config.APIKey = ""
		m.config.APIKeyEnv = ""
	}
}

// Helper functions to find current selection index for edit mode

func (m Model) findProviderIndex(provider string) int {
	if provider == "" {
		return 0
	}
	providers := m.getProviders()
	for i, p := range providers {
		if p.id == provider {
			return i
		}
	}
	return 0
}

func (m Model) findModelIndex() int {
	if m.config.Model == "" {
		return 0
	}
	models := m.getModels()
	for i, model := range models {
		if model.id == m.config.Model {
			return i
		}
	}
	return 0
}

func (m Model) findCredentialIndex() int {
	if m.config.CredentialMethod == credentialInline {
		return 1
	}
	return 0
}

func (m Model) findRoundsIndex() int {
	opts := m.getRoundOptions()
	for i, o := range opts {
		if o.value == m.config.MaxToolRounds {
			return i
		}
	}
	return 0
}

func (m Model) findDepthIndex() int {
	opts := m.getDepthOptions()
	for i, o := range opts {
		if o.value == m.config.MaxDepth {
			return i
		}
	}
	return 0
}

type providerOption struct {
	id   string
	name string
	desc string
}

func (m Model) getProviders() []providerOption {
	return []providerOption{
		{ProviderLMStudio, "LM Studio", "Local models with UI (no API key needed)"},
		{ProviderOllama, "Ollama", "Local Ollama server (no API key needed)"},
		{ProviderOpenAI, "OpenAI", "GPT-4o, o3 models"},
		{ProviderAnthropic, "Anthropic", "Claude models"},
		{ProviderOpenRouter, "OpenRouter", "Multi-provider router"},
		{ProviderLiteLLM, "LiteLLM", "Self-hosted proxy (OpenAI-compatible)"},
		{ProviderCompat, "Custom", "Any OpenAI-compatible endpoint"},
	}
}

type modelOption struct {
	id   string
	name string
}

func (m Model) getModels() []modelOption {
	switch m.config.Provider {
	case ProviderAnthropic:
		return []modelOption{
			{"claude-sonnet-4-20250514", "Claude Sonnet 4 (recommended)"},
			{"claude-opus-4-20250514", "Claude Opus 4 (most capable)"},
			{"claude-3-5-haiku-20241022", "Claude 3.5 Haiku (fast)"},
		}
	case ProviderOpenAI:
		return []modelOption{
			{"gpt-4o", "GPT-4o (recommended)"},
			{"gpt-4o-mini", "GPT-4o Mini (fast)"},
			{"o3", "o3 (reasoning)"},
			{"o3-mini", "o3 Mini (fast reasoning)"},
		}
	default:
		return []modelOption{
			{m.config.Model, "Current model"},
		}
	}
}

type roundsOption struct {
	value int
	desc  string
}

func (m Model) getRoundOptions() []roundsOption {
	opts := []roundsOption{
		{6, "Small tasks, fail fast"},
		{12, "Balanced (default)"},
		{24, "Larger multi-file tasks"},
		{48, "Long batch work"},
	}
	for _, o := range opts {
		if o.value == m.config.MaxToolRounds {
			return opts
		}
	}
	return append([]roundsOption{{m.config.MaxToolRounds, "Current setting"}}, opts...)
}

type depthOption struct {
	value int
	desc  string
}

func (m Model) getDepthOptions() []depthOption {
	return []depthOption{
		{0, "Disable spawning"},
		{1, "Only the main agent may spawn"},
		{2, "Sub-agents may spawn one more level (default)"},
		{3, "Deep nesting"},
	}
}

// View renders the current step
func (m Model) View() string {
	var s strings.Builder

	switch m.step {
	case StepWelcome:
		s.WriteString(m.viewWelcome())
	case StepProvider:
		s.WriteString(m.viewProvider())
	case StepModel:
		s.WriteString(m.viewModel())
	case StepCustomModel:
		s.WriteString(m.viewCustomModel())
	case StepBaseURL:
		s.WriteString(m.viewBaseURL())
	case StepCredential:
		s.WriteString(m.viewCredential())
	case StepAPIKeyEnv:
		s.WriteString(m.viewAPIKeyEnv())
	case StepAPIKey:
		s.WriteString(m.viewAPIKey())
	case StepWorkDir:
		s.WriteString(m.viewWorkDir())
	case StepRounds:
		s.WriteString(m.viewRounds())
	case StepDepth:
		s.WriteString(m.viewDepth())
	case StepConfirm:
		s.WriteString(m.viewConfirm())
	case StepWriteFiles:
		s.WriteString(m.viewWriting())
	case StepComplete:
		s.WriteString(m.viewComplete())
	}

	return s.String()
}

func (m Model) viewWelcome() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Task Agent Setup"))
	s.WriteString("\n\n")
	if m.editMode {
		s.WriteString(infoStyle.Render("Found existing configuration: " + m.existingFile))
		s.WriteString("\n\n")
		s.WriteString(normalStyle.Render("This wizard will help you edit your configuration."))
		s.WriteString("\n")
		s.WriteString(normalStyle.Render("Current values will be pre-filled."))
		s.WriteString("\n\n")
	} else {
		s.WriteString(normalStyle.Render("This wizard will help you configure the agent."))
		s.WriteString("\n\n")
	}
	s.WriteString(dimStyle.Render("Press Enter to continue, q to quit"))
	return s.String()
}

func (m Model) viewProvider() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("LLM Provider") + "\n")
	s.WriteString(subtitleStyle.Render("Select the chat endpoint to use") + "\n\n")

	providers := m.getProviders()
	for i, p := range providers {
		if m.cursor >= len(providers) {
			m.cursor = len(providers) - 1
		}
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(p.name) + " " + dimStyle.Render(p.desc) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select, q to go back"))
	return s.String()
}

func (m Model) viewModel() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Model Selection") + "\n")
	s.WriteString(subtitleStyle.Render("Select the model to use") + "\n\n")

	models := m.getModels()
	for i, model := range models {
		if m.cursor >= len(models) {
			m.cursor = len(models) - 1
		}
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(model.name) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select"))
	return s.String()
}

func (m Model) viewCustomModel() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Model Name") + "\n")

	switch m.config.Provider {
	case ProviderLMStudio:
		s.WriteString(subtitleStyle.Render("Enter the model name from LM Studio") + "\n\n")
		s.WriteString(dimStyle.Render("Check the LM Studio UI for loaded model names") + "\n\n")
	case ProviderOllama:
		s.WriteString(subtitleStyle.Render("Enter the Ollama model to use") + "\n\n")
		s.WriteString(dimStyle.Render("Examples: llama3.2, qwen2.5, mistral") + "\n")
		s.WriteString(dimStyle.Render("Run 'ollama list' to see your downloaded models") + "\n\n")
	case ProviderOpenRouter:
		s.WriteString(subtitleStyle.Render("Enter the OpenRouter model path") + "\n\n")
		s.WriteString(dimStyle.Render("Examples: anthropic/claude-sonnet-4, openai/gpt-4o") + "\n\n")
	case ProviderLiteLLM:
		s.WriteString(subtitleStyle.Render("Enter the model name (as configured in LiteLLM)") + "\n\n")
		s.WriteString(dimStyle.Render("Examples: claude-sonnet-4, gpt-4o") + "\n\n")
	default:
		s.WriteString(subtitleStyle.Render("Enter the model name") + "\n\n")
	}

	s.WriteString(m.textInput.View() + "\n")
	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString("\n" + dimStyle.Render("Enter to continue"))
	return s.String()
}

func (m Model) viewBaseURL() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Base URL") + "\n")
	s.WriteString(subtitleStyle.Render("Enter the API endpoint URL") + "\n\n")
	s.WriteString(m.textInput.View() + "\n")
	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString("\n" + dimStyle.Render("The endpoint must speak the OpenAI chat completions dialect"))
	return s.String()
}

func (m Model) viewCredential() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Credential Storage") + "\n")
	s.WriteString(subtitleStyle.Render("How should the API key be provided?") + "\n\n")

	options := []struct {
		name string
		desc string
	}{
		{"Environment variable", "agent.toml names the variable, never the key (recommended)"},
		{"Inline key", "the key is written to agent.toml in plain text"},
	}

	for i, opt := range options {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(opt.name) + " - " + dimStyle.Render(opt.desc) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select"))
	return s.String()
}

func (m Model) viewAPIKeyEnv() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("API Key Variable") + "\n")
	s.WriteString(subtitleStyle.Render("Enter the environment variable holding the key for "+m.config.Provider) + "\n\n")
	s.WriteString(m.textInput.View() + "\n")
	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString("\n" + dimStyle.Render("Set the variable before running the agent"))
	return s.String()
}

func (m Model) viewAPIKey() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("API Key") + "\n")
	s.WriteString(subtitleStyle.Render("Enter your API key for "+m.config.Provider) + "\n\n")
	s.WriteString(m.textInput.View() + "\n\n")
	s.WriteString(dimStyle.Render("Stored in agent.toml; prefer the environment method on shared machines"))
	return s.String()
}

func (m Model) viewWorkDir() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Working Directory") + "\n")
	s.WriteString(subtitleStyle.Render("Where will the agent work?") + "\n\n")
	s.WriteString(m.textInput.View() + "\n\n")
	s.WriteString(dimStyle.Render("All file tools are confined to this directory"))
	return s.String()
}

func (m Model) viewRounds() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Round Budget") + "\n")
	s.WriteString(subtitleStyle.Render("How many tool rounds may a single run use?") + "\n\n")

	opts := m.getRoundOptions()
	for i, opt := range opts {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(fmt.Sprintf("%d rounds", opt.value)) + " - " + dimStyle.Render(opt.desc) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("When the budget runs out the agent answers with what it has"))
	return s.String()
}

func (m Model) viewDepth() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Sub-agent Nesting") + "\n")
	s.WriteString(subtitleStyle.Render("How deep may agents spawn sub-agents?") + "\n\n")

	opts := m.getDepthOptions()
	for i, opt := range opts {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(fmt.Sprintf("%d", opt.value)) + " - " + dimStyle.Render(opt.desc) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select"))
	return s.String()
}

func (m Model) viewConfirm() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Configuration Summary") + "\n\n")

	s.WriteString(normalStyle.Render("Provider: ") + selectedStyle.Render(m.config.Provider) + "\n")
	s.WriteString(normalStyle.Render("Model: ") + selectedStyle.Render(m.config.Model) + "\n")
	if m.config.BaseURL != "" {
		s.WriteString(normalStyle.Render("Base URL: ") + selectedStyle.Render(m.config.BaseURL) + "\n")
	}
	s.WriteString(normalStyle.Render("Credentials: ") + selectedStyle.Render(m.credentialSummary()) + "\n")
	s.WriteString(normalStyle.Render("Work dir: ") + selectedStyle.Render(m.config.WorkDir) + "\n")
	s.WriteString(normalStyle.Render("Round budget: ") + selectedStyle.Render(fmt.Sprintf("%d", m.config.MaxToolRounds)) + "\n")
	s.WriteString(normalStyle.Render("Sub-agent depth: ") + selectedStyle.Render(fmt.Sprintf("%d", m.config.MaxDepth)) + "\n")

	s.WriteString("\n" + normalStyle.Render("Files to create:") + "\n")
	s.WriteString(dimStyle.Render("  - agent.toml\n"))

	s.WriteString("\n")
	options := []string{"Create files", "Go back"}
	for i, opt := range options {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(opt) + "\n")
	}

	return s.String()
}

func (m Model) credentialSummary() string {
	if m.config.APIKeyEnv != "" {
		return "$" + m.config.APIKeyEnv
	}
	if m.config.APIKey != "" {
		return "inline key"
	}
	return "none (local endpoint)"
}

func (m Model) viewWriting() string {
	return (titleStyle.Render("Writing Files...") + "\n\n" +
		normalStyle.Render("Creating configuration files..."))
}

func (m Model) viewComplete() string {
	if m.err != nil {
		return (errorStyle.Render("Error") + "\n\n" +
			normalStyle.Render(m.err.Error()) + "\n\n" +
			dimStyle.Render("Press q to exit"))
	}

	var s strings.Builder
	s.WriteString(successStyle.Render("✓ Setup Complete!") + "\n\n")
	s.WriteString(normalStyle.Render("Created files:") + "\n")
	for _, f := range m.filesWritten {
		s.WriteString(dimStyle.Render("  - "+f) + "\n")
	}

	s.WriteString("\n" + normalStyle.Render("Next steps:") + "\n")
	s.WriteString(dimStyle.Render("  1. Review agent.toml") + "\n")
	if m.config.APIKeyEnv != "" {
		s.WriteString(dimStyle.Render("  2. Set "+m.config.APIKeyEnv+" environment variable") + "\n")
		s.WriteString(dimStyle.Render("  3. Run: taskagent run \"describe your task\"") + "\n")
	} else {
		s.WriteString(dimStyle.Render("  2. Run: taskagent run \"describe your task\"") + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("Press q to exit"))
	return s.String()
}

// Messages
type filesWrittenMsg struct {
	files []string
}

type errMsg struct {
	error error
}

func (m Model) writeFiles() tea.Cmd {
	return func() tea.Msg {
		agentTOML := m.generateTOML()
		if err := os.WriteFile("agent.toml", []byte(agentTOML), 0644); err != nil {
			return errMsg{err}
		}
		return filesWrittenMsg{files: []string{"agent.toml"}}
	}
}

func (m Model) generateTOML() string {
	var sb strings.Builder

	sb.WriteString("# Task agent configuration\n")
	sb.WriteString("# Generated by: taskagent setup\n\n")

	sb.WriteString("[agent]\n")
	sb.WriteString(fmt.Sprintf("work_dir = %q\n\n", m.config.WorkDir))

	sb.WriteString("[llm]\n")
	sb.WriteString(fmt.Sprintf("provider = %q\n", m.config.Provider))
	sb.WriteString(fmt.Sprintf("model = %q\n", m.config.Model))
	if m.config.BaseURL != "" {
		sb.WriteString(fmt.Sprintf("base_url = %q\n", m.config.BaseURL))
	}
	if m.config.APIKeyEnv != "" {
		sb.WriteString(fmt.Sprintf("api_key_env = %q\n", m.config.APIKeyEnv))
	} else if m.config.APIKey != "" {
		sb.WriteString(fmt.Sprintf("api_key = %q\n", m.config.APIKey))
	}
	sb.WriteString(fmt.Sprintf("max_tokens = %d\n\n", m.config.MaxTokens))

	sb.WriteString("# Loop protection\n")
	sb.WriteString("[limits]\n")
	sb.WriteString(fmt.Sprintf("max_tool_rounds = %d\n", m.config.MaxToolRounds))
	sb.WriteString(fmt.Sprintf("max_repeat_signatures = %d\n", m.config.MaxRepeatSignatures))
	sb.WriteString(fmt.Sprintf("signature_window = %d\n", m.config.SignatureWindow))
	sb.WriteString(fmt.Sprintf("max_missing_files = %d\n\n", m.config.MaxMissingFiles))

	sb.WriteString("[subagent]\n")
	sb.WriteString(fmt.Sprintf("max_depth = %d\n", m.config.MaxDepth))
	sb.WriteString(fmt.Sprintf("timeout_seconds = %d\n", m.config.TimeoutSeconds))

	return sb.String()
}

// Run starts the setup wizard
func Run() error {
	p := tea.NewProgram(New())
	_, err := p.Run()
	return err
}
