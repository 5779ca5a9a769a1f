package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"

	"github.com/Nomadcxx/anipar/internal/config"
	"github.com/Nomadcxx/anipar/internal/ui"
)

const (
	binDir      = "/usr/local/bin"
	unitDir     = "/etc/systemd/system"
	serviceName = "anipard.service"
)

var binaries = []string{"anipar", "anipard"}

// Styles
var (
	checkMark = lipgloss.NewStyle().Foreground(ui.ColorSuccess).SetString("[OK]")
	failMark  = lipgloss.NewStyle().Foreground(ui.ColorError).SetString("[FAIL]")
	skipMark  = lipgloss.NewStyle().Foreground(ui.ColorWarning).SetString("[SKIP]")
	pointer   = lipgloss.NewStyle().Foreground(ui.RAMARed).Render("▸ ")
)

type installStep int

const (
	stepWelcome installStep = iota
	stepConfigPrompt
	stepInstalling
	stepComplete
)

type taskStatus int

const (
	statusPending taskStatus = iota
	statusRunning
	statusComplete
	statusFailed
	statusSkipped
)

// target is where the installer puts things for the invoking user
type target struct {
	fs             afero.Fs
	user           string // SUDO_USER, empty when run as root directly
	home           string
	overrideConfig bool
}

func (t target) configPath() string {
	return filepath.Join(t.home, ".config", "anipar", "config.toml")
}

type installTask struct {
	name        string
	description string
	execute     func(target) error
	optional    bool
	status      taskStatus
}

type model struct {
	step               installStep
	tasks              []installTask
	currentTaskIndex   int
	width              int
	height             int
	spinner            spinner.Model
	errors             []string
	uninstallMode      bool
	selectedOption     int // 0 = Install, 1 = Uninstall
	configPromptOption int // 0 = Override, 1 = Keep existing
	binariesExist      bool
	target             target
}

type taskCompleteMsg struct {
	index int
	err   error
}

func newModel(t target) model {
	s := spinner.New()
	s.Style = lipgloss.NewStyle().Foreground(ui.RAMAFireRed)
	s.Spinner = spinner.Dot

	return model{
		step:             stepWelcome,
		currentTaskIndex: -1,
		spinner:          s,
		binariesExist:    checkExistingBinaries(t.fs),
		target:           t,
	}
}

// checkExistingBinaries reports whether both binaries are already installed
func checkExistingBinaries(fs afero.Fs) bool {
	for _, binary := range binaries {
		if ok, _ := afero.Exists(fs, filepath.Join(binDir, binary)); !ok {
			return false
		}
	}
	return true
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Allow exit from any step except during installation
			if m.step != stepInstalling {
				return m, tea.Quit
			}
		case "up", "k":
			if m.step == stepWelcome && m.selectedOption > 0 {
				m.selectedOption--
			}
			if m.step == stepConfigPrompt && m.configPromptOption > 0 {
				m.configPromptOption--
			}
		case "down", "j":
			if m.step == stepWelcome && m.selectedOption < 1 {
				m.selectedOption++
			}
			if m.step == stepConfigPrompt && m.configPromptOption < 1 {
				m.configPromptOption++
			}
		case "enter":
			switch m.step {
			case stepWelcome:
				m.uninstallMode = m.selectedOption == 1
				if !m.uninstallMode {
					if ok, _ := afero.Exists(m.target.fs, m.target.configPath()); ok {
						m.step = stepConfigPrompt
						m.configPromptOption = 1 // Default to "Keep existing"
						return m, nil
					}
				}
				return m.start()
			case stepConfigPrompt:
				m.target.overrideConfig = m.configPromptOption == 0
				return m.start()
			case stepComplete:
				return m, tea.Quit
			}
		}

	case taskCompleteMsg:
		task := &m.tasks[msg.index]
		if msg.err == nil {
			task.status = statusComplete
		} else if task.optional {
			task.status = statusSkipped
			m.errors = append(m.errors, fmt.Sprintf("%s (skipped): %v", task.name, msg.err))
		} else {
			task.status = statusFailed
			m.errors = append(m.errors, fmt.Sprintf("%s: %v", task.name, msg.err))
			m.step = stepComplete
			return m, nil
		}

		m.currentTaskIndex++
		if m.currentTaskIndex >= len(m.tasks) {
			m.step = stepComplete
			return m, nil
		}

		m.tasks[m.currentTaskIndex].status = statusRunning
		return m, executeTask(m.currentTaskIndex, m.tasks[m.currentTaskIndex], m.target)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// start runs the first task of the chosen mode
func (m model) start() (tea.Model, tea.Cmd) {
	if m.tasks == nil {
		m.tasks = tasksFor(m.uninstallMode)
	}
	m.step = stepInstalling
	m.currentTaskIndex = 0
	m.tasks[0].status = statusRunning
	return m, tea.Batch(
		m.spinner.Tick,
		executeTask(0, m.tasks[0], m.target),
	)
}

func tasksFor(uninstall bool) []installTask {
	if uninstall {
		return []installTask{
			{name: "Check privileges", description: "Checking root access", execute: checkPrivileges},
			{name: "Stop service", description: "Stopping anipard", execute: stopService, optional: true},
			{name: "Remove binaries", description: "Removing " + binDir + "/anipar*", execute: removeBinaries},
			{name: "Remove systemd unit", description: "Removing " + serviceName, execute: removeSystemdUnit},
		}
	}
	return []installTask{
		{name: "Check privileges", description: "Checking root access", execute: checkPrivileges},
		{name: "Build binaries", description: "Building anipar and anipard", execute: buildBinaries},
		{name: "Install binaries", description: "Installing to " + binDir, execute: installBinaries},
		{name: "Create config", description: "Writing default configuration", execute: createConfig},
		{name: "Install systemd unit", description: "Installing " + serviceName, execute: installSystemdUnit, optional: true},
	}
}

func executeTask(index int, task installTask, t target) tea.Cmd {
	return func() tea.Msg {
		return taskCompleteMsg{index: index, err: task.execute(t)}
	}
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(ui.FormatASCIIHeader())
	content.WriteString("\n\n")

	title := "anipar installer"
	if m.uninstallMode {
		title = "anipar uninstaller"
	}
	content.WriteString(lipgloss.NewStyle().Foreground(ui.RAMAForeground).Bold(true).Render(title))
	content.WriteString("\n\n")

	var mainContent string
	switch m.step {
	case stepWelcome:
		mainContent = m.renderWelcome()
	case stepConfigPrompt:
		mainContent = m.renderConfigPrompt()
	case stepInstalling:
		mainContent = m.renderInstalling()
	case stepComplete:
		mainContent = m.renderComplete()
	}

	mainStyle := lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ui.RAMARed).
		Width(m.width - 4)
	content.WriteString(mainStyle.Render(mainContent))
	content.WriteString("\n")

	if help := m.helpText(); help != "" {
		content.WriteString("\n" + ui.MutedStyle.Italic(true).Render(help))
	}

	return lipgloss.NewStyle().
		Background(ui.RAMABackground).
		Foreground(ui.RAMAForeground).
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Top).
		Render(content.String())
}

func option(selected bool, label, detail string) string {
	prefix := "  "
	if selected {
		prefix = pointer
	}
	return prefix + label + "\n    " + detail + "\n\n"
}

func (m model) renderWelcome() string {
	var b strings.Builder

	if m.binariesExist {
		b.WriteString(ui.SuccessStyle.Render("✓ anipar is already installed") + "\n")
		b.WriteString(ui.MutedStyle.Render("  Binaries found in "+binDir) + "\n\n")
	}

	b.WriteString("Select an option:\n\n")
	b.WriteString(option(m.selectedOption == 0, "Install anipar", "Builds binaries and installs system-wide"))
	b.WriteString(option(m.selectedOption == 1, "Uninstall anipar", "Removes anipar from your system"))
	b.WriteString(ui.MutedStyle.Render("Requires root privileges"))

	return b.String()
}

func (m model) renderConfigPrompt() string {
	var b strings.Builder

	b.WriteString(ui.WarningStyle.Render("⚠ Existing Configuration Detected") + "\n\n")
	b.WriteString("An existing anipar configuration file was found at:\n")
	b.WriteString(ui.MutedStyle.Render(m.target.configPath()) + "\n\n")
	b.WriteString("What would you like to do?\n\n")
	b.WriteString(option(m.configPromptOption == 0, "Override with new default configuration",
		"Your current config will be backed up to config.toml.backup"))
	b.WriteString(option(m.configPromptOption == 1, "Keep existing configuration",
		"Your current settings will be preserved"))
	b.WriteString(ui.MutedStyle.Render("Note: Binaries will be updated either way"))

	return b.String()
}

func (m model) renderInstalling() string {
	var lines []string
	for _, task := range m.tasks {
		switch task.status {
		case statusPending:
			lines = append(lines, ui.MutedStyle.Render("  "+task.name))
		case statusRunning:
			lines = append(lines, m.spinner.View()+" "+lipgloss.NewStyle().Foreground(ui.RAMAFireRed).Render(task.description))
		case statusComplete:
			lines = append(lines, checkMark.String()+" "+task.name)
		case statusFailed:
			lines = append(lines, failMark.String()+" "+task.name)
		case statusSkipped:
			lines = append(lines, skipMark.String()+" "+task.name)
		}
	}

	out := strings.Join(lines, "\n")
	if len(m.errors) > 0 {
		out += "\n\n" + ui.WarningStyle.Render(strings.Join(m.errors, "\n"))
	}
	return out
}

// failed reports whether a required task failed
func (m model) failed() bool {
	for _, task := range m.tasks {
		if task.status == statusFailed {
			return true
		}
	}
	return false
}

func (m model) renderComplete() string {
	var b strings.Builder

	switch {
	case m.failed():
		msg := "Installation failed"
		if m.uninstallMode {
			msg = "Uninstallation failed"
		}
		b.WriteString(ui.ErrorStyle.Render(msg) + "\n\n")
		b.WriteString(m.renderInstalling())

	case m.uninstallMode:
		b.WriteString(ui.SuccessStyle.Render("✓ Uninstallation complete!") + "\n\n")
		b.WriteString(ui.MutedStyle.Render("anipar has been removed from your system") + "\n\n")
		b.WriteString(ui.MutedStyle.Render("Configuration preserved at "+filepath.Dir(m.target.configPath())))

	default:
		b.WriteString(ui.SuccessStyle.Render("✓ Installation complete!") + "\n\n")
		b.WriteString(ui.TitleStyle.UnsetMargins().Render("Get Started:") + "\n")
		for _, usage := range []string{
			"anipar parse <title>        - Parse release titles",
			"anipar batch <list.txt>     - Parse a title list into a report",
			"anipar view <report.json>   - Browse a report",
			"systemctl enable --now " + serviceName + " - Watch the inbox",
		} {
			b.WriteString(ui.MutedStyle.Render("  "+usage) + "\n")
		}
	}

	b.WriteString("\n\nPress Enter to exit")
	return b.String()
}

func (m model) helpText() string {
	switch m.step {
	case stepWelcome, stepConfigPrompt:
		return "↑/↓: Navigate  •  Enter: Continue  •  Q/Ctrl+C: Quit"
	case stepComplete:
		return "Enter: Exit  •  Q/Ctrl+C: Quit"
	default:
		return "Installation in progress..."
	}
}

// Task execution functions

func checkPrivileges(target) error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("installer must be run with sudo or as root")
	}
	return nil
}

func buildBinaries(target) error {
	for _, binary := range binaries {
		cmd := exec.Command("go", "build", "-buildvcs=false", "-o", binary, "./cmd/"+binary+"/")
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to build %s: %s", binary, string(output))
		}
	}
	return nil
}

func installBinaries(target) error {
	for _, binary := range binaries {
		cmd := exec.Command("install", "-Dm755", binary, filepath.Join(binDir, binary))
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("failed to install %s: %w", binary, err)
		}
	}
	return nil
}

// createConfig writes the default config, backing up an existing one when overriding
func createConfig(t target) error {
	path := t.configPath()

	exists, err := afero.Exists(t.fs, path)
	if err != nil {
		return err
	}
	if exists && !t.overrideConfig {
		return nil
	}

	if exists {
		data, err := afero.ReadFile(t.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read existing config: %w", err)
		}
		if err := afero.WriteFile(t.fs, path+".backup", data, 0o644); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Output.ReportDir = filepath.Join(t.home, ".cache", "anipar", "reports")
	cfg.Logging.File = filepath.Join(t.home, ".cache", "anipar", "anipar.log")
	cfg.Daemon.Inbox = filepath.Join(t.home, ".cache", "anipar", "inbox")
	cfg.Daemon.Processed = filepath.Join(t.home, ".cache", "anipar", "inbox", "processed")
	if err := config.SaveTo(t.fs, path, cfg); err != nil {
		return err
	}

	return chownToUser(t, filepath.Dir(path), path)
}

// chownToUser hands files created under sudo back to the invoking user
func chownToUser(t target, paths ...string) error {
	if t.user == "" {
		return nil
	}
	u, err := user.Lookup(t.user)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", t.user, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := t.fs.Chown(p, uid, gid); err != nil {
			return fmt.Errorf("failed to chown %s: %w", p, err)
		}
	}
	return nil
}

// serviceUnit is the systemd unit running anipard as user
func serviceUnit(user string) string {
	var b strings.Builder
	b.WriteString("[Unit]\n")
	b.WriteString("Description=anipar inbox watcher\n")
	b.WriteString("After=network.target\n\n")
	b.WriteString("[Service]\n")
	b.WriteString("Type=simple\n")
	if user != "" {
		b.WriteString("User=" + user + "\n")
	}
	b.WriteString("ExecStart=" + filepath.Join(binDir, "anipard") + "\n")
	b.WriteString("ExecReload=/bin/kill -HUP $MAINPID\n")
	b.WriteString("Restart=on-failure\n\n")
	b.WriteString("[Install]\n")
	b.WriteString("WantedBy=multi-user.target\n")
	return b.String()
}

func installSystemdUnit(t target) error {
	path := filepath.Join(unitDir, serviceName)
	if err := afero.WriteFile(t.fs, path, []byte(serviceUnit(t.user)), 0o644); err != nil {
		return fmt.Errorf("failed to install %s: %w", serviceName, err)
	}
	if err := exec.Command("systemctl", "daemon-reload").Run(); err != nil {
		return fmt.Errorf("failed to reload systemd: %w", err)
	}
	return nil
}

func stopService(target) error {
	return exec.Command("systemctl", "stop", serviceName).Run()
}

func removeBinaries(t target) error {
	for _, binary := range binaries {
		path := filepath.Join(binDir, binary)
		if err := t.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", binary, err)
		}
	}
	return nil
}

func removeSystemdUnit(t target) error {
	exec.Command("systemctl", "disable", serviceName).Run()

	path := filepath.Join(unitDir, serviceName)
	if err := t.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", serviceName, err)
	}

	exec.Command("systemctl", "daemon-reload").Run()
	return nil
}

// currentTarget resolves the invoking user's home, looking through sudo
func currentTarget() (target, error) {
	t := target{fs: afero.NewOsFs(), user: os.Getenv("SUDO_USER")}
	if t.user != "" {
		u, err := user.Lookup(t.user)
		if err != nil {
			return target{}, fmt.Errorf("failed to look up %s: %w", t.user, err)
		}
		t.home = u.HomeDir
		return t, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return target{}, err
	}
	t.home = home
	return t, nil
}

func main() {
	if _, err := exec.LookPath("go"); err != nil {
		fmt.Println("Error: Go is not installed or not in PATH")
		fmt.Println("Please install Go from https://golang.org/dl/")
		os.Exit(1)
	}

	t, err := currentTarget()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(t), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
