package main

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nomadcxx/anipar/internal/config"
)

func memTarget() target {
	return target{fs: afero.NewMemMapFs(), home: "/home/ani"}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	ret, cmd := m.Update(msg)
	next, ok := ret.(model)
	require.True(t, ok)
	return next, cmd
}

func TestCreateConfig(t *testing.T) {
	tgt := memTarget()
	require.NoError(t, createConfig(tgt))

	cfg, err := config.LoadFrom(tgt.fs, "/home/ani/.config/anipar/config.toml")
	require.NoError(t, err)
	assert.Equal(t, "/home/ani/.cache/anipar/inbox", cfg.Daemon.Inbox)
	assert.NoError(t, cfg.Validate())
}

func TestCreateConfigKeepsExisting(t *testing.T) {
	tgt := memTarget()
	path := tgt.configPath()
	require.NoError(t, afero.WriteFile(tgt.fs, path, []byte("[batch]\nworkers = 3\n"), 0o644))

	require.NoError(t, createConfig(tgt))
	data, _ := afero.ReadFile(tgt.fs, path)
	assert.Equal(t, "[batch]\nworkers = 3\n", string(data))

	tgt.overrideConfig = true
	require.NoError(t, createConfig(tgt))
	backup, err := afero.ReadFile(tgt.fs, path+".backup")
	require.NoError(t, err)
	assert.Equal(t, "[batch]\nworkers = 3\n", string(backup))

	cfg, err := config.LoadFrom(tgt.fs, path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Batch.Workers)
}

func TestServiceUnit(t *testing.T) {
	unit := serviceUnit("ani")
	assert.Contains(t, unit, "User=ani\n")
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/anipard\n")
	assert.Contains(t, unit, "ExecReload=/bin/kill -HUP $MAINPID")

	assert.NotContains(t, serviceUnit(""), "User=")
}

func TestRemoveBinariesIgnoresMissing(t *testing.T) {
	tgt := memTarget()
	require.NoError(t, afero.WriteFile(tgt.fs, "/usr/local/bin/anipar", []byte("bin"), 0o755))

	require.NoError(t, removeBinaries(tgt))
	exists, _ := afero.Exists(tgt.fs, "/usr/local/bin/anipar")
	assert.False(t, exists)
}

func TestWelcomeAsksAboutExistingConfig(t *testing.T) {
	tgt := memTarget()
	require.NoError(t, afero.WriteFile(tgt.fs, tgt.configPath(), []byte(""), 0o644))

	m := newModel(tgt)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, stepConfigPrompt, m.step)
	assert.Equal(t, 1, m.configPromptOption, "keeps the existing config by default")
	assert.Contains(t, m.View(), "Existing Configuration Detected")
}

func TestTasksRunInOrder(t *testing.T) {
	var ran []string
	task := func(name string, err error, optional bool) installTask {
		return installTask{name: name, optional: optional, execute: func(target) error {
			ran = append(ran, name)
			return err
		}}
	}

	m := newModel(memTarget())
	m.tasks = []installTask{
		task("one", nil, false),
		task("two", errors.New("no systemd"), true),
		task("three", nil, false),
	}

	ret, _ := m.start()
	m = ret.(model)
	require.Equal(t, stepInstalling, m.step)

	for m.step == stepInstalling {
		msg := executeTask(m.currentTaskIndex, m.tasks[m.currentTaskIndex], m.target)()
		m, _ = update(t, m, msg)
	}

	assert.Equal(t, []string{"one", "two", "three"}, ran)
	assert.Equal(t, statusSkipped, m.tasks[1].status)
	assert.Equal(t, statusComplete, m.tasks[2].status)
	assert.False(t, m.failed())
	require.Len(t, m.errors, 1)
	assert.Contains(t, m.errors[0], "two (skipped)")
}

func TestRequiredTaskFailureStops(t *testing.T) {
	m := newModel(memTarget())
	m.tasks = []installTask{
		{name: "privileges", execute: func(target) error { return errors.New("not root") }},
		{name: "never", execute: func(target) error { t.Fatal("ran after failure"); return nil }},
	}

	ret, _ := m.start()
	m = ret.(model)
	m, _ = update(t, m, executeTask(0, m.tasks[0], m.target)())

	assert.Equal(t, stepComplete, m.step)
	assert.True(t, m.failed())
	assert.Equal(t, statusPending, m.tasks[1].status)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Contains(t, m.View(), "Installation failed")
}

func TestQuitBlockedWhileInstalling(t *testing.T) {
	m := newModel(memTarget())
	m.step = stepInstalling

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd)
}
