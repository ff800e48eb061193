package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"grimm.is/dhcp4c/internal/dhcp4"
)

var (
	statusColorGood = lipgloss.Color("#4ECDC4")
	statusColorWarn = lipgloss.Color("#FFE66D")
	statusColorText = lipgloss.Color("#E0E0E0")
	statusColorDeep = lipgloss.Color("#596E79")

	statusStyleTitle = lipgloss.NewStyle().Foreground(statusColorGood).Bold(true)
	statusStyleCard  = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(statusColorDeep).
				Padding(0, 1)
	statusStyleWarn = lipgloss.NewStyle().Foreground(statusColorWarn).Italic(true)
)

// newLeaseTable builds a two-column (field/value) bubbles/table rendering
// of a lease snapshot.
func newLeaseTable(lease *dhcp4.Lease) table.Model {
	columns := []table.Column{
		{Title: "field", Width: 10},
		{Title: "value", Width: 40},
	}
	rows := []table.Row{
		{"address", lease.YourIPAddr.String()},
		{"server", lease.ServerID.String()},
		{"router", ipListString(lease.Router)},
		{"dns", ipListString(lease.DNS)},
		{"renews", lease.RenewalDueAt().Format(time.Kitchen)},
		{"rebinds", lease.RebindingDueAt().Format(time.Kitchen)},
		{"expires", lease.ExpiresAt().Format(time.Kitchen)},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(statusColorDeep).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(statusColorText).
		Bold(false)
	t.SetStyles(s)
	return t
}

// statusModel is a one-shot bubbletea view over a lease snapshot. There is
// no running-daemon IPC to attach to, so this reads whatever the
// configured LeaseStore last persisted and quits on any key.
type statusModel struct {
	iface string
	lease *dhcp4.Lease
	table table.Model
	err   error
}

func (m statusModel) Init() tea.Cmd { return nil }

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case tea.KeyMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m statusModel) View() string {
	title := statusStyleTitle.Render(fmt.Sprintf("dhcp4c — %s", m.iface))

	if m.err != nil {
		return title + "\n\n" + statusStyleWarn.Render(m.err.Error()) + "\n\npress any key to exit\n"
	}
	if m.lease == nil {
		return title + "\n\n" + statusStyleWarn.Render("no lease held") + "\n\npress any key to exit\n"
	}

	return title + "\n\n" + statusStyleCard.Render(m.table.View()) + "\n\npress any key to exit\n"
}

// RunStatus renders a one-shot status view of the stored lease for the
// configured interface.
func RunStatus(configFile string) error {
	cfg, err := loadClientConfig(configFile, "")
	if err != nil {
		return err
	}

	store, err := buildLeaseStore(cfg)
	if err != nil {
		return fmt.Errorf("lease store: %w", err)
	}

	model := statusModel{iface: cfg.Interface}
	lease, err := store.Load(cfg.Interface)
	if err != nil && err != dhcp4.ErrNoLease {
		model.err = err
	} else if err == nil {
		model.lease = lease
		model.table = newLeaseTable(lease)
	}

	p := tea.NewProgram(model)
	_, err = p.Run()
	return err
}
