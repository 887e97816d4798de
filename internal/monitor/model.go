// Package monitor is a terminal dashboard over the redis mirror: live
// serum3 market listings and bank indices for one group.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/mango-go/internal/cache"
)

const refreshEvery = 2 * time.Second

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	tableStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

type view int

const (
	viewMarkets view = iota
	viewBanks
)

type refreshMsg struct {
	markets []cache.MarketEntry
	banks   []cache.BankEntry
	err     error
}

type Model struct {
	cache  *cache.Cache
	group  string
	view   view
	table  table.Model
	status string
	err    error

	markets []cache.MarketEntry
	banks   []cache.BankEntry
}

func New(c *cache.Cache, group string) *Model {
	return &Model{
		cache: c,
		group: group,
		view:  viewMarkets,
		table: newMarketsTable(nil),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tea.EnterAltScreen)
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		markets, err := m.cache.Markets(ctx)
		if err != nil {
			return refreshMsg{err: err}
		}
		banks, err := m.cache.Banks(ctx)
		if err != nil {
			return refreshMsg{err: err}
		}
		return refreshMsg{markets: markets, banks: banks}
	}
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg {
		return struct{ tick bool }{true}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.toggleView()
			return m, nil
		}

	case refreshMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.markets = msg.markets
			m.banks = msg.banks
			m.status = fmt.Sprintf("updated %s", time.Now().Format("15:04:05"))
			m.rebuildTable()
		}
		return m, scheduleRefresh()

	case struct{ tick bool }:
		return m, m.refresh()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) toggleView() {
	if m.view == viewMarkets {
		m.view = viewBanks
	} else {
		m.view = viewMarkets
	}
	m.rebuildTable()
}

func (m *Model) rebuildTable() {
	if m.view == viewMarkets {
		m.table = newMarketsTable(m.markets)
	} else {
		m.table = newBanksTable(m.banks)
	}
}

func newMarketsTable(entries []cache.MarketEntry) table.Model {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].MarketIndex < entries[j].MarketIndex
	})
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", e.MarketIndex),
			e.Name,
			shorten(e.SerumMarketExternal),
			fmt.Sprintf("%d", e.BaseTokenIndex),
			fmt.Sprintf("%d", e.QuoteTokenIndex),
		})
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "IDX", Width: 5},
			{Title: "MARKET", Width: 16},
			{Title: "EXTERNAL", Width: 14},
			{Title: "BASE", Width: 5},
			{Title: "QUOTE", Width: 5},
		}),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(14),
	)
	return t
}

func newBanksTable(entries []cache.BankEntry) table.Model {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TokenIndex < entries[j].TokenIndex
	})
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", e.TokenIndex),
			e.Name,
			fmt.Sprintf("%.6f", e.DepositIndex),
			fmt.Sprintf("%.6f", e.BorrowIndex),
			fmt.Sprintf("%d", e.MintDecimals),
		})
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "IDX", Width: 5},
			{Title: "TOKEN", Width: 16},
			{Title: "DEPOSIT INDEX", Width: 16},
			{Title: "BORROW INDEX", Width: 16},
			{Title: "DEC", Width: 4},
		}),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(14),
	)
	return t
}

func shorten(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:6] + ".." + key[len(key)-4:]
}

func (m *Model) View() string {
	title := "Serum3 Markets"
	if m.view == viewBanks {
		title = "Banks"
	}

	out := titleStyle.Render(fmt.Sprintf("mango group %s — %s", shorten(m.group), title)) + "\n"
	out += tableStyle.Render(m.table.View()) + "\n"

	if m.err != nil {
		out += errorStyle.Render("cache error: "+m.err.Error()) + "\n"
	}
	out += statusStyle.Render(m.status + "  [tab] switch view  [q] quit")
	return out
}
