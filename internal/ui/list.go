package ui

import (
	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = labelItem{}

// labelItem is one row of the label checklist.
type labelItem struct {
	label    string
	expected bool
}

func (i labelItem) FilterValue() string { return i.label }
func (i labelItem) Description() string { return "" }
func (i labelItem) Title() string {
	if i.expected {
		return "[x] " + i.label
	}
	return "[ ] " + i.label
}

// newLabelList builds the checklist over the catalog, marking what isExpected reports.
func newLabelList(catalog []string, isExpected func(string) bool) list.Model {
	items := make([]list.Item, len(catalog))
	for i, l := range catalog {
		items[i] = labelItem{label: l, expected: isExpected(l)}
	}

	d := list.NewDefaultDelegate()
	d.ShowDescription = false
	d.SetSpacing(0)

	l := list.New(items, d, 40, 20)
	l.Title = "Which signs appear in the video?"
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	return l
}
