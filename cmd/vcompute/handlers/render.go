package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/mhrivnak/vcompute/pkg/compute"
)

// Output formats accepted by --output
const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3b82f6"))
	deadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// isTerminal reports whether styled output should be written to w
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type table struct {
	out    io.Writer
	styled bool
	tw     *tabwriter.Writer
}

func newTable(out io.Writer, headers ...string) *table {
	t := &table{
		out:    out,
		styled: isTerminal(out),
		tw:     tabwriter.NewWriter(out, 0, 4, 2, ' ', 0),
	}
	if t.styled {
		for i, h := range headers {
			headers[i] = headerStyle.Render(h)
		}
	}
	fmt.Fprintln(t.tw, strings.Join(headers, "\t"))
	return t
}

func (t *table) row(cells ...string) {
	fmt.Fprintln(t.tw, strings.Join(cells, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

func (t *table) state(state compute.VMState) string {
	if !t.styled {
		return string(state)
	}
	switch state {
	case compute.VMStateRunning:
		return runningStyle.Render(string(state))
	case compute.VMStatePaused:
		return pausedStyle.Render(string(state))
	case compute.VMStatePending:
		return pendingStyle.Render(string(state))
	default:
		return deadStyle.Render(string(state))
	}
}

// render writes v as JSON or YAML, or runs printTable for the table format
func render(out io.Writer, format string, v any, printTable func() error) error {
	switch strings.ToLower(format) {
	case "", OutputTable:
		return printTable()
	case OutputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		// Round trip through JSON so YAML keys follow the json tags
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q: use table, json or yaml", format)
	}
}

func renderVMs(out io.Writer, format string, vms []compute.VirtualMachine) error {
	if vms == nil {
		vms = []compute.VirtualMachine{}
	}
	return render(out, format, vms, func() error {
		t := newTable(out, "ID", "NAME", "STATE", "PRODUCT", "PUBLIC IP", "PRIVATE IP", "VAPP")
		for _, vm := range vms {
			t.row(vm.ID, vm.Name, t.state(vm.State), vm.Product.ID,
				strings.Join(vm.PublicIPAddresses, ","), strings.Join(vm.PrivateIPAddresses, ","), vm.VAppID)
		}
		return t.flush()
	})
}
