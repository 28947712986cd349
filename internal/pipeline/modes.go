package pipeline

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Mode is one job of a run.
type Mode string

const (
	ModeInitJob Mode = "init_job"
	ModeRun     Mode = "run"
)

// execution order, independent of flag order
var knownModes = []Mode{ModeInitJob, ModeRun}

var _ pflag.Value = (*ModeSet)(nil)

// ModeSet is the set of jobs selected with --mode. It accepts repeated
// flags and comma separated values.
type ModeSet struct {
	selected map[Mode]bool
}

// NewModeSet returns a set holding modes.
func NewModeSet(modes ...Mode) ModeSet {
	s := ModeSet{selected: make(map[Mode]bool, len(modes))}
	for _, m := range modes {
		s.selected[m] = true
	}
	return s
}

// Set implements pflag.Value.
func (s *ModeSet) Set(value string) error {
	if s.selected == nil {
		s.selected = make(map[Mode]bool)
	}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m, err := parseMode(part)
		if err != nil {
			return err
		}
		s.selected[m] = true
	}
	return nil
}

// String implements pflag.Value.
func (s *ModeSet) String() string {
	var names []string
	for _, m := range s.Modes() {
		names = append(names, string(m))
	}
	return strings.Join(names, ",")
}

// Type implements pflag.Value.
func (s *ModeSet) Type() string {
	return "mode"
}

// Has reports whether m was selected.
func (s ModeSet) Has(m Mode) bool {
	return s.selected[m]
}

// Empty reports whether no mode was selected.
func (s ModeSet) Empty() bool {
	return len(s.selected) == 0
}

// Modes returns the selected modes in execution order.
func (s ModeSet) Modes() []Mode {
	var out []Mode
	for _, m := range knownModes {
		if s.selected[m] {
			out = append(out, m)
		}
	}
	return out
}

func parseMode(v string) (Mode, error) {
	for _, m := range knownModes {
		if strings.EqualFold(v, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q (expected init_job or run)", v)
}
