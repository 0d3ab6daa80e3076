package output

import "os"

// Mode selects between machine and human presentation.
type Mode int

const (
	// ModeAgent prints only the JSON envelope and never prompts.
	ModeAgent Mode = iota
	// ModeOperator prints tables and may ask for confirmation.
	ModeOperator
)

func (m Mode) String() string {
	if m == ModeOperator {
		return "operator"
	}
	return "agent"
}

// Env is everything the mode decision depends on.
type Env struct {
	JSON        bool
	Interactive bool
	StdoutTTY   bool
	StdinTTY    bool
}

// DecideMode picks the presentation mode. An explicit --json always wins,
// then an explicit --interactive, then whether stdout is a terminal.
func DecideMode(env Env) Mode {
	switch {
	case env.JSON:
		return ModeAgent
	case env.Interactive:
		return ModeOperator
	case env.StdoutTTY:
		return ModeOperator
	default:
		return ModeAgent
	}
}

// DetectEnv fills the terminal fields of env from the process's stdio.
func DetectEnv(json, interactive bool) Env {
	return Env{
		JSON:        json,
		Interactive: interactive,
		StdoutTTY:   isTerminal(os.Stdout),
		StdinTTY:    isTerminal(os.Stdin),
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
