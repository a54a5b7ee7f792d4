package domain

import dErrors "boreal/pkg/domain-errors"

// ProgramCode identifies an immigration program evaluated by the rule engine.
type ProgramCode string

const (
	ProgramFSW ProgramCode = "FSW"
	ProgramCEC ProgramCode = "CEC"
	ProgramFST ProgramCode = "FST"
)

var validPrograms = map[ProgramCode]struct{}{
	ProgramFSW: {},
	ProgramCEC: {},
	ProgramFST: {},
}

// ParseProgramCode validates a program code string.
func ParseProgramCode(s string) (ProgramCode, error) {
	p := ProgramCode(s)
	if _, ok := validPrograms[p]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown program code: %s", s)
	}
	return p, nil
}

func (p ProgramCode) String() string { return string(p) }
