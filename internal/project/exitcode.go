package project

import "github.com/ethanolivertroy/depdetect/internal/finder"

// ExitCode is the process exit status of a run.
type ExitCode int

const (
	ExitSuccess          ExitCode = 0
	ExitBomToolFailure   ExitCode = 5
	ExitNoSuchSourcePath ExitCode = 7
	ExitSearchFailure    ExitCode = 8
	ExitGeneralError     ExitCode = 99
)

func (c ExitCode) String() string {
	switch c {
	case ExitSuccess:
		return "SUCCESS"
	case ExitBomToolFailure:
		return "FAILURE_BOM_TOOL"
	case ExitNoSuchSourcePath:
		return "FAILURE_SOURCE_PATH"
	case ExitSearchFailure:
		return "FAILURE_SEARCH"
	case ExitGeneralError:
		return "FAILURE_GENERAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// severity ranks exit codes. Unknown codes rank with general errors.
func (c ExitCode) severity() int {
	switch c {
	case ExitSuccess:
		return 0
	case ExitNoSuchSourcePath:
		return 1
	case ExitSearchFailure:
		return 2
	case ExitBomToolFailure:
		return 3
	default:
		return 4
	}
}

// Worst reduces codes to the most severe one. The result does not depend on
// the order of codes.
func Worst(codes ...ExitCode) ExitCode {
	worst := ExitSuccess
	for _, c := range codes {
		if c.severity() > worst.severity() {
			worst = c
		}
	}
	return worst
}

// SearchExitCode maps a search failure to its exit code.
func SearchExitCode(err *finder.SearchError) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	if err.Kind == finder.NoSuchSourcePath {
		return ExitNoSuchSourcePath
	}
	return ExitSearchFailure
}
