// Package replay drives a tracker from a recorded event script.
//
// A script has one event per line:
//
//	[@<offset>] <thread> <op> [args]
//
// where op is one of
//
//	start <view>
//	stop
//	begin-root <kind>
//	end-root <kind>
//	begin <view> <kind>
//	end <view> <kind>
//
// Views are written as Class#handle[:name], or "-" for no view. Offsets are Go
// durations from the start of the replay. Everything after a '#' that starts a
// word is a comment.
package replay

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/sarchlab/viewperf/tracing"
	"github.com/sarchlab/viewperf/view"
)

// Op is the operation of an event.
type Op uint8

// The operations of a script.
const (
	OpStart Op = iota
	OpStop
	OpBeginRoot
	OpEndRoot
	OpBegin
	OpEnd
	numOps
)

var opNames = [numOps]string{
	OpStart:     "start",
	OpStop:      "stop",
	OpBeginRoot: "begin-root",
	OpEndRoot:   "end-root",
	OpBegin:     "begin",
	OpEnd:       "end",
}

func (o Op) String() string {
	if o >= numOps {
		return fmt.Sprintf("op(%d)", uint8(o))
	}

	return opNames[o]
}

func parseOp(s string) (Op, bool) {
	for i, n := range opNames {
		if n == s {
			return Op(i), true
		}
	}

	return 0, false
}

// An Event is one line of a script.
type Event struct {
	// Line is the 1-based line number in the script.
	Line int

	// At is the offset of the event from the start of the replay. It is only
	// meaningful if HasAt is set.
	At    time.Duration
	HasAt bool

	Thread tracing.ThreadID
	Op     Op
	View   view.Identity
	Kind   view.StepKind
}

// Apply delivers the event to a recorder.
func (e Event) Apply(rec tracing.Recorder) {
	switch e.Op {
	case OpStart:
		rec.StartTraversal(e.View)
	case OpStop:
		rec.StopTraversal()
	case OpBeginRoot:
		rec.BeginViewRootImplStep(e.Kind)
	case OpEndRoot:
		rec.EndViewRootImplStep(e.Kind)
	case OpBegin:
		rec.BeginViewStep(e.View, e.Kind)
	case OpEnd:
		rec.EndViewStep(e.View, e.Kind)
	default:
		panic(fmt.Sprintf("unknown op %d", e.Op))
	}
}

// String formats the event in script syntax.
func (e Event) String() string {
	var b strings.Builder

	if e.HasAt {
		fmt.Fprintf(&b, "@%s ", e.At)
	}

	fmt.Fprintf(&b, "%d %s", e.Thread, e.Op)

	switch e.Op {
	case OpStart:
		fmt.Fprintf(&b, " %s", e.View)
	case OpBeginRoot, OpEndRoot:
		fmt.Fprintf(&b, " %s", e.Kind)
	case OpBegin, OpEnd:
		fmt.Fprintf(&b, " %s %s", e.View, e.Kind)
	}

	return b.String()
}

// Parse reads a script.
func Parse(r io.Reader) ([]Event, error) {
	var events []Event

	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++

		fields := stripComment(strings.Fields(scanner.Text()))
		if len(fields) == 0 {
			continue
		}

		e, err := parseEvent(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		e.Line = line
		events = append(events, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading script")
	}

	return events, nil
}

// ParseString reads a script held in a string.
func ParseString(script string) ([]Event, error) {
	return Parse(strings.NewReader(script))
}

func stripComment(fields []string) []string {
	for i, f := range fields {
		if strings.HasPrefix(f, "#") {
			return fields[:i]
		}
	}

	return fields
}

func parseEvent(fields []string) (Event, error) {
	var e Event

	if strings.HasPrefix(fields[0], "@") {
		at, err := time.ParseDuration(fields[0][1:])
		if err != nil {
			return e, errors.Wrapf(err, "invalid offset %q", fields[0])
		}

		if at < 0 {
			return e, errors.Newf("negative offset %q", fields[0])
		}

		e.At = at
		e.HasAt = true
		fields = fields[1:]
	}

	if len(fields) < 2 {
		return e, errors.New("expected <thread> <op>")
	}

	thread, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return e, errors.Wrapf(err, "invalid thread %q", fields[0])
	}

	e.Thread = tracing.ThreadID(thread)

	op, ok := parseOp(fields[1])
	if !ok {
		return e, errors.Newf("unknown op %q", fields[1])
	}

	e.Op = op
	args := fields[2:]

	switch op {
	case OpStop:
		err = expectArgs(op, args, 0)
	case OpStart:
		if err = expectArgs(op, args, 1); err == nil {
			e.View, err = ParseView(args[0])
		}
	case OpBeginRoot, OpEndRoot:
		if err = expectArgs(op, args, 1); err == nil {
			e.Kind, err = parseKind(args[0])
		}
	case OpBegin, OpEnd:
		if err = expectArgs(op, args, 2); err == nil {
			e.View, err = ParseView(args[0])
		}

		if err == nil {
			e.Kind, err = parseKind(args[1])
		}
	}

	return e, err
}

func expectArgs(op Op, args []string, n int) error {
	if len(args) != n {
		return errors.Newf("%s takes %d argument(s), got %d", op, n, len(args))
	}

	return nil
}

func parseKind(s string) (view.StepKind, error) {
	kind, ok := view.ParseStepKind(s)
	if !ok {
		return 0, errors.Newf("unknown step kind %q", s)
	}

	return kind, nil
}

// ParseView parses a view token of the form Class#handle[:name]. The handle is
// a decimal or 0x-prefixed number. "-" stands for no view.
func ParseView(token string) (view.Identity, error) {
	if token == "-" {
		return view.None, nil
	}

	class, rest, ok := strings.Cut(token, "#")
	if !ok || class == "" {
		return view.None, errors.Newf("invalid view %q", token)
	}

	handleStr, name, _ := strings.Cut(rest, ":")

	handle, err := strconv.ParseUint(handleStr, 0, 64)
	if err != nil {
		return view.None, errors.Wrapf(err, "invalid view handle in %q", token)
	}

	if handle == 0 {
		return view.None, errors.Newf("view handle must not be zero in %q", token)
	}

	return view.Identity{Handle: handle, Class: class, Name: name}, nil
}
