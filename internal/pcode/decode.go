package pcode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

type streamKey struct {
	kind Kind
	hand Hand
}

type stream struct {
	started bool
	at      time.Duration
}

// Decode parses a program and returns its commands with absolute times,
// merged in execution order. Blank lines are ignored; anything else that
// does not fit the grammar fails with *MalformedCommandError.
func Decode(r io.Reader) ([]Command, error) {
	sc := bufio.NewScanner(r)
	var (
		cmds    []Command
		streams = map[streamKey]*stream{}
		line    int
		begun   bool
		ended   bool
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		bad := func(format string, args ...any) error {
			return &MalformedCommandError{Line: line, Text: text, Reason: fmt.Sprintf(format, args...)}
		}
		if ended {
			return nil, bad("record after end")
		}
		fields := strings.Fields(text)
		if len(fields[0]) != 1 {
			return nil, bad("unknown tag %q", fields[0])
		}
		tag := fields[0][0]
		if !begun && tag != 's' {
			return nil, bad("program must begin with an s record")
		}
		switch tag {
		case 's':
			if begun {
				return nil, bad("duplicate start record")
			}
			if len(fields) != 1 {
				return nil, bad("start record takes no fields")
			}
			begun = true
			continue
		case 'e':
			if len(fields) != 1 {
				return nil, bad("end record takes no fields")
			}
			ended = true
			continue
		}

		var (
			cmd    Command
			values map[byte]string
			err    error
		)
		switch Kind(tag) {
		case KindDeploy:
			values, err = splitFields(fields[1:], "snftl")
			if err != nil {
				return nil, bad("%v", err)
			}
			cmd.Kind = KindDeploy
			if cmd.Chord, err = ParseChord(values['n']); err != nil {
				return nil, bad("%v", err)
			}
			if cmd.Force, err = atoi(values, 'f'); err != nil {
				return nil, bad("%v", err)
			}
		case KindMove:
			values, err = splitFields(fields[1:], "sptl")
			if err != nil {
				return nil, bad("%v", err)
			}
			cmd.Kind = KindMove
			if cmd.PositionMM, err = atoi(values, 'p'); err != nil {
				return nil, bad("%v", err)
			}
		default:
			return nil, bad("unknown tag %q", fields[0])
		}

		hand, err := atoi(values, 's')
		if err != nil {
			return nil, bad("%v", err)
		}
		if hand != int(RightHand) && hand != int(LeftHand) {
			return nil, bad("hand must be 0 or 1, got %d", hand)
		}
		cmd.Hand = Hand(hand)
		delta, err := atoi(values, 't')
		if err != nil {
			return nil, bad("%v", err)
		}
		length, err := atoi(values, 'l')
		if err != nil {
			return nil, bad("%v", err)
		}
		cmd.Duration = time.Duration(length) * time.Millisecond

		key := streamKey{cmd.Kind, cmd.Hand}
		st := streams[key]
		if st == nil {
			st = &stream{}
			streams[key] = st
		}
		if st.started {
			st.at += time.Duration(delta) * time.Millisecond
		} else {
			st.at = time.Duration(delta) * time.Millisecond
			st.started = true
		}
		cmd.At = st.at
		cmds = append(cmds, cmd)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("pcode: read: %w", err)
	}
	if !begun {
		return nil, &MalformedCommandError{Line: line, Reason: "empty program"}
	}
	if !ended {
		return nil, &MalformedCommandError{Line: line, Reason: "missing end record"}
	}
	return Merge(cmds), nil
}

// splitFields checks that fields carry exactly the given one-letter
// prefixes, in order, and returns the values by prefix.
func splitFields(fields []string, prefixes string) (map[byte]string, error) {
	if len(fields) != len(prefixes) {
		return nil, fmt.Errorf("want %d fields, got %d", len(prefixes)+1, len(fields)+1)
	}
	out := make(map[byte]string, len(fields))
	for i, f := range fields {
		if len(f) < 2 || f[0] != prefixes[i] {
			return nil, fmt.Errorf("field %d %q: want prefix %q and a value", i+2, f, prefixes[i])
		}
		out[f[0]] = f[1:]
	}
	return out, nil
}

func atoi(values map[byte]string, prefix byte) (int, error) {
	n, err := strconv.Atoi(values[prefix])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("field %c: %q is not a non-negative integer", prefix, values[prefix])
	}
	return n, nil
}
