package routing

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoUniqueTarget = errors.New("no unique routing target")

// Error reports an origin that matched zero or several tokens.
type Error struct {
	Origin  string
	Matches []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s for origin %q (matched %d: %v)", ErrNoUniqueTarget, e.Origin, len(e.Matches), e.Matches)
}

func (e *Error) Is(target error) bool {
	return target == ErrNoUniqueTarget
}

type Target struct {
	MatchToken        string
	QueueName         string
	OversizeQueueName string
}

// Table maps origin stream identifiers to targets. A token matches when it is
// a substring of the origin, and exactly one token has to match.
// The table is immutable after NewTable and safe for concurrent use.
type Table struct {
	targets []Target
}

func NewTable(cfg Config) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets = append(targets, Target{
			MatchToken:        t.Token,
			QueueName:         t.QueueName,
			OversizeQueueName: t.OversizeQueueName,
		})
	}
	return &Table{targets: targets}, nil
}

func (t *Table) Resolve(origin string) (Target, error) {
	var (
		found   Target
		matches []string
	)
	for _, target := range t.targets {
		if strings.Contains(origin, target.MatchToken) {
			found = target
			matches = append(matches, target.MatchToken)
		}
	}
	if len(matches) != 1 {
		return Target{}, &Error{Origin: origin, Matches: matches}
	}
	return found, nil
}

// Targets returns a copy of the configured targets.
func (t *Table) Targets() []Target {
	out := make([]Target, len(t.targets))
	copy(out, t.targets)
	return out
}
