package records

import (
	"errors"
	"strings"
)

var ErrUnknownKind = errors.New("unknown record kind")

// Kind names a record kind reachable under /data/{kind}. The set is closed.
type Kind string

const (
	KindUsers Kind = "users"
	KindNotes Kind = "notes"
)

func Kinds() []Kind {
	return []Kind{KindUsers, KindNotes}
}

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindUsers:
		return KindUsers, nil
	case KindNotes:
		return KindNotes, nil
	default:
		return "", ErrUnknownKind
	}
}

func (k Kind) String() string { return string(k) }
