// Package keyspace encodes logical identifiers into sortable byte keys.
//
// Every record kind owns a single-character prefix and keys are built as
// prefix:part:part. Ranges cover "every key under prefix:parts" by scanning
// from prefix:parts: up to the byte successor of that string, so a task named
// "a" never sees keys of a task named "ab" or "a2".
package keyspace

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the single-character prefix of a record kind.
type Kind byte

const (
	Version Kind = 'v'
	User    Kind = 'u'
	Dataset Kind = 'd'
	Spec    Kind = 's'
	Task    Kind = 't'
	Job     Kind = 'j'
	Result  Kind = 'r'
	Label   Kind = 'l'
)

const separator = ':'

// ErrInvalidComponent is returned for empty components or components holding the separator.
var ErrInvalidComponent = errors.New("invalid key component")

// Range is a half-open [Lower, Upper) key interval.
type Range struct {
	Lower []byte
	Upper []byte
}

// Validate checks that a value can be used as a key component.
func Validate(component string) error {
	if component == "" {
		return fmt.Errorf("%w: empty", ErrInvalidComponent)
	}
	if strings.IndexByte(component, separator) >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidComponent, component, separator)
	}
	return nil
}

// Key builds prefix:parts... Callers validate untrusted parts first.
func Key(kind Kind, parts ...string) []byte {
	n := 1
	for _, p := range parts {
		n += len(p) + 1
	}
	key := make([]byte, 0, n)
	key = append(key, byte(kind))
	for _, p := range parts {
		key = append(key, separator)
		key = append(key, p...)
	}
	return key
}

// Under returns the range of keys strictly nested below prefix:parts.
// With no parts it covers every key of the kind.
func Under(kind Kind, parts ...string) Range {
	lower := append(Key(kind, parts...), separator)
	return Range{Lower: lower, Upper: successor(lower)}
}

// After narrows r to the keys that sort strictly after key.
func (r Range) After(key []byte) Range {
	lower := append(append([]byte{}, key...), 0x00)
	if string(lower) < string(r.Lower) {
		lower = r.Lower
	}
	return Range{Lower: lower, Upper: r.Upper}
}

// Before narrows r to the keys that sort strictly before key.
func (r Range) Before(key []byte) Range {
	upper := append([]byte{}, key...)
	if string(upper) > string(r.Upper) {
		upper = r.Upper
	}
	return Range{Lower: r.Lower, Upper: upper}
}

// Contains reports whether key falls inside r.
func (r Range) Contains(key []byte) bool {
	return string(key) >= string(r.Lower) && string(key) < string(r.Upper)
}

// Parts splits a key into its kind and components.
func Parts(key []byte) (Kind, []string) {
	if len(key) == 0 {
		return 0, nil
	}
	if len(key) < 2 {
		return Kind(key[0]), nil
	}
	return Kind(key[0]), strings.Split(string(key[2:]), string(separator))
}

// Last returns the final component of a key.
func Last(key []byte) string {
	_, parts := Parts(key)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func successor(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// VersionKey is the well-known key of the schema version marker.
func VersionKey() []byte { return Key(Version, "schema") }

func UserKey(username string) []byte { return Key(User, username) }

func TaskKey(name string) []byte { return Key(Task, name) }

func SpecKey(id string) []byte { return Key(Spec, id) }

func DatasetKey(id string) []byte { return Key(Dataset, id) }

func DataItemKey(datasetID, dataID string) []byte { return Key(Dataset, datasetID, dataID) }

func JobKey(taskName, jobID string) []byte { return Key(Job, taskName, jobID) }

func ResultKey(taskName, dataID string) []byte { return Key(Result, taskName, dataID) }

func LabelKey(taskName, dataID string) []byte { return Key(Label, taskName, dataID) }
