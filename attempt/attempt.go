// Package attempt builds the descriptor threaded through one connect
// attempt: the frame matcher plus an optional, fixed set of capability
// options queried by tag.
package attempt

import (
	"errors"
	"fmt"

	"github.com/Chevalier11/asio2/match"
)

// ErrInvalidArgument is returned by New for malformed argument lists.
var ErrInvalidArgument = errors.New("attempt: invalid argument")

// Tag identifies a capability slot.
type Tag uint8

const (
	// TagProxy carries proxy tunnel options (e.g. SOCKS5).
	TagProxy Tag = iota
	// TagRDC carries request/response correlation options.
	TagRDC
	// TagSecure carries secure channel options.
	TagSecure

	numTags
)

func (t Tag) String() string {
	switch t {
	case TagProxy:
		return "proxy"
	case TagRDC:
		return "rdc"
	case TagSecure:
		return "secure"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Capability is an option attached to an attempt. Tag must be constant for
// a given type, including its zero value.
type Capability interface {
	Tag() Tag
}

// Descriptor is immutable after New and safe to share by value.
type Descriptor struct {
	matcher match.Matcher
	caps    [numTags]Capability
}

// New partitions args into at most one match.Matcher (overriding def) and
// any number of capability options with distinct tags. A nil arg is
// ignored.
func New(def match.Matcher, args ...any) (Descriptor, error) {
	d := Descriptor{matcher: def}
	seenMatcher := false
	for i, a := range args {
		switch v := a.(type) {
		case nil:
		case match.Matcher:
			if seenMatcher {
				return Descriptor{}, fmt.Errorf("%w: more than one matcher (arg %d)", ErrInvalidArgument, i)
			}
			seenMatcher = true
			if v != nil {
				d.matcher = v
			}
		case func([]byte) (int, bool):
			if seenMatcher {
				return Descriptor{}, fmt.Errorf("%w: more than one matcher (arg %d)", ErrInvalidArgument, i)
			}
			seenMatcher = true
			if v != nil {
				d.matcher = v
			}
		case Capability:
			tag := v.Tag()
			if tag >= numTags {
				return Descriptor{}, fmt.Errorf("%w: unknown capability %s", ErrInvalidArgument, tag)
			}
			if d.caps[tag] != nil {
				return Descriptor{}, fmt.Errorf("%w: duplicate %s option", ErrInvalidArgument, tag)
			}
			d.caps[tag] = v
		default:
			return Descriptor{}, fmt.Errorf("%w: unsupported argument %T", ErrInvalidArgument, a)
		}
	}
	if d.matcher == nil {
		d.matcher = match.Any()
	}
	return d, nil
}

// Matcher returns the frame matcher for this attempt; never nil.
func (d Descriptor) Matcher() match.Matcher {
	if d.matcher == nil {
		return match.Any()
	}
	return d.matcher
}

// Has reports whether a capability with tag is present.
func (d Descriptor) Has(tag Tag) bool {
	return tag < numTags && d.caps[tag] != nil
}

// Composite reports whether any capability is attached.
func (d Descriptor) Composite() bool {
	for _, c := range d.caps {
		if c != nil {
			return true
		}
	}
	return false
}

// Get fetches the capability of type T.
func Get[T Capability](d Descriptor) (T, bool) {
	var zero T
	tag := zero.Tag()
	if tag >= numTags {
		return zero, false
	}
	v, ok := d.caps[tag].(T)
	return v, ok
}
