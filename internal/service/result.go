package service

import (
	"fmt"
	"iter"
	"sync/atomic"
)

// Source tells where an emitted value came from.
type Source int

const (
	SourceNone Source = iota
	SourceCache
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceRemote:
		return "remote"
	default:
		return "none"
	}
}

// MarshalText lets Source appear as a string in JSON output.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the names written by MarshalText.
func (s *Source) UnmarshalText(text []byte) error {
	switch string(text) {
	case "cache":
		*s = SourceCache
	case "remote":
		*s = SourceRemote
	case "none", "":
		*s = SourceNone
	default:
		return fmt.Errorf("unknown source %q", text)
	}
	return nil
}

// Result is one element of a read sequence: a value or an error.
type Result[T any] struct {
	Value  T
	Err    error
	Source Source
}

// OK reports whether the element carries a value.
func (r Result[T]) OK() bool { return r.Err == nil }

func success[T any](v T, src Source) Result[T] {
	return Result[T]{Value: v, Source: src}
}

func failure[T any](err error) Result[T] {
	return Result[T]{Err: err, Source: SourceNone}
}

// once makes seq single-use: ranging over it a second time yields nothing.
func once[T any](seq iter.Seq[T]) iter.Seq[T] {
	var used atomic.Bool
	return func(yield func(T) bool) {
		if used.Swap(true) {
			return
		}
		seq(yield)
	}
}
