package tacacs

import (
	"fmt"
	"strings"
)

// -------------------------------------------------------------------------
// Arguments — RFC 8907 Section 3.7 (name{=|*}value pairs)
// -------------------------------------------------------------------------

// maxArgLen is the largest octet length a single encoded argument string
// may have; it is carried in a 1-octet length prefix, so the total octet
// length must fit in one octet.
const maxArgLen = 255

// maxArgCount is the largest number of arguments an authorization or
// accounting body may carry; the count itself is a 1-octet field.
const maxArgCount = 255

// Argument is one name{=|*}value pair from an authorization or accounting
// body. Mandatory arguments use "=" as the separator; optional arguments
// use "*" (RFC 8907 Section 3.7).
type Argument struct {
	Name     string
	Value    string
	Optional bool
}

// String renders the argument in wire form: "name=value" or "name*value".
func (a Argument) String() string {
	sep := "="
	if a.Optional {
		sep = "*"
	}
	return a.Name + sep + a.Value
}

// encodedLen returns the octet length a.String() would occupy on the wire.
func (a Argument) encodedLen() int {
	return len(a.Name) + 1 + len(a.Value)
}

// validate checks the name{=|*}value rule: the name must be non-empty and
// contain neither "=" nor "*", and the full rendered argument must fit
// within maxArgLen octets.
func (a Argument) validate() error {
	if a.Name == "" {
		return fmt.Errorf("argument name is empty: %w", ErrInvalidArgumentFormat)
	}
	if strings.ContainsAny(a.Name, "=*") {
		return fmt.Errorf("argument name %q contains '=' or '*': %w", a.Name, ErrInvalidArgumentFormat)
	}
	if n := a.encodedLen(); n > maxArgLen {
		return fmt.Errorf("argument %q is %d octets, exceeds maximum %d: %w", a.Name, n, maxArgLen, ErrInvalidArgumentFormat)
	}
	return nil
}

// parseArgument splits a wire-form argument string on its first "=" or "*",
// whichever occurs first, per RFC 8907 Section 3.7.
func parseArgument(s string) (Argument, error) {
	eq := strings.IndexByte(s, '=')
	star := strings.IndexByte(s, '*')

	var sepIdx int
	var optional bool
	switch {
	case eq == -1 && star == -1:
		return Argument{}, fmt.Errorf("argument %q has no '=' or '*' separator: %w", s, ErrInvalidArgumentFormat)
	case eq == -1:
		sepIdx, optional = star, true
	case star == -1:
		sepIdx, optional = eq, false
	case star < eq:
		sepIdx, optional = star, true
	default:
		sepIdx, optional = eq, false
	}

	if sepIdx == 0 {
		return Argument{}, fmt.Errorf("argument %q has an empty name: %w", s, ErrInvalidArgumentFormat)
	}

	return Argument{
		Name:     s[:sepIdx],
		Value:    s[sepIdx+1:],
		Optional: optional,
	}, nil
}

// Args is an ordered list of authorization/accounting arguments.
type Args []Argument

// validate checks every argument and the overall count bound.
func (a Args) validate() error {
	if len(a) > maxArgCount {
		return fmt.Errorf("argument count %d exceeds maximum %d: %w", len(a), maxArgCount, ErrInvalidArgumentFormat)
	}
	for _, arg := range a {
		if err := arg.validate(); err != nil {
			return err
		}
	}
	return nil
}

// encodedLens returns the per-argument octet lengths in order, used for
// two-pass encoding: pass one sums these lengths into the header's arg_len
// octets, pass two writes the payloads.
func (a Args) encodedLens() []int {
	lens := make([]int, len(a))
	for i, arg := range a {
		lens[i] = arg.encodedLen()
	}
	return lens
}

// writeArgs writes each argument's rendered bytes into buf contiguously,
// returning the number of octets written. Caller has already sized buf via
// encodedLens.
func writeArgs(buf []byte, args Args) int {
	off := 0
	for _, arg := range args {
		s := arg.String()
		off += copy(buf[off:], s)
	}
	return off
}

// readArgs splits buf into len(argLens) arguments according to argLens, the
// per-argument length prefixes read from the header.
func readArgs(buf []byte, argLens []byte) (Args, error) {
	args := make(Args, 0, len(argLens))
	off := 0
	for i, l := range argLens {
		n := int(l)
		if off+n > len(buf) {
			return nil, fmt.Errorf("argument %d needs %d octets, only %d remain: %w", i, n, len(buf)-off, ErrTruncatedBody)
		}
		arg, err := parseArgument(string(buf[off : off+n]))
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		off += n
	}
	return args, nil
}
