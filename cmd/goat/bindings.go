package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-granular/midicc"
)

// bindingList collects repeated -cc flags of the form ch:cc=param:lo:hi.
type bindingList []midicc.Binding

func (l *bindingList) String() string {
	parts := make([]string, len(*l))
	for i, b := range *l {
		parts[i] = fmt.Sprintf("%d:%d=%s:%g:%g", b.Channel, b.Controller, b.Parameter, b.Lo, b.Hi)
	}
	return strings.Join(parts, ",")
}

func (l *bindingList) Set(value string) error {
	b, err := parseBinding(value)
	if err != nil {
		return err
	}
	*l = append(*l, b)
	return nil
}

func parseBinding(value string) (midicc.Binding, error) {
	src, dst, ok := strings.Cut(value, "=")
	if !ok {
		return midicc.Binding{}, fmt.Errorf("binding %q: want ch:cc=param:lo:hi", value)
	}

	chs, ccs, ok := strings.Cut(src, ":")
	if !ok {
		return midicc.Binding{}, fmt.Errorf("binding %q: want ch:cc before '='", value)
	}
	ch, err := strconv.ParseUint(chs, 10, 4)
	if err != nil {
		return midicc.Binding{}, fmt.Errorf("binding %q: channel: %w", value, err)
	}
	cc, err := strconv.ParseUint(ccs, 10, 7)
	if err != nil {
		return midicc.Binding{}, fmt.Errorf("binding %q: controller: %w", value, err)
	}

	fields := strings.Split(dst, ":")
	if len(fields) != 3 || fields[0] == "" {
		return midicc.Binding{}, fmt.Errorf("binding %q: want param:lo:hi after '='", value)
	}
	lo, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return midicc.Binding{}, fmt.Errorf("binding %q: lo: %w", value, err)
	}
	hi, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return midicc.Binding{}, fmt.Errorf("binding %q: hi: %w", value, err)
	}

	return midicc.Binding{
		Channel:    uint8(ch),
		Controller: uint8(cc),
		Parameter:  fields[0],
		Lo:         lo,
		Hi:         hi,
	}, nil
}
