// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// persdb-timestamp decodes a 10- or 13-digit epoch value, or a legacy
// two-word `[low, high]` form, into a human-readable instant.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
)

var (
	app = kingpin.New("persdb-timestamp", "Decode a PerspectiveDB timestamp.")
	ts  = app.Arg("ts", "Epoch seconds/millis, or a legacy \"[low, high]\" pair.").Required().String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	t, err := decode(*ts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to decode timestamp:", err)
		os.Exit(1)
	}
	fmt.Println(t.UTC().Format(time.RFC3339Nano))
}

// decode accepts three forms: a 10-digit epoch-seconds value, a
// 13-digit epoch-milliseconds value, or a legacy two-word form
// "[low, high]" where low/high are the 32-bit halves of a 64-bit
// epoch-millisecond value, low word first.
func decode(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		return decodeLegacyPair(s)
	}
	switch len(s) {
	case 10:
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(secs, 0), nil
	case 13:
		millis, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(millis), nil
	default:
		return time.Time{}, fmt.Errorf("timestamp %q is neither 10 nor 13 digits", s)
	}
}

func decodeLegacyPair(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("legacy timestamp must be \"[low, high]\"")
	}
	low, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	high, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	millis := high<<32 | (low & 0xffffffff)
	return time.UnixMilli(millis), nil
}
