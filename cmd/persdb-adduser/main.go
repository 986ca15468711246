// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// persdb-adduser prompts for a password twice and prints a
// `username:bcrypt_hash` credential line to stdout.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/mastersync/perspectivedb/perrors"
)

var (
	app      = kingpin.New("persdb-adduser", "Generate a persdb credential line.")
	username = app.Arg("username", "Username (prompted for if omitted).").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	user := *username
	if user == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Fprint(os.Stderr, "Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to read username:", err)
			os.Exit(3)
		}
		user = trimNewline(line)
	}

	pass1, err := readPassword("Password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read password:", err)
		os.Exit(3)
	}
	pass2, err := readPassword("Confirm password: ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read password:", err)
		os.Exit(3)
	}
	if pass1 != pass2 {
		fmt.Fprintln(os.Stderr, "passwords do not match")
		os.Exit(3)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass1), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, perrors.Wrap(perrors.AuthError, user, err))
		os.Exit(3)
	}

	fmt.Printf("%s:%s\n", user, hash)
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
