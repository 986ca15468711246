// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package auth implements component C8: a flat-file credential store,
// one `username:bcrypt_hash` line per user, using
// golang.org/x/crypto/bcrypt (spec.md section 4.8). The file layout and
// the write-temp-then-rename update pattern follow the teacher's own
// config/credentials handling conventions for small operator-facing
// state files.
package auth

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mastersync/perspectivedb/perrors"
)

const (
	minUsernameLen = 1
	maxUsernameLen = 128
	minPasswordLen = 1
	maxPasswordLen = 256
)

// Store is a credential file at Path: one `username:bcrypt_hash` entry
// per line.
type Store struct {
	Path string
}

// Open returns a Store bound to path. The file need not exist yet;
// Register creates it on first use.
func Open(path string) *Store {
	return &Store{Path: path}
}

// Register validates username and password, hashes the password, and
// appends (or replaces, if username already exists) the entry,
// rewriting the file atomically via write-temp-then-rename.
func (s *Store) Register(username, password string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return perrors.Wrap(perrors.AuthError, username, err)
	}

	entries, err := s.readAll()
	if err != nil {
		return err
	}
	entries[username] = string(hash)

	return s.writeAll(entries)
}

// Verify reports whether password matches the stored hash for
// username. A missing username is reported as (false, nil), not an
// error: callers should not be able to distinguish "wrong password"
// from "unknown user" by error type alone.
func (s *Store) Verify(username, password string) (bool, error) {
	entries, err := s.readAll()
	if err != nil {
		return false, err
	}
	hash, ok := entries[username]
	if !ok {
		return false, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Store) readAll() (map[string]string, error) {
	entries := map[string]string{}
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, perrors.Wrap(perrors.IoError, s.Path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, perrors.New(perrors.IoError, s.Path, "malformed credential line: %q", line)
		}
		entries[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, perrors.Wrap(perrors.IoError, s.Path, err)
	}
	return entries, nil
}

func (s *Store) writeAll(entries map[string]string) error {
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return perrors.Wrap(perrors.IoError, s.Path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for username, hash := range entries {
		if _, err := fmt.Fprintf(w, "%s:%s\n", username, hash); err != nil {
			tmp.Close()
			return perrors.Wrap(perrors.IoError, s.Path, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return perrors.Wrap(perrors.IoError, s.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return perrors.Wrap(perrors.IoError, s.Path, err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return perrors.Wrap(perrors.IoError, s.Path, err)
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return perrors.New(perrors.AuthError, username, "username must be %d..%d bytes", minUsernameLen, maxUsernameLen)
	}
	if strings.Contains(username, ":") {
		return perrors.New(perrors.AuthError, username, "username must not contain ':'")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return perrors.New(perrors.AuthError, "", "password must be %d..%d bytes", minPasswordLen, maxPasswordLen)
	}
	return nil
}
