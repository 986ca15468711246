// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dbconfig loads the HJSON configuration format described in
// spec.md section 6: one named database entry with a chroot directory,
// a data subpath, and a list of perspectives. Unknown keys at any level
// are a fatal ConfigError, matching the teacher's fail-fast posture on
// malformed service configuration (server/app.go's flag validation).
package dbconfig

import (
	"os"

	"github.com/hjson/hjson-go/v4"

	"github.com/mastersync/perspectivedb/perrors"
)

const defaultChroot = "/var/persdb"
const defaultData = "data"

// Perspective is one entry in a database's perspectives list.
type Perspective struct {
	Name    string
	Connect string
	Import  string
	Export  string
}

// Database is one top-level configuration entry.
type Database struct {
	Name         string
	Chroot       string
	Data         string
	Perspectives []Perspective
}

var knownDatabaseKeys = map[string]bool{
	"name": true, "chroot": true, "data": true, "perspectives": true,
}

var knownPerspectiveKeys = map[string]bool{
	"name": true, "connect": true, "import": true, "export": true,
}

// Load reads and parses the HJSON configuration file at path.
func Load(path string) (Database, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Database{}, perrors.Wrap(perrors.ConfigError, path, err)
	}
	return Parse(raw)
}

// Parse decodes HJSON bytes into a Database, rejecting unknown keys.
func Parse(raw []byte) (Database, error) {
	var decoded map[string]interface{}
	if err := hjson.Unmarshal(raw, &decoded); err != nil {
		return Database{}, perrors.Wrap(perrors.ConfigError, "", err)
	}
	return decodeDatabase(decoded)
}

func decodeDatabase(m map[string]interface{}) (Database, error) {
	for k := range m {
		if !knownDatabaseKeys[k] {
			return Database{}, perrors.New(perrors.ConfigError, k, "unknown configuration key")
		}
	}

	name, ok := m["name"].(string)
	if !ok || name == "" {
		return Database{}, perrors.New(perrors.ConfigError, "name", "name is required and must be a string")
	}

	db := Database{Name: name, Chroot: defaultChroot, Data: defaultData}

	if v, ok := m["chroot"]; ok {
		s, ok := v.(string)
		if !ok {
			return Database{}, perrors.New(perrors.ConfigError, "chroot", "chroot must be a string")
		}
		db.Chroot = s
	}
	if v, ok := m["data"]; ok {
		s, ok := v.(string)
		if !ok {
			return Database{}, perrors.New(perrors.ConfigError, "data", "data must be a string")
		}
		db.Data = s
	}
	if v, ok := m["perspectives"]; ok {
		list, ok := v.([]interface{})
		if !ok {
			return Database{}, perrors.New(perrors.ConfigError, "perspectives", "perspectives must be a list")
		}
		for _, item := range list {
			entryMap, ok := item.(map[string]interface{})
			if !ok {
				return Database{}, perrors.New(perrors.ConfigError, "perspectives", "each perspective must be a map")
			}
			p, err := decodePerspective(entryMap)
			if err != nil {
				return Database{}, err
			}
			db.Perspectives = append(db.Perspectives, p)
		}
	}

	return db, nil
}

func decodePerspective(m map[string]interface{}) (Perspective, error) {
	for k := range m {
		if !knownPerspectiveKeys[k] {
			return Perspective{}, perrors.New(perrors.ConfigError, k, "unknown perspective key")
		}
	}
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return Perspective{}, perrors.New(perrors.ConfigError, "name", "perspective name is required and must be a string")
	}
	p := Perspective{Name: name}
	if v, ok := m["connect"]; ok {
		s, ok := v.(string)
		if !ok {
			return Perspective{}, perrors.New(perrors.ConfigError, "connect", "connect must be a string")
		}
		p.Connect = s
	}
	if v, ok := m["import"]; ok {
		s, ok := v.(string)
		if !ok {
			return Perspective{}, perrors.New(perrors.ConfigError, "import", "import must be a string")
		}
		p.Import = s
	}
	if v, ok := m["export"]; ok {
		s, ok := v.(string)
		if !ok {
			return Perspective{}, perrors.New(perrors.ConfigError, "export", "export must be a string")
		}
		p.Export = s
	}
	return p, nil
}
