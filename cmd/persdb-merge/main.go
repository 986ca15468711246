// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// persdb-merge computes (and optionally persists) the three-way merge
// of two versions.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mastersync/perspectivedb/dbconfig"
	"github.com/mastersync/perspectivedb/mergetree"
	"github.com/mastersync/perspectivedb/storekv/leveldb"
)

var (
	app     = kingpin.New("persdb-merge", "Merge two revisions and print (or persist) the result.")
	coll    = app.Flag("c", "Collection name (reserved; carried for CLI-surface compatibility).").String()
	persist = app.Flag("s", "Persist the merge result to the local tree.").Bool()
	config  = app.Arg("config", "Path to the database's HJSON configuration.").Required().String()
	v1      = app.Arg("v1", "First version.").Required().String()
	v2      = app.Arg("v2", "Second version.").Required().String()
	lcaArg  = app.Arg("lca", "Optional version reported as the merge base in the output; the merge itself always uses the computed LCA set.").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	log := logrus.New()
	_ = coll

	db, err := dbconfig.Load(*config)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		os.Exit(2)
	}

	store, err := leveldb.Open(filepath.Join(db.Chroot, db.Data))
	if err != nil {
		log.WithError(err).Error("failed to open store")
		os.Exit(2)
	}
	defer store.Close()

	mt, err := mergetree.Open(store)
	if err != nil {
		log.WithError(err).Error("failed to open merge tree")
		os.Exit(2)
	}

	result, err := mt.Merge(*v1, *v2)
	if err != nil {
		log.WithError(err).Error("merge failed")
		os.Exit(2)
	}
	if *lcaArg != "" {
		result.BaseVersions = []string{*lcaArg}
	}

	out, err := json.MarshalIndent(struct {
		Merged    map[string]interface{} `json:"merged"`
		Conflicts []string                `json:"conflicts"`
		Base      []string                `json:"base"`
	}{Merged: result.Merged, Conflicts: result.Conflicts, Base: result.BaseVersions}, "", "  ")
	if err != nil {
		log.WithError(err).Error("failed to render merge result")
		os.Exit(2)
	}
	fmt.Println(string(out))

	if *persist {
		raw, body, err := mt.MergedRevision(*v1, *v2, uuid.NewString(), result)
		if err != nil {
			log.WithError(err).Error("failed to assemble merge revision")
			os.Exit(2)
		}
		if _, err := mt.Write(mergetree.Local, raw, body, mergetree.WriteOptions{}); err != nil {
			log.WithError(err).Error("failed to persist merge result")
			os.Exit(2)
		}
	}
}
