// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// persdb-compare reports how two databases' (or two perspectives of one
// database's) document populations differ.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sirupsen/logrus"

	"github.com/mastersync/perspectivedb/compare"
	"github.com/mastersync/perspectivedb/dbconfig"
	"github.com/mastersync/perspectivedb/mergetree"
	"github.com/mastersync/perspectivedb/storekv/leveldb"
	"github.com/mastersync/perspectivedb/tree"
)

var (
	app          = kingpin.New("persdb-compare", "Compare two trees' document populations.")
	dbA          = app.Flag("a", "First database's configuration path.").Required().String()
	dbB          = app.Flag("b", "Second database's configuration path (defaults to -a).").String()
	perspectiveA = app.Flag("c", "Perspective within -a to compare from (\"\" for local).").String()
	perspectiveB = app.Flag("d", "Perspective within -b to compare against (\"\" for local).").String()
	includeAttrs = app.Flag("ipe", "Attributes to include (default: all).").Strings()
	excludeAttrs = app.Flag("epe", "Attributes to exclude.").Strings()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	log := logrus.New()

	pathB := *dbB
	if pathB == "" {
		pathB = *dbA
	}

	t1, closeA, err := openTree(*dbA, *perspectiveA)
	if err != nil {
		log.WithError(err).Error("failed to open first tree")
		os.Exit(2)
	}
	defer closeA()

	t2, closeB, err := openTree(pathB, *perspectiveB)
	if err != nil {
		log.WithError(err).Error("failed to open second tree")
		os.Exit(2)
	}
	defer closeB()

	entries, err := compare.Run(t1, t2, compare.Filter{IncludeAttrs: *includeAttrs, ExcludeAttrs: *excludeAttrs})
	if err != nil {
		log.WithError(err).Error("comparison failed")
		os.Exit(2)
	}

	counts := map[compare.Classification]int{}
	for _, e := range entries {
		counts[e.Classification]++
	}
	fmt.Printf("missing=%d equal=%d inequal=%d multiple=%d\n",
		counts[compare.Missing], counts[compare.Equal], counts[compare.Inequal], counts[compare.Multiple])
}

func openTree(configPath, perspective string) (*tree.Tree, func(), error) {
	db, err := dbconfig.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	store, err := leveldb.Open(filepath.Join(db.Chroot, db.Data))
	if err != nil {
		return nil, nil, err
	}
	mt, err := mergetree.Open(store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	t, err := treeFor(mt, perspective)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return t, func() { store.Close() }, nil
}

func treeFor(mt *mergetree.MergeTree, perspective string) (*tree.Tree, error) {
	switch perspective {
	case "":
		return mt.Local(), nil
	case "stage":
		return mt.Stage(), nil
	default:
		return mt.Remote(perspective)
	}
}
