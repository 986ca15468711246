// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// persdb-log prints the revision graph of a configured database.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sirupsen/logrus"

	"github.com/mastersync/perspectivedb/dbconfig"
	"github.com/mastersync/perspectivedb/mergetree"
	"github.com/mastersync/perspectivedb/storekv/leveldb"
	"github.com/mastersync/perspectivedb/tree"
)

var (
	app      = kingpin.New("persdb-log", "Print the revision graph of a PerspectiveDB database.")
	stage    = app.Flag("stage", "Include the stage tree.").Short('s').Bool()
	allTrees = app.Flag("all", "Include every perspective tree.").Short('a').Bool()
	perspect = app.Flag("pe", "Restrict output to one perspective (remote peer name).").String()
	count    = app.Flag("n", "Maximum number of revisions to print per tree.").Short('n').Int()
	printIDs = app.Flag("print", "Print document ids alongside versions.").Short('p').Bool()
	config   = app.Arg("config", "Path to the database's HJSON configuration.").Required().String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	log := logrus.New()

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

	trees := map[string]*tree.Tree{"": mt.Local()}
	if *stage || *allTrees {
		trees["stage"] = mt.Stage()
	}
	if *perspect != "" {
		t, err := mt.Remote(*perspect)
		if err != nil {
			log.WithError(err).Error("failed to open remote tree")
			os.Exit(2)
		}
		trees = map[string]*tree.Tree{*perspect: t}
	} else if *allTrees {
		for _, p := range db.Perspectives {
			t, err := mt.Remote(p.Name)
			if err != nil {
				log.WithError(err).Error("failed to open remote tree")
				os.Exit(2)
			}
			trees[p.Name] = t
		}
	}

	for name, t := range trees {
		if err := printTree(name, t, *count, *printIDs); err != nil {
			log.WithError(err).Error("failed to iterate tree")
			os.Exit(2)
		}
	}
}

func printTree(name string, t *tree.Tree, limit int, printIDs bool) error {
	cur, err := t.IterateInsertionOrder(tree.IterOptions{Limit: limit})
	if err != nil {
		return err
	}
	defer cur.Close()

	label := name
	if label == "" {
		label = "local"
	}
	for cur.Next() {
		rev, err := cur.Revision()
		if err != nil {
			return err
		}
		if printIDs {
			fmt.Printf("%s\ti=%d\tv=%s\tid=%x\tpa=%v\td=%v\tc=%v\n",
				label, rev.Header.I, rev.Header.V, rev.Header.ID, rev.Header.Pa, rev.Header.D, rev.Header.C)
		} else {
			fmt.Printf("%s\ti=%d\tv=%s\tpa=%v\n", label, rev.Header.I, rev.Header.V, rev.Header.Pa)
		}
	}
	return cur.Err()
}
