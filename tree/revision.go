// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tree

import (
	"github.com/mastersync/perspectivedb/diffmerge"
	"github.com/mastersync/perspectivedb/header"
)

// Revision is the atomic unit stored in a Tree: an immutable (header,
// body) pair (spec.md section 3).
type Revision struct {
	Header header.Header
	Body   diffmerge.Body
}
