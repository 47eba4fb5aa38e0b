package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/sahib/fsh/fs"
)

var (
	treeRunePipe   = "│"
	treeRuneTri    = "├"
	treeRuneBar    = "──"
	treeRuneCorner = "└"
)

type treeNode struct {
	name     string
	order    []*treeNode
	children map[string]*treeNode
	isLast   bool
	parent   *treeNode
	depth    int
	entry    fs.FileStatus
}

type treeCfg struct {
	format func(n *treeNode) string
}

// Insert adds `entry` below `n`. `rel` is the path of entry relative to n.
func (n *treeNode) Insert(rel string, entry fs.FileStatus) {
	parts := strings.Split(strings.Trim(rel, "/"), "/")
	curr := n

	for depth, name := range parts {
		if curr.children == nil {
			curr.children = make(map[string]*treeNode)
		}

		child, ok := curr.children[name]
		if !ok {
			child = &treeNode{
				name:  name,
				depth: depth + 1,
			}

			child.isLast = true
			if len(curr.order) > 0 {
				curr.order[len(curr.order)-1].isLast = false
			}

			child.parent = curr
			curr.children[name] = child
			curr.order = append(curr.order, child)
		}

		curr = child
	}

	curr.entry = entry
}

func (n *treeNode) Len() int {
	return len(n.order)
}

func (n *treeNode) Swap(i, j int) {
	n.order[i], n.order[j] = n.order[j], n.order[i]

	// This is not very clever, but works and is obvious:
	n.order[i].isLast = i == len(n.order)-1
	n.order[j].isLast = j == len(n.order)-1
}

func (n *treeNode) Less(i, j int) bool {
	return n.order[i].name < n.order[j].name
}

func (n *treeNode) Print(w io.Writer, cfg *treeCfg) {
	parents := make([]*treeNode, n.depth)
	curr := n

	sort.Sort(n)

	for i := 0; i < n.depth; i++ {
		parents[n.depth-i-1] = curr
		curr = curr.parent
	}

	for i := 0; i < n.depth; i++ {
		if i == n.depth-1 {
			if n.isLast {
				fmt.Fprintf(w, "%s", treeRuneCorner)
			} else {
				fmt.Fprintf(w, "%s", treeRuneTri)
			}
		} else {
			if parents[i].isLast {
				fmt.Fprintf(w, "%s  ", " ")
			} else {
				fmt.Fprintf(w, "%s  ", treeRunePipe)
			}
		}
	}

	// Default to an auto-formatter:
	format := cfg.format
	if format == nil {
		format = func(n *treeNode) string {
			switch {
			case n.depth == 0:
				return color.MagentaString(n.name)
			case n.entry.IsDir:
				return color.GreenString(n.name)
			}

			return " " + n.name
		}
	}

	prefix := treeRuneBar
	if n.depth == 0 {
		prefix = ""
	}

	fmt.Fprintf(w, "%s%s\n", prefix, format(n))
	for _, child := range n.order {
		child.Print(w, cfg)
	}
}

// showTree prints `entries` (all below `rootPath`) as tree to `w`.
func showTree(w io.Writer, rootPath string, entries []fs.FileStatus, cfg *treeCfg) {
	root := &treeNode{name: rootPath}
	nfiles, ndirs := 0, 0

	prefix := strings.TrimSuffix(rootPath, "/") + "/"
	for _, entry := range entries {
		rel := strings.TrimPrefix(entry.Path, prefix)
		if rel == "" || rel == entry.Path {
			continue
		}

		root.Insert(rel, entry)
		if entry.IsDir {
			ndirs++
		} else {
			nfiles++
		}
	}

	root.Print(w, cfg)

	// Speak understandable english:
	dirLabel := "directories"
	if ndirs == 1 {
		dirLabel = "directory"
	}

	fileLabel := "files"
	if nfiles == 1 {
		fileLabel = "file"
	}

	fmt.Fprintf(w, "\n%d %s, %d %s\n", ndirs, dirLabel, nfiles, fileLabel)
}
