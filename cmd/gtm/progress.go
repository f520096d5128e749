// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/gigantum/gtm/internal/build"
	"github.com/gigantum/gtm/internal/naming"
)

// buildProgress prints one "(i/n) Building <label>: <target>" block per target.
func buildProgress(w io.Writer, label string) build.Observer {
	return func(t build.Transition) {
		switch t.To {
		case build.StateBuilding:
			fmt.Fprintf(w, "(%d/%d) Building %s: %s\n", t.Index, t.Total, label, TagStyle.Render(t.Target.Name))
		case build.StateDone:
			fmt.Fprintf(w, " - %s\n", SuccessStyle.Render("Complete"))
			fmt.Fprintf(w, " - Tag: %s\n", TagStyle.Render(t.Tag.String()))
		case build.StateFailed:
			fmt.Fprintf(w, " - %s\n", ErrorStyle.Render("Failed"))
		}
	}
}

// publishProgress prints the publish block of each tag. A block is completed
// when the next push starts or when finish is called after a successful run.
type publishProgress struct {
	w     io.Writer
	label string
	last  naming.ImageTag
}

func (p *publishProgress) start(index, total int, tag naming.ImageTag) {
	p.finish()
	fmt.Fprintf(p.w, "(%d/%d) Publishing %s: %s\n", index, total, p.label, TagStyle.Render(tag.String()))
	p.last = tag
}

func (p *publishProgress) finish() {
	if p.last == "" {
		return
	}
	fmt.Fprintf(p.w, " - %s\n", SuccessStyle.Render("Complete"))
	fmt.Fprintf(p.w, " - Tag: %s\n", TagStyle.Render(p.last.String()))
	p.last = ""
}
