/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/blacktop/syspatch/internal/colors"
	"github.com/blacktop/syspatch/pkg/patcher"
)

var colorPatched = colors.BoldGreen().SprintFunc()
var colorFile = colors.Green().SprintFunc()
var colorNotFound = colors.Yellow().SprintFunc()
var colorFailed = colors.BoldRed().SprintFunc()
var colorQuiet = colors.Faint().SprintFunc()
var colorSection = colors.Cyan().SprintFunc()
var colorHeader = colors.Bold().SprintFunc()

func colorResult(r patcher.Result, s string) string {
	switch r {
	case patcher.PatchedSyspatch:
		return colorPatched(s)
	case patcher.PatchedFile:
		return colorFile(s)
	case patcher.NotFound:
		return colorNotFound(s)
	case patcher.FailedWrite:
		return colorFailed(s)
	default:
		return colorQuiet(s)
	}
}

func confirm(path string, yes bool) bool {
	if yes {
		return true
	}
	ok := false
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("You are about to overwrite the regions of %s. Continue?", filepath.Base(path)),
	}
	survey.AskOne(prompt, &ok)
	return ok
}
