// internal/gitlog/rename.go
package gitlog

import (
	"path"
	"regexp"
	"strings"
)

const renameArrow = " => "

// renameSegment matches one brace-delimited "old => new" part of a numstat path.
var renameSegment = regexp.MustCompile(`\{[^{]* => [^}]*\}`)

// ResolveRename returns the current path and the rename description for a numstat path field.
// Paths that are not renames come back unchanged with an empty change.
//
//	src/{old => new}/main.go  ->  src/new/main.go, "src/old/main.go => src/new/main.go"
//	docs/a.md => b.md         ->  b.md, "docs/a.md => b.md"
func ResolveRename(field string) (current, change string) {
	if !strings.Contains(field, renameArrow) {
		return field, ""
	}

	if renameSegment.MatchString(field) {
		oldPath := renameSegment.ReplaceAllStringFunc(field, func(seg string) string {
			return splitSegment(seg)[0]
		})
		newPath := renameSegment.ReplaceAllStringFunc(field, func(seg string) string {
			return splitSegment(seg)[1]
		})
		oldPath, newPath = cleanRenamed(oldPath), cleanRenamed(newPath)
		return newPath, oldPath + renameArrow + newPath
	}

	_, newPath, _ := strings.Cut(field, renameArrow)
	return newPath, field
}

func splitSegment(seg string) [2]string {
	inner := strings.TrimSuffix(strings.TrimPrefix(seg, "{"), "}")
	oldSide, newSide, _ := strings.Cut(inner, renameArrow)
	return [2]string{oldSide, newSide}
}

// cleanRenamed collapses the doubled separator left behind by an empty rename side.
func cleanRenamed(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.TrimPrefix(p, "/")
}

// Extension returns the text after the last dot of the file's base name,
// or the base name itself when it has no dot (e.g. "Dockerfile").
func Extension(filePath string) string {
	base := path.Base(filePath)
	if i := strings.LastIndex(base, "."); i >= 0 && i < len(base)-1 {
		return base[i+1:]
	}
	return base
}
