package archive

import (
	"strings"

	"github.com/nao1215/webchecks/internal/urlmodel"
)

const (
	// MainPage is the file name used for the root path of a host.
	MainPage = "MAINPAGE"

	// maxNameLength caps a file name, extension excluded.
	maxNameLength = 150
)

// FileName derives the archive file name of link. The path loses its leading
// slash, the remaining slashes become underscores and ext is appended unless
// the path already ends with it. ext may be given with or without the dot.
func FileName(link, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	path, err := urlmodel.ExtractLocalPathWithoutArgs(link)
	if err != nil {
		path = urlmodel.RemoveArgs(link)
	}
	if path == "/" || path == "" {
		return MainPage + ext
	}

	name := strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", "_")
	if ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if name == "." || name == ".." {
		name = "_" + name
	}
	return name + ext
}
