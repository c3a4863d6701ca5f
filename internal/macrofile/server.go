package macrofile

import (
	"net/http"

	"github.com/jasonwbarnett/fileserver"
)

// DirHandler serves a macro directory for browsing/upload/delete, the same
// role cmd/gcnc/api.go's "/data/" route plays for its probe-grid data
// directory, but backed by fileserver instead of a bare http.FileServer so
// PUT/DELETE work without hand-rolled handlers.
func DirHandler(dir string) http.Handler {
	return fileserver.New(http.Dir(dir))
}
