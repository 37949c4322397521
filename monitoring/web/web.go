// Package web embeds the dashboard served by the monitor.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// DevModeEnv names the environment variable that, when true, makes the
// monitor serve the dashboard from the source tree instead of the binary.
const DevModeEnv = "MEMSIM_MONITOR_DEV"

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the files of the dashboard.
func GetAssets() http.FileSystem {
	if devMode, _ := strconv.ParseBool(os.Getenv(DevModeEnv)); devMode {
		return sourceAssets()
	}

	dist, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(dist)
}

func sourceAssets() http.FileSystem {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the dashboard sources")
	}

	dir := filepath.Join(filepath.Dir(file), "dist")
	fmt.Fprintf(os.Stderr, "Serving the dashboard from %s\n", dir)

	return http.Dir(dir)
}
