// Command storymapgui opens the story map in a native window, starting the
// server next to it when none is running.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	webview "github.com/webview/webview_go"

	"storymap/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/storymap.yaml", "path to the YAML config file")
	flag.Parse()

	// Webview requires main thread
	runtime.LockOSThread()

	// Run from the executable directory so relative config and data paths resolve
	if exe, err := os.Executable(); err == nil {
		if err := os.Chdir(filepath.Dir(exe)); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL ERROR: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: %v\n", err)
		os.Exit(1)
	}

	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("Story Map")
	w.SetSize(1280, 860, webview.HintNone)
	w.SetHtml(splashHTML)

	logProxy := func(msg string) {
		w.Dispatch(func() {
			w.Eval("window.addLogLine(" + escapeJS(msg) + ")")
		})
	}
	readyProxy := func(url string) {
		w.Dispatch(func() {
			w.Navigate(url)
		})
	}

	mgr := NewManager(logProxy, readyProxy, cfg.Server.Address, serverBinary(), *configPath)
	defer mgr.Stop()
	mgr.Start()

	w.Run()
	slog.Info("Window closed")
}

// serverBinary is the storymap executable shipped next to this one.
func serverBinary() string {
	name := "storymap"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(".", name)
}

func escapeJS(s string) string {
	b, _ := json.Marshal(s)
	// json.Marshal returns "string", surrounding quotes included.
	return string(b)
}
