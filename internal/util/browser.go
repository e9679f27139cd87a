package util

import (
	"errors"
	"os/exec"
	"runtime"
)

// browserCommands candidate command lines that open url on goos, in the order to try them.
func browserCommands(goos, url string) [][]string {
	switch goos {
	case "windows":
		// rundll32 works on Windows 7 where "cmd /c start" is unreliable
		return [][]string{
			{"rundll32", "url.dll,FileProtocolHandler", url},
			{"explorer", url},
		}
	case "darwin":
		return [][]string{{"open", url}}
	default:
		cmds := [][]string{{"xdg-open", url}}
		for _, b := range []string{"google-chrome", "firefox", "chromium-browser", "sensible-browser"} {
			cmds = append(cmds, []string{b, url})
		}
		return cmds
	}
}

// OpenBrowser opens url without waiting for the browser, trying each known launcher for
// the platform in turn. It returns the first launcher's error when none starts.
func OpenBrowser(url string) error {
	return openWith(browserCommands(runtime.GOOS, url), func(argv []string) error {
		return exec.Command(argv[0], argv[1:]...).Start()
	})
}

func openWith(cmds [][]string, start func(argv []string) error) error {
	var first error
	for _, argv := range cmds {
		err := start(argv)
		if err == nil {
			return nil
		}
		if first == nil {
			first = err
		}
	}
	if first == nil {
		first = errors.New("no browser launcher for this platform")
	}
	return first
}
