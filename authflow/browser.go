package authflow

import (
	"os/exec"
	"runtime"
)

// Browser opens a URL in an external browsing context. The authorization and
// end-session endpoints are both opened through this.
type Browser interface {
	OpenURL(url string) error
}

// SystemBrowser shells out to the platform's default browser.
type SystemBrowser struct{}

var _ Browser = SystemBrowser{}

func (SystemBrowser) OpenURL(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
