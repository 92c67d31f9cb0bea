package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand returns the program and arguments that hand target to the desktop's default handler.
func browserCommand(goos, target string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{target}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{target}, nil
	case "windows":
		// "cmd /c start" splits query strings on "&"
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// OpenBrowser opens a playback reference in the default browser.
//
// Only absolute http(s) references can be opened. A bare path such as "/processed/7_out.mp4"
// has to be resolved against the service first.
func OpenBrowser(ref string) error {
	u, err := url.Parse(ref)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: cannot open %q in a browser", ErrInvalidInput, ref)
	}

	name, args, err := browserCommand(getRuntime(), u.String())
	if err != nil {
		return err
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
