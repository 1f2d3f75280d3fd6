package cli

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"fatrack/internal/constants"
)

type FeedbackCmd struct {
	Subject string `help:"Mail subject line." default:"fatrack feedback"`
}

// Run composes a feedback mail in the OS mail handler. When no handler is
// available the user gets a notice with the support address instead of an
// error exit.
func (c *FeedbackCmd) Run(ctx *Context) error {
	mailto := fmt.Sprintf("mailto:%s?subject=%s",
		constants.SupportEmail, url.QueryEscape(c.Subject))

	if err := openURL(mailto); err != nil {
		fmt.Println("Could not open a mail application on this system.")
		fmt.Printf("Please send your feedback to %s\n", constants.SupportEmail)
		return nil
	}

	fmt.Println("Opened your mail application.")
	return nil
}

func openURL(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	return cmd.Start()
}
