// ui/select.go
package ui

import (
	"fmt"
	"os"

	"nfstraffic/config"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// SelectMode prompts the user to pick a renderer. Without a terminal on
// stdin it returns the simple renderer without asking.
func SelectMode() (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return config.ModeSimple, nil
	}

	var selected string
	form := huh.NewSelect[string]().
		Title("Select a view").
		Options(
			huh.NewOption("Dashboard (users, clients, files, events)", config.ModeTUI),
			huh.NewOption("Plain text summary every interval", config.ModeSimple),
		).
		Value(&selected)

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("view selection failed: %w", err)
	}
	return selected, nil
}
