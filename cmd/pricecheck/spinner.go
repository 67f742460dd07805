package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const spinnerInterval = 80 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// runWithSpinner runs operation while animating message on w. Outside a
// terminal the message is printed once instead.
func runWithSpinner(w io.Writer, message string, operation func() error) error {
	if !isTTY() || outputJSON {
		if !outputJSON {
			fmt.Fprintf(w, "%s...\n", message)
		}
		return operation()
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		style := lipgloss.NewStyle().Foreground(colorPrimary)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(w, "\r%s %s", style.Render(spinnerFrames[i%len(spinnerFrames)]), message)
			select {
			case <-stop:
				// frame is two columns wide, plus the separating space
				fmt.Fprint(w, "\r"+strings.Repeat(" ", len(message)+8)+"\r")
				return
			case <-ticker.C:
			}
		}
	}()

	err := operation()
	close(stop)
	<-done
	return err
}
