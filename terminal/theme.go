package terminal

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Theme represents a terminal theme configuration
type Theme struct {
	Name         string
	PromptColor  string
	TextColor    string
	ErrorColor   string
	SuccessColor string
	InfoColor    string
}

var themes = map[string]Theme{
	"light": {
		Name:         "light",
		PromptColor:  "black",
		TextColor:    "black",
		ErrorColor:   "red",
		SuccessColor: "green",
		InfoColor:    "blue",
	},
	"dark": {
		Name:         "dark",
		PromptColor:  "green",
		TextColor:    "white",
		ErrorColor:   "red",
		SuccessColor: "green",
		InfoColor:    "cyan",
	},
}

// ThemeNames lists the themes accepted by SetTheme.
func ThemeNames() []string { return []string{"dark", "light"} }

// ThemeManager colors shell output.
type ThemeManager struct {
	mu           sync.RWMutex
	currentTheme Theme
	out          io.Writer
}

// NewThemeManager starts with the named theme and writes to out.
func NewThemeManager(name string, out io.Writer) (*ThemeManager, error) {
	tm := &ThemeManager{out: out}
	if err := tm.SetTheme(name); err != nil {
		return nil, err
	}
	return tm, nil
}

// SetTheme sets a new theme
func (tm *ThemeManager) SetTheme(name string) error {
	t, ok := themes[name]
	if !ok {
		return fmt.Errorf("unknown theme: %s", name)
	}
	tm.mu.Lock()
	tm.currentTheme = t
	tm.mu.Unlock()
	return nil
}

// GetThemeName returns the name of the current theme
func (tm *ThemeManager) GetThemeName() string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.currentTheme.Name
}

func (tm *ThemeManager) theme() Theme {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.currentTheme
}

// GetPromptColor returns the color for prompts
func (tm *ThemeManager) GetPromptColor() *color.Color {
	return getColorFromName(tm.theme().PromptColor)
}

// GetTextColor returns the color for normal text
func (tm *ThemeManager) GetTextColor() *color.Color {
	return getColorFromName(tm.theme().TextColor)
}

// GetErrorColor returns the color for error messages
func (tm *ThemeManager) GetErrorColor() *color.Color {
	return getColorFromName(tm.theme().ErrorColor)
}

// GetSuccessColor returns the color for success messages
func (tm *ThemeManager) GetSuccessColor() *color.Color {
	return getColorFromName(tm.theme().SuccessColor)
}

// GetInfoColor returns the color for info messages
func (tm *ThemeManager) GetInfoColor() *color.Color {
	return getColorFromName(tm.theme().InfoColor)
}

// Text prints a line in the text color.
func (tm *ThemeManager) Text(format string, a ...interface{}) {
	tm.GetTextColor().Fprintf(tm.out, format+"\n", a...)
}

// Info prints a line in the info color.
func (tm *ThemeManager) Info(format string, a ...interface{}) {
	tm.GetInfoColor().Fprintf(tm.out, format+"\n", a...)
}

// Success prints a line in the success color.
func (tm *ThemeManager) Success(format string, a ...interface{}) {
	tm.GetSuccessColor().Fprintf(tm.out, format+"\n", a...)
}

// Error prints err in the error color.
func (tm *ThemeManager) Error(err error) {
	tm.GetErrorColor().Fprintf(tm.out, "Error: %v\n", err)
}

// getColorFromName returns a color.Color based on the color name
func getColorFromName(name string) *color.Color {
	switch name {
	case "black":
		return color.New(color.FgBlack)
	case "red":
		return color.New(color.FgRed)
	case "green":
		return color.New(color.FgGreen)
	case "yellow":
		return color.New(color.FgYellow)
	case "blue":
		return color.New(color.FgBlue)
	case "magenta":
		return color.New(color.FgMagenta)
	case "cyan":
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}
