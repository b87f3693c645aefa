package terminal

import (
	"os"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
)

// Lister is the part of the connection the completer needs.
type Lister interface {
	ListDirectory(path string) ([]byte, error)
}

// CommandCompleter handles command and argument completion
type CommandCompleter struct {
	commands     []prompt.Suggest
	remoteFiles  []string
	remoteDirs   []string
	lastUpdate   time.Time
	lister       Lister
	cacheTimeout time.Duration

	localFiles    []string
	localDir      string
	localCacheAge time.Time

	now func() time.Time
}

// NewCommandCompleter creates a new command completer
func NewCommandCompleter() *CommandCompleter {
	return &CommandCompleter{
		commands: []prompt.Suggest{
			{Text: "ls", Description: "List a remote directory"},
			{Text: "cd", Description: "Change remote directory"},
			{Text: "pwd", Description: "Show remote directory"},
			{Text: "get", Description: "Download a file (--resume, --restart)"},
			{Text: "put", Description: "Upload a file (--resume, --restart)"},
			{Text: "rm", Description: "Delete a remote file"},
			{Text: "mkdir", Description: "Create a remote directory"},
			{Text: "rmdir", Description: "Remove a remote directory"},
			{Text: "mv", Description: "Rename a remote file"},
			{Text: "size", Description: "Show remote file size"},
			{Text: "lls", Description: "List a local directory"},
			{Text: "theme", Description: "Change terminal theme"},
			{Text: "help", Description: "Show help information"},
			{Text: "exit", Description: "Close the session"},
		},
		cacheTimeout: 15 * time.Second,
		now:          time.Now,
	}
}

// SetLister sets the connection used to refresh remote names.
func (c *CommandCompleter) SetLister(l Lister) {
	c.lister = l
}

// UpdateRemoteFiles updates the cached remote files and directories
func (c *CommandCompleter) UpdateRemoteFiles(files, dirs []string) {
	c.remoteFiles = files
	c.remoteDirs = dirs
	c.lastUpdate = c.now()
}

// UpdateFromListing caches the names of a ListDirectory result.
func (c *CommandCompleter) UpdateFromListing(listing []byte) {
	var files, dirs []string
	for _, fi := range ParseListing(listing) {
		if fi.IsDir {
			dirs = append(dirs, fi.Name)
		} else {
			files = append(files, fi.Name)
		}
	}
	c.UpdateRemoteFiles(files, dirs)
}

// Completer returns suggestions for the current input
func (c *CommandCompleter) Completer(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	words := strings.Fields(text)

	if len(words) == 0 || (len(words) == 1 && !strings.HasSuffix(text, " ")) {
		return c.suggestCommands(words)
	}
	if strings.HasSuffix(text, " ") {
		return nil
	}
	return c.suggestArguments(words)
}

func (c *CommandCompleter) suggestCommands(words []string) []prompt.Suggest {
	if len(words) == 0 {
		return c.commands
	}
	prefix := strings.ToLower(words[0])
	var filtered []prompt.Suggest
	for _, s := range c.commands {
		if strings.HasPrefix(s.Text, prefix) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func (c *CommandCompleter) suggestArguments(words []string) []prompt.Suggest {
	lastWord := words[len(words)-1]
	if strings.HasPrefix(lastWord, "-") {
		switch words[0] {
		case "get", "put":
			return prompt.FilterHasPrefix([]prompt.Suggest{
				{Text: "--resume", Description: "Continue a partial transfer"},
				{Text: "--restart", Description: "Discard the partial file first"},
			}, lastWord, false)
		}
		return nil
	}

	switch words[0] {
	case "cd", "rmdir":
		return c.filter(c.remoteNames(true), lastWord, "Remote directory")
	case "get", "rm", "size", "mv":
		return c.filter(c.remoteNames(false), lastWord, "Remote file")
	case "put":
		return c.filter(c.localNames(), lastWord, "Local file")
	case "ls":
		return append(c.filter(c.remoteNames(true), lastWord, "Remote directory"),
			c.filter(c.remoteNames(false), lastWord, "Remote file")...)
	case "theme":
		return c.filter(ThemeNames(), lastWord, "Theme")
	default:
		return nil
	}
}

// filter keeps the names starting with prefix. Hidden names are only
// offered when prefix starts with a dot.
func (c *CommandCompleter) filter(names []string, prefix, description string) []prompt.Suggest {
	var suggestions []prompt.Suggest
	for _, name := range names {
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
			suggestions = append(suggestions, prompt.Suggest{Text: name, Description: description})
		}
	}
	return suggestions
}

func (c *CommandCompleter) remoteNames(dirs bool) []string {
	if c.now().Sub(c.lastUpdate) > c.cacheTimeout {
		c.refreshRemoteCache()
	}
	if dirs {
		return c.remoteDirs
	}
	return c.remoteFiles
}

// refreshRemoteCache lists the current remote directory. Failures keep
// the old cache.
func (c *CommandCompleter) refreshRemoteCache() {
	if c.lister == nil {
		return
	}
	listing, err := c.lister.ListDirectory("")
	if err != nil {
		return
	}
	c.UpdateFromListing(listing)
}

func (c *CommandCompleter) localNames() []string {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	if cwd == c.localDir && c.now().Sub(c.localCacheAge) < 10*time.Second {
		return c.localFiles
	}

	entries, err := os.ReadDir(cwd)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	c.localFiles, c.localDir, c.localCacheAge = files, cwd, c.now()
	return files
}

// ClearCache clears all cached suggestions
func (c *CommandCompleter) ClearCache() {
	c.remoteFiles = nil
	c.remoteDirs = nil
	c.localFiles = nil
	c.localDir = ""
	c.lastUpdate = time.Time{}
}
