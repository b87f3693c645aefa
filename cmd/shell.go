package cmd

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/c-bata/go-prompt"

	"github.com/pauliuspaskevicius/libARUtils/terminal"
	"github.com/pauliuspaskevicius/libARUtils/transfer"
)

// Command represents a parsed command
type Command struct {
	name string
	args []string
}

var errUsage = errors.New("wrong arguments, see help")

func parseCommand(input string) Command {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return Command{}
	}

	cmd := Command{
		name: parts[0],
		args: parts[1:],
	}

	// Join quoted arguments.
	for i := 0; i < len(cmd.args); i++ {
		if !strings.HasPrefix(cmd.args[i], "\"") {
			continue
		}
		if len(cmd.args[i]) > 1 && strings.HasSuffix(cmd.args[i], "\"") {
			cmd.args[i] = strings.Trim(cmd.args[i], "\"")
			continue
		}
		for j := i + 1; j < len(cmd.args); j++ {
			if strings.HasSuffix(cmd.args[j], "\"") {
				joined := strings.Join(cmd.args[i:j+1], " ")
				cmd.args[i] = strings.Trim(joined, "\"")
				cmd.args = append(cmd.args[:i+1], cmd.args[j+1:]...)
				break
			}
		}
	}

	return cmd
}

// parseResume strips --resume and --restart from args.
func parseResume(args []string) ([]string, transfer.ResumeMode, error) {
	mode := transfer.NoResume
	var rest []string
	for _, a := range args {
		switch a {
		case "--resume", "-r":
			if mode == transfer.ForceRestart {
				return nil, mode, errors.New("--resume and --restart are exclusive")
			}
			mode = transfer.ResumeIfPossible
		case "--restart":
			if mode == transfer.ResumeIfPossible {
				return nil, mode, errors.New("--resume and --restart are exclusive")
			}
			mode = transfer.ForceRestart
		default:
			rest = append(rest, a)
		}
	}
	return rest, mode, nil
}

func (a *app) commands() map[string]func([]string) error {
	return map[string]func([]string) error{
		"ls":    a.list,
		"cd":    a.changeDir,
		"pwd":   a.pwd,
		"get":   a.get,
		"put":   a.put,
		"rm":    a.oneArg(a.conn.Delete, "Deleted %s"),
		"mkdir": a.oneArg(a.conn.MakeDirectory, "Created %s"),
		"rmdir": a.oneArg(a.conn.RemoveDirectory, "Removed %s"),
		"mv":    a.rename,
		"size":  a.size,
		"lls":   a.localList,
		"theme": a.setTheme,
		"help": func([]string) error {
			a.showHelp()
			return nil
		},
	}
}

// execute runs one shell line and reports errors on the terminal.
func (a *app) execute(input string) {
	input = strings.TrimSpace(input)
	if input == "" || input == "exit" {
		return
	}
	cmd := parseCommand(input)
	fn, ok := a.commands()[cmd.name]
	if !ok {
		a.theme.Error(fmt.Errorf("unknown command %q, type help", cmd.name))
		return
	}
	if err := fn(cmd.args); err != nil {
		a.theme.Error(err)
	}
}

func (a *app) oneArg(fn func(string) error, done string) func([]string) error {
	return func(args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		if err := fn(args[0]); err != nil {
			return err
		}
		a.completer.ClearCache()
		a.theme.Success(done, args[0])
		return nil
	}
}

func (a *app) list(args []string) error {
	if len(args) > 1 {
		return errUsage
	}
	p := ""
	if len(args) == 1 {
		p = args[0]
	}
	listing, err := a.conn.ListDirectory(p)
	if err != nil {
		return err
	}
	if p == "" {
		a.completer.UpdateFromListing(listing)
	}
	return a.table.FormatRemoteListing(listing)
}

func (a *app) changeDir(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := a.conn.ChangeDirectory(args[0]); err != nil {
		return err
	}
	a.completer.ClearCache()
	return nil
}

func (a *app) pwd([]string) error {
	if _, err := a.conn.Command("", transfer.VerbPwd); err != nil {
		return err
	}
	a.theme.Text("%s", a.remoteDir())
	return nil
}

func (a *app) remoteDir() string {
	if d := a.conn.WorkingDirectory(); d != "" {
		return d
	}
	return "~"
}

func (a *app) get(args []string) error {
	args, mode, err := parseResume(args)
	if err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	remote, local := args[0], path.Base(args[0])
	if len(args) == 2 {
		local = args[1]
	}
	if st, err := os.Stat(local); err == nil && st.IsDir() {
		local = filepath.Join(local, path.Base(remote))
	}

	p := newProgressPrinter(a.out, transfer.Download)
	err = a.interruptible(func() error {
		return a.conn.GetToFile(remote, local, p.update, mode)
	})
	p.finish()
	if err != nil {
		return err
	}
	a.theme.Success("Downloaded %s to %s", remote, local)
	return nil
}

func (a *app) put(args []string) error {
	args, mode, err := parseResume(args)
	if err != nil {
		return err
	}
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	local, remote := args[0], filepath.Base(args[0])
	if len(args) == 2 {
		remote = args[1]
	}

	p := newProgressPrinter(a.out, transfer.Upload)
	err = a.interruptible(func() error {
		return a.conn.Put(remote, local, p.update, mode)
	})
	p.finish()
	if err != nil {
		return err
	}
	a.completer.ClearCache()
	a.theme.Success("Uploaded %s to %s", local, remote)
	return nil
}

func (a *app) rename(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	if err := a.conn.Rename(args[0], args[1]); err != nil {
		return err
	}
	a.completer.ClearCache()
	a.theme.Success("Renamed %s to %s", args[0], args[1])
	return nil
}

func (a *app) size(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	n, err := a.conn.Size(args[0])
	if err != nil {
		return err
	}
	a.theme.Text("%s: %d bytes", args[0], n)
	return nil
}

func (a *app) localList(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	return a.table.FormatLocalDirectory(dir)
}

func (a *app) setTheme(args []string) error {
	if len(args) == 0 {
		a.theme.Text("Current theme: %s (available: %s)", a.theme.GetThemeName(), strings.Join(terminal.ThemeNames(), ", "))
		return nil
	}
	if err := a.theme.SetTheme(args[0]); err != nil {
		return err
	}
	a.theme.Success("Theme set to %s", args[0])
	return nil
}

func (a *app) showHelp() {
	a.theme.Info("Commands:")
	for _, l := range []string{
		"  ls [PATH]                         list a remote directory",
		"  cd PATH                           change remote directory",
		"  pwd                               show remote directory",
		"  get REMOTE [LOCAL] [--resume|--restart]",
		"  put LOCAL [REMOTE] [--resume|--restart]",
		"  rm PATH                           delete a remote file",
		"  mkdir PATH | rmdir PATH           create or remove a remote directory",
		"  mv FROM TO                        rename a remote file",
		"  size PATH                         show a remote file size",
		"  lls [DIR]                         list a local directory",
		"  theme [dark|light]                show or change the theme",
		"  exit                              close the session",
		"Ctrl+C during get or put cancels the transfer; --resume continues it later.",
	} {
		a.theme.Text("%s", l)
	}
}

func (a *app) runShell() {
	a.theme.GetPromptColor().Fprintf(a.out, "Connected to %s as %s\n", a.cfg.Server.Address, a.cfg.Server.Username)
	a.theme.Text("Type 'help' for available commands")

	p := prompt.New(
		a.execute,
		a.completer.Completer,
		prompt.OptionTitle(Name),
		prompt.OptionLivePrefix(func() (string, bool) {
			return "[FTP] " + a.remoteDir() + "> ", true
		}),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionPreviewSuggestionTextColor(prompt.Blue),
		prompt.OptionSelectedSuggestionBGColor(prompt.LightGray),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionCompletionWordSeparator(" "),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && strings.TrimSpace(in) == "exit"
		}),
		prompt.OptionAddKeyBind(prompt.KeyBind{
			Key: prompt.ControlSpace,
			Fn: func(buf *prompt.Buffer) {
				buf.InsertText("", false, true)
			},
		}),
	)
	p.Run()
}
