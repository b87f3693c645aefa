package terminal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// FileInfo represents a file or directory entry
type FileInfo struct {
	Name      string
	Type      string
	Size      uint64
	Modified  time.Time
	IsDir     bool
	IsSymlink bool
}

// TableFormatter handles formatted table output
type TableFormatter struct {
	out   io.Writer
	table *tablewriter.Table
}

// NewTableFormatter creates a table formatter writing to out.
func NewTableFormatter(out io.Writer) *TableFormatter {
	table := tablewriter.NewWriter(out)
	table.Header("Name", "Type", "Size", "Modified")
	table.Options(
		tablewriter.WithRendition(tw.Rendition{Borders: tw.Border{Left: tw.Pending, Right: tw.Pending, Top: tw.Pending, Bottom: tw.Pending}}),
		tablewriter.WithPadding(tw.Padding{Left: "\t", Right: "\t"}),
	)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.MaxWidth = 0
		cfg.Header = tw.CellConfig{
			Alignment: tw.CellAlignment{
				Global: tw.AlignLeft,
			},
		}
		cfg.Row = tw.CellConfig{
			Alignment: tw.CellAlignment{
				Global: tw.AlignLeft,
			},
		}
		cfg.Behavior = tw.Behavior{}
	})

	return &TableFormatter{
		out:   out,
		table: table,
	}
}

// FormatLocalDirectory formats a local directory listing
func (tf *TableFormatter) FormatLocalDirectory(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	var files []FileInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		fileType := "file"
		if entry.IsDir() {
			fileType = "dir"
		} else if info.Mode()&os.ModeSymlink != 0 {
			fileType = "link"
		}

		files = append(files, FileInfo{
			Name:      entry.Name(),
			Type:      fileType,
			Size:      uint64(info.Size()),
			Modified:  info.ModTime(),
			IsDir:     entry.IsDir(),
			IsSymlink: info.Mode()&os.ModeSymlink != 0,
		})
	}

	return tf.renderTable(files)
}

// FormatRemoteListing formats the NUL-terminated listing returned by
// ListDirectory.
func (tf *TableFormatter) FormatRemoteListing(listing []byte) error {
	return tf.renderTable(ParseListing(listing))
}

// ParseListing decodes ls -l style lines. Lines that do not parse are
// skipped.
func ParseListing(listing []byte) []FileInfo {
	listing = bytes.TrimRight(listing, "\x00")
	var files []FileInfo
	for _, line := range strings.Split(string(listing), "\n") {
		line = strings.TrimRight(line, "\r")
		if fi, ok := parseListLine(line); ok {
			files = append(files, fi)
		}
	}
	return files
}

func parseListLine(line string) (FileInfo, bool) {
	fields, name := splitFields(line, 8)
	if len(fields) < 8 || name == "" || len(fields[0]) != 10 {
		return FileInfo{}, false
	}
	size, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return FileInfo{}, false
	}

	fi := FileInfo{Name: name, Type: "file", Size: size}
	switch fields[0][0] {
	case 'd':
		fi.Type, fi.IsDir = "dir", true
	case 'l':
		fi.Type, fi.IsSymlink = "link", true
		if i := strings.Index(name, " -> "); i >= 0 {
			fi.Name = name[:i]
		}
	}
	if fi.Name == "." || fi.Name == ".." {
		return FileInfo{}, false
	}

	stamp := fields[5] + " " + fields[6] + " " + fields[7]
	layout := "Jan 2 2006"
	if strings.Contains(fields[7], ":") {
		layout = "Jan 2 15:04"
	}
	if t, err := time.Parse(layout, stamp); err == nil {
		fi.Modified = t
	}
	return fi, true
}

// splitFields returns the first n space separated fields of s and the
// remainder with its inner spacing intact.
func splitFields(s string, n int) ([]string, string) {
	var fields []string
	rest := s
	for len(fields) < n {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			return fields, ""
		}
		i := strings.IndexByte(rest, ' ')
		if i < 0 {
			return append(fields, rest), ""
		}
		fields = append(fields, rest[:i])
		rest = rest[i:]
	}
	return fields, strings.TrimLeft(rest, " ")
}

// renderTable renders the table with the given file information
func (tf *TableFormatter) renderTable(files []FileInfo) error {
	if len(files) == 0 {
		_, err := fmt.Fprintln(tf.out, "Directory is empty")
		return err
	}

	tf.table.Reset()
	tf.table.Header("Name", "Type", "Size", "Modified")

	for _, file := range files {
		size := formatSize(file.Size)
		if file.IsDir {
			size = "-"
		}

		modified := "-"
		if !file.Modified.IsZero() {
			modified = file.Modified.Format("Jan 02 15:04")
		}

		name := file.Name
		if file.IsDir {
			name = name + "/"
		} else if file.IsSymlink {
			name = name + "@"
		}

		if len(name) > 50 {
			name = name[:47] + "..."
		}

		// Regular files show their extension as the type.
		fileType := file.Type
		if !file.IsDir && !file.IsSymlink {
			if ext := filepath.Ext(file.Name); ext != "" {
				fileType = strings.ToUpper(strings.TrimPrefix(ext, "."))
			}
		}

		if err := tf.table.Append([]string{name, fileType, size, modified}); err != nil {
			return err
		}
	}

	return tf.table.Render()
}

// formatSize formats a file size in human-readable format
func formatSize(size uint64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := uint64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
