package ftptest

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

func (s *session) withAuth(handler func()) {
	if !s.authenticated {
		s.SendResponse(530, "Not logged in")
		return
	}
	handler()
}

func (s *session) withValidParam(param string, handler func()) {
	if param == "" {
		s.SendResponse(501, "Syntax error in parameters")
		return
	}
	handler()
}

func (s *session) withExistingFile(name string, handler func(virtual, full string, info os.FileInfo)) {
	virtual := s.ResolvePath(name)
	full := s.FullPath(virtual)
	info, err := os.Stat(full)
	if err != nil {
		s.SendResponse(550, "File not found")
		return
	}
	handler(virtual, full, info)
}

func (s *session) withExistingDirectory(name string, handler func(virtual, full string)) {
	virtual := s.ResolvePath(name)
	full := s.FullPath(virtual)
	info, err := os.Stat(full)
	if err != nil {
		s.SendResponse(550, "Directory not found")
		return
	}
	if !info.IsDir() {
		s.SendResponse(550, "Not a directory")
		return
	}
	handler(virtual, full)
}

// Session commands

func (s *session) HandleUSER(user string) {
	s.withValidParam(user, func() {
		s.userName = user
		s.authenticated = false
		s.SendResponse(331, "Password required")
	})
}

func (s *session) HandlePASS(password string) {
	if s.userName == "" {
		s.SendResponse(503, "Login with USER first")
		return
	}
	if s.userName != s.srv.user || (s.srv.password != "" && password != s.srv.password) {
		s.SendResponse(530, "Login incorrect")
		return
	}
	s.authenticated = true
	s.SendResponse(230, "Login successful")
}

func (s *session) HandleFEAT() {
	features := []string{"REST STREAM", "EPSV", "PASV"}
	if !s.srv.noSize {
		features = append(features, "SIZE")
	}
	s.sendMultiline(211, "Features:", features, "End")
}

func (s *session) HandleTYPE(t string) {
	switch t {
	case "I", "L 8", "A":
		s.SendResponse(200, "Type set to "+t)
	default:
		s.SendResponse(504, "Unsupported type")
	}
}

func (s *session) HandleCWD(dir string) {
	s.withAuth(func() {
		s.withValidParam(dir, func() {
			s.withExistingDirectory(dir, func(virtual, _ string) {
				s.cwd = virtual
				s.SendResponse(250, "Directory changed to "+virtual)
			})
		})
	})
}

// Data connection commands

func (s *session) HandleEPSV() {
	s.withAuth(func() {
		port, err := s.OpenPassive()
		if err != nil {
			s.SendResponse(425, "Can't open data connection")
			return
		}
		s.SendResponse(229, fmt.Sprintf("Entering Extended Passive Mode (|||%d|)", port))
	})
}

func (s *session) HandlePASV() {
	s.withAuth(func() {
		port, err := s.OpenPassive()
		if err != nil {
			s.SendResponse(425, "Can't open data connection")
			return
		}
		s.SendResponse(227, fmt.Sprintf("Entering Passive Mode (127,0,0,1,%d,%d)", port/256, port%256))
	})
}

func (s *session) HandleREST(pos string) {
	s.withAuth(func() {
		n, err := parseOffset(pos)
		if err != nil {
			s.SendResponse(501, "Syntax error in parameters")
			return
		}
		s.restartPos = n
		s.SendResponse(350, fmt.Sprintf("Restarting at %d", n))
	})
}

// takeRestart returns and clears the REST position.
func (s *session) takeRestart() int64 {
	n := s.restartPos
	s.restartPos = 0
	return n
}

func (s *session) HandleRETR(name string) {
	s.withAuth(func() {
		offset := s.takeRestart()
		s.withValidParam(name, func() {
			s.withExistingFile(name, func(virtual, full string, info os.FileInfo) {
				if info.IsDir() {
					s.SendResponse(550, "Is a directory")
					return
				}
				if offset > info.Size() {
					s.SendResponse(554, "Restart position beyond end of file")
					return
				}
				f, err := os.Open(full)
				if err != nil {
					s.SendResponse(550, "Failed to open file")
					return
				}
				defer f.Close()
				if _, err := f.Seek(offset, io.SeekStart); err != nil {
					s.SendResponse(554, "Seek failed")
					return
				}

				data, err := s.OpenDataConnection()
				if err != nil {
					s.SendResponse(425, "Can't open data connection")
					return
				}
				s.SendResponse(150, fmt.Sprintf("Opening data connection for %s (%d bytes)", virtual, info.Size()-offset))

				sent, err := copyThrottled(data, f, s.srv.chunkSize, s.srv.throttle, s.srv.stallAfter)
				if err == nil && s.srv.stallAfter > 0 && sent >= s.srv.stallAfter {
					// Hold the data connection open until the client gives up.
					_, _ = io.Copy(io.Discard, data)
					err = io.ErrUnexpectedEOF
				}
				s.closeData(data)
				if err != nil {
					s.SendResponse(426, "Connection closed; transfer aborted")
					return
				}
				s.SendResponse(226, "Transfer complete")
			})
		})
	})
}

func (s *session) HandleSTOR(name string) {
	s.withAuth(func() {
		offset := s.takeRestart()
		s.withValidParam(name, func() {
			full := s.FullPath(s.ResolvePath(name))
			f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE, 0o644)
			if err != nil {
				s.SendResponse(553, "Could not create file")
				return
			}
			defer f.Close()
			if err := f.Truncate(offset); err != nil {
				s.SendResponse(554, "Restart position not valid")
				return
			}
			if _, err := f.Seek(offset, io.SeekStart); err != nil {
				s.SendResponse(554, "Seek failed")
				return
			}

			data, err := s.OpenDataConnection()
			if err != nil {
				s.SendResponse(425, "Can't open data connection")
				return
			}
			s.SendResponse(150, "Ok to send data")
			n, err := io.Copy(f, data)
			s.closeData(data)
			if err != nil {
				s.SendResponse(426, "Connection closed; transfer aborted")
				return
			}
			s.log.Debug("stored", zap.String("path", full), zap.Int64("offset", offset), zap.Int64("bytes", n))
			s.SendResponse(226, "Transfer complete")
		})
	})
}

func (s *session) HandleLIST(arg string) {
	s.withAuth(func() {
		// Flags such as -a are not supported and are ignored.
		if len(arg) > 0 && arg[0] == '-' {
			arg = ""
		}
		dir := s.cwd
		if arg != "" {
			dir = s.ResolvePath(arg)
		}
		entries, err := os.ReadDir(s.FullPath(dir))
		if err != nil {
			s.SendResponse(550, "Failed to list directory")
			return
		}

		var listing bytes.Buffer
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			perms := "-rw-r--r--"
			if info.IsDir() {
				perms = "drwxr-xr-x"
			}
			fmt.Fprintf(&listing, "%s %3d %-8s %-8s %8d %s %s\r\n",
				perms, 1, "owner", "group", info.Size(),
				info.ModTime().UTC().Format("Jan 02 15:04"), info.Name())
		}

		data, err := s.OpenDataConnection()
		if err != nil {
			s.SendResponse(425, "Can't open data connection")
			return
		}
		s.SendResponse(150, "Here comes the directory listing")
		_, err = data.Write(listing.Bytes())
		s.closeData(data)
		if err != nil {
			s.SendResponse(426, "Connection closed; transfer aborted")
			return
		}
		s.SendResponse(226, "Directory send OK")
	})
}

func (s *session) HandleSIZE(name string) {
	s.withAuth(func() {
		if s.srv.noSize {
			s.SendResponse(502, "Command not implemented")
			return
		}
		s.withValidParam(name, func() {
			s.withExistingFile(name, func(_, _ string, info os.FileInfo) {
				if info.IsDir() {
					s.SendResponse(550, "Not a plain file")
					return
				}
				s.SendResponse(213, fmt.Sprintf("%d", info.Size()))
			})
		})
	})
}

// File management commands

func (s *session) HandleMKD(name string) {
	s.withAuth(func() {
		s.withValidParam(name, func() {
			virtual := s.ResolvePath(name)
			if err := os.Mkdir(s.FullPath(virtual), 0o755); err != nil {
				s.SendResponse(550, fmt.Sprintf("Failed to create directory: %v", err))
				return
			}
			s.SendResponse(257, fmt.Sprintf("%q directory created", virtual))
		})
	})
}

func (s *session) HandleRMD(name string) {
	s.withAuth(func() {
		s.withValidParam(name, func() {
			s.withExistingDirectory(name, func(_, full string) {
				entries, err := os.ReadDir(full)
				if err != nil {
					s.SendResponse(550, "Failed to read directory")
					return
				}
				if len(entries) > 0 {
					s.SendResponse(550, "Directory not empty")
					return
				}
				if err := os.Remove(full); err != nil {
					s.SendResponse(550, fmt.Sprintf("Failed to remove directory: %v", err))
					return
				}
				s.SendResponse(250, "Directory removed")
			})
		})
	})
}

func (s *session) HandleDELE(name string) {
	s.withAuth(func() {
		s.withValidParam(name, func() {
			s.withExistingFile(name, func(_, full string, info os.FileInfo) {
				if info.IsDir() {
					s.SendResponse(550, "Is a directory, use RMD")
					return
				}
				if err := os.Remove(full); err != nil {
					s.SendResponse(550, fmt.Sprintf("Failed to delete file: %v", err))
					return
				}
				s.SendResponse(250, "File deleted")
			})
		})
	})
}

func (s *session) HandleRNFR(name string) {
	s.withAuth(func() {
		s.withValidParam(name, func() {
			s.withExistingFile(name, func(virtual, _ string, _ os.FileInfo) {
				s.renameFrom = virtual
				s.SendResponse(350, "Ready for RNTO")
			})
		})
	})
}

func (s *session) HandleRNTO(name string) {
	s.withAuth(func() {
		from := s.renameFrom
		s.renameFrom = ""
		if from == "" {
			s.SendResponse(503, "RNFR required first")
			return
		}
		s.withValidParam(name, func() {
			if s.srv.failRenameTo.Load() {
				s.SendResponse(553, "Requested action not taken")
				return
			}
			if err := os.Rename(s.FullPath(from), s.FullPath(s.ResolvePath(name))); err != nil {
				s.SendResponse(553, fmt.Sprintf("Rename failed: %v", err))
				return
			}
			s.SendResponse(250, "Rename successful")
		})
	})
}
