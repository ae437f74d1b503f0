package devserver

import (
	"context"
	"strings"

	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/platform"
)

// watchDirs adds root and every subdirectory to w, since fsnotify only
// watches the directories it is explicitly told about.
func (s *Server) watchDirs(w platform.FileWatcher, dir string) {
	if s.ignore.Ignore(dir) {
		return
	}
	if err := w.Add(dir); err != nil {
		logging.Warning("devserver: watching %s: %v", dir, err)
		return
	}
	entries, err := s.fsys.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			s.watchDirs(w, dir+"/"+e.Name())
		}
	}
}

// watchLoop consumes filesystem events and applies spec §4.E's watcher
// handling rules: rebuild the affected router, then broadcast HMR
// notifications as each rule specifies.
func (s *Server) watchLoop(w platform.FileWatcher) {
	for {
		select {
		case evt, ok := <-w.Events():
			if !ok {
				return
			}
			if s.ignore.Ignore(evt.Name) {
				continue
			}
			s.handleEvent(evt)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			logging.Warning("devserver: watcher error: %v", err)
		}
	}
}

func (s *Server) handleEvent(evt platform.FileWatchEvent) {
	rel := strings.TrimPrefix(strings.TrimPrefix(evt.Name, s.cfg.Root), "/")

	switch {
	case strings.HasPrefix(rel, s.cfg.PagesDir+"/"):
		s.handlePagesEvent(rel, evt.Op)
	case strings.HasPrefix(rel, s.cfg.APIDir+"/"):
		if err := s.rebuildAPI(); err != nil {
			logging.Warning("devserver: rebuilding api router: %v", err)
		}
	case strings.HasPrefix(rel, "src/jobs/"):
		if err := s.loadJobs(context.Background()); err != nil {
			logging.Warning("devserver: reloading jobs: %v", err)
		}
	case strings.HasSuffix(rel, ".tsx"):
		s.hub.broadcast("update", "/@src/"+strings.TrimSuffix(rel, ".tsx"))
	}
}

func (s *Server) handlePagesEvent(rel string, op platform.WatchOp) {
	switch {
	case op&(platform.Create|platform.Remove) != 0:
		if err := s.rebuildPages(); err != nil {
			logging.Warning("devserver: rebuilding page router: %v", err)
			return
		}
		s.hub.broadcast("change", "/peaque.js")
	case op&platform.Write != 0 && strings.HasSuffix(rel, ".tsx"):
		s.hub.broadcast("update", "/@src/"+strings.TrimSuffix(rel, ".tsx"))
	}
}
