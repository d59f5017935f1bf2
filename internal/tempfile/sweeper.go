package tempfile

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// sweepTarget is one directory under the sweeper's control. An empty prefix
// means every entry in the directory expires; a non-empty prefix restricts
// the sweep to our own files in a shared directory.
type sweepTarget struct {
	dir    string
	prefix string
}

// Sweeper periodically removes files that outlived their expiry: scratch
// files leaked by requests killed mid-flight, and stored results in
// directories registered with AlsoSweep.
type Sweeper struct {
	maxAge  time.Duration
	targets []sweepTarget
	ticker  *time.Ticker
	done    chan bool
}

func NewSweeper(manager *Manager, maxAge time.Duration) *Sweeper {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Sweeper{
		maxAge:  maxAge,
		targets: []sweepTarget{{dir: manager.Dir(), prefix: namePrefix}},
		done:    make(chan bool),
	}
}

// AlsoSweep registers a directory whose every entry expires after maxAge.
// The local storage backend uses this so stored results honor the same
// expiry window as presigned URLs do on the object-storage backend.
func (s *Sweeper) AlsoSweep(dir string) {
	s.targets = append(s.targets, sweepTarget{dir: dir})
}

// Start begins periodic sweeps, one per hour.
func (s *Sweeper) Start() {
	s.ticker = time.NewTicker(time.Hour)
	log.Info().
		Int("dirs", len(s.targets)).
		Dur("maxAge", s.maxAge).
		Msg("Expired file sweeper started")
	go s.loop()
}

func (s *Sweeper) loop() {
	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.done:
			s.ticker.Stop()
			return
		}
	}
}

func (s *Sweeper) Stop() {
	if s.ticker != nil {
		s.done <- true
	}
}

// RunNow sweeps all registered directories immediately.
func (s *Sweeper) RunNow() {
	cutoff := time.Now().Add(-s.maxAge)
	deleted := 0
	var freed int64

	for _, target := range s.targets {
		d, f := sweepDir(target, cutoff)
		deleted += d
		freed += f
	}

	if deleted > 0 {
		log.Info().
			Int("deleted", deleted).
			Int64("freedBytes", freed).
			Msg("Expired file sweep completed")
	}
}

func sweepDir(target sweepTarget, cutoff time.Time) (deleted int, freed int64) {
	entries, err := os.ReadDir(target.dir)
	if err != nil {
		log.Error().Err(err).Str("dir", target.dir).Msg("Failed to read sweep directory")
		return 0, 0
	}

	for _, entry := range entries {
		if target.prefix != "" && !strings.HasPrefix(entry.Name(), target.prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(target.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to sweep expired file")
			continue
		}
		deleted++
		freed += info.Size()
	}

	return deleted, freed
}
