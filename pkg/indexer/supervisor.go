package indexer

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Quyzi/mc6/pkg/collection"
	"github.com/Quyzi/mc6/pkg/kv"
	"github.com/Quyzi/mc6/pkg/mc6err"
)

// heartbeatInterval is how often the supervisor logs its watched
// collections, per spec §4.3.
const heartbeatInterval = 120 * time.Second

// Supervisor owns one worker per known collection and routes
// Watch/Unwatch/Rebuild/Shutdown signals to them.
type Supervisor struct {
	db  *kv.DB
	log *zap.SugaredLogger

	mu       sync.Mutex
	watching map[string]chan Signal
	wg       sync.WaitGroup
}

// NewSupervisor enumerates existing collections and spawns one worker per
// collection, matching Indexer::initialize in the ported design.
func NewSupervisor(db *kv.DB, log *zap.SugaredLogger) (*Supervisor, error) {
	names, err := db.ListSubtrees(collection.MetaPrefix)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		db:       db,
		log:      log,
		watching: make(map[string]chan Signal),
	}

	for _, fullName := range names {
		name := strings.TrimPrefix(fullName, collection.MetaPrefix)
		log.Infow("starting indexer for collection", "collection", name)
		if err := s.spawn(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// spawn registers and starts a worker for name. Caller must hold no lock;
// spawn takes it itself.
func (s *Supervisor) spawn(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watching[name]; ok {
		return nil
	}
	coll, err := collection.Open(s.db, name)
	if err != nil {
		return err
	}
	w := newWorker(coll, s.log)
	s.watching[name] = w.sig
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.run()
	}()
	return nil
}

// Run is the supervisor's main loop: it awaits either the inbound signal
// channel or the 120-second heartbeat tick, per spec §4.3. Run returns
// once it has processed a Shutdown signal and every worker has exited.
func (s *Supervisor) Run(ctx context.Context, signals <-chan Signal) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.broadcastShutdown()
			return
		case <-ticker.C:
			s.heartbeat()
		case sig, ok := <-signals:
			if !ok {
				s.broadcastShutdown()
				return
			}
			if s.handle(sig) {
				return
			}
		}
	}
}

func (s *Supervisor) heartbeat() {
	s.mu.Lock()
	names := make([]string, 0, len(s.watching))
	for name := range s.watching {
		names = append(names, name)
	}
	s.mu.Unlock()
	s.log.Infow("indexer is alive", "watching", strings.Join(names, ", "))
}

// handle processes one signal, returning true if the supervisor should
// stop its main loop (i.e. a Shutdown was processed).
func (s *Supervisor) handle(sig Signal) bool {
	switch sig.Kind {
	case Watch:
		if err := s.spawn(sig.Collection); err != nil {
			s.log.Errorw("failed to start indexer for collection", "collection", sig.Collection, "error", err)
		}
	case Unwatch:
		s.mu.Lock()
		ch, ok := s.watching[sig.Collection]
		if ok {
			delete(s.watching, sig.Collection)
		}
		s.mu.Unlock()
		if ok {
			select {
			case ch <- sig:
			default:
				s.log.Warnw("unwatch dropped, worker channel full", "collection", sig.Collection)
			}
		}
	case Rebuild:
		s.log.Warnw("rebuild requested but not implemented", "collection", sig.Collection)
	case Shutdown:
		s.broadcastShutdown()
		return true
	}
	return false
}

func (s *Supervisor) broadcastShutdown() {
	s.mu.Lock()
	chans := make([]chan Signal, 0, len(s.watching))
	for _, ch := range s.watching {
		chans = append(chans, ch)
	}
	s.watching = make(map[string]chan Signal)
	s.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- ShutdownSignal():
		default:
			s.log.Warn("shutdown dropped, worker channel full")
		}
	}
	s.wg.Wait()
}

// errSupervisorGone is returned by package backend's Backend.send when a
// signal can't be delivered because the signal channel is full.
var errSupervisorGone = mc6err.New(mc6err.KindSignal, "indexer supervisor is not accepting signals")

// ErrSupervisorGone is exported so Backend.send can return it.
func ErrSupervisorGone() error { return errSupervisorGone }
