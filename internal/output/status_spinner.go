package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"golang.org/x/term"

	"github.com/altuslabsxyz/walletkit/internal/txpipe"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerTick = 100 * time.Millisecond

// TxSpinner animates the wait between a transaction's broadcast and its
// terminal rendering. A nil spinner absorbs nothing.
type TxSpinner struct {
	out    io.Writer
	action string
	clock  clock.Clock

	mu      sync.Mutex
	frame   int
	message string
	since   time.Time
	quit    chan struct{}
	done    chan struct{}
}

// NewTxSpinner creates a spinner for action writing to out.
func NewTxSpinner(out io.Writer, action string, clk clock.Clock) *TxSpinner {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &TxSpinner{out: out, action: action, clock: clk}
}

// TxSpinner returns a spinner on the error stream, or nil when the logger
// prints JSON or the stream is not a terminal.
func (l *Logger) TxSpinner(action string) *TxSpinner {
	if l.jsonMode {
		return nil
	}
	f, ok := l.errOut.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return NewTxSpinner(l.errOut, action, nil)
}

// Observe shows r on the spinner. It reports false when r is not absorbed
// and should be printed instead; terminal renderings stop the spinner.
func (s *TxSpinner) Observe(r txpipe.Rendering) bool {
	if s == nil {
		return false
	}

	switch r.Phase {
	case txpipe.PhaseBroadcast:
		s.start("waiting for signature")
	case txpipe.PhasePending:
		s.start("waiting for confirmation")
	default:
		s.Stop()
		return false
	}
	return true
}

// Stop ends the animation and clears the line.
func (s *TxSpinner) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.quit == nil {
		s.mu.Unlock()
		return
	}
	quit, done := s.quit, s.done
	s.quit, s.done = nil, nil
	close(quit)
	s.mu.Unlock()

	<-done
	fmt.Fprintf(s.out, "\r%80s\r", "")
}

// start sets the message and runs the animation if it is not running yet.
// Elapsed time counts from the first message.
func (s *TxSpinner) start(message string) {
	s.mu.Lock()
	s.message = message
	if s.quit == nil {
		s.since = s.clock.Now()
		s.quit = make(chan struct{})
		s.done = make(chan struct{})
		go s.loop(s.quit, s.done)
	}
	s.renderLocked()
	s.mu.Unlock()
}

func (s *TxSpinner) loop(quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		case <-s.clock.TickAfter(spinnerTick):
			s.mu.Lock()
			s.renderLocked()
			s.mu.Unlock()
		}
	}
}

func (s *TxSpinner) renderLocked() {
	elapsed := s.clock.Now().Sub(s.since).Truncate(time.Second)
	fmt.Fprintf(s.out, "\r%s %s: %s (%s)          ", spinnerFrames[s.frame], s.action, s.message, elapsed)
	s.frame = (s.frame + 1) % len(spinnerFrames)
}
