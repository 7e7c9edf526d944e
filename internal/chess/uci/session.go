package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout  = 4 * time.Second
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond
	quitGracePeriod      = 500 * time.Millisecond
)

var (
	ErrClosed        = errors.New("uci session closed")
	ErrUnknownOption = errors.New("uci option not supported by engine")
	ErrNoBestMove    = errors.New("engine returned no move")
)

// Stage names the point at which an engine failed to come up.
type Stage string

const (
	StageLaunch    Stage = "launch"
	StageHandshake Stage = "handshake"
)

// StartError reports an engine that could not be launched or did not speak UCI.
type StartError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("engine %q failed at %s: %v", e.Path, e.Stage, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

type Limits struct {
	Depth          int
	MoveTimeMillis int
}

type Candidate struct {
	Move      string
	EvalCP    int
	Depth     int
	Principal []string
}

type SearchRequest struct {
	FEN    string
	Moves  []string
	Limits Limits
}

type SearchResponse struct {
	Candidates []Candidate
	BestMove   string
	Ponder     string
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type lineResult struct {
	line string
	err  error
}

type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan lineResult
	done   chan struct{}
	logger *zap.Logger
	name   string

	mu        sync.Mutex
	search    sync.Mutex
	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// Start launches the engine binary and completes the uci/isready handshake.
func Start(ctx context.Context, binaryPath string, opts ...Option) (*Session, error) {
	path := strings.TrimSpace(binaryPath)
	if path == "" {
		return nil, &StartError{Path: binaryPath, Stage: StageLaunch, Err: errors.New("engine path is empty")}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, &StartError{Path: path, Stage: StageLaunch, Err: err}
	}

	cmd := exec.CommandContext(ctx, resolved)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &StartError{Path: path, Stage: StageLaunch, Err: fmt.Errorf("create stdin pipe: %w", err)}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, &StartError{Path: path, Stage: StageLaunch, Err: fmt.Errorf("create stdout pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, &StartError{Path: path, Stage: StageLaunch, Err: err}
	}

	s := newSession(stdin, stdout, opts...)
	s.cmd = cmd
	if err := s.handshake(ctx); err != nil {
		_ = s.Close()
		return nil, &StartError{Path: path, Stage: StageHandshake, Err: err}
	}
	s.logger.Info("uci engine ready", zap.String("path", resolved), zap.String("name", s.name))
	return s, nil
}

// NewSession wraps an already connected engine stream and performs the handshake.
func NewSession(ctx context.Context, stdin io.WriteCloser, stdout io.Reader, opts ...Option) (*Session, error) {
	s := newSession(stdin, stdout, opts...)
	if err := s.handshake(ctx); err != nil {
		_ = s.Close()
		return nil, &StartError{Path: "<stream>", Stage: StageHandshake, Err: err}
	}
	return s, nil
}

func newSession(stdin io.WriteCloser, stdout io.Reader, opts ...Option) *Session {
	s := &Session{
		stdin:  stdin,
		lines:  make(chan lineResult, 64),
		done:   make(chan struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.pump(bufio.NewReader(stdout))
	return s
}

// Name is the engine's self-reported "id name".
func (s *Session) Name() string { return s.name }

func (s *Session) pump(r *bufio.Reader) {
	defer close(s.lines)
	for {
		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if !s.deliver(lineResult{line: line}) {
				return
			}
		}
		if err != nil {
			s.deliver(lineResult{err: err})
			return
		}
	}
}

func (s *Session) deliver(res lineResult) bool {
	select {
	case s.lines <- res:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) handshake(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	for {
		line, err := s.readLine(initCtx)
		if err != nil {
			return fmt.Errorf("wait uciok: %w", err)
		}
		if name, ok := strings.CutPrefix(line, "id name "); ok {
			s.name = strings.TrimSpace(name)
		}
		if line == "uciok" {
			break
		}
	}
	if err := s.awaitReady(initCtx); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// SetOption sends one setoption command and waits for the engine to confirm it is idle.
// An engine that answers "No such option" yields ErrUnknownOption.
func (s *Session) SetOption(ctx context.Context, name, value string) error {
	s.search.Lock()
	defer s.search.Unlock()

	cmd := "setoption name " + name
	if value != "" {
		cmd += " value " + value
	}
	if err := s.send(cmd); err != nil {
		return fmt.Errorf("send setoption %s: %w", name, err)
	}
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()
	if err := s.awaitReady(readyCtx); err != nil {
		return fmt.Errorf("setoption %s: %w", name, err)
	}
	return nil
}

func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	goTokens, err := req.Limits.GoTokens()
	if err != nil {
		return SearchResponse{}, err
	}
	positionCmd := buildPositionCommand(req.FEN, req.Moves)
	if err := s.send(positionCmd); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}
	goCmd := strings.Join(goTokens, " ")
	if err := s.send(goCmd); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(req.Limits))
	defer cancel()

	candidates := make(map[int]Candidate)
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			s.logger.Warn("uci search read failed",
				zap.String("position", positionCmd),
				zap.String("go", goCmd),
				zap.Error(err),
			)
			if errors.Is(err, context.DeadlineExceeded) {
				s.abandonSearch(ctx)
			}
			return SearchResponse{}, fmt.Errorf("read line: %w", err)
		}

		switch {
		case strings.HasPrefix(line, "info "):
			if mv, cand, ok := parseInfo(line); ok {
				candidates[mv] = cand
			}
		case strings.HasPrefix(line, "bestmove"):
			best, ponder := parseBestMove(line)
			if best == "" || best == "(none)" || best == "0000" {
				return SearchResponse{}, ErrNoBestMove
			}
			return SearchResponse{Candidates: collapseCandidates(candidates), BestMove: best, Ponder: ponder}, nil
		}
	}
}

// abandonSearch stops a search that overran its deadline and swallows its bestmove,
// so the next request does not read a stale reply.
func (s *Session) abandonSearch(ctx context.Context) {
	if err := s.send("stop"); err != nil {
		return
	}
	drainCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()
	for {
		line, err := s.readLine(drainCtx)
		if err != nil || strings.HasPrefix(line, "bestmove") {
			return
		}
	}
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()
	return s.awaitReady(readyCtx)
}

func (s *Session) NewGame(ctx context.Context) error {
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.send("ucinewgame"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}

	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts || errors.Is(err, ErrClosed) {
			return err
		}
		s.logger.Warn("uci ensure ready retry after ucinewgame",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", newGameRetryAttempts),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

// Close sends quit, waits briefly for the process to exit and kills it otherwise.
// Only the first call has any effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.send("quit")

		s.mu.Lock()
		s.closed = true
		if s.stdin != nil {
			s.stdin.Close()
		}
		s.mu.Unlock()
		close(s.done)

		if s.cmd == nil || s.cmd.Process == nil {
			return
		}
		done := make(chan error, 1)
		go func() { done <- s.cmd.Wait() }()
		select {
		case err := <-done:
			s.closeErr = err
		case <-time.After(quitGracePeriod):
			_ = s.cmd.Process.Kill()
			<-done
		}
	})
	return s.closeErr
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := io.WriteString(s.stdin, msg+"\n")
	return err
}

func (s *Session) awaitReady(ctx context.Context) error {
	if err := s.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	var optionErr error
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, "No such option") {
			optionErr = fmt.Errorf("%w: %s", ErrUnknownOption, strings.TrimSpace(strings.TrimPrefix(line, "No such option:")))
			continue
		}
		if line == "readyok" {
			return optionErr
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.done:
		return "", ErrClosed
	case res, ok := <-s.lines:
		if !ok {
			return "", ErrClosed
		}
		return res.line, res.err
	}
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	return sb.String()
}

// GoTokens renders the limits as a UCI go command.
func (l Limits) GoTokens() ([]string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if len(args) == 1 {
		return nil, fmt.Errorf("no search limits specified")
	}
	return args, nil
}

func computeSearchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		ms := l.MoveTimeMillis + 2000
		return time.Duration(ms) * time.Millisecond * 3
	}
	if l.Depth > 0 {
		base := time.Duration(l.Depth) * 300 * time.Millisecond
		if base < 6*time.Second {
			base = 6 * time.Second
		}
		if base > 20*time.Second {
			base = 20 * time.Second
		}
		return base
	}
	return 6 * time.Second
}

func parseBestMove(line string) (string, string) {
	parts := strings.Fields(line)
	var best, ponder string
	if len(parts) >= 2 {
		best = parts[1]
	}
	if len(parts) >= 4 && parts[2] == "ponder" {
		ponder = parts[3]
	}
	return best, ponder
}

func parseInfo(line string) (int, Candidate, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return 0, Candidate{}, false
	}
	var (
		multipv = 1
		evalCP  int
		depth   int
		pvIdx   = -1
	)

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					multipv = v
				}
				i++
			}
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					depth = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				switch parts[i+1] {
				case "cp":
					if v, err := strconv.Atoi(parts[i+2]); err == nil {
						evalCP = v
					}
				case "mate":
					if v, err := strconv.Atoi(parts[i+2]); err == nil {
						const mateValue = 30000
						if v >= 0 {
							evalCP = mateValue
						} else {
							evalCP = -mateValue
						}
					}
				}
				i += 2
			}
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if pvIdx == -1 || pvIdx >= len(parts) {
		return 0, Candidate{}, false
	}
	principal := parts[pvIdx:]
	cand := Candidate{
		Move:      principal[0],
		EvalCP:    evalCP,
		Depth:     depth,
		Principal: append([]string(nil), principal...),
	}
	return multipv, cand, true
}

func collapseCandidates(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	result := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		result = append(result, m[k])
	}
	return result
}
