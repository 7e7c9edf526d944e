package chess

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-solo-chess/internal/chess/uci"
	"go.uber.org/zap"
)

var (
	ErrEngineStart  = errors.New("chess engine failed to start")
	ErrEngineClosed = errors.New("chess engine shut down")
)

const skillOption = "Skill Level"

// MoveRequest asks the opponent for a reply in the position reached by Moves from FEN.
type MoveRequest struct {
	FEN    string
	Moves  []string
	Budget time.Duration
}

type engineSession interface {
	Name() string
	SetOption(ctx context.Context, name, value string) error
	Search(ctx context.Context, req uci.SearchRequest) (uci.SearchResponse, error)
	NewGame(ctx context.Context) error
	Close() error
}

// EngineClient owns the single opponent process of a session.
// Requests are serialised; configuration only touches the next request.
type EngineClient struct {
	session engineSession
	logger  *zap.Logger

	search sync.Mutex

	mu         sync.Mutex
	applied    StrengthProfile
	configured bool
	closed     bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// StartEngine launches the engine at binaryPath. Every failure matches ErrEngineStart.
func StartEngine(ctx context.Context, binaryPath string, logger *zap.Logger) (*EngineClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	session, err := uci.Start(ctx, binaryPath, uci.WithLogger(logger.Named("uci")))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineStart, err)
	}
	return newEngineClient(session, logger), nil
}

func newEngineClient(session engineSession, logger *zap.Logger) *EngineClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineClient{session: session, logger: logger}
}

func (c *EngineClient) Name() string { return c.session.Name() }

// Configure applies the skill level for strength. Failures are logged and absorbed;
// the last successfully applied profile (or the engine defaults) stays in effect.
func (c *EngineClient) Configure(ctx context.Context, strength int) {
	c.search.Lock()
	defer c.search.Unlock()

	profile := MapStrength(strength)
	if c.isClosed() {
		c.logger.Warn("engine configure skipped, engine shut down", zap.Int("strength", strength))
		return
	}
	if err := c.session.SetOption(ctx, skillOption, strconv.Itoa(profile.SkillLevel)); err != nil {
		prev, ok := c.Applied()
		c.logger.Warn("engine configure failed, keeping previous configuration",
			zap.Int("strength", strength),
			zap.Int("skill_level", profile.SkillLevel),
			zap.Bool("previous_applied", ok),
			zap.Int("previous_strength", prev.Strength),
			zap.Error(err),
		)
		return
	}

	c.mu.Lock()
	c.applied = profile
	c.configured = true
	c.mu.Unlock()

	c.logger.Info("engine configured",
		zap.Int("strength", strength),
		zap.Int("skill_level", profile.SkillLevel),
		zap.Int("depth_cap", profile.DepthCap),
	)
}

// Applied reports the profile currently in effect and whether any configure succeeded.
func (c *EngineClient) Applied() (StrengthProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied, c.configured
}

func (c *EngineClient) NewGame(ctx context.Context) error {
	c.search.Lock()
	defer c.search.Unlock()
	if c.isClosed() {
		return ErrEngineClosed
	}
	return c.session.NewGame(ctx)
}

// RequestMove blocks until the engine answers with a move in UCI notation.
func (c *EngineClient) RequestMove(ctx context.Context, req MoveRequest) (string, error) {
	c.search.Lock()
	defer c.search.Unlock()
	if c.isClosed() {
		return "", ErrEngineClosed
	}

	profile, _ := c.Applied()
	limits, err := SearchLimits(profile, req.Budget)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := c.session.Search(ctx, uci.SearchRequest{
		FEN:    req.FEN,
		Moves:  req.Moves,
		Limits: limits,
	})
	if err != nil {
		return "", fmt.Errorf("engine search: %w", err)
	}

	fields := []zap.Field{
		zap.String("best_move", resp.BestMove),
		zap.Int("ply", len(req.Moves)),
		zap.Int("depth_cap", limits.Depth),
		zap.Int("movetime_ms", limits.MoveTimeMillis),
		zap.Duration("elapsed", time.Since(start)),
	}
	if len(resp.Candidates) > 0 {
		top := resp.Candidates[0]
		fields = append(fields, zap.Int("eval_cp", top.EvalCP), zap.Int("depth", top.Depth))
	}
	c.logger.Debug("engine move", fields...)
	return strings.ToLower(resp.BestMove), nil
}

// Shutdown stops the engine process. It is safe to call from every exit path;
// only the first call reaches the process.
func (c *EngineClient) Shutdown() error {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.shutdownErr = c.session.Close()
		c.logger.Info("engine shut down", zap.Error(c.shutdownErr))
	})
	return c.shutdownErr
}

func (c *EngineClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
