package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/castlebridge/chesslink/internal/cache"
	"github.com/castlebridge/chesslink/internal/domain"
	"github.com/castlebridge/chesslink/internal/obslog"
	"github.com/castlebridge/chesslink/internal/rules"
	"github.com/castlebridge/chesslink/internal/store"
)

// Session is the authoritative in-memory state machine for one game. All
// mutating operations are serialized behind mu: moves, resignation, draw
// negotiation, attach/detach and disconnect-timer firing never interleave.
// A mutation commits in-memory state only after its durable write succeeds.
type Session struct {
	mu sync.Mutex

	id        string
	whiteID   string
	whiteName string
	blackID   string
	blackName string

	whiteSub  string
	blackSub  string
	whiteConn bool
	blackConn bool

	game      rules.Game
	moveCount int
	status    string
	check     bool

	drawOfferBy string
	readySent   bool

	// One single-fire grace timer per disconnected player.
	timers map[string]*time.Timer

	store store.Gateway
	snaps *cache.Store
	grace time.Duration

	broadcaster func() Broadcaster
	evict       func(gameID string)
}

func (s *Session) ID() string { return s.id }

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PlayerColor resolves a player identifier to its color.
func (s *Session) PlayerColor(playerID string) (rules.Color, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colorOf(playerID)
}

func (s *Session) colorOf(playerID string) (rules.Color, error) {
	switch playerID {
	case "":
		return "", ErrNotAPlayer
	case s.whiteID:
		return rules.White, nil
	case s.blackID:
		return rules.Black, nil
	}
	return "", ErrNotAPlayer
}

// CanJoin reports whether a join attempt could currently succeed.
func (s *Session) CanJoin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canJoinLocked()
}

func (s *Session) canJoinLocked() error {
	if s.blackID != "" {
		return ErrGameFull
	}
	if s.status != domain.StatusWaiting {
		return ErrGameAlreadyStarted
	}
	return nil
}

// AdmitBlack assigns the joining player as black and activates the game.
func (s *Session) AdmitBlack(ctx context.Context, playerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canJoinLocked(); err != nil {
		return err
	}
	if err := s.store.RecordJoin(ctx, s.id, playerID, name); err != nil {
		return fmt.Errorf("persist join: %w", err)
	}
	s.blackID = playerID
	s.blackName = name
	s.status = domain.StatusActive
	s.saveSnapshotLocked(ctx)

	obslog.L().Info("session_join",
		zap.String("game_id", s.id),
		zap.String("black_id", playerID),
	)
	return nil
}

// ApplyMove validates and commits one move for the acting player. The move
// and resulting position are persisted before any in-memory state changes;
// a pending draw offer is implicitly declined by a committed move.
func (s *Session) ApplyMove(ctx context.Context, playerID, from, to, promotion string) (*MoveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return nil, ErrGameNotActive
	}
	color, err := s.colorOf(playerID)
	if err != nil {
		return nil, err
	}
	if s.game.Turn() != color {
		return nil, ErrNotYourTurn
	}

	next, mv, err := s.game.Apply(from, to, promotion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	number := s.moveCount + 1
	rec := &domain.MoveRecord{
		GameID:     s.id,
		MoveNumber: number,
		PlayerID:   playerID,
		FromSq:     mv.From,
		ToSq:       mv.To,
		SAN:        mv.SAN,
		FEN:        mv.FEN,
		CreatedAt:  time.Now(),
	}
	if err := s.store.InsertMove(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist move: %w", err)
	}
	if err := s.store.UpdatePosition(ctx, s.id, mv.FEN); err != nil {
		return nil, fmt.Errorf("persist position: %w", err)
	}

	s.game = next
	s.moveCount = number
	s.check = mv.Check
	s.drawOfferBy = ""

	out := &MoveOutcome{
		MoveNumber: number,
		PlayerID:   playerID,
		Color:      color,
		From:       mv.From,
		To:         mv.To,
		SAN:        mv.SAN,
		FEN:        mv.FEN,
		Check:      mv.Check,
		Turn:       next.Turn(),
		LegalMoves: next.LegalMoves(),
	}

	verdict := next.Classify()
	if verdict.Terminal {
		over := overFromVerdict(verdict)
		if err := s.completeLocked(ctx, over); err != nil {
			return nil, err
		}
		out.Over = over
	} else {
		s.saveSnapshotLocked(ctx)
	}

	obslog.L().Info("session_move",
		zap.String("game_id", s.id),
		zap.String("player_id", playerID),
		zap.Int("move_number", number),
		zap.String("san", mv.SAN),
		zap.Bool("terminal", out.Over != nil),
	)
	return out, nil
}

// Resign ends the game with the resigner's opponent as winner.
func (s *Session) Resign(ctx context.Context, playerID string) (*Over, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return nil, ErrGameNotActive
	}
	color, err := s.colorOf(playerID)
	if err != nil {
		return nil, err
	}
	over := &Over{
		Type:   OverResignation,
		Winner: color.Opponent(),
		Result: resultForWinner(color.Opponent()),
	}
	if err := s.completeLocked(ctx, over); err != nil {
		return nil, err
	}
	obslog.L().Info("session_resign",
		zap.String("game_id", s.id),
		zap.String("player_id", playerID),
		zap.String("winner", string(over.Winner)),
	)
	return over, nil
}

// OfferDraw records a draw offer by the given player.
func (s *Session) OfferDraw(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return ErrGameNotActive
	}
	if _, err := s.colorOf(playerID); err != nil {
		return err
	}
	if s.drawOfferBy == playerID {
		return ErrDrawAlreadyOffered
	}
	s.drawOfferBy = playerID
	s.saveSnapshotLocked(ctx)
	return nil
}

// AcceptDraw ends the game as a draw. The offering player cannot accept
// their own offer.
func (s *Session) AcceptDraw(ctx context.Context, playerID string) (*Over, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return nil, ErrGameNotActive
	}
	if _, err := s.colorOf(playerID); err != nil {
		return nil, err
	}
	if s.drawOfferBy == "" {
		return nil, ErrNoDrawOffer
	}
	if s.drawOfferBy == playerID {
		return nil, ErrOwnDrawOffer
	}
	over := &Over{Type: OverDrawAgreed, Result: domain.ResultDraw}
	if err := s.completeLocked(ctx, over); err != nil {
		return nil, err
	}
	return over, nil
}

// DeclineDraw clears a pending offer under the same guards as AcceptDraw.
func (s *Session) DeclineDraw(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return ErrGameNotActive
	}
	if _, err := s.colorOf(playerID); err != nil {
		return err
	}
	if s.drawOfferBy == "" {
		return ErrNoDrawOffer
	}
	if s.drawOfferBy == playerID {
		return ErrOwnDrawOffer
	}
	s.drawOfferBy = ""
	s.saveSnapshotLocked(ctx)
	return nil
}

// Attach binds a transport subscription to the player's color, canceling
// any pending disconnect timer for that player.
func (s *Session) Attach(ctx context.Context, playerID, subID string) (*AttachResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	color, err := s.colorOf(playerID)
	if err != nil {
		return nil, err
	}
	if t, ok := s.timers[playerID]; ok {
		t.Stop()
		delete(s.timers, playerID)
	}
	if color == rules.White {
		s.whiteSub = subID
		s.whiteConn = true
	} else {
		s.blackSub = subID
		s.blackConn = true
	}

	first := false
	if s.status == domain.StatusActive && s.whiteConn && s.blackConn && !s.readySent {
		s.readySent = true
		first = true
	}
	return &AttachResult{Color: color, FirstReady: first}, nil
}

// Detach handles a transport drop. While the game is active it starts the
// forfeiture grace timer for the disconnected player. Returns nil when the
// subscription does not belong to either color.
func (s *Session) Detach(subID string) *DetachResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		color    rules.Color
		playerID string
	)
	switch {
	case subID != "" && subID == s.whiteSub:
		color, playerID = rules.White, s.whiteID
		s.whiteSub = ""
		s.whiteConn = false
	case subID != "" && subID == s.blackSub:
		color, playerID = rules.Black, s.blackID
		s.blackSub = ""
		s.blackConn = false
	default:
		return nil
	}

	if s.status == domain.StatusActive {
		pid := playerID
		s.timers[pid] = time.AfterFunc(s.grace, func() { s.expire(pid) })
		obslog.L().Info("session_disconnect",
			zap.String("game_id", s.id),
			zap.String("player_id", pid),
			zap.Duration("grace", s.grace),
		)
	}
	return &DetachResult{Color: color}
}

// expire fires when a disconnect grace period elapses. It re-validates
// under the lock: a reconnect, resignation, draw or checkmate may have
// raced the timer, in which case firing is a no-op.
func (s *Session) expire(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[playerID]; !ok {
		return // canceled by a reconnect
	}
	delete(s.timers, playerID)
	if s.status != domain.StatusActive {
		return
	}
	color, err := s.colorOf(playerID)
	if err != nil {
		return
	}
	if (color == rules.White && s.whiteConn) || (color == rules.Black && s.blackConn) {
		return
	}

	over := &Over{
		Type:   OverAbandonment,
		Winner: color.Opponent(),
		Result: resultForWinner(color.Opponent()),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.completeLocked(ctx, over); err != nil {
		obslog.L().Error("session_abandon_persist_error",
			zap.String("game_id", s.id),
			zap.Error(err),
		)
		return
	}
	obslog.L().Info("session_abandon",
		zap.String("game_id", s.id),
		zap.String("player_id", playerID),
		zap.String("winner", string(over.Winner)),
	)
	if b := s.broadcaster(); b != nil {
		// Outside the request path; the protocol layer fans this out.
		go b.SessionEnded(s.id, over)
	}
}

// completeLocked persists the result and both players' aggregates, then
// commits the terminal state. Stat updates are independent writes; both
// land before any broadcast because the caller holds the session lock.
func (s *Session) completeLocked(ctx context.Context, over *Over) error {
	if err := s.store.CompleteGame(ctx, s.id, over.Result, over.Type); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}

	whiteOutcome, blackOutcome := outcomesForResult(over.Result)
	if s.whiteID != "" {
		if err := s.store.ApplyOutcome(ctx, s.whiteID, whiteOutcome); err != nil {
			return fmt.Errorf("persist white outcome: %w", err)
		}
	}
	if s.blackID != "" {
		if err := s.store.ApplyOutcome(ctx, s.blackID, blackOutcome); err != nil {
			return fmt.Errorf("persist black outcome: %w", err)
		}
	}

	s.status = domain.StatusCompleted
	s.drawOfferBy = ""
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.saveSnapshotLocked(ctx)
	if s.evict != nil {
		s.evict(s.id)
	}
	obslog.L().Info("session_over",
		zap.String("game_id", s.id),
		zap.String("type", over.Type),
		zap.String("result", over.Result),
	)
	return nil
}

// State returns a full snapshot of committed session state.
func (s *Session) State() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &Snapshot{
		GameID:         s.id,
		FEN:            s.game.FEN(),
		Turn:           s.game.Turn(),
		Status:         s.status,
		Check:          s.check,
		Finished:       s.status == domain.StatusCompleted || s.status == domain.StatusAbandoned,
		MoveCount:      s.moveCount,
		DrawOfferBy:    s.drawOfferBy,
		WhiteID:        s.whiteID,
		WhiteName:      s.whiteName,
		WhiteConnected: s.whiteConn,
		BlackID:        s.blackID,
		BlackName:      s.blackName,
		BlackConnected: s.blackConn,
		LegalMoves:     s.game.LegalMoves(),
	}
}

// LegalMoves maps each origin square to its reachable destinations. This is
// the only rule information ever sent to a client.
func (s *Session) LegalMoves() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.LegalMoves()
}

// saveSnapshotLocked refreshes the resume snapshot. Best-effort: snapshot
// loss only costs a slower hydration from the durable store.
func (s *Session) saveSnapshotLocked(ctx context.Context) {
	snap := &cache.Snapshot{
		GameID:      s.id,
		WhiteID:     s.whiteID,
		WhiteName:   s.whiteName,
		BlackID:     s.blackID,
		BlackName:   s.blackName,
		FEN:         s.game.FEN(),
		MoveCount:   s.moveCount,
		Status:      s.status,
		DrawOfferBy: s.drawOfferBy,
		UpdatedAt:   time.Now(),
	}
	if err := s.snaps.Set(ctx, snap); err != nil {
		obslog.L().Warn("session_snapshot_error",
			zap.String("game_id", s.id),
			zap.Error(err),
		)
	}
}

func overFromVerdict(v rules.Verdict) *Over {
	switch v.Type {
	case rules.VerdictCheckmate:
		return &Over{Type: OverCheckmate, Winner: v.Winner, Result: resultForWinner(v.Winner)}
	case rules.VerdictStalemate:
		return &Over{Type: OverStalemate, Result: domain.ResultDraw}
	default:
		return &Over{Type: OverDraw, Result: domain.ResultDraw, Detail: v.Reason}
	}
}

func resultForWinner(c rules.Color) string {
	if c == rules.White {
		return domain.ResultWhiteWins
	}
	return domain.ResultBlackWins
}

func outcomesForResult(result string) (white, black domain.Outcome) {
	switch result {
	case domain.ResultWhiteWins:
		return domain.OutcomeWin, domain.OutcomeLoss
	case domain.ResultBlackWins:
		return domain.OutcomeLoss, domain.OutcomeWin
	default:
		return domain.OutcomeDraw, domain.OutcomeDraw
	}
}
