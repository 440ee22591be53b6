package game

import "errors"

// Guard violations surfaced to callers. Sessions never crash on these; the
// protocol layer relays them to the offending socket only.
var (
	ErrGameNotFound         = errors.New("game not found")
	ErrNotAPlayer           = errors.New("not a player in this game")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrGameNotActive        = errors.New("game is not active")
	ErrIllegalMove          = errors.New("illegal move")
	ErrGameFull             = errors.New("game is full")
	ErrGameAlreadyStarted   = errors.New("game already started")
	ErrGameAlreadyCompleted = errors.New("game already completed")
	ErrNoDrawOffer          = errors.New("no draw offer pending")
	ErrDrawAlreadyOffered   = errors.New("draw already offered")
	ErrOwnDrawOffer         = errors.New("cannot act on your own draw offer")
)

// Kind maps a guard error to its stable wire token.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return "game_not_found"
	case errors.Is(err, ErrNotAPlayer):
		return "not_a_player"
	case errors.Is(err, ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, ErrGameNotActive):
		return "game_not_active"
	case errors.Is(err, ErrIllegalMove):
		return "illegal_move"
	case errors.Is(err, ErrGameFull):
		return "game_full"
	case errors.Is(err, ErrGameAlreadyStarted):
		return "game_already_started"
	case errors.Is(err, ErrGameAlreadyCompleted):
		return "game_already_completed"
	case errors.Is(err, ErrNoDrawOffer):
		return "no_draw_offer"
	case errors.Is(err, ErrDrawAlreadyOffered):
		return "draw_already_offered"
	case errors.Is(err, ErrOwnDrawOffer):
		return "own_draw_offer"
	default:
		return "internal_error"
	}
}
