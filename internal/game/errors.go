// internal/game/errors.go
package game

// Rejection is a caller-visible refusal of an intent. A rejected intent changes nothing.
type Rejection struct {
	Code string
}

func (r *Rejection) Error() string {
	return "rejected: " + r.Code
}

// Is lets errors.Is match rejections by code.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Code == r.Code
}

func reject(code string) *Rejection {
	return &Rejection{Code: code}
}

var (
	ErrInvalidInput     = reject("invalid_input")
	ErrRoomNotFound     = reject("room_not_found")
	ErrPlayerNotFound   = reject("player_not_found")
	ErrNameMismatch     = reject("name_mismatch")
	ErrNameTaken        = reject("name_taken")
	ErrRoomFull         = reject("room_full")
	ErrGameInProgress   = reject("game_in_progress")
	ErrGameNotActive    = reject("game_not_active")
	ErrNotYourTurn      = reject("not_your_turn")
	ErrDisconnected     = reject("disconnected")
	ErrInvalidCard      = reject("invalid_card")
	ErrInvalidAttack    = reject("invalid_attack")
	ErrTableFull        = reject("table_full")
	ErrNoAttackToDefend = reject("no_attack_to_defend")
	ErrInvalidDefense   = reject("invalid_defense")
	ErrNothingToTake    = reject("nothing_to_take")
	ErrNotEnoughPlayers = reject("not_enough_players")
	ErrPlayersNotReady  = reject("players_not_ready")
)
