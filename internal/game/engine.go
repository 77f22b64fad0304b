// internal/game/engine.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/models"
	"github.com/sirupsen/logrus"
)

// roomCodeAttempts bounds how often CreateRoom retries on a code collision.
const roomCodeAttempts = 64

// Engine is the authority over every room. All mutations of one room run under
// that room's lock and are written back to the RoomStore before anything is
// broadcast, so observers never see a partially applied transition.
type Engine struct {
	store   RoomStore
	notify  Notifier
	actions ActionRecorder
	rules   HouseRules
	logger  logrus.FieldLogger
	now     func() time.Time

	locks  *roomLocks
	timers *turnTimers

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules overrides DefaultHouseRules.
func WithRules(r HouseRules) Option {
	return func(e *Engine) { e.rules = r }
}

// WithActionRecorder enables the audit trail.
func WithActionRecorder(a ActionRecorder) Option {
	return func(e *Engine) { e.actions = a }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRand makes shuffles and room codes reproducible.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds an Engine over store, delivering events through notify.
func NewEngine(store RoomStore, notify Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		notify: notify,
		rules:  DefaultHouseRules(),
		logger: logrus.StandardLogger(),
		now:    time.Now,
		locks:  newRoomLocks(),
		timers: newTurnTimers(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close stops every pending turn timer.
func (e *Engine) Close() {
	e.timers.stopAll()
}

// Play is a card played by the attacker or the defender.
type Play interface {
	played() models.Card
}

// Attack adds a new open pair to the table.
type Attack struct {
	Card models.Card
}

// Defend covers the first open pair on the table.
type Defend struct {
	Card models.Card
}

func (a Attack) played() models.Card { return a.Card }
func (d Defend) played() models.Card { return d.Card }

// JoinRequest describes who is sitting down. Inputs are expected to be sanitised already.
type JoinRequest struct {
	Name     string
	PlayerID string
	Language string
}

// JoinResult tells the caller which seat it got.
type JoinResult struct {
	RoomID   string
	PlayerID string
	Name     string
	Language string
	// Reissued is set when the requested playerId was already seated elsewhere
	// and a fresh one was issued instead.
	Reissued bool
	// Reconnected is set when the request matched an existing seat.
	Reconnected bool
}

// CreateRoom opens a new lobby with a fresh 4-digit code and seats the creator.
func (e *Engine) CreateRoom(ctx context.Context, req JoinRequest) (JoinResult, error) {
	if req.Name == "" {
		return JoinResult{}, ErrInvalidInput
	}
	playerID, reissued, err := e.claimPlayerID(ctx, req.PlayerID)
	if err != nil {
		return JoinResult{}, err
	}
	now := e.now()
	player := &models.Player{
		ID:       playerID,
		Name:     req.Name,
		Language: req.Language,
		JoinedAt: now,
	}

	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		room := &models.Room{
			ID:             e.roomCode(),
			CreatedAt:      now,
			LastActivityAt: now,
			ActionSeq:      1,
			Players:        []*models.Player{player},
		}
		unlock := e.locks.lock(room.ID)
		err := e.store.CreateRoom(ctx, room)
		if errors.Is(err, ErrRoomExists) {
			unlock()
			continue
		}
		if err != nil {
			unlock()
			return JoinResult{}, fmt.Errorf("create room: %w", err)
		}
		e.record(ctx, room, playerID, "create_room", map[string]any{"name": req.Name})
		e.log(room.ID, playerID).Info("room created")
		e.publish(room)
		unlock()
		return JoinResult{
			RoomID:   room.ID,
			PlayerID: playerID,
			Name:     req.Name,
			Language: req.Language,
			Reissued: reissued,
		}, nil
	}
	return JoinResult{}, errors.New("create room: no free room code")
}

// JoinRoom seats a player in a lobby, or reconnects an existing seat when the
// playerId and name both match it.
func (e *Engine) JoinRoom(ctx context.Context, roomID string, req JoinRequest) (JoinResult, error) {
	if roomID == "" || req.Name == "" {
		return JoinResult{}, ErrInvalidInput
	}
	var res JoinResult
	err := e.withRoom(ctx, roomID, func(room *models.Room) error {
		if req.PlayerID != "" {
			if p := room.Player(req.PlayerID); p != nil {
				if p.Name != req.Name {
					return ErrNameMismatch
				}
				if req.Language != "" {
					p.Language = req.Language
				}
				if err := e.reconnect(ctx, room, p, "rejoin"); err != nil {
					return err
				}
				res = JoinResult{RoomID: room.ID, PlayerID: p.ID, Name: p.Name, Language: p.Language, Reconnected: true}
				return nil
			}
		}

		if !room.InLobby() {
			return ErrGameInProgress
		}
		// Seats under the same name but another id are leftovers of an earlier
		// session. They are freed unless that session is still live.
		var stale []string
		for _, p := range room.PlayersByName(req.Name) {
			if e.notify.Online(p.ID) {
				return ErrNameTaken
			}
			stale = append(stale, p.ID)
		}
		if len(room.Players)-len(stale) >= e.rules.MaxPlayers {
			return ErrRoomFull
		}
		playerID, reissued, err := e.claimPlayerID(ctx, req.PlayerID)
		if err != nil {
			return err
		}
		for _, id := range stale {
			room.RemovePlayer(id)
		}
		p := &models.Player{
			ID:       playerID,
			Name:     req.Name,
			Language: req.Language,
			JoinedAt: e.now(),
		}
		room.Players = append(room.Players, p)
		if err := e.commit(ctx, room, playerID, "join_room", map[string]any{"name": req.Name}); err != nil {
			return err
		}
		e.log(room.ID, playerID).Info("player joined")
		e.publish(room)
		res = JoinResult{RoomID: room.ID, PlayerID: playerID, Name: p.Name, Language: p.Language, Reissued: reissued}
		return nil
	})
	return res, err
}

// Ready flags the player ready and starts the game once every connected
// player (at least two) is ready.
func (e *Engine) Ready(ctx context.Context, roomID, playerID string) error {
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		p := room.Player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if !room.InLobby() {
			return ErrGameInProgress
		}
		if p.Disconnected {
			return ErrDisconnected
		}
		p.Ready = true
		if e.canStart(room) == nil {
			return e.startGame(ctx, room, playerID)
		}
		if err := e.commit(ctx, room, playerID, "ready", nil); err != nil {
			return err
		}
		e.broadcastStatus(room, p)
		e.publish(room)
		return nil
	})
}

// StartGame deals a new game if the lobby qualifies.
func (e *Engine) StartGame(ctx context.Context, roomID string) error {
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		if !room.InLobby() {
			return ErrGameInProgress
		}
		if err := e.canStart(room); err != nil {
			return err
		}
		return e.startGame(ctx, room, "")
	})
}

func (e *Engine) canStart(room *models.Room) error {
	connected := len(room.ConnectedPlayers())
	if connected < 2 {
		return ErrNotEnoughPlayers
	}
	if room.ReadyCount() < connected {
		return ErrPlayersNotReady
	}
	return nil
}

func (e *Engine) startGame(ctx context.Context, room *models.Room, actor string) error {
	trump, deck := e.newDeck()
	connected := room.ConnectedPlayers()
	for _, p := range room.Players {
		p.Hand = nil
	}
	for _, p := range connected {
		p.Hand, deck = draw(nil, deck, e.rules.HandSize)
	}
	room.Trump = &trump
	room.Deck = deck
	room.Table = nil
	room.Discard = nil

	attacker := connected[0].ID
	if id, ok := lowestTrump(connected, trump.Suit); ok {
		attacker = id
	}
	room.CurrentAttacker = attacker
	room.CurrentDefender = nextAfter(room.Players, attacker, 1).ID

	if err := e.commit(ctx, room, actor, "start_game", map[string]any{"trump": trump.Card.String()}); err != nil {
		return err
	}
	e.log(room.ID, actor).WithFields(logrus.Fields{
		"trump":    trump.Suit.String(),
		"attacker": room.CurrentAttacker,
		"defender": room.CurrentDefender,
	}).Info("game started")

	e.broadcast(room, Event{Type: EventStartGame, Data: StartGamePayload{
		Trump:           trump,
		CurrentAttacker: room.CurrentAttacker,
		CurrentDefender: room.CurrentDefender,
	}})
	e.publish(room)
	e.startTurn(room)
	return nil
}

// Play applies an attack or a defense for playerID.
func (e *Engine) Play(ctx context.Context, roomID, playerID string, play Play) error {
	if play == nil {
		return ErrInvalidInput
	}
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		p, err := actingPlayer(room, playerID)
		if err != nil {
			return err
		}
		card := play.played()
		if !card.Valid() || !p.HasCard(card) {
			return ErrInvalidCard
		}

		var action string
		switch play.(type) {
		case Attack:
			if playerID != room.CurrentAttacker {
				return ErrNotYourTurn
			}
			if len(room.Table) >= e.rules.TableLimit {
				return ErrTableFull
			}
			if !IsLegalAttack(card, room.Table) {
				return ErrInvalidAttack
			}
			p.RemoveCard(card)
			room.Table = append(room.Table, models.TablePair{Attack: card})
			action = "attack"
		case Defend:
			if playerID != room.CurrentDefender {
				return ErrNotYourTurn
			}
			idx := firstUndefended(room.Table)
			if idx < 0 {
				return ErrNoAttackToDefend
			}
			if !IsLegalDefense(card, room.Table[idx].Attack, room.Trump.Suit) {
				return ErrInvalidDefense
			}
			p.RemoveCard(card)
			defense := card
			room.Table[idx].Defense = &defense
			action = "defend"
		default:
			return ErrInvalidInput
		}
		return e.settle(ctx, room, playerID, action, map[string]any{"card": card.String()}, true)
	})
}

// TakeCards makes the defender pick up the whole table. Play skips the
// defender: the next seat attacks and the one after defends.
func (e *Engine) TakeCards(ctx context.Context, roomID, playerID string) error {
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		p, err := actingPlayer(room, playerID)
		if err != nil {
			return err
		}
		if playerID != room.CurrentDefender {
			return ErrNotYourTurn
		}
		if !room.HasUndefended() {
			return ErrNothingToTake
		}
		taken := len(room.TableCards())
		absorbTable(room, p)
		rotate(room, room.CurrentDefender)
		e.replenish(room)
		return e.settle(ctx, room, playerID, "take_cards", map[string]any{"cards": taken}, true)
	})
}

// EndTurn closes the round. A fully defended table is discarded and play moves
// on from the attacker; open attacks make the defender take the table.
func (e *Engine) EndTurn(ctx context.Context, roomID, playerID string) error {
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		p, err := actingPlayer(room, playerID)
		if err != nil {
			return err
		}
		if playerID != room.CurrentDefender {
			return ErrNotYourTurn
		}
		action := "end_turn"
		if room.HasUndefended() {
			action = "end_turn_failed"
			absorbTable(room, p)
			if e.rules.SkipOnFailedDefense {
				rotate(room, room.CurrentDefender)
			} else {
				rotate(room, room.CurrentAttacker)
			}
		} else {
			room.Discard = append(room.Discard, room.TableCards()...)
			room.Table = nil
			rotate(room, room.CurrentAttacker)
		}
		e.replenish(room)
		return e.settle(ctx, room, playerID, action, nil, true)
	})
}

// turnTimeout fires when a turn ran out. The defender takes whatever is on the
// table and is skipped.
func (e *Engine) turnTimeout(roomID string, gen uint64) {
	ctx := context.Background()
	err := e.withRoom(ctx, roomID, func(room *models.Room) error {
		if !e.timers.current(roomID, gen) || !room.Active() {
			return nil
		}
		defender := room.CurrentDefender
		if p := room.Player(defender); p != nil {
			absorbTable(room, p)
		}
		rotate(room, defender)
		e.replenish(room)
		e.log(roomID, defender).Debug("turn timed out")
		e.broadcast(room, Event{Type: EventTurnTimeout, Data: TurnTimeoutPayload{PlayerID: defender}})
		return e.settle(ctx, room, defender, "turn_timeout", nil, true)
	})
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		e.log(roomID, "").WithError(err).Error("turn timeout failed")
	}
}

// Disconnect marks the player offline after their last connection dropped.
func (e *Engine) Disconnect(ctx context.Context, roomID, playerID string) error {
	return e.markGone(ctx, roomID, playerID, "disconnect")
}

// DisconnectPlayer is Disconnect for callers that only know the player, such as
// the stale-session sweep.
func (e *Engine) DisconnectPlayer(ctx context.Context, playerID string) error {
	roomID, err := e.store.FindPlayerRoom(ctx, playerID)
	if errors.Is(err, ErrNoSuchRoom) {
		return ErrPlayerNotFound
	}
	if err != nil {
		return fmt.Errorf("find player room: %w", err)
	}
	return e.Disconnect(ctx, roomID, playerID)
}

// LeaveGame marks the player offline for the rest of the game.
func (e *Engine) LeaveGame(ctx context.Context, roomID, playerID string) error {
	return e.markGone(ctx, roomID, playerID, "leave_game")
}

func (e *Engine) markGone(ctx context.Context, roomID, playerID, action string) error {
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		p := room.Player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if p.Disconnected {
			return nil
		}
		p.MarkDisconnected(e.now())
		e.log(room.ID, playerID).WithField("action", action).Info("player disconnected")
		return e.settleGone(ctx, room, p, action)
	})
}

// LeaveRoom frees the player's seat. An emptied lobby is deleted. During a
// game the seat is kept and the player is marked gone, as LeaveGame does.
func (e *Engine) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		p := room.Player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if room.Active() {
			if p.Disconnected {
				return nil
			}
			p.MarkDisconnected(e.now())
			return e.settleGone(ctx, room, p, "leave_room")
		}
		room.RemovePlayer(playerID)
		e.log(room.ID, playerID).Info("player left")
		if len(room.Players) == 0 {
			return e.teardown(ctx, room, playerID, "room_emptied", nil, false)
		}
		if err := e.commit(ctx, room, playerID, "leave_room", nil); err != nil {
			return err
		}
		e.publish(room)
		return nil
	})
}

// Reconnect brings a disconnected seat back. The name must match the seat.
func (e *Engine) Reconnect(ctx context.Context, roomID, playerID, name string) error {
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		p := room.Player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if name != "" && p.Name != name {
			return ErrNameMismatch
		}
		return e.reconnect(ctx, room, p, "reconnect")
	})
}

func (e *Engine) reconnect(ctx context.Context, room *models.Room, p *models.Player, action string) error {
	wasGone := p.Disconnected
	p.MarkConnected()
	if err := e.commit(ctx, room, p.ID, action, nil); err != nil {
		return err
	}
	if wasGone {
		e.log(room.ID, p.ID).Info("player reconnected")
		e.broadcast(room, Event{Type: EventPlayerReconnected, Data: PlayerReconnectedPayload{PlayerID: p.ID, Name: p.Name}})
	}
	e.broadcastStatus(room, p)
	e.publish(room)
	return nil
}

// ChangeLanguage updates the language of the player's seat, wherever it is.
func (e *Engine) ChangeLanguage(ctx context.Context, playerID, language string) error {
	roomID, err := e.store.FindPlayerRoom(ctx, playerID)
	if errors.Is(err, ErrNoSuchRoom) {
		return ErrPlayerNotFound
	}
	if err != nil {
		return fmt.Errorf("find player room: %w", err)
	}
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		p := room.Player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		p.Language = language
		if err := e.commit(ctx, room, playerID, "change_language", map[string]any{"language": language}); err != nil {
			return err
		}
		e.notify.BroadcastTo(playerID, Event{Type: EventLanguageChanged, Data: LanguageChangedPayload{Language: language}})
		return nil
	})
}

// Chat relays a message from a seated player to the whole room.
func (e *Engine) Chat(ctx context.Context, roomID, playerID, text string) error {
	if text == "" {
		return ErrInvalidInput
	}
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		p := room.Player(playerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		if err := e.commit(ctx, room, playerID, "chat", nil); err != nil {
			return err
		}
		e.broadcast(room, Event{Type: EventChat, Data: ChatPayload{
			RoomID: room.ID,
			Name:   p.Name,
			Text:   text,
			SentAt: e.now(),
		}})
		return nil
	})
}

// RequestPlayerUpdate re-broadcasts the room's projections to every seat.
func (e *Engine) RequestPlayerUpdate(ctx context.Context, roomID string) error {
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		e.publish(room)
		return nil
	})
}

// SyncPlayer sends the current projections to a single seat, typically right
// after a connection attached.
func (e *Engine) SyncPlayer(ctx context.Context, roomID, playerID string) error {
	return e.withRoom(ctx, roomID, func(room *models.Room) error {
		if room.Player(playerID) == nil {
			return ErrPlayerNotFound
		}
		e.notify.BroadcastTo(playerID, Event{Type: EventRoomStateUpdate, Data: ProjectRoom(room)})
		if room.Active() {
			e.notify.BroadcastTo(playerID, Event{Type: EventGameStateUpdate, Data: ProjectGame(room, playerID)})
		}
		return nil
	})
}

// Snapshot reads the polling projection. Only viewerID's own hand is revealed.
// It waits for any in-flight intent on the room, so it never sees half a move.
func (e *Engine) Snapshot(ctx context.Context, roomID, viewerID string) (Snapshot, error) {
	var snap Snapshot
	err := e.withRoom(ctx, roomID, func(room *models.Room) error {
		snap = ProjectSnapshot(room, viewerID)
		return nil
	})
	return snap, err
}

// SweepIdle deletes every room with no activity for longer than idle and
// returns the ids it removed.
func (e *Engine) SweepIdle(ctx context.Context, idle time.Duration) ([]string, error) {
	cutoff := e.now().Add(-idle)
	ids, err := e.store.ListStaleRooms(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale rooms: %w", err)
	}
	var removed []string
	for _, id := range ids {
		err := e.withRoom(ctx, id, func(room *models.Room) error {
			// activity may have landed between the listing and the lock
			if !room.LastActivityAt.Before(cutoff) {
				return nil
			}
			removed = append(removed, room.ID)
			return e.teardown(ctx, room, "", "idle_expired", nil, false)
		})
		if err != nil && !errors.Is(err, ErrRoomNotFound) {
			return removed, err
		}
	}
	return removed, nil
}

// --- internals ---

func (e *Engine) withRoom(ctx context.Context, roomID string, fn func(room *models.Room) error) error {
	if roomID == "" {
		return ErrInvalidInput
	}
	unlock := e.locks.lock(roomID)
	defer unlock()
	room, err := e.load(ctx, roomID)
	if err != nil {
		return err
	}
	return fn(room)
}

func (e *Engine) load(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := e.store.GetRoom(ctx, roomID)
	if errors.Is(err, ErrNoSuchRoom) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	return room, nil
}

// commit bumps activity, writes the room back and records the action.
func (e *Engine) commit(ctx context.Context, room *models.Room, actor, action string, payload map[string]any) error {
	room.LastActivityAt = e.now()
	room.ActionSeq++
	if err := e.store.SaveRoom(ctx, room); err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	e.record(ctx, room, actor, action, payload)
	return nil
}

// settle finishes a game transition: the game ends if a win condition holds,
// otherwise the room is saved and broadcast, and optionally a new turn begins.
func (e *Engine) settle(ctx context.Context, room *models.Room, actor, action string, payload map[string]any, newTurn bool) error {
	if ended, err := e.endIfOver(ctx, room, actor, action, payload); ended || err != nil {
		return err
	}
	if err := e.commit(ctx, room, actor, action, payload); err != nil {
		return err
	}
	e.publish(room)
	if newTurn {
		e.startTurn(room)
	}
	return nil
}

// settleGone is settle for a player who just went offline. The turn timer keeps running.
func (e *Engine) settleGone(ctx context.Context, room *models.Room, p *models.Player, action string) error {
	if ended, err := e.endIfOver(ctx, room, p.ID, action, nil); ended || err != nil {
		return err
	}
	if err := e.commit(ctx, room, p.ID, action, nil); err != nil {
		return err
	}
	e.broadcastStatus(room, p)
	e.publish(room)
	return nil
}

// endIfOver tears the room down when gameOver holds, recording action first.
func (e *Engine) endIfOver(ctx context.Context, room *models.Room, actor, action string, payload map[string]any) (bool, error) {
	winners, over := gameOver(room)
	if !over {
		return false, nil
	}
	room.ActionSeq++
	e.record(ctx, room, actor, action, payload)
	return true, e.teardown(ctx, room, actor, "game_over", winners, true)
}

// teardown deletes the room and its seats. With over set, GameOver is sent first.
func (e *Engine) teardown(ctx context.Context, room *models.Room, actor, action string, winners []string, over bool) error {
	if over {
		room.GameEnded = true
	}
	if err := e.store.DeleteRoom(ctx, room.ID); err != nil {
		return fmt.Errorf("delete room %s: %w", room.ID, err)
	}
	e.timers.cancel(room.ID)
	room.ActionSeq++
	e.record(ctx, room, actor, action, map[string]any{"winners": winners})

	if over {
		if winners == nil {
			winners = []string{}
		}
		e.log(room.ID, actor).WithField("winners", winners).Info("game over")
		e.broadcast(room, Event{Type: EventGameOver, Data: GameOverPayload{Winners: winners}})
	}
	e.log(room.ID, actor).WithField("action", action).Info("room deleted")
	e.broadcast(room, Event{Type: EventRoomDeleted, Data: RoomDeletedPayload{RoomID: room.ID}})
	return nil
}

// gameOver reports the winners once the game is decided: fewer than two
// connected players remain, or the deck is empty and someone ran out of cards.
func gameOver(room *models.Room) ([]string, bool) {
	if !room.Active() {
		return nil, false
	}
	connected := room.ConnectedPlayers()
	if len(connected) < 2 {
		winners := make([]string, 0, 1)
		for _, p := range connected {
			winners = append(winners, p.ID)
		}
		return winners, true
	}
	if len(room.Deck) > 0 {
		return nil, false
	}
	var winners []string
	for _, p := range connected {
		if len(p.Hand) == 0 {
			winners = append(winners, p.ID)
		}
	}
	return winners, len(winners) > 0
}

func (e *Engine) startTurn(room *models.Room) {
	if e.rules.TurnTimeout <= 0 {
		return
	}
	roomID := room.ID
	e.timers.start(roomID, e.rules.TurnTimeout, func(gen uint64) {
		e.turnTimeout(roomID, gen)
	})
	e.broadcast(room, Event{Type: EventStartTimer, Data: StartTimerPayload{DurationMs: e.rules.TurnTimeout.Milliseconds()}})
}

// replenish tops up the new attacker, then the new defender. Offline seats do not draw.
func (e *Engine) replenish(room *models.Room) {
	for _, id := range []string{room.CurrentAttacker, room.CurrentDefender} {
		p := room.Player(id)
		if p == nil || p.Disconnected {
			continue
		}
		p.Hand, room.Deck = draw(p.Hand, room.Deck, e.rules.HandSize)
	}
}

func (e *Engine) publish(room *models.Room) {
	rs := Event{Type: EventRoomStateUpdate, Data: ProjectRoom(room)}
	for _, p := range room.Players {
		e.notify.BroadcastTo(p.ID, rs)
		if room.Active() {
			e.notify.BroadcastTo(p.ID, Event{Type: EventGameStateUpdate, Data: ProjectGame(room, p.ID)})
		}
	}
}

func (e *Engine) broadcast(room *models.Room, ev Event) {
	for _, p := range room.Players {
		e.notify.BroadcastTo(p.ID, ev)
	}
}

func (e *Engine) broadcastStatus(room *models.Room, p *models.Player) {
	e.broadcast(room, Event{Type: EventPlayerStatus, Data: PlayerStatusPayload{
		PlayerID:     p.ID,
		Ready:        p.Ready,
		Disconnected: p.Disconnected,
	}})
}

func (e *Engine) record(ctx context.Context, room *models.Room, actor, action string, payload map[string]any) {
	if e.actions == nil {
		return
	}
	e.actions.Record(ctx, Action{
		RoomID:   room.ID,
		Index:    room.ActionSeq,
		PlayerID: actor,
		Type:     action,
		Payload:  payload,
		At:       e.now(),
	})
}

func (e *Engine) claimPlayerID(ctx context.Context, requested string) (string, bool, error) {
	if requested == "" {
		return uuid.NewString(), false, nil
	}
	_, err := e.store.FindPlayerRoom(ctx, requested)
	if errors.Is(err, ErrNoSuchRoom) {
		return requested, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find player room: %w", err)
	}
	return uuid.NewString(), true, nil
}

func (e *Engine) roomCode() string {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return strconv.Itoa(1000 + e.rng.Intn(9000))
}

func (e *Engine) newDeck() (models.Trump, []models.Card) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return SelectTrump(NewShuffledDeck(e.rng), e.rng)
}

func (e *Engine) log(roomID, playerID string) logrus.FieldLogger {
	fields := logrus.Fields{"room": roomID}
	if playerID != "" {
		fields["player"] = playerID
	}
	return e.logger.WithFields(fields)
}

func actingPlayer(room *models.Room, playerID string) (*models.Player, error) {
	if !room.Active() {
		return nil, ErrGameNotActive
	}
	p := room.Player(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if p.Disconnected {
		return nil, ErrDisconnected
	}
	return p, nil
}

func firstUndefended(table []models.TablePair) int {
	for i, pair := range table {
		if !pair.Defended() {
			return i
		}
	}
	return -1
}

// absorbTable moves every card on the table into p's hand.
func absorbTable(room *models.Room, p *models.Player) {
	p.Hand = append(p.Hand, room.TableCards()...)
	room.Table = nil
}

// rotate hands the attack to the first connected seat after anchor and the
// defense to the connected seat after that, in seating order.
func rotate(room *models.Room, anchor string) {
	attacker := nextAfter(room.Players, anchor, 1)
	if attacker == nil {
		return
	}
	room.CurrentAttacker = attacker.ID
	room.CurrentDefender = nextAfter(room.Players, anchor, 2).ID
}
