package usecase

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/devricklin/chatdigest/internal/biz/domain"
	"github.com/devricklin/chatdigest/internal/biz/repo"
	"github.com/devricklin/chatdigest/internal/markup"
)

// PollDiffConfig contains poll-diff capture settings
type PollDiffConfig struct {
	Rooms           []domain.Room
	AllowedUsers    []string // empty forwards every author
	ForwardChatID   string
	ForwardThreadID string
	Mode            domain.FormatMode
	Parallelism     int // rooms polled at once
}

// DefaultPollDiffConfig returns default poll-diff configuration
func DefaultPollDiffConfig() PollDiffConfig {
	return PollDiffConfig{
		Mode:        domain.FormatMarkdownV2,
		Parallelism: 4,
	}
}

// PollDiffUsecase detects new messages in polled rooms and forwards them
type PollDiffUsecase struct {
	roomRepo repo.RoomRepo
	chatRepo repo.ChatRepo
	config   PollDiffConfig
	allowed  map[string]struct{}
	logger   zerolog.Logger

	// one entry per configured room, created up front and never added to afterwards,
	// so concurrent cycles only ever touch their own *RoomSnapshot
	states map[string]*domain.RoomSnapshot
}

// NewPollDiffUsecase creates a new poll-diff usecase
func NewPollDiffUsecase(roomRepo repo.RoomRepo, chatRepo repo.ChatRepo, config PollDiffConfig, logger zerolog.Logger) *PollDiffUsecase {
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}
	if config.Mode == "" {
		config.Mode = domain.FormatMarkdownV2
	}

	allowed := make(map[string]struct{}, len(config.AllowedUsers))
	for _, u := range config.AllowedUsers {
		allowed[u] = struct{}{}
	}

	states := make(map[string]*domain.RoomSnapshot, len(config.Rooms))
	for _, room := range config.Rooms {
		states[room.Key()] = domain.NewRoomSnapshot(room)
	}

	return &PollDiffUsecase{
		roomRepo: roomRepo,
		chatRepo: chatRepo,
		config:   config,
		allowed:  allowed,
		logger:   logger.With().Str("component", "polldiff").Logger(),
		states:   states,
	}
}

// Rooms returns the configured rooms
func (uc *PollDiffUsecase) Rooms() []domain.Room {
	return uc.config.Rooms
}

// Initialize records every currently visible message as already known, so nothing
// that existed before startup is forwarded. Rooms that fail here are baselined on
// their first successful fetch instead.
func (uc *PollDiffUsecase) Initialize(ctx context.Context) {
	uc.forEachRoom(func(room domain.Room) {
		state := uc.states[room.Key()]

		msgs, err := uc.roomRepo.FetchSnapshot(ctx, room)
		if err != nil {
			uc.logger.Warn().Err(err).Str("room", room.Key()).Msg("initial snapshot failed, will baseline on next poll")
			return
		}

		state.Replace(domain.SnapshotIDs(msgs))
		uc.logger.Info().Str("room", room.Key()).Int("known", len(state.Seen)).Msg("room baseline loaded")
	})
}

// PollCycle polls every room once and returns the number of forwarded messages
func (uc *PollDiffUsecase) PollCycle(ctx context.Context) int {
	var forwarded atomic.Int64

	uc.forEachRoom(func(room domain.Room) {
		forwarded.Add(int64(uc.pollRoom(ctx, room)))
	})

	total := int(forwarded.Load())
	if total == 0 {
		uc.logger.Debug().Msg("no new messages")
	} else {
		uc.logger.Info().Int("forwarded", total).Msg("poll cycle finished")
	}
	return total
}

// forEachRoom runs fn for every room with bounded parallelism and waits for all of them
func (uc *PollDiffUsecase) forEachRoom(fn func(room domain.Room)) {
	var g errgroup.Group
	g.SetLimit(uc.config.Parallelism)

	for _, room := range uc.config.Rooms {
		g.Go(func() error {
			fn(room)
			return nil
		})
	}
	_ = g.Wait()
}

func (uc *PollDiffUsecase) pollRoom(ctx context.Context, room domain.Room) int {
	state := uc.states[room.Key()]
	log := uc.logger.With().Str("room", room.Key()).Logger()

	msgs, err := uc.roomRepo.FetchSnapshot(ctx, room)
	if err != nil {
		log.Warn().Err(err).Msg("snapshot fetch failed, skipping room")
		return 0
	}

	currentIDs := domain.SnapshotIDs(msgs)

	if !state.Baselined {
		state.Replace(currentIDs)
		log.Info().Int("known", len(currentIDs)).Msg("room baseline loaded")
		return 0
	}

	var survivors []domain.SnapshotMessage
	for _, m := range state.Novel(msgs) {
		if m.ID == "" || m.IsThreadReply() || !uc.isAllowed(m.Author) {
			continue
		}
		survivors = append(survivors, m)
	}
	domain.SortBySentAt(survivors)

	forwarded := 0
	for i := range survivors {
		m := &survivors[i]
		if err := uc.forward(ctx, m); err != nil {
			log.Error().Err(err).Str("msg_id", m.ID).Msg("forward failed")
			continue
		}
		forwarded++
	}

	// replaced even after forward failures: a dropped forward beats a duplicate one
	state.Replace(currentIDs)
	return forwarded
}

func (uc *PollDiffUsecase) isAllowed(author string) bool {
	if len(uc.allowed) == 0 {
		return true
	}
	_, ok := uc.allowed[author]
	return ok
}

func (uc *PollDiffUsecase) forward(ctx context.Context, m *domain.SnapshotMessage) error {
	return uc.chatRepo.Send(ctx, &domain.OutboundMessage{
		ChatID:   uc.config.ForwardChatID,
		ThreadID: uc.config.ForwardThreadID,
		Text:     FormatForward(m, uc.config.Mode),
		Mode:     uc.config.Mode,
	})
}

// FormatForward renders a polled message for the destination chat
func FormatForward(m *domain.SnapshotMessage, mode domain.FormatMode) string {
	author := m.Author
	if author == "" {
		author = "unknown"
	}
	if mode == domain.FormatMarkdownV2 {
		return "🚀 *" + markup.EscapePlain(author) + ":*\n" + markup.Escape(m.Text) + "\n"
	}
	return "🚀 " + author + ":\n" + m.Text + "\n"
}
