package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"jetsflare/internal/database"
	"jetsflare/internal/domain"
	"jetsflare/internal/events"
	"jetsflare/internal/metrics"
	"jetsflare/internal/models"

	"github.com/rs/zerolog"
)

const (
	minNicknameLen = 2
	maxNicknameLen = 64
)

// AccountService owns user lifecycle: registration with trial, profile
// summaries and per-node access links.
type AccountService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewAccountService(store domain.Store, eventBus domain.EventPublisher, logger *zerolog.Logger) *AccountService {
	return &AccountService{
		store:    store,
		eventBus: eventBus,
		logger:   logger,
	}
}

// ValidateNickname rejects empty, oversized and control-character names.
func ValidateNickname(nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if utf8.RuneCountInString(nickname) < minNicknameLen {
		return fmt.Errorf("%w: nickname is too short", ErrValidation)
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLen {
		return fmt.Errorf("%w: nickname is too long", ErrValidation)
	}
	for _, r := range nickname {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: nickname contains control characters", ErrValidation)
		}
	}
	return nil
}

// Register creates a user with a trial subscription and applies the referral
// bonus when a valid code was supplied.
func (s *AccountService) Register(ctx context.Context, p database.CreateUserParams) (*models.User, error) {
	p.Nickname = strings.TrimSpace(p.Nickname)
	if err := ValidateNickname(p.Nickname); err != nil {
		return nil, err
	}
	p.ReferralCodeUsed = strings.ToLower(strings.TrimSpace(p.ReferralCodeUsed))

	user, err := s.store.CreateUser(ctx, p)
	if err != nil {
		return nil, err
	}

	metrics.IncUserCreated()
	if s.eventBus != nil {
		payload := events.UserCreatedPayload{
			UserID:       user.ID,
			UUID:         user.UUID,
			Nickname:     user.Nickname,
			ReferralCode: user.ReferralCode,
			ReferredBy:   user.ReferredBy.Int64,
		}
		if err := s.eventBus.PublishJSON(events.EventUserCreated, payload); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to publish user_created event")
		}
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("referral_code", user.ReferralCode).
		Bool("referred", user.ReferredBy.Valid).
		Msg("user registered")

	return user, nil
}

// Rename updates the display nickname after validation.
func (s *AccountService) Rename(ctx context.Context, userID int64, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if err := ValidateNickname(nickname); err != nil {
		return err
	}
	return s.store.UpdateUserFields(ctx, userID, map[string]any{"nickname": nickname})
}

// Profile is everything the bot shows on /status.
type Profile struct {
	User          *models.User
	DaysLeft      int
	TodayBytes    int64
	DailyLimitMB  int64
	ReferralCount int64
}

// Profile aggregates subscription standing, today's traffic and referral
// count for one user.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*Profile, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	today, err := s.store.GetTodayTraffic(ctx, userID)
	if err != nil {
		return nil, err
	}

	refs, err := s.store.ReferralCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Profile{
		User:          user,
		DaysLeft:      user.DaysLeft(time.Now()),
		TodayBytes:    today,
		DailyLimitMB:  user.DailyTrafficLimitMB,
		ReferralCount: refs,
	}, nil
}

// AccessLinks renders connection links for every online node that carries a
// usable link template. Nodes without a template are skipped.
func (s *AccountService) AccessLinks(ctx context.Context, userID int64) ([]models.AccessLink, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	links := make([]models.AccessLink, 0, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		if node.Status != models.NodeOnline || strings.TrimSpace(node.LinkTemplate) == "" {
			continue
		}
		links = append(links, models.AccessLink{
			NodeName:    node.NodeName,
			CountryCode: node.CountryCode,
			CountryName: node.CountryName,
			City:        node.City,
			Link:        node.RenderLink(user.UUID),
		})
	}
	return links, nil
}
