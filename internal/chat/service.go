package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gatherspace/realtime-service/internal/apperr"
	"github.com/gatherspace/realtime-service/internal/dispatch"
	"github.com/gatherspace/realtime-service/internal/event"
	"github.com/gatherspace/realtime-service/internal/models"
	"github.com/gatherspace/realtime-service/internal/repository"
)

// Service implements the four logical operations both transports funnel
// through: authorize/join, leave, send, mark-read. Transport adapters own
// the registries; Service owns authorization, persistence and fan-out.
type Service struct {
	members    repository.MembershipStore
	messages   repository.MessageStore
	directory  repository.UserDirectory
	dispatcher *dispatch.Dispatcher
	log        *zap.SugaredLogger
}

func NewService(members repository.MembershipStore, messages repository.MessageStore, directory repository.UserDirectory, d *dispatch.Dispatcher, log *zap.SugaredLogger) *Service {
	return &Service{
		members:    members,
		messages:   messages,
		directory:  directory,
		dispatcher: d,
		log:        log,
	}
}

// Authorize verifies durable membership; the room registries never do.
func (s *Service) Authorize(ctx context.Context, conversationID, userID string) error {
	ok, err := s.members.IsMember(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("%w: membership lookup: %v", apperr.ErrPersistence, err)
	}
	if !ok {
		return apperr.ErrNotAMember
	}
	return nil
}

// Send persists the message with one receipt per member and publishes a
// message:new event to the conversation. No internal retry on persistence
// failure; the caller decides.
func (s *Service) Send(ctx context.Context, conversationID, senderID, content string, attachments []string) (*models.Message, error) {
	if err := s.Authorize(ctx, conversationID, senderID); err != nil {
		return nil, err
	}
	memberIDs, err := s.members.MemberIDs(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: member lookup: %v", apperr.ErrPersistence, err)
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    attachments,
		Sender:         s.senderProfile(ctx, senderID),
	}
	msg, err = s.messages.CreateWithReceipts(ctx, msg, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: create message: %v", apperr.ErrPersistence, err)
	}

	if err := s.dispatcher.Publish(ctx, conversationID, event.NewMessage(msg)); err != nil {
		// message is durable; delivery catches up when clients reconnect or poll
		s.log.Warnw("publish after send failed", "message_id", msg.ID, "err", err)
	}
	return msg, nil
}

// senderProfile joins the display fields clients render; a user without a
// directory entry still gets a sender object carrying the id.
func (s *Service) senderProfile(ctx context.Context, userID string) *models.Sender {
	p, err := s.directory.Profile(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warnw("sender profile lookup failed", "user_id", userID, "err", err)
		}
		return &models.Sender{ID: userID}
	}
	return p
}

// MarkRead flips the reader's receipt to read and notifies the sender only.
// Repeat calls are no-ops and notify nobody.
func (s *Service) MarkRead(ctx context.Context, messageID, userID string) error {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: message %s", apperr.ErrNotFound, messageID)
		}
		return fmt.Errorf("%w: load message: %v", apperr.ErrPersistence, err)
	}
	if err := s.Authorize(ctx, msg.ConversationID, userID); err != nil {
		return err
	}
	changed, err := s.messages.MarkRead(ctx, messageID, userID)
	if err != nil {
		return fmt.Errorf("%w: mark read: %v", apperr.ErrPersistence, err)
	}
	if changed && userID != msg.SenderID {
		ev := event.MessageRead(msg.ConversationID, messageID, userID, time.Now().UTC())
		s.dispatcher.PublishToUser(ctx, msg.ConversationID, msg.SenderID, ev)
	}
	return nil
}

// History returns up to limit messages of the conversation in chronological
// order, membership gated.
func (s *Service) History(ctx context.Context, conversationID, userID string, limit int64, before time.Time) ([]*models.Message, error) {
	if err := s.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := s.messages.ListMessages(ctx, conversationID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", apperr.ErrPersistence, err)
	}
	return msgs, nil
}
