package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/observability"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

const (
	messageSendBufferSize = 32
	messagePingInterval   = 30 * time.Second
)

// MessageConnectionOptions carries what the HTTP upgrade learned about the caller.
type MessageConnectionOptions struct {
	Actor         Actor
	CorrelationID string
	Context       context.Context
}

// MessageService stores messages and streams them live to recipients.
type MessageService interface {
	Send(ctx context.Context, actor Actor, req dto.MessageSendRequest) (dto.MessageResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.MessageResponse, error)
	Inbox(ctx context.Context, actor Actor, req dto.MessageListRequest) (dto.ListResponse[dto.MessageResponse], error)
	Sent(ctx context.Context, actor Actor, req dto.MessageListRequest) (dto.ListResponse[dto.MessageResponse], error)
	MarkRead(ctx context.Context, actor Actor, id uint) (dto.MessageResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	Subscribe(userID uint) (<-chan dto.MessageResponse, func())
	ServeConnection(conn *websocket.Conn, opts MessageConnectionOptions)
	Start(ctx context.Context)
}

type messageService struct {
	messages     *lifecycle[models.Message, *models.Message]
	users        repository.UserRepository
	members      repository.CourseMemberRepository
	notifier     Notifier
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	broker       *broker[dto.MessageResponse]
	nodeID       string
	now          func() time.Time
}

type messageEvent struct {
	Source     string              `json:"source"`
	Recipients []uint              `json:"recipients"`
	Message    dto.MessageResponse `json:"message"`
	SentAt     time.Time           `json:"sent_at"`
}

type messageClient struct {
	conn    *websocket.Conn
	send    <-chan dto.MessageResponse
	errs    chan socketError
	cleanup func()
	options MessageConnectionOptions
	service *messageService
	closed  chan struct{}
	once    sync.Once
}

// MessageDependencies groups the collaborators of the message service.
type MessageDependencies struct {
	Messages    repository.AuditedRepository[models.Message]
	Users       repository.UserRepository
	Members     repository.CourseMemberRepository
	Notifier    Notifier
	Redis       *redis.Client
	ChannelBase string
	NATS        *nats.Conn
}

// NewMessageService constructs the messaging service. Redis and NATS are optional fan-out transports.
func NewMessageService(deps MessageDependencies, validate *validator.Validate, logger zerolog.Logger) MessageService {
	return newMessageService(deps, validate, logger, time.Now)
}

func newMessageService(deps MessageDependencies, validate *validator.Validate, logger zerolog.Logger, now func() time.Time) *messageService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	channel := ""
	subject := ""
	if deps.ChannelBase != "" {
		channel = deps.ChannelBase + ":messages"
		subject = strings.ReplaceAll(deps.ChannelBase, ":", ".") + ".messages"
	}

	return &messageService{
		messages:     newLifecycle[models.Message](deps.Messages, "message", now),
		users:        deps.Users,
		members:      deps.Members,
		notifier:     deps.Notifier,
		redis:        deps.Redis,
		redisChannel: channel,
		nats:         deps.NATS,
		natsSubject:  subject,
		validator:    validate,
		logger:       logger.With().Str("component", "message_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/edu-center-api/internal/service/message"),
		sanitizer:    sanitizer,
		broker:       newBroker[dto.MessageResponse](),
		nodeID:       uuid.NewString(),
		now:          now,
	}
}

func (s *messageService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *messageService) Send(ctx context.Context, actor Actor, req dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.MessageResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.MessageResponse{}, err
	}

	content := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if content == "" {
		return dto.MessageResponse{}, apperror.Validation("message content empty after sanitization")
	}

	recipients, err := s.resolveRecipients(ctx, actor, req)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "messages.send", trace.WithAttributes(
		attribute.Int64("message.sender_id", int64(actor.ID)),
		attribute.String("message.type", req.Type),
		attribute.Int("message.recipients", len(recipients)),
	))
	defer span.End()

	message := models.Message{
		SenderID: actor.ID,
		CourseID: req.CourseID,
		ParentID: req.ParentID,
		Subject:  strings.TrimSpace(s.sanitizer.Sanitize(req.Subject)),
		Content:  content,
		Type:     req.Type,
		Status:   models.MessageStatusUnread,
	}
	if req.Type == models.MessageTypeDirect {
		message.RecipientID = req.RecipientID
	}

	if req.ParentID != nil {
		if err := s.markReplied(ctx, actor, *req.ParentID); err != nil {
			span.RecordError(err)
			return dto.MessageResponse{}, err
		}
	}

	if err := s.messages.create(ctx, actor, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(message)
	s.deliver(recipients, response)
	if err := s.publish(ctx, recipients, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish message event")
	}
	if message.Type == models.MessageTypeDirect {
		notify(ctx, s.notifier, s.logger, *message.RecipientID, NotificationMessageReceived,
			fmt.Sprintf("New message from user %d.", actor.ID))
	}
	return response, nil
}

// resolveRecipients checks addressing rules and returns the users to stream the message to.
func (s *messageService) resolveRecipients(ctx context.Context, actor Actor, req dto.MessageSendRequest) ([]uint, error) {
	switch req.Type {
	case models.MessageTypeDirect:
		if req.RecipientID == nil {
			return nil, apperror.Validation("recipient is required for direct messages")
		}
		recipient, err := s.users.GetByID(ctx, *req.RecipientID, false)
		if err != nil {
			return nil, apperror.FromStorage(err, "recipient")
		}
		if !recipient.IsActive {
			return nil, apperror.InvalidState("recipient account is inactive")
		}
		return []uint{recipient.ID}, nil

	case models.MessageTypeGroup:
		if req.CourseID == nil {
			return nil, apperror.Validation("course is required for group messages")
		}
		if !actor.Can(models.PermissionMessageBroadcast) {
			member, err := s.members.IsMember(ctx, *req.CourseID, actor.ID)
			if err != nil {
				return nil, apperror.Internal(err)
			}
			if !member {
				return nil, apperror.Forbidden("only course members can message the group")
			}
		}
		return s.courseAudience(ctx, *req.CourseID, actor.ID)

	default:
		if err := Authorize(actor, models.PermissionMessageBroadcast); err != nil {
			return nil, err
		}
		if req.CourseID == nil {
			return nil, nil
		}
		return s.courseAudience(ctx, *req.CourseID, actor.ID)
	}
}

func (s *messageService) courseAudience(ctx context.Context, courseID, senderID uint) ([]uint, error) {
	ids, err := s.members.ActiveUserIDs(ctx, courseID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	audience := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != senderID {
			audience = append(audience, id)
		}
	}
	return audience, nil
}

// markReplied flags a direct message as answered when its recipient replies.
func (s *messageService) markReplied(ctx context.Context, actor Actor, parentID uint) error {
	parent, err := s.messages.get(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.Type != models.MessageTypeDirect || parent.RecipientID == nil || *parent.RecipientID != actor.ID {
		return nil
	}
	if parent.ReadAt == nil {
		readAt := s.now().UTC()
		parent.ReadAt = &readAt
	}
	parent.Status = models.MessageStatusReplied
	return s.messages.update(ctx, actor, &parent)
}

func (s *messageService) Get(ctx context.Context, actor Actor, id uint) (dto.MessageResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.MessageResponse{}, err
	}
	message, err := s.messages.get(ctx, id)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	visible, err := s.canSee(ctx, actor, message)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if !visible {
		return dto.MessageResponse{}, apperror.Forbidden("message is not addressed to you")
	}
	return dto.NewMessageResponse(message), nil
}

func (s *messageService) canSee(ctx context.Context, actor Actor, message models.Message) (bool, error) {
	if message.SenderID == actor.ID {
		return true, nil
	}
	switch message.Type {
	case models.MessageTypeDirect:
		return message.RecipientID != nil && *message.RecipientID == actor.ID, nil
	default:
		if message.CourseID == nil {
			return true, nil
		}
		member, err := s.members.IsMember(ctx, *message.CourseID, actor.ID)
		if err != nil {
			return false, apperror.Internal(err)
		}
		return member, nil
	}
}

// Inbox lists direct messages to the actor plus group and announcement traffic they can see.
func (s *messageService) Inbox(ctx context.Context, actor Actor, req dto.MessageListRequest) (dto.ListResponse[dto.MessageResponse], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[dto.MessageResponse]{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.ListResponse[dto.MessageResponse]{}, err
	}

	courseIDs, err := s.members.CourseIDsForUser(ctx, actor.ID)
	if err != nil {
		return dto.ListResponse[dto.MessageResponse]{}, apperror.Internal(err)
	}

	addressed := func(db *gorm.DB) *gorm.DB {
		condition := "recipient_id = ? OR (type = ? AND course_id IS NULL)"
		args := []interface{}{actor.ID, models.MessageTypeAnnouncement}
		if len(courseIDs) > 0 {
			condition += " OR (type IN ? AND course_id IN ?)"
			args = append(args, []string{models.MessageTypeGroup, models.MessageTypeAnnouncement}, courseIDs)
		}
		return db.Where("("+condition+")", args...).Where("sender_id <> ?", actor.ID)
	}

	return s.listMessages(ctx, actor, req, addressed)
}

func (s *messageService) Sent(ctx context.Context, actor Actor, req dto.MessageListRequest) (dto.ListResponse[dto.MessageResponse], error) {
	if err := Authorize(actor); err != nil {
		return dto.ListResponse[dto.MessageResponse]{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.ListResponse[dto.MessageResponse]{}, err
	}
	return s.listMessages(ctx, actor, req, repository.FieldEquals("sender_id", actor.ID))
}

func (s *messageService) listMessages(ctx context.Context, actor Actor, req dto.MessageListRequest, scopes ...repository.Scope) (dto.ListResponse[dto.MessageResponse], error) {
	if req.CourseID > 0 {
		scopes = append(scopes, repository.FieldEquals("course_id", req.CourseID))
	}
	if req.Type != "" {
		scopes = append(scopes, repository.FieldEquals("type", req.Type))
	}
	if req.Status != "" {
		scopes = append(scopes, repository.FieldEquals("status", req.Status))
	}

	page, err := s.messages.list(ctx, actor, req.ListQuery, scopes...)
	if err != nil {
		return dto.ListResponse[dto.MessageResponse]{}, err
	}
	return dto.MapList(page, dto.NewMessageResponse), nil
}

func (s *messageService) MarkRead(ctx context.Context, actor Actor, id uint) (dto.MessageResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.MessageResponse{}, err
	}

	message, err := s.messages.get(ctx, id)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	previous := message.Status
	if err := message.MarkRead(actor.ID, s.now().UTC()); err != nil {
		return dto.MessageResponse{}, err
	}
	if message.Status == previous {
		return dto.NewMessageResponse(message), nil
	}
	if err := s.messages.updateIfStatus(ctx, actor, &message, previous); err != nil {
		return dto.MessageResponse{}, err
	}
	return dto.NewMessageResponse(message), nil
}

// Delete is limited to the sender and broadcasters.
func (s *messageService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor); err != nil {
		return err
	}
	message, err := s.messages.get(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeOwnerOr(actor, message.SenderID, models.PermissionMessageBroadcast); err != nil {
		return err
	}
	_, err = s.messages.softDelete(ctx, actor, id)
	return err
}

func (s *messageService) Subscribe(userID uint) (<-chan dto.MessageResponse, func()) {
	channel := make(chan dto.MessageResponse, messageSendBufferSize)

	s.broker.subscribe(userID, channel)
	observability.StreamClientsActive().WithLabelValues("websocket").Inc()

	cleanup := func() {
		s.broker.unsubscribe(userID, channel)
		observability.StreamClientsActive().WithLabelValues("websocket").Dec()
	}
	return channel, cleanup
}

// ServeConnection pumps live messages to the socket and accepts sends from it until either side closes.
func (s *messageService) ServeConnection(conn *websocket.Conn, opts MessageConnectionOptions) {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	send, cleanup := s.Subscribe(opts.Actor.ID)
	client := &messageClient{
		conn:    conn,
		send:    send,
		errs:    make(chan socketError, 4),
		cleanup: cleanup,
		options: opts,
		service: s,
		closed:  make(chan struct{}),
	}

	go client.writer()
	client.reader()
}

func (s *messageService) deliver(recipients []uint, message dto.MessageResponse) {
	for _, userID := range recipients {
		s.broker.broadcast(userID, message)
	}
}

func (s *messageService) publish(ctx context.Context, recipients []uint, message dto.MessageResponse) error {
	if len(recipients) == 0 {
		return nil
	}

	payload, err := json.Marshal(messageEvent{
		Source:     s.nodeID,
		Recipients: recipients,
		Message:    message,
		SentAt:     s.now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *messageService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("message redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *messageService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats message subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain message nats subscription")
		}
	}()
}

func (s *messageService) handleEvent(data []byte) {
	var event messageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid message event")
		return
	}
	if event.Source == s.nodeID {
		return
	}
	s.deliver(event.Recipients, event.Message)
}

func (c *messageClient) reader() {
	defer c.close()

	logger := c.service.logger.With().Uint("user_id", c.options.Actor.ID).Str("correlation_id", c.options.CorrelationID).Logger()
	for {
		var payload dto.MessageSendRequest
		if err := c.conn.ReadJSON(&payload); err != nil {
			logger.Debug().Err(err).Msg("message read loop ended")
			return
		}

		if _, err := c.service.Send(c.options.Context, c.options.Actor, payload); err != nil {
			logger.Warn().Err(err).Msg("failed to send message from socket")
			select {
			case c.errs <- newSocketError(err):
			case <-c.closed:
				return
			default:
			}
		}
	}
}

func (c *messageClient) writer() {
	defer c.close()

	ticker := time.NewTicker(messagePingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.service.logger.Debug().Err(err).Msg("message write loop terminated")
				return
			}
		case failure := <-c.errs:
			if err := c.conn.WriteJSON(failure); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("message ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *messageClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.cleanup()
		_ = c.conn.Close()
	})
}

type socketError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newSocketError(err error) socketError {
	return socketError{Error: err.Error(), Code: string(apperror.KindOf(err))}
}
