package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/repository"
	"github.com/noah-isme/edu-center-api/internal/testutil"
)

func newTestNotificationService(t *testing.T) *notificationService {
	t.Helper()
	repo := repository.NewNotificationRepository(testutil.NewDB(t))
	return NewNotificationService(repo, nil, "", nil, testValidator(), testLogger()).(*notificationService)
}

func receive(t *testing.T, ch <-chan dto.NotificationResponse) dto.NotificationResponse {
	t.Helper()
	select {
	case notification := <-ch:
		return notification
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered")
		return dto.NotificationResponse{}
	}
}

func TestNotificationPublishSanitisesAndStreams(t *testing.T) {
	svc := newTestNotificationService(t)
	ctx := context.Background()

	stream, cleanup := svc.Subscribe(21)
	defer cleanup()

	published, err := svc.Publish(ctx, dto.NotificationCreateRequest{UserID: 21, Type: NotificationSubmissionGraded, Message: `<b>Graded</b><script>alert(1)</script>`})
	require.NoError(t, err)
	require.Equal(t, "Graded", published.Message)

	delivered := receive(t, stream)
	require.Equal(t, published.ID, delivered.ID)

	_, err = svc.Publish(ctx, dto.NotificationCreateRequest{UserID: 21, Type: "generic", Message: "<script></script>"})
	require.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestNotificationSendAndMarkReadOwnership(t *testing.T) {
	svc := newTestNotificationService(t)
	ctx := context.Background()

	_, err := svc.Send(ctx, studentActor(3), dto.NotificationCreateRequest{UserID: 4, Type: "generic", Message: "hi"})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	sent, err := svc.Send(ctx, adminActor(1), dto.NotificationCreateRequest{UserID: 4, Type: "generic", Message: "Term starts Monday"})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, studentActor(3), sent.ID)
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	read, err := svc.MarkRead(ctx, studentActor(4), sent.ID)
	require.NoError(t, err)
	require.True(t, read.Read)

	list, err := svc.List(ctx, studentActor(4), 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.List(ctx, Actor{}, 10, 0)
	require.True(t, errors.Is(err, apperror.ErrUnauthenticated))
}

func TestNotificationEventsFromOtherNodesAreDelivered(t *testing.T) {
	svc := newTestNotificationService(t)
	stream, cleanup := svc.Subscribe(9)
	defer cleanup()

	own, err := json.Marshal(notificationEvent{Source: svc.nodeID, Notification: dto.NotificationResponse{ID: 1, UserID: 9, Type: "generic"}})
	require.NoError(t, err)
	svc.handleEvent(own)

	remote, err := json.Marshal(notificationEvent{Source: "other-node", Notification: dto.NotificationResponse{ID: 2, UserID: 9}})
	require.NoError(t, err)
	svc.handleEvent(remote)

	delivered := receive(t, stream)
	require.Equal(t, uint(2), delivered.ID)
	require.Equal(t, "generic", delivered.Type)
}
