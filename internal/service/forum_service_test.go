package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

func newForumHarness(t *testing.T) (*forumService, *fixture, *recordingNotifier) {
	t.Helper()
	f := newFixture(t)
	notifier := &recordingNotifier{}
	svc := newForumService(ForumDependencies{
		Topics:     repository.NewAuditedRepository[models.ForumTopic](f.db),
		Posts:      repository.NewAuditedRepository[models.ForumPost](f.db),
		Courses:    repository.NewAuditedRepository[models.Course](f.db),
		Members:    repository.NewCourseMemberRepository(f.db),
		Users:      f.users,
		Transactor: f.transactor,
		Notifier:   notifier,
		Activity:   NewActivityService(&memoryActivityRepo{}, testLogger()),
	}, testValidator(), testLogger(), fixedClock(testEpoch))
	return svc, f, notifier
}

func TestExtractMentions(t *testing.T) {
	require.Equal(t, []string{"alice", "bob.smith"}, extractMentions("hey @alice and @bob.smith. also @Alice, mail me@example.com"))
	require.Empty(t, extractMentions("no mentions here"))
}

func TestForumPostingRespectsTopicStatus(t *testing.T) {
	svc, f, notifier := newForumHarness(t)
	ctx := context.Background()
	teacher := f.actorFor(t, "teacher@edu.test", models.RoleTeacher)
	student := f.actorFor(t, "student@edu.test", models.RoleStudent)
	mentioned := f.createUser(t, "mentioned@edu.test", models.RoleStudent)

	_, err := svc.CreateTopic(ctx, student, dto.ForumTopicCreateRequest{Title: "Read this", Type: models.TopicTypeAnnouncement})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	topic, err := svc.CreateTopic(ctx, student, dto.ForumTopicCreateRequest{Title: "Study group?"})
	require.NoError(t, err)
	require.Equal(t, models.TopicStatusActive, topic.Status)

	post, err := svc.CreatePost(ctx, student, topic.ID, dto.ForumPostCreateRequest{Content: "ping @" + mentioned.Username + " and @student"})
	require.NoError(t, err)
	require.Equal(t, []string{NotificationForumMention}, notifier.types())

	reloaded, err := svc.GetTopic(ctx, student, topic.ID, false)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.PostCount)
	require.NotNil(t, reloaded.LastPostAt)

	_, err = svc.UpdateTopic(ctx, student, topic.ID, dto.ForumTopicPatch{Status: ptrString(models.TopicStatusLocked)})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = svc.UpdateTopic(ctx, teacher, topic.ID, dto.ForumTopicPatch{Status: ptrString(models.TopicStatusLocked)})
	require.NoError(t, err)

	_, err = svc.CreatePost(ctx, student, topic.ID, dto.ForumPostCreateRequest{Content: "anyone?"})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))

	_, err = svc.UpdatePost(ctx, student, post.ID, dto.ForumPostPatch{Content: ptrString("edited")})
	require.True(t, errors.Is(err, apperror.ErrInvalidState))
}

func TestForumPostEditingAndModeration(t *testing.T) {
	svc, f, _ := newForumHarness(t)
	ctx := context.Background()
	teacher := f.actorFor(t, "teacher@edu.test", models.RoleTeacher)
	author := f.actorFor(t, "author@edu.test", models.RoleStudent)
	other := f.actorFor(t, "other@edu.test", models.RoleStudent)

	topic, err := svc.CreateTopic(ctx, author, dto.ForumTopicCreateRequest{Title: "Homework 3"})
	require.NoError(t, err)
	post, err := svc.CreatePost(ctx, author, topic.ID, dto.ForumPostCreateRequest{Content: "<p>question</p><script>x</script>"})
	require.NoError(t, err)
	require.Equal(t, "<p>question</p>", post.Content)

	_, err = svc.UpdatePost(ctx, other, post.ID, dto.ForumPostPatch{Content: ptrString("vandalised")})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	edited, err := svc.UpdatePost(ctx, author, post.ID, dto.ForumPostPatch{Content: ptrString("better question")})
	require.NoError(t, err)
	require.True(t, edited.IsEdited)

	_, err = svc.UpdatePost(ctx, author, post.ID, dto.ForumPostPatch{Status: ptrString(models.PostStatusHidden)})
	require.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = svc.UpdatePost(ctx, teacher, post.ID, dto.ForumPostPatch{Status: ptrString(models.PostStatusHidden)})
	require.NoError(t, err)

	page, err := svc.ListPosts(ctx, other, topic.ID, dto.ForumPostListRequest{})
	require.NoError(t, err)
	require.Empty(t, page.Items)

	page, err = svc.ListPosts(ctx, author, topic.ID, dto.ForumPostListRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	reply, err := svc.CreatePost(ctx, other, topic.ID, dto.ForumPostCreateRequest{Content: "answer", ParentID: ptrUint(post.ID)})
	require.NoError(t, err)

	require.True(t, errors.Is(svc.DeletePost(ctx, author, reply.ID), apperror.ErrForbidden))
	require.NoError(t, svc.DeletePost(ctx, teacher, reply.ID))
	require.True(t, errors.Is(svc.DeletePost(ctx, teacher, reply.ID), apperror.ErrNotFound))
}
