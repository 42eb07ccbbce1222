package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/socialgraph/internal/apperror"
	"github.com/sakif/socialgraph/internal/metrics"
	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/policy"
	"github.com/sakif/socialgraph/internal/repository"
)

const (
	MaxCommentLength     = 500
	MaxTitleLength       = 100
	MaxDescriptionLength = 2000
)

// EngagementService owns posts, likes and comments.
type EngagementService struct {
	store   repository.Store
	files   FileRemover
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewEngagementService(store repository.Store, files FileRemover, logger *slog.Logger, m *metrics.Metrics) *EngagementService {
	return &EngagementService{
		store:   store,
		files:   files,
		logger:  logger,
		metrics: m,
	}
}

// ToggleLike flips the user's like on a post and returns the fresh count.
// The count is recomputed from rows in the same transaction, never cached.
func (s *EngagementService) ToggleLike(ctx context.Context, userID, postID int64) (*model.LikeResult, error) {
	var result model.LikeResult
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		if _, err := q.GetPostByID(ctx, postID); err != nil {
			return err
		}

		like, outcome, err := q.FindOrCreateLike(ctx, userID, postID, true)
		if err != nil {
			return err
		}
		if outcome == repository.AlreadyExisted {
			like.Status = !like.Status
			if err := q.UpdateLikeStatus(ctx, like.ID, like.Status); err != nil {
				return err
			}
		}

		count, err := q.CountActiveLikes(ctx, postID)
		if err != nil {
			return err
		}
		result = model.LikeResult{Liked: like.Status, LikesCount: count}
		return nil
	})
	if err != nil {
		return nil, unexpected(s.logger, "toggle like", err,
			slog.Int64("userID", userID),
			slog.Int64("postID", postID),
		)
	}

	s.metrics.LikeToggle(result.Liked)
	return &result, nil
}

// AddComment appends a comment and returns it with the author projected.
func (s *EngagementService) AddComment(ctx context.Context, userID, postID int64, text string) (*model.CommentView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("comment", "comment text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, apperror.ValidationFailed("comment",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	var view model.CommentView
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		if _, err := q.GetPostByID(ctx, postID); err != nil {
			return err
		}

		c := &model.Comment{UserID: userID, PostID: postID, Text: text}
		if err := q.CreateComment(ctx, c); err != nil {
			return err
		}

		authors, err := q.GetUsersByIDs(ctx, []int64{userID})
		if err != nil {
			return err
		}
		view = commentView(*c, authors)
		return nil
	})
	if err != nil {
		return nil, unexpected(s.logger, "add comment", err,
			slog.Int64("userID", userID),
			slog.Int64("postID", postID),
		)
	}

	s.metrics.CommentCreated()
	return &view, nil
}

// PostDetail is the single-post view. A hidden post is Forbidden, which
// callers can tell apart from NotFound.
func (s *EngagementService) PostDetail(ctx context.Context, viewerID, postID int64) (*model.PostDetail, error) {
	fail := func(err error) (*model.PostDetail, error) {
		return nil, unexpected(s.logger, "get post", err,
			slog.Int64("viewerID", viewerID),
			slog.Int64("postID", postID),
		)
	}

	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		return fail(err)
	}
	author, err := s.store.GetUserByID(ctx, post.UserID)
	if err != nil {
		return fail(err)
	}

	status, err := viewerStatus(ctx, s.store, viewerID, author.ID)
	if err != nil {
		return fail(err)
	}
	if !policy.CanView(viewerID, author.ID, author.IsPrivate, status) {
		return nil, apperror.Forbidden("This account is private. Follow it to see its posts.")
	}

	summaries, err := s.summarize(ctx, viewerID, author, []model.Post{*post})
	if err != nil {
		return fail(err)
	}

	comments, err := s.store.ListComments(ctx, postID)
	if err != nil {
		return fail(err)
	}
	commenterIDs := make([]int64, len(comments))
	for i, c := range comments {
		commenterIDs[i] = c.UserID
	}
	commenters, err := s.store.GetUsersByIDs(ctx, commenterIDs)
	if err != nil {
		return fail(err)
	}

	views := make([]model.CommentView, len(comments))
	for i, c := range comments {
		views[i] = commentView(c, commenters)
	}

	detail := &model.PostDetail{PostSummary: summaries[0], Comments: views}
	detail.CommentsCount = len(views)
	return detail, nil
}

// CreatePost stores a post and its already-uploaded images atomically. If
// anything fails the image files are removed again.
func (s *EngagementService) CreatePost(ctx context.Context, userID int64, title, description string, images []string) (*model.PostSummary, error) {
	summary, err := s.createPost(ctx, userID, title, description, images)
	if err != nil {
		removeFiles(s.logger, s.files, images)
		return nil, err
	}

	s.metrics.PostCreated()
	s.logger.Info("post created",
		slog.Int64("postID", summary.ID),
		slog.Int64("userID", userID),
		slog.Int("images", len(images)),
	)
	return summary, nil
}

func (s *EngagementService) createPost(ctx context.Context, userID int64, title, description string, images []string) (*model.PostSummary, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if title == "" && description == "" && len(images) == 0 {
		return nil, apperror.ValidationFailed("title", "a post needs a title, a description or at least one image")
	}

	var summary model.PostSummary
	err := s.store.WithinTx(ctx, func(q repository.Queries) error {
		author, err := q.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}

		post := &model.Post{UserID: userID, Title: title, Description: description}
		if err := q.CreatePost(ctx, post); err != nil {
			return err
		}
		if err := q.AddPostImages(ctx, post.ID, images); err != nil {
			return err
		}

		stored, err := q.ListPostImages(ctx, []int64{post.ID})
		if err != nil {
			return err
		}

		summary = model.PostSummary{
			ID:          post.ID,
			Title:       post.Title,
			Description: post.Description,
			Images:      nonNilImages(stored[post.ID]),
			Author:      model.PublicUserOf(author),
		}
		return nil
	})
	if err != nil {
		return nil, unexpected(s.logger, "create post", err,
			slog.Int64("userID", userID),
			slog.Int("images", len(images)),
		)
	}
	return &summary, nil
}

// ListPosts is owner's posts newest first, or a locked listing when the
// viewer may not see them.
func (s *EngagementService) ListPosts(ctx context.Context, viewerID, ownerID int64) (*model.PostListing, error) {
	fail := func(err error) (*model.PostListing, error) {
		return nil, unexpected(s.logger, "list posts", err,
			slog.Int64("viewerID", viewerID),
			slog.Int64("ownerID", ownerID),
		)
	}

	owner, err := s.store.GetUserByID(ctx, ownerID)
	if err != nil {
		return fail(err)
	}
	status, err := viewerStatus(ctx, s.store, viewerID, ownerID)
	if err != nil {
		return fail(err)
	}
	if !policy.CanView(viewerID, ownerID, owner.IsPrivate, status) {
		return &model.PostListing{Locked: true, Posts: []model.PostSummary{}}, nil
	}

	posts, err := s.store.ListPostsByUser(ctx, ownerID)
	if err != nil {
		return fail(err)
	}
	summaries, err := s.summarize(ctx, viewerID, owner, posts)
	if err != nil {
		return fail(err)
	}
	return &model.PostListing{Posts: summaries}, nil
}

// summarize builds summaries for posts by one author with batched lookups:
// one query each for images, likes, likers and comment counts. Likes whose
// liker no longer exists are left out.
func (s *EngagementService) summarize(ctx context.Context, viewerID int64, author *model.User, posts []model.Post) ([]model.PostSummary, error) {
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	images, err := s.store.ListPostImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	likes, err := s.store.ListActiveLikes(ctx, ids)
	if err != nil {
		return nil, err
	}
	commentCounts, err := s.store.CountComments(ctx, ids)
	if err != nil {
		return nil, err
	}

	var likerIDs []int64
	for _, ls := range likes {
		for _, l := range ls {
			likerIDs = append(likerIDs, l.UserID)
		}
	}
	likers, err := s.store.GetUsersByIDs(ctx, likerIDs)
	if err != nil {
		return nil, err
	}

	authorView := model.PublicUserOf(author)
	summaries := make([]model.PostSummary, len(posts))
	for i, p := range posts {
		sum := model.PostSummary{
			ID:            p.ID,
			Title:         p.Title,
			Description:   p.Description,
			Images:        nonNilImages(images[p.ID]),
			Author:        authorView,
			CommentsCount: commentCounts[p.ID],
		}
		for _, l := range likes[p.ID] {
			if _, ok := likers[l.UserID]; !ok {
				continue
			}
			sum.LikesCount++
			if l.UserID == viewerID {
				sum.Liked = true
			}
		}
		summaries[i] = sum
	}
	return summaries, nil
}

func commentView(c model.Comment, authors map[int64]*model.User) model.CommentView {
	return model.CommentView{
		ID:        c.ID,
		Text:      c.Text,
		UserID:    c.UserID,
		PostID:    c.PostID,
		CreatedAt: c.CreatedAt,
		Author:    model.PublicUserOrStub(authors, c.UserID),
	}
}

func nonNilImages(images []model.PostImage) []model.PostImage {
	if images == nil {
		return []model.PostImage{}
	}
	return images
}
