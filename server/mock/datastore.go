// Package mock provides mock implementations of the datastore interfaces for
// use in tests.
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/crosspostd/crosspost/server/crosspost"
)

var _ crosspost.Datastore = (*Store)(nil)

type NewPostFunc func(ctx context.Context, post *crosspost.Post) (*crosspost.Post, error)

type PostFunc func(ctx context.Context, id string) (*crosspost.Post, error)

type ListPostsFunc func(ctx context.Context, opts crosspost.ListPostsOptions) ([]*crosspost.Post, error)

type UpdatePostFunc func(ctx context.Context, post *crosspost.Post) error

type DeletePostFunc func(ctx context.Context, id string) error

type ListUnqueuedScheduledPostsFunc func(ctx context.Context, limit int) ([]*crosspost.Post, error)

type NewAttachmentFunc func(ctx context.Context, att *crosspost.Attachment) (*crosspost.Attachment, error)

type ListAttachmentsFunc func(ctx context.Context, postID string) ([]*crosspost.Attachment, error)

type DeletePostAttachmentsFunc func(ctx context.Context, postID string) error

type ChannelFunc func(ctx context.Context, id string) (*crosspost.Channel, error)

type NewJobFunc func(ctx context.Context, job *crosspost.Job) (*crosspost.Job, error)

type GetQueuedJobsFunc func(ctx context.Context, maxNumJobs int, now time.Time) ([]*crosspost.Job, error)

type UpdateJobFunc func(ctx context.Context, id string, job *crosspost.Job) (*crosspost.Job, error)

type CancelJobFunc func(ctx context.Context, id string) error

type LockFunc func(ctx context.Context, name string, owner string, expiration time.Duration) (bool, error)

type UnlockFunc func(ctx context.Context, name string, owner string) error

// Store is a mock implementation of crosspost.Datastore: each method
// delegates to the corresponding XxxFunc field and records the call in
// XxxFuncInvoked.
type Store struct {
	NewPostFunc        NewPostFunc
	NewPostFuncInvoked bool

	PostFunc        PostFunc
	PostFuncInvoked bool

	ListPostsFunc        ListPostsFunc
	ListPostsFuncInvoked bool

	UpdatePostFunc        UpdatePostFunc
	UpdatePostFuncInvoked bool

	DeletePostFunc        DeletePostFunc
	DeletePostFuncInvoked bool

	ListUnqueuedScheduledPostsFunc        ListUnqueuedScheduledPostsFunc
	ListUnqueuedScheduledPostsFuncInvoked bool

	NewAttachmentFunc        NewAttachmentFunc
	NewAttachmentFuncInvoked bool

	ListAttachmentsFunc        ListAttachmentsFunc
	ListAttachmentsFuncInvoked bool

	DeletePostAttachmentsFunc        DeletePostAttachmentsFunc
	DeletePostAttachmentsFuncInvoked bool

	ChannelFunc        ChannelFunc
	ChannelFuncInvoked bool

	NewJobFunc        NewJobFunc
	NewJobFuncInvoked bool

	GetQueuedJobsFunc        GetQueuedJobsFunc
	GetQueuedJobsFuncInvoked bool

	UpdateJobFunc        UpdateJobFunc
	UpdateJobFuncInvoked bool

	CancelJobFunc        CancelJobFunc
	CancelJobFuncInvoked bool

	LockFunc        LockFunc
	LockFuncInvoked bool

	UnlockFunc        UnlockFunc
	UnlockFuncInvoked bool

	mu sync.Mutex
}

func (s *Store) NewPost(ctx context.Context, post *crosspost.Post) (*crosspost.Post, error) {
	s.mu.Lock()
	s.NewPostFuncInvoked = true
	s.mu.Unlock()
	return s.NewPostFunc(ctx, post)
}

func (s *Store) Post(ctx context.Context, id string) (*crosspost.Post, error) {
	s.mu.Lock()
	s.PostFuncInvoked = true
	s.mu.Unlock()
	return s.PostFunc(ctx, id)
}

func (s *Store) ListPosts(ctx context.Context, opts crosspost.ListPostsOptions) ([]*crosspost.Post, error) {
	s.mu.Lock()
	s.ListPostsFuncInvoked = true
	s.mu.Unlock()
	return s.ListPostsFunc(ctx, opts)
}

func (s *Store) UpdatePost(ctx context.Context, post *crosspost.Post) error {
	s.mu.Lock()
	s.UpdatePostFuncInvoked = true
	s.mu.Unlock()
	return s.UpdatePostFunc(ctx, post)
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	s.DeletePostFuncInvoked = true
	s.mu.Unlock()
	return s.DeletePostFunc(ctx, id)
}

func (s *Store) ListUnqueuedScheduledPosts(ctx context.Context, limit int) ([]*crosspost.Post, error) {
	s.mu.Lock()
	s.ListUnqueuedScheduledPostsFuncInvoked = true
	s.mu.Unlock()
	return s.ListUnqueuedScheduledPostsFunc(ctx, limit)
}

func (s *Store) NewAttachment(ctx context.Context, att *crosspost.Attachment) (*crosspost.Attachment, error) {
	s.mu.Lock()
	s.NewAttachmentFuncInvoked = true
	s.mu.Unlock()
	return s.NewAttachmentFunc(ctx, att)
}

func (s *Store) ListAttachments(ctx context.Context, postID string) ([]*crosspost.Attachment, error) {
	s.mu.Lock()
	s.ListAttachmentsFuncInvoked = true
	s.mu.Unlock()
	return s.ListAttachmentsFunc(ctx, postID)
}

func (s *Store) DeletePostAttachments(ctx context.Context, postID string) error {
	s.mu.Lock()
	s.DeletePostAttachmentsFuncInvoked = true
	s.mu.Unlock()
	return s.DeletePostAttachmentsFunc(ctx, postID)
}

func (s *Store) Channel(ctx context.Context, id string) (*crosspost.Channel, error) {
	s.mu.Lock()
	s.ChannelFuncInvoked = true
	s.mu.Unlock()
	return s.ChannelFunc(ctx, id)
}

func (s *Store) NewJob(ctx context.Context, job *crosspost.Job) (*crosspost.Job, error) {
	s.mu.Lock()
	s.NewJobFuncInvoked = true
	s.mu.Unlock()
	return s.NewJobFunc(ctx, job)
}

func (s *Store) GetQueuedJobs(ctx context.Context, maxNumJobs int, now time.Time) ([]*crosspost.Job, error) {
	s.mu.Lock()
	s.GetQueuedJobsFuncInvoked = true
	s.mu.Unlock()
	return s.GetQueuedJobsFunc(ctx, maxNumJobs, now)
}

func (s *Store) UpdateJob(ctx context.Context, id string, job *crosspost.Job) (*crosspost.Job, error) {
	s.mu.Lock()
	s.UpdateJobFuncInvoked = true
	s.mu.Unlock()
	return s.UpdateJobFunc(ctx, id, job)
}

func (s *Store) CancelJob(ctx context.Context, id string) error {
	s.mu.Lock()
	s.CancelJobFuncInvoked = true
	s.mu.Unlock()
	return s.CancelJobFunc(ctx, id)
}

func (s *Store) Lock(ctx context.Context, name string, owner string, expiration time.Duration) (bool, error) {
	s.mu.Lock()
	s.LockFuncInvoked = true
	s.mu.Unlock()
	return s.LockFunc(ctx, name, owner, expiration)
}

func (s *Store) Unlock(ctx context.Context, name string, owner string) error {
	s.mu.Lock()
	s.UnlockFuncInvoked = true
	s.mu.Unlock()
	return s.UnlockFunc(ctx, name, owner)
}

var _ crosspost.MediaStore = (*MediaStore)(nil)

type PutMediaFunc func(ctx context.Context, key string, contentType string, media io.ReadSeeker) error

type SignedMediaURLFunc func(ctx context.Context, key string) (string, error)

type DeleteMediaFunc func(ctx context.Context, key string) error

// MediaStore is a mock implementation of crosspost.MediaStore.
type MediaStore struct {
	PutMediaFunc        PutMediaFunc
	PutMediaFuncInvoked bool

	SignedMediaURLFunc        SignedMediaURLFunc
	SignedMediaURLFuncInvoked bool

	DeleteMediaFunc        DeleteMediaFunc
	DeleteMediaFuncInvoked bool

	mu sync.Mutex
}

func (s *MediaStore) PutMedia(ctx context.Context, key string, contentType string, media io.ReadSeeker) error {
	s.mu.Lock()
	s.PutMediaFuncInvoked = true
	s.mu.Unlock()
	return s.PutMediaFunc(ctx, key, contentType, media)
}

func (s *MediaStore) SignedMediaURL(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	s.SignedMediaURLFuncInvoked = true
	s.mu.Unlock()
	return s.SignedMediaURLFunc(ctx, key)
}

func (s *MediaStore) DeleteMedia(ctx context.Context, key string) error {
	s.mu.Lock()
	s.DeleteMediaFuncInvoked = true
	s.mu.Unlock()
	return s.DeleteMediaFunc(ctx, key)
}
