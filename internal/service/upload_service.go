package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyhelper/studyhelper-api/internal/dto"
	"github.com/studyhelper/studyhelper-api/internal/models"
	appErrors "github.com/studyhelper/studyhelper-api/pkg/errors"
	"github.com/studyhelper/studyhelper-api/pkg/jobs"
)

type uploadRequestStore interface {
	FindByID(ctx context.Context, id int) (models.Request, error)
	AppendAttachments(ctx context.Context, id int, attachments []models.Attachment) (models.Request, error)
}

type uploadBlobStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type uploadURLSigner interface {
	Generate(requestID, contentRef string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (requestID, contentRef string, expiresAt time.Time, err error)
}

// UploadServiceConfig holds validation and progress parameters.
type UploadServiceConfig struct {
	MaxFileSize      int64
	AllowedMIMEs     []string
	ProgressInterval time.Duration
}

// uploadSession is the pipeline's working set: staged files bound to one
// target request. Only one session exists at a time.
type uploadSession struct {
	id        string
	requestID int
	staged    []models.StagedFile
	state     string
	progress  int
	committed []models.Attachment
	err       error
}

// UploadService turns user-selected file batches into validated, committed
// Attachment records against exactly one target request.
type UploadService struct {
	mu      sync.Mutex
	store   uploadRequestStore
	blobs   uploadBlobStorage
	signer  uploadURLSigner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     UploadServiceConfig
	mimeSet map[string]struct{}

	session *uploadSession
	queue   *jobs.Queue
}

// NewUploadService constructs the pipeline with defaults matching the
// document allow-list and 10 MiB cap.
func NewUploadService(store uploadRequestStore, blobs uploadBlobStorage, signer uploadURLSigner, metrics *MetricsService, logger *zap.Logger, cfg UploadServiceConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.ms-excel",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/vnd.ms-powerpoint",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		}
	}
	if cfg.ProgressInterval < 0 {
		cfg.ProgressInterval = 0
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	s := &UploadService{
		store:   store,
		blobs:   blobs,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		mimeSet: mimeSet,
	}
	s.queue = jobs.NewQueue("upload-commit", s.processCommit, jobs.QueueConfig{Workers: 1, Logger: logger})
	return s
}

// Start launches the commit worker.
func (s *UploadService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the commit worker.
func (s *UploadService) Stop() {
	s.queue.Stop()
}

// BeginSession opens a staging session bound to one target request,
// discarding any previous uncommitted session.
func (s *UploadService) BeginSession(ctx context.Context, requestID int) (*models.UploadProgress, error) {
	if _, err := s.store.FindByID(ctx, requestID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.state == models.CommitStateCommitting {
		return nil, appErrors.Clone(appErrors.ErrCommitInProgress, "cannot open a session while a commit is running")
	}
	if s.session != nil && len(s.session.staged) > 0 {
		s.logger.Info("discarding previous staging session",
			zap.Int("request_id", s.session.requestID),
			zap.Int("staged", len(s.session.staged)))
	}
	s.session = &uploadSession{
		id:        uuid.NewString(),
		requestID: requestID,
		staged:    []models.StagedFile{},
		state:     models.CommitStateStaging,
	}
	return s.snapshotLocked(), nil
}

// DiscardSession drops the staged files with no persisted effect.
func (s *UploadService) DiscardSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return appErrors.ErrNoActiveSession
	}
	if s.session.state == models.CommitStateCommitting {
		return appErrors.Clone(appErrors.ErrCommitInProgress, "cannot discard a session while a commit is running")
	}
	s.session = nil
	return nil
}

// Stage validates each file independently and appends the accepted ones to
// the session, preserving input order. Rejections are reported, not fatal.
func (s *UploadService) Stage(ctx context.Context, files []models.RawFile) (*models.StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, appErrors.ErrNoActiveSession
	}
	if s.session.state != models.CommitStateStaging {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is no longer accepting files")
	}

	result := &models.StageResult{
		Accepted: []models.StagedFile{},
		Rejected: []models.RejectedFile{},
	}
	for _, file := range files {
		if reason := s.validateFile(file); reason != "" {
			result.Rejected = append(result.Rejected, models.RejectedFile{Name: file.Name, Reason: reason})
			s.metrics.CountRejected(reason)
			continue
		}
		staged := models.StagedFile{
			Name:      file.Name,
			SizeBytes: file.SizeBytes,
			MimeType:  file.MimeType,
			Content:   file.Content,
		}
		s.session.staged = append(s.session.staged, staged)
		result.Accepted = append(result.Accepted, staged)
	}
	s.metrics.CountStaged(len(result.Accepted))
	return result, nil
}

func (s *UploadService) validateFile(file models.RawFile) string {
	if _, ok := s.mimeSet[strings.ToLower(file.MimeType)]; !ok {
		return models.RejectUnsupportedType
	}
	if file.SizeBytes > s.cfg.MaxFileSize {
		return models.RejectTooLarge
	}
	return ""
}

// Unstage removes one staged file by position. Committed attachments are
// never touched.
func (s *UploadService) Unstage(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return appErrors.ErrNoActiveSession
	}
	if s.session.state != models.CommitStateStaging {
		return appErrors.Clone(appErrors.ErrConflict, "session is no longer accepting changes")
	}
	if index < 0 || index >= len(s.session.staged) {
		return appErrors.Clone(appErrors.ErrValidation, "staged file index out of range")
	}
	s.session.staged = append(s.session.staged[:index], s.session.staged[index+1:]...)
	return nil
}

// CommitAsync schedules the active session's commit on the worker queue.
func (s *UploadService) CommitAsync(ctx context.Context) error {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return appErrors.ErrNoActiveSession
	}
	if s.session.state == models.CommitStateCommitting {
		s.mu.Unlock()
		return appErrors.ErrCommitInProgress
	}
	if len(s.session.staged) == 0 {
		s.mu.Unlock()
		return appErrors.ErrNoFilesStaged
	}
	s.session.state = models.CommitStateCommitting
	s.session.progress = 0
	sessionID := s.session.id
	s.mu.Unlock()

	return s.queue.Enqueue(jobs.Job{
		ID:      sessionID,
		Type:    "upload-commit",
		Payload: sessionID,
	})
}

func (s *UploadService) processCommit(ctx context.Context, job jobs.Job) error {
	sessionID, _ := job.Payload.(string)
	_, err := s.Commit(ctx, func(progress int) {
		s.mu.Lock()
		if s.session != nil && s.session.id == sessionID && progress > s.session.progress {
			s.session.progress = progress
		}
		s.mu.Unlock()
	})
	if err != nil {
		s.logger.Error("attachment commit failed", zap.Error(err))
	}
	// Failures are reflected in the session snapshot; the queue must not
	// re-run a commit.
	return nil
}

// Commit turns the staged files into persisted Attachment records on the
// target request. Progress emissions are non-decreasing; the append and
// persist happen exactly once, at the final 100 emission, which also
// clears the session's staged set.
func (s *UploadService) Commit(ctx context.Context, onProgress func(int)) ([]models.Attachment, error) {
	if onProgress == nil {
		onProgress = func(int) {}
	}

	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return nil, appErrors.ErrNoActiveSession
	}
	if len(s.session.staged) == 0 {
		s.mu.Unlock()
		return nil, appErrors.ErrNoFilesStaged
	}
	sess := s.session
	sess.state = models.CommitStateCommitting
	staged := make([]models.StagedFile, len(sess.staged))
	copy(staged, sess.staged)
	requestID := sess.requestID
	s.mu.Unlock()

	attachments := make([]models.Attachment, 0, len(staged))
	for i, file := range staged {
		ref := fmt.Sprintf("requests/%d/%s-%s", requestID, uuid.NewString()[:8], sanitizeFilename(file.Name))
		if _, err := s.blobs.Save(ref, file.Content); err != nil {
			s.failCommit(sess, err)
			s.metrics.CountCommit("failed")
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment content")
		}
		attachments = append(attachments, models.Attachment{
			Name:       file.Name,
			SizeLabel:  models.FormatSizeLabel(file.SizeBytes),
			MimeType:   file.MimeType,
			ContentRef: ref,
		})

		// Intermediate emissions stay below 100; the final emission comes
		// only after the append has been persisted.
		progress := (i + 1) * 100 / len(staged)
		if progress >= 100 {
			progress = 99
		}
		onProgress(progress)
		if s.cfg.ProgressInterval > 0 && i < len(staged)-1 {
			select {
			case <-ctx.Done():
				s.failCommit(sess, ctx.Err())
				return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "commit interrupted")
			case <-time.After(s.cfg.ProgressInterval):
			}
		}
	}

	if _, err := s.store.AppendAttachments(ctx, requestID, attachments); err != nil {
		for _, att := range attachments {
			_ = s.blobs.Delete(att.ContentRef)
		}
		s.failCommit(sess, err)
		s.metrics.CountCommit("failed")
		s.metrics.CountPersistFailure()
		return nil, err
	}

	s.mu.Lock()
	sess.staged = nil
	sess.state = models.CommitStateDone
	sess.progress = 100
	sess.committed = attachments
	s.mu.Unlock()
	onProgress(100)

	s.metrics.CountCommit("succeeded")
	s.logger.Info("attachments committed",
		zap.Int("request_id", requestID),
		zap.Int("count", len(attachments)))
	return attachments, nil
}

func (s *UploadService) failCommit(sess *uploadSession, err error) {
	s.mu.Lock()
	sess.state = models.CommitStateFailed
	sess.err = err
	s.mu.Unlock()
}

// Progress returns a point-in-time snapshot of the active session.
func (s *UploadService) Progress(ctx context.Context) (*models.UploadProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, appErrors.ErrNoActiveSession
	}
	return s.snapshotLocked(), nil
}

func (s *UploadService) snapshotLocked() *models.UploadProgress {
	snap := &models.UploadProgress{
		RequestID: s.session.requestID,
		State:     s.session.state,
		Progress:  s.session.progress,
		Staged:    make([]models.StagedFile, len(s.session.staged)),
	}
	copy(snap.Staged, s.session.staged)
	if s.session.committed != nil {
		snap.Attachments = make([]models.Attachment, len(s.session.committed))
		copy(snap.Attachments, s.session.committed)
	}
	if s.session.err != nil {
		snap.Error = s.session.err.Error()
	}
	return snap
}

// GetDownloadURL builds a signed, time-limited token for one committed
// attachment.
func (s *UploadService) GetDownloadURL(ctx context.Context, requestID, index int) (*dto.SignedDownload, error) {
	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(req.Attachments) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	token, expiresAt, err := s.signer.Generate(strconv.Itoa(requestID), req.Attachments[index].ContentRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return &dto.SignedDownload{URL: token, ExpiresAt: expiresAt.Unix()}, nil
}

// Download resolves a signed token and opens the referenced content.
type Download struct {
	File     *os.File
	Name     string
	MimeType string
}

// OpenDownload validates the token and returns a handle on the content.
func (s *UploadService) OpenDownload(ctx context.Context, token string) (*Download, error) {
	requestIDRaw, ref, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	requestID, err := strconv.Atoi(requestIDRaw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	req, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var meta *models.Attachment
	for i := range req.Attachments {
		if req.Attachments[i].ContentRef == ref {
			meta = &req.Attachments[i]
			break
		}
	}
	if meta == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}
	file, err := s.blobs.Open(ref)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment content")
	}
	return &Download{File: file, Name: meta.Name, MimeType: meta.MimeType}, nil
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
