package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Kamalbura/lms-sub001/internal/models"
	"github.com/Kamalbura/lms-sub001/internal/repository"
	"github.com/Kamalbura/lms-sub001/internal/services"
)

const maxAttempts = 3

type sessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.OfficeHourSession, error)
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type mailer interface {
	SendOfficeHourEmail(to *models.User, kind string, session *models.OfficeHourSession, counterpart string) error
}

// Pool drains the office-hour notification queue and turns each job into one
// email per recipient.
type Pool struct {
	redis       *redis.Client
	sessions    sessionStore
	users       userStore
	email       mailer
	workerCount int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, sessions sessionStore, users userStore, email mailer, workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		sessions:    sessions,
		users:       users,
		email:       email,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}

	log.Printf("[worker] started %d notification workers", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("[worker] %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 5s timeout so Stop is noticed promptly
		result, err := p.redis.BLPop(ctx, 5*time.Second, services.NotificationQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.NotificationJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("[worker] %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("notification_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 5*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("[worker] %d: processing %s job %s for session %s", id, job.Kind, job.ID, job.SessionID)

		if err := p.Process(ctx, job); err != nil {
			p.handleFailure(job, err)
		}

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

// errPermanent marks failures a retry cannot fix.
var errPermanent = errors.New("permanent")

// Process delivers one job. Recipients that already received their email are
// not tracked, so a retried job may send a duplicate to earlier recipients.
func (p *Pool) Process(ctx context.Context, job models.NotificationJob) error {
	session, err := p.sessions.GetByID(ctx, job.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: session %s not found", errPermanent, job.SessionID)
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	instructor, err := p.users.GetByID(ctx, session.InstructorID)
	if err != nil {
		return fmt.Errorf("failed to load instructor: %w", err)
	}
	student, err := p.users.GetByID(ctx, session.StudentID)
	if err != nil {
		return fmt.Errorf("failed to load student: %w", err)
	}

	var failed []error
	for _, recipientID := range job.RecipientIDs {
		var to, counterpart *models.User
		switch recipientID {
		case instructor.ID:
			to, counterpart = instructor, student
		case student.ID:
			to, counterpart = student, instructor
		default:
			log.Printf("[worker] job %s: recipient %s is not a participant of session %s, skipping", job.ID, recipientID, session.ID)
			continue
		}

		if err := p.email.SendOfficeHourEmail(to, job.Kind, session, counterpart.FullName); err != nil {
			log.Printf("[worker] job %s: email to %s failed: %v", job.ID, to.Email, err)
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d emails failed: %w", len(failed), len(job.RecipientIDs), failed[0])
	}
	return nil
}

func (p *Pool) handleFailure(job models.NotificationJob, err error) {
	job.Attempts++

	if errors.Is(err, errPermanent) || job.Attempts >= maxAttempts {
		log.Printf("[worker] job %s failed permanently after %d attempts: %v", job.ID, job.Attempts, err)
		return
	}

	// Re-queue with backoff
	log.Printf("[worker] job %s failed (attempt %d): %v, retrying", job.ID, job.Attempts, err)
	jobBytes, _ := json.Marshal(job)
	time.AfterFunc(retryBackoff(job.Attempts), func() {
		p.redis.LPush(context.Background(), services.NotificationQueue, string(jobBytes))
	})
}

func retryBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}
