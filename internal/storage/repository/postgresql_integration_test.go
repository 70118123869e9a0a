//go:build integration

package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/content-subscriptions/internal/migrations"
	"github.com/magabrotheeeer/content-subscriptions/internal/models"
	"github.com/magabrotheeeer/content-subscriptions/internal/storage"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(dsn)
	require.NoError(t, err)

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(s.DB, filepath.Join(root, "migrations")))
	require.NoError(t, CheckDatabaseReady(ctx, s))

	t.Cleanup(func() {
		_ = s.Close()
		_ = pgContainer.Terminate(ctx)
	})
	return s
}

func createPlan(t *testing.T, s *Storage, name, ref string, level int) *models.Plan {
	var id int64
	err := s.DB.QueryRow(`INSERT INTO plans (name, external_price_ref, level) VALUES ($1, NULLIF($2, ''), $3) RETURNING id`,
		name, ref, level).Scan(&id)
	require.NoError(t, err)
	p, err := s.GetPlan(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestIntegration_RegisterUserCreatesFreeProfile(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	uid, err := s.RegisterUser(ctx, models.User{Username: "ana", Email: "ana@example.org", PasswordHash: "h", Role: models.RoleUser})
	require.NoError(t, err)

	profile, err := s.GetProfile(ctx, uid)
	require.NoError(t, err)
	require.NotNil(t, profile.CurrentPlan)
	assert.Equal(t, models.FreePlanName, profile.CurrentPlan.Name)
	assert.Equal(t, 0, profile.CurrentPlan.Level)

	_, err = s.RegisterUser(ctx, models.User{Username: "ana", Email: "other@example.org", PasswordHash: "h", Role: models.RoleUser})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_PaymentReplayIsIdempotent(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	uid, err := s.RegisterUser(ctx, models.User{Username: "bia", Email: "bia@example.org", PasswordHash: "h", Role: models.RoleUser})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inserted, err := s.RecordPayment(ctx, &models.PaymentRecord{
				UserUID: uid, Amount: 2500, Status: "paid", ExternalTransactionID: "tx_1", PlanName: "Mecenas",
			})
			assert.NoError(t, err)
			results[i] = inserted
		}(i)
	}
	wg.Wait()

	insertedCount := 0
	for _, r := range results {
		if r {
			insertedCount++
		}
	}
	assert.Equal(t, 1, insertedCount)

	payments, err := s.ListPayments(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestIntegration_PlanChangeAndSweep(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	patron := createPlan(t, s, "Mecenas", "price_abc", 3)
	free, err := s.FindPlanByLevel(ctx, 0)
	require.NoError(t, err)

	byRef, err := s.FindPlanByPriceRef(ctx, "price_abc")
	require.NoError(t, err)
	assert.Equal(t, patron.ID, byRef.ID)
	byName, err := s.FindPlanByName(ctx, "MECENAS")
	require.NoError(t, err)
	assert.Equal(t, patron.ID, byName.ID)

	now := time.Now().UTC().Truncate(time.Second)
	yesterday := now.AddDate(0, 0, -1)
	inFiveDays := now.AddDate(0, 0, 5)

	expired, err := s.RegisterUser(ctx, models.User{Username: "u1", Email: "u1@example.org", PasswordHash: "h", Role: models.RoleUser})
	require.NoError(t, err)
	active, err := s.RegisterUser(ctx, models.User{Username: "u2", Email: "u2@example.org", PasswordHash: "h", Role: models.RoleUser})
	require.NoError(t, err)

	require.NoError(t, s.ApplyPlanChange(ctx, expired, patron.ID, "sub_1", &yesterday))
	require.NoError(t, s.RequestCancellation(ctx, expired))
	require.NoError(t, s.ApplyPlanChange(ctx, active, patron.ID, "sub_2", &inFiveDays))

	list, err := s.ListExpiredPaidProfiles(ctx, now)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, expired, list[0].UserUID)
	assert.True(t, list[0].CancelAtPeriodEnd)

	ok, err := s.DowngradeExpired(ctx, expired, free.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := s.GetProfile(ctx, expired)
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentPlan.Level)
	assert.Nil(t, p.ExternalSubscriptionID)
	assert.Nil(t, p.SubscriptionEnd)
	assert.False(t, p.CancelAtPeriodEnd)

	ok, err = s.DowngradeExpired(ctx, active, free.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	p, err = s.GetProfile(ctx, active)
	require.NoError(t, err)
	assert.Equal(t, 3, p.CurrentPlan.Level)
	assert.Equal(t, "sub_2", *p.ExternalSubscriptionID)
}

func TestIntegration_ContentAndVisits(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()
	supporter := createPlan(t, s, "Apoiador", "price_sup", 1)

	_, err := s.DB.Exec(`INSERT INTO articles (slug, title, category, summary, tags, status, required_plan_id)
		VALUES ('ensaio-1', 'Ensaio', 'ensaio', 'r', 'a, b', 'published', $1),
		       ('rascunho', 'Rascunho', 'artigo', 'r', '', 'draft', NULL)`, supporter.ID)
	require.NoError(t, err)

	a, err := s.GetPublishedArticle(ctx, "ensaio-1")
	require.NoError(t, err)
	assert.Equal(t, supporter.ID, a.RequiredPlan.ID)

	_, err = s.GetPublishedArticle(ctx, "rascunho")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err := s.ListPublishedArticles(ctx, "ensaio", 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = s.ListPublishedArticles(ctx, "resenha", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	prev, err := s.SetArticleDocument(ctx, "ensaio-1", "articles/pdfs/one.pdf")
	require.NoError(t, err)
	assert.Nil(t, prev)
	prev, err = s.SetArticleDocument(ctx, "ensaio-1", "articles/pdfs/two.pdf")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "articles/pdfs/one.pdf", *prev)

	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		n, err := s.IncrementDailyVisit(ctx, day)
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}

	var courseID int64
	require.NoError(t, s.DB.QueryRow(`INSERT INTO courses (slug, title, status) VALUES ('curso', 'Curso', 'published') RETURNING id`).Scan(&courseID))
	var lessonID int64
	require.NoError(t, s.DB.QueryRow(`INSERT INTO lessons (course_id, title, position, required_plan_id) VALUES ($1, 'Aula 1', 1, $2) RETURNING id`,
		courseID, supporter.ID).Scan(&lessonID))

	lesson, err := s.GetLesson(ctx, "curso", lessonID)
	require.NoError(t, err)
	assert.Equal(t, "Aula 1", lesson.Title)
	assert.Equal(t, 1, lesson.RequiredPlan.Level)

	_, err = s.GetLesson(ctx, "outro", lessonID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
