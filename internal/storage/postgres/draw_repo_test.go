package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"santa/internal/models"
)

var fixedNow = time.Date(2025, 12, 1, 18, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) (*DrawRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewDrawRepository(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func sampleResult() *models.DrawResult {
	alice := models.Participant{LastName: "Martin", FirstName: "Alice", Category: "Adult", Email: "alice@example.com"}
	carol := models.Participant{LastName: "Martin", FirstName: "Carol", Category: "Child"}
	return &models.DrawResult{
		ID:       "6f1c1b9e-3f43-4c55-9d8e-0b7f9a2a1c11",
		Attempts: 2,
		Assignment: models.Assignment{
			{Giver: alice, Receiver: carol},
			{Giver: carol, Receiver: alice},
		},
	}
}

func TestDrawRepository_Save(t *testing.T) {
	ctx := context.Background()
	result := sampleResult()

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "stores draw and pairs",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO draws`).
					WithArgs(result.ID, "tenant-1", 2, fixedNow).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO draw_pairs`).
					WithArgs(result.ID, "Martin", "Alice", "Adult", "alice@example.com", "Martin", "Carol", "Child", "").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO draw_pairs`).
					WithArgs(result.ID, "Martin", "Carol", "Child", "", "Martin", "Alice", "Adult", "alice@example.com").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "duplicate draw id",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO draws`).
					WillReturnError(&pq.Error{Code: "23505"})
				mock.ExpectRollback()
			},
			wantErr: ErrDuplicateDraw,
		},
		{
			name: "pair insert failure rolls back",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(`INSERT INTO draws`).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(`INSERT INTO draw_pairs`).
					WillReturnError(errors.New("boom"))
				mock.ExpectRollback()
			},
			wantErr: errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepo(t)
			tt.mock(mock)

			err := repo.Save(ctx, "tenant-1", result)
			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
			case errors.Is(tt.wantErr, ErrDuplicateDraw):
				require.ErrorIs(t, err, ErrDuplicateDraw)
			default:
				require.ErrorContains(t, err, tt.wantErr.Error())
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDrawRepository_ListPairs(t *testing.T) {
	repo, mock := newRepo(t)
	columns := []string{
		"giver_last_name", "giver_first_name", "giver_category", "giver_email",
		"receiver_last_name", "receiver_first_name", "receiver_category", "receiver_email",
	}
	mock.ExpectQuery(`SELECT .* FROM draw_pairs WHERE draw_id = \$1`).
		WithArgs("draw-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("Martin", "Alice", "Adult", "alice@example.com", "Martin", "Carol", "Child", "").
			AddRow("Martin", "Carol", "Child", "", "Martin", "Alice", "Adult", "alice@example.com"))

	assignment, err := repo.ListPairs(context.Background(), "draw-1")
	require.NoError(t, err)
	require.Len(t, assignment, 2)
	assert.Equal(t, "Carol", assignment[0].Receiver.FirstName)
	assert.Equal(t, "alice@example.com", assignment[1].Receiver.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDrawRepository_Migrate(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS draws`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
