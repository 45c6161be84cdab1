package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*PGFailureLog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(createFailuresTable).WillReturnResult(sqlmock.NewResult(0, 0))
	log, err := NewPGFailureLog(context.Background(), db)
	require.NoError(t, err)
	return log, mock
}

func TestNewPGFailureLog_CreateFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(createFailuresTable).WillReturnError(errors.New("permission denied"))

	_, err = NewPGFailureLog(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create delivery_failures")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFailureLog_Record(t *testing.T) {
	log, mock := newMockDB(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := json.RawMessage(`{"text":"hi"}`)

	mock.ExpectExec(insertFailure).
		WithArgs("task-1", "send_message", "U1", []byte(payload), "graph api: 500", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := log.Record(context.Background(), Failure{
		TaskID:     "task-1",
		Task:       "send_message",
		SenderID:   "U1",
		Payload:    payload,
		Error:      "graph api: 500",
		OccurredAt: at,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFailureLog_RecordWithoutPayloadStoresNull(t *testing.T) {
	log, mock := newMockDB(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(insertFailure).
		WithArgs("task-2", "set_persistent_menu", "U2", nil, "breaker open", at).
		WillReturnResult(sqlmock.NewResult(2, 1))

	err := log.Record(context.Background(), Failure{
		TaskID:     "task-2",
		Task:       "set_persistent_menu",
		SenderID:   "U2",
		Error:      "breaker open",
		OccurredAt: at,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFailureLog_RecordError(t *testing.T) {
	log, mock := newMockDB(t)

	mock.ExpectExec(insertFailure).WillReturnError(errors.New("connection reset"))

	err := log.Record(context.Background(), Failure{TaskID: "task-3", OccurredAt: time.Now()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert delivery failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}
