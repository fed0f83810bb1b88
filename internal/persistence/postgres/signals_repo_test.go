package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiq/scanner/internal/domain"
)

func newMockSignalsRepo(t *testing.T) (*signalsRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return &signalsRepo{db: sqlxDB, timeout: time.Second}, mock
}

func sampleSignal() domain.ValidatedSignal {
	return domain.ValidatedSignal{
		ID:           "11111111-1111-1111-1111-111111111111",
		Symbol:       "BTC",
		SignalType:   domain.SignalAuto,
		StrategyType: "DF",
		LowVenue:     "binance",
		HighVenue:    "jupiter",
		BuyPrice:     decimal.NewFromFloat(50000),
		SellPrice:    decimal.NewFromFloat(50500),
		Status:       "new",
		CreatedAt:    time.Now(),
	}
}

func TestSignalsRepo_Insert(t *testing.T) {
	repo, mock := newMockSignalsRepo(t)

	mock.ExpectExec("INSERT INTO signals").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), sampleSignal())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignalsRepo_MarkSent(t *testing.T) {
	repo, mock := newMockSignalsRepo(t)

	mock.ExpectExec("UPDATE signals SET telegram_msg_id").WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSent(context.Background(), "sig-1", 42, time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignalsRepo_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockSignalsRepo(t)

	mock.ExpectQuery("SELECT details FROM signals WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"details"}))

	sig, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, sig)
}
