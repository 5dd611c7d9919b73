package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "raw_metrics", []string{"region_id", "population"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"raw_metrics"}, []string{"region_id", "population"}).WillReturnResult(3)

	rows := [][]any{{"5000-611", 4200.0}, {"5000-612", 3100.0}, {"3000-101", 5600.0}}
	n, err := CopyFrom(context.Background(), mock, "raw_metrics", []string{"region_id", "population"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"raw_metrics"}, []string{"region_id"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"5000-611"}}
	_, err = CopyFrom(context.Background(), mock, "raw_metrics", []string{"region_id"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO raw_metrics")
	assert.NoError(t, mock.ExpectationsWereMet())
}
