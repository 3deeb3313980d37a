package main

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/roryk/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStatement(t *testing.T) {
	service := models.ServiceVIN
	vehicle := "WVWZZZ1JZXW000001"
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	txs := []*models.Transaction{
		{
			ID:                "tx-2",
			Type:              models.DirectionDebit,
			Amount:            models.MustParseMoney("1.00"),
			PreviousBalance:   models.MustParseMoney("10.00"),
			NewBalance:        models.MustParseMoney("9.00"),
			Description:       "VIN Check - WVWZZZ1JZXW000001",
			PerformedBy:       "acct-1",
			ServiceType:       &service,
			VehicleIdentifier: &vehicle,
			CreatedAt:         at.Add(time.Minute),
		},
		{
			ID:              "tx-1",
			Type:            models.DirectionCredit,
			Amount:          models.MustParseMoney("10.00"),
			PreviousBalance: 0,
			NewBalance:      models.MustParseMoney("10.00"),
			Description:     "Initial credit",
			PerformedBy:     "admin-1",
			CreatedAt:       at,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeStatement(&buf, txs))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, statementHeader, rows[0])
	assert.Equal(t, []string{
		"2024-05-01T10:31:00Z", "tx-2", "debit", "1.00", "10.00", "9.00",
		"vin", "WVWZZZ1JZXW000001", "acct-1", "VIN Check - WVWZZZ1JZXW000001",
	}, rows[1])
	assert.Equal(t, "", rows[2][6])
	assert.Equal(t, "", rows[2][7])
	assert.Equal(t, "0.00", rows[2][4])
}

func TestWriteStatementEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatement(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
