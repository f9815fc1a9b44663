package kafka

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/feaout/pkg/config"
	"github.com/ajitpratap0/feaout/pkg/field"
	"github.com/ajitpratap0/feaout/pkg/json"
	"github.com/ajitpratap0/feaout/pkg/record"
	"github.com/ajitpratap0/feaout/pkg/sink/jsonl"
)

func fixture(t *testing.T) (*record.History, []field.Descriptor) {
	t.Helper()
	cat, err := field.BuildHistoryCatalog(config.AnalysisConfig{
		GeometryMode: config.LargeDeformations,
		TimeMode:     config.Static,
		SpatialDim:   2,
	})
	require.NoError(t, err)
	fields, err := field.Select(cat, []string{"RMS_UTOL", "RMS_RTOL"})
	require.NoError(t, err)
	return record.New[record.Iteration](cat), fields
}

func snapshot(t *testing.T, rec *record.History, inner int, u, r float64) record.HistorySnapshot {
	t.Helper()
	rec.Reset(record.Iteration{InnerIter: inner})
	require.NoError(t, rec.Set(field.RMSUTol, u))
	require.NoError(t, rec.Set(field.RMSRTol, r))
	return rec.Snapshot()
}

func TestPublishesHeaderThenRows(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)

	var header jsonl.Header
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &header)
	})
	var rows []jsonl.Row
	for i := 0; i < 2; i++ {
		p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var row jsonl.Row
			if err := json.Unmarshal(val, &row); err != nil {
				return err
			}
			if row.Type != "row" {
				return fmt.Errorf("unexpected message type %q", row.Type)
			}
			rows = append(rows, row)
			return nil
		})
	}

	w := NewWithProducer(p, config.KafkaConfig{Topic: "history"}, "run-7", 1, nil)
	assert.Equal(t, "run-7/1", w.Key())

	rec, fields := fixture(t)
	ctx := context.Background()
	require.NoError(t, w.Open(ctx, fields))
	require.NoError(t, w.WriteRow(ctx, snapshot(t, rec, 0, -3, -4)))
	require.NoError(t, w.WriteRow(ctx, snapshot(t, rec, 1, math.Inf(-1), -5)))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	require.Len(t, header.Columns, 2)
	assert.Equal(t, field.RMSRTol, header.Columns[1].ID)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[1].Iteration.InnerIter)
	assert.True(t, math.IsInf(float64(rows[1].Values[0]), -1))
	assert.Equal(t, jsonl.Value(-5), rows[1].Values[1])
}

func TestPublishFailureIsFileError(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	w := NewWithProducer(p, config.KafkaConfig{Topic: "history"}, "run-7", 0, nil)
	_, fields := fixture(t)
	err := w.Open(context.Background(), fields)
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, w.Close())
}

func TestConfig(t *testing.T) {
	c := Config(config.KafkaConfig{Compression: "zstd", RequiredAcks: "local"})
	assert.Equal(t, "feaout", c.ClientID)
	assert.True(t, c.Producer.Return.Successes)
	assert.Equal(t, sarama.CompressionZSTD, c.Producer.Compression)
	assert.Equal(t, sarama.WaitForLocal, c.Producer.RequiredAcks)
	require.NoError(t, c.Validate())
}
