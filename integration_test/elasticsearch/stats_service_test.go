package elasticsearch

import (
	"context"
	"testing"

	"github.com/logsift/logsift/internal/db/elasticsearch/client"
	"github.com/logsift/logsift/internal/stats"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStatsSnapshotSumsMatchTotals(t *testing.T) {
	assert.NoError(t, deleteAllDocuments(es))
	sc := client.NewSiftClientImpl(es, client.Immediate)
	seedLogs(t, sc, testEntries())
	statsService := stats.NewStatsServiceImpl(sc, zap.NewNop())

	snapshot, err := statsService.Snapshot(context.Background(), nil)
	assert.NoError(t, err)

	assert.Equal(t, int64(3), snapshot.TotalLogs)
	var levelSum int64
	for _, bucket := range snapshot.LevelDistribution {
		levelSum += bucket.Count
	}
	assert.Equal(t, snapshot.TotalLogs, levelSum)

	// One ERROR out of three entries.
	assert.InDelta(t, 100.0/3.0, snapshot.ErrorRate, 0.01)

	assert.Equal(t, int64(1), snapshot.NetworkCoverage.WithNetworkInfo)
	assert.Equal(t, int64(2), snapshot.NetworkCoverage.WithoutNetworkInfo)
	assert.Equal(t, int64(2), snapshot.TotalFiles)
}

func TestStatsSnapshotFileScope(t *testing.T) {
	assert.NoError(t, deleteAllDocuments(es))
	sc := client.NewSiftClientImpl(es, client.Immediate)
	seedLogs(t, sc, testEntries())
	statsService := stats.NewStatsServiceImpl(sc, zap.NewNop())

	fileId := "var-log-web"
	snapshot, err := statsService.Snapshot(context.Background(), &fileId)
	assert.NoError(t, err)

	assert.Equal(t, int64(2), snapshot.TotalLogs)
	// The scoped file holds no ERROR entries.
	assert.Equal(t, 0.0, snapshot.ErrorRate)
}

func TestStatsSnapshotEmptyStore(t *testing.T) {
	assert.NoError(t, deleteAllDocuments(es))
	sc := client.NewSiftClientImpl(es, client.Immediate)
	statsService := stats.NewStatsServiceImpl(sc, zap.NewNop())

	snapshot, err := statsService.Snapshot(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), snapshot.TotalLogs)
	assert.Equal(t, 0.0, snapshot.ErrorRate)
}
