//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/couchcryptid/weather-station-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/fixture"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startMongo(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return uri
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("weather-etl-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

func writeFixtures(t *testing.T, opts fixture.Options) (*config.Manifest, fixture.Summary) {
	t.Helper()
	sum, err := fixture.Write(t.TempDir(), opts)
	require.NoError(t, err)
	m, err := config.LoadManifest(sum.ManifestPath)
	require.NoError(t, err)
	return m, sum
}

func tabularReader(t *testing.T, m *config.Manifest) *csvfile.Reader {
	t.Helper()
	enc, err := csvfile.EncodingByName(m.Tabular.Encoding)
	require.NoError(t, err)
	return csvfile.NewReader(m.Tabular.DelimiterRune(), enc, m.Tabular.Skip()...).Require(domain.ColTime)
}
