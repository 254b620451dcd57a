package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Disabled(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("influx.enabled", false)

	m := NewManager(zerolog.Nop(), "")
	err := m.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "influx.enabled is false")
}

func TestWritePoint_BackupFallback(t *testing.T) {
	backupPath := filepath.Join(t.TempDir(), "influx_backup.gz")

	file, err := os.OpenFile(backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)

	m := NewManager(zerolog.Nop(), backupPath)
	m.BackupWriter = gzip.NewWriter(file)

	point := LoadPoint("tower", "xkt", 250*time.Millisecond, 120, 40000, nil)
	require.NoError(t, m.WritePoint(context.Background(), BucketLoadPerformance, point))

	require.NoError(t, m.BackupWriter.Close())
	require.NoError(t, file.Close())

	f, err := os.Open(backupPath)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data := make([]byte, 4096)
	n, _ := gz.Read(data)
	line := string(data[:n])

	assert.Contains(t, line, "model_load")
	assert.Contains(t, line, "modelId=tower")
	assert.Contains(t, line, "format=xkt")
	assert.Contains(t, line, "success=true")
}

func TestWritePoint_NoWriterAvailable(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	point := ExportPoint("tower", 1024, true)
	err := m.WritePoint(context.Background(), BucketExportStats, point)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestLoadPoint_Error(t *testing.T) {
	point := LoadPoint("tower", "gltf", time.Second, 0, 0, errors.New("bad buffer"))
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	assert.Contains(t, line, "success=false")
	assert.Contains(t, line, `error="bad buffer"`)
}
