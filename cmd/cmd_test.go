package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"towertracker/config"
	"towertracker/publish"

	"gocv.io/x/gocv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	dl, err := NewDebugLogger(false, false, &buf, "")
	require.NoError(t, err)

	dl.debugMsg("PIPELINE", "hidden")
	dl.debugMsgVerbose("FILTER", "hidden")
	dl.logMsg("SYSTEM", "always shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[SYSTEM] always shown")

	buf.Reset()
	dl, err = NewDebugLogger(false, true, &buf, "")
	require.NoError(t, err)
	dl.debugMsg("PIPELINE", "frame")
	dl.debugMsgVerbose("FILTER", "candidate")
	assert.Contains(t, buf.String(), "[PIPELINE] frame")
	assert.Contains(t, buf.String(), "[FILTER] candidate")
	require.NoError(t, dl.Close())
}

func TestDebugLoggerWritesFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "tracker.log")

	dl, err := NewDebugLogger(true, false, &buf, path)
	require.NoError(t, err)
	dl.logMsg("SESSION", "connected")
	dl.debugMsg("PERF", "30.0 fps")
	require.NoError(t, dl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "[SESSION] connected"))
	assert.True(t, strings.HasSuffix(lines[1], "[PERF] 30.0 fps"))
}

// exclusiveWriter fails the test if two writes overlap
type exclusiveWriter struct {
	t       *testing.T
	writing atomic.Bool
	mu      sync.Mutex
	buf     bytes.Buffer
}

func (ew *exclusiveWriter) Write(p []byte) (int, error) {
	if !ew.writing.CompareAndSwap(false, true) {
		ew.t.Error("concurrent write to console")
		return 0, nil
	}
	defer ew.writing.Store(false)
	time.Sleep(100 * time.Microsecond)

	ew.mu.Lock()
	defer ew.mu.Unlock()
	return ew.buf.Write(p)
}

func (ew *exclusiveWriter) String() string {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	return ew.buf.String()
}

func TestDebugLoggerFileErrorsDoNotInterleaveConsole(t *testing.T) {
	console := &exclusiveWriter{t: t}
	path := filepath.Join(t.TempDir(), "tracker.log")

	dl, err := NewDebugLogger(true, false, console, path)
	require.NoError(t, err)
	// every queued line now fails to write and is reported on the console
	require.NoError(t, dl.file.Close())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				dl.logMsg("PIPELINE", fmt.Sprintf("worker %d frame %d", i, j))
			}
		}(i)
	}
	wg.Wait()

	dl.Close()
	assert.Contains(t, console.String(), "[DEBUG_LOGGER] Failed to write log file")
	assert.Contains(t, console.String(), "[PIPELINE] worker 3 frame 19")
}

func TestExecuteFlushesLogFileOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.log")
	t.Cleanup(func() { logFile = "" })

	rootCmd.SetArgs([]string{"--log-file", path, "analyze", filepath.Join(t.TempDir(), "missing.png")})
	err := executeContext(context.Background())
	require.Error(t, err)
	assert.Nil(t, logger)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[SYSTEM] Error: ")
}

func TestBuildSinkAlwaysWritesTable(t *testing.T) {
	c := config.Default()
	table := publish.NewTable(c.Publish.Table)

	sink, closeAll, err := buildSink(c, table)
	require.NoError(t, err)
	defer closeAll()

	require.NoError(t, sink.Publish("1.00,2.00,3.00"))
	v, ok := table.GetString("targets")
	require.True(t, ok)
	assert.Equal(t, "1.00,2.00,3.00", v)
}

func TestServeTableReadsBackPublishedOutput(t *testing.T) {
	c := config.Default()
	c.Publish.Listen = "127.0.0.1:0"
	table := publish.NewTable(c.Publish.Table)

	sink, closeAll, err := buildSink(c, table)
	require.NoError(t, err)
	defer closeAll()

	addr, stop, err := serveTable(context.Background(), c, table)
	require.NoError(t, err)

	require.NoError(t, sink.Publish("60.00,-0.77,53.58"))

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/%s/%s", addr, c.Publish.Table, c.Publish.Key))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "60.00,-0.77,53.58", string(body))

	require.NoError(t, stop())
	_, err = client.Get(fmt.Sprintf("http://%s/%s/%s", addr, c.Publish.Table, c.Publish.Key))
	assert.Error(t, err, "server must be closed after stop")
}

func TestServeTableBadAddress(t *testing.T) {
	c := config.Default()
	c.Publish.Listen = "not an address"
	_, _, err := serveTable(context.Background(), c, publish.NewTable(c.Publish.Table))
	assert.Error(t, err)
}

func TestBuildSinkBadUDPAddress(t *testing.T) {
	c := config.Default()
	c.Publish.UDPAddr = "not an address"
	_, _, err := buildSink(c, publish.NewTable("t"))
	assert.Error(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "frame.png")
	annotatedPath := filepath.Join(dir, "annotated.png")

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(300, 200, 360, 240), color.RGBA{R: 0, G: 255, B: 255}, -1)
	require.True(t, gocv.IMWrite(imagePath, frame))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"analyze", imagePath, "--repeat", "2", "--annotated", annotatedPath})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, rootCmd.ExecuteContext(ctx))

	assert.Equal(t, "60.00,-0.77,53.58\n", out.String())
	_, err := os.Stat(annotatedPath)
	assert.NoError(t, err)
}
