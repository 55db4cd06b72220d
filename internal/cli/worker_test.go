package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/advect/internal/store"
)

func freeAddrs(t *testing.T, n int) []string {
	t.Helper()
	addrs := make([]string, n)
	for i := range addrs {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addrs[i] = ln.Addr().String()
		require.NoError(t, ln.Close())
	}
	return addrs
}

func TestWorker_TwoRanksOverTCP(t *testing.T) {
	addrs := freeAddrs(t, 2)
	db := filepath.Join(t.TempDir(), "runs.db")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outs := make([]*bytes.Buffer, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for r := range 2 {
		outs[r] = &bytes.Buffer{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			args := []string{"worker", "testdata/line.yaml",
				"--rank", strconv.Itoa(r),
				"--peers", strings.Join(addrs, ","),
				"--run-id", "tcp-run",
				"--format", "json",
			}
			if r == 0 {
				args = append(args, "--db", db)
			}
			root := NewRootCommand()
			root.SetOut(outs[r])
			root.SetErr(io.Discard)
			root.SetArgs(args)
			errs[r] = root.ExecuteContext(ctx)
		}()
	}
	wg.Wait()

	terminated := 0
	for r := range 2 {
		require.NoError(t, errs[r], "rank %d", r)
		var resp struct {
			Data RunSummary `json:"data"`
		}
		require.NoError(t, json.Unmarshal(outs[r].Bytes(), &resp))
		assert.Equal(t, "tcp-run", resp.Data.RunID)
		require.Len(t, resp.Data.Stats, 1)
		assert.Equal(t, r, resp.Data.Stats[0].Rank)
		terminated += resp.Data.Terminated
	}
	assert.Equal(t, 8, terminated)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	stats, err := st.ReadRankStats(context.Background(), "tcp-run")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 0, stats[0].Rank)
}

func TestWorker_PeerCountMismatch(t *testing.T) {
	_, _, err := execute(t, "worker", "testdata/line.yaml", "--rank", "0", "--peers", "127.0.0.1:1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 peer addresses for 2 ranks")
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "advect_test_total", Help: "Test counter."})
	reg.MustRegister(counter)
	counter.Add(3)

	addr, shutdown, err := serveMetrics("127.0.0.1:0", reg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer shutdown()

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "advect_test_total 3")
}
