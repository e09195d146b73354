// Package monitoring serves the progress and results of a running
// simulation over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cachesim/simulation"
)

// Monitor turns a simulation into a server that reports how far it is.
type Monitor struct {
	portNumber int
	runID      string

	lock         sync.Mutex
	progressBars []*ProgressBar
	results      []simulation.Result
	listener     net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterSimulation records the ID of the simulation being monitored.
func (m *Monitor) RegisterSimulation(s *simulation.Simulation) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.runID = s.ID()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.lock.Lock()
	defer m.lock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// TrackTraces creates a progress bar that follows the traces of the next
// run of s.
func (m *Monitor) TrackTraces(
	s *simulation.Simulation,
	numTraces int,
) *ProgressBar {
	bar := m.CreateProgressBar("Traces", uint64(numTraces))

	tracker := NewTraceTracker(bar)
	s.AcceptHook(tracker)
	s.AcceptResultHandler(tracker.HandleResult)

	return bar
}

// RecordResult keeps a finished trace so that it can be queried. It can be
// passed to WithResultHandler.
func (m *Monitor) RecordResult(r simulation.Result) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.results = append(m.results, r)
}

// StartServer starts the monitor as a web server and returns its address.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", err
	}

	m.listener = listener

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := http.Serve(listener, m.router())
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("monitoring server stopped: %v", err)
		}
	}()

	return url, nil
}

// StopServer closes the listener started by StartServer.
func (m *Monitor) StopServer() error {
	if m.listener == nil {
		return nil
	}

	return m.listener.Close()
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/results", m.listResults)
	r.HandleFunc("/api/result/{name}", m.resultDetails)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

func (m *Monitor) run(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	rsp := map[string]any{"run_id": m.runID, "traces_done": len(m.results)}
	m.lock.Unlock()

	writeJSON(w, rsp)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.lock.Unlock()

	writeJSON(w, bars)
}

type resultRsp struct {
	Trace   string           `json:"trace"`
	Error   string           `json:"error,omitempty"`
	Stats   simulation.Stats `json:"stats"`
	Defined bool             `json:"defined"`
}

func (m *Monitor) listResults(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	rsp := make([]resultRsp, 0, len(m.results))
	for _, r := range m.results {
		item := resultRsp{
			Trace:   r.Trace,
			Stats:   r.Stats,
			Defined: r.Stats.Defined(),
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}

		rsp = append(rsp, item)
	}
	m.lock.Unlock()

	writeJSON(w, rsp)
}

func (m *Monitor) resultDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	stats, found := m.findStats(name)
	if !found {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Trace not found"))
		dieOnErr(err)

		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&stats)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) findStats(name string) (simulation.Stats, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i := len(m.results) - 1; i >= 0; i-- {
		r := m.results[i]
		if r.Trace == name && !r.Skipped() {
			return r.Stats, true
		}
	}

	return simulation.Stats{}, false
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
