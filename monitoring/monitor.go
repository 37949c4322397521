// Package monitoring turns a running simulation into a web server so that the
// state of the memory hierarchy can be inspected while it runs.
package monitoring

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
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
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/memsim/mem/cache"
	"github.com/sarchlab/memsim/mem/hierarchy"
	"github.com/sarchlab/memsim/monitoring/web"
	"github.com/sarchlab/memsim/sim"
)

// maxDumpLength limits how many bytes of DRAM a single request can read.
const maxDumpLength = 4096

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	registerLock sync.RWMutex
	hierarchy    *hierarchy.Hierarchy
	lock         sync.Locker

	registry *prometheus.Registry
	idGen     sim.IDGenerator

	portNumber  int
	openBrowser bool
	server      *http.Server
	listener    net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	m := &Monitor{
		lock:     &sync.Mutex{},
		registry: prometheus.NewRegistry(),
		idGen:    sim.NewSequentialIDGenerator("progress"),
	}

	m.registry.MustRegister(&levelCollector{monitor: m})

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open the dashboard in the default browser
// once the server is up.
func (m *Monitor) WithBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterHierarchy registers the hierarchy to be monitored, replacing the
// one registered before. The lock must be held by the simulation while it
// accesses the hierarchy; the monitor takes it before reading any state. A
// nil lock keeps the monitor's own lock.
func (m *Monitor) RegisterHierarchy(h *hierarchy.Hierarchy, lock sync.Locker) {
	m.registerLock.Lock()
	defer m.registerLock.Unlock()

	m.hierarchy = h
	if lock != nil {
		m.lock = lock
	}
}

// registered returns the monitored hierarchy and its lock.
func (m *Monitor) registered() (*hierarchy.Hierarchy, sync.Locker) {
	m.registerLock.RLock()
	defer m.registerLock.RUnlock()

	return m.hierarchy, m.lock
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGen.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler that serves the monitoring API and the
// dashboard.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/hierarchy", m.describeHierarchy)
	r.HandleFunc("/api/levels", m.listLevels)
	r.HandleFunc("/api/level/{name}", m.levelDetails)
	r.HandleFunc("/api/slot/{name}/{index:[0-9]+}", m.slot)
	r.HandleFunc("/api/dram", m.dumpStore)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the port that
// it listens on.
func (m *Monitor) StartServer() int {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	port := listener.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://localhost:%d", port)

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if err != http.ErrServerClosed {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
		}
	}

	return port
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	err := m.server.Close()
	m.server = nil

	return err
}

type hierarchyRsp struct {
	ID        string   `json:"id"`
	LineWidth int      `json:"line_width"`
	Seed      int64    `json:"seed"`
	Levels    []string `json:"levels"`
}

func (m *Monitor) describeHierarchy(w http.ResponseWriter, _ *http.Request) {
	h, lock := m.hierarchyOr404(w)
	if h == nil {
		return
	}

	lock.Lock()
	rsp := hierarchyRsp{
		ID:        h.ID(),
		LineWidth: h.LineWidth(),
		Seed:      h.Config().Seed,
	}
	for _, s := range h.Stats() {
		rsp.Levels = append(rsp.Levels, s.Name)
	}
	lock.Unlock()

	writeJSON(w, rsp)
}

type levelRsp struct {
	hierarchy.LevelStats
	HitRate float64 `json:"hit_rate"`
}

func (m *Monitor) listLevels(w http.ResponseWriter, _ *http.Request) {
	h, lock := m.hierarchyOr404(w)
	if h == nil {
		return
	}

	lock.Lock()
	stats := h.Stats()
	lock.Unlock()

	rsp := make([]levelRsp, 0, len(stats))
	for _, s := range stats {
		rsp = append(rsp, levelRsp{
			LevelStats: s,
			HitRate:    s.Running().HitRate(),
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) levelDetails(w http.ResponseWriter, r *http.Request) {
	c, lock := m.findCacheOr404(w, mux.Vars(r)["name"])
	if c == nil {
		return
	}

	lock.Lock()
	defer lock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(c)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type slotRsp struct {
	Level string `json:"level"`
	Slot  int    `json:"slot"`
	Set   int    `json:"set"`
	Way   int    `json:"way"`
	Tag   uint64 `json:"tag"`
	Valid bool   `json:"valid"`
	Dirty bool   `json:"dirty"`
	Data  string `json:"data"`
}

func (m *Monitor) slot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	c, lock := m.findCacheOr404(w, vars["name"])
	if c == nil {
		return
	}

	index, err := strconv.Atoi(vars["index"])
	if err != nil || index < 0 || index >= c.NumSlots() {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Slot %s not found", vars["index"])

		return
	}

	lock.Lock()
	line := c.Inspect(index)
	lock.Unlock()

	writeJSON(w, slotRsp{
		Level: c.Name(),
		Slot:  index,
		Set:   index / c.NumWays(),
		Way:   index % c.NumWays(),
		Tag:   line.Tag,
		Valid: line.Valid,
		Dirty: line.Dirty,
		Data:  hex.EncodeToString(line.Bytes),
	})
}

type dumpRsp struct {
	Offset uint64 `json:"offset"`
	Data   string `json:"data"`
}

func (m *Monitor) dumpStore(w http.ResponseWriter, r *http.Request) {
	h, lock := m.hierarchyOr404(w)
	if h == nil {
		return
	}

	offset, length, err := dumpParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	lock.Lock()
	defer lock.Unlock()

	data := h.Store().Bytes()
	if offset >= uint64(len(data)) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: offset 0x%x is out of range", offset)

		return
	}

	end := offset + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}

	writeJSON(w, dumpRsp{
		Offset: offset,
		Data:   hex.EncodeToString(data[offset:end]),
	})
}

func dumpParams(r *http.Request) (offset, length uint64, err error) {
	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		offsetStr = "0"
	}

	offset, err = strconv.ParseUint(offsetStr, 0, 64)
	if err != nil {
		return 0, 0, err
	}

	lengthStr := r.URL.Query().Get("len")
	if lengthStr == "" {
		lengthStr = "256"
	}

	length, err = strconv.ParseUint(lengthStr, 0, 64)
	if err != nil {
		return 0, 0, err
	}

	if length > maxDumpLength {
		return 0, 0, fmt.Errorf("len must not exceed %d", maxDumpLength)
	}

	return offset, length, nil
}

func (m *Monitor) hierarchyOr404(
	w http.ResponseWriter,
) (*hierarchy.Hierarchy, sync.Locker) {
	h, lock := m.registered()
	if h != nil {
		return h, lock
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("No hierarchy registered"))
	dieOnErr(err)

	return nil, nil
}

func (m *Monitor) findCacheOr404(
	w http.ResponseWriter,
	name string,
) (*cache.Cache, sync.Locker) {
	h, lock := m.hierarchyOr404(w)
	if h == nil {
		return nil, nil
	}

	c := h.Cache(name)
	if c == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Level not found"))
		dieOnErr(err)

		return nil, nil
	}

	return c, lock
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressBarSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
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

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
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
