// SPDX-License-Identifier: MIT
package surveillance

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"sync"
)

// MockServer is an in-memory stand-in for the external video system's web API.
type MockServer struct {
	*httptest.Server

	mu          sync.Mutex
	account     string
	password    string
	rejectLogin bool
	sessions    map[string]string // sid -> label
	nextSID     int
	logins      map[string]int // label -> count
	expireNext  map[string]int // label -> remaining forced session errors
	cameras     []Camera
	recordings  map[string][]RecordingMatch
	files       map[string]int64
	tasks       map[string]*mockTask
	nextTask    int
	finishAfter int // polls before finished=true; negative never finishes
	failCopy    bool
	failStatus  int // remaining status polls answered with HTTP 503
	calls       []MockCall
}

// MockCall is one request observed by the mock server.
type MockCall struct {
	API    string
	Method string
	Params map[string]string
}

type mockTask struct {
	src   string
	dest  string
	polls int
}

// NewMockServer starts a mock that accepts account/password.
func NewMockServer(account, password string) *MockServer {
	m := &MockServer{
		account:    account,
		password:   password,
		sessions:   make(map[string]string),
		logins:     make(map[string]int),
		expireNext: make(map[string]int),
		recordings: make(map[string][]RecordingMatch),
		files:      make(map[string]int64),
		tasks:      make(map[string]*mockTask),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/webapi/auth.cgi", m.handleAuth)
	mux.HandleFunc("/webapi/entry.cgi", m.handleEntry)
	m.Server = httptest.NewServer(mux)
	return m
}

// AddCamera registers a camera in the catalog.
func (m *MockServer) AddCamera(c Camera) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cameras = append(m.cameras, c)
}

// SetRecordings replaces the recordings returned for cameraID, in catalog order.
func (m *MockServer) SetRecordings(cameraID string, recs ...RecordingMatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordings[cameraID] = recs
	for _, r := range recs {
		m.files[r.SourcePath()] = r.SizeBytes
	}
}

// SetFinishAfter makes copy tasks report finished on poll n. n < 0 never finishes.
func (m *MockServer) SetFinishAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishAfter = n
}

// SetFailCopy makes copy start and status report an explicit failure.
func (m *MockServer) SetFailCopy(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCopy = fail
}

// FailStatusPolls answers the next n status polls with HTTP 503.
func (m *MockServer) FailStatusPolls(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failStatus = n
}

// SetRejectLogin makes every login fail with code 400.
func (m *MockServer) SetRejectLogin(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectLogin = reject
}

// ExpireSessions answers the next n calls under label with code 119.
func (m *MockServer) ExpireSessions(label string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireNext[label] = n
}

// Logins returns how many successful logins happened for label.
func (m *MockServer) Logins(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logins[label]
}

// FileSize returns the size of a file present on the mock filesystem.
func (m *MockServer) FileSize(p string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	size, ok := m.files[p]
	return size, ok
}

// Calls returns the requests seen so far filtered by api and method; empty
// filters match everything.
func (m *MockServer) Calls(api, method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCall
	for _, c := range m.calls {
		if (api == "" || c.API == api) && (method == "" || c.Method == method) {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockServer) record(r *http.Request) MockCall {
	q := r.URL.Query()
	c := MockCall{API: q.Get("api"), Method: q.Get("method"), Params: make(map[string]string, len(q))}
	for k := range q {
		c.Params[k] = q.Get(k)
	}
	m.calls = append(m.calls, c)
	return c
}

func (m *MockServer) handleAuth(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.record(r)

	switch c.Method {
	case "login":
		if m.rejectLogin || c.Params["account"] != m.account || c.Params["passwd"] != m.password {
			writeFailure(w, 400)
			return
		}
		m.nextSID++
		sid := fmt.Sprintf("sid-%d", m.nextSID)
		label := c.Params["session"]
		m.sessions[sid] = label
		m.logins[label]++
		writeSuccess(w, map[string]string{"sid": sid})
	case "logout":
		delete(m.sessions, c.Params["_sid"])
		writeSuccess(w, nil)
	default:
		writeFailure(w, 103)
	}
}

func (m *MockServer) handleEntry(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.record(r)

	label, ok := m.sessions[c.Params["_sid"]]
	if !ok {
		writeFailure(w, 119)
		return
	}
	if n := m.expireNext[label]; n > 0 {
		m.expireNext[label] = n - 1
		delete(m.sessions, c.Params["_sid"])
		writeFailure(w, 106)
		return
	}

	switch c.API + "." + c.Method {
	case apiCamera + ".List":
		writeSuccess(w, map[string]any{"cameras": m.cameras})
	case apiRecording + ".List":
		m.listRecordings(w, c)
	case apiCopyMove + ".start":
		m.startCopy(w, c)
	case apiCopyMove + ".status":
		m.copyStatus(w, c)
	case apiFileList + ".getinfo":
		m.getInfo(w, c)
	default:
		writeFailure(w, 102)
	}
}

func (m *MockServer) listRecordings(w http.ResponseWriter, c MockCall) {
	from, _ := strconv.ParseInt(c.Params["fromTime"], 10, 64)
	to, _ := strconv.ParseInt(c.Params["toTime"], 10, 64)
	out := []RecordingMatch{}
	for _, rec := range m.recordings[c.Params["cameraIds"]] {
		if rec.Stop > 0 && (rec.Start >= to || rec.Stop <= from) {
			continue
		}
		out = append(out, rec)
	}
	writeSuccess(w, map[string]any{"recordings": out})
}

func (m *MockServer) startCopy(w http.ResponseWriter, c MockCall) {
	if m.failCopy {
		writeFailure(w, 1000)
		return
	}
	var paths []string
	if err := json.Unmarshal([]byte(c.Params["path"]), &paths); err != nil || len(paths) != 1 {
		writeFailure(w, 101)
		return
	}
	if _, ok := m.files[paths[0]]; !ok {
		writeFailure(w, 408)
		return
	}
	m.nextTask++
	id := fmt.Sprintf("FileStation_%04d", m.nextTask)
	m.tasks[id] = &mockTask{src: paths[0], dest: c.Params["dest_folder_path"]}
	writeSuccess(w, map[string]string{"taskid": id})
}

func (m *MockServer) copyStatus(w http.ResponseWriter, c MockCall) {
	if m.failStatus > 0 {
		m.failStatus--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	task, ok := m.tasks[c.Params["taskid"]]
	if !ok {
		writeFailure(w, 599)
		return
	}
	if m.failCopy {
		writeFailure(w, 1000)
		return
	}
	task.polls++
	finished := m.finishAfter >= 0 && task.polls >= m.finishAfter
	if finished {
		m.files[path.Join(task.dest, path.Base(task.src))] = m.files[task.src]
	}
	writeSuccess(w, map[string]any{"finished": finished, "progress": 0.5})
}

func (m *MockServer) getInfo(w http.ResponseWriter, c MockCall) {
	var paths []string
	if err := json.Unmarshal([]byte(c.Params["path"]), &paths); err != nil {
		writeFailure(w, 101)
		return
	}
	files := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		size, ok := m.files[p]
		if !ok {
			files = append(files, map[string]any{"path": p, "code": 408})
			continue
		}
		files = append(files, map[string]any{
			"path":       p,
			"name":       path.Base(p),
			"additional": map[string]int64{"size": size},
		})
	}
	writeSuccess(w, map[string]any{"files": files})
}

func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	body := map[string]any{"success": true}
	if data != nil {
		body["data"] = data
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]int{"code": code},
	})
}
