// Package sheetstest runs an in-process stand-in for the parts of the Google
// Sheets API v4 used by the queue: spreadsheet metadata, value reads, writes,
// appends and sheet-property batch updates.
package sheetstest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"

	"google.golang.org/api/option"
)

// Call is one request received by the server. Path and Range are decoded.
type Call struct {
	Method string
	Path   string
	Range  string
	Query  url.Values
	Body   []byte
}

type tab struct {
	id   int64
	rows [][]string
}

// Server serves a single spreadsheet.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	spreadsheetID string
	tabs          map[string]*tab
	calls         []Call
	failStatus    int
}

// NewServer starts a server for spreadsheetID holding the given tabs
// (title → sheet id), all empty.
func NewServer(spreadsheetID string, tabs map[string]int64) *Server {
	s := &Server{
		spreadsheetID: spreadsheetID,
		tabs:          make(map[string]*tab, len(tabs)),
	}
	for title, id := range tabs {
		s.tabs[title] = &tab{id: id}
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// ClientOptions point a Sheets client at the server without authentication.
func (s *Server) ClientOptions() []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(s.URL + "/"),
		option.WithoutAuthentication(),
	}
}

// SetRows replaces the content of a tab.
func (s *Server) SetRows(title string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tabs[title]
	t.rows = make([][]string, len(rows))
	for i, r := range rows {
		t.rows[i] = slices.Clone(r)
	}
}

// Rows returns a copy of a tab's content.
func (s *Server) Rows(title string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tabs[title]
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = slices.Clone(r)
	}
	return out
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// FailWith makes every later request answer with status. Zero restores service.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	call := Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body}

	rest, ok := strings.CutPrefix(r.URL.Path, "/v4/spreadsheets/")
	if !ok {
		s.calls = append(s.calls, call)
		writeError(w, http.StatusNotFound, "unknown path")
		return
	}
	id, sub, hasSub := strings.Cut(rest, "/")
	if hasSub {
		call.Range = strings.TrimPrefix(sub, "values/")
	}
	s.calls = append(s.calls, call)

	if s.failStatus != 0 {
		writeError(w, s.failStatus, "injected failure")
		return
	}

	switch {
	case !hasSub && id == s.spreadsheetID && r.Method == http.MethodGet:
		s.metadata(w)
	case !hasSub && id == s.spreadsheetID+":batchUpdate" && r.Method == http.MethodPost:
		s.batchUpdate(w, body)
	case hasSub && id == s.spreadsheetID && strings.HasPrefix(sub, "values/"):
		if rng, ok := strings.CutSuffix(call.Range, ":append"); ok && r.Method == http.MethodPost {
			s.appendValues(w, rng, body)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.getValues(w, call.Range)
		case http.MethodPut:
			s.updateValues(w, call.Range, body)
		default:
			writeError(w, http.StatusMethodNotAllowed, "unsupported method")
		}
	default:
		writeError(w, http.StatusNotFound, "Requested entity was not found.")
	}
}

func (s *Server) metadata(w http.ResponseWriter) {
	type props struct {
		SheetID int64  `json:"sheetId"`
		Title   string `json:"title"`
	}
	type sheet struct {
		Properties props `json:"properties"`
	}
	sheets := make([]sheet, 0, len(s.tabs))
	for title, t := range s.tabs {
		sheets = append(sheets, sheet{Properties: props{SheetID: t.id, Title: title}})
	}
	slices.SortFunc(sheets, func(a, b sheet) int { return int(a.Properties.SheetID - b.Properties.SheetID) })
	writeJSON(w, map[string]any{"spreadsheetId": s.spreadsheetID, "sheets": sheets})
}

func (s *Server) batchUpdate(w http.ResponseWriter, body []byte) {
	var req struct {
		Requests []struct {
			UpdateSheetProperties *struct {
				Properties struct {
					SheetID        *int64 `json:"sheetId"`
					GridProperties struct {
						RowCount int `json:"rowCount"`
					} `json:"gridProperties"`
				} `json:"properties"`
				Fields string `json:"fields"`
			} `json:"updateSheetProperties"`
		} `json:"requests"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, rq := range req.Requests {
		u := rq.UpdateSheetProperties
		if u == nil {
			writeError(w, http.StatusBadRequest, "unsupported request")
			return
		}
		if u.Properties.SheetID == nil {
			writeError(w, http.StatusBadRequest, "properties.sheetId is required")
			return
		}
		t := s.tabByID(*u.Properties.SheetID)
		if t == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("no grid with id: %d", *u.Properties.SheetID))
			return
		}
		if u.Fields == "gridProperties.rowCount" && u.Properties.GridProperties.RowCount < len(t.rows) {
			t.rows = t.rows[:u.Properties.GridProperties.RowCount]
		}
	}
	writeJSON(w, map[string]any{"spreadsheetId": s.spreadsheetID, "replies": []any{map[string]any{}}})
}

func (s *Server) getValues(w http.ResponseWriter, rng string) {
	t, ref, err := s.resolve(rng)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lastRow := ref.row2
	if lastRow == 0 || lastRow > len(t.rows) {
		lastRow = len(t.rows)
	}
	var values [][]string
	for row := max(ref.row1, 1); row <= lastRow; row++ {
		src := t.rows[row-1]
		cells := []string{}
		for col := ref.col1; col <= ref.col2 && col <= len(src); col++ {
			cells = append(cells, src[col-1])
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		values = append(values, cells)
	}
	for len(values) > 0 && len(values[len(values)-1]) == 0 {
		values = values[:len(values)-1]
	}

	resp := map[string]any{"range": rng, "majorDimension": "ROWS"}
	if len(values) > 0 {
		resp["values"] = values
	}
	writeJSON(w, resp)
}

func (s *Server) updateValues(w http.ResponseWriter, rng string, body []byte) {
	t, ref, err := s.resolve(rng)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	values, err := decodeValues(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i, row := range values {
		for j, v := range row {
			t.set(max(ref.row1, 1)+i, ref.col1+j, v)
		}
	}
	writeJSON(w, map[string]any{"spreadsheetId": s.spreadsheetID, "updatedRange": rng})
}

func (s *Server) appendValues(w http.ResponseWriter, rng string, body []byte) {
	t, ref, err := s.resolve(rng)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	values, err := decodeValues(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, row := range values {
		next := len(t.rows) + 1
		for j, v := range row {
			t.set(next, ref.col1+j, v)
		}
	}
	writeJSON(w, map[string]any{"spreadsheetId": s.spreadsheetID, "tableRange": rng})
}

func (s *Server) tabByID(id int64) *tab {
	for _, t := range s.tabs {
		if t.id == id {
			return t
		}
	}
	return nil
}

func (t *tab) set(row, col int, v string) {
	for len(t.rows) < row {
		t.rows = append(t.rows, nil)
	}
	r := t.rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = v
	t.rows[row-1] = r
}

// cellRef is an inclusive 1-based rectangle. A zero row means unbounded.
type cellRef struct {
	col1, row1, col2, row2 int
}

func (s *Server) resolve(rng string) (*tab, cellRef, error) {
	title, cells, err := SplitRange(rng)
	if err != nil {
		return nil, cellRef{}, err
	}
	t, ok := s.tabs[title]
	if !ok {
		return nil, cellRef{}, fmt.Errorf("unable to parse range: %s", rng)
	}

	start, end, _ := strings.Cut(cells, ":")
	if end == "" {
		end = start
	}
	var ref cellRef
	ref.col1, ref.row1 = parseRef(start)
	ref.col2, ref.row2 = parseRef(end)
	if ref.col1 == 0 || ref.col2 == 0 {
		return nil, cellRef{}, fmt.Errorf("unable to parse range: %s", rng)
	}
	return t, ref, nil
}

// SplitRange splits an A1 range into its tab title and cell part,
// undoing the single-quote escaping of the title.
func SplitRange(rng string) (string, string, error) {
	if !strings.HasPrefix(rng, "'") {
		title, cells, ok := strings.Cut(rng, "!")
		if !ok {
			return "", "", fmt.Errorf("range %q has no tab", rng)
		}
		return title, cells, nil
	}

	var title strings.Builder
	for i := 1; i < len(rng); i++ {
		if rng[i] != '\'' {
			title.WriteByte(rng[i])
			continue
		}
		if i+1 < len(rng) && rng[i+1] == '\'' {
			title.WriteByte('\'')
			i++
			continue
		}
		cells, ok := strings.CutPrefix(rng[i+1:], "!")
		if !ok {
			return "", "", fmt.Errorf("range %q has no cells", rng)
		}
		return title.String(), cells, nil
	}
	return "", "", fmt.Errorf("range %q has an unterminated title", rng)
}

func parseRef(ref string) (col, row int) {
	i := 0
	for ; i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z'; i++ {
		col = col*26 + int(ref[i]-'A'+1)
	}
	for ; i < len(ref) && ref[i] >= '0' && ref[i] <= '9'; i++ {
		row = row*10 + int(ref[i]-'0')
	}
	return col, row
}

func decodeValues(body []byte) ([][]string, error) {
	var vr struct {
		Values [][]any `json:"values"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&vr); err != nil {
		return nil, err
	}
	out := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": msg},
	})
}
