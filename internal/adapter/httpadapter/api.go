package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/couchcryptid/border-data-service/internal/adapter/xlsx"
	"github.com/couchcryptid/border-data-service/internal/domain"
)

// unavailableMessage is shown to users when the upstream dataset cannot be loaded.
const unavailableMessage = "Unable to load border crossing data right now. Please try again later."

// PortSeries is the per-year view of one port.
type PortSeries struct {
	Key       string             `json:"key"`
	Label     string             `json:"label"`
	Years     []int              `json:"years"`
	Series    []domain.YearValue `json:"series"`
	Total     float64            `json:"total"`
	Narrative string             `json:"narrative"`
}

// YearRanking lists the ports active in one year, scaled for a bubble chart.
type YearRanking struct {
	Year  int          `json:"year"`
	Total float64      `json:"total"`
	Max   float64      `json:"max"`
	Ports []YearBubble `json:"ports"`
}

// YearBubble is one port's entry in a YearRanking.
type YearBubble struct {
	domain.PortYearValue
	Size float64 `json:"size"`
}

// Marker is a port placed on the map.
type Marker struct {
	Key         string   `json:"key"`
	PortName    string   `json:"port_name"`
	State       string   `json:"state,omitempty"`
	Border      string   `json:"border,omitempty"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	CoordSource string   `json:"coord_source,omitempty"`
	TotalValue  float64  `json:"total_value"`
	Measures    []string `json:"measures"`
	Radius      float64  `json:"radius"`
}

// MapView is the payload of the map endpoint.
type MapView struct {
	MaxTotal float64  `json:"max_total"`
	Markers  []Marker `json:"markers"`
	// Ports without coordinates are counted but not placed.
	Unplaced int `json:"unplaced"`
}

// load fetches the aggregate and writes the error response when it fails.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*domain.AggregateResult, bool) {
	result, err := s.loader.Load(r.Context())
	if err == nil {
		return result, true
	}

	if errors.Is(err, domain.ErrDataUnavailable) {
		s.logger.Warn("border data unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, unavailableMessage)
		return nil, false
	}
	if r.Context().Err() != nil {
		// Client went away; nothing useful to write.
		return nil, false
	}
	s.logger.Error("border data load failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
	return nil, false
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	result, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePort(w http.ResponseWriter, r *http.Request) {
	result, ok := s.load(w, r)
	if !ok {
		return
	}
	port, found := domain.FindPort(result, r.PathValue("key"))
	if !found {
		writeError(w, http.StatusNotFound, "unknown port")
		return
	}
	writeJSON(w, http.StatusOK, port)
}

func (s *Server) handlePortSeries(w http.ResponseWriter, r *http.Request) {
	result, ok := s.load(w, r)
	if !ok {
		return
	}
	port, found := domain.FindPort(result, r.PathValue("key"))
	if !found {
		writeError(w, http.StatusNotFound, "unknown port")
		return
	}

	series := domain.Series(port, result.Years)
	var total float64
	for _, pt := range series {
		total += pt.Value
	}
	writeJSON(w, http.StatusOK, PortSeries{
		Key:       port.Key,
		Label:     port.Label(),
		Years:     result.Years,
		Series:    series,
		Total:     total,
		Narrative: domain.PortNarrative(port, result.Years),
	})
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < domain.MinYear || year > domain.MaxYear {
		writeError(w, http.StatusBadRequest, "year must be between "+
			strconv.Itoa(domain.MinYear)+" and "+strconv.Itoa(domain.MaxYear))
		return
	}

	result, ok := s.load(w, r)
	if !ok {
		return
	}

	maxVal := 1.0
	if slices.Contains(result.Years, year) {
		maxVal = domain.MaxByYear(result)[year]
	}

	ranked := domain.PortsForYear(result, year)
	bubbles := make([]YearBubble, len(ranked))
	for i, pv := range ranked {
		bubbles[i] = YearBubble{PortYearValue: pv, Size: domain.BubbleSize(pv.Value, maxVal)}
	}

	writeJSON(w, http.StatusOK, YearRanking{
		Year:  year,
		Total: result.TotalsByYear[year],
		Max:   maxVal,
		Ports: bubbles,
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	keyA, keyB := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if keyA == "" && keyB == "" {
		writeError(w, http.StatusBadRequest, "at least one of a or b is required")
		return
	}

	result, ok := s.load(w, r)
	if !ok {
		return
	}

	var a, b *domain.Port
	for _, side := range []struct {
		key  string
		port **domain.Port
	}{{keyA, &a}, {keyB, &b}} {
		if side.key == "" {
			continue
		}
		p, found := domain.FindPort(result, side.key)
		if !found {
			writeError(w, http.StatusNotFound, "unknown port: "+side.key)
			return
		}
		*side.port = p
	}

	writeJSON(w, http.StatusOK, domain.Compare(a, b, result.Years))
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	result, ok := s.load(w, r)
	if !ok {
		return
	}

	view := MapView{MaxTotal: 1, Markers: []Marker{}}
	for i := range result.Ports {
		if v := result.Ports[i].TotalValue; v > view.MaxTotal {
			view.MaxTotal = v
		}
	}

	for i := range result.Ports {
		p := &result.Ports[i]
		if !p.HasCoordinates() {
			view.Unplaced++
			continue
		}
		view.Markers = append(view.Markers, Marker{
			Key:         p.Key,
			PortName:    p.PortName,
			State:       p.State,
			Border:      p.Border,
			Lat:         *p.Lat,
			Lon:         *p.Lon,
			CoordSource: p.CoordSource,
			TotalValue:  p.TotalValue,
			Measures:    p.Measures,
			Radius:      domain.MarkerRadius(p.TotalValue, view.MaxTotal),
		})
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	result, ok := s.load(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := xlsx.Write(&buf, result); err != nil {
		s.logger.Error("xlsx export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="border-crossings.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have disconnected
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
