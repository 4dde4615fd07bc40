package task

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"motido/internal/graph"
	"motido/internal/model"
	"motido/internal/telemetry"
	"motido/internal/view"
)

const ymdLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, graph.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyComplete), errors.Is(err, ErrNotComplete):
		return http.StatusConflict
	case errors.Is(err, ErrSelfDependency),
		errors.Is(err, ErrUnknownDependency),
		errors.Is(err, ErrNoHistory),
		errors.Is(err, ErrInvalidOrdinal),
		errors.Is(err, model.ErrInvalidRule),
		errors.Is(err, model.ErrUnknownAnchor),
		errors.Is(err, model.ErrUnknownSubtaskMod),
		errors.Is(err, graph.ErrUnknownMode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Upsert is the create payload. Zero ordinals default to the middle level.
type Upsert struct {
	Title       string `json:"title"`
	Description string `json:"description"`

	Priority   int `json:"priority"`
	Difficulty int `json:"difficulty"`
	Duration   int `json:"duration"`

	DueDate   *string `json:"dueDate,omitempty"`
	StartDate *string `json:"startDate,omitempty"`

	Dependencies []model.TaskID  `json:"dependencies,omitempty"`
	Subtasks     []model.Subtask `json:"subtasks,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Project      *string         `json:"project,omitempty"`

	Habit      bool              `json:"habit"`
	Recurrence *model.Recurrence `json:"recurrence,omitempty"`
}

func parseYMD(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(ymdLayout, strings.TrimSpace(*s), time.Local)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func ordinal(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// /api/tasks  (collection)
func (h *Handler) TasksRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter, sortSpec, err := parseListQuery(r)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := h.svc.ListView(filter, sortSpec)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
		return

	case http.MethodPost:
		var in Upsert
		if err := decodeJSON(r, &in); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		due, err := parseYMD(in.DueDate)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "bad dueDate")
			return
		}
		start, err := parseYMD(in.StartDate)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "bad startDate")
			return
		}

		t, err := h.svc.CreateTask(model.Task{
			Title:        in.Title,
			Description:  in.Description,
			Priority:     model.Priority(ordinal(in.Priority, int(model.PriorityMedium))),
			Difficulty:   model.Difficulty(ordinal(in.Difficulty, int(model.DifficultyMedium))),
			Duration:     model.Duration(ordinal(in.Duration, int(model.DurationMedium))),
			DueDate:      due,
			StartDate:    start,
			Dependencies: in.Dependencies,
			Subtasks:     in.Subtasks,
			Tags:         in.Tags,
			Project:      in.Project,
			Habit:        in.Habit,
			Recurrence:   in.Recurrence,
		})
		if err != nil {
			writeErr(w, errStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, t)
		return

	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// /api/tasks/{id} and subresources
func (h *Handler) TasksSub(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	tail = strings.Trim(tail, "/")
	if tail == "" {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}

	parts := strings.Split(tail, "/")
	id := model.TaskID(parts[0])

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			t, err := h.svc.GetTask(id)
			if err != nil {
				writeErr(w, errStatus(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, t)
		case http.MethodPatch:
			var p Patch
			if err := decodeJSON(r, &p); err != nil {
				writeErr(w, http.StatusBadRequest, "bad json")
				return
			}
			t, err := h.svc.UpdateTask(id, p)
			if err != nil {
				writeErr(w, errStatus(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, t)
		case http.MethodDelete:
			if err := h.svc.DeleteTask(id); err != nil {
				writeErr(w, errStatus(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if len(parts) != 2 {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}

	switch parts[1] {
	case "complete":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		res, err := h.svc.Complete(id)
		if err != nil {
			writeErr(w, errStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)

	case "uncomplete":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		t, err := h.svc.Uncomplete(id)
		if err != nil {
			writeErr(w, errStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, t)

	case "undo":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		t, err := h.svc.Undo(id)
		if err != nil {
			writeErr(w, errStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, t)

	case "graph":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		mode := graph.Mode(strings.TrimSpace(r.URL.Query().Get("mode")))
		if mode == "" {
			mode = graph.ModeIsolated
		}
		tasks, err := h.svc.SubgraphView(id, mode)
		if err != nil {
			writeErr(w, errStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "tasks": tasks})

	default:
		writeErr(w, http.StatusNotFound, "not found")
	}
}

// /api/tags and /api/projects share the shape {name, multiplier}.
func (h *Handler) TagsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		defs, err := h.svc.Tags()
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, defs)
	case http.MethodPut:
		var def model.TagDef
		if err := decodeJSON(r, &def); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if err := h.svc.SetTag(def); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, def)
	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) ProjectsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		defs, err := h.svc.Projects()
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, defs)
	case http.MethodPut:
		var def model.ProjectDef
		if err := decodeJSON(r, &def); err != nil {
			writeErr(w, http.StatusBadRequest, "bad json")
			return
		}
		if err := h.svc.SetProject(def); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, def)
	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// /api/events — the telemetry log. GET lists (optional ?since=YYYY-MM-DD and
// ?type=a,b filters), DELETE wipes it.
func (h *Handler) EventsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var since time.Time
		if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
			t, err := time.ParseInLocation(ymdLayout, raw, time.Local)
			if err != nil {
				writeErr(w, http.StatusBadRequest, "bad since")
				return
			}
			since = t
		}
		var types []telemetry.EventType
		for _, raw := range splitCSV(r.URL.Query().Get("type")) {
			types = append(types, telemetry.EventType(raw))
		}
		events, err := h.svc.Events(since, types)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, events)

	case http.MethodDelete:
		if err := h.svc.ClearEvents(); err != nil {
			writeErr(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func parseListQuery(r *http.Request) (view.FilterSpec, view.SortSpec, error) {
	q := r.URL.Query()

	f := view.FilterSpec{
		Status: view.Status(strings.TrimSpace(q.Get("status"))),
		Search: q.Get("q"),
	}
	for _, raw := range splitCSV(q.Get("priority")) {
		n, err := strconv.Atoi(raw)
		if err != nil || !model.Priority(n).Valid() {
			return f, view.SortSpec{}, errors.New("bad priority filter")
		}
		f.Priorities = append(f.Priorities, model.Priority(n))
	}
	for _, raw := range splitCSV(q.Get("difficulty")) {
		n, err := strconv.Atoi(raw)
		if err != nil || !model.Difficulty(n).Valid() {
			return f, view.SortSpec{}, errors.New("bad difficulty filter")
		}
		f.Difficulties = append(f.Difficulties, model.Difficulty(n))
	}
	for _, raw := range splitCSV(q.Get("duration")) {
		n, err := strconv.Atoi(raw)
		if err != nil || !model.Duration(n).Valid() {
			return f, view.SortSpec{}, errors.New("bad duration filter")
		}
		f.Durations = append(f.Durations, model.Duration(n))
	}
	f.Projects = splitCSV(q.Get("project"))
	f.Tags = splitCSV(q.Get("tag"))

	if raw := strings.TrimSpace(q.Get("max_due")); raw != "" {
		t, err := time.ParseInLocation(ymdLayout, raw, time.Local)
		if err != nil {
			return f, view.SortSpec{}, errors.New("bad max_due")
		}
		f.MaxDueDate = &t
	}

	s := view.SortSpec{
		Field:      view.SortField(strings.TrimSpace(q.Get("sort"))),
		Descending: strings.EqualFold(strings.TrimSpace(q.Get("order")), "desc"),
	}
	return f, s, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
