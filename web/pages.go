package web

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/protolambda/muskoka-client/internal/logger"
	"github.com/protolambda/muskoka-client/internal/task"
	"github.com/protolambda/muskoka-client/pkg/client"
)

// maxUploadMemory bounds the multipart form kept in memory, the rest
// spills to temporary files
const maxUploadMemory = 32 << 20

var templateFuncs = template.FuncMap{
	"ago":       ago,
	"shortHash": shortHash,
	"pageURL":   pageURL,
}

// ago renders a wire timestamp relative to now, e.g. "3 hours ago"
func ago(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func shortHash(h string) string {
	if h == "" {
		return "(none)"
	}
	if len(h) > 18 {
		return h[:10] + ".." + h[len(h)-6:]
	}
	return h
}

// pageURL builds a listing URL that keeps the active filters and moves the
// cursor
func pageURL(q client.ListingQuery, after, before string) string {
	q.After = after
	q.Before = before
	vals := q.Values()
	if len(vals) == 0 {
		return "/"
	}
	return "/?" + vals.Encode()
}

// filterClient is one client row in the listing filter form
type filterClient struct {
	Name    string
	Checked bool
	Version string
}

type listingPage struct {
	Query   client.ListingQuery
	Clients []filterClient
	Listing ListingView
}

type taskPage struct {
	Task TaskView
}

type newPage struct {
	Error string
}

type errorPage struct {
	Status  int
	Message string
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.Error("failed to render page", logger.Fields{
			"page":       name,
			"error":      err,
			"request_id": requestID(r.Context()),
		})
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.log.Warn("page request failed", logger.Fields{
		"path":       r.URL.Path,
		"status":     status,
		"error":      err,
		"request_id": requestID(r.Context()),
	})
	s.render(w, r, status, "error", errorPage{Status: status, Message: err.Error()})
}

// handleListingPage serves the task listing with its filter form
func (s *Server) handleListingPage(w http.ResponseWriter, r *http.Request) {
	q := client.ParseListingQuery(r.URL.Query())
	lv, err := s.listing(r.Context(), q)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	selected := make(map[string]string, len(q.Clients))
	for _, c := range q.Clients {
		selected[c.Name] = c.Version
	}
	clients := make([]filterClient, 0, len(task.KnownClients))
	for _, name := range task.KnownClients {
		version, ok := selected[name]
		clients = append(clients, filterClient{Name: name, Checked: ok, Version: version})
	}

	s.render(w, r, http.StatusOK, "listing", listingPage{Query: q, Clients: clients, Listing: lv})
}

// handleTaskPage serves a single task with its result groups
func (s *Server) handleTaskPage(w http.ResponseWriter, r *http.Request) {
	t, err := s.source.QueryTask(r.Context(), r.PathValue("key"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "task", taskPage{Task: s.view(t)})
}

// handleNewPage serves the upload form
func (s *Server) handleNewPage(w http.ResponseWriter, r *http.Request) {
	if s.uploader == nil {
		http.Error(w, "Uploads are disabled", http.StatusNotFound)
		return
	}
	s.render(w, r, http.StatusOK, "new", newPage{})
}

// handleUpload forwards a submitted transition to the API and redirects to
// the created task
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.uploader == nil {
		http.Error(w, "Uploads are disabled", http.StatusNotFound)
		return
	}

	req, cleanup, err := parseUploadForm(r)
	defer cleanup()
	if err != nil {
		s.render(w, r, http.StatusBadRequest, "new", newPage{Error: err.Error()})
		return
	}

	key, err := s.uploader.Upload(r.Context(), req)
	if err != nil {
		s.log.Warn("upload failed", logger.Fields{"error": err, "request_id": requestID(r.Context())})
		s.render(w, r, statusFor(err), "new", newPage{Error: err.Error()})
		return
	}

	target := "/"
	if key != "" {
		target = "/task/" + url.PathEscape(key)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// parseUploadForm reads the upload form. Blocks are reordered by the
// optional blocks-order field, a comma separated permutation of the
// uploaded block indices.
func parseUploadForm(r *http.Request) (client.UploadRequest, func(), error) {
	noop := func() {}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return client.UploadRequest{}, noop, fmt.Errorf("invalid upload form: %w", err)
	}
	form := r.MultipartForm
	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
		_ = form.RemoveAll()
	}

	req := client.UploadRequest{
		SpecVersion: strings.TrimSpace(r.FormValue("spec-version")),
		SpecConfig:  strings.TrimSpace(r.FormValue("spec-config")),
	}
	if req.SpecVersion == "" {
		return req, cleanup, errors.New("spec version is required")
	}

	pre := form.File["pre"]
	if len(pre) != 1 {
		return req, cleanup, errors.New("exactly one pre-state file is required")
	}
	preFile, err := pre[0].Open()
	if err != nil {
		return req, cleanup, err
	}
	opened = append(opened, preFile)
	req.PreState = client.File{Name: pre[0].Filename, Content: preFile}

	headers := form.File["blocks"]
	order, err := parseBlocksOrder(r.FormValue("blocks-order"), len(headers))
	if err != nil {
		return req, cleanup, err
	}
	for _, i := range order {
		f, err := headers[i].Open()
		if err != nil {
			return req, cleanup, err
		}
		opened = append(opened, f)
		req.Blocks = append(req.Blocks, client.File{Name: headers[i].Filename, Content: f})
	}
	return req, cleanup, nil
}

// parseBlocksOrder checks that s is a permutation of 0..n-1. An empty s keeps
// upload order.
func parseBlocksOrder(s string, n int) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("blocks-order lists %d blocks, %d uploaded", len(parts), n)
	}
	order := make([]int, 0, n)
	for _, p := range parts {
		i, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid blocks-order entry %q", p)
		}
		order = append(order, i)
	}

	check := append([]int(nil), order...)
	sort.Ints(check)
	for i, v := range check {
		if v != i {
			return nil, fmt.Errorf("blocks-order is not a permutation of 0..%d", n-1)
		}
	}
	return order, nil
}
